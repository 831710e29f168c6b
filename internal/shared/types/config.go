package types

// CommonConf holds the service-wide behavior settings.
type CommonConf struct {
	Listen     string `ini:"listen"`      // TCP transport address
	WSListen   string `ini:"ws_listen"`   // WebSocket transport address
	MuxListen  string `ini:"mux_listen"`  // multiplexed transport address
	Transport  string `ini:"transport"`   // comma-separated: "tcp", "ws", "mux"
	Capacity   int    `ini:"capacity"`    // staging buffer capacity per session
	MaxMessage int    `ini:"max_message"` // longest accepted message
	MaxRead    int    `ini:"max_read"`    // per-session ingest limit
	CryptKey   int    `ini:"crypt_key"`   // 0 disables stream encryption
	CryptAlgo  string `ini:"crypt_algo"`  // "chacha20" (default) or "aes-gcm"
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// Config is the unified configuration structure mapped from the ini
// file.
type Config struct {
	CommonConf `ini:"common"`
	LogConf    `ini:"log"`
}
