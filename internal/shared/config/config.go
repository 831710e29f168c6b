package config

import (
	"os"
	"strconv"

	"gopkg.in/ini.v1"

	"ringio/internal/shared/types"
)

// LoadIni loads the behavior configuration file into cfg and fills in
// defaults for anything the file leaves unset.
func LoadIni(cfg *types.Config, fileName string) error {
	iniFile, err := ini.Load(fileName)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	overrideFromEnvInt(&cfg.CommonConf.CryptKey, "CRYPT_KEY")
	ApplyDefaults(cfg)
	return nil
}

// ApplyDefaults normalizes cfg in place: port 8080, 256-byte
// messages and a 64 KiB ingest limit unless the file says otherwise.
func ApplyDefaults(cfg *types.Config) {
	c := &cfg.CommonConf
	if c.Transport == "" {
		c.Transport = "tcp"
	}
	if c.Listen == "" {
		c.Listen = "0.0.0.0:8080"
	}
	if c.WSListen == "" {
		c.WSListen = "0.0.0.0:8081"
	}
	if c.MuxListen == "" {
		c.MuxListen = "0.0.0.0:8082"
	}
	if c.MaxMessage <= 0 {
		c.MaxMessage = 256
	}
	if c.Capacity < c.MaxMessage {
		c.Capacity = c.MaxMessage
	}
	if c.MaxRead <= 0 {
		c.MaxRead = 64 * 1024
	}
	if cfg.LogConf.Level == "" {
		cfg.LogConf.Level = "info"
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
