// Package app runs the message listener: it accepts client sessions
// over the configured transports and drains CR/LF-framed messages from
// each one through a ring-buffered reader.
package app

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xtaci/smux"

	"ringio/internal/shared"
	"ringio/internal/shared/logger"
	"ringio/internal/shared/securecrypt"
	"ringio/internal/shared/types"
)

// Server is the application's main struct. One Server owns every
// listener named in the transport list and all sessions spawned from
// them.
type Server struct {
	cfg *types.Config

	cipher *securecrypt.Cipher // nil when encryption is disabled

	tcpListener net.Listener
	muxListener net.Listener
	wsListener  net.Listener
	httpServer  *http.Server

	ingressBytes  atomic.Uint64
	egressBytes   atomic.Uint64
	activeConns   atomic.Int64
	totalSessions atomic.Uint64
	totalMessages atomic.Uint64

	waitGroup sync.WaitGroup
	stopOnce  sync.Once
	mu        sync.Mutex
	stopping  bool
	done      chan struct{}
}

// New creates a Server from a normalized configuration.
func New(cfg *types.Config) (*Server, error) {
	s := &Server{
		cfg:  cfg,
		done: make(chan struct{}),
	}
	if cfg.CommonConf.CryptKey != 0 {
		cipher, err := securecrypt.NewCipherWithAlgo(cfg.CommonConf.CryptKey, securecrypt.Algorithm(cfg.CommonConf.CryptAlgo))
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		s.cipher = cipher
	}
	return s, nil
}

// Start brings up one listener per entry in the transport list and the
// stats loop, then returns. Use Wait to block until shutdown.
func (s *Server) Start() error {
	logger.Info().
		Str("transports", s.cfg.CommonConf.Transport).
		Int("capacity", s.cfg.CommonConf.Capacity).
		Int("max_message", s.cfg.CommonConf.MaxMessage).
		Bool("encrypted", s.cipher != nil).
		Msg("Starting message listener...")

	for _, transport := range strings.Split(s.cfg.CommonConf.Transport, ",") {
		var err error
		switch strings.TrimSpace(transport) {
		case "tcp":
			err = s.startTCP()
		case "ws":
			err = s.startWS()
		case "mux":
			err = s.startMux()
		case "":
		default:
			err = fmt.Errorf("unknown transport %q", transport)
		}
		if err != nil {
			return err
		}
	}

	s.waitGroup.Add(1)
	go s.statsLoop()
	return nil
}

// register tracks one session goroutine in the wait group, refusing
// once shutdown has started. Handlers spawned by the HTTP server are
// not rooted in an accept loop and must go through here.
func (s *Server) register() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.waitGroup.Add(1)
	return true
}

// Stop closes every listener. Sessions already running keep draining
// until their connection ends.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()
		close(s.done)
		if s.tcpListener != nil {
			s.tcpListener.Close()
		}
		if s.muxListener != nil {
			s.muxListener.Close()
		}
		if s.httpServer != nil {
			s.httpServer.Close()
		}
	})
}

func (s *Server) Wait() {
	s.waitGroup.Wait()
}

func (s *Server) startTCP() error {
	listener, err := net.Listen("tcp", s.cfg.CommonConf.Listen)
	if err != nil {
		return fmt.Errorf("tcp listener on %s: %w", s.cfg.CommonConf.Listen, err)
	}
	s.tcpListener = listener
	logger.Info().Str("listen_addr", listener.Addr().String()).Str("transport", "tcp").Msg(">>> Listening for messages.")

	s.waitGroup.Add(1)
	go s.acceptLoop(listener, "tcp", s.handleTCPConn)
	return nil
}

func (s *Server) startMux() error {
	listener, err := net.Listen("tcp", s.cfg.CommonConf.MuxListen)
	if err != nil {
		return fmt.Errorf("mux listener on %s: %w", s.cfg.CommonConf.MuxListen, err)
	}
	s.muxListener = listener
	logger.Info().Str("listen_addr", listener.Addr().String()).Str("transport", "mux").Msg(">>> Listening for messages.")

	s.waitGroup.Add(1)
	go s.acceptLoop(listener, "mux", s.handleMuxConn)
	return nil
}

func (s *Server) startWS() error {
	listener, err := net.Listen("tcp", s.cfg.CommonConf.WSListen)
	if err != nil {
		return fmt.Errorf("ws listener on %s: %w", s.cfg.CommonConf.WSListen, err)
	}
	s.wsListener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.serveWS)
	s.httpServer = &http.Server{Handler: mux}
	logger.Info().Str("listen_addr", listener.Addr().String()).Str("transport", "ws").Msg(">>> Listening for messages.")

	s.waitGroup.Add(1)
	go func() {
		defer s.waitGroup.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("WebSocket server failed")
		}
	}()
	return nil
}

func (s *Server) acceptLoop(listener net.Listener, transport string, handle func(net.Conn)) {
	defer s.waitGroup.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Info().Str("transport", transport).Msg("Listener is closing.")
				return
			}
			logger.Warn().Err(err).Str("transport", transport).Msg("Failed to accept connection")
			continue
		}
		s.waitGroup.Add(1)
		go func() {
			defer s.waitGroup.Done()
			handle(conn)
		}()
	}
}

func (s *Server) handleTCPConn(conn net.Conn) {
	defer conn.Close()
	s.handleSession(s.wrapConn(conn), "tcp", conn.RemoteAddr().String())
}

// handleMuxConn serves one smux session per TCP connection; every
// stream inside it is an independent message session.
func (s *Server) handleMuxConn(conn net.Conn) {
	defer conn.Close()

	smuxConfig := smux.DefaultConfig()
	smuxConfig.Version = 2
	smuxConfig.KeepAliveInterval = 10 * time.Second
	smuxConfig.KeepAliveTimeout = 30 * time.Second

	remote := conn.RemoteAddr().String()
	session, err := smux.Server(shared.NewCountedConn(conn, &s.ingressBytes, &s.egressBytes), smuxConfig)
	if err != nil {
		logger.Error().Err(err).Str("remote_addr", remote).Msg("Failed to create mux session")
		return
	}
	defer session.Close()

	logger.Info().Str("remote_addr", remote).Msg("Mux session established.")
	for {
		stream, err := session.AcceptStream()
		if err != nil {
			logger.Debug().Err(err).Str("remote_addr", remote).Msg("Mux session ended.")
			return
		}
		s.waitGroup.Add(1)
		go func() {
			defer s.waitGroup.Done()
			defer stream.Close()
			var streamConn net.Conn = stream
			if s.cipher != nil {
				streamConn = securecrypt.NewStreamConn(streamConn, s.cipher)
			}
			s.handleSession(streamConn, "mux", remote)
		}()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // Allow all origins
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if !s.register() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.waitGroup.Done()

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to upgrade websocket")
		return
	}

	conn := shared.NewWSConn(ws)
	defer conn.Close()
	s.handleSession(s.wrapConn(conn), "ws", ws.RemoteAddr().String())
}

// wrapConn layers the byte counters and, when configured, the framed
// cipher over a raw connection.
func (s *Server) wrapConn(conn net.Conn) net.Conn {
	wrapped := shared.NewCountedConn(conn, &s.ingressBytes, &s.egressBytes)
	if s.cipher != nil {
		wrapped = securecrypt.NewStreamConn(wrapped, s.cipher)
	}
	return wrapped
}
