package app

import (
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xtaci/smux"

	"ringio/internal/shared"
	"ringio/internal/shared/securecrypt"
	"ringio/internal/shared/types"
)

func TestSessionDrainsMessages(t *testing.T) {
	s := newTestServer(t, testConfig())
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleSession(server, "test", "pipe")
	}()

	if _, err := client.Write([]byte("first\r\nsecond\r\n\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	<-done

	st := s.Stats()
	if st.TotalMessages != 3 {
		t.Fatalf("expected 3 messages including the end marker, got %d", st.TotalMessages)
	}
	if st.TotalSessions != 1 {
		t.Fatalf("expected 1 session, got %d", st.TotalSessions)
	}
	if st.ActiveConns != 0 {
		t.Fatalf("expected no active connections, got %d", st.ActiveConns)
	}
}

func TestSessionSurvivesWindowSizedMessage(t *testing.T) {
	s := newTestServer(t, testConfig())
	client, server := net.Pipe()

	reasonCh := make(chan string, 1)
	go func() {
		reasonCh <- s.handleSession(server, "test", "pipe")
	}()

	// A message exactly max_message long keeps its own terminator; the
	// messages behind it must still be delivered.
	payload := strings.Repeat("A", 64) + "\r\n" + "after one\r\n" + "after two\r\n"
	if _, err := client.Write([]byte(payload)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	client.Close()

	reason := <-reasonCh
	if reason == "client_end" {
		t.Fatalf("session reported an end marker the client never sent")
	}
	if reason != "eof" {
		t.Fatalf("expected the session to end at eof, got %q", reason)
	}
	if st := s.Stats(); st.TotalMessages != 3 {
		t.Fatalf("expected 3 messages, got %d", st.TotalMessages)
	}
}

func TestSessionStopsAtIngestLimit(t *testing.T) {
	cfg := testConfig()
	cfg.CommonConf.MaxRead = 8
	s := newTestServer(t, cfg)
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.handleSession(server, "test", "pipe")
	}()

	// All 16 bytes arrive in one fill, so the limit check after the
	// first message already sees the whole batch.
	if _, err := client.Write([]byte("aa\r\nbb\r\ncc\r\ndd\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	<-done

	if st := s.Stats(); st.TotalMessages != 1 {
		t.Fatalf("expected the session to stop after 1 message, got %d", st.TotalMessages)
	}
}

func TestServerTCPEndToEnd(t *testing.T) {
	cfg := testConfig()
	s := newTestServer(t, cfg)
	startServer(t, s)

	conn, err := net.Dial("tcp", s.tcpListener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("hello over tcp\r\nsecond line\r\n\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// The server closes the connection once the end marker arrives.
	if _, err := io.ReadAll(conn); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	st := s.Stats()
	if st.TotalMessages != 3 {
		t.Fatalf("expected 3 messages, got %d", st.TotalMessages)
	}
	if st.IngressBytes == 0 {
		t.Fatalf("expected the ingress counter to move")
	}
	if st.ActiveConns != 0 {
		t.Fatalf("expected no active connections, got %d", st.ActiveConns)
	}
}

func TestServerEncryptedTCPEndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.CommonConf.CryptKey = 1234
	s := newTestServer(t, cfg)
	startServer(t, s)

	raw, err := net.Dial("tcp", s.tcpListener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer raw.Close()

	cipher, err := securecrypt.NewCipher(1234)
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	conn := securecrypt.NewStreamConn(raw, cipher)

	if _, err := conn.Write([]byte("secret message\r\n\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := io.ReadAll(conn); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	if st := s.Stats(); st.TotalMessages != 2 {
		t.Fatalf("expected 2 messages, got %d", st.TotalMessages)
	}
}

func TestServerEncryptedRejectsPlaintext(t *testing.T) {
	cfg := testConfig()
	cfg.CommonConf.CryptKey = 77
	s := newTestServer(t, cfg)
	startServer(t, s)

	conn, err := net.Dial("tcp", s.tcpListener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if _, err := conn.Write([]byte("not a frame\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	conn.Close()

	waitFor(t, func() bool {
		st := s.Stats()
		return st.TotalSessions == 1 && st.ActiveConns == 0
	})
	if st := s.Stats(); st.TotalMessages != 0 {
		t.Fatalf("expected no messages from a plaintext client, got %d", st.TotalMessages)
	}
}

func TestServerMuxEndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.CommonConf.Transport = "mux"
	s := newTestServer(t, cfg)
	startServer(t, s)

	conn, err := net.Dial("tcp", s.muxListener.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	smuxConfig := smux.DefaultConfig()
	smuxConfig.Version = 2
	session, err := smux.Client(conn, smuxConfig)
	if err != nil {
		t.Fatalf("smux.Client: %v", err)
	}
	defer session.Close()

	for _, text := range []string{"via mux one\r\n\r\n", "via mux two\r\n\r\n"} {
		stream, err := session.OpenStream()
		if err != nil {
			t.Fatalf("OpenStream: %v", err)
		}
		if _, err := stream.Write([]byte(text)); err != nil {
			t.Fatalf("Write: %v", err)
		}
		// The server closes the stream when the end marker arrives.
		if _, err := io.ReadAll(stream); err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		stream.Close()
	}

	st := s.Stats()
	if st.TotalSessions != 2 {
		t.Fatalf("expected one session per stream, got %d", st.TotalSessions)
	}
	if st.TotalMessages != 4 {
		t.Fatalf("expected 4 messages, got %d", st.TotalMessages)
	}
	if st.IngressBytes == 0 || st.EgressBytes == 0 {
		t.Fatalf("expected mux framing to move both byte counters, got in=%d out=%d", st.IngressBytes, st.EgressBytes)
	}
}

func TestServerWebSocketEndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.CommonConf.Transport = "ws"
	s := newTestServer(t, cfg)
	startServer(t, s)

	url := "ws://" + s.wsListener.Addr().String() + "/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn := shared.NewWSConn(ws)
	defer conn.Close()

	if _, err := conn.Write([]byte("over websocket\r\n\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	// The read unblocks when the server tears the connection down.
	io.ReadAll(conn)

	waitFor(t, func() bool { return s.Stats().ActiveConns == 0 })
	if st := s.Stats(); st.TotalMessages != 2 {
		t.Fatalf("expected 2 messages, got %d", st.TotalMessages)
	}
}

func TestServerRejectsSessionsAfterStop(t *testing.T) {
	s := newTestServer(t, testConfig())
	if !s.register() {
		t.Fatalf("expected registration to succeed before Stop")
	}
	s.waitGroup.Done()
	s.Stop()
	if s.register() {
		t.Fatalf("expected registration to fail after Stop")
	}
}

func TestServerRejectsUnknownTransport(t *testing.T) {
	cfg := testConfig()
	cfg.CommonConf.Transport = "carrier-pigeon"
	s := newTestServer(t, cfg)
	err := s.Start()
	if err == nil {
		s.Stop()
		t.Fatalf("expected an error for an unknown transport")
	}
	if !strings.Contains(err.Error(), "unknown transport") {
		t.Fatalf("expected an unknown transport error, got %v", err)
	}
}

func TestPreviewOf(t *testing.T) {
	if got := previewOf([]byte("hi")); got != `"hi"` {
		t.Fatalf(`expected "hi", got %s`, got)
	}
	if got := previewOf([]byte{0x00, 0xFF}); got != `"\x00\xff"` {
		t.Fatalf(`expected escaped bytes, got %s`, got)
	}
	long := strings.Repeat("x", 40)
	if got := previewOf([]byte(long)); got != `"`+strings.Repeat("x", 32)+`"...` {
		t.Fatalf("expected a truncated preview, got %s", got)
	}
}

func testConfig() *types.Config {
	cfg := &types.Config{}
	cfg.CommonConf.Transport = "tcp"
	cfg.CommonConf.Listen = "127.0.0.1:0"
	cfg.CommonConf.WSListen = "127.0.0.1:0"
	cfg.CommonConf.MuxListen = "127.0.0.1:0"
	cfg.CommonConf.Capacity = 256
	cfg.CommonConf.MaxMessage = 64
	cfg.CommonConf.MaxRead = 64 * 1024
	return cfg
}

func newTestServer(t *testing.T, cfg *types.Config) *Server {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func startServer(t *testing.T, s *Server) {
	t.Helper()
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		s.Stop()
		s.Wait()
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
