// linecli is a small companion client for the message listener: it
// dials the server over any of its transports, sends one message per
// stdin line and ends the session with a blank line.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xtaci/smux"

	"ringio/internal/lineproto"
	"ringio/internal/shared"
	"ringio/internal/shared/securecrypt"
)

func main() {
	var (
		transport = flag.String("transport", "tcp", "Transport to dial: tcp, ws or mux")
		addr      = flag.String("addr", "127.0.0.1:8080", "Server address (host:port)")
		cryptKey  = flag.Int("key", 0, "Encryption key, 0 for plaintext")
		cryptAlgo = flag.String("algo", string(securecrypt.CHACHA20_POLY1305), "Encryption algorithm: chacha20 or aes-gcm")
	)
	flag.Parse()

	conn, err := dial(*transport, *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if *cryptKey != 0 {
		cipher, err := securecrypt.NewCipherWithAlgo(*cryptKey, securecrypt.Algorithm(*cryptAlgo))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		conn = securecrypt.NewStreamConn(conn, cipher)
	}

	fmt.Fprintf(os.Stderr, "Connected to %s over %s. One message per line; a blank line ends the session.\n", *addr, *transport)

	sentEnd := false
	stdin := bufio.NewScanner(os.Stdin)
	for stdin.Scan() {
		line := stdin.Text()
		if _, err := conn.Write([]byte(line + "\r\n")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: write failed: %v\n", err)
			os.Exit(1)
		}
		if lineproto.EndOfStream([]byte(line)) {
			sentEnd = true
			break
		}
	}
	if err := stdin.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading stdin: %v\n", err)
	}
	if !sentEnd {
		conn.Write([]byte("\r\n"))
	}

	// The server closes the connection once it has seen the end marker.
	io.ReadAll(conn)
}

func dial(transport, addr string) (net.Conn, error) {
	switch transport {
	case "tcp":
		return net.DialTimeout("tcp", addr, 5*time.Second)
	case "ws":
		dialer := websocket.Dialer{
			HandshakeTimeout: 15 * time.Second,
		}
		wsConn, _, err := dialer.Dial("ws://"+addr+"/stream", nil)
		if err != nil {
			return nil, fmt.Errorf("websocket dial failed: %w", err)
		}
		return shared.NewWSConn(wsConn), nil
	case "mux":
		raw, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err != nil {
			return nil, err
		}
		smuxConfig := smux.DefaultConfig()
		smuxConfig.Version = 2
		smuxConfig.KeepAliveInterval = 10 * time.Second
		smuxConfig.KeepAliveTimeout = 30 * time.Second
		session, err := smux.Client(raw, smuxConfig)
		if err != nil {
			raw.Close()
			return nil, fmt.Errorf("smux client session creation failed: %w", err)
		}
		stream, err := session.OpenStream()
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("mux stream open failed: %w", err)
		}
		return stream, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}
