package shared

import (
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// WSConn adapts a *websocket.Conn to the net.Conn interface. Stream
// reads are served from whole binary messages, with any unread tail
// kept for the next call.
type WSConn struct {
	*websocket.Conn
	leftover []byte
}

var _ net.Conn = (*WSConn)(nil)

func NewWSConn(ws *websocket.Conn) net.Conn {
	return &WSConn{Conn: ws}
}

func (c *WSConn) Read(b []byte) (int, error) {
	for len(c.leftover) == 0 {
		msgType, msg, err := c.Conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		if msgType != websocket.BinaryMessage {
			return 0, fmt.Errorf("received non-binary message")
		}
		c.leftover = msg
	}
	n := copy(b, c.leftover)
	c.leftover = c.leftover[n:]
	return n, nil
}

func (c *WSConn) Write(b []byte) (int, error) {
	if err := c.Conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

// SetDeadline is the only net.Conn method *websocket.Conn lacks; the
// read and write deadlines are set separately underneath.
func (c *WSConn) SetDeadline(t time.Time) error {
	_ = c.Conn.SetReadDeadline(t)
	return c.Conn.SetWriteDeadline(t)
}
