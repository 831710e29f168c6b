package shared

import (
	"net"
	"sync/atomic"
)

// CountedConn wraps a net.Conn and adds every byte that crosses it to a
// pair of shared counters. Ingress counts bytes read from the peer,
// egress counts bytes written to it.
type CountedConn struct {
	net.Conn
	ingressCounter *atomic.Uint64
	egressCounter  *atomic.Uint64
}

func NewCountedConn(conn net.Conn, ingress, egress *atomic.Uint64) net.Conn {
	return &CountedConn{
		Conn:           conn,
		ingressCounter: ingress,
		egressCounter:  egress,
	}
}

func (c *CountedConn) Read(b []byte) (n int, err error) {
	n, err = c.Conn.Read(b)
	if n > 0 && c.ingressCounter != nil {
		c.ingressCounter.Add(uint64(n))
	}
	return
}

func (c *CountedConn) Write(b []byte) (n int, err error) {
	n, err = c.Conn.Write(b)
	if n > 0 && c.egressCounter != nil {
		c.egressCounter.Add(uint64(n))
	}
	return
}
