package securecrypt

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
)

// maxFramePayload caps the plaintext carried by one frame so the
// ciphertext (payload plus nonce plus tag) always fits the uint16
// length prefix.
const maxFramePayload = 60 * 1024

// StreamConn wraps a net.Conn with framed AEAD encryption. Each frame
// on the wire is a big-endian uint16 ciphertext length followed by the
// ciphertext itself. A clean EOF is only reported at a frame boundary;
// truncation inside a frame surfaces as a *StreamError.
type StreamConn struct {
	net.Conn
	cipher   *Cipher
	leftover []byte
}

var _ net.Conn = (*StreamConn)(nil)

func NewStreamConn(conn net.Conn, cipher *Cipher) net.Conn {
	return &StreamConn{Conn: conn, cipher: cipher}
}

func (s *StreamConn) Read(b []byte) (int, error) {
	for len(s.leftover) == 0 {
		plain, err := s.readFrame()
		if err != nil {
			return 0, err
		}
		s.leftover = plain
	}
	n := copy(b, s.leftover)
	s.leftover = s.leftover[n:]
	return n, nil
}

func (s *StreamConn) Write(b []byte) (int, error) {
	total := 0
	for rest := b; len(rest) > 0; {
		chunk := rest
		if len(chunk) > maxFramePayload {
			chunk = chunk[:maxFramePayload]
		}
		if err := s.writeFrame(chunk); err != nil {
			return total, err
		}
		total += len(chunk)
		rest = rest[len(chunk):]
	}
	return total, nil
}

func (s *StreamConn) readFrame() ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(s.Conn, lenBuf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, &StreamError{Op: "read_len", Err: err}
	}

	frameLen := binary.BigEndian.Uint16(lenBuf[:])
	if frameLen == 0 {
		return nil, &StreamError{Op: "read_len", Err: fmt.Errorf("zero-length frame")}
	}

	frame := make([]byte, frameLen)
	if _, err := io.ReadFull(s.Conn, frame); err != nil {
		return nil, &StreamError{Op: "read_frame", Err: err}
	}

	plain, err := s.cipher.Decrypt(frame)
	if err != nil {
		return nil, &StreamError{Op: "decrypt", Err: err}
	}
	return plain, nil
}

func (s *StreamConn) writeFrame(plain []byte) error {
	sealed, err := s.cipher.Encrypt(plain)
	if err != nil {
		return &StreamError{Op: "encrypt", Err: err}
	}

	frame := make([]byte, 2+len(sealed))
	binary.BigEndian.PutUint16(frame[:2], uint16(len(sealed)))
	copy(frame[2:], sealed)

	if _, err := s.Conn.Write(frame); err != nil {
		return &StreamError{Op: "write", Err: err}
	}
	return nil
}

// StreamError reports a failure inside the framed transport.
type StreamError struct {
	Op  string
	Err error
}

func (e *StreamError) Error() string {
	return "securecrypt: operation '" + e.Op + "' failed: " + e.Err.Error()
}

func (e *StreamError) Unwrap() error {
	return e.Err
}
