// Package lineproto splits a byte stream into messages terminated by
// CR, LF or CRLF, the framing used by the plain-text listener.
package lineproto

import (
	"io"

	"ringio"
)

// maxConsecutiveEmptyFills bounds source reads that return neither
// data nor an error before Next gives up, as bufio.Reader does.
const maxConsecutiveEmptyFills = 100

// Scanner reads messages from a buffered stream. A message is any run
// of bytes ending in CR, LF or CRLF; the terminator is consumed but
// not returned. Messages longer than the scanner's window are split:
// the first window bytes are delivered as one message and the rest
// starts the next one. A terminator arriving right after a
// window-filling message closes that message; it never surfaces as an
// extra empty one.
type Scanner struct {
	r      *ringio.BufferedReader
	window int
	msg    []byte

	// cut records that the previous message was cut at the window, so
	// a terminator at the head of the stream still belongs to it.
	cut bool
}

// NewScanner wraps r with a message window of at most window bytes.
// The window is clamped to the capacity of r's buffer so the scanner
// can always make progress.
func NewScanner(r *ringio.BufferedReader, window int) *Scanner {
	if window < 1 {
		window = 1
	}
	if c := r.Cap(); c > 0 && window > c {
		window = c
	}
	return &Scanner{
		r:      r,
		window: window,
		msg:    make([]byte, window),
	}
}

// Window returns the effective message window.
func (s *Scanner) Window() int { return s.window }

// Next returns the next message without its terminator. The returned
// slice is reused and only valid until the following call.
//
// At the end of the stream a final unterminated message is delivered
// first, then Next reports io.EOF. A message ending in a bare CR is
// not delivered until the byte after it arrives or the stream ends,
// since a following LF belongs to the same terminator.
func (s *Scanner) Next() ([]byte, error) {
	scanned := 0
	empties := 0
	for {
		limit := s.r.Buffered()
		if limit > s.window {
			limit = s.window
		}
		if s.cut && limit > 0 {
			s.cut = false
			if c, _ := s.r.ByteAt(0); c == '\r' || c == '\n' {
				s.r.Skip(1)
				if c == '\r' {
					s.skipFollowingLF()
				}
				continue
			}
		}
		for scanned < limit {
			c, _ := s.r.ByteAt(scanned)
			if c == '\r' || c == '\n' {
				s.r.Consume(s.msg[:scanned+1])
				if c == '\r' {
					s.skipFollowingLF()
				}
				return s.msg[:scanned], nil
			}
			scanned++
		}
		if scanned == s.window {
			s.r.Consume(s.msg[:s.window])
			s.cut = true
			return s.msg[:s.window], nil
		}

		m, err := s.r.Fill()
		if m > 0 {
			empties = 0
			continue
		}
		if err == io.EOF {
			if scanned > 0 {
				s.r.Consume(s.msg[:scanned])
				return s.msg[:scanned], nil
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}
		empties++
		if empties == maxConsecutiveEmptyFills {
			return nil, io.ErrNoProgress
		}
	}
}

// skipFollowingLF drops the LF of a CRLF pair. A peek failure is
// ignored here; the message is already complete and the condition
// surfaces again on the next call.
func (s *Scanner) skipFollowingLF() {
	var next [1]byte
	if m, err := s.r.Peek(next[:]); err == nil && m == 1 && next[0] == '\n' {
		s.r.Skip(1)
	}
}

// EndOfStream reports whether msg is the end-of-stream marker: a
// message whose bytes are all spaces or horizontal tabs. The empty
// message qualifies.
func EndOfStream(msg []byte) bool {
	for _, c := range msg {
		if c != ' ' && c != '\t' {
			return false
		}
	}
	return true
}
