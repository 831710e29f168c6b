package ringio

import "io"

// RingBuffer is a fixed-capacity FIFO byte buffer over a single
// circular backing array. The array holds one slot more than the
// capacity so that a full buffer and an empty buffer remain
// distinguishable: the buffer is empty exactly when both cursors
// coincide, and the extra slot is never occupied.
//
// A RingBuffer never allocates after construction. It is not safe
// for concurrent use.
type RingBuffer struct {
	buf   []byte
	start int // index of the oldest buffered byte
	end   int // index one past the newest buffered byte
}

// NewRingBuffer returns an empty buffer holding up to capacity bytes.
// A non-positive capacity yields a degenerate buffer that is
// permanently empty.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 0 {
		capacity = 0
	}
	return &RingBuffer{buf: make([]byte, capacity+1)}
}

// size is the physical length of the backing array, Cap()+1.
func (b *RingBuffer) size() int { return len(b.buf) }

// Cap returns the maximum number of bytes the buffer can hold.
func (b *RingBuffer) Cap() int { return len(b.buf) - 1 }

// Len returns the number of bytes currently buffered.
func (b *RingBuffer) Len() int {
	if b.end >= b.start {
		return b.end - b.start
	}
	return b.size() - b.start + b.end
}

// Free returns the remaining space, Cap()-Len().
func (b *RingBuffer) Free() int { return b.Cap() - b.Len() }

// Reset logically empties the buffer. The backing array is not
// cleared.
func (b *RingBuffer) Reset() { b.start = b.end }

// Advance drops up to n bytes from the front of the buffer and
// returns how many were dropped. An n beyond Len() drains the buffer;
// a non-positive n is a no-op.
func (b *RingBuffer) Advance(n int) int {
	if n <= 0 {
		return 0
	}
	if l := b.Len(); n > l {
		n = l
	}
	b.start = (b.start + n) % b.size()
	return n
}

// Peek copies the oldest len(dst) buffered bytes into dst without
// consuming them. It returns ErrOutOfBounds when fewer than len(dst)
// bytes are buffered; an empty dst always succeeds.
func (b *RingBuffer) Peek(dst []byte) error {
	if len(dst) == 0 {
		return nil
	}
	if len(dst) > b.Len() {
		return ErrOutOfBounds
	}
	b.copyOut(dst)
	return nil
}

// copyOut copies the oldest len(dst) buffered bytes into dst. The
// caller guarantees len(dst) <= b.Len().
func (b *RingBuffer) copyOut(dst []byte) {
	head := b.size() - b.start
	if len(dst) <= head {
		copy(dst, b.buf[b.start:b.start+len(dst)])
		return
	}
	copy(dst, b.buf[b.start:])
	copy(dst[head:], b.buf[:len(dst)-head])
}

// Append copies p to the back of the buffer. The write is all or
// nothing: when p exceeds the free space the buffer is left untouched
// and ErrOutOfBounds is returned. An empty p always succeeds.
func (b *RingBuffer) Append(p []byte) error {
	n := len(p)
	if n == 0 {
		return nil
	}
	if n > b.Free() {
		return ErrOutOfBounds
	}
	tail := b.size() - b.end
	if n <= tail {
		copy(b.buf[b.end:], p)
		b.end = (b.end + n) % b.size()
		return nil
	}
	copy(b.buf[b.end:], p[:tail])
	copy(b.buf, p[tail:])
	b.end = n - tail
	return nil
}

// FillFrom reads up to n bytes from src directly into the buffer's
// free space, retrying short reads until n bytes arrived or src
// reported an error. An n beyond Free() is clamped to it.
//
// FillFrom returns the number of bytes appended and the first error
// encountered; the error is nil whenever the clamped quota was met,
// even if src returned io.EOF alongside the final bytes.
func (b *RingBuffer) FillFrom(src io.Reader, n int) (int, error) {
	if free := b.Free(); n > free {
		n = free
	}
	var total int
	var err error
	for total < n && err == nil {
		var m int
		m, err = src.Read(b.writeSpan(n - total))
		if m > 0 {
			b.end = (b.end + m) % b.size()
			total += m
		}
	}
	if total >= n {
		return total, nil
	}
	return total, err
}

// fillOnce performs a single read from src into the largest free
// span at the back of the buffer and returns whatever arrived. A full
// buffer reads nothing.
func (b *RingBuffer) fillOnce(src io.Reader) (int, error) {
	free := b.Free()
	if free == 0 {
		return 0, nil
	}
	m, err := src.Read(b.writeSpan(free))
	if m > 0 {
		b.end = (b.end + m) % b.size()
	}
	return m, err
}

// writeSpan returns the largest contiguous writable slice at the back
// of the buffer, at most limit bytes. The caller guarantees
// 0 < limit <= b.Free().
func (b *RingBuffer) writeSpan(limit int) []byte {
	span := b.size() - b.end
	if b.end < b.start {
		span = b.start - b.end - 1
	} else if b.start == 0 {
		span--
	}
	if span > limit {
		span = limit
	}
	return b.buf[b.end : b.end+span]
}

// At returns the i'th oldest buffered byte without consuming
// anything. It returns ErrOutOfBounds when i is negative or beyond
// the buffered region.
func (b *RingBuffer) At(i int) (byte, error) {
	if i < 0 || i >= b.Len() {
		return 0, ErrOutOfBounds
	}
	return b.buf[(b.start+i)%b.size()], nil
}

// Clone returns a deep copy of b sharing no storage with it.
func (b *RingBuffer) Clone() *RingBuffer {
	c := &RingBuffer{
		buf:   make([]byte, len(b.buf)),
		start: b.start,
		end:   b.end,
	}
	copy(c.buf, b.buf)
	return c
}
