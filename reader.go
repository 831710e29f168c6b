package ringio

import "io"

// BufferedReader stages bytes from an io.Reader in a RingBuffer so a
// parser can look ahead without committing to a read.
//
// Two counters tie the reader to its stream: NRead, the total number
// of bytes ingested from the source, and Pos, the total number
// delivered to or skipped by the caller. Their difference is always
// exactly the number of bytes sitting in the buffer.
//
// BufferedReader is not safe for concurrent use.
type BufferedReader struct {
	buf   *RingBuffer
	src   io.Reader
	nread uint64 // total bytes ingested from src, including prefilled ones
	pos   uint64 // total bytes delivered to or skipped by the caller
}

var _ io.Reader = (*BufferedReader)(nil)

// NewBufferedReader couples buf and src. Bytes already sitting in buf
// count as ingested, so Buffered reports them immediately.
func NewBufferedReader(buf *RingBuffer, src io.Reader) *BufferedReader {
	return &BufferedReader{
		buf:   buf,
		src:   src,
		nread: uint64(buf.Len()),
	}
}

// NRead returns the total number of bytes ingested from the source,
// including bytes still buffered.
func (r *BufferedReader) NRead() uint64 { return r.nread }

// Pos returns the caller's absolute position in the stream: the total
// number of bytes handed out by Consume, Skip, Read and Discard.
func (r *BufferedReader) Pos() uint64 { return r.pos }

// Buffered returns the number of bytes staged ahead of the caller.
func (r *BufferedReader) Buffered() int { return int(r.nread - r.pos) }

// Cap returns the capacity of the backing buffer.
func (r *BufferedReader) Cap() int { return r.buf.Cap() }

// Peek fills dst with the next len(dst) bytes of the stream without
// consuming them, refilling from the source as needed. It returns the
// number of bytes copied.
//
// A dst longer than the buffer capacity can never be satisfied and
// fails with ErrOutOfBounds before touching the source. When the
// source ends short of len(dst), Peek copies what arrived and returns
// io.EOF alongside the shorter count. A source failure surfaces as a
// *SourceError; bytes obtained before the failure stay buffered.
func (r *BufferedReader) Peek(dst []byte) (int, error) {
	n := len(dst)
	if n == 0 {
		return 0, nil
	}
	if n > r.buf.Cap() {
		return 0, ErrOutOfBounds
	}
	var result error
	if shortfall := n - r.buf.Len(); shortfall > 0 {
		got, err := r.buf.FillFrom(r.src, shortfall)
		r.nread += uint64(got)
		if err == io.EOF {
			result = io.EOF
		} else if err != nil {
			return 0, &SourceError{Op: "peek", Err: err}
		}
	}
	avail := n
	if l := r.buf.Len(); avail > l {
		avail = l
	}
	r.buf.copyOut(dst[:avail])
	return avail, result
}

// Consume copies up to len(dst) buffered bytes into dst, drops them
// from the buffer and returns the number copied. It never touches the
// source; an empty buffer yields 0.
func (r *BufferedReader) Consume(dst []byte) int {
	n := len(dst)
	if l := r.buf.Len(); n > l {
		n = l
	}
	if n == 0 {
		return 0
	}
	r.buf.copyOut(dst[:n])
	r.buf.Advance(n)
	r.pos += uint64(n)
	return n
}

// Skip drops up to n buffered bytes without copying them anywhere and
// returns the number dropped. Like Consume it never touches the
// source.
func (r *BufferedReader) Skip(n int) int {
	n = r.buf.Advance(n)
	r.pos += uint64(n)
	return n
}

// Read implements io.Reader. Buffered bytes are drained first, then
// the remainder is read from the source directly, retrying short
// reads until dst is full or the stream ends. A count shorter than
// len(dst) always arrives with io.EOF or a *SourceError; a full dst
// returns a nil error.
func (r *BufferedReader) Read(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	n := r.Consume(dst)
	var err error
	for n < len(dst) && err == nil {
		var m int
		m, err = r.src.Read(dst[n:])
		if m > 0 {
			n += m
			r.pos += uint64(m)
			r.nread += uint64(m)
		}
	}
	if n == len(dst) {
		return n, nil
	}
	if err != io.EOF {
		return n, &SourceError{Op: "read", Err: err}
	}
	return n, io.EOF
}

// Discard drops everything currently buffered, moves the caller's
// position past it and returns the number of bytes dropped.
func (r *BufferedReader) Discard() int {
	n := r.buf.Len()
	r.buf.Reset()
	r.pos += uint64(n)
	return n
}

// Fill performs a single read from the source into the buffer's free
// space and returns the number of bytes staged. Unlike Prefetch it
// does not insist on a quota: it blocks for at most one source read
// and accepts whatever arrives, which is what incremental parsers
// want while waiting for more input. A full buffer is a no-op.
//
// The error is io.EOF when the source ended and a *SourceError when
// it failed; bytes obtained stay buffered either way.
func (r *BufferedReader) Fill() (int, error) {
	m, err := r.buf.fillOnce(r.src)
	r.nread += uint64(m)
	if err != nil && err != io.EOF {
		return m, &SourceError{Op: "fill", Err: err}
	}
	return m, err
}

// Prefetch ensures at least n bytes are buffered, reading from the
// source as needed. An n beyond the buffer capacity is clamped to it.
//
// Prefetch returns nil once the bytes are available, io.EOF when the
// source ended first, and a *SourceError on failure. Bytes obtained
// before an error stay buffered, so callers may still work through
// whatever Buffered reports.
func (r *BufferedReader) Prefetch(n int) error {
	if c := r.buf.Cap(); n > c {
		n = c
	}
	shortfall := n - r.buf.Len()
	if shortfall <= 0 {
		return nil
	}
	got, err := r.buf.FillFrom(r.src, shortfall)
	r.nread += uint64(got)
	if err != nil && err != io.EOF {
		return &SourceError{Op: "prefetch", Err: err}
	}
	return err
}

// ByteAt returns the i'th buffered byte past the current position
// without consuming it. It returns ErrOutOfBounds when i is negative
// or not yet buffered; it never touches the source.
func (r *BufferedReader) ByteAt(i int) (byte, error) {
	return r.buf.At(i)
}
