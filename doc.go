// Package ringio provides a fixed-capacity circular byte buffer and a
// buffered reader that stages bytes from an io.Reader ahead of a
// parser.
//
// RingBuffer is the storage primitive: a FIFO of bytes over a single
// backing array that never reallocates after construction. Appends,
// copies and drops all run in at most two memcpy-sized steps.
//
// BufferedReader couples a RingBuffer with a byte source and adds the
// stream-side bookkeeping a protocol parser needs: peeking ahead
// without consuming, consuming without re-reading, skipping,
// prefetching and absolute position tracking.
//
// Neither type is safe for concurrent use; each value belongs to one
// goroutine at a time.
package ringio
