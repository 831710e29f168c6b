package ringio

import "errors"

// ErrOutOfBounds reports a request the buffer can never satisfy:
// appending past the free space, peeking more than the capacity, or
// indexing beyond the buffered region.
var ErrOutOfBounds = errors.New("ringio: out of bounds")

// SourceError wraps a failure reported by the underlying source
// during a refill. Bytes obtained before the failure remain buffered
// and counted.
type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string {
	return "ringio: operation '" + e.Op + "' failed reading source: " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
