package source

import "fmt"

// SourceError wraps a failure that occurred while fetching or decoding bytes
// from a Source's backend. It carries the byte offset the failure occurred
// at so callers can report useful diagnostics without re-deriving it.
type SourceError struct {
	Offset int64
	Op     string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source: %s at offset %d: %v", e.Op, e.Offset, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func newSourceError(op string, offset int64, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{Offset: offset, Op: op, Err: err}
}
