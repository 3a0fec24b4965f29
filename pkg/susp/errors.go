package susp

import "fmt"

// SUSPError reports a malformed system-use entry encountered mid-decode. The
// entries already decoded from the area are preserved on Entries rather than
// discarded: per spec, a malformed SUSP entry degrades the record (raw ISO
// name, no Rock Ridge) instead of aborting the whole directory read.
type SUSPError struct {
	Entries []*SystemUseEntry
	Offset  int
	Err     error
}

func (e *SUSPError) Error() string {
	return fmt.Sprintf("susp: malformed entry at offset %d: %v", e.Offset, e.Err)
}

func (e *SUSPError) Unwrap() error {
	return e.Err
}
