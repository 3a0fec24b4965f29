package iso9660

import (
	"fmt"
	"strings"
)

// LookupMiss reports that Record could not resolve a path against the
// mounted hierarchy. Path is the full requested component sequence; Resolved
// is the prefix of it that did match, letting a caller report exactly where
// the walk fell off.
type LookupMiss struct {
	Path     []string
	Resolved int
}

func (e *LookupMiss) Error() string {
	return fmt.Sprintf("iso9660: %q not found", strings.Join(e.Path, "/"))
}
