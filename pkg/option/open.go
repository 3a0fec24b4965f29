// Package option carries the functional options accepted by iso9660.Open,
// kept separate from the root package the way the teacher split its mount
// options out from its top-level Image type.
package option

import (
	"context"

	"github.com/go-logr/logr"
)

// OpenOptions is the accumulated result of applying every OpenOption passed
// to Open.
type OpenOptions struct {
	Context     context.Context
	Logger      logr.Logger
	MinFetch    int64
	NoJoliet    bool
	NoRockRidge bool
}

// OpenOption configures a mount. The zero value of OpenOptions already
// matches this module's default behavior: prefer Joliet when present, honor
// Rock Ridge when present, and keep source's default cache-miss fetch size,
// which favors a high-latency backend such as HTTPBackend.
type OpenOption func(*OpenOptions)

// WithContext supplies the context used for every read issued while probing
// and mounting the image. Defaults to context.Background().
func WithContext(ctx context.Context) OpenOption {
	return func(o *OpenOptions) {
		o.Context = ctx
	}
}

// WithLogger attaches a logr.Logger that receives mount and decode
// diagnostics. Defaults to a discarding logger.
func WithLogger(logger logr.Logger) OpenOption {
	return func(o *OpenOptions) {
		o.Logger = logger
	}
}

// WithMinFetch overrides how many logical sectors are coalesced per cache
// miss (see source.WithMinFetch). Raise it for a slow or high-latency
// backend such as HTTPBackend; lower it for a local file where a single
// sector fetch is already cheap.
func WithMinFetch(sectors int64) OpenOption {
	return func(o *OpenOptions) {
		o.MinFetch = sectors
	}
}

// WithoutJoliet forces Root() and Record() to resolve against the plain
// ISO9660 hierarchy even when a Joliet Supplementary Volume Descriptor is
// present. By default, Joliet is preferred whenever the image carries one,
// since it decodes long mixed-case names that the 8.3-style ISO9660 tree
// would otherwise either truncate or version-suffix.
func WithoutJoliet() OpenOption {
	return func(o *OpenOptions) {
		o.NoJoliet = true
	}
}

// WithoutRockRidge disables Rock Ridge decoding even when the root
// directory's SUSP area advertises an ER entry for it, falling back to
// plain ISO/Joliet identifiers, permissions and timestamps.
func WithoutRockRidge() OpenOption {
	return func(o *OpenOptions) {
		o.NoRockRidge = true
	}
}

// Apply folds opts into a ready-to-use OpenOptions, filling in defaults for
// anything left unset.
func Apply(opts ...OpenOption) OpenOptions {
	o := OpenOptions{
		Context: context.Background(),
		Logger:  logr.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
