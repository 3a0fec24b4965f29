package source

import "context"

// Backend is the minimal capability a Source needs from whatever holds the
// raw image bytes: read a range, and report the total size. Everything else
// (caching, sector arithmetic, both-endian decoding) is layered on top in
// Source so a Backend implementation stays a two-method adapter.
type Backend interface {
	// FetchAt reads length bytes starting at offset. Implementations must
	// return exactly length bytes or an error; short reads are an error.
	FetchAt(ctx context.Context, offset int64, length int) ([]byte, error)
	// Size returns the total size of the backing image in bytes.
	Size(ctx context.Context) (int64, error)
}
