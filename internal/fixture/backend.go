package fixture

import (
	"context"
	"fmt"

	"github.com/bgrewell/iso9660nav/pkg/source"
)

// memBackend serves a fixture image straight out of memory, mirroring
// FileBackend's contract without touching disk.
type memBackend struct {
	data []byte
}

// NewBackend wraps an already-rendered image (as returned by Builder.Build)
// in a source.Backend.
func NewBackend(data []byte) source.Backend {
	return &memBackend{data: data}
}

func (m *memBackend) FetchAt(_ context.Context, offset int64, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+int64(length) > int64(len(m.data)) {
		return nil, fmt.Errorf("fixture: read [%d:%d) out of bounds for %d-byte image", offset, offset+int64(length), len(m.data))
	}
	out := make([]byte, length)
	copy(out, m.data[offset:offset+int64(length)])
	return out, nil
}

func (m *memBackend) Size(_ context.Context) (int64, error) {
	return int64(len(m.data)), nil
}

// BuildBackend renders the tree and wraps the result directly in a
// source.Backend, for tests that only need to mount the image.
func (b *Builder) BuildBackend() (source.Backend, error) {
	data, err := b.Build()
	if err != nil {
		return nil, err
	}
	return NewBackend(data), nil
}
