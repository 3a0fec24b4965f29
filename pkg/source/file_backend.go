package source

import (
	"context"
	"fmt"
	"io"
	"os"
)

// FileBackend is a Backend over a local file, grounded on the teacher's
// direct os.File.ReadAt use throughout iso.go and pkg/directory: positioned
// reads, no streaming state.
type FileBackend struct {
	file *os.File
	size int64
}

// NewFileBackend opens path read-only and wraps it as a Backend.
func NewFileBackend(path string) (*FileBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	return &FileBackend{file: f, size: info.Size()}, nil
}

// NewFileBackendFromFile adapts an already-open file, e.g. one handed in by
// a caller that manages its own lifecycle.
func NewFileBackendFromFile(f *os.File) (*FileBackend, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	return &FileBackend{file: f, size: info.Size()}, nil
}

func (b *FileBackend) FetchAt(_ context.Context, offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := b.file.ReadAt(buf, offset)
	if err != nil && !(err == io.EOF && n == length) {
		return nil, fmt.Errorf("read %d bytes at offset %d: %w", length, offset, err)
	}
	return buf, nil
}

func (b *FileBackend) Size(_ context.Context) (int64, error) {
	return b.size, nil
}

// Close releases the underlying file handle.
func (b *FileBackend) Close() error {
	return b.file.Close()
}
