// Package source implements the cursor-and-cache abstraction every decoder
// in this module reads through: a Source hides sector addressing, the
// 2048-vs-2352-byte-sector distinction, and backend I/O behind a handful of
// typed "unpack" operations, the way a parser's input stream would in any
// other format library — except here the stream is randomly seekable and
// shared by every decoder that walks the image.
package source

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bgrewell/iso9660nav/pkg/consts"
	"github.com/bgrewell/iso9660nav/pkg/encoding"
	"github.com/bgrewell/iso9660nav/pkg/logging"
)

const (
	rawSectorSize       = 2352
	rawSectorDataOffset = 16

	// defaultMinFetchSectors is how many logical sectors a single cache miss
	// pulls from the backend, trading a larger single read for fewer round
	// trips on backends where each FetchAt is expensive (notably HTTPBackend).
	defaultMinFetchSectors = 16
)

// Cursor is an opaque saved position in a Source's logical byte address
// space. Decoders that need to look ahead and then resume (SUSP continuation
// areas, path-table-miss child walks) save one before the detour and restore
// it after.
type Cursor int64

// Source is the shared read cursor and sector cache for one mounted image.
// It is not safe for concurrent use: per spec, callers that traverse the
// same Source from multiple goroutines must serialize access externally.
type Source struct {
	backend    Backend
	logger     logging.Logger
	sectorSize int64
	rawMode    bool
	minFetch   int64

	mu    sync.Mutex
	cache map[int64][]byte

	pos int64

	// suspSkip is the root's SP-entry-declared LEN_SKP (SUSP-112 5.1): the
	// number of bytes every directory record's system-use area skips
	// before its first real SUSP entry. It is discovered while decoding
	// the root's own self-entry (which itself uses a skip of 0) and then
	// applied to every record decoded afterward.
	suspSkip int

	// rockRidgeDisabled forces every Record decoded through this Source to
	// ignore Rock Ridge entries even when present (option.WithoutRockRidge).
	rockRidgeDisabled bool
}

// Option configures a Source at construction time.
type Option func(*Source)

// WithLogger attaches a logger used for cache-miss and sector-format
// detection diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithMinFetch overrides how many logical sectors are coalesced per cache
// miss. The default favors HTTP backends; callers reading a local file with
// a cheap FetchAt can lower it.
func WithMinFetch(sectors int64) Option {
	return func(s *Source) {
		if sectors > 0 {
			s.minFetch = sectors
		}
	}
}

// Open probes backend's sector format (2048-byte logical sectors, or
// 2352-byte raw sectors carrying a 2048-byte logical payload) by looking for
// the "CD001" standard identifier at the start of the Primary/Boot volume
// descriptor, which always lives at logical sector 16.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Source, error) {
	s := &Source{
		backend:    backend,
		logger:     *logging.DefaultLogger(),
		sectorSize: consts.ISO9660_SECTOR_SIZE,
		minFetch:   defaultMinFetchSectors,
		cache:      make(map[int64][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.detectSectorFormat(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) detectSectorFormat(ctx context.Context) error {
	const probeOffset = consts.ISO9660_SYSTEM_AREA_SECTORS * consts.ISO9660_SECTOR_SIZE

	plain, err := s.backend.FetchAt(ctx, probeOffset, 6)
	if err == nil && string(plain[1:6]) == consts.ISO9660_STD_IDENTIFIER {
		s.rawMode = false
		s.logger.Debug("detected 2048-byte logical sectors")
		return nil
	}

	rawOffset := int64(consts.ISO9660_SYSTEM_AREA_SECTORS)*rawSectorSize + rawSectorDataOffset
	raw, err := s.backend.FetchAt(ctx, rawOffset, 6)
	if err == nil && string(raw[1:6]) == consts.ISO9660_STD_IDENTIFIER {
		s.rawMode = true
		s.logger.Debug("detected 2352-byte raw sectors")
		return nil
	}

	return newSourceError("detect-sector-format", probeOffset, fmt.Errorf("standard identifier %q not found at sector 16 in either 2048- or 2352-byte sector layout", consts.ISO9660_STD_IDENTIFIER))
}

// SectorSize is the logical (2048-byte) sector size in effect, regardless of
// whether the backend is raw or plain.
func (s *Source) SectorSize() int64 {
	return s.sectorSize
}

// sectorGeometry returns (base offset of sector 0 in backend bytes, stride
// between consecutive sector starts in backend bytes) for the detected
// sector format.
func (s *Source) sectorGeometry() (base, stride int64) {
	if s.rawMode {
		return rawSectorDataOffset, rawSectorSize
	}
	return 0, s.sectorSize
}

// logicalSector returns the decoded 2048-byte payload for the given sector
// index, fetching and caching a coalesced run starting there on a miss.
func (s *Source) logicalSector(ctx context.Context, index int64) ([]byte, error) {
	s.mu.Lock()
	if data, ok := s.cache[index]; ok {
		s.mu.Unlock()
		return data, nil
	}
	s.mu.Unlock()

	base, stride := s.sectorGeometry()
	n := s.minFetch
	rawBase := base + index*stride
	rawLen := n * stride

	buf, err := s.backend.FetchAt(ctx, rawBase, int(rawLen))
	if err != nil {
		// Fall back to a single-sector fetch: the coalesced run may have
		// run past the end of a short backend.
		buf, err = s.backend.FetchAt(ctx, base+index*stride, int(s.sectorSize))
		if err != nil {
			return nil, newSourceError("fetch-sector", index*s.sectorSize, err)
		}
		n = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var result []byte
	for i := int64(0); i < n; i++ {
		start := i * stride
		if start+s.sectorSize > int64(len(buf)) {
			break
		}
		sector := make([]byte, s.sectorSize)
		copy(sector, buf[start:start+s.sectorSize])
		s.cache[index+i] = sector
		if i == 0 {
			result = sector
		}
	}
	if result == nil {
		return nil, newSourceError("fetch-sector", index*s.sectorSize, fmt.Errorf("short read"))
	}
	return result, nil
}

// readAt reads n bytes at the given logical byte offset without touching the
// cursor, spanning sector boundaries transparently.
func (s *Source) readAt(ctx context.Context, pos int64, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	remaining := n
	for remaining > 0 {
		sectorIndex := pos / s.sectorSize
		sectorOffset := pos % s.sectorSize
		sector, err := s.logicalSector(ctx, sectorIndex)
		if err != nil {
			return nil, err
		}
		take := int(s.sectorSize - sectorOffset)
		if take > remaining {
			take = remaining
		}
		out = append(out, sector[sectorOffset:sectorOffset+int64(take)]...)
		pos += int64(take)
		remaining -= take
	}
	return out, nil
}

// ReadAt implements io.ReaderAt over the Source's logical address space so
// GetStream can hand callers a bounded io.SectionReader.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	data, err := s.readAt(context.Background(), off, len(p))
	if err != nil {
		return 0, err
	}
	copy(p, data)
	return len(data), nil
}

// Seek moves the shared cursor to an absolute logical byte offset.
func (s *Source) Seek(pos int64) {
	s.pos = pos
}

// Tell returns the cursor's current logical byte offset.
func (s *Source) Tell() int64 {
	return s.pos
}

// SaveCursor snapshots the current cursor position.
func (s *Source) SaveCursor() Cursor {
	return Cursor(s.pos)
}

// RestoreCursor resets the cursor to a previously saved position.
func (s *Source) RestoreCursor(c Cursor) {
	s.pos = int64(c)
}

// UnpackRaw reads n bytes at the cursor and advances it by n.
func (s *Source) UnpackRaw(ctx context.Context, n int) ([]byte, error) {
	data, err := s.readAt(ctx, s.pos, n)
	if err != nil {
		return nil, err
	}
	s.pos += int64(n)
	return data, nil
}

// Unpack32 reads an 8-byte both-endian field (ECMA-119 7.3.3) and advances
// the cursor by 8.
func (s *Source) Unpack32(ctx context.Context) (uint32, error) {
	data, err := s.UnpackRaw(ctx, 8)
	if err != nil {
		return 0, err
	}
	v, err := encoding.UnmarshalUint32LSBMSB(data)
	if err != nil {
		return 0, newSourceError("unpack32", s.pos-8, err)
	}
	return v, nil
}

// Unpack16 reads a 4-byte both-endian field (ECMA-119 7.2.3) and advances
// the cursor by 4.
func (s *Source) Unpack16(ctx context.Context) (uint16, error) {
	data, err := s.UnpackRaw(ctx, 4)
	if err != nil {
		return 0, err
	}
	v, err := encoding.UnmarshalUint16LSBMSB(data)
	if err != nil {
		return 0, newSourceError("unpack16", s.pos-4, err)
	}
	return v, nil
}

// UnpackString reads n bytes and trims ISO9660's space-padding.
func (s *Source) UnpackString(ctx context.Context, n int) (string, error) {
	data, err := s.UnpackRaw(ctx, n)
	if err != nil {
		return "", err
	}
	end := len(data)
	for end > 0 && data[end-1] == ' ' {
		end--
	}
	return string(data[:end]), nil
}

// UnpackBoundary advances the cursor to the start of the next logical
// sector, or leaves it untouched if it already sits on one.
func (s *Source) UnpackBoundary() {
	if rem := s.pos % s.sectorSize; rem != 0 {
		s.pos += s.sectorSize - rem
	}
}

// UnpackVDDatetime reads the 17-byte ASCII volume-descriptor timestamp at
// the cursor (ECMA-119 8.4.26.1).
func (s *Source) UnpackVDDatetime(ctx context.Context) (time.Time, error) {
	data, err := s.UnpackRaw(ctx, 17)
	if err != nil {
		return time.Time{}, err
	}
	t, err := encoding.DecodeVolumeDescriptorTime(data)
	if err != nil {
		return time.Time{}, newSourceError("unpack-vd-datetime", s.pos-17, err)
	}
	return t, nil
}

// UnpackDirDatetime reads the 7-byte directory-record timestamp at the
// cursor (ECMA-119 9.1.5).
func (s *Source) UnpackDirDatetime(ctx context.Context) (time.Time, error) {
	data, err := s.UnpackRaw(ctx, 7)
	if err != nil {
		return time.Time{}, err
	}
	t, err := encoding.DecodeDirectoryTime(data)
	if err != nil {
		return time.Time{}, newSourceError("unpack-dir-datetime", s.pos-7, err)
	}
	return t, nil
}

// UnpackVolumeDescriptor reads one full logical sector at the cursor (every
// volume descriptor occupies exactly one) and advances the cursor past it.
func (s *Source) UnpackVolumeDescriptor(ctx context.Context) ([]byte, error) {
	return s.UnpackRaw(ctx, int(s.sectorSize))
}

// UnpackRecord reads one directory record at the cursor: the first byte is
// the record's total length (including itself); a zero length means the
// remainder of the current sector is padding, in which case UnpackRecord
// returns io.EOF without moving the cursor so the caller can UnpackBoundary
// and continue with the next sector.
func (s *Source) UnpackRecord(ctx context.Context) ([]byte, error) {
	lenByte, err := s.readAt(ctx, s.pos, 1)
	if err != nil {
		return nil, err
	}
	length := int(lenByte[0])
	if length == 0 {
		return nil, io.EOF
	}
	return s.UnpackRaw(ctx, length)
}

// UnpackSUSP reads length bytes of raw SUSP entry data at the cursor. It is
// a named alias over UnpackRaw so SUSP decoding reads self-documenting next
// to the other typed unpack_* operations.
func (s *Source) UnpackSUSP(ctx context.Context, length int) ([]byte, error) {
	return s.UnpackRaw(ctx, length)
}

// SetSUSPSkip records the root's SP-declared LEN_SKP so subsequent
// UnpackSUSP-area decoding elsewhere in the module can skip it.
func (s *Source) SetSUSPSkip(n int) {
	s.suspSkip = n
}

// SUSPSkip returns the number of bytes a directory record's system-use area
// should skip before its first real SUSP entry, or 0 if SetSUSPSkip was
// never called (no SUSP/Rock Ridge in effect, or still decoding the root's
// own self-entry that declares the skip).
func (s *Source) SUSPSkip() int {
	return s.suspSkip
}

// SetRockRidgeDisabled forces every Record decoded through this Source to
// ignore its Rock Ridge entries even when present, falling back to plain
// ISO/Joliet names, permissions and timestamps. Set by option.WithoutRockRidge.
func (s *Source) SetRockRidgeDisabled(disabled bool) {
	s.rockRidgeDisabled = disabled
}

// RockRidgeDisabled reports whether SetRockRidgeDisabled(true) was called.
func (s *Source) RockRidgeDisabled() bool {
	return s.rockRidgeDisabled
}

// GetStream returns a bounded reader over a directory record's extent
// without disturbing the shared cursor.
func (s *Source) GetStream(extentLBA uint32, size uint32) io.Reader {
	return io.NewSectionReader(s, int64(extentLBA)*s.sectorSize, int64(size))
}
