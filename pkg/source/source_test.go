package source

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend is an in-memory Backend over a byte slice, used so these tests
// don't depend on filesystem fixtures.
type memBackend struct {
	data []byte
}

func (m *memBackend) FetchAt(_ context.Context, offset int64, length int) ([]byte, error) {
	if offset+int64(length) > int64(len(m.data)) {
		return nil, assert.AnError
	}
	out := make([]byte, length)
	copy(out, m.data[offset:offset+int64(length)])
	return out, nil
}

func (m *memBackend) Size(_ context.Context) (int64, error) {
	return int64(len(m.data)), nil
}

// buildPlainImage builds a minimal 2048-byte-sector image with a valid
// standard identifier at logical sector 16 and distinct filler bytes per
// sector so reads can be asserted against their source sector.
func buildPlainImage(sectors int) []byte {
	buf := make([]byte, sectors*2048)
	for i := 0; i < sectors; i++ {
		for j := 0; j < 2048; j++ {
			buf[i*2048+j] = byte(i)
		}
	}
	copy(buf[16*2048+1:16*2048+6], []byte("CD001"))
	return buf
}

func newPlainSource(t *testing.T, sectors int) *Source {
	t.Helper()
	img := buildPlainImage(sectors)
	s, err := Open(context.Background(), &memBackend{data: img})
	require.NoError(t, err)
	return s
}

func TestOpen_DetectsPlainSectorFormat(t *testing.T) {
	s := newPlainSource(t, 20)
	assert.False(t, s.rawMode)
	assert.EqualValues(t, 2048, s.SectorSize())
}

func TestOpen_DetectsRawSectorFormat(t *testing.T) {
	sectors := 20
	buf := make([]byte, sectors*rawSectorSize)
	for i := 0; i < sectors; i++ {
		for j := 0; j < 2048; j++ {
			buf[i*rawSectorSize+rawSectorDataOffset+j] = byte(i)
		}
	}
	copy(buf[16*rawSectorSize+rawSectorDataOffset+1:16*rawSectorSize+rawSectorDataOffset+6], []byte("CD001"))

	s, err := Open(context.Background(), &memBackend{data: buf})
	require.NoError(t, err)
	assert.True(t, s.rawMode)
}

func TestOpen_NoStandardIdentifier(t *testing.T) {
	buf := make([]byte, 20*2048)
	_, err := Open(context.Background(), &memBackend{data: buf})
	assert.Error(t, err)
}

func TestUnpackRaw_ReadsAcrossSectorBoundary(t *testing.T) {
	s := newPlainSource(t, 20)
	s.Seek(2047)
	data, err := s.UnpackRaw(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 1, 1}, data)
	assert.EqualValues(t, 2051, s.Tell())
}

func TestUnpackBoundary_AdvancesToNextSector(t *testing.T) {
	s := newPlainSource(t, 20)
	s.Seek(10)
	s.UnpackBoundary()
	assert.EqualValues(t, 2048, s.Tell())

	s.Seek(2048)
	s.UnpackBoundary()
	assert.EqualValues(t, 2048, s.Tell())
}

func TestSaveRestoreCursor_RoundTrips(t *testing.T) {
	s := newPlainSource(t, 20)
	s.Seek(100)
	saved := s.SaveCursor()
	s.Seek(5000)
	s.RestoreCursor(saved)
	assert.EqualValues(t, 100, s.Tell())
}

func TestUnpack32_AgreesOnBothEndianValue(t *testing.T) {
	img := buildPlainImage(20)
	field := make([]byte, 8)
	// little-endian then big-endian encoding of 42, ECMA-119 7.3.3.
	field[0] = 42
	field[7] = 42
	copy(img[17*2048:], field)

	s, err := Open(context.Background(), &memBackend{data: img})
	require.NoError(t, err)
	s.Seek(17 * 2048)
	v, err := s.Unpack32(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)
}

func TestUnpack32_MismatchedEndianValuesError(t *testing.T) {
	img := buildPlainImage(20)
	field := make([]byte, 8)
	field[0] = 42
	field[7] = 43
	copy(img[17*2048:], field)

	s, err := Open(context.Background(), &memBackend{data: img})
	require.NoError(t, err)
	s.Seek(17 * 2048)
	_, err = s.Unpack32(context.Background())
	assert.Error(t, err)
}

func TestUnpackString_TrimsTrailingSpaces(t *testing.T) {
	img := buildPlainImage(20)
	copy(img[17*2048:], []byte("HELLO      "))

	s, err := Open(context.Background(), &memBackend{data: img})
	require.NoError(t, err)
	s.Seek(17 * 2048)
	str, err := s.UnpackString(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", str)
}

func TestUnpackRecord_ZeroLengthSignalsSectorPadding(t *testing.T) {
	s := newPlainSource(t, 20)
	s.Seek(2047) // sector 0's last byte, which is 0x00 for sector index 0
	_, err := s.UnpackRecord(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestLogicalSector_CoalescesAndCaches(t *testing.T) {
	s := newPlainSource(t, 64)
	ctx := context.Background()

	first, err := s.logicalSector(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, byte(5), first[0])

	// A neighboring sector within the coalesced fetch window should now be
	// cache-resident without another backend call.
	s.backend = &failingBackend{}
	second, err := s.logicalSector(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, byte(6), second[0])
}

type failingBackend struct{}

func (f *failingBackend) FetchAt(context.Context, int64, int) ([]byte, error) {
	return nil, assert.AnError
}

func (f *failingBackend) Size(context.Context) (int64, error) {
	return 0, assert.AnError
}

func TestGetStream_ReadsBoundedExtent(t *testing.T) {
	s := newPlainSource(t, 20)
	r := s.GetStream(3, 2048)
	buf := make([]byte, 2048)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 2048, n)
	assert.Equal(t, byte(3), buf[0])
}
