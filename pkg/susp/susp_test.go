package susp

import (
	"context"
	"testing"

	"github.com/bgrewell/iso9660nav/pkg/source"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func newTestSource(t *testing.T, sectors int) *source.Source {
	t.Helper()
	buf := make([]byte, sectors*2048)
	copy(buf[16*2048+1:16*2048+6], []byte("CD001"))
	s, err := source.Open(context.Background(), &memBackend{data: buf})
	require.NoError(t, err)
	return s
}

func susEntry(sig string, payload []byte) []byte {
	entry := make([]byte, 4+len(payload))
	copy(entry[0:2], sig)
	entry[2] = byte(4 + len(payload))
	entry[3] = 1
	copy(entry[4:], payload)
	return entry
}

func TestParseSystemUseEntries_PlainEntries(t *testing.T) {
	data := append(susEntry("PX", make([]byte, 32)), susEntry("NM", append([]byte{0}, []byte("file.txt")...))...)
	src := newTestSource(t, 20)
	entries, err := ParseSystemUseEntries(data, map[uint32]bool{}, src, logr.Discard())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, SystemUseEntryType("PX"), entries[0].Type())
	assert.Equal(t, SystemUseEntryType("NM"), entries[1].Type())
}

func TestParseSystemUseEntries_StopsAtPaddingByte(t *testing.T) {
	data := append(susEntry("PX", make([]byte, 32)), 0x00, 0x00, 0x00, 0x00)
	src := newTestSource(t, 20)
	entries, err := ParseSystemUseEntries(data, map[uint32]bool{}, src, logr.Discard())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestParseSystemUseEntries_MalformedEntryKeepsPriorProgress(t *testing.T) {
	good := susEntry("PX", make([]byte, 32))
	bad := []byte{'N', 'M', 2, 1} // entryLen=2 is below the minimum of 4
	data := append(good, bad...)

	src := newTestSource(t, 20)
	entries, err := ParseSystemUseEntries(data, map[uint32]bool{}, src, logr.Discard())
	require.Error(t, err)
	require.Len(t, entries, 1, "the entry decoded before the malformed one should survive")

	var suspErr *SUSPError
	require.ErrorAs(t, err, &suspErr)
	assert.Equal(t, len(good), suspErr.Offset)
}

func TestGetSystemUseEntries_HasRockRidgeViaExtensionRecord(t *testing.T) {
	erPayload := []byte{10, 0, 0, 1}
	erPayload = append(erPayload, []byte("RRIP_1991A")...)
	data := susEntry("ER", erPayload)

	src := newTestSource(t, 20)
	entries, err := GetSystemUseEntries(data, src, logr.Discard())
	require.NoError(t, err)
	assert.True(t, entries.HasRockRidge())
}

func TestGetSystemUseEntries_HasRockRidgeViaDirectEntryFallback(t *testing.T) {
	data := susEntry("PX", make([]byte, 32))
	src := newTestSource(t, 20)
	entries, err := GetSystemUseEntries(data, src, logr.Discard())
	require.NoError(t, err)
	assert.True(t, entries.HasRockRidge())
}

func TestGetSystemUseEntries_NoRockRidge(t *testing.T) {
	data := susEntry("SP", []byte{0xBE, 0xEF, 0x00})
	src := newTestSource(t, 20)
	entries, err := GetSystemUseEntries(data, src, logr.Discard())
	require.NoError(t, err)
	assert.False(t, entries.HasRockRidge())
}

func TestParseSystemUseEntries_ContinuationAreaIsFollowed(t *testing.T) {
	continuationSector := int64(10)
	continuationData := susEntry("NM", append([]byte{0}, []byte("continued.txt")...))

	// newTestSource does not expose its backing image, so build a source
	// over an image that carries the continuation payload instead.
	buf := make([]byte, 20*2048)
	copy(buf[16*2048+1:16*2048+6], []byte("CD001"))
	copy(buf[continuationSector*2048:], continuationData)
	s, err := source.Open(context.Background(), &memBackend{data: buf})
	require.NoError(t, err)

	ce := make([]byte, 24)
	// blockLocation both-endian
	ce[0] = byte(continuationSector)
	ce[7] = byte(continuationSector)
	// offset = 0, length of area = len(continuationData), both already zero/set below
	copy(ce[16:24], bothEndian32(uint32(len(continuationData))))
	data := susEntry("CE", ce)

	entries, err := ParseSystemUseEntries(data, map[uint32]bool{}, s, logr.Discard())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, SystemUseEntryType("NM"), entries[0].Type())
}

func bothEndian32(v uint32) []byte {
	out := make([]byte, 8)
	out[0] = byte(v)
	out[1] = byte(v >> 8)
	out[2] = byte(v >> 16)
	out[3] = byte(v >> 24)
	out[4] = byte(v >> 24)
	out[5] = byte(v >> 16)
	out[6] = byte(v >> 8)
	out[7] = byte(v)
	return out
}
