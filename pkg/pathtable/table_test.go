package pathtable

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
)

func TestNewRecord(t *testing.T) {
	logger := logr.Discard()
	r := NewRecord(logger)
	assert.NotNil(t, r)
}

func TestRecord_Unmarshal_ValidData(t *testing.T) {
	logger := logr.Discard()
	r := NewRecord(logger)
	data := []byte{
		5, 0, // DirectoryIdentifierLength, ExtendedAttributeRecordLength
		1, 0, 0, 0, // LocationOfExtent
		2, 0, // ParentDirectoryNumber
		'a', 'b', 'c', 'd', 'e', // DirectoryIdentifier
	}

	err := r.Unmarshal(data)
	assert.NoError(t, err)
	assert.Equal(t, byte(5), r.DirectoryIdentifierLength)
	assert.Equal(t, byte(0), r.ExtendedAttributeRecordLength)
	assert.Equal(t, uint32(1), r.LocationOfExtent)
	assert.Equal(t, uint16(2), r.ParentDirectoryNumber)
	assert.Equal(t, "abcde", r.DirectoryIdentifier)
	assert.Equal(t, []byte{0x00}, r.Padding)
}

func TestRecord_Unmarshal_InvalidDataLength(t *testing.T) {
	logger := logr.Discard()
	r := NewRecord(logger)
	data := []byte{1, 2, 3}

	err := r.Unmarshal(data)
	assert.Error(t, err)
}

func TestRecord_Unmarshal_DirectoryIdentifierOutOfRange(t *testing.T) {
	logger := logr.Discard()
	r := NewRecord(logger)
	data := []byte{
		10, 0,
		1, 0, 0, 0,
		2, 0,
		'a', 'b', 'c', 'd', 'e',
	}

	err := r.Unmarshal(data)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "directory identifier out of range")
}

func TestRecordLength(t *testing.T) {
	assert.Equal(t, 14, RecordLength(5)) // odd identifier gets a padding byte
	assert.Equal(t, 14, RecordLength(6))
}
