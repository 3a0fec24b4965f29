// Package pathtable decodes the ECMA-119 L-path-table (9.4) and builds the
// name-keyed trie that lets the façade resolve a directory's extent without
// walking the whole tree. The trie is parametrised by a name-normalization
// function so the same structure serves both the Primary (upper-case ASCII)
// and Joliet (UCS-2BE, case-preserving) hierarchies.
package pathtable

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/iso9660nav/pkg/logging"
	"github.com/go-logr/logr"
)

// NewRecord creates a new Record with the provided logger.
func NewRecord(logger logr.Logger) *Record {
	return &Record{logger: logger}
}

// Record is a single decoded L-path-table entry (ECMA-119 9.4).
type Record struct {
	DirectoryIdentifierLength     byte
	ExtendedAttributeRecordLength byte
	LocationOfExtent              uint32
	ParentDirectoryNumber         uint16
	DirectoryIdentifier           string
	Padding                       []byte
	logger                        logr.Logger
}

// Unmarshal parses one path table record from data. data must be sized to
// exactly this record (8-byte header plus the directory identifier plus,
// for an odd-length identifier, one padding byte) — the same slicing rhythm
// Decode callers use elsewhere in this module for directory records.
func (r *Record) Unmarshal(data []byte) error {
	if len(data) < 9 {
		return fmt.Errorf("invalid data length")
	}

	r.DirectoryIdentifierLength = data[0]
	r.ExtendedAttributeRecordLength = data[1]
	r.LocationOfExtent = binary.LittleEndian.Uint32(data[2:6])
	r.ParentDirectoryNumber = binary.LittleEndian.Uint16(data[6:8])

	dirIDEnd := 8 + int(r.DirectoryIdentifierLength)
	if dirIDEnd > len(data) {
		return fmt.Errorf("directory identifier out of range: end=%d, data len=%d", dirIDEnd, len(data))
	}
	r.DirectoryIdentifier = string(data[8:dirIDEnd])

	r.Padding = nil
	if r.DirectoryIdentifierLength%2 != 0 {
		r.Padding = []byte{0}
	}

	r.logger.V(logging.LEVEL_TRACE).Info("path table record",
		"directoryIdentifierLength", r.DirectoryIdentifierLength,
		"extendedAttributeRecordLength", r.ExtendedAttributeRecordLength,
		"locationOfExtent", r.LocationOfExtent,
		"parentDirectoryNumber", r.ParentDirectoryNumber,
	)

	return nil
}

// RecordLength returns the total on-disk length of this entry, including
// the 8-byte header and any odd-length padding byte (ECMA-119 9.4.9).
func RecordLength(directoryIdentifierLength byte) int {
	n := 8 + int(directoryIdentifierLength)
	if directoryIdentifierLength%2 != 0 {
		n++
	}
	return n
}
