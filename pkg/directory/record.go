// Package directory decodes ECMA-119 directory records: the fixed-layout
// header, the ISO or Joliet file identifier, and any SUSP/Rock Ridge tail.
// A Record's children are constructed lazily — Children() reads and decodes
// the extent each time it is called, and nothing below a record is read
// unless a caller asks for it, matching this module's data model (records aren't retained across
// a traversal unless the caller keeps them).
package directory

import (
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/bgrewell/iso9660nav/pkg/encoding"
	"github.com/bgrewell/iso9660nav/pkg/rockridge"
	"github.com/bgrewell/iso9660nav/pkg/source"
	"github.com/bgrewell/iso9660nav/pkg/susp"
	"github.com/go-logr/logr"
)

// Record is a single decoded ECMA-119 directory record, optionally extended
// with a Joliet name and/or Rock Ridge system-use entries.
type Record struct {
	LengthOfDirectoryRecord    uint8
	ExtendedAttributeRecordLen uint8
	LocationOfExtent           uint32
	DataLength                 uint32
	RecordingDateAndTime       time.Time
	Flags                      FileFlags
	FileUnitSize               uint8
	InterleaveGapSize          uint8
	VolumeSequenceNumber       uint16
	Identifier                 string

	systemUse []byte
	susEntry  *susp.SystemUseEntries

	joliet bool
	src    *source.Source
	logger logr.Logger
}

// var assertion kept next to the type it documents: Record satisfies
// fs.FileInfo so callers can drop it straight into anything expecting one.
var _ fs.FileInfo = (*Record)(nil)

// Decode decodes a single directory record from data (exactly
// LEN_DR == data[0] bytes, i.e. one entry sliced out of a directory
// extent or a volume descriptor's embedded root record). src is used to
// resolve SUSP continuation areas and, later, Children()/Open(); joliet
// selects the Joliet UCS-2BE identifier codec over the plain ISO one.
func Decode(data []byte, src *source.Source, joliet bool, logger logr.Logger) (*Record, error) {
	if len(data) < 34 {
		return nil, fmt.Errorf("directory record too short: %d bytes", len(data))
	}

	r := &Record{
		LengthOfDirectoryRecord:    data[0],
		ExtendedAttributeRecordLen: data[1],
		joliet:                     joliet,
		src:                        src,
		logger:                     logger,
	}

	loc, err := encoding.UnmarshalUint32LSBMSB(data[2:10])
	if err != nil {
		return nil, &source.SourceError{Offset: 2, Op: "location-of-extent", Err: err}
	}
	r.LocationOfExtent = loc

	dataLen, err := encoding.UnmarshalUint32LSBMSB(data[10:18])
	if err != nil {
		return nil, &source.SourceError{Offset: 10, Op: "data-length", Err: err}
	}
	r.DataLength = dataLen

	if t, err := encoding.DecodeDirectoryTime(data[18:25]); err == nil {
		r.RecordingDateAndTime = t
	}

	r.Flags.Set(data[25])
	r.FileUnitSize = data[26]
	r.InterleaveGapSize = data[27]

	volSeq, err := encoding.UnmarshalUint16LSBMSB(data[28:32])
	if err != nil {
		return nil, &source.SourceError{Offset: 28, Op: "volume-sequence-number", Err: err}
	}
	r.VolumeSequenceNumber = volSeq

	idLen := int(data[32])
	idStart := 33
	idEnd := idStart + idLen
	if idEnd > len(data) {
		return nil, fmt.Errorf("file identifier length %d exceeds record length %d", idLen, len(data))
	}

	if joliet {
		name, err := encoding.DecodeJolietName(data[idStart:idEnd])
		if err != nil {
			return nil, fmt.Errorf("decode Joliet identifier: %w", err)
		}
		r.Identifier = name
	} else {
		r.Identifier = decodeISOIdentifier(data[idStart:idEnd])
	}

	suStart := idEnd
	if idLen%2 == 0 {
		suStart++ // padding byte keeps the system-use area even-aligned
	}
	if suStart < int(r.LengthOfDirectoryRecord) && suStart < len(data) {
		r.systemUse = data[suStart:]
	}

	if len(r.systemUse) > 0 {
		area := r.systemUse
		if skip := src.SUSPSkip(); skip > 0 && skip <= len(area) {
			area = area[skip:]
		}
		entries, err := susp.GetSystemUseEntries(area, src, logger)
		if err != nil {
			logger.Error(err, "failed to fully decode system-use area, degrading to ISO/Joliet name", "identifier", r.Identifier)
		}
		r.susEntry = entries
	}

	return r, nil
}

// decodeISOIdentifier strips the ";version" suffix and turns the synthetic
// self/parent bytes (0x00, 0x01) into "." and "..".
func decodeISOIdentifier(data []byte) string {
	if len(data) == 1 {
		switch data[0] {
		case 0x00:
			return "."
		case 0x01:
			return ".."
		}
	}
	name := string(data)
	for i := 0; i < len(name); i++ {
		if name[i] == ';' {
			return name[:i]
		}
	}
	return name
}

// Name returns the Rock Ridge NM name if present, otherwise the ISO or
// Joliet identifier decoded at Decode time.
func (r *Record) Name() string {
	if rrName := r.rockRidgeName(); rrName != nil {
		return *rrName
	}
	return r.Identifier
}

func (r *Record) Size() int64 {
	return int64(r.DataLength)
}

func (r *Record) ModTime() time.Time {
	if ts := r.RockRidgeTimestamps(); ts != nil && !ts.Modify.IsZero() {
		return ts.Modify
	}
	return r.RecordingDateAndTime
}

func (r *Record) IsDir() bool {
	return r.Flags.Directory
}

func (r *Record) Mode() fs.FileMode {
	if perms := r.RockRidgePermissions(); perms != nil {
		return perms.Mode
	}
	var mode fs.FileMode
	if r.IsDir() {
		mode |= fs.ModeDir
	}
	if sl := r.Symlink(); sl != nil {
		mode |= fs.ModeSymlink
	}
	return mode
}

func (r *Record) Sys() any {
	return nil
}

// IsSelf and IsParent report whether this record is the synthetic "." or
// ".." entry every directory extent carries.
func (r *Record) IsSelf() bool   { return r.Identifier == "." }
func (r *Record) IsParent() bool { return r.Identifier == ".." }

// HasRockRidge reports whether this record's system-use area advertises or
// carries Rock Ridge entries, unless option.WithoutRockRidge disabled
// decoding on the underlying Source.
func (r *Record) HasRockRidge() bool {
	if r.src != nil && r.src.RockRidgeDisabled() {
		return false
	}
	return r.susEntry != nil && r.susEntry.HasRockRidge()
}

// SystemUseEntries returns this record's decoded SUSP area, or nil if it
// carries none. The façade uses this on the root's self-entry at mount time
// to read the SP entry's SUSP skip count and to detect Rock Ridge.
func (r *Record) SystemUseEntries() *susp.SystemUseEntries {
	return r.susEntry
}

// OverrideIdentifier replaces the record's decoded on-disk identifier. The
// façade uses this after resolving a directory purely through the path
// table's extent (which only ever carries the synthetic "." self-entry for
// that extent) so the returned Record reports the requested path component
// instead of ".".
func (r *Record) OverrideIdentifier(name string) {
	r.Identifier = name
}

func (r *Record) rockRidgeDisabled() bool {
	return r.src != nil && r.src.RockRidgeDisabled()
}

func (r *Record) rockRidgeName() *string {
	if r.susEntry == nil || r.rockRidgeDisabled() {
		return nil
	}
	return r.susEntry.RockRidgeName()
}

// RockRidgePermissions returns the Rock Ridge PX entry, if present.
func (r *Record) RockRidgePermissions() *rockridge.PosixEntry {
	if r.susEntry == nil || r.rockRidgeDisabled() {
		return nil
	}
	return r.susEntry.RockRidgePermissions()
}

// RockRidgeTimestamps returns the Rock Ridge TF entry, if present.
func (r *Record) RockRidgeTimestamps() *rockridge.Timestamps {
	if r.susEntry == nil || r.rockRidgeDisabled() {
		return nil
	}
	return r.susEntry.RockRidgeTimestamps()
}

// Symlink returns the Rock Ridge SL target, if present.
func (r *Record) Symlink() *rockridge.Symlink {
	if r.susEntry == nil || r.rockRidgeDisabled() {
		return nil
	}
	return r.susEntry.RockRidgeSymlink()
}

// Children decodes and returns this record's immediate directory entries,
// skipping the synthetic self/parent records. It re-reads and re-decodes
// the extent on every call rather than caching: per this module's data
// model, a Record is a cheap, disposable view and callers that want to keep
// children around retain the returned slice themselves.
func (r *Record) Children() ([]*Record, error) {
	if !r.IsDir() {
		return nil, fmt.Errorf("directory: %q is not a directory", r.Name())
	}

	stream := r.src.GetStream(r.LocationOfExtent, r.DataLength)
	buf := make([]byte, r.DataLength)
	if _, err := io.ReadFull(stream, buf); err != nil {
		return nil, fmt.Errorf("read directory extent at LBA %d: %w", r.LocationOfExtent, err)
	}

	var children []*Record
	for offset := 0; offset < len(buf); {
		length := int(buf[offset])
		if length == 0 {
			// Padding to the end of the current logical sector: advance to
			// the next sector boundary and keep scanning.
			offset += int(r.src.SectorSize()) - (offset % int(r.src.SectorSize()))
			continue
		}
		if offset+length > len(buf) {
			return nil, fmt.Errorf("directory record at offset %d exceeds extent bounds", offset)
		}

		child, err := Decode(buf[offset:offset+length], r.src, r.joliet, r.logger)
		if err != nil {
			return nil, fmt.Errorf("decode child record at offset %d: %w", offset, err)
		}
		if !child.IsSelf() && !child.IsParent() {
			children = append(children, child)
		}
		offset += length
	}

	return children, nil
}

// Open returns a bounded reader over the record's extent.
func (r *Record) Open() (io.Reader, error) {
	if r.IsDir() {
		return nil, fmt.Errorf("directory: %q is a directory", r.Name())
	}
	return r.src.GetStream(r.LocationOfExtent, r.DataLength), nil
}
