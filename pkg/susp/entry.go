// Package susp decodes the System Use Sharing Protocol tag loop carried in
// a directory record's system-use area: the length-prefixed SP/CE/ST/ER/ES/
// PD entries, continuation-area chaining, and the Rock Ridge entries it
// hosts.
package susp

import (
	"fmt"

	"github.com/bgrewell/iso9660nav/pkg/logging"
	"github.com/bgrewell/iso9660nav/pkg/source"
	"github.com/go-logr/logr"
)

// SystemUseEntryType is a two-character SUSP or Rock Ridge entry signature.
type SystemUseEntryType string

const (
	ContinuationArea         SystemUseEntryType = "CE"
	PaddingField             SystemUseEntryType = "PD"
	SharingProtocolIndicator SystemUseEntryType = "SP"
	AreaTerminator           SystemUseEntryType = "ST"
	ExtensionReference       SystemUseEntryType = "ER"
	ExtensionSelector        SystemUseEntryType = "ES"
)

// GetSystemUseEntries decodes the SUSP tag loop in data, following any CE
// continuation areas through src, and returns the fully flattened entry
// list. A cycle in the continuation graph (a CE pointing back at a block
// already visited) is reported as an error rather than looping forever.
func GetSystemUseEntries(data []byte, src *source.Source, logger logr.Logger) (*SystemUseEntries, error) {
	visited := make(map[uint32]bool)
	entries, err := ParseSystemUseEntries(data, visited, src, logger)
	if err != nil {
		return NewSystemUseEntries(entries, logger), fmt.Errorf("failed to parse SystemUseEntries: %w", err)
	}
	return NewSystemUseEntries(entries, logger), nil
}

// ParseSystemUseEntries parses the System Use Entries from a SUSP area,
// recursing into continuation areas as needed. GetSystemUseEntries is the
// entry point most callers want; this is exported for the continuation
// recursion and for tests that need the raw entry list plus a partial
// result on error.
//
// On a malformed entry, ParseSystemUseEntries stops at that entry and
// returns the entries decoded so far alongside a *SUSPError, rather than
// discarding the progress already made.
func ParseSystemUseEntries(
	data []byte,
	visited map[uint32]bool,
	src *source.Source,
	logger logr.Logger,
) ([]*SystemUseEntry, error) {

	var entries []*SystemUseEntry

	logger.V(logging.LEVEL_TRACE).Info("parsing system use entries", "dataLength", len(data))

	for offset := 0; offset < len(data); {
		if data[offset] == 0x00 {
			break
		}

		remaining := len(data[offset:])
		if remaining < 4 {
			return entries, &SUSPError{Entries: entries, Offset: offset, Err: fmt.Errorf("only %d bytes remain, need at least 4 for an entry header", remaining)}
		}

		entryLen := int(data[offset+2])
		if entryLen < 4 {
			return entries, &SUSPError{Entries: entries, Offset: offset, Err: fmt.Errorf("invalid entry length %d", entryLen)}
		}
		if entryLen > remaining {
			return entries, &SUSPError{Entries: entries, Offset: offset, Err: fmt.Errorf("entry length %d exceeds remaining data length %d", entryLen, remaining)}
		}

		entry := NewSystemUseEntry(
			SystemUseEntryType(data[offset:offset+2]),
			data[offset+2],
			data[offset+4:offset+entryLen],
			logger,
		)

		switch entry.Type() {
		case ContinuationArea:
			record, err := UnmarshalContinuationEntry(entry)
			if err != nil {
				return entries, &SUSPError{Entries: entries, Offset: offset, Err: fmt.Errorf("unmarshal CE entry: %w", err)}
			}

			if visited[record.blockLocation] {
				return entries, &SUSPError{Entries: entries, Offset: offset, Err: fmt.Errorf("circular CE reference at block %d", record.blockLocation)}
			}
			visited[record.blockLocation] = true

			buffer := make([]byte, record.lengthOfArea)
			ceOffset := int64(record.blockLocation)*src.SectorSize() + int64(record.offset)
			if _, err := src.ReadAt(buffer, ceOffset); err != nil {
				return entries, &SUSPError{Entries: entries, Offset: offset, Err: fmt.Errorf("read continuation area at offset %d: %w", ceOffset, err)}
			}

			continuedEntries, err := ParseSystemUseEntries(buffer, visited, src, logger)
			entries = append(entries, continuedEntries...)
			if err != nil {
				return entries, err
			}

		default:
			entries = append(entries, entry)
		}

		offset += entryLen
	}

	logger.V(logging.LEVEL_TRACE).Info("finished parsing system use entries", "entriesCount", len(entries))
	return entries, nil
}

// NewSystemUseEntry constructs a decoded SystemUseEntry from its signature,
// LEN_SU value, and the entry payload (everything past the 4-byte header).
func NewSystemUseEntry(entryType SystemUseEntryType, length uint8, data []byte, logger logr.Logger) *SystemUseEntry {
	return &SystemUseEntry{
		entryType: entryType,
		length:    length,
		data:      data,
		logger:    logger,
	}
}

// SystemUseEntry is one decoded entry from a SUSP tag loop.
type SystemUseEntry struct {
	entryType SystemUseEntryType
	length    uint8
	data      []byte
	logger    logr.Logger
}

func (e SystemUseEntry) Type() SystemUseEntryType {
	return e.entryType
}

func (e SystemUseEntry) Length() uint8 {
	return e.length
}

func (e SystemUseEntry) Data() []byte {
	return e.data
}
