package susp

import (
	"github.com/bgrewell/iso9660nav/pkg/logging"
	"github.com/bgrewell/iso9660nav/pkg/rockridge"
	"github.com/go-logr/logr"
)

// NewSystemUseEntries wraps a flat entry slice with the Rock Ridge-aware
// helper methods below.
func NewSystemUseEntries(entries []*SystemUseEntry, logger logr.Logger) *SystemUseEntries {
	return &SystemUseEntries{
		entries: entries,
		logger:  logger,
	}
}

// SystemUseEntries is a decoded SUSP area: a flat list of entries (with any
// CE continuation areas already flattened into it) plus Rock Ridge lookup
// helpers.
type SystemUseEntries struct {
	entries []*SystemUseEntry
	logger  logr.Logger
}

func (e SystemUseEntries) Entries() []*SystemUseEntry {
	return e.entries
}

func (e SystemUseEntries) Len() int {
	return len(e.entries)
}

// GetExtensionRecords returns the decoded ER entries, which advertise which
// SUSP extensions (Rock Ridge among them) the area uses.
func (e SystemUseEntries) GetExtensionRecords() ([]*ExtensionRecord, error) {
	var records []*ExtensionRecord
	for _, entry := range e.entries {
		if entry.Type() == ExtensionReference {
			er, err := UnmarshalExtensionRecord(entry)
			if err != nil {
				return nil, err
			}
			records = append(records, er)
		}
	}
	return records, nil
}

// HasRockRidge reports whether the area advertises the Rock Ridge extension
// via an ER record, falling back to a direct PX/NM/TF entry scan for images
// that carry Rock Ridge entries without an ER record on every directory
// (some writers only emit ER on the root record, per RRIP-112 5.1).
func (e SystemUseEntries) HasRockRidge() bool {
	records, err := e.GetExtensionRecords()
	if err != nil {
		e.logger.Error(err, "failed to get extension records")
	}
	for _, record := range records {
		if record.Identifier == rockridge.RockRidgeIdentifier && record.Version == rockridge.RockRidgeVersion {
			return true
		}
	}

	for _, entry := range e.entries {
		switch SystemUseEntryType(entry.Type()) {
		case SystemUseEntryType(rockridge.PosixFilePerms),
			SystemUseEntryType(rockridge.AlternateName),
			SystemUseEntryType(rockridge.TimeStamps):
			return true
		}
	}

	return false
}

// RockRidgeName returns the Rock Ridge NM name if present. A name split
// across several NM entries (each but the last carrying the CONTINUE flag)
// is concatenated back into one string.
func (e SystemUseEntries) RockRidgeName() *string {
	var name string
	found := false

	for _, record := range e.entries {
		if record.Type() != SystemUseEntryType(rockridge.AlternateName) {
			continue
		}
		entry, err := rockridge.UnmarshalNameEntry(record.Length(), record.Data())
		if err != nil {
			e.logger.Error(err, "failed to unmarshal Rock Ridge name entry")
			if found {
				break
			}
			return nil
		}

		if !found {
			switch {
			case entry.Current:
				name = "."
			case entry.Parent:
				name = ".."
			default:
				name = entry.Name
			}
			found = true
		} else {
			name += entry.Name
		}

		if !entry.Continue {
			break
		}
	}

	if !found {
		return nil
	}
	e.logger.V(logging.LEVEL_TRACE).Info("found Rock Ridge name", "name", name)
	return &name
}

// RockRidgePermissions returns the Rock Ridge PX permissions if present.
func (e SystemUseEntries) RockRidgePermissions() *rockridge.PosixEntry {
	for _, record := range e.entries {
		if record.Type() != SystemUseEntryType(rockridge.PosixFilePerms) {
			continue
		}
		entry, err := rockridge.UnmarshalPosixEntry(record.Data())
		if err != nil {
			e.logger.Error(err, "failed to unmarshal Rock Ridge permissions entry")
			return nil
		}
		return entry
	}
	return nil
}

// RockRidgeTimestamps returns the Rock Ridge TF timestamps if present.
func (e SystemUseEntries) RockRidgeTimestamps() *rockridge.Timestamps {
	for _, record := range e.entries {
		if record.Type() != SystemUseEntryType(rockridge.TimeStamps) {
			continue
		}
		entry, err := rockridge.UnmarshalTimestamps(record.Data())
		if err != nil {
			e.logger.Error(err, "failed to unmarshal Rock Ridge timestamps entry")
			return nil
		}
		return entry
	}
	return nil
}

// RockRidgeSymlink returns the Rock Ridge SL symlink target if present,
// concatenating across multiple SL entries when the NM/SL continuation bit
// chains them.
func (e SystemUseEntries) RockRidgeSymlink() *rockridge.Symlink {
	var combined *rockridge.Symlink
	for _, record := range e.entries {
		if record.Type() != SystemUseEntryType(rockridge.SymbolicLink) {
			continue
		}
		entry, err := rockridge.UnmarshalSymlink(record.Data())
		if err != nil {
			e.logger.Error(err, "failed to unmarshal Rock Ridge symlink entry")
			continue
		}
		if combined == nil {
			combined = entry
		} else {
			combined.Components = append(combined.Components, entry.Components...)
			combined.Continue = entry.Continue
		}
		if !entry.Continue {
			break
		}
	}
	return combined
}
