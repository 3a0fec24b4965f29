package susp

import "fmt"

// SharingProtocolEntry is the decoded payload of the root directory's SP
// entry (SUSP-112 5.1): the two fixed check bytes plus LenSkp, the number
// of bytes every other record's system-use area skips before its first
// real entry.
type SharingProtocolEntry struct {
	LenSkp uint8
}

// UnmarshalSharingProtocolEntry decodes an SP entry.
func UnmarshalSharingProtocolEntry(e *SystemUseEntry) (*SharingProtocolEntry, error) {
	if e.Type() != SharingProtocolIndicator {
		return nil, fmt.Errorf("wrong type of record, expected SP")
	}
	if len(e.data) < 3 {
		return nil, fmt.Errorf("invalid SP entry length %d", len(e.data))
	}
	if e.data[0] != 0xBE || e.data[1] != 0xEF {
		return nil, fmt.Errorf("invalid SP check bytes 0x%02x 0x%02x", e.data[0], e.data[1])
	}
	return &SharingProtocolEntry{LenSkp: e.data[2]}, nil
}

// SharingProtocol returns the area's SP entry, if present. Per SUSP-112 it
// is only meaningful as the first entry of the root directory's own
// system-use area.
func (e SystemUseEntries) SharingProtocol() *SharingProtocolEntry {
	for _, entry := range e.entries {
		if entry.Type() != SharingProtocolIndicator {
			continue
		}
		sp, err := UnmarshalSharingProtocolEntry(entry)
		if err != nil {
			e.logger.Error(err, "failed to unmarshal SP entry")
			return nil
		}
		return sp
	}
	return nil
}
