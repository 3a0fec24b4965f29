// Package rockridge decodes the Rock Ridge Interchange Protocol payloads
// carried inside SUSP system-use entries: POSIX permissions (PX), long/
// mixed-case names (NM), timestamps (TF), and symlink targets (SL).
package rockridge

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/bgrewell/iso9660nav/pkg/encoding"
)

const (
	RockRidgeIdentifier = "RRIP_1991A"
	RockRidgeVersion    = 1
)

// EntryType is a Rock Ridge system-use entry signature.
type EntryType string

const (
	PosixFilePerms EntryType = "PX" // POSIX file permissions (owner, group, other)
	PosixDeviceNum EntryType = "PN" // Device numbers for block/character device nodes
	SymbolicLink   EntryType = "SL" // Symbolic link target
	AlternateName  EntryType = "NM" // Long filename / case-preserving name
	ChildLink      EntryType = "CL" // Directory relocation chain, child side
	ParentLink     EntryType = "PL" // Directory relocation chain, parent side
	RelocatedDir   EntryType = "RE" // Marks a directory that has been relocated
	TimeStamps     EntryType = "TF" // Creation/modify/access/etc. timestamps
	SparseFile     EntryType = "SF" // Sparse file information
	RockRidge      EntryType = "RR" // Legacy Rock Ridge presence signature
)

// NameEntry is the decoded payload of an NM system-use entry.
type NameEntry struct {
	Continue bool // Bit 0: name continues in the next NM entry
	Current  bool // Bit 1: name refers to "."
	Parent   bool // Bit 2: name refers to ".."
	Name     string
}

// UnmarshalNameEntry decodes an NM entry. data begins at offset 4 of the
// system-use entry record (i.e. the flags byte), and length is the entry's
// LEN_NM value (the full entry length including its 5-byte header).
func UnmarshalNameEntry(length uint8, data []byte) (*NameEntry, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("rockridge: NM entry too short")
	}
	nameLen := int(length) - 5
	flags := data[0]

	entry := &NameEntry{
		Continue: flags&0x01 != 0,
		Current:  flags&0x02 != 0,
		Parent:   flags&0x04 != 0,
	}
	if nameLen > 0 {
		if len(data) < 1+nameLen {
			return nil, fmt.Errorf("rockridge: NM entry truncated: want %d name bytes, have %d", nameLen, len(data)-1)
		}
		entry.Name = string(data[1 : 1+nameLen])
	}
	return entry, nil
}

// PosixEntry is the decoded payload of a PX system-use entry.
type PosixEntry struct {
	Mode     fs.FileMode
	Links    uint32
	UserID   uint32
	GroupID  uint32
	SerialNo uint32
}

// UnmarshalPosixEntry decodes a PX entry. data begins at offset 4 of the
// system-use entry record (the first both-endian mode field).
func UnmarshalPosixEntry(data []byte) (*PosixEntry, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("rockridge: PX entry too short: need at least 32 bytes, have %d", len(data))
	}

	modeVal, err := encoding.UnmarshalUint32LSBMSB(data[0:8])
	if err != nil {
		return nil, fmt.Errorf("rockridge: unmarshal POSIX file mode: %w", err)
	}
	links, err := encoding.UnmarshalUint32LSBMSB(data[8:16])
	if err != nil {
		return nil, fmt.Errorf("rockridge: unmarshal POSIX file links: %w", err)
	}
	userID, err := encoding.UnmarshalUint32LSBMSB(data[16:24])
	if err != nil {
		return nil, fmt.Errorf("rockridge: unmarshal POSIX file user ID: %w", err)
	}
	groupID, err := encoding.UnmarshalUint32LSBMSB(data[24:32])
	if err != nil {
		return nil, fmt.Errorf("rockridge: unmarshal POSIX file group ID: %w", err)
	}

	var serialNo uint32
	if len(data) >= 40 {
		// Some writers omit the serial number field entirely when the
		// volume carries no device nodes; tolerate both endian values
		// disagreeing rather than failing the whole PX decode over it.
		if v, err := encoding.UnmarshalUint32LSBMSB(data[32:40]); err == nil {
			serialNo = v
		}
	}

	return &PosixEntry{
		Mode:     parseFileMode(modeVal),
		Links:    links,
		UserID:   userID,
		GroupID:  groupID,
		SerialNo: serialNo,
	}, nil
}

// Timestamps is the decoded payload of a TF system-use entry. Any field
// whose corresponding flag bit was absent is left at its zero value.
type Timestamps struct {
	Creation   time.Time
	Modify     time.Time
	Access     time.Time
	Attributes time.Time
	Backup     time.Time
	Expiration time.Time
	Effective  time.Time
	LongForm   bool
}

// UnmarshalTimestamps decodes a TF entry. data begins at offset 4 of the
// system-use entry record (the flags byte). Timestamps are stored in 7-byte
// directory-record form unless bit 7 of the flags requests the 17-byte
// volume-descriptor form.
func UnmarshalTimestamps(data []byte) (*Timestamps, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("rockridge: TF entry too short")
	}
	flags := data[0]
	longForm := flags&0x80 != 0
	entrySize := 7
	if longForm {
		entrySize = 17
	}

	ts := &Timestamps{LongForm: longForm}
	fields := []struct {
		bit uint8
		out *time.Time
	}{
		{0x01, &ts.Creation},
		{0x02, &ts.Modify},
		{0x04, &ts.Access},
		{0x08, &ts.Attributes},
		{0x10, &ts.Backup},
		{0x20, &ts.Expiration},
		{0x40, &ts.Effective},
	}

	pos := 1
	for _, f := range fields {
		if flags&f.bit == 0 {
			continue
		}
		if pos+entrySize > len(data) {
			return nil, fmt.Errorf("rockridge: TF entry truncated decoding flag 0x%02x", f.bit)
		}
		var t time.Time
		var err error
		if longForm {
			t, err = encoding.DecodeVolumeDescriptorTime(data[pos : pos+entrySize])
		} else {
			t, err = encoding.DecodeDirectoryTime(data[pos : pos+entrySize])
		}
		if err != nil {
			return nil, fmt.Errorf("rockridge: decode TF timestamp for flag 0x%02x: %w", f.bit, err)
		}
		*f.out = t
		pos += entrySize
	}
	return ts, nil
}

// SymlinkComponent is one path component of an SL entry's target.
type SymlinkComponent struct {
	Continue bool // component's content continues in the next component record
	Current  bool // component is "."
	Parent   bool // component is ".."
	Root     bool // component is "/"
	Content  string
}

// Symlink is the decoded payload of an SL system-use entry.
type Symlink struct {
	Continue   bool // target continues in the next SL entry
	Components []SymlinkComponent
}

// UnmarshalSymlink decodes an SL entry. data begins at offset 4 of the
// system-use entry record (the flags byte), followed by one or more
// component records.
func UnmarshalSymlink(data []byte) (*Symlink, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("rockridge: SL entry too short")
	}

	sl := &Symlink{Continue: data[0]&0x01 != 0}
	i := 1
	for i < len(data) {
		if i+2 > len(data) {
			return nil, fmt.Errorf("rockridge: SL component header truncated at offset %d", i)
		}
		compFlags := data[i]
		compLen := int(data[i+1])
		if i+2+compLen > len(data) {
			return nil, fmt.Errorf("rockridge: SL component content truncated at offset %d", i)
		}
		comp := SymlinkComponent{
			Continue: compFlags&0x01 != 0,
			Current:  compFlags&0x02 != 0,
			Parent:   compFlags&0x04 != 0,
			Root:     compFlags&0x08 != 0,
		}
		if compLen > 0 {
			comp.Content = string(data[i+2 : i+2+compLen])
		}
		sl.Components = append(sl.Components, comp)
		i += 2 + compLen
	}
	return sl, nil
}

// Target joins the symlink's components into a POSIX-style path string.
func (s *Symlink) Target() string {
	parts := make([]string, 0, len(s.Components))
	for _, c := range s.Components {
		switch {
		case c.Root:
			parts = append(parts, "")
		case c.Current:
			parts = append(parts, ".")
		case c.Parent:
			parts = append(parts, "..")
		default:
			parts = append(parts, c.Content)
		}
	}
	target := strings.Join(parts, "/")
	if len(s.Components) > 0 && s.Components[0].Root {
		target = "/" + strings.TrimPrefix(target, "/")
	}
	return target
}

// parseFileMode converts a 32-bit POSIX mode value into fs.FileMode.
func parseFileMode(mode uint32) fs.FileMode {
	var fileMode fs.FileMode

	switch mode & 0xF000 {
	case 0xC000:
		fileMode |= fs.ModeSocket
	case 0xA000:
		fileMode |= fs.ModeSymlink
	case 0x8000:
		// regular file, no bit set
	case 0x6000:
		fileMode |= fs.ModeDevice
	case 0x2000:
		fileMode |= fs.ModeCharDevice
	case 0x4000:
		fileMode |= fs.ModeDir
	case 0x1000:
		fileMode |= fs.ModeNamedPipe
	}

	if mode&0x0100 != 0 {
		fileMode |= 0400
	}
	if mode&0x0080 != 0 {
		fileMode |= 0200
	}
	if mode&0x0040 != 0 {
		fileMode |= 0100
	}
	if mode&0x0020 != 0 {
		fileMode |= 0040
	}
	if mode&0x0010 != 0 {
		fileMode |= 0020
	}
	if mode&0x0008 != 0 {
		fileMode |= 0010
	}
	if mode&0x0004 != 0 {
		fileMode |= 0004
	}
	if mode&0x0002 != 0 {
		fileMode |= 0002
	}
	if mode&0x0001 != 0 {
		fileMode |= 0001
	}

	if mode&0x0800 != 0 {
		fileMode |= os.ModeSetuid
	}
	if mode&0x0400 != 0 {
		fileMode |= os.ModeSetgid
	}
	if mode&0x0200 != 0 {
		fileMode |= os.ModeSticky
	}

	return fileMode
}
