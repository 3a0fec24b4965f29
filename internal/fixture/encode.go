package fixture

import (
	"fmt"
	"time"

	"github.com/bgrewell/iso9660nav/pkg/consts"
	"github.com/bgrewell/iso9660nav/pkg/encoding"
)

// encodeDirRecord renders one ECMA-119 9.1 directory record: the fixed
// 33-byte header, the identifier, an even-alignment padding byte, and
// (if any) a SUSP/Rock Ridge system-use tail, itself padded back to an
// even total length.
func encodeDirRecord(identifier []byte, lba uint32, size uint32, isDir bool, modTime time.Time, systemUse []byte) []byte {
	idLen := len(identifier)
	afterID := 33 + idLen
	if idLen%2 == 0 {
		afterID++ // padding byte
	}
	total := afterID + len(systemUse)
	if total%2 != 0 {
		total++
	}

	buf := make([]byte, total)
	buf[0] = byte(total)
	buf[1] = 0 // extended attribute record length

	encoding.WriteInt32LSBMSB(buf[2:10], int32(lba))
	encoding.WriteInt32LSBMSB(buf[10:18], int32(size))

	if dt, err := encoding.EncodeDirectoryTime(modTime); err == nil {
		copy(buf[18:25], dt)
	}

	var flags byte
	if isDir {
		flags |= 0x02
	}
	buf[25] = flags
	buf[26] = 0 // file unit size
	buf[27] = 0 // interleave gap size
	encoding.WriteInt16LSBMSB(buf[28:32], 1)

	buf[32] = byte(idLen)
	copy(buf[33:33+idLen], identifier)
	copy(buf[afterID:], systemUse)

	return buf
}

// pathTableRecordLength mirrors pathtable.RecordLength without importing
// it, so fixture stays a leaf package.
func pathTableRecordLength(identifierLength int) int {
	n := 8 + identifierLength
	if identifierLength%2 != 0 {
		n++
	}
	return n
}

func encodePathTableRecord(identifier []byte, extent uint32, parentIndex int) []byte {
	n := pathTableRecordLength(len(identifier))
	buf := make([]byte, n)
	buf[0] = byte(len(identifier))
	buf[1] = 0
	buf[2] = byte(extent)
	buf[3] = byte(extent >> 8)
	buf[4] = byte(extent >> 16)
	buf[5] = byte(extent >> 24)
	buf[6] = byte(parentIndex)
	buf[7] = byte(parentIndex >> 8)
	copy(buf[8:8+len(identifier)], identifier)
	return buf
}

func jolietName(name string) []byte {
	return encoding.EncodeJolietName(name)
}

func volumeDescriptorHeader(vdType byte, version byte) []byte {
	buf := make([]byte, 7)
	buf[0] = vdType
	copy(buf[1:6], []byte(consts.ISO9660_STD_IDENTIFIER))
	buf[6] = version
	return buf
}

func encodePrimaryVolumeDescriptor(volumeID string, volumeSpaceSize uint32, rootLBA, rootSize uint32, pathTableSize uint32, pathTableLBA uint32, modTime time.Time) []byte {
	buf := make([]byte, sectorSize)
	copy(buf[0:7], volumeDescriptorHeader(0x01, 1))

	copy(buf[8:40], encoding.MarshalString("FIXTURE", 32))
	copy(buf[40:72], encoding.MarshalString(volumeID, 32))

	encoding.WriteInt32LSBMSB(buf[80:88], int32(volumeSpaceSize))
	encoding.WriteInt16LSBMSB(buf[120:124], 1) // volume set size
	encoding.WriteInt16LSBMSB(buf[124:128], 1) // volume sequence number
	encoding.WriteInt16LSBMSB(buf[128:132], sectorSize)
	encoding.WriteInt32LSBMSB(buf[132:140], int32(pathTableSize))
	putUint32LE(buf[140:144], pathTableLBA)
	putUint32BE(buf[148:152], pathTableLBA)

	root := encodeDirRecord([]byte{0x00}, rootLBA, rootSize, true, modTime, nil)
	copy(buf[156:190], root)

	copy(buf[190:318], encoding.MarshalString(volumeID, 128))
	copy(buf[318:446], encoding.MarshalString("", 128))
	copy(buf[446:574], encoding.MarshalString("", 128))
	copy(buf[574:702], encoding.MarshalString("fixture", 128))

	buf[881] = 1 // file structure version
	return buf
}

func encodeSupplementaryVolumeDescriptor(volumeID string, volumeSpaceSize uint32, rootLBA, rootSize uint32, pathTableSize uint32, pathTableLBA uint32, modTime time.Time) []byte {
	buf := make([]byte, sectorSize)
	copy(buf[0:7], volumeDescriptorHeader(0x02, 1))

	copy(buf[8:40], encoding.MarshalString("FIXTURE", 32))
	copy(buf[40:72], encoding.MarshalString(volumeID, 32))

	encoding.WriteInt32LSBMSB(buf[80:88], int32(volumeSpaceSize))
	copy(buf[88:120], []byte(consts.JOLIET_LEVEL_3_ESCAPE))

	encoding.WriteInt16LSBMSB(buf[120:124], 1)
	encoding.WriteInt16LSBMSB(buf[124:128], 1)
	encoding.WriteInt16LSBMSB(buf[128:132], sectorSize)
	encoding.WriteInt32LSBMSB(buf[132:140], int32(pathTableSize))
	putUint32LE(buf[140:144], pathTableLBA)
	putUint32BE(buf[148:152], pathTableLBA)

	root := encodeDirRecord([]byte{0x00}, rootLBA, rootSize, true, modTime, nil)
	copy(buf[156:190], root)

	copy(buf[190:318], encoding.MarshalString(volumeID, 128))

	buf[881] = 1
	return buf
}

func putUint32LE(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func putUint32BE(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

func encodeSetTerminator() []byte {
	buf := make([]byte, sectorSize)
	copy(buf[0:7], volumeDescriptorHeader(0xFF, 1))
	return buf
}

// sharingProtocolEntry builds a root-only SP entry: two check bytes, a
// LEN_SKP value, and the 4-byte SUSP header.
func sharingProtocolEntry(lenSkp uint8) []byte {
	entry := make([]byte, 7)
	entry[0] = 'S'
	entry[1] = 'P'
	entry[2] = 7
	entry[3] = 1
	entry[4] = 0xBE
	entry[5] = 0xEF
	entry[6] = lenSkp
	return entry
}

func posixEntry(mode uint32) []byte {
	payload := make([]byte, 32)
	encoding.WriteInt32LSBMSB(payload[0:8], int32(mode))
	encoding.WriteInt32LSBMSB(payload[8:16], 1) // links
	encoding.WriteInt32LSBMSB(payload[16:24], 0)
	encoding.WriteInt32LSBMSB(payload[24:32], 0)
	return suspEntry("PX", payload)
}

func nameEntry(name string) []byte {
	payload := append([]byte{0x00}, []byte(name)...)
	return suspEntry("NM", payload)
}

func timestampEntry(modTime time.Time) []byte {
	dt, err := encoding.EncodeDirectoryTime(modTime)
	if err != nil {
		dt = make([]byte, 7)
	}
	payload := append([]byte{0x02}, dt...) // flag bit 0x02: modify time present
	return suspEntry("TF", payload)
}

// symlinkEntry builds a single, non-continued SL entry: an overall flags
// byte (0x00, the target is complete in this entry) followed by one
// component record per path segment. An absolute target gets a leading
// zero-length ROOT component (flag bit 0x08) ahead of its named segments.
func symlinkEntry(target string) []byte {
	payload := []byte{0x00}
	if len(target) > 0 && target[0] == '/' {
		payload = append(payload, 0x08, 0x00)
	}
	for _, comp := range splitPath(target) {
		payload = append(payload, 0x00, byte(len(comp)))
		payload = append(payload, []byte(comp)...)
	}
	return suspEntry("SL", payload)
}

// suspEntry wraps payload in a SUSP entry header: 2-byte signature, 1-byte
// total length, 1-byte version.
func suspEntry(signature string, payload []byte) []byte {
	if len(signature) != 2 {
		panic(fmt.Sprintf("fixture: SUSP signature must be 2 bytes, got %q", signature))
	}
	total := 4 + len(payload)
	buf := make([]byte, total)
	buf[0] = signature[0]
	buf[1] = signature[1]
	buf[2] = byte(total)
	buf[3] = 1
	copy(buf[4:], payload)
	return buf
}

// toRawSectors rewraps a plain 2048-byte-sector image as 2352-byte raw
// sectors: 16 bytes of (unused, for this module's purposes) sync/header
// space, the 2048-byte logical payload, and 288 bytes of trailing ECC/EDC
// space this module never validates.
func toRawSectors(plain []byte) []byte {
	sectors := len(plain) / sectorSize
	const rawSectorSize = 2352
	out := make([]byte, sectors*rawSectorSize)
	for i := 0; i < sectors; i++ {
		copy(out[i*rawSectorSize+16:], plain[i*sectorSize:(i+1)*sectorSize])
	}
	return out
}
