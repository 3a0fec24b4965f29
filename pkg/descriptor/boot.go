package descriptor

import (
	"fmt"

	"github.com/bgrewell/iso9660nav/pkg/consts"
)

const (
	// BOOT_SYSTEM_USE_SIZE is the size of a sector minus 71 bytes.
	BOOT_SYSTEM_USE_SIZE = consts.ISO9660_SECTOR_SIZE - 71
)

// BootRecordDescriptor is an ECMA-119 8.2 Boot Record. This module only
// surfaces the boot system identification fields; it does not walk an El
// Torito boot catalog, which is out of scope for a read-only navigator.
type BootRecordDescriptor struct {
	VolumeDescriptorHeader
	BootRecordBody
}

type BootRecordBody struct {
	BootSystemIdentifier string `json:"boot_system_identifier"`
	BootIdentifier       string `json:"boot_identifier"`

	BootSystemUse [BOOT_SYSTEM_USE_SIZE]byte `json:"-"`
}

// UnmarshalBootRecordDescriptor decodes one 2048-byte Boot Record sector.
func UnmarshalBootRecordDescriptor(data []byte) (*BootRecordDescriptor, error) {
	if len(data) != consts.ISO9660_SECTOR_SIZE {
		return nil, fmt.Errorf("boot record descriptor: expected %d bytes, got %d", consts.ISO9660_SECTOR_SIZE, len(data))
	}

	header, err := DecodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("boot record descriptor header: %w", err)
	}
	if header.Type() != VolumeDescriptorBootRecord {
		return nil, fmt.Errorf("expected a Boot Record Descriptor, got type %d", header.Type())
	}

	boot := &BootRecordDescriptor{VolumeDescriptorHeader: header}
	boot.BootSystemIdentifier = trimSpace(data[7:39])
	boot.BootIdentifier = trimSpace(data[39:71])
	copy(boot.BootSystemUse[:], data[71:71+BOOT_SYSTEM_USE_SIZE])

	return boot, nil
}
