package descriptor

import (
	"fmt"

	"github.com/bgrewell/iso9660nav/pkg/consts"
	"github.com/bgrewell/iso9660nav/pkg/encoding"
)

const (
	// PARTITION_SYSTEM_USE_SIZE is the size of a sector minus 88 bytes.
	PARTITION_SYSTEM_USE_SIZE = consts.ISO9660_SECTOR_SIZE - 88
)

// VolumePartitionDescriptor is an ECMA-119 8.6 Volume Partition Descriptor.
// This module decodes it for completeness but, per the read-only navigator's
// scope, does not expose partition contents as a separate mount point.
type VolumePartitionDescriptor struct {
	VolumeDescriptorHeader
	VolumePartitionDescriptorBody
}

type VolumePartitionDescriptorBody struct {
	SystemIdentifier          string `json:"system_identifier"`
	VolumePartitionIdentifier string `json:"volume_partition_identifier"`
	VolumePartitionLocation   uint32 `json:"volume_partition_location"`
	VolumePartitionSize       uint32 `json:"volume_partition_size"`

	SystemUse [PARTITION_SYSTEM_USE_SIZE]byte `json:"-"`
}

// UnmarshalVolumePartitionDescriptor decodes one 2048-byte Volume Partition
// Descriptor sector.
func UnmarshalVolumePartitionDescriptor(data []byte) (*VolumePartitionDescriptor, error) {
	if len(data) != consts.ISO9660_SECTOR_SIZE {
		return nil, fmt.Errorf("volume partition descriptor: expected %d bytes, got %d", consts.ISO9660_SECTOR_SIZE, len(data))
	}

	header, err := DecodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("volume partition descriptor header: %w", err)
	}
	if header.Type() != VolumeDescriptorPartition {
		return nil, fmt.Errorf("expected a Volume Partition Descriptor, got type %d", header.Type())
	}

	vpd := &VolumePartitionDescriptor{VolumeDescriptorHeader: header}
	b := &vpd.VolumePartitionDescriptorBody

	b.SystemIdentifier = trimSpace(data[8:40])
	b.VolumePartitionIdentifier = trimSpace(data[40:72])

	if b.VolumePartitionLocation, err = encoding.UnmarshalUint32LSBMSB(data[72:80]); err != nil {
		return nil, fmt.Errorf("volume partition location: %w", err)
	}
	if b.VolumePartitionSize, err = encoding.UnmarshalUint32LSBMSB(data[80:88]); err != nil {
		return nil, fmt.Errorf("volume partition size: %w", err)
	}
	copy(b.SystemUse[:], data[88:88+PARTITION_SYSTEM_USE_SIZE])

	return vpd, nil
}
