package descriptor

// VolumeDescriptorSetTerminator marks the end of the volume descriptor
// sequence (ECMA-119 8.3). It carries no body beyond the shared header.
type VolumeDescriptorSetTerminator struct {
	VolumeDescriptorHeader
}

// UnmarshalVolumeDescriptorSetTerminator decodes the 7-byte header of a
// Volume Descriptor Set Terminator sector.
func UnmarshalVolumeDescriptorSetTerminator(data []byte) (*VolumeDescriptorSetTerminator, error) {
	header, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	return &VolumeDescriptorSetTerminator{VolumeDescriptorHeader: header}, nil
}

// VolumeDescriptorSet collects every volume descriptor found while walking
// an image's descriptor sequence from logical sector 16 to the terminator.
type VolumeDescriptorSet struct {
	Primary       *PrimaryVolumeDescriptor
	Supplementary []*SupplementaryVolumeDescriptor
	Boot          *BootRecordDescriptor
	Partitions    []*VolumePartitionDescriptor
	Terminator    *VolumeDescriptorSetTerminator
}
