package descriptor

import "fmt"

// VolumeDescriptorType identifies the kind of volume descriptor found at a
// given logical sector from sector 16 onward (ECMA-119 8.1).
type VolumeDescriptorType byte

const (
	VolumeDescriptorBootRecord    VolumeDescriptorType = 0x00
	VolumeDescriptorPrimary       VolumeDescriptorType = 0x01
	VolumeDescriptorSupplementary VolumeDescriptorType = 0x02
	VolumeDescriptorPartition     VolumeDescriptorType = 0x03
	VolumeDescriptorSetTerminator VolumeDescriptorType = 0xFF
)

// VolumeDescriptorHeader is the 7-byte header common to every volume
// descriptor: type byte, 5-byte standard identifier, 1-byte version.
type VolumeDescriptorHeader struct {
	VolumeDescriptorType    VolumeDescriptorType `json:"volume_descriptor_type"`
	StandardIdentifier      string               `json:"standard_identifier"`
	VolumeDescriptorVersion uint8                `json:"volume_descriptor_version"`
}

func (h *VolumeDescriptorHeader) Type() VolumeDescriptorType {
	return h.VolumeDescriptorType
}

func (h *VolumeDescriptorHeader) Identifier() string {
	return h.StandardIdentifier
}

func (h *VolumeDescriptorHeader) Version() uint8 {
	return h.VolumeDescriptorVersion
}

// standardIdentifier is the fixed "CD001" string every volume descriptor's
// header carries.
const standardIdentifier = "CD001"

// DecodeHeader decodes the 7-byte header shared by every volume descriptor
// type from one full logical-sector-sized buffer.
func DecodeHeader(data []byte) (VolumeDescriptorHeader, error) {
	if len(data) < 7 {
		return VolumeDescriptorHeader{}, fmt.Errorf("volume descriptor sector too short: %d bytes", len(data))
	}
	h := VolumeDescriptorHeader{
		VolumeDescriptorType:    VolumeDescriptorType(data[0]),
		StandardIdentifier:      string(data[1:6]),
		VolumeDescriptorVersion: data[6],
	}
	if h.StandardIdentifier != standardIdentifier {
		return h, fmt.Errorf("unexpected standard identifier %q, want %q", h.StandardIdentifier, standardIdentifier)
	}
	return h, nil
}
