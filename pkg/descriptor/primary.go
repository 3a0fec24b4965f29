package descriptor

import (
	"fmt"
	"time"

	"github.com/bgrewell/iso9660nav/pkg/consts"
	"github.com/bgrewell/iso9660nav/pkg/directory"
	"github.com/bgrewell/iso9660nav/pkg/encoding"
	"github.com/bgrewell/iso9660nav/pkg/source"
	"github.com/go-logr/logr"
)

const (
	// PRIMARY_RESERVED_FIELD2_SIZE is the reserved field from BP 1396 to 2048.
	PRIMARY_RESERVED_FIELD2_SIZE = 653
)

// PrimaryVolumeDescriptor is the mandatory ECMA-119 8.4 volume descriptor
// every image carries; its RootDirectoryRecord is the entry point for the
// plain (non-Joliet) directory hierarchy.
type PrimaryVolumeDescriptor struct {
	VolumeDescriptorHeader
	PrimaryVolumeDescriptorBody
}

type PrimaryVolumeDescriptorBody struct {
	SystemIdentifier                 string `json:"system_identifier"`
	VolumeIdentifier                 string `json:"volume_identifier"`
	VolumeSpaceSize                  uint32 `json:"volume_space_size"`
	VolumeSetSize                    uint16 `json:"volume_set_size"`
	VolumeSequenceNumber             uint16 `json:"volume_sequence_number"`
	LogicalBlockSize                 uint16 `json:"logical_block_size"`
	PathTableSize                    uint32 `json:"path_table_size"`
	LocationOfTypeLPathTable         uint32 `json:"location_of_type_l_path_table"`
	LocationOfOptionalTypeLPathTable uint32 `json:"location_of_optional_type_l_path_table"`
	LocationOfTypeMPathTable         uint32 `json:"location_of_type_m_path_table"`
	LocationOfOptionalTypeMPathTable uint32 `json:"location_of_optional_type_m_path_table"`

	// RootDirectoryRecord is the directory record embedded directly in the
	// volume descriptor (ECMA-119 8.4.14): the root's extent location and
	// size without needing a path-table lookup.
	RootDirectoryRecord *directory.Record `json:"root_directory_record"`

	VolumeSetIdentifier           string    `json:"volume_set_identifier"`
	PublisherIdentifier           string    `json:"publisher_identifier"`
	DataPreparerIdentifier        string    `json:"data_preparer_identifier"`
	ApplicationIdentifier         string    `json:"application_identifier"`
	CopyrightFileIdentifier       string    `json:"copyright_file_identifier"`
	AbstractFileIdentifier        string    `json:"abstract_file_identifier"`
	BibliographicFileIdentifier   string    `json:"bibliographic_file_identifier"`
	VolumeCreationDateAndTime     time.Time `json:"volume_creation_date_and_time"`
	VolumeModificationDateAndTime time.Time `json:"volume_modification_date_and_time"`
	VolumeExpirationDateAndTime   time.Time `json:"volume_expiration_date_and_time"`
	VolumeEffectiveDateAndTime    time.Time `json:"volume_effective_date_and_time"`
	FileStructureVersion          uint8     `json:"file_structure_version"`

	ApplicationUse [consts.ISO9660_APPLICATION_USE_SIZE]byte `json:"-"`
}

// UnmarshalPrimaryVolumeDescriptor decodes one 2048-byte Primary Volume
// Descriptor sector (ECMA-119 8.4). src resolves the embedded root
// directory record's own SUSP/Rock Ridge area, if any.
func UnmarshalPrimaryVolumeDescriptor(data []byte, src *source.Source, logger logr.Logger) (*PrimaryVolumeDescriptor, error) {
	if len(data) != consts.ISO9660_SECTOR_SIZE {
		return nil, fmt.Errorf("primary volume descriptor: expected %d bytes, got %d", consts.ISO9660_SECTOR_SIZE, len(data))
	}

	header, err := DecodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("primary volume descriptor header: %w", err)
	}
	if header.Type() != VolumeDescriptorPrimary {
		return nil, fmt.Errorf("expected a Primary Volume Descriptor, got type %d", header.Type())
	}

	pvd := &PrimaryVolumeDescriptor{VolumeDescriptorHeader: header}
	b := &pvd.PrimaryVolumeDescriptorBody

	b.SystemIdentifier = trimSpace(data[8:40])
	b.VolumeIdentifier = trimSpace(data[40:72])

	if b.VolumeSpaceSize, err = encoding.UnmarshalUint32LSBMSB(data[80:88]); err != nil {
		return nil, fmt.Errorf("volume space size: %w", err)
	}
	if b.VolumeSetSize, err = encoding.UnmarshalUint16LSBMSB(data[120:124]); err != nil {
		return nil, fmt.Errorf("volume set size: %w", err)
	}
	if b.VolumeSequenceNumber, err = encoding.UnmarshalUint16LSBMSB(data[124:128]); err != nil {
		return nil, fmt.Errorf("volume sequence number: %w", err)
	}
	if b.LogicalBlockSize, err = encoding.UnmarshalUint16LSBMSB(data[128:132]); err != nil {
		return nil, fmt.Errorf("logical block size: %w", err)
	}
	if b.PathTableSize, err = encoding.UnmarshalUint32LSBMSB(data[132:140]); err != nil {
		return nil, fmt.Errorf("path table size: %w", err)
	}

	b.LocationOfTypeLPathTable = leUint32(data[140:144])
	b.LocationOfOptionalTypeLPathTable = leUint32(data[144:148])
	b.LocationOfTypeMPathTable = beUint32(data[148:152])
	b.LocationOfOptionalTypeMPathTable = beUint32(data[152:156])

	root, err := directory.Decode(data[156:190], src, false, logger)
	if err != nil {
		return nil, fmt.Errorf("root directory record: %w", err)
	}
	b.RootDirectoryRecord = root

	b.VolumeSetIdentifier = trimSpace(data[190:318])
	b.PublisherIdentifier = trimSpace(data[318:446])
	b.DataPreparerIdentifier = trimSpace(data[446:574])
	b.ApplicationIdentifier = trimSpace(data[574:702])
	b.CopyrightFileIdentifier = trimSpace(data[702:739])
	b.AbstractFileIdentifier = trimSpace(data[739:776])
	b.BibliographicFileIdentifier = trimSpace(data[776:813])

	if t, err := encoding.DecodeVolumeDescriptorTime(data[813:830]); err == nil {
		b.VolumeCreationDateAndTime = t
	}
	if t, err := encoding.DecodeVolumeDescriptorTime(data[830:847]); err == nil {
		b.VolumeModificationDateAndTime = t
	}
	if t, err := encoding.DecodeVolumeDescriptorTime(data[847:864]); err == nil {
		b.VolumeExpirationDateAndTime = t
	}
	if t, err := encoding.DecodeVolumeDescriptorTime(data[864:881]); err == nil {
		b.VolumeEffectiveDateAndTime = t
	}

	b.FileStructureVersion = data[881]
	copy(b.ApplicationUse[:], data[883:883+consts.ISO9660_APPLICATION_USE_SIZE])

	return pvd, nil
}
