// Package iso9660 is the read-only façade over a mounted ECMA-119 image: it
// walks the volume descriptor sequence, decodes both path tables into
// lookup tries, detects Joliet and Rock Ridge, and resolves a slash-style
// path to a directory.Record without the caller ever touching a Source
// directly.
package iso9660

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/bgrewell/iso9660nav/pkg/descriptor"
	"github.com/bgrewell/iso9660nav/pkg/directory"
	"github.com/bgrewell/iso9660nav/pkg/encoding"
	"github.com/bgrewell/iso9660nav/pkg/logging"
	"github.com/bgrewell/iso9660nav/pkg/option"
	"github.com/bgrewell/iso9660nav/pkg/pathtable"
	"github.com/bgrewell/iso9660nav/pkg/source"
	"github.com/go-logr/logr"
)

// Backend is re-exported from pkg/source so callers only need to import
// this package and a concrete backend constructor
// (source.NewFileBackend/source.NewHTTPBackend) to mount an image.
type Backend = source.Backend

// Image is a mounted ECMA-119 image: one Source, the decoded volume
// descriptor set, and the path-table trie(s) built from it. It is not safe
// for concurrent use, matching Source's own single-cursor contract.
type Image struct {
	src     *source.Source
	backend source.Backend
	ctx     context.Context
	logger  logr.Logger

	primary    *descriptor.PrimaryVolumeDescriptor
	joliet     *descriptor.SupplementaryVolumeDescriptor
	boot       *descriptor.BootRecordDescriptor
	partitions []*descriptor.VolumePartitionDescriptor

	primaryTrie *pathtable.Trie
	jolietTrie  *pathtable.Trie

	rockRidge   bool
	noJoliet    bool
	noRockRidge bool
}

// Open mounts backend as an ECMA-119 image: it probes the sector format,
// walks the volume descriptor sequence from logical sector 16 to the
// terminator, decodes both path tables it finds into lookup tries, and
// inspects the root directory's own system-use area for SUSP/Rock Ridge.
func Open(backend Backend, opts ...option.OpenOption) (*Image, error) {
	o := option.Apply(opts...)
	ctx := o.Context

	src, err := source.Open(ctx, backend,
		source.WithLogger(*logging.NewLogger(o.Logger)),
		source.WithMinFetch(o.MinFetch),
	)
	if err != nil {
		return nil, fmt.Errorf("iso9660: open backend: %w", err)
	}

	src.SetRockRidgeDisabled(o.NoRockRidge)

	img := &Image{
		src:         src,
		backend:     backend,
		ctx:         ctx,
		logger:      o.Logger,
		noJoliet:    o.NoJoliet,
		noRockRidge: o.NoRockRidge,
	}

	if err := img.mount(ctx); err != nil {
		return nil, err
	}
	return img, nil
}

// mount walks the volume descriptor sequence and builds both path tables.
func (img *Image) mount(ctx context.Context) error {
	img.src.Seek(int64(16) * img.src.SectorSize())

descriptors:
	for {
		sector, err := img.src.UnpackVolumeDescriptor(ctx)
		if err != nil {
			return fmt.Errorf("iso9660: read volume descriptor: %w", err)
		}

		header, err := descriptor.DecodeHeader(sector)
		if err != nil {
			return fmt.Errorf("iso9660: decode volume descriptor header: %w", err)
		}

		switch header.Type() {
		case descriptor.VolumeDescriptorPrimary:
			pvd, err := descriptor.UnmarshalPrimaryVolumeDescriptor(sector, img.src, img.logger)
			if err != nil {
				return fmt.Errorf("iso9660: primary volume descriptor: %w", err)
			}
			img.primary = pvd

		case descriptor.VolumeDescriptorSupplementary:
			svd, err := descriptor.UnmarshalSupplementaryVolumeDescriptor(sector, img.src, img.logger)
			if err != nil {
				return fmt.Errorf("iso9660: supplementary volume descriptor: %w", err)
			}
			if svd.IsJoliet() && img.joliet == nil {
				img.joliet = svd
			}

		case descriptor.VolumeDescriptorBootRecord:
			boot, err := descriptor.UnmarshalBootRecordDescriptor(sector)
			if err != nil {
				return fmt.Errorf("iso9660: boot record descriptor: %w", err)
			}
			img.boot = boot

		case descriptor.VolumeDescriptorPartition:
			vpd, err := descriptor.UnmarshalVolumePartitionDescriptor(sector)
			if err != nil {
				return fmt.Errorf("iso9660: volume partition descriptor: %w", err)
			}
			img.partitions = append(img.partitions, vpd)

		case descriptor.VolumeDescriptorSetTerminator:
			break descriptors

		default:
			img.logger.V(logging.LEVEL_DEBUG).Info("skipping unrecognized volume descriptor type", "type", header.Type())
		}
	}

	if img.primary == nil {
		return fmt.Errorf("iso9660: no Primary Volume Descriptor found")
	}

	if err := img.detectRockRidge(ctx); err != nil {
		return err
	}

	trie, err := img.buildPathTable(ctx,
		img.primary.LocationOfTypeLPathTable,
		img.primary.PathTableSize,
		upperNormalize,
	)
	if err != nil {
		return fmt.Errorf("iso9660: primary path table: %w", err)
	}
	img.primaryTrie = trie

	if img.joliet != nil {
		trie, err := img.buildPathTable(ctx,
			img.joliet.LocationOfTypeLPathTable,
			img.joliet.PathTableSize,
			jolietNormalize,
		)
		if err != nil {
			return fmt.Errorf("iso9660: Joliet path table: %w", err)
		}
		img.jolietTrie = trie
	}

	return nil
}

// detectRockRidge reads the root directory's own self-entry — the first
// record inside its own extent, not the 34-byte record embedded in the
// Primary Volume Descriptor — since that is where SUSP-112 requires the
// SP entry (declaring LEN_SKP) and, conventionally, the ER entry
// advertising Rock Ridge to live.
func (img *Image) detectRockRidge(ctx context.Context) error {
	root := img.primary.RootDirectoryRecord
	self, err := img.selfRecordAt(ctx, root.LocationOfExtent, false)
	if err != nil {
		return fmt.Errorf("iso9660: read root self-entry: %w", err)
	}

	entries := self.SystemUseEntries()
	if entries == nil {
		return nil
	}

	if sp := entries.SharingProtocol(); sp != nil {
		img.src.SetSUSPSkip(int(sp.LenSkp))
	}

	if img.noRockRidge {
		return nil
	}
	img.rockRidge = entries.HasRockRidge()
	return nil
}

// buildPathTable reads the L-path-table at loc (size bytes) and builds a
// lookup trie over it using normalize to canonicalize each directory
// identifier (upper-case ASCII for the plain hierarchy, UCS-2BE decode for
// Joliet).
func (img *Image) buildPathTable(ctx context.Context, loc uint32, size uint32, normalize func([]byte) string) (*pathtable.Trie, error) {
	cursor := img.src.SaveCursor()
	defer img.src.RestoreCursor(cursor)

	img.src.Seek(int64(loc) * img.src.SectorSize())
	buf, err := img.src.UnpackRaw(ctx, int(size))
	if err != nil {
		return nil, fmt.Errorf("read path table at LBA %d: %w", loc, err)
	}

	var records []*pathtable.Record
	for offset := 0; offset < len(buf); {
		idLen := buf[offset]
		rl := pathtable.RecordLength(idLen)
		if offset+rl > len(buf) {
			break
		}
		rec := pathtable.NewRecord(img.logger)
		if err := rec.Unmarshal(buf[offset : offset+rl]); err != nil {
			return nil, fmt.Errorf("decode path table record at offset %d: %w", offset, err)
		}
		records = append(records, rec)
		offset += rl
	}

	trie := pathtable.NewTrie(normalize)
	if err := trie.Build(records); err != nil {
		return nil, err
	}
	return trie, nil
}

// selfRecordAt reads the length-prefixed first record at a directory
// extent's own LBA: its own "." self-entry, which (unlike a path-table
// entry) carries a DataLength matching the directory it describes.
func (img *Image) selfRecordAt(ctx context.Context, extent uint32, joliet bool) (*directory.Record, error) {
	cursor := img.src.SaveCursor()
	defer img.src.RestoreCursor(cursor)

	img.src.Seek(int64(extent) * img.src.SectorSize())
	data, err := img.src.UnpackRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("read self-entry at extent %d: %w", extent, err)
	}
	return directory.Decode(data, img.src, joliet, img.logger)
}

// hierarchy bundles together everything needed to resolve a path against
// one of the two directory trees an image may carry.
type hierarchy struct {
	root      *directory.Record
	trie      *pathtable.Trie
	joliet    bool
	normalize func(string) string
}

func (img *Image) activeHierarchy() hierarchy {
	if img.joliet != nil && !img.noJoliet {
		return hierarchy{
			root:      img.joliet.RootDirectoryRecord,
			trie:      img.jolietTrie,
			joliet:    true,
			normalize: func(s string) string { return s },
		}
	}
	return hierarchy{
		root:      img.primary.RootDirectoryRecord,
		trie:      img.primaryTrie,
		joliet:    false,
		normalize: strings.ToUpper,
	}
}

// Root returns the root directory of the preferred hierarchy: Joliet when
// present (unless option.WithoutJoliet was supplied), the plain ISO9660
// tree otherwise.
func (img *Image) Root() *directory.Record {
	return img.activeHierarchy().root
}

// Record resolves a sequence of path components (e.g. "DOCS", "README.TXT")
// against the preferred hierarchy. It first consults that hierarchy's
// path-table trie for the longest directory prefix it can match — which
// only ever covers directories, never files — then falls back to walking
// Children() one component at a time for whatever remains, matching names
// case-insensitively against either the Rock Ridge NM name or the plain
// ISO/Joliet identifier. When Rock Ridge is active the path table is
// skipped entirely and every lookup walks from the root: the path table
// only ever carries 8.3 ISO identifiers, and an upper-cased Rock Ridge
// name can collide with an unrelated directory's 8.3 name.
func (img *Image) Record(components ...string) (*directory.Record, error) {
	h := img.activeHierarchy()
	cur := h.root
	idx := 0

	if h.trie != nil && !img.rockRidge && len(components) > 0 {
		normalized := make([]string, len(components))
		for i, c := range components {
			normalized[i] = h.normalize(c)
		}
		extent, matched := h.trie.LongestPrefix(normalized)
		if matched > 0 {
			rec, err := img.selfRecordAt(img.ctx, extent, h.joliet)
			if err != nil {
				return nil, fmt.Errorf("iso9660: resolve %q: %w", strings.Join(components[:matched], "/"), err)
			}
			rec.OverrideIdentifier(components[matched-1])
			cur = rec
			idx = matched
		}
	}

	for _, name := range components[idx:] {
		children, err := cur.Children()
		if err != nil {
			return nil, fmt.Errorf("iso9660: list %q: %w", cur.Name(), err)
		}
		next := findChild(children, name)
		if next == nil {
			return nil, &LookupMiss{Path: components, Resolved: idx}
		}
		cur = next
		idx++
	}

	return cur, nil
}

func findChild(children []*directory.Record, name string) *directory.Record {
	for _, c := range children {
		if strings.EqualFold(c.Name(), name) || strings.EqualFold(c.Identifier, name) {
			return c
		}
	}
	return nil
}

// HasJoliet reports whether the image carries a Joliet Supplementary
// Volume Descriptor.
func (img *Image) HasJoliet() bool {
	return img.joliet != nil
}

// HasRockRidge reports whether the root directory's system-use area
// advertises or carries Rock Ridge entries. It is always false when
// option.WithoutRockRidge was supplied.
func (img *Image) HasRockRidge() bool {
	return img.rockRidge
}

// VolumeLabel returns the Primary Volume Descriptor's volume identifier.
func (img *Image) VolumeLabel() string {
	return img.primary.VolumeIdentifier
}

// HasBootRecord reports whether the volume descriptor sequence carried a
// Boot Record Descriptor (e.g. El Torito).
func (img *Image) HasBootRecord() bool {
	return img.boot != nil
}

// PartitionCount returns the number of Volume Partition Descriptors found
// in the volume descriptor sequence.
func (img *Image) PartitionCount() int {
	return len(img.partitions)
}

// Close releases the underlying backend, if it implements io.Closer
// (FileBackend does; HTTPBackend has nothing to release).
func (img *Image) Close() error {
	if closer, ok := img.backend.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func upperNormalize(raw []byte) string {
	return strings.ToUpper(string(raw))
}

func jolietNormalize(raw []byte) string {
	if len(raw) == 1 && raw[0] == 0x00 {
		return "."
	}
	name, err := encoding.DecodeJolietName(raw)
	if err != nil {
		return string(raw)
	}
	return name
}
