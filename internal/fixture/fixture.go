// Package fixture builds small, fully byte-accurate ECMA-119 images in
// memory for tests: a Primary Volume Descriptor, an optional Joliet
// Supplementary Volume Descriptor sharing the same file content, and
// optional Rock Ridge PX/NM/TF/SL entries — everything iso9660.Open needs
// to walk, without a real disc image on disk.
package fixture

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

const sectorSize = 2048

// node is one file or directory in the tree a Builder assembles.
type node struct {
	name     string
	isoName  string // overrides strings.ToUpper(name) as the on-disk ISO identifier, if set
	isDir    bool
	content  []byte
	symlink  string // non-empty for a Rock Ridge symlink entry instead of content
	children []*node
	parent   *node

	pathIndex       int
	parentPathIndex int

	primaryLBA  uint32
	primarySize uint32
	jolietLBA   uint32
	jolietSize  uint32

	fileLBA uint32
}

// Builder assembles a directory tree and renders it into a mountable image.
type Builder struct {
	root       *node
	joliet     bool
	rockRidge  bool
	raw        bool
	volumeID   string
	modifiedAt time.Time
}

// New starts an empty image builder rooted at "/".
func New() *Builder {
	return &Builder{
		root:       &node{name: "", isDir: true},
		volumeID:   "FIXTURE",
		modifiedAt: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

// WithJoliet also builds a Joliet Supplementary Volume Descriptor and
// directory tree alongside the plain ISO9660 one, sharing file content.
func (b *Builder) WithJoliet() *Builder {
	b.joliet = true
	return b
}

// WithRockRidge attaches PX/NM/TF entries (plus SL for a symlink) to every
// record of the plain ISO9660 tree except the ".." entries, and an SP entry
// to the root's "." entry. No ER entry is written; Joliet records carry no
// Rock Ridge entries.
func (b *Builder) WithRockRidge() *Builder {
	b.rockRidge = true
	return b
}

// WithRawSectors renders the final image as 2352-byte raw sectors (16-byte
// header + 2048-byte payload + 288-byte trailer) instead of plain
// 2048-byte logical sectors.
func (b *Builder) WithRawSectors() *Builder {
	b.raw = true
	return b
}

// WithVolumeLabel sets the Primary Volume Descriptor's volume identifier.
func (b *Builder) WithVolumeLabel(label string) *Builder {
	b.volumeID = label
	return b
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func (b *Builder) ensureDir(parts []string) *node {
	cur := b.root
	for _, p := range parts {
		var child *node
		for _, c := range cur.children {
			if c.isDir && c.name == p {
				child = c
				break
			}
		}
		if child == nil {
			child = &node{name: p, isDir: true, parent: cur}
			cur.children = append(cur.children, child)
		}
		cur = child
	}
	return cur
}

// Dir ensures every directory along path exists.
func (b *Builder) Dir(path string) *Builder {
	b.ensureDir(splitPath(path))
	return b
}

// DirWithISOName ensures path exists, as Dir does, but gives its last
// component an explicit on-disk ISO identifier distinct from
// strings.ToUpper(name). Rock Ridge's NM entry still carries the long name
// from path — this only changes what the path table and plain directory
// record store, e.g. to prove a Rock Ridge lookup actually bypasses the
// path table rather than incidentally matching it via upper-casing.
func (b *Builder) DirWithISOName(path string, isoName string) *Builder {
	d := b.ensureDir(splitPath(path))
	d.isoName = isoName
	return b
}

// File adds a regular file at path with the given content, creating any
// missing parent directories.
func (b *Builder) File(path string, content []byte) *Builder {
	parts := splitPath(path)
	name := parts[len(parts)-1]
	dir := b.ensureDir(parts[:len(parts)-1])
	dir.children = append(dir.children, &node{name: name, parent: dir, content: content})
	return b
}

// Symlink adds a Rock Ridge symbolic link at path pointing at target.
// Without WithRockRidge the entry is written as an empty regular file.
func (b *Builder) Symlink(path string, target string) *Builder {
	parts := splitPath(path)
	name := parts[len(parts)-1]
	dir := b.ensureDir(parts[:len(parts)-1])
	dir.children = append(dir.children, &node{name: name, parent: dir, symlink: target})
	return b
}

// flattenDirs returns every directory, root first, in an order where a
// node's parent always precedes it (breadth-first) — the order ECMA-119's
// path table requires.
func flattenDirs(root *node) []*node {
	dirs := []*node{root}
	root.pathIndex = 1
	root.parentPathIndex = 1
	for i := 0; i < len(dirs); i++ {
		cur := dirs[i]
		for _, c := range cur.children {
			if !c.isDir {
				continue
			}
			dirs = append(dirs, c)
			c.pathIndex = len(dirs)
			c.parentPathIndex = cur.pathIndex
		}
	}
	return dirs
}

func flattenFiles(root *node) []*node {
	var files []*node
	var walk func(*node)
	walk = func(n *node) {
		for _, c := range n.children {
			if c.isDir {
				walk(c)
			} else {
				files = append(files, c)
			}
		}
	}
	walk(root)
	return files
}

func ceilSectors(n int) int {
	if n == 0 {
		return 1
	}
	return (n + sectorSize - 1) / sectorSize
}

// Build renders the tree into a flat byte image: system area, volume
// descriptor sequence, both path tables, every directory extent, then
// every file's content, each section sector-aligned.
func (b *Builder) Build() ([]byte, error) {
	dirs := flattenDirs(b.root)
	files := flattenFiles(b.root)

	primaryPTSize := 0
	jolietPTSize := 0
	for _, d := range dirs {
		if d == b.root {
			primaryPTSize += pathTableRecordLength(1)
			jolietPTSize += pathTableRecordLength(1)
			continue
		}
		primaryPTSize += pathTableRecordLength(len(primaryIdentifier(d, true)))
		jolietPTSize += pathTableRecordLength(len(jolietName(d.name)))
	}

	sector := 16
	pvdSector := sector
	sector++
	svdSector := -1
	if b.joliet {
		svdSector = sector
		sector++
	}
	termSector := sector
	sector++

	primaryPTSector := sector
	primaryPTSectors := ceilSectors(primaryPTSize)
	sector += primaryPTSectors

	jolietPTSector := -1
	jolietPTSectors := 0
	if b.joliet {
		jolietPTSector = sector
		jolietPTSectors = ceilSectors(jolietPTSize)
		sector += jolietPTSectors
	}

	for _, d := range dirs {
		d.primaryLBA = uint32(sector)
		d.primarySize = sectorSize
		sector++
	}
	if b.joliet {
		for _, d := range dirs {
			d.jolietLBA = uint32(sector)
			d.jolietSize = sectorSize
			sector++
		}
	}

	for _, f := range files {
		f.fileLBA = uint32(sector)
		sector += ceilSectors(len(f.content))
	}

	total := sector
	img := make([]byte, total*sectorSize)

	writeSector := func(lba int, data []byte) error {
		if len(data) > sectorSize {
			return fmt.Errorf("fixture: sector %d payload of %d bytes exceeds %d", lba, len(data), sectorSize)
		}
		copy(img[lba*sectorSize:], data)
		return nil
	}

	rootRec := b.root
	pvd := encodePrimaryVolumeDescriptor(b.volumeID, uint32(total), rootRec.primaryLBA, rootRec.primarySize, uint32(primaryPTSize), uint32(primaryPTSector), b.modifiedAt)
	if err := writeSector(pvdSector, pvd); err != nil {
		return nil, err
	}

	if b.joliet {
		svd := encodeSupplementaryVolumeDescriptor(b.volumeID, uint32(total), rootRec.jolietLBA, rootRec.jolietSize, uint32(jolietPTSize), uint32(jolietPTSector), b.modifiedAt)
		if err := writeSector(svdSector, svd); err != nil {
			return nil, err
		}
	}

	if err := writeSector(termSector, encodeSetTerminator()); err != nil {
		return nil, err
	}

	primaryPT := make([]byte, 0, primaryPTSize)
	jolietPT := make([]byte, 0, jolietPTSize)
	for _, d := range dirs {
		if d == b.root {
			primaryPT = append(primaryPT, encodePathTableRecord([]byte{0x00}, d.primaryLBA, d.parentPathIndex)...)
			jolietPT = append(jolietPT, encodePathTableRecord([]byte{0x00}, d.jolietLBA, d.parentPathIndex)...)
			continue
		}
		primaryPT = append(primaryPT, encodePathTableRecord(primaryIdentifier(d, true), d.primaryLBA, d.parentPathIndex)...)
		if b.joliet {
			jolietPT = append(jolietPT, encodePathTableRecord(jolietName(d.name), d.jolietLBA, d.parentPathIndex)...)
		}
	}
	copy(img[primaryPTSector*sectorSize:], primaryPT)
	if b.joliet {
		copy(img[jolietPTSector*sectorSize:], jolietPT)
	}

	for _, d := range dirs {
		extent, err := b.encodePrimaryDirExtent(d)
		if err != nil {
			return nil, err
		}
		if err := writeSector(int(d.primaryLBA), extent); err != nil {
			return nil, err
		}
		if b.joliet {
			jextent, err := b.encodeJolietDirExtent(d)
			if err != nil {
				return nil, err
			}
			if err := writeSector(int(d.jolietLBA), jextent); err != nil {
				return nil, err
			}
		}
	}

	for _, f := range files {
		copy(img[int(f.fileLBA)*sectorSize:], f.content)
	}

	if b.raw {
		return toRawSectors(img), nil
	}
	return img, nil
}

// encodePrimaryDirExtent renders one directory's ISO9660 extent: self,
// parent, then every child in the order it was added.
func (b *Builder) encodePrimaryDirExtent(d *node) ([]byte, error) {
	var buf bytes.Buffer

	selfSUSP := b.rockRidgeEntries(d, true)
	if d == b.root {
		selfSUSP = append(sharingProtocolEntry(0), selfSUSP...)
	}
	buf.Write(encodeDirRecord([]byte{0x00}, d.primaryLBA, d.primarySize, true, b.modifiedAt, selfSUSP))

	parent := d.parent
	if parent == nil {
		parent = d
	}
	buf.Write(encodeDirRecord([]byte{0x01}, parent.primaryLBA, parent.primarySize, true, b.modifiedAt, nil))

	for _, c := range d.children {
		if c.isDir {
			buf.Write(encodeDirRecord(primaryIdentifier(c, true), c.primaryLBA, c.primarySize, true, b.modifiedAt, b.rockRidgeEntries(c, true)))
			continue
		}
		size := uint32(len(c.content))
		buf.Write(encodeDirRecord(primaryIdentifier(c, false), c.fileLBA, size, false, b.modifiedAt, b.rockRidgeEntries(c, false)))
	}

	if buf.Len() > sectorSize {
		return nil, fmt.Errorf("fixture: directory %q extent of %d bytes exceeds one sector", d.name, buf.Len())
	}
	out := make([]byte, sectorSize)
	copy(out, buf.Bytes())
	return out, nil
}

// encodeJolietDirExtent renders the same directory's Joliet entries: same
// extent/size pairs, UCS-2BE identifiers, no Rock Ridge (Joliet trees in
// the wild essentially never carry it).
func (b *Builder) encodeJolietDirExtent(d *node) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(encodeDirRecord([]byte{0x00}, d.jolietLBA, d.jolietSize, true, b.modifiedAt, nil))

	parent := d.parent
	if parent == nil {
		parent = d
	}
	buf.Write(encodeDirRecord([]byte{0x01}, parent.jolietLBA, parent.jolietSize, true, b.modifiedAt, nil))

	for _, c := range d.children {
		if c.isDir {
			buf.Write(encodeDirRecord(jolietName(c.name), c.jolietLBA, c.jolietSize, true, b.modifiedAt, nil))
			continue
		}
		size := uint32(len(c.content))
		buf.Write(encodeDirRecord(jolietName(c.name), c.fileLBA, size, false, b.modifiedAt, nil))
	}

	if buf.Len() > sectorSize {
		return nil, fmt.Errorf("fixture: directory %q Joliet extent of %d bytes exceeds one sector", d.name, buf.Len())
	}
	out := make([]byte, sectorSize)
	copy(out, buf.Bytes())
	return out, nil
}

// rockRidgeEntries builds the PX/NM/TF/SL entries for one record, or nil
// if Rock Ridge wasn't requested for this image.
func (b *Builder) rockRidgeEntries(n *node, isDir bool) []byte {
	if !b.rockRidge {
		return nil
	}
	mode := uint32(0100644)
	if isDir {
		mode = 0040755
	}
	if n.symlink != "" {
		mode = 0120777
	}

	var out []byte
	out = append(out, posixEntry(mode)...)
	out = append(out, nameEntry(n.name)...)
	out = append(out, timestampEntry(b.modifiedAt)...)
	if n.symlink != "" {
		out = append(out, symlinkEntry(n.symlink)...)
	}
	return out
}

func primaryIdentifier(n *node, isDir bool) []byte {
	up := n.isoName
	if up == "" {
		up = strings.ToUpper(n.name)
	}
	if !isDir {
		up += ";1"
	}
	return []byte(up)
}
