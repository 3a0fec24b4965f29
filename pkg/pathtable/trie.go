package pathtable

import "fmt"

// node is one directory in the path-table trie: its on-disk extent and its
// immediate named children, keyed by a normalized name.
type node struct {
	extent   uint32
	children map[string]*node
}

// Trie is the in-memory index built from a flat L-path-table: every
// directory reachable from the root, keyed by its normalized path
// components, resolves to its extent without a tree walk. Normalize is
// applied to every raw on-disk DirectoryIdentifier as the trie is built and
// must also be applied by the caller to lookup components (spec.md §4.3's
// "two encoders, one path table" design: Primary upper-cases ASCII, Joliet
// decodes UCS-2BE).
type Trie struct {
	root      *node
	normalize func(raw []byte) string
}

// NewTrie creates an empty Trie using normalize to turn a raw on-disk
// DirectoryIdentifier into a comparable key.
func NewTrie(normalize func(raw []byte) string) *Trie {
	return &Trie{normalize: normalize}
}

// Build constructs the trie from records in on-disk path-table order:
// record index 1 (1-based, i.e. records[0]) is always the root and is
// self-parented; every other record's ParentDirectoryNumber (1-based) names
// an earlier record already placed in the trie.
func (t *Trie) Build(records []*Record) error {
	if len(records) == 0 {
		return fmt.Errorf("pathtable: empty path table")
	}

	nodes := make([]*node, len(records)+1) // 1-based index
	root := &node{extent: records[0].LocationOfExtent, children: make(map[string]*node)}
	nodes[1] = root

	for i := 2; i <= len(records); i++ {
		rec := records[i-1]
		if int(rec.ParentDirectoryNumber) >= i || rec.ParentDirectoryNumber < 1 {
			return fmt.Errorf("pathtable: record %d has out-of-order parent index %d", i, rec.ParentDirectoryNumber)
		}
		parent := nodes[rec.ParentDirectoryNumber]
		if parent == nil {
			return fmt.Errorf("pathtable: record %d references unbuilt parent %d", i, rec.ParentDirectoryNumber)
		}

		name := t.normalize([]byte(rec.DirectoryIdentifier))
		n := &node{extent: rec.LocationOfExtent, children: make(map[string]*node)}
		parent.children[name] = n
		nodes[i] = n
	}

	t.root = root
	return nil
}

// LongestPrefix walks components from the root as far as the trie has
// matching entries and returns the extent of the deepest directory reached
// plus how many leading components were consumed. With zero components it
// always returns the root's extent and a match count of 0.
func (t *Trie) LongestPrefix(components []string) (extent uint32, matched int) {
	cur := t.root
	extent = cur.extent
	for _, c := range components {
		next, ok := cur.children[c]
		if !ok {
			break
		}
		cur = next
		matched++
		extent = cur.extent
	}
	return extent, matched
}

// Lookup resolves components to a directory's extent only on an exact
// match; a partial match is reported as not found (the façade's child-walk
// completion handles the residual suffix instead).
func (t *Trie) Lookup(components []string) (extent uint32, ok bool) {
	extent, matched := t.LongestPrefix(components)
	return extent, matched == len(components)
}

// Root returns the root directory's extent.
func (t *Trie) Root() uint32 {
	return t.root.extent
}
