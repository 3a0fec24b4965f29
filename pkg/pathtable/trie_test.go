package pathtable

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upperNormalize(raw []byte) string {
	return strings.ToUpper(string(raw))
}

// buildRecords mirrors the on-disk layout of:
//
//	/                (root, extent 20)
//	/DOCS            (extent 21, parent 1)
//	/DOCS/NOTES      (extent 22, parent 2)
//	/BIN              (extent 23, parent 1)
func buildRecords() []*Record {
	return []*Record{
		{DirectoryIdentifier: "\x00", LocationOfExtent: 20, ParentDirectoryNumber: 1},
		{DirectoryIdentifier: "DOCS", LocationOfExtent: 21, ParentDirectoryNumber: 1},
		{DirectoryIdentifier: "NOTES", LocationOfExtent: 22, ParentDirectoryNumber: 2},
		{DirectoryIdentifier: "BIN", LocationOfExtent: 23, ParentDirectoryNumber: 1},
	}
}

func TestTrie_BuildAndExactLookup(t *testing.T) {
	trie := NewTrie(upperNormalize)
	require.NoError(t, trie.Build(buildRecords()))

	assert.Equal(t, uint32(20), trie.Root())

	extent, ok := trie.Lookup([]string{"DOCS"})
	assert.True(t, ok)
	assert.Equal(t, uint32(21), extent)

	extent, ok = trie.Lookup([]string{"DOCS", "NOTES"})
	assert.True(t, ok)
	assert.Equal(t, uint32(22), extent)

	extent, ok = trie.Lookup([]string{"BIN"})
	assert.True(t, ok)
	assert.Equal(t, uint32(23), extent)
}

func TestTrie_LookupMiss(t *testing.T) {
	trie := NewTrie(upperNormalize)
	require.NoError(t, trie.Build(buildRecords()))

	_, ok := trie.Lookup([]string{"NOPE"})
	assert.False(t, ok)
}

func TestTrie_LongestPrefix(t *testing.T) {
	trie := NewTrie(upperNormalize)
	require.NoError(t, trie.Build(buildRecords()))

	// DOCS/NOTES/readme.txt: the file isn't in the path table (only
	// directories are), so the longest match stops at DOCS/NOTES and
	// reports 2 components consumed.
	extent, matched := trie.LongestPrefix([]string{"DOCS", "NOTES", "readme.txt"})
	assert.Equal(t, 2, matched)
	assert.Equal(t, uint32(22), extent)
}

func TestTrie_BuildRejectsEmptyTable(t *testing.T) {
	trie := NewTrie(upperNormalize)
	assert.Error(t, trie.Build(nil))
}
