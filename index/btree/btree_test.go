package btree

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/index"
)

func intKey(i int64) index.Key { return index.Key{Kind: 0, I: i} }

func TestBTreeInsertAndSearch(t *testing.T) {
	tree := New(Config{Order: 3, Clustered: true})
	for i := int64(0); i < 50; i++ {
		require.NoError(t, tree.Add(intKey(i), datafile.RID{PageID: int(i), Slot: 0}))
	}
	for i := int64(0); i < 50; i++ {
		rids, err := tree.Search(intKey(i))
		require.NoError(t, err)
		require.Len(t, rids, 1)
		require.Equal(t, int(i), rids[0].PageID)
	}
	rids, err := tree.Search(intKey(999))
	require.NoError(t, err)
	require.Empty(t, rids)
}

func TestBTreeRangeSearch(t *testing.T) {
	tree := New(Config{Order: 4, Clustered: true})
	for i := int64(0); i < 30; i++ {
		require.NoError(t, tree.Add(intKey(i), datafile.RID{PageID: int(i)}))
	}
	rids, err := tree.RangeSearch(intKey(10), intKey(19))
	require.NoError(t, err)
	require.Len(t, rids, 10)
}

func TestBTreeDuplicateKeys(t *testing.T) {
	tree := New(DefaultConfig())
	k := intKey(7)
	require.NoError(t, tree.Add(k, datafile.RID{PageID: 1}))
	require.NoError(t, tree.Add(k, datafile.RID{PageID: 2}))
	rids, err := tree.Search(k)
	require.NoError(t, err)
	require.Len(t, rids, 2)
}

func TestBTreeRemoveRebalances(t *testing.T) {
	tree := New(Config{Order: 3, Clustered: true})
	for i := int64(0); i < 20; i++ {
		require.NoError(t, tree.Add(intKey(i), datafile.RID{PageID: int(i)}))
	}
	for i := int64(0); i < 15; i++ {
		require.NoError(t, tree.Remove(intKey(i), datafile.RID{PageID: int(i)}))
	}
	for i := int64(0); i < 15; i++ {
		rids, err := tree.Search(intKey(i))
		require.NoError(t, err)
		require.Empty(t, rids)
	}
	for i := int64(15); i < 20; i++ {
		rids, err := tree.Search(intKey(i))
		require.NoError(t, err)
		require.Len(t, rids, 1)
	}
}

func TestBTreeSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tree := New(Config{Order: 3, Clustered: true})
	for i := int64(0); i < 40; i++ {
		require.NoError(t, tree.Add(intKey(i), datafile.RID{PageID: int(i)}))
	}
	path := filepath.Join(dir, "idx.json")
	require.NoError(t, tree.Save(path))

	loaded := New(Config{Order: 3, Clustered: true})
	require.NoError(t, loaded.Load(path))
	for i := int64(0); i < 40; i++ {
		rids, err := loaded.Search(intKey(i))
		require.NoError(t, err)
		require.Len(t, rids, 1)
	}
	rangeRIDs, err := loaded.RangeSearch(intKey(5), intKey(9))
	require.NoError(t, err)
	require.Len(t, rangeRIDs, 5)

	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}
