package avl

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/index"
)

func intKey(i int64) index.Key { return index.Key{I: i} }

func TestAVLInsertSearchRemove(t *testing.T) {
	tree := New(Config{Clustered: true})
	for i := int64(0); i < 100; i++ {
		require.NoError(t, tree.Add(intKey(i), datafile.RID{PageID: int(i)}))
	}
	rids, err := tree.Search(intKey(42))
	require.NoError(t, err)
	require.Len(t, rids, 1)

	require.NoError(t, tree.Remove(intKey(42), datafile.RID{}))
	rids, err = tree.Search(intKey(42))
	require.NoError(t, err)
	require.Empty(t, rids)
}

func TestAVLRangeSearch(t *testing.T) {
	tree := New(Config{})
	for i := int64(0); i < 50; i++ {
		require.NoError(t, tree.Add(intKey(i), datafile.RID{PageID: int(i)}))
	}
	rids, err := tree.RangeSearch(intKey(20), intKey(29))
	require.NoError(t, err)
	require.Len(t, rids, 10)
}

func TestAVLSaveLoadRebalances(t *testing.T) {
	dir := t.TempDir()
	tree := New(Config{Clustered: true})
	for i := int64(0); i < 63; i++ {
		require.NoError(t, tree.Add(intKey(i), datafile.RID{PageID: int(i)}))
	}
	path := filepath.Join(dir, "avl.json")
	require.NoError(t, tree.Save(path))

	loaded := New(Config{})
	require.NoError(t, loaded.Load(path))
	require.LessOrEqual(t, treeHeight(loaded.root), 7)
	for i := int64(0); i < 63; i++ {
		rids, err := loaded.Search(intKey(i))
		require.NoError(t, err)
		require.Len(t, rids, 1)
	}
}
