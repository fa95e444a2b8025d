package exthash

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/index"
)

func intKey(i int64) index.Key { return index.Key{I: i} }

func TestExtHashInsertSearch(t *testing.T) {
	ix := New(Config{Clustered: true, GlobalDepth: 2, BucketCapacity: 4})
	for i := int64(0); i < 200; i++ {
		require.NoError(t, ix.Add(intKey(i), datafile.RID{PageID: int(i)}))
	}
	for i := int64(0); i < 200; i++ {
		rids, err := ix.Search(intKey(i))
		require.NoError(t, err)
		require.Len(t, rids, 1)
		require.Equal(t, int(i), rids[0].PageID)
	}
}

func TestExtHashDirectoryDoublesOnOverflow(t *testing.T) {
	ix := New(Config{Clustered: true, GlobalDepth: 1, BucketCapacity: 2})
	startDepth := ix.globalDepth
	for i := int64(0); i < 50; i++ {
		require.NoError(t, ix.Add(intKey(i), datafile.RID{PageID: int(i)}))
	}
	require.Greater(t, ix.globalDepth, startDepth)
	require.Len(t, ix.directory, 1<<uint(ix.globalDepth))
}

func TestExtHashRangeSearchUnsupported(t *testing.T) {
	ix := New(DefaultConfig())
	rids, err := ix.RangeSearch(intKey(0), intKey(10))
	require.NoError(t, err)
	require.Empty(t, rids)
}

func TestExtHashSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ix := New(Config{Clustered: true, GlobalDepth: 2, BucketCapacity: 3})
	for i := int64(0); i < 40; i++ {
		require.NoError(t, ix.Add(intKey(i), datafile.RID{PageID: int(i)}))
	}
	path := filepath.Join(dir, "hash.json")
	require.NoError(t, ix.Save(path))

	loaded := New(Config{})
	require.NoError(t, loaded.Load(path))
	for i := int64(0); i < 40; i++ {
		rids, err := loaded.Search(intKey(i))
		require.NoError(t, err)
		require.Len(t, rids, 1)
	}
}
