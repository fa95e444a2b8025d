package isam

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/index"
)

func intKey(i int64) index.Key { return index.Key{I: i} }

func TestISAMBuildFromPairsAndSearch(t *testing.T) {
	ix := New(Config{PageSize: 4, Clustered: true})
	var pairs []struct {
		Key index.Key
		RID datafile.RID
	}
	for i := int64(0); i < 40; i++ {
		pairs = append(pairs, struct {
			Key index.Key
			RID datafile.RID
		}{Key: intKey(i), RID: datafile.RID{PageID: int(i)}})
	}
	ix.BuildFromPairs(pairs)

	rids, err := ix.Search(intKey(17))
	require.NoError(t, err)
	require.Len(t, rids, 1)
	require.Equal(t, 17, rids[0].PageID)

	rids, err = ix.Search(intKey(999))
	require.NoError(t, err)
	require.Empty(t, rids)
}

func TestISAMRangeSearch(t *testing.T) {
	ix := New(DefaultConfig())
	var pairs []struct {
		Key index.Key
		RID datafile.RID
	}
	for i := int64(0); i < 30; i++ {
		pairs = append(pairs, struct {
			Key index.Key
			RID datafile.RID
		}{Key: intKey(i), RID: datafile.RID{PageID: int(i)}})
	}
	ix.BuildFromPairs(pairs)

	rids, err := ix.RangeSearch(intKey(10), intKey(14))
	require.NoError(t, err)
	require.Len(t, rids, 5)
}

func TestISAMAddGrowsOverflowAndTail(t *testing.T) {
	ix := New(Config{PageSize: 2, Clustered: true})
	require.NoError(t, ix.Add(intKey(1), datafile.RID{PageID: 1}))
	require.NoError(t, ix.Add(intKey(2), datafile.RID{PageID: 2}))
	// base page now full; key 3 is greater than every separator so a new
	// tail base page is created rather than overflow.
	require.NoError(t, ix.Add(intKey(3), datafile.RID{PageID: 3}))
	stats := ix.GetStats()
	require.EqualValues(t, 2, stats.Extra["basePages"])

	// key 1 routes back to the (full) first page: must overflow.
	require.NoError(t, ix.Add(intKey(1), datafile.RID{PageID: 100}))
	stats = ix.GetStats()
	require.EqualValues(t, 1, stats.Extra["overflowChains"])

	rids, err := ix.Search(intKey(1))
	require.NoError(t, err)
	require.Len(t, rids, 2)
}

func TestISAMSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ix := New(Config{PageSize: 3, Clustered: true})
	var pairs []struct {
		Key index.Key
		RID datafile.RID
	}
	for i := int64(0); i < 25; i++ {
		pairs = append(pairs, struct {
			Key index.Key
			RID datafile.RID
		}{Key: intKey(i), RID: datafile.RID{PageID: int(i)}})
	}
	ix.BuildFromPairs(pairs)
	require.NoError(t, ix.Add(intKey(0), datafile.RID{PageID: 1000}))

	path := filepath.Join(dir, "isam.json")
	require.NoError(t, ix.Save(path))

	loaded := New(Config{})
	require.NoError(t, loaded.Load(path))
	rids, err := loaded.Search(intKey(0))
	require.NoError(t, err)
	require.Len(t, rids, 2)
}
