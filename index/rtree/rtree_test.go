package rtree

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/index"
	"github.com/intellect4all/reldb/record"
)

func ptKey(p []float64) index.Key {
	return index.Key{Kind: record.KindFloatVec, FloatVec: p}
}

func TestRTreeInsertAndExactSearch(t *testing.T) {
	ix := New(DefaultConfig())
	for i := 0; i < 50; i++ {
		ix.AddPoint([]float64{float64(i), float64(i * 2)}, datafile.RID{PageID: i})
	}
	rids, err := ix.Search(ptKey([]float64{10, 20}))
	require.NoError(t, err)
	require.Len(t, rids, 1)
	require.Equal(t, 10, rids[0].PageID)

	rids, err = ix.Search(ptKey([]float64{999, 999}))
	require.NoError(t, err)
	require.Empty(t, rids)
}

func TestRTreeSplitsAndKeepsAllPoints(t *testing.T) {
	ix := New(Config{Dimensions: 2, MaxEntries: 4, MinEntries: 2})
	for i := 0; i < 200; i++ {
		ix.AddPoint([]float64{float64(i % 20), float64(i / 20)}, datafile.RID{PageID: i})
	}
	require.Greater(t, len(ix.nodes), 1)
	for i := 0; i < 200; i++ {
		rids, err := ix.Search(ptKey([]float64{float64(i % 20), float64(i / 20)}))
		require.NoError(t, err)
		require.NotEmpty(t, rids)
	}
}

func TestRTreeRangeRadius(t *testing.T) {
	ix := New(DefaultConfig())
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			ix.AddPoint([]float64{float64(x), float64(y)}, datafile.RID{PageID: x*10 + y})
		}
	}
	rids, err := ix.RangeRadius([]float64{5, 5}, 1.0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rids), 5)
	for _, rid := range rids {
		x, y := rid.PageID/10, rid.PageID%10
		d := (float64(x)-5)*(float64(x)-5) + (float64(y)-5)*(float64(y)-5)
		require.LessOrEqual(t, d, 1.01)
	}
}

func TestRTreeKNN(t *testing.T) {
	ix := New(DefaultConfig())
	for i := 0; i < 30; i++ {
		ix.AddPoint([]float64{float64(i), 0}, datafile.RID{PageID: i})
	}
	rids, err := ix.KNN([]float64{10, 0}, 3)
	require.NoError(t, err)
	require.Len(t, rids, 3)

	got := map[int]bool{}
	for _, r := range rids {
		got[r.PageID] = true
	}
	require.True(t, got[10])
}

func TestRTreeRemove(t *testing.T) {
	ix := New(Config{Dimensions: 2, MaxEntries: 4, MinEntries: 2})
	for i := 0; i < 60; i++ {
		ix.AddPoint([]float64{float64(i), float64(i)}, datafile.RID{PageID: i})
	}
	require.NoError(t, ix.Remove(ptKey([]float64{5, 5}), datafile.RID{PageID: 5}))
	rids, err := ix.Search(ptKey([]float64{5, 5}))
	require.NoError(t, err)
	require.Empty(t, rids)

	rids, err = ix.Search(ptKey([]float64{6, 6}))
	require.NoError(t, err)
	require.Len(t, rids, 1)
}

func TestRTreeSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ix := New(Config{Dimensions: 2, MaxEntries: 4, MinEntries: 2})
	for i := 0; i < 80; i++ {
		ix.AddPoint([]float64{float64(i), float64(i % 7)}, datafile.RID{PageID: i})
	}
	path := filepath.Join(dir, "rtree.json")
	require.NoError(t, ix.Save(path))

	loaded := New(Config{})
	require.NoError(t, loaded.Load(path))
	for i := 0; i < 80; i++ {
		rids, err := loaded.Search(ptKey([]float64{float64(i), float64(i % 7)}))
		require.NoError(t, err)
		require.Len(t, rids, 1)
	}
}
