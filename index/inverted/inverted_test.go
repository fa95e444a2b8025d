package inverted

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/datafile"
)

func TestInvertedAddAndSearchRanksByRelevance(t *testing.T) {
	ix := New(DefaultConfig())
	require.NoError(t, ix.AddDocument(datafile.RID{PageID: 1}, "the quick brown fox jumps over the lazy dog"))
	require.NoError(t, ix.AddDocument(datafile.RID{PageID: 2}, "foxes are quick and clever animals"))
	require.NoError(t, ix.AddDocument(datafile.RID{PageID: 3}, "completely unrelated text about weather"))

	hits, err := ix.Search("quick fox", 2)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.NotEqual(t, 3, hits[0].RID.PageID)
}

func TestInvertedSearchEmptyQuery(t *testing.T) {
	ix := New(DefaultConfig())
	require.NoError(t, ix.AddDocument(datafile.RID{PageID: 1}, "some text"))
	hits, err := ix.Search("", 5)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestInvertedSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ix := New(DefaultConfig())
	require.NoError(t, ix.AddDocument(datafile.RID{PageID: 1}, "alpha beta gamma"))
	require.NoError(t, ix.AddDocument(datafile.RID{PageID: 2}, "beta gamma delta"))

	path := filepath.Join(dir, "inverted.json")
	require.NoError(t, ix.Save(path))

	loaded := New(DefaultConfig())
	require.NoError(t, loaded.Load(path))
	hits, err := loaded.Search("beta", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestInvertedGetStats(t *testing.T) {
	ix := New(DefaultConfig())
	require.NoError(t, ix.AddDocument(datafile.RID{PageID: 1}, "alpha beta"))
	stats := ix.GetStats()
	require.EqualValues(t, 1, stats.Extra["documents"])
	require.EqualValues(t, 1, stats.Inserts)
}
