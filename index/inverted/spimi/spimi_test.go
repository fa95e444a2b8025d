package spimi

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/datafile"
)

func TestBuildMergesBlocksAcrossBoundary(t *testing.T) {
	var docs []Doc
	for i := 0; i < 25; i++ {
		docs = append(docs, Doc{
			Text: fmt.Sprintf("document %d about quick foxes and lazy dogs", i),
			RID:  datafile.RID{PageID: i},
		})
	}
	ix, err := Build(docs, Config{BlockMaxDocs: 7})
	require.NoError(t, err)

	stats := ix.GetStats()
	require.EqualValues(t, 25, stats.Extra["documents"])

	hits, err := ix.Search("quick foxes", 5)
	require.NoError(t, err)
	require.Len(t, hits, 5)
}

func TestBuildSingleBlock(t *testing.T) {
	docs := []Doc{
		{Text: "alpha beta gamma", RID: datafile.RID{PageID: 1}},
		{Text: "beta gamma delta", RID: datafile.RID{PageID: 2}},
	}
	ix, err := Build(docs, DefaultConfig())
	require.NoError(t, err)
	hits, err := ix.Search("gamma", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
}

func TestBuildEmptyCorpus(t *testing.T) {
	ix, err := Build(nil, DefaultConfig())
	require.NoError(t, err)
	hits, err := ix.Search("anything", 5)
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestBuildRanksByCosineRelevance(t *testing.T) {
	docs := []Doc{
		{Text: "fox fox fox fox running fast", RID: datafile.RID{PageID: 1}},
		{Text: "a single fox appeared briefly while many other animals grazed peacefully nearby in the distance", RID: datafile.RID{PageID: 2}},
		{Text: "completely unrelated text about weather patterns", RID: datafile.RID{PageID: 3}},
	}
	ix, err := Build(docs, DefaultConfig())
	require.NoError(t, err)

	hits, err := ix.Search("fox", 3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, datafile.RID{PageID: 1}, hits[0].RID)
	require.Equal(t, datafile.RID{PageID: 2}, hits[1].RID)
	require.Greater(t, hits[0].Score, hits[1].Score)
}
