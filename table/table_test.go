package table

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/schema"
)

func newTestSchema() *schema.Table {
	s := schema.New("people")
	_ = s.AddColumn(schema.Column{Name: "id", Type: schema.Int, PrimaryKey: true})
	_ = s.AddColumn(schema.Column{Name: "name", Type: schema.Varchar, MaxLen: 64})
	_ = s.AddColumn(schema.Column{Name: "age", Type: schema.Int})
	_ = s.AddColumn(schema.Column{Name: "bio", Type: schema.Varchar, MaxLen: 500, Index: schema.FullText})
	s.SuggestIndexes()
	return s
}

func TestInsertAndSearchByPrimaryKey(t *testing.T) {
	dir := t.TempDir()
	tb, err := Create(Config{BaseDir: dir}, newTestSchema())
	require.NoError(t, err)
	defer tb.Close()

	_, err = tb.Insert(map[string]any{"id": int64(1), "name": "ada", "age": int64(30), "bio": "pioneer of computing"})
	require.NoError(t, err)
	_, err = tb.Insert(map[string]any{"id": int64(2), "name": "alan", "age": int64(41), "bio": "codebreaker and computing theorist"})
	require.NoError(t, err)

	rows, err := tb.Search("id", int64(1))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "ada", rows[0]["name"].Text)
}

func TestRangeSearchOnIndexedColumn(t *testing.T) {
	dir := t.TempDir()
	tb, err := Create(Config{BaseDir: dir}, newTestSchema())
	require.NoError(t, err)
	defer tb.Close()

	for i := int64(0); i < 20; i++ {
		_, err := tb.Insert(map[string]any{"id": i, "name": "p", "age": i, "bio": "text"})
		require.NoError(t, err)
	}
	rows, err := tb.RangeSearch("age", int64(5), int64(9))
	require.NoError(t, err)
	require.Len(t, rows, 5)
}

func TestFullTextSearchRanksByRelevance(t *testing.T) {
	dir := t.TempDir()
	tb, err := Create(Config{BaseDir: dir}, newTestSchema())
	require.NoError(t, err)
	defer tb.Close()

	_, err = tb.Insert(map[string]any{"id": int64(1), "name": "a", "age": int64(1), "bio": "the quick brown fox jumps"})
	require.NoError(t, err)
	_, err = tb.Insert(map[string]any{"id": int64(2), "name": "b", "age": int64(2), "bio": "completely unrelated weather report"})
	require.NoError(t, err)

	hits, err := tb.FullTextSearch("bio", "quick fox", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, int64(1), hits[0].Row["id"].Int)
}

func TestDeleteRemovesRows(t *testing.T) {
	dir := t.TempDir()
	tb, err := Create(Config{BaseDir: dir}, newTestSchema())
	require.NoError(t, err)
	defer tb.Close()

	_, err = tb.Insert(map[string]any{"id": int64(7), "name": "x", "age": int64(9), "bio": "text"})
	require.NoError(t, err)

	n, err := tb.Delete("id", int64(7))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rows, err := tb.Search("id", int64(7))
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestInsertBulkRebuildsIndexes(t *testing.T) {
	dir := t.TempDir()
	tb, err := Create(Config{BaseDir: dir}, newTestSchema())
	require.NoError(t, err)
	defer tb.Close()

	var rows []map[string]any
	for i := int64(0); i < 50; i++ {
		rows = append(rows, map[string]any{"id": i, "name": "bulk", "age": i, "bio": "some bulk text"})
	}
	rids, err := tb.InsertBulk(rows, true)
	require.NoError(t, err)
	require.Len(t, rids, 50)

	found, err := tb.Search("id", int64(25))
	require.NoError(t, err)
	require.Len(t, found, 1)
}

func TestQueryStatsTrackInsertsAndSearches(t *testing.T) {
	dir := t.TempDir()
	tb, err := Create(Config{BaseDir: dir}, newTestSchema())
	require.NoError(t, err)
	defer tb.Close()

	_, err = tb.Insert(map[string]any{"id": int64(1), "name": "a", "age": int64(1), "bio": "text"})
	require.NoError(t, err)
	_, err = tb.Search("id", int64(1))
	require.NoError(t, err)

	snap := tb.QueryStats()
	require.EqualValues(t, 1, snap.Counters["table.insert.calls"])
	require.EqualValues(t, 1, snap.Counters["table.search.calls"])
}
