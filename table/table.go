// Package table implements the table manager: it owns one schema, one
// heap file and the set of indexes declared on the schema's columns,
// dispatching reads to whichever index a query names and keeping every
// touched index durable before a mutating call returns.
package table

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/dberrors"
	"github.com/intellect4all/reldb/dbstats"
	"github.com/intellect4all/reldb/index"
	"github.com/intellect4all/reldb/index/avl"
	"github.com/intellect4all/reldb/index/btree"
	"github.com/intellect4all/reldb/index/exthash"
	"github.com/intellect4all/reldb/index/inverted"
	"github.com/intellect4all/reldb/index/isam"
	"github.com/intellect4all/reldb/index/rtree"
	"github.com/intellect4all/reldb/record"
	"github.com/intellect4all/reldb/schema"
)

// ScoredRecord pairs a decoded row with its full-text relevance score.
type ScoredRecord struct {
	RID    datafile.RID
	Row    record.Values
	Score  float64
}

// Config configures a Table.
type Config struct {
	BaseDir  string
	PageSize int
	Logger   *zap.SugaredLogger
}

func DefaultConfig(baseDir string) Config { return Config{BaseDir: baseDir} }

// Table owns one schema, one heap file, and every index declared on the
// schema's columns.
type Table struct {
	baseDir   string
	indexDir  string
	schema    *schema.Table
	file      *datafile.File
	scalar    map[string]index.Index
	fulltext  map[string]index.TextIndex
	log       *zap.SugaredLogger
	stats     *dbstats.Registry

	mu sync.Mutex
}

// Open loads an existing table directory (data.dat, indexes/*.idx) for the
// given schema, or Create should be used instead for a brand new table.
func Open(cfg Config, sch *schema.Table) (*Table, error) {
	return newTable(cfg, sch, false)
}

// Create makes a brand new table directory, persists its schema, and
// builds empty indexes for every column the schema assigns one to.
func Create(cfg Config, sch *schema.Table) (*Table, error) {
	return newTable(cfg, sch, true)
}

func newTable(cfg Config, sch *schema.Table, fresh bool) (*Table, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.BaseDir == "" {
		return nil, dberrors.Validation("table base dir required")
	}
	if err := os.MkdirAll(cfg.BaseDir, 0o755); err != nil {
		return nil, dberrors.IO("create table directory", err)
	}

	schemaPath := filepath.Join(cfg.BaseDir, "schema.json")
	if fresh {
		if err := sch.Save(schemaPath); err != nil {
			return nil, err
		}
	}

	indexDir := filepath.Join(cfg.BaseDir, "indexes")
	if err := os.MkdirAll(indexDir, 0o755); err != nil {
		return nil, dberrors.IO("create index directory", err)
	}

	dfCfg := datafile.Config{DataDir: cfg.BaseDir, FileName: "data.dat", PageSize: cfg.PageSize, Logger: log}
	if dfCfg.PageSize == 0 {
		dfCfg.PageSize = datafile.DefaultConfig(cfg.BaseDir).PageSize
	}
	file, err := datafile.Open(dfCfg, sch.ColumnSpecs())
	if err != nil {
		return nil, err
	}

	t := &Table{
		baseDir:  cfg.BaseDir,
		indexDir: indexDir,
		schema:   sch,
		file:     file,
		scalar:   make(map[string]index.Index),
		fulltext: make(map[string]index.TextIndex),
		log:      log,
		stats:    dbstats.New(),
	}

	if err := t.initializeIndexes(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) indexPath(column string) string {
	return filepath.Join(t.indexDir, column+".idx")
}

// initializeIndexes loads an on-disk snapshot for each indexed column, or
// constructs a fresh empty index when none exists yet, matching
// Table._initialize_indexes's load-or-create fallback.
func (t *Table) initializeIndexes() error {
	for _, col := range t.schema.Columns {
		kind := col.Index
		if kind == schema.None {
			continue
		}
		path := t.indexPath(col.Name)

		if kind == schema.FullText {
			ix := inverted.New(inverted.DefaultConfig())
			if _, err := os.Stat(path); err == nil {
				if err := ix.Load(path); err != nil {
					t.log.Warnw("failed to load fulltext index, starting empty", "column", col.Name, "error", err)
				} else {
					t.log.Infow("loaded fulltext index", "column", col.Name)
				}
			}
			t.fulltext[col.Name] = ix
			continue
		}

		ix := t.newScalarIndex(kind, col)
		if _, err := os.Stat(path); err == nil {
			if err := ix.Load(path); err != nil {
				t.log.Warnw("failed to load index, starting empty", "column", col.Name, "kind", kind, "error", err)
				ix = t.newScalarIndex(kind, col)
			} else {
				t.log.Infow("loaded index", "column", col.Name, "kind", kind)
			}
		}
		t.scalar[col.Name] = ix
	}
	return nil
}

func (t *Table) newScalarIndex(kind schema.IndexKind, col schema.Column) index.Index {
	clustered := col.PrimaryKey
	switch kind {
	case schema.BTree:
		return btree.New(btree.Config{Order: btree.DefaultOrder, Clustered: clustered})
	case schema.ISAM:
		return isam.New(isam.Config{PageSize: 10, Clustered: clustered})
	case schema.Hash:
		return exthash.New(exthash.DefaultConfig())
	case schema.RTree:
		return rtree.New(rtree.Config{Dimensions: 2, MaxEntries: 4, MinEntries: 2})
	default:
		return avl.New(avl.Config{Clustered: clustered})
	}
}

// saveIndex persists only the named column's index, not every index on
// the table — SPEC_FULL.md's tightened replacement for the reference
// implementation's blanket _save_indexes() rewrite on every call.
func (t *Table) saveIndex(column string) error {
	if ix, ok := t.scalar[column]; ok {
		return ix.Save(t.indexPath(column))
	}
	if ix, ok := t.fulltext[column]; ok {
		return ix.Save(t.indexPath(column))
	}
	return nil
}

// Insert validates and coerces values against the schema, appends the row
// to the heap file, and updates (then persists) every index the schema
// assigns to a touched column.
func (t *Table) Insert(values map[string]any) (datafile.RID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stop := t.stats.Timer("table.insert.time")
	defer stop()
	t.stats.Inc("table.insert.calls")

	row, err := t.coerceRow(values)
	if err != nil {
		return datafile.RID{}, err
	}
	rid, err := t.file.InsertClustered(row)
	if err != nil {
		return datafile.RID{}, err
	}

	for _, col := range t.schema.Columns {
		v, ok := row[col.Name]
		if !ok || col.Index == schema.None {
			continue
		}
		if err := t.indexOne(col, v, rid); err != nil {
			t.log.Warnw("index update failed, heap write stands", "column", col.Name, "rid", rid, "error", err)
			continue
		}
		if err := t.saveIndex(col.Name); err != nil {
			t.log.Warnw("index save failed, heap write stands", "column", col.Name, "rid", rid, "error", err)
		}
	}
	return rid, nil
}

func (t *Table) indexOne(col schema.Column, v record.Value, rid datafile.RID) error {
	if col.Index == schema.FullText {
		return t.fulltext[col.Name].AddDocument(rid, v.Text)
	}
	ix, ok := t.scalar[col.Name]
	if !ok {
		return nil
	}
	return ix.Add(index.FromValue(v), rid)
}

func (t *Table) coerceRow(values map[string]any) (record.Values, error) {
	row := make(record.Values, len(t.schema.Columns))
	for _, col := range t.schema.Columns {
		raw, ok := values[col.Name]
		if !ok {
			if col.Nullable {
				continue
			}
			return nil, dberrors.Validation("missing required column").WithDetail("column", col.Name)
		}
		v, err := t.schema.Coerce(col, raw)
		if err != nil {
			return nil, err
		}
		row[col.Name] = v
	}
	return row, nil
}

// InsertBulk inserts every row in one pass. When rebuild is true, indexes
// are disabled during the insert loop and rebuilt once at the end from
// the heap file (the reference implementation's fast bulk-load path);
// otherwise each row goes through the normal per-row Insert path.
func (t *Table) InsertBulk(rows []map[string]any, rebuild bool) ([]datafile.RID, error) {
	if !rebuild {
		rids := make([]datafile.RID, 0, len(rows))
		var errs error
		for _, values := range rows {
			rid, err := t.Insert(values)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			rids = append(rids, rid)
		}
		return rids, errs
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	stop := t.stats.Timer("table.insert.bulk.time")
	defer stop()
	t.stats.Inc("table.insert.bulk")

	rids := make([]datafile.RID, 0, len(rows))
	for _, values := range rows {
		row, err := t.coerceRow(values)
		if err != nil {
			return rids, err
		}
		rid, err := t.file.InsertClustered(row)
		if err != nil {
			return rids, err
		}
		rids = append(rids, rid)
	}

	if err := t.buildIndexesFromDataFile(); err != nil {
		return rids, err
	}
	return rids, nil
}

// BuildIndexesFromDataFile rebuilds every index by scanning the heap file
// page by page, per spec's bulk-load path.
func (t *Table) BuildIndexesFromDataFile() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buildIndexesFromDataFile()
}

func (t *Table) buildIndexesFromDataFile() error {
	pc, err := t.file.PageCount()
	if err != nil {
		return err
	}

	type pair struct {
		Key index.Key
		RID datafile.RID
	}
	byColumn := make(map[string][]pair)
	byColumnText := make(map[string][]struct {
		RID  datafile.RID
		Text string
	})

	for pageID := 0; pageID < pc; pageID++ {
		rows, err := t.file.ScanPage(pageID)
		if err != nil {
			return err
		}
		for slot, row := range rows {
			rid := datafile.RID{PageID: pageID, Slot: slot}
			for _, col := range t.schema.Columns {
				v, ok := row[col.Name]
				if !ok || col.Index == schema.None {
					continue
				}
				if col.Index == schema.FullText {
					byColumnText[col.Name] = append(byColumnText[col.Name], struct {
						RID  datafile.RID
						Text string
					}{RID: rid, Text: v.Text})
					continue
				}
				byColumn[col.Name] = append(byColumn[col.Name], pair{Key: index.FromValue(v), RID: rid})
			}
		}
	}

	for _, col := range t.schema.Columns {
		if col.Index == schema.None || col.Index == schema.FullText {
			continue
		}
		ix := t.newScalarIndex(col.Index, col)
		pairs := byColumn[col.Name]
		if col.Index == schema.ISAM {
			isamPairs := make([]struct {
				Key index.Key
				RID datafile.RID
			}, len(pairs))
			for i, p := range pairs {
				isamPairs[i] = struct {
					Key index.Key
					RID datafile.RID
				}{Key: p.Key, RID: p.RID}
			}
			ix.(*isam.Index).BuildFromPairs(isamPairs)
		} else {
			for _, p := range pairs {
				if err := ix.Add(p.Key, p.RID); err != nil {
					return err
				}
			}
		}
		t.scalar[col.Name] = ix
		if err := t.saveIndex(col.Name); err != nil {
			return err
		}
	}

	for _, col := range t.schema.Columns {
		if col.Index != schema.FullText {
			continue
		}
		ix := inverted.New(inverted.DefaultConfig())
		for _, d := range byColumnText[col.Name] {
			if err := ix.AddDocument(d.RID, d.Text); err != nil {
				return err
			}
		}
		t.fulltext[col.Name] = ix
		if err := t.saveIndex(col.Name); err != nil {
			return err
		}
	}
	return nil
}

// Search returns every row whose column equals key, using the column's
// index when one exists or a full heap scan otherwise.
func (t *Table) Search(column string, raw any) ([]record.Values, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stop := t.stats.Timer("table.search.time")
	defer stop()
	t.stats.Inc("table.search.calls")

	col, err := t.schema.GetColumn(column)
	if err != nil {
		return nil, err
	}
	v, err := t.schema.Coerce(col, raw)
	if err != nil {
		return nil, err
	}

	ix, ok := t.scalar[column]
	if !ok {
		return t.fullScan(column, v)
	}
	rids, err := ix.Search(index.FromValue(v))
	if err != nil {
		return nil, err
	}
	return t.fetchAll(rids)
}

func (t *Table) fullScan(column string, v record.Value) ([]record.Values, error) {
	pc, err := t.file.PageCount()
	if err != nil {
		return nil, err
	}
	var out []record.Values
	for pageID := 0; pageID < pc; pageID++ {
		rows, err := t.file.ScanPage(pageID)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if existing, ok := row[column]; ok && valuesEqual(existing, v) {
				out = append(out, row)
			}
		}
	}
	return out, nil
}

func valuesEqual(a, b record.Value) bool {
	return index.FromValue(a).Compare(index.FromValue(b)) == 0
}

func (t *Table) fetchAll(rids []datafile.RID) ([]record.Values, error) {
	out := make([]record.Values, 0, len(rids))
	for _, rid := range rids {
		row, err := t.file.ReadRecord(rid)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// RangeSearch returns every row with column in [lo, hi], which requires
// an index supporting ordered range queries (not the hash index).
func (t *Table) RangeSearch(column string, loRaw, hiRaw any) ([]record.Values, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stop := t.stats.Timer("table.range.time")
	defer stop()
	t.stats.Inc("table.range.calls")

	col, err := t.schema.GetColumn(column)
	if err != nil {
		return nil, err
	}
	lo, err := t.schema.Coerce(col, loRaw)
	if err != nil {
		return nil, err
	}
	hi, err := t.schema.Coerce(col, hiRaw)
	if err != nil {
		return nil, err
	}
	ix, ok := t.scalar[column]
	if !ok {
		return nil, dberrors.State("no index for column").WithDetail("column", column)
	}
	rids, err := ix.RangeSearch(index.FromValue(lo), index.FromValue(hi))
	if err != nil {
		return nil, err
	}
	return t.fetchAll(rids)
}

// RangeRadius returns every row within radius of center on an RTree-indexed
// column.
func (t *Table) RangeRadius(column string, center []float64, radius float64) ([]record.Values, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ix, ok := t.scalar[column]
	if !ok {
		return nil, dberrors.State("no index for column").WithDetail("column", column)
	}
	spatial, ok := ix.(index.SpatialIndex)
	if !ok {
		return nil, dberrors.State("column index does not support spatial queries").WithDetail("column", column)
	}
	rids, err := spatial.RangeRadius(center, radius)
	if err != nil {
		return nil, err
	}
	return t.fetchAll(rids)
}

// KNN returns the k nearest rows to center on an RTree-indexed column.
func (t *Table) KNN(column string, center []float64, k int) ([]record.Values, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ix, ok := t.scalar[column]
	if !ok {
		return nil, dberrors.State("no index for column").WithDetail("column", column)
	}
	spatial, ok := ix.(index.SpatialIndex)
	if !ok {
		return nil, dberrors.State("column index does not support spatial queries").WithDetail("column", column)
	}
	rids, err := spatial.KNN(center, k)
	if err != nil {
		return nil, err
	}
	return t.fetchAll(rids)
}

// FullTextSearch ranks rows by cosine similarity of query against a
// FULLTEXT-indexed column.
func (t *Table) FullTextSearch(column, query string, k int) ([]ScoredRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ix, ok := t.fulltext[column]
	if !ok {
		return nil, dberrors.State("no fulltext index for column").WithDetail("column", column)
	}
	hits, err := ix.Search(query, k)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredRecord, 0, len(hits))
	for _, h := range hits {
		row, err := t.file.ReadRecord(h.RID)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredRecord{RID: h.RID, Row: row, Score: h.Score})
	}
	return out, nil
}

// Delete removes key's entries from column's index and returns how many
// RIDs it unindexed. The rows stay in the heap file and in every other
// column's index.
func (t *Table) Delete(column string, raw any) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	stop := t.stats.Timer("table.delete.time")
	defer stop()
	t.stats.Inc("table.delete.calls")

	col, err := t.schema.GetColumn(column)
	if err != nil {
		return 0, err
	}
	v, err := t.schema.Coerce(col, raw)
	if err != nil {
		return 0, err
	}
	ix, ok := t.scalar[column]
	if !ok {
		return 0, dberrors.State("no index for column").WithDetail("column", column)
	}
	key := index.FromValue(v)
	rids, err := ix.Search(key)
	if err != nil {
		return 0, err
	}
	for _, rid := range rids {
		if err := ix.Remove(key, rid); err != nil {
			return 0, err
		}
	}
	if err := t.saveIndex(column); err != nil {
		return 0, err
	}
	return len(rids), nil
}

// QueryStats returns a snapshot of every recorded counter/timer.
func (t *Table) QueryStats() dbstats.Snapshot { return t.stats.Snapshot() }

// ResetStats clears every recorded counter/timer.
func (t *Table) ResetStats() { t.stats.Reset() }

// Close flushes and closes the underlying heap file.
func (t *Table) Close() error { return t.file.Close() }

// Schema exposes the table's definition.
func (t *Table) Schema() *schema.Table { return t.schema }
