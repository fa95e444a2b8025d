// Package catalog implements the two levels of the on-disk layout above a
// single table: a Database (one directory holding many tables) and a
// Catalog (one directory holding many users' databases).
package catalog

import (
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/intellect4all/reldb/dberrors"
	"github.com/intellect4all/reldb/schema"
	"github.com/intellect4all/reldb/table"
)

// Config configures a Database.
type Config struct {
	RootDir string
	Logger  *zap.SugaredLogger
}

type databaseMeta struct {
	Name   string   `json:"name"`
	Tables []string `json:"tables"`
}

// Database is one directory of tables, each in its own subdirectory under
// baseDir/tables/<name>/.
type Database struct {
	baseDir string
	name    string
	log     *zap.SugaredLogger

	mu     sync.Mutex
	tables map[string]*table.Table
}

// OpenDatabase loads every table listed in metadata.json, creating an
// empty one if the database directory is new.
func OpenDatabase(cfg Config, name string) (*Database, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.RootDir == "" {
		return nil, dberrors.Validation("catalog root dir required")
	}
	baseDir := filepath.Join(cfg.RootDir, name)
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, dberrors.IO("create database directory", err)
	}

	db := &Database{baseDir: baseDir, name: name, log: log, tables: make(map[string]*table.Table)}
	if err := db.loadMetadata(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *Database) metaPath() string { return filepath.Join(db.baseDir, "metadata.json") }

func (db *Database) loadMetadata() error {
	raw, err := os.ReadFile(db.metaPath())
	if os.IsNotExist(err) {
		return db.saveMetadata()
	}
	if err != nil {
		return dberrors.IO("read database metadata", err)
	}
	var meta databaseMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return dberrors.IO("unmarshal database metadata", err)
	}

	for _, tname := range meta.Tables {
		tdir := filepath.Join(db.baseDir, "tables", tname)
		schemaPath := filepath.Join(tdir, "schema.json")
		if _, err := os.Stat(schemaPath); err != nil {
			db.log.Warnw("table listed in metadata but schema missing, skipping", "table", tname)
			continue
		}
		sch, err := schema.Load(schemaPath)
		if err != nil {
			return err
		}
		tb, err := table.Open(table.Config{BaseDir: tdir, Logger: db.log}, sch)
		if err != nil {
			return err
		}
		db.tables[tname] = tb
	}
	return nil
}

// saveMetadata atomically rewrites metadata.json to reflect the current
// table set.
func (db *Database) saveMetadata() error {
	if err := os.MkdirAll(filepath.Join(db.baseDir, "tables"), 0o755); err != nil {
		return dberrors.IO("create tables directory", err)
	}
	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	meta := databaseMeta{Name: db.name, Tables: names}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return dberrors.IO("marshal database metadata", err)
	}
	tmp := db.metaPath() + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return dberrors.IO("write database metadata", err)
	}
	return os.Rename(tmp, db.metaPath())
}

// CreateTable assigns default indexes to sch's columns, persists it, opens
// a fresh table directory, and records it in metadata.json.
func (db *Database) CreateTable(sch *schema.Table) (*table.Table, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.tables[sch.Name]; exists {
		return nil, dberrors.State("table already exists").WithDetail("table", sch.Name)
	}
	sch.SuggestIndexes()

	tdir := filepath.Join(db.baseDir, "tables", sch.Name)
	tb, err := table.Create(table.Config{BaseDir: tdir, Logger: db.log}, sch)
	if err != nil {
		return nil, err
	}
	db.tables[sch.Name] = tb
	if err := db.saveMetadata(); err != nil {
		return nil, err
	}
	return tb, nil
}

// DropTable removes a table from the in-memory registry and metadata.json
// without touching its on-disk files, mirroring the reference
// implementation's conservative drop_table.
func (db *Database) DropTable(name string) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tb, ok := db.tables[name]
	if !ok {
		return false, nil
	}
	if err := tb.Close(); err != nil {
		return false, err
	}
	delete(db.tables, name)
	if err := db.saveMetadata(); err != nil {
		return false, err
	}
	return true, nil
}

// GetTable returns the named table, or (nil, false) if it doesn't exist.
func (db *Database) GetTable(name string) (*table.Table, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	tb, ok := db.tables[name]
	return tb, ok
}

// ListTables returns every table name registered in this database.
func (db *Database) ListTables() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]string, 0, len(db.tables))
	for name := range db.tables {
		out = append(out, name)
	}
	return out
}

// Close closes every open table in the database.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, tb := range db.tables {
		if err := tb.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Catalog is the top-level "users/<user>/databases/<db>" directory walker
// spec §6 names but spec.md §4.10 leaves unhomed; it lazily opens and
// caches one Database per (user, database name) pair.
type Catalog struct {
	rootDir string
	log     *zap.SugaredLogger

	mu sync.Mutex
	dbs map[string]*Database // key: user + "/" + db name
}

func NewCatalog(rootDir string, log *zap.SugaredLogger) *Catalog {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Catalog{rootDir: rootDir, log: log, dbs: make(map[string]*Database)}
}

func (c *Catalog) key(user, db string) string { return user + "/" + db }

// OpenDatabase opens (or creates) user's database db under
// rootDir/users/<user>/databases/<db>/.
func (c *Catalog) OpenDatabase(user, db string) (*Database, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(user, db)
	if existing, ok := c.dbs[k]; ok {
		return existing, nil
	}
	dir := filepath.Join(c.rootDir, "users", user, "databases")
	opened, err := OpenDatabase(Config{RootDir: dir, Logger: c.log}, db)
	if err != nil {
		return nil, err
	}
	c.dbs[k] = opened
	return opened, nil
}

// ListDatabases lists every database directory registered for user.
func (c *Catalog) ListDatabases(user string) ([]string, error) {
	dir := filepath.Join(c.rootDir, "users", user, "databases")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, dberrors.IO("list databases", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
