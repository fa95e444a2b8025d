// Package schema defines table/column metadata, the value-coercion table
// spec §3 requires, and atomic JSON persistence of a table's definition.
package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/intellect4all/reldb/dberrors"
	"github.com/intellect4all/reldb/record"
)

// ColumnType is the declared type of a column.
type ColumnType string

const (
	Int        ColumnType = "INT"
	Float      ColumnType = "FLOAT"
	Date       ColumnType = "DATE"
	Varchar    ColumnType = "VARCHAR"
	ArrayFloat ColumnType = "ARRAY_FLOAT"
)

// IndexKind is the index implementation assigned to a column.
type IndexKind string

const (
	BTree    IndexKind = "BTREE"
	AVL      IndexKind = "AVL"
	ISAM     IndexKind = "ISAM"
	Hash     IndexKind = "HASH"
	RTree    IndexKind = "RTREE"
	FullText IndexKind = "FULLTEXT"
	None     IndexKind = ""
)

// Column describes one table column.
type Column struct {
	Name       string     `json:"name"`
	Type       ColumnType `json:"col_type"`
	MaxLen     int        `json:"length,omitempty"`
	Nullable   bool       `json:"nullable"`
	Unique     bool       `json:"unique"`
	PrimaryKey bool       `json:"primary_key"`
	Index      IndexKind  `json:"index,omitempty"`
}

// kind maps a declared ColumnType to the record.Kind it coerces to.
func (c Column) kind() record.Kind {
	switch c.Type {
	case Int:
		return record.KindInt
	case Float:
		return record.KindFloat
	case Date:
		return record.KindDate
	case ArrayFloat:
		return record.KindFloatVec
	default:
		return record.KindText
	}
}

// Table is a table's full definition: column list plus the index assigned
// to each indexed column.
type Table struct {
	Name    string           `json:"name"`
	Columns []Column         `json:"columns"`
	Indexes map[string]IndexKind `json:"indexes"`
}

func New(name string) *Table {
	return &Table{Name: name, Indexes: make(map[string]IndexKind)}
}

// AddColumn appends column, rejecting a duplicate name.
func (t *Table) AddColumn(col Column) error {
	for _, c := range t.Columns {
		if c.Name == col.Name {
			return dberrors.Validation("duplicate column").WithDetail("column", col.Name)
		}
	}
	t.Columns = append(t.Columns, col)
	return nil
}

// SuggestIndexes assigns a default index kind to every primary-key/unique
// column and every INT/FLOAT/DATE column, leaving VARCHAR/ARRAY_FLOAT
// columns unindexed unless the caller calls AddIndex explicitly.
func (t *Table) SuggestIndexes() {
	for i := range t.Columns {
		c := &t.Columns[i]
		if c.Index != None {
			t.Indexes[c.Name] = c.Index
			continue
		}
		switch {
		case c.PrimaryKey || c.Unique:
			c.Index = BTree
		case c.Type == Int || c.Type == Float || c.Type == Date:
			c.Index = BTree
		default:
			c.Index = None
		}
		if c.Index != None {
			t.Indexes[c.Name] = c.Index
		}
	}
}

// AddIndex assigns (or overrides) the index kind for an existing column.
func (t *Table) AddIndex(columnName string, kind IndexKind) error {
	for i := range t.Columns {
		if t.Columns[i].Name == columnName {
			t.Columns[i].Index = kind
			t.Indexes[columnName] = kind
			return nil
		}
	}
	return dberrors.NotFound("column does not exist").WithDetail("column", columnName)
}

// GetColumn looks up a column by name.
func (t *Table) GetColumn(name string) (Column, error) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, nil
		}
	}
	return Column{}, dberrors.NotFound("column not found").WithDetail("column", name)
}

// ColumnSpecs returns the codec's positional column view, in declared
// column order.
func (t *Table) ColumnSpecs() []record.ColumnSpec {
	specs := make([]record.ColumnSpec, len(t.Columns))
	for i, c := range t.Columns {
		specs[i] = record.ColumnSpec{Name: c.Name, Kind: c.kind()}
	}
	return specs
}

// Coerce converts a raw Go value into a record.Value for col per spec §3's
// coercion table. VARCHAR silently truncates to MaxLen; every other
// mismatch is a validation error naming the column.
func (t *Table) Coerce(col Column, raw any) (record.Value, error) {
	switch col.Type {
	case Int:
		switch v := raw.(type) {
		case int:
			return record.Int(int64(v)), nil
		case int64:
			return record.Int(v), nil
		case float64:
			return record.Int(int64(v)), nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return record.Value{}, dberrors.Validation("not an integer").WithDetail("column", col.Name)
			}
			return record.Int(n), nil
		default:
			return record.Value{}, dberrors.Validation("cannot coerce to INT").WithDetail("column", col.Name)
		}
	case Float:
		switch v := raw.(type) {
		case float64:
			return record.Float(v), nil
		case int:
			return record.Float(float64(v)), nil
		case int64:
			return record.Float(float64(v)), nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return record.Value{}, dberrors.Validation("not a float").WithDetail("column", col.Name)
			}
			return record.Float(f), nil
		default:
			return record.Value{}, dberrors.Validation("cannot coerce to FLOAT").WithDetail("column", col.Name)
		}
	case Date:
		s, ok := raw.(string)
		if !ok {
			return record.Value{}, dberrors.Validation("DATE requires an ISO string").WithDetail("column", col.Name)
		}
		return record.Date(s), nil
	case Varchar:
		s, ok := raw.(string)
		if !ok {
			s = fmt.Sprintf("%v", raw)
		}
		if col.MaxLen > 0 && len(s) > col.MaxLen {
			s = s[:col.MaxLen]
		}
		return record.Text(s), nil
	case ArrayFloat:
		switch v := raw.(type) {
		case []float64:
			return record.FloatVec(v), nil
		case []any:
			out := make([]float64, len(v))
			for i, e := range v {
				f, ok := e.(float64)
				if !ok {
					return record.Value{}, dberrors.Validation("ARRAY_FLOAT element is not numeric").WithDetail("column", col.Name)
				}
				out[i] = f
			}
			return record.FloatVec(out), nil
		default:
			return record.Value{}, dberrors.Validation("cannot coerce to ARRAY_FLOAT").WithDetail("column", col.Name)
		}
	default:
		return record.Value{}, dberrors.Validation("unknown column type").WithDetail("column", col.Name)
	}
}

// Save atomically persists the table definition to path via a temp-file
// write followed by rename, matching the reference implementation.
func (t *Table) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dberrors.IO("create schema directory", err)
	}
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return dberrors.IO("marshal schema", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return dberrors.IO("write schema temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return dberrors.IO("rename schema temp file", err)
	}
	return nil
}

// Load reads a table definition previously written by Save.
func Load(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, dberrors.IO("read schema", err)
	}
	var t Table
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, dberrors.IO("unmarshal schema", err)
	}
	if t.Indexes == nil {
		t.Indexes = make(map[string]IndexKind)
	}
	return &t, nil
}
