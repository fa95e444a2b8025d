// Package index defines the capability interfaces every index
// implementation (btree, avl, isam, exthash, rtree, inverted) satisfies, so
// the table manager can dispatch to whichever index is best for a given
// query without knowing its concrete type.
package index

import (
	"fmt"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/record"
)

// Key is the canonical, comparable form every scalar index (btree, avl,
// isam, exthash) sorts and hashes on. It wraps the coerced record.Value so
// an int column and a date column never compare across kinds.
type Key struct {
	Kind     record.Kind
	I        int64
	F        float64
	S        string
	FloatVec []float64
}

// FromValue builds a Key from a coerced column value.
func FromValue(v record.Value) Key {
	switch v.Kind {
	case record.KindInt:
		return Key{Kind: v.Kind, I: v.Int}
	case record.KindFloat:
		return Key{Kind: v.Kind, F: v.Float}
	case record.KindDate:
		return Key{Kind: v.Kind, S: v.DateISO}
	case record.KindFloatVec:
		return Key{Kind: v.Kind, FloatVec: v.FloatVec}
	default:
		return Key{Kind: v.Kind, S: v.Text}
	}
}

// Compare returns -1, 0 or 1. Keys of different Kind are ordered by Kind,
// which only matters if a caller mixes key types on one index — something
// schema.Table.Coerce prevents by construction.
func (a Key) Compare(b Key) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	switch a.Kind {
	case record.KindInt:
		switch {
		case a.I < b.I:
			return -1
		case a.I > b.I:
			return 1
		default:
			return 0
		}
	case record.KindFloat:
		switch {
		case a.F < b.F:
			return -1
		case a.F > b.F:
			return 1
		default:
			return 0
		}
	default:
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		default:
			return 0
		}
	}
}

func (a Key) String() string {
	switch a.Kind {
	case record.KindInt:
		return fmt.Sprintf("%d", a.I)
	case record.KindFloat:
		return fmt.Sprintf("%g", a.F)
	case record.KindFloatVec:
		return fmt.Sprintf("%v", a.FloatVec)
	default:
		return a.S
	}
}

// Stats is the common per-index counter set surfaced by GetStats.
type Stats struct {
	Kind      string
	Searches  int64
	Inserts   int64
	Removes   int64
	Rebuilds  int64
	Extra     map[string]int64
}

// Index is the base capability set every index implementation provides.
type Index interface {
	Search(key Key) ([]datafile.RID, error)
	RangeSearch(lo, hi Key) ([]datafile.RID, error)
	Add(key Key, rid datafile.RID) error
	Remove(key Key, rid datafile.RID) error
	GetStats() Stats
	Save(path string) error
	Load(path string) error
}

// SpatialIndex is advertised by indexes that additionally support radius
// and nearest-neighbor queries over point/vector keys (the R-tree).
type SpatialIndex interface {
	Index
	RangeRadius(center []float64, radius float64) ([]datafile.RID, error)
	KNN(point []float64, k int) ([]datafile.RID, error)
}

// TextIndex is advertised by full-text indexes (the SPIMI-built inverted
// index), which operate on free text rather than scalar keys.
type TextIndex interface {
	AddDocument(rid datafile.RID, text string) error
	Search(query string, k int) ([]ScoredDoc, error)
	GetStats() Stats
	Save(path string) error
	Load(path string) error
}

// ScoredDoc is one ranked hit from a full-text query.
type ScoredDoc struct {
	RID   datafile.RID
	Score float64
}
