package avl

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/dberrors"
	"github.com/intellect4all/reldb/index"
	"github.com/intellect4all/reldb/record"
)

type wireKey struct {
	Kind record.Kind `json:"kind"`
	I    int64       `json:"i,omitempty"`
	F    float64     `json:"f,omitempty"`
	S    string      `json:"s,omitempty"`
}

func toWireKey(k index.Key) wireKey { return wireKey{Kind: k.Kind, I: k.I, F: k.F, S: k.S} }
func (w wireKey) toKey() index.Key  { return index.Key{Kind: w.Kind, I: w.I, F: w.F, S: w.S} }

type wireEntry struct {
	Key      wireKey          `json:"key"`
	Postings []datafile.RID   `json:"postings"`
}

type wireBlob struct {
	Clustered bool        `json:"clustered"`
	Data      []wireEntry `json:"data"`
}

// Save writes an in-order sorted array of (key, postings) pairs, the same
// shape the reference implementation's save_idx produces.
func (t *Tree) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dberrors.IO("create index directory", err)
	}
	var blob wireBlob
	blob.Clustered = t.clustered
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		walk(n.left)
		blob.Data = append(blob.Data, wireEntry{Key: toWireKey(n.key), Postings: n.postings})
		walk(n.right)
	}
	walk(t.root)

	b, err := json.Marshal(blob)
	if err != nil {
		return dberrors.IO("marshal avl snapshot", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return dberrors.IO("write avl snapshot", err)
	}
	return os.Rename(tmp, path)
}

// Load rebuilds a height-balanced tree from the sorted array via recursive
// midpoint splitting, matching the reference implementation's load_idx.
func (t *Tree) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return dberrors.IO("read avl snapshot", err)
	}
	var blob wireBlob
	if err := json.Unmarshal(b, &blob); err != nil {
		return dberrors.IO("unmarshal avl snapshot", err)
	}
	t.clustered = blob.Clustered

	var build func(lo, hi int) *node
	build = func(lo, hi int) *node {
		if lo > hi {
			return nil
		}
		mid := (lo + hi) / 2
		e := blob.Data[mid]
		n := &node{key: e.Key.toKey(), postings: e.Postings}
		n.left = build(lo, mid-1)
		n.right = build(mid+1, hi)
		update(n)
		return n
	}
	t.root = build(0, len(blob.Data)-1)
	return nil
}
