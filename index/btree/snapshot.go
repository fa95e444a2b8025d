package btree

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

func toWireKey(k index.Key) wireKey {
	return wireKey{Kind: k.Kind, I: k.I, F: k.F, S: k.S}
}

func (w wireKey) toKey() index.Key {
	return index.Key{Kind: w.Kind, I: w.I, F: w.F, S: w.S}
}

type wireNode struct {
	Leaf     bool               `json:"leaf"`
	Keys     []wireKey          `json:"keys"`
	Postings [][]datafile.RID   `json:"postings,omitempty"`
	Children []wireNode         `json:"children,omitempty"`
}

type wireBlob struct {
	Order     int      `json:"order"`
	Clustered bool     `json:"clustered"`
	Tree      wireNode `json:"tree"`
}

func toWireNode(t *Tree, idx int) wireNode {
	n := t.at(idx)
	w := wireNode{Leaf: n.isLeaf}
	for _, k := range n.keys {
		w.Keys = append(w.Keys, toWireKey(k))
	}
	if n.isLeaf {
		w.Postings = n.postings
	} else {
		for _, c := range n.children {
			w.Children = append(w.Children, toWireNode(t, c))
		}
	}
	return w
}

// Save serializes the tree to path as JSON, matching the reference
// implementation's recursive node dump.
func (t *Tree) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dberrors.IO("create index directory", err)
	}
	blob := wireBlob{Order: t.order, Clustered: t.clustered, Tree: toWireNode(t, t.root)}
	b, err := json.Marshal(blob)
	if err != nil {
		return dberrors.IO("marshal btree snapshot", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return dberrors.IO("write btree snapshot", err)
	}
	return os.Rename(tmp, path)
}

// Load rebuilds the tree from a snapshot written by Save, reconstructing
// leaf-to-leaf next pointers with an in-order leaf walk.
func (t *Tree) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return dberrors.IO("read btree snapshot", err)
	}
	var blob wireBlob
	if err := json.Unmarshal(b, &blob); err != nil {
		return dberrors.IO("unmarshal btree snapshot", err)
	}

	t.order = blob.Order
	t.clustered = blob.Clustered
	t.arena = t.arena[:0]
	t.root = t.buildFromWire(blob.Tree)

	var leaves []int
	var collect func(idx int)
	collect = func(idx int) {
		n := t.at(idx)
		if n.isLeaf {
			leaves = append(leaves, idx)
			return
		}
		for _, c := range n.children {
			collect(c)
		}
	}
	collect(t.root)
	for i := 0; i < len(leaves)-1; i++ {
		t.at(leaves[i]).next = leaves[i+1]
	}
	if len(leaves) > 0 {
		t.at(leaves[len(leaves)-1]).next = -1
	}
	return nil
}

func (t *Tree) buildFromWire(w wireNode) int {
	idx := t.newNode(w.Leaf)
	n := t.at(idx)
	for _, k := range w.Keys {
		n.keys = append(n.keys, k.toKey())
	}
	if w.Leaf {
		n.postings = w.Postings
		return idx
	}
	for _, c := range w.Children {
		n.children = append(n.children, t.buildFromWire(c))
	}
	return idx
}
