package rtree

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/dberrors"
)

type wireEntry struct {
	Lower []float64    `json:"lower"`
	Upper []float64    `json:"upper"`
	Child int          `json:"child"`
	Point []float64    `json:"point,omitempty"`
	RID   datafile.RID `json:"rid,omitempty"`
}

type wireNode struct {
	IsLeaf  bool        `json:"isLeaf"`
	Parent  int         `json:"parent"`
	Entries []wireEntry `json:"entries"`
}

type wireBlob struct {
	Dimensions int        `json:"dimensions"`
	MaxEntries int        `json:"maxEntries"`
	MinEntries int        `json:"minEntries"`
	Root       int        `json:"root"`
	Size       int        `json:"size"`
	Nodes      []wireNode `json:"nodes"`
}

// Save persists the node arena, root pointer and size as JSON, replacing
// the reference implementation's pickle dump (which cannot target Go and
// would not be portable across versions anyway).
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dberrors.IO("create index directory", err)
	}
	blob := wireBlob{
		Dimensions: ix.dimensions,
		MaxEntries: ix.maxEntries,
		MinEntries: ix.minEntries,
		Root:       ix.root,
		Size:       ix.size,
	}
	for _, n := range ix.nodes {
		wn := wireNode{IsLeaf: n.isLeaf, Parent: n.parent}
		for _, e := range n.entries {
			wn.Entries = append(wn.Entries, wireEntry{
				Lower: e.mbr.Lower,
				Upper: e.mbr.Upper,
				Child: e.child,
				Point: e.point,
				RID:   e.rid,
			})
		}
		blob.Nodes = append(blob.Nodes, wn)
	}

	b, err := json.Marshal(blob)
	if err != nil {
		return dberrors.IO("marshal rtree snapshot", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return dberrors.IO("write rtree snapshot", err)
	}
	return os.Rename(tmp, path)
}

// Load restores the node arena from a snapshot written by Save.
func (ix *Index) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return dberrors.IO("read rtree snapshot", err)
	}
	var blob wireBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return dberrors.IO("unmarshal rtree snapshot", err)
	}

	ix.dimensions = blob.Dimensions
	ix.maxEntries = blob.MaxEntries
	ix.minEntries = blob.MinEntries
	ix.root = blob.Root
	ix.size = blob.Size
	ix.nodes = ix.nodes[:0]
	for _, wn := range blob.Nodes {
		n := &node{isLeaf: wn.IsLeaf, parent: wn.Parent}
		for _, we := range wn.Entries {
			n.entries = append(n.entries, entry{
				mbr:   MBR{Lower: we.Lower, Upper: we.Upper},
				child: we.Child,
				point: we.Point,
				rid:   we.RID,
			})
		}
		if len(n.entries) > 0 {
			n.updateMBR()
		}
		ix.nodes = append(ix.nodes, n)
	}
	if len(ix.nodes) == 0 {
		ix.root = ix.newNode(true, -1)
	}
	return nil
}
