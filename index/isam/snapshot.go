package isam

import (
	"os"
	"path/filepath"
	"strconv"

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
	Key wireKey       `json:"key"`
	RID datafile.RID  `json:"rid"`
}

type wirePage struct {
	Capacity int         `json:"capacity"`
	Records  []wireEntry `json:"records"`
}

func toWirePage(p *page) wirePage {
	w := wirePage{Capacity: p.capacity}
	for _, e := range p.records {
		w.Records = append(w.Records, wireEntry{Key: toWireKey(e.key), RID: e.rid})
	}
	return w
}

func fromWirePage(w wirePage) *page {
	p := newPage(w.Capacity)
	for _, e := range w.Records {
		p.records = append(p.records, entry{key: e.Key.toKey(), rid: e.RID})
	}
	return p
}

type wireBlob struct {
	PageSize  int                   `json:"pageSize"`
	Clustered bool                  `json:"clustered"`
	Keys      []wireKey             `json:"keys"`
	Pages     []wirePage            `json:"pages"`
	Overflow  map[string][]wirePage `json:"overflow"`
}

// Save persists the directory, base pages and overflow chains as JSON.
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dberrors.IO("create index directory", err)
	}
	blob := wireBlob{PageSize: ix.pageSize, Clustered: ix.clustered, Overflow: make(map[string][]wirePage)}
	for _, k := range ix.keys {
		blob.Keys = append(blob.Keys, toWireKey(k))
	}
	for _, p := range ix.pages {
		blob.Pages = append(blob.Pages, toWirePage(p))
	}
	for pageIdx, head := range ix.overflow {
		var chain []wirePage
		for cur := head; cur != nil; cur = cur.overflow {
			chain = append(chain, toWirePage(cur))
		}
		blob.Overflow[strconv.Itoa(pageIdx)] = chain
	}

	b, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return dberrors.IO("marshal isam snapshot", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return dberrors.IO("write isam snapshot", err)
	}
	return os.Rename(tmp, path)
}

// Load restores a snapshot written by Save, relinking overflow chains.
func (ix *Index) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return dberrors.IO("read isam snapshot", err)
	}
	var blob wireBlob
	if err := json.Unmarshal(b, &blob); err != nil {
		return dberrors.IO("unmarshal isam snapshot", err)
	}

	ix.pageSize = blob.PageSize
	ix.clustered = blob.Clustered
	ix.keys = nil
	for _, k := range blob.Keys {
		ix.keys = append(ix.keys, k.toKey())
	}
	ix.pages = nil
	for _, wp := range blob.Pages {
		ix.pages = append(ix.pages, fromWirePage(wp))
	}
	ix.overflow = make(map[int]*page)
	for pageIdxStr, chain := range blob.Overflow {
		pageIdx, err := strconv.Atoi(pageIdxStr)
		if err != nil {
			return dberrors.Validation("malformed overflow page index").WithDetail("raw", pageIdxStr)
		}
		var prev *page
		for _, wp := range chain {
			p := fromWirePage(wp)
			if prev == nil {
				ix.overflow[pageIdx] = p
			} else {
				prev.overflow = p
			}
			prev = p
		}
	}
	return nil
}
