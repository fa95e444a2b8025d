package exthash

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

type wireBucketEntry struct {
	Key      wireKey        `json:"key"`
	Postings []datafile.RID `json:"postings"`
}

type wireBucket struct {
	LocalDepth int               `json:"localDepth"`
	Entries    []wireBucketEntry `json:"entries"`
}

type wireBlob struct {
	Clustered      bool         `json:"clustered"`
	GlobalDepth    int          `json:"globalDepth"`
	BucketCapacity int          `json:"bucketCapacity"`
	Buckets        []wireBucket `json:"buckets"`
	Directory      []int        `json:"directory"`
}

// Save persists buckets, their local depths and the directory as JSON.
func (ix *Index) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dberrors.IO("create index directory", err)
	}
	blob := wireBlob{
		Clustered:      ix.clustered,
		GlobalDepth:    ix.globalDepth,
		BucketCapacity: ix.bucketCapacity,
		Directory:      ix.directory,
	}
	for _, b := range ix.buckets {
		wb := wireBucket{LocalDepth: b.localDepth}
		for ks, rids := range b.entries {
			wb.Entries = append(wb.Entries, wireBucketEntry{Key: toWireKey(b.keys[ks]), Postings: rids})
		}
		blob.Buckets = append(blob.Buckets, wb)
	}

	b, err := json.Marshal(blob)
	if err != nil {
		return dberrors.IO("marshal exthash snapshot", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return dberrors.IO("write exthash snapshot", err)
	}
	return os.Rename(tmp, path)
}

// Load restores buckets and the directory from a snapshot written by Save.
func (ix *Index) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return dberrors.IO("read exthash snapshot", err)
	}
	var blob wireBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return dberrors.IO("unmarshal exthash snapshot", err)
	}

	ix.clustered = blob.Clustered
	ix.globalDepth = blob.GlobalDepth
	ix.bucketCapacity = blob.BucketCapacity
	ix.buckets = nil
	for _, wb := range blob.Buckets {
		b := newBucket(wb.LocalDepth, ix.bucketCapacity)
		for _, e := range wb.Entries {
			k := e.Key.toKey()
			ks := k.String()
			b.entries[ks] = e.Postings
			b.keys[ks] = k
		}
		ix.buckets = append(ix.buckets, b)
	}
	ix.directory = append([]int{}, blob.Directory...)
	if len(ix.buckets) == 0 {
		ix.initEmpty()
	}
	return nil
}
