// Package exthash implements extendible hashing: a directory of bucket
// indices addressed by the low globalDepth bits of xxh3(key), with
// directory doubling and bucket splitting on overflow.
package exthash

import (
	"sync/atomic"

	"github.com/zeebo/xxh3"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/index"
)

type bucket struct {
	localDepth int
	capacity   int
	entries    map[string][]datafile.RID
	keys       map[string]index.Key // original key per hashed string, for redistribution
}

func newBucket(localDepth, capacity int) *bucket {
	return &bucket{localDepth: localDepth, capacity: capacity, entries: make(map[string][]datafile.RID), keys: make(map[string]index.Key)}
}

func (b *bucket) size() int {
	n := 0
	for _, v := range b.entries {
		n += len(v)
	}
	return n
}

func (b *bucket) isFull() bool { return b.size() >= b.capacity }

func (b *bucket) add(k index.Key, rid datafile.RID) {
	ks := k.String()
	b.entries[ks] = append(b.entries[ks], rid)
	b.keys[ks] = k
}

// Config configures an Index.
type Config struct {
	Clustered      bool
	GlobalDepth    int
	BucketCapacity int
}

func DefaultConfig() Config { return Config{Clustered: true, GlobalDepth: 2, BucketCapacity: 8} }

// Index is the extendible hash index.
type Index struct {
	clustered      bool
	globalDepth    int
	bucketCapacity int
	buckets        []*bucket
	directory      []int

	searches atomic.Int64
	inserts  atomic.Int64
	removes  atomic.Int64
	splits   atomic.Int64
}

func New(cfg Config) *Index {
	depth := cfg.GlobalDepth
	if depth < 1 {
		depth = 1
	}
	cap := cfg.BucketCapacity
	if cap <= 0 {
		cap = 8
	}
	ix := &Index{clustered: cfg.Clustered, globalDepth: depth, bucketCapacity: cap}
	ix.initEmpty()
	return ix
}

func (ix *Index) initEmpty() {
	num := 1 << ix.globalDepth
	ix.buckets = make([]*bucket, 0, num)
	for i := 0; i < num; i++ {
		ix.buckets = append(ix.buckets, newBucket(ix.globalDepth, ix.bucketCapacity))
	}
	ix.directory = make([]int, num)
	for i := range ix.directory {
		ix.directory[i] = i
	}
}

func (ix *Index) hash(k index.Key) int {
	h := xxh3.HashString(k.String())
	mask := uint64(1<<uint(ix.globalDepth)) - 1
	return int(h & mask)
}

func (ix *Index) bucketIndexFor(k index.Key) int {
	return ix.directory[ix.hash(k)]
}

func (ix *Index) Search(key index.Key) ([]datafile.RID, error) {
	ix.searches.Add(1)
	b := ix.buckets[ix.bucketIndexFor(key)]
	out := append([]datafile.RID{}, b.entries[key.String()]...)
	return out, nil
}

// RangeSearch is unsupported by extendible hashing and always returns
// empty, matching the reference implementation.
func (ix *Index) RangeSearch(_, _ index.Key) ([]datafile.RID, error) {
	return nil, nil
}

func (ix *Index) Add(key index.Key, rid datafile.RID) error {
	ix.inserts.Add(1)
	bidx := ix.bucketIndexFor(key)
	b := ix.buckets[bidx]

	if _, exists := b.entries[key.String()]; exists || !b.isFull() {
		b.add(key, rid)
		return nil
	}

	ix.splitBucket(bidx)
	bidx2 := ix.bucketIndexFor(key)
	ix.buckets[bidx2].add(key, rid)
	return nil
}

func (ix *Index) Remove(key index.Key, _ datafile.RID) error {
	ix.removes.Add(1)
	b := ix.buckets[ix.bucketIndexFor(key)]
	ks := key.String()
	if _, ok := b.entries[ks]; ok {
		delete(b.entries, ks)
		delete(b.keys, ks)
	}
	return nil
}

// splitBucket grows the bucket at bidx, doubling the directory first if
// its local depth has caught up to the global depth, then rewires the
// directory's upper-half entries and redistributes the bucket's contents.
func (ix *Index) splitBucket(bidx int) {
	ix.splits.Add(1)
	b := ix.buckets[bidx]
	if b.localDepth == ix.globalDepth {
		ix.doubleDirectory()
	}

	newDepth := b.localDepth + 1
	b.localDepth = newDepth
	newBkt := newBucket(newDepth, ix.bucketCapacity)
	ix.buckets = append(ix.buckets, newBkt)
	newIdx := len(ix.buckets) - 1

	bit := 1 << uint(newDepth-1)
	for i, idx := range ix.directory {
		if idx == bidx && (i&bit) != 0 {
			ix.directory[i] = newIdx
		}
	}

	oldEntries, oldKeys := b.entries, b.keys
	b.entries = make(map[string][]datafile.RID)
	b.keys = make(map[string]index.Key)

	for ks, rids := range oldEntries {
		k := oldKeys[ks]
		for _, rid := range rids {
			target := ix.buckets[ix.bucketIndexFor(k)]
			target.add(k, rid)
		}
	}
}

func (ix *Index) doubleDirectory() {
	old := ix.directory
	ix.globalDepth++
	ix.directory = append(append([]int{}, old...), old...)
}

func (ix *Index) GetStats() index.Stats {
	return index.Stats{
		Kind:     "HASH",
		Searches: ix.searches.Load(),
		Inserts:  ix.inserts.Load(),
		Removes:  ix.removes.Load(),
		Extra: map[string]int64{
			"globalDepth":      int64(ix.globalDepth),
			"buckets":          int64(len(ix.buckets)),
			"directoryEntries": int64(len(ix.directory)),
			"splits":           ix.splits.Load(),
		},
	}
}
