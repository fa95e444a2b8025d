// Package isam implements a two-level static index: a sorted directory of
// separator keys over fixed-capacity base pages, with per-base-page
// overflow chains absorbing growth after the structure is built.
package isam

import (
	"sort"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/index"
)

type entry struct {
	key index.Key
	rid datafile.RID
}

type page struct {
	capacity int
	records  []entry
	overflow *page
}

func newPage(capacity int) *page { return &page{capacity: capacity} }

func (p *page) isFull() bool { return len(p.records) >= p.capacity }

func (p *page) addRecord(e entry) bool {
	if p.isFull() {
		return false
	}
	p.records = append(p.records, e)
	return true
}

// Config configures an Index. PageSize is the block factor (records per
// base page), defaulting to 10 as in the reference implementation.
type Config struct {
	PageSize  int
	Clustered bool
	Logger    *zap.SugaredLogger
}

func DefaultConfig() Config { return Config{PageSize: 10, Clustered: true} }

// Index is the ISAM two-level static index.
type Index struct {
	pageSize  int
	clustered bool
	log       *zap.SugaredLogger

	keys     []index.Key // separator key per base page: the smallest key it held when created
	pages    []*page
	overflow map[int]*page

	searches atomic.Int64
	inserts  atomic.Int64
	removes  atomic.Int64
}

func New(cfg Config) *Index {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Index{pageSize: pageSize, clustered: cfg.Clustered, log: log, overflow: make(map[int]*page)}
}

// findPageIndex mirrors ISAM._find_page_index: bisect_right over the
// separator keys, then step back one.
func (ix *Index) findPageIndex(key index.Key) int {
	if len(ix.keys) == 0 {
		return 0
	}
	i := sort.Search(len(ix.keys), func(i int) bool { return ix.keys[i].Compare(key) > 0 })
	if i == 0 {
		return 0
	}
	return i - 1
}

// Search scans the selected base page and its overflow chain for exact
// matches. Unlike the Python reference, the key is already canonicalized
// (via schema.Table.Coerce → index.Key) before it reaches this method, so
// a same-value int/string mismatch across the directory and the stored
// record can never occur here.
func (ix *Index) Search(key index.Key) ([]datafile.RID, error) {
	ix.searches.Add(1)
	pageIdx := ix.findPageIndex(key)
	var out []datafile.RID
	if pageIdx >= len(ix.pages) {
		return out, nil
	}

	base := ix.pages[pageIdx]
	for _, e := range base.records {
		if e.key.Compare(key) == 0 {
			out = append(out, e.rid)
		}
	}
	cur := ix.overflow[pageIdx]
	for cur != nil {
		for _, e := range cur.records {
			if e.key.Compare(key) == 0 {
				out = append(out, e.rid)
			}
		}
		cur = cur.overflow
	}
	ix.log.Debugw("isam search", "key", key.String(), "page", pageIdx, "hits", len(out))
	return out, nil
}

// RangeSearch walks every base page from the starting page forward,
// stopping once a page's separator key exceeds hi.
func (ix *Index) RangeSearch(lo, hi index.Key) ([]datafile.RID, error) {
	ix.searches.Add(1)
	var out []datafile.RID
	start := ix.findPageIndex(lo)
	for pageIdx := start; pageIdx < len(ix.pages); pageIdx++ {
		if pageIdx > start && ix.keys[pageIdx].Compare(hi) > 0 {
			break
		}
		for _, e := range ix.pages[pageIdx].records {
			if e.key.Compare(lo) >= 0 && e.key.Compare(hi) <= 0 {
				out = append(out, e.rid)
			}
		}
		cur := ix.overflow[pageIdx]
		for cur != nil {
			for _, e := range cur.records {
				if e.key.Compare(lo) >= 0 && e.key.Compare(hi) <= 0 {
					out = append(out, e.rid)
				}
			}
			cur = cur.overflow
		}
	}
	return out, nil
}

// Add inserts a (key, rid) pair. Base pages are never split once built:
// growth is either a brand-new tail base page (key greater than every
// existing separator) or an overflow-chain append, per spec.
func (ix *Index) Add(key index.Key, rid datafile.RID) error {
	ix.inserts.Add(1)
	e := entry{key: key, rid: rid}

	if len(ix.pages) == 0 {
		ix.keys = append(ix.keys, key)
		p := newPage(ix.pageSize)
		p.addRecord(e)
		ix.pages = append(ix.pages, p)
		return nil
	}

	pageIdx := ix.findPageIndex(key)
	if pageIdx >= len(ix.pages) {
		pageIdx = len(ix.pages) - 1
	}

	base := ix.pages[pageIdx]
	if !base.isFull() {
		base.addRecord(e)
		return nil
	}

	if pageIdx == len(ix.pages)-1 && key.Compare(ix.keys[len(ix.keys)-1]) > 0 {
		ix.keys = append(ix.keys, key)
		p := newPage(ix.pageSize)
		p.addRecord(e)
		ix.pages = append(ix.pages, p)
		return nil
	}

	head, ok := ix.overflow[pageIdx]
	if !ok {
		head = newPage(ix.pageSize)
		head.addRecord(e)
		ix.overflow[pageIdx] = head
		return nil
	}
	cur := head
	for {
		if cur.addRecord(e) {
			return nil
		}
		if cur.overflow == nil {
			cur.overflow = newPage(ix.pageSize)
			cur.overflow.addRecord(e)
			return nil
		}
		cur = cur.overflow
	}
}

// Remove deletes every entry matching key from the selected base page and
// its overflow chain.
func (ix *Index) Remove(key index.Key, _ datafile.RID) error {
	ix.removes.Add(1)
	pageIdx := ix.findPageIndex(key)
	removed := false
	if pageIdx < len(ix.pages) {
		base := ix.pages[pageIdx]
		before := len(base.records)
		base.records = filterOut(base.records, key)
		removed = removed || len(base.records) < before

		cur := ix.overflow[pageIdx]
		for cur != nil {
			before := len(cur.records)
			cur.records = filterOut(cur.records, key)
			removed = removed || len(cur.records) < before
			cur = cur.overflow
		}
	}
	_ = removed
	return nil
}

func filterOut(records []entry, key index.Key) []entry {
	out := records[:0]
	for _, e := range records {
		if e.key.Compare(key) != 0 {
			out = append(out, e)
		}
	}
	return out
}

// BuildFromPairs replaces the index contents with a bulk build: sort pairs
// by key, chunk into fixed-capacity base pages, one separator per page
// (that page's smallest key).
func (ix *Index) BuildFromPairs(pairs []struct {
	Key index.Key
	RID datafile.RID
}) {
	if len(pairs) == 0 {
		return
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key.Compare(pairs[j].Key) < 0 })

	ix.keys = nil
	ix.pages = nil
	cur := newPage(ix.pageSize)

	for _, kv := range pairs {
		if cur.isFull() {
			ix.pages = append(ix.pages, cur)
			cur = newPage(ix.pageSize)
		}
		if len(cur.records) == 0 {
			ix.keys = append(ix.keys, kv.Key)
		}
		cur.addRecord(entry{key: kv.Key, rid: kv.RID})
	}
	if len(cur.records) > 0 {
		ix.pages = append(ix.pages, cur)
	}
	ix.overflow = make(map[int]*page)
}

func (ix *Index) GetStats() index.Stats {
	overflowPages, overflowRecords := 0, 0
	for _, head := range ix.overflow {
		for cur := head; cur != nil; cur = cur.overflow {
			overflowPages++
			overflowRecords += len(cur.records)
		}
	}
	baseRecords := 0
	for _, p := range ix.pages {
		baseRecords += len(p.records)
	}
	return index.Stats{
		Kind:     "ISAM",
		Searches: ix.searches.Load(),
		Inserts:  ix.inserts.Load(),
		Removes:  ix.removes.Load(),
		Extra: map[string]int64{
			"basePages":       int64(len(ix.pages)),
			"baseRecords":     int64(baseRecords),
			"overflowChains":  int64(len(ix.overflow)),
			"overflowPages":   int64(overflowPages),
			"overflowRecords": int64(overflowRecords),
		},
	}
}
