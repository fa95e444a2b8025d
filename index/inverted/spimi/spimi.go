// Package spimi bulk-builds a full-text index out-of-core: documents are
// tokenized and folded into bounded in-memory blocks, each block is
// zstd-compressed to a temporary file once it fills, and a k-way heap
// merge combines the sorted block term lists into the final postings map.
package spimi

import (
	"container/heap"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/dberrors"
	"github.com/intellect4all/reldb/index/inverted"
	"github.com/intellect4all/reldb/tokenizer"
)

// Doc is one (text, rid) pair fed into the builder.
type Doc struct {
	Text string
	RID  datafile.RID
}

// Config controls block size and the tokenizer used during the build.
type Config struct {
	BlockMaxDocs int
	Tokenizer    tokenizer.Config
}

func DefaultConfig() Config {
	return Config{BlockMaxDocs: 500, Tokenizer: tokenizer.DefaultConfig()}
}

type blockPosting struct {
	DocKey string `json:"d"`
	TF     int    `json:"tf"`
}

type blockFile struct {
	Terms map[string][]blockPosting `json:"terms"`
}

// Build tokenizes every document, spills bounded blocks to zstd-compressed
// temp files, merges them with a k-way heap, and returns a ready-to-query
// inverted.Index.
func Build(docs []Doc, cfg Config) (*inverted.Index, error) {
	if cfg.BlockMaxDocs <= 0 {
		cfg.BlockMaxDocs = 500
	}
	tk := tokenizer.New(cfg.Tokenizer)

	tmpDir, err := os.MkdirTemp("", "spimi-block-*")
	if err != nil {
		return nil, dberrors.IO("create spimi block directory", err)
	}
	defer os.RemoveAll(tmpDir)

	docsByKey := make(map[string]datafile.RID, len(docs))
	var blockPaths []string
	block := make(map[string]map[string]int) // term -> docKey -> tf
	docsInBlock := 0
	blockID := 0

	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		path, err := writeBlock(tmpDir, blockID, block)
		if err != nil {
			return err
		}
		blockPaths = append(blockPaths, path)
		blockID++
		block = make(map[string]map[string]int)
		docsInBlock = 0
		return nil
	}

	total := 0
	for _, d := range docs {
		total++
		key := d.RID.DocID()
		docsByKey[key] = d.RID
		docsInBlock++

		counts := make(map[string]int)
		for _, t := range tk.Tokenize(d.Text) {
			counts[t]++
		}
		for t, tf := range counts {
			bucket, ok := block[t]
			if !ok {
				bucket = make(map[string]int)
				block[t] = bucket
			}
			bucket[key] += tf
		}

		if docsInBlock >= cfg.BlockMaxDocs {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	postings, err := mergeBlocks(blockPaths)
	if err != nil {
		return nil, err
	}

	return inverted.FromBuild(inverted.Config{Tokenizer: cfg.Tokenizer}, total, docsByKey, postings), nil
}

func writeBlock(dir string, id int, block map[string]map[string]int) (string, error) {
	bf := blockFile{Terms: make(map[string][]blockPosting, len(block))}
	for t, bucket := range block {
		list := make([]blockPosting, 0, len(bucket))
		for dk, tf := range bucket {
			list = append(list, blockPosting{DocKey: dk, TF: tf})
		}
		bf.Terms[t] = list
	}
	raw, err := json.Marshal(bf)
	if err != nil {
		return "", dberrors.IO("marshal spimi block", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return "", dberrors.IO("create zstd encoder", err)
	}
	defer enc.Close()
	compressed := enc.EncodeAll(raw, nil)

	path := filepath.Join(dir, blockName(id))
	if err := os.WriteFile(path, compressed, 0o644); err != nil {
		return "", dberrors.IO("write spimi block", err)
	}
	return path, nil
}

func blockName(id int) string {
	return "block-" + strconv.Itoa(id) + ".zst"
}

func readBlock(path string) (blockFile, error) {
	var bf blockFile
	raw, err := os.ReadFile(path)
	if err != nil {
		return bf, dberrors.IO("read spimi block", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return bf, dberrors.IO("create zstd decoder", err)
	}
	defer dec.Close()
	plain, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return bf, dberrors.IO("decompress spimi block", err)
	}
	if err := json.Unmarshal(plain, &bf); err != nil {
		return bf, dberrors.IO("unmarshal spimi block", err)
	}
	return bf, nil
}

// blockCursor walks one block's terms in sorted order.
type blockCursor struct {
	terms []string
	data  map[string][]blockPosting
	pos   int
}

func newBlockCursor(bf blockFile) *blockCursor {
	terms := make([]string, 0, len(bf.Terms))
	for t := range bf.Terms {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	return &blockCursor{terms: terms, data: bf.Terms}
}

func (c *blockCursor) currentTerm() (string, bool) {
	if c.pos >= len(c.terms) {
		return "", false
	}
	return c.terms[c.pos], true
}

func (c *blockCursor) postings() []blockPosting {
	return c.data[c.terms[c.pos]]
}

func (c *blockCursor) advance() { c.pos++ }

// mergeHeapEntry is one block's current term; the heap orders entries by
// term so equal terms from different blocks are popped together.
type mergeHeapEntry struct {
	term      string
	cursorIdx int
}

type mergeHeap []mergeHeapEntry

func (h mergeHeap) Len() int            { return len(h) }
func (h mergeHeap) Less(i, j int) bool  { return h[i].term < h[j].term }
func (h mergeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x interface{}) { *h = append(*h, x.(mergeHeapEntry)) }
func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// mergeBlocks k-way merges the sorted term lists of every block file into
// a single term -> docKey -> tf postings map.
func mergeBlocks(paths []string) (map[string]map[string]int, error) {
	result := make(map[string]map[string]int)
	if len(paths) == 0 {
		return result, nil
	}

	cursors := make([]*blockCursor, len(paths))
	for i, p := range paths {
		bf, err := readBlock(p)
		if err != nil {
			return nil, err
		}
		cursors[i] = newBlockCursor(bf)
	}

	h := &mergeHeap{}
	heap.Init(h)
	for i, c := range cursors {
		if t, ok := c.currentTerm(); ok {
			heap.Push(h, mergeHeapEntry{term: t, cursorIdx: i})
		}
	}

	for h.Len() > 0 {
		term := (*h)[0].term
		agg := make(map[string]int)
		for h.Len() > 0 && (*h)[0].term == term {
			e := heap.Pop(h).(mergeHeapEntry)
			c := cursors[e.cursorIdx]
			for _, p := range c.postings() {
				agg[p.DocKey] += p.TF
			}
			c.advance()
			if t, ok := c.currentTerm(); ok {
				heap.Push(h, mergeHeapEntry{term: t, cursorIdx: e.cursorIdx})
			}
		}
		result[term] = agg
	}
	return result, nil
}
