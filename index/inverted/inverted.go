// Package inverted implements a full-text index: a mutable in-memory
// postings map suitable for incremental document-at-a-time inserts, scored
// by tf-idf cosine similarity. Bulk construction from a large corpus goes
// through the sibling spimi package instead, which builds the same
// postings map out-of-core.
package inverted

import (
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	json "github.com/goccy/go-json"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/dberrors"
	"github.com/intellect4all/reldb/index"
	"github.com/intellect4all/reldb/tokenizer"
)

// posting is one (document, term-frequency) pair under a term.
type posting struct {
	rid datafile.RID
	tf  int
}

// Config configures an Index.
type Config struct {
	Tokenizer tokenizer.Config
}

func DefaultConfig() Config { return Config{Tokenizer: tokenizer.DefaultConfig()} }

// Index is the mutable, in-memory full-text index. It satisfies
// index.TextIndex.
type Index struct {
	tk *tokenizer.Tokenizer

	mu       sync.RWMutex
	postings map[string]map[string]*posting // term -> docKey -> posting
	docs     map[string]datafile.RID        // docKey -> rid, for result materialization
	n        int                            // total documents added

	adds     atomic.Int64
	searches atomic.Int64
}

func New(cfg Config) *Index {
	return &Index{
		tk:       tokenizer.New(cfg.Tokenizer),
		postings: make(map[string]map[string]*posting),
		docs:     make(map[string]datafile.RID),
	}
}

func docKey(rid datafile.RID) string { return rid.DocID() }

// AddDocument tokenizes text and folds its term frequencies into the
// postings map under rid's document key.
func (ix *Index) AddDocument(rid datafile.RID, text string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	terms := ix.tk.Tokenize(text)
	if len(terms) == 0 {
		return nil
	}
	key := docKey(rid)
	if _, seen := ix.docs[key]; !seen {
		ix.n++
	}
	ix.docs[key] = rid

	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}
	for t, tf := range counts {
		bucket, ok := ix.postings[t]
		if !ok {
			bucket = make(map[string]*posting)
			ix.postings[t] = bucket
		}
		if p, ok := bucket[key]; ok {
			p.tf += tf
		} else {
			bucket[key] = &posting{rid: rid, tf: tf}
		}
	}
	ix.adds.Add(1)
	return nil
}

// termWeight is the tf-idf weighting scheme shared by query and document
// vectors: w(t,d) = (1 + log tf(t,d)) * log((N+1)/df(t)).
func termWeight(tf, df, n int) float64 {
	if tf <= 0 || df <= 0 {
		return 0
	}
	return (1 + math.Log(float64(tf))) * math.Log((float64(n)+1)/float64(df))
}

// Search ranks documents by cosine similarity between the query's tf-idf
// vector and each candidate document's full tf-idf vector; only documents
// sharing at least one query term are candidates.
func (ix *Index) Search(query string, k int) ([]index.ScoredDoc, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	ix.searches.Add(1)

	if k <= 0 || ix.n == 0 {
		return nil, nil
	}
	qTerms := ix.tk.Tokenize(query)
	if len(qTerms) == 0 {
		return nil, nil
	}
	qTF := make(map[string]int, len(qTerms))
	for _, t := range qTerms {
		qTF[t]++
	}

	qWeights := make(map[string]float64, len(qTF))
	qNormSq := 0.0
	for t, tf := range qTF {
		df := len(ix.postings[t])
		w := termWeight(tf, df, ix.n)
		if w == 0 {
			continue
		}
		qWeights[t] = w
		qNormSq += w * w
	}
	if qNormSq == 0 {
		return nil, nil
	}
	qNorm := math.Sqrt(qNormSq)

	dot := make(map[string]float64)
	docNormSq := make(map[string]float64)
	for t, qw := range qWeights {
		bucket := ix.postings[t]
		df := len(bucket)
		for dkey, p := range bucket {
			dw := termWeight(p.tf, df, ix.n)
			dot[dkey] += qw * dw
		}
	}
	// Document norms are computed over every term in that document, not
	// just the query terms, so cosine similarity is comparable across
	// documents of different lengths.
	for _, bucket := range ix.postings {
		df := len(bucket)
		for dkey, p := range bucket {
			w := termWeight(p.tf, df, ix.n)
			docNormSq[dkey] += w * w
		}
	}

	scored := make([]index.ScoredDoc, 0, len(dot))
	for dkey, d := range dot {
		dn := math.Sqrt(docNormSq[dkey])
		if dn == 0 {
			continue
		}
		sim := d / (dn * qNorm)
		scored = append(scored, index.ScoredDoc{RID: ix.docs[dkey], Score: sim})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (ix *Index) GetStats() index.Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return index.Stats{
		Kind:     "INVERTED",
		Searches: ix.searches.Load(),
		Inserts:  ix.adds.Load(),
		Extra: map[string]int64{
			"documents": int64(ix.n),
			"terms":     int64(len(ix.postings)),
		},
	}
}

type wirePosting struct {
	RID datafile.RID `json:"rid"`
	TF  int          `json:"tf"`
}

type wireBlob struct {
	N        int                      `json:"n"`
	Postings map[string][]wirePosting `json:"postings"`
	Docs     map[string]datafile.RID  `json:"docs"`
}

// Save persists the full postings map and document registry as JSON.
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dberrors.IO("create index directory", err)
	}
	blob := wireBlob{N: ix.n, Postings: make(map[string][]wirePosting, len(ix.postings)), Docs: ix.docs}
	for t, bucket := range ix.postings {
		list := make([]wirePosting, 0, len(bucket))
		for _, p := range bucket {
			list = append(list, wirePosting{RID: p.rid, TF: p.tf})
		}
		blob.Postings[t] = list
	}

	b, err := json.Marshal(blob)
	if err != nil {
		return dberrors.IO("marshal inverted index snapshot", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return dberrors.IO("write inverted index snapshot", err)
	}
	return os.Rename(tmp, path)
}

// Load restores the postings map and document registry from a snapshot
// written by Save.
func (ix *Index) Load(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return dberrors.IO("read inverted index snapshot", err)
	}
	var blob wireBlob
	if err := json.Unmarshal(raw, &blob); err != nil {
		return dberrors.IO("unmarshal inverted index snapshot", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.n = blob.N
	ix.docs = blob.Docs
	if ix.docs == nil {
		ix.docs = make(map[string]datafile.RID)
	}
	ix.postings = make(map[string]map[string]*posting, len(blob.Postings))
	for t, list := range blob.Postings {
		bucket := make(map[string]*posting, len(list))
		for _, wp := range list {
			bucket[docKey(wp.RID)] = &posting{rid: wp.RID, tf: wp.TF}
		}
		ix.postings[t] = bucket
	}
	return nil
}

// FromBuild constructs an Index directly from a postings map produced by
// the spimi package's merge pass, bypassing the per-document
// tokenize-and-fold path AddDocument takes.
func FromBuild(cfg Config, n int, docs map[string]datafile.RID, postings map[string]map[string]int) *Index {
	ix := New(cfg)
	ix.n = n
	ix.docs = docs
	ix.postings = make(map[string]map[string]*posting, len(postings))
	for t, bucket := range postings {
		ib := make(map[string]*posting, len(bucket))
		for dkey, tf := range bucket {
			ib[dkey] = &posting{rid: docs[dkey], tf: tf}
		}
		ix.postings[t] = ib
	}
	return ix
}
