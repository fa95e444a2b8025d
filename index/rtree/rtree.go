package rtree

import (
	"container/heap"
	"math"
	"sync/atomic"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/dberrors"
	"github.com/intellect4all/reldb/index"
	"github.com/intellect4all/reldb/record"
)

const (
	defaultMaxEntries = 4
	defaultMinEntries = 2
	eps               = 1e-9
)

// entry is one slot in a node: either a child pointer (internal node) or a
// point with its posting (leaf node).
type entry struct {
	mbr   MBR
	child int // arena index of child node, -1 for leaf entries
	point []float64
	rid   datafile.RID
}

type node struct {
	isLeaf  bool
	parent  int // arena index, -1 for the root
	entries []entry
	mbr     MBR
}

// Config configures an Index.
type Config struct {
	Dimensions int
	MaxEntries int
	MinEntries int
}

func DefaultConfig() Config {
	return Config{Dimensions: 2, MaxEntries: defaultMaxEntries, MinEntries: defaultMinEntries}
}

// Index is an arena-addressed R-tree: nodes live in a slice and are
// referenced by integer index rather than pointer, matching the rest of
// the engine's index packages.
type Index struct {
	dimensions int
	maxEntries int
	minEntries int
	nodes      []*node
	root       int
	size       int

	searches atomic.Int64
	inserts  atomic.Int64
	removes  atomic.Int64
	splits   atomic.Int64
}

func New(cfg Config) *Index {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = 2
	}
	maxE := cfg.MaxEntries
	if maxE <= 0 {
		maxE = defaultMaxEntries
	}
	minE := cfg.MinEntries
	if minE <= 0 {
		minE = defaultMinEntries
	}
	ix := &Index{dimensions: dims, maxEntries: maxE, minEntries: minE}
	ix.root = ix.newNode(true, -1)
	return ix
}

func (ix *Index) newNode(isLeaf bool, parent int) int {
	ix.nodes = append(ix.nodes, &node{isLeaf: isLeaf, parent: parent})
	return len(ix.nodes) - 1
}

func (ix *Index) n(i int) *node { return ix.nodes[i] }

func (n *node) isFull(maxEntries int) bool { return len(n.entries) > maxEntries }
func (n *node) isUnderflow(minEntries int) bool {
	return len(n.entries) < minEntries
}

func (n *node) updateMBR() {
	if len(n.entries) == 0 {
		return
	}
	mbrs := make([]MBR, len(n.entries))
	for i, e := range n.entries {
		mbrs[i] = e.mbr
	}
	n.mbr = mbrOfGroup(mbrs)
}

// keyToPoint decodes the point a scalar index.Key carries for the base
// Index interface, which every other index implementation satisfies with
// index.Key; the R-tree stores points directly in a FloatVec key.
func keyToPoint(k index.Key) ([]float64, error) {
	if k.Kind != record.KindFloatVec || len(k.FloatVec) == 0 {
		return nil, dberrors.Validation("rtree key must carry a non-empty float vector")
	}
	return k.FloatVec, nil
}

// Search returns postings for an exact point match, satisfying index.Index.
func (ix *Index) Search(key index.Key) ([]datafile.RID, error) {
	ix.searches.Add(1)
	point, err := keyToPoint(key)
	if err != nil {
		return nil, err
	}
	nodeIdx, entryIdx := ix.findLeaf(point)
	if nodeIdx == -1 {
		return nil, nil
	}
	return []datafile.RID{ix.n(nodeIdx).entries[entryIdx].rid}, nil
}

// RangeSearch treats lo as the lower corner and hi as the upper corner of
// an axis-aligned box and returns every point contained within it; a
// dimension where lo exceeds hi matches nothing.
func (ix *Index) RangeSearch(lo, hi index.Key) ([]datafile.RID, error) {
	ix.searches.Add(1)
	loPt, err := keyToPoint(lo)
	if err != nil {
		return nil, err
	}
	hiPt, err := keyToPoint(hi)
	if err != nil {
		return nil, err
	}
	box := MBR{Lower: loPt, Upper: hiPt}
	var out []datafile.RID
	ix.rangeBox(ix.root, box, &out)
	return out, nil
}

func (ix *Index) rangeBox(nodeIdx int, box MBR, out *[]datafile.RID) {
	n := ix.n(nodeIdx)
	for _, e := range n.entries {
		if !mbrIntersects(e.mbr, box) {
			continue
		}
		if n.isLeaf {
			if boxContainsPoint(box, e.point) {
				*out = append(*out, e.rid)
			}
			continue
		}
		ix.rangeBox(e.child, box, out)
	}
}

func mbrIntersects(a, b MBR) bool {
	for i := range a.Lower {
		if a.Upper[i] < b.Lower[i] || a.Lower[i] > b.Upper[i] {
			return false
		}
	}
	return true
}

func boxContainsPoint(box MBR, p []float64) bool {
	for i, v := range p {
		if v < box.Lower[i] || v > box.Upper[i] {
			return false
		}
	}
	return true
}

// Add inserts a point, satisfying index.Index via a FloatVec key.
func (ix *Index) Add(key index.Key, rid datafile.RID) error {
	point, err := keyToPoint(key)
	if err != nil {
		return err
	}
	ix.AddPoint(point, rid)
	return nil
}

// AddPoint is the native insertion path used directly by callers that
// already hold a coordinate vector.
func (ix *Index) AddPoint(point []float64, rid datafile.RID) {
	ix.inserts.Add(1)
	ix.size++
	mbr := mbrFromPoint(point)
	leafIdx := ix.chooseLeaf(ix.root, mbr)
	leaf := ix.n(leafIdx)
	leaf.entries = append(leaf.entries, entry{mbr: mbr, child: -1, point: append([]float64{}, point...), rid: rid})
	leaf.updateMBR()

	if leaf.isFull(ix.maxEntries) {
		ix.splitNode(leafIdx)
	} else {
		ix.adjustAncestors(leafIdx)
	}
}

// chooseLeaf descends from nodeIdx picking, at each level, the child whose
// MBR needs the least enlargement to contain mbr (ties broken by smaller
// area), tracking the candidate's arena index directly rather than
// searching for it afterward.
func (ix *Index) chooseLeaf(nodeIdx int, mbr MBR) int {
	n := ix.n(nodeIdx)
	if n.isLeaf {
		return nodeIdx
	}
	best := -1
	bestEnlargement := math.Inf(1)
	bestArea := math.Inf(1)
	for _, e := range n.entries {
		enl := e.mbr.enlargement(mbr)
		area := e.mbr.area()
		if enl < bestEnlargement || (enl == bestEnlargement && area < bestArea) {
			best = e.child
			bestEnlargement = enl
			bestArea = area
		}
	}
	return ix.chooseLeaf(best, mbr)
}

// adjustAncestors walks from nodeIdx up to the root, recomputing each
// ancestor's MBR (and the parent entry pointing at nodeIdx) to include any
// growth from below.
func (ix *Index) adjustAncestors(nodeIdx int) {
	for {
		n := ix.n(nodeIdx)
		parent := n.parent
		if parent == -1 {
			return
		}
		p := ix.n(parent)
		for i := range p.entries {
			if p.entries[i].child == nodeIdx {
				p.entries[i].mbr = n.mbr
				break
			}
		}
		p.updateMBR()
		nodeIdx = parent
	}
}

// splitNode performs a quadratic split of the overflowing node at nodeIdx,
// distributing its entries between the original node and a freshly
// allocated sibling, then propagates the split upward (creating a new root
// if nodeIdx was the root).
func (ix *Index) splitNode(nodeIdx int) {
	ix.splits.Add(1)
	n := ix.n(nodeIdx)
	entries := n.entries

	seedA, seedB := pickSeeds(entries)
	groupA := []entry{entries[seedA]}
	groupB := []entry{entries[seedB]}
	remaining := make([]entry, 0, len(entries)-2)
	for i, e := range entries {
		if i == seedA || i == seedB {
			continue
		}
		remaining = append(remaining, e)
	}

	mbrA := groupA[0].mbr
	mbrB := groupB[0].mbr

	for len(remaining) > 0 {
		if len(groupA)+len(remaining) == ix.minEntries {
			groupA = append(groupA, remaining...)
			remaining = nil
			break
		}
		if len(groupB)+len(remaining) == ix.minEntries {
			groupB = append(groupB, remaining...)
			remaining = nil
			break
		}

		bestIdx := 0
		bestDiff := math.Inf(-1)
		preferA := true
		for i, e := range remaining {
			enlA := mbrA.enlargement(e.mbr)
			enlB := mbrB.enlargement(e.mbr)
			diff := math.Abs(enlA - enlB)
			if diff > bestDiff {
				bestDiff = diff
				bestIdx = i
				preferA = enlA < enlB
			}
		}
		chosen := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		if preferA {
			groupA = append(groupA, chosen)
			mbrA = mbrA.union(chosen.mbr)
		} else {
			groupB = append(groupB, chosen)
			mbrB = mbrB.union(chosen.mbr)
		}
	}

	n.entries = groupA
	n.updateMBR()
	siblingIdx := ix.newNode(n.isLeaf, n.parent)
	sibling := ix.n(siblingIdx)
	sibling.entries = groupB
	sibling.updateMBR()

	if !n.isLeaf {
		for _, e := range groupB {
			ix.n(e.child).parent = siblingIdx
		}
	}

	parent := n.parent
	if parent == -1 {
		newRootIdx := ix.newNode(false, -1)
		newRoot := ix.n(newRootIdx)
		newRoot.entries = []entry{
			{mbr: n.mbr, child: nodeIdx},
			{mbr: sibling.mbr, child: siblingIdx},
		}
		newRoot.updateMBR()
		ix.n(nodeIdx).parent = newRootIdx
		ix.n(siblingIdx).parent = newRootIdx
		ix.root = newRootIdx
		return
	}

	p := ix.n(parent)
	for i := range p.entries {
		if p.entries[i].child == nodeIdx {
			p.entries[i].mbr = n.mbr
			break
		}
	}
	p.entries = append(p.entries, entry{mbr: sibling.mbr, child: siblingIdx})
	p.updateMBR()

	if p.isFull(ix.maxEntries) {
		ix.splitNode(parent)
	} else {
		ix.adjustAncestors(parent)
	}
}

// pickSeeds finds the pair of entries whose combined MBR wastes the most
// area if grouped together, the classic quadratic-split seed choice.
func pickSeeds(entries []entry) (int, int) {
	bestI, bestJ := 0, 1
	worst := math.Inf(-1)
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			combined := entries[i].mbr.union(entries[j].mbr)
			waste := combined.area() - entries[i].mbr.area() - entries[j].mbr.area()
			if waste > worst {
				worst = waste
				bestI, bestJ = i, j
			}
		}
	}
	return bestI, bestJ
}

// RangeRadius returns every point within radius of center, pruning subtrees
// whose MBR's MINDIST from center already exceeds radius.
func (ix *Index) RangeRadius(center []float64, radius float64) ([]datafile.RID, error) {
	ix.searches.Add(1)
	var out []datafile.RID
	ix.rangeRadius(ix.root, center, radius, &out)
	return out, nil
}

func (ix *Index) rangeRadius(nodeIdx int, center []float64, radius float64, out *[]datafile.RID) {
	n := ix.n(nodeIdx)
	for _, e := range n.entries {
		if mindist(center, e.mbr) > radius {
			continue
		}
		if n.isLeaf {
			if euclidean(center, e.point) <= radius {
				*out = append(*out, e.rid)
			}
			continue
		}
		ix.rangeRadius(e.child, center, radius, out)
	}
}

type heapItem struct {
	dist    float64
	isPoint bool
	rid     datafile.RID
	node    int
}

type nnHeap []heapItem

func (h nnHeap) Len() int            { return len(h) }
func (h nnHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h nnHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nnHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *nnHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// KNN returns the k nearest points to point using a best-first search: a
// min-heap ordered by MINDIST (for subtrees) or exact distance (for
// points), expanded until k points have been popped.
func (ix *Index) KNN(point []float64, k int) ([]datafile.RID, error) {
	ix.searches.Add(1)
	if k <= 0 {
		return nil, nil
	}
	h := &nnHeap{{dist: 0, isPoint: false, node: ix.root}}
	heap.Init(h)

	var out []datafile.RID
	for h.Len() > 0 && len(out) < k {
		item := heap.Pop(h).(heapItem)
		if item.isPoint {
			out = append(out, item.rid)
			continue
		}
		n := ix.n(item.node)
		for _, e := range n.entries {
			if n.isLeaf {
				heap.Push(h, heapItem{dist: euclidean(point, e.point), isPoint: true, rid: e.rid})
			} else {
				heap.Push(h, heapItem{dist: mindist(point, e.mbr), isPoint: false, node: e.child})
			}
		}
	}
	return out, nil
}

// findLeaf locates the leaf node and entry index holding an exact point
// match, or (-1, -1) if absent.
func (ix *Index) findLeaf(point []float64) (int, int) {
	return ix.findLeafIn(ix.root, point)
}

func (ix *Index) findLeafIn(nodeIdx int, point []float64) (int, int) {
	n := ix.n(nodeIdx)
	if n.isLeaf {
		for i, e := range n.entries {
			if pointsEqual(e.point, point) {
				return nodeIdx, i
			}
		}
		return -1, -1
	}
	for _, e := range n.entries {
		if !mbrContainsPoint(e.mbr, point) {
			continue
		}
		if fi, ei := ix.findLeafIn(e.child, point); fi != -1 {
			return fi, ei
		}
	}
	return -1, -1
}

func mbrContainsPoint(m MBR, p []float64) bool {
	for i, v := range p {
		if v < m.Lower[i]-eps || v > m.Upper[i]+eps {
			return false
		}
	}
	return true
}

func pointsEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}

// Remove deletes the given point (the rid argument is accepted for
// interface compatibility but exact point identity is what locates the
// entry, matching the reference implementation).
func (ix *Index) Remove(key index.Key, rid datafile.RID) error {
	point, err := keyToPoint(key)
	if err != nil {
		return err
	}
	ix.removes.Add(1)
	nodeIdx, entryIdx := ix.findLeaf(point)
	if nodeIdx == -1 {
		return nil
	}
	n := ix.n(nodeIdx)
	n.entries = append(n.entries[:entryIdx], n.entries[entryIdx+1:]...)
	if len(n.entries) > 0 {
		n.updateMBR()
	}
	ix.condenseTree(nodeIdx)
	ix.size--
	return nil
}

// condenseTree walks from nodeIdx to the root, collecting the entries of
// any underflowed non-root node (removing it from its parent) and
// reinserting only its point entries once the walk completes, exactly as
// the reference implementation does.
func (ix *Index) condenseTree(nodeIdx int) {
	var orphans []entry
	n := nodeIdx
	for {
		cur := ix.n(n)
		parent := cur.parent
		if parent == -1 {
			break
		}
		p := ix.n(parent)
		if cur.isUnderflow(ix.minEntries) {
			for i := range p.entries {
				if p.entries[i].child == n {
					p.entries = append(p.entries[:i], p.entries[i+1:]...)
					break
				}
			}
			if cur.isLeaf {
				orphans = append(orphans, cur.entries...)
			}
			if len(p.entries) > 0 {
				p.updateMBR()
			}
		} else {
			for i := range p.entries {
				if p.entries[i].child == n {
					p.entries[i].mbr = cur.mbr
					break
				}
			}
			p.updateMBR()
		}
		n = parent
	}

	root := ix.n(ix.root)
	if !root.isLeaf && len(root.entries) == 1 {
		onlyChild := root.entries[0].child
		ix.root = onlyChild
		ix.n(ix.root).parent = -1
	}

	for _, e := range orphans {
		ix.AddPoint(e.point, e.rid)
	}
}

// Height returns the number of edges from root to leaf.
func (ix *Index) Height() int {
	h := 0
	cur := ix.root
	for {
		n := ix.n(cur)
		if n.isLeaf {
			return h
		}
		if len(n.entries) == 0 {
			return h
		}
		cur = n.entries[0].child
		h++
	}
}

func (ix *Index) GetStats() index.Stats {
	return index.Stats{
		Kind:     "RTREE",
		Searches: ix.searches.Load(),
		Inserts:  ix.inserts.Load(),
		Removes:  ix.removes.Load(),
		Extra: map[string]int64{
			"size":       int64(ix.size),
			"nodes":      int64(len(ix.nodes)),
			"height":     int64(ix.Height()),
			"splits":     ix.splits.Load(),
			"dimensions": int64(ix.dimensions),
		},
	}
}
