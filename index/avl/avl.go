// Package avl implements a classic four-rotation AVL tree index, with a
// sorted-array snapshot format and a balanced rebuild on load.
package avl

import (
	"sync/atomic"

	"github.com/intellect4all/reldb/datafile"
	"github.com/intellect4all/reldb/index"
)

type node struct {
	key      index.Key
	postings []datafile.RID
	left     *node
	right    *node
	height   int
}

func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

func update(n *node) {
	l, r := height(n.left), height(n.right)
	if l > r {
		n.height = 1 + l
	} else {
		n.height = 1 + r
	}
}

func balance(n *node) int { return height(n.left) - height(n.right) }

func rotateLeft(z *node) *node {
	y := z.right
	t2 := y.left
	y.left = z
	z.right = t2
	update(z)
	update(y)
	return y
}

func rotateRight(z *node) *node {
	y := z.left
	t3 := y.right
	y.right = z
	z.left = t3
	update(z)
	update(y)
	return y
}

// Config configures a Tree.
type Config struct {
	Clustered bool
}

// Tree is the AVL index.
type Tree struct {
	root      *node
	clustered bool

	searches atomic.Int64
	inserts  atomic.Int64
	removes  atomic.Int64
}

func New(cfg Config) *Tree { return &Tree{clustered: cfg.Clustered} }

func (t *Tree) Add(key index.Key, rid datafile.RID) error {
	t.inserts.Add(1)
	t.root = insert(t.root, key, rid)
	return nil
}

func insert(n *node, key index.Key, rid datafile.RID) *node {
	if n == nil {
		return &node{key: key, postings: []datafile.RID{rid}, height: 1}
	}
	switch key.Compare(n.key) {
	case 0:
		n.postings = append(n.postings, rid)
		return n
	case -1:
		n.left = insert(n.left, key, rid)
	default:
		n.right = insert(n.right, key, rid)
	}
	update(n)
	bal := balance(n)
	if bal > 1 {
		leftKey := key
		if n.left != nil {
			leftKey = n.left.key
		}
		if key.Compare(leftKey) < 0 {
			return rotateRight(n)
		}
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	}
	if bal < -1 {
		rightKey := key
		if n.right != nil {
			rightKey = n.right.key
		}
		if key.Compare(rightKey) > 0 {
			return rotateLeft(n)
		}
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}
	return n
}

func (t *Tree) Search(key index.Key) ([]datafile.RID, error) {
	t.searches.Add(1)
	cur := t.root
	for cur != nil {
		switch key.Compare(cur.key) {
		case 0:
			out := make([]datafile.RID, len(cur.postings))
			copy(out, cur.postings)
			return out, nil
		case -1:
			cur = cur.left
		default:
			cur = cur.right
		}
	}
	return nil, nil
}

func (t *Tree) RangeSearch(lo, hi index.Key) ([]datafile.RID, error) {
	t.searches.Add(1)
	if lo.Compare(hi) > 0 {
		lo, hi = hi, lo
	}
	var out []datafile.RID
	rangeWalk(t.root, lo, hi, &out)
	return out, nil
}

func rangeWalk(n *node, lo, hi index.Key, out *[]datafile.RID) {
	if n == nil {
		return
	}
	if lo.Compare(n.key) < 0 {
		rangeWalk(n.left, lo, hi, out)
	}
	if lo.Compare(n.key) <= 0 && hi.Compare(n.key) >= 0 {
		*out = append(*out, n.postings...)
	}
	if hi.Compare(n.key) > 0 {
		rangeWalk(n.right, lo, hi, out)
	}
}

func minNode(n *node) *node {
	cur := n
	for cur.left != nil {
		cur = cur.left
	}
	return cur
}

// Remove deletes every posting for key, matching the reference
// implementation's whole-key removal semantics.
func (t *Tree) Remove(key index.Key, _ datafile.RID) error {
	t.removes.Add(1)
	t.root = remove(t.root, key)
	return nil
}

func remove(n *node, key index.Key) *node {
	if n == nil {
		return nil
	}
	switch key.Compare(n.key) {
	case -1:
		n.left = remove(n.left, key)
	case 1:
		n.right = remove(n.right, key)
	default:
		if n.left == nil || n.right == nil {
			if n.left != nil {
				return n.left
			}
			return n.right
		}
		succ := minNode(n.right)
		n.key, n.postings = succ.key, succ.postings
		n.right = remove(n.right, succ.key)
	}
	update(n)
	bal := balance(n)
	if bal > 1 {
		if balance(n.left) < 0 {
			n.left = rotateLeft(n.left)
		}
		return rotateRight(n)
	}
	if bal < -1 {
		if balance(n.right) > 0 {
			n.right = rotateRight(n.right)
		}
		return rotateLeft(n)
	}
	return n
}

func treeHeight(n *node) int {
	if n == nil {
		return 0
	}
	l, r := treeHeight(n.left), treeHeight(n.right)
	if l > r {
		return 1 + l
	}
	return 1 + r
}

func (t *Tree) GetStats() index.Stats {
	return index.Stats{
		Kind:     "AVL",
		Searches: t.searches.Load(),
		Inserts:  t.inserts.Load(),
		Removes:  t.removes.Load(),
		Extra:    map[string]int64{"height": int64(treeHeight(t.root))},
	}
}
