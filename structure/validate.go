package structure

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrBrokenTree = errors.New("price tree: structure is inconsistent")
)

// Validate walks the whole tree and checks ordering, parent links and the node count.
func (t *PriceTree[V]) Validate() error {
	if t.root != NullIndex && t.nodes[t.root].Parent != NullIndex {
		return fmt.Errorf("%w: root %d has parent %d", ErrBrokenTree, t.root, t.nodes[t.root].Parent)
	}

	var seen int32
	var walk func(h int32, lo, hi int64) error
	walk = func(h int32, lo, hi int64) error {
		if h == NullIndex {
			return nil
		}
		seen++
		if seen > t.count {
			return fmt.Errorf("%w: more reachable nodes than count %d", ErrBrokenTree, t.count)
		}

		n := &t.nodes[h]
		if n.Price < lo || n.Price > hi {
			return fmt.Errorf("%w: price %d outside [%d, %d]", ErrBrokenTree, n.Price, lo, hi)
		}
		if n.Left != NullIndex {
			if t.nodes[n.Left].Parent != h {
				return fmt.Errorf("%w: left child of %d has wrong parent", ErrBrokenTree, n.Price)
			}
			if err := walk(n.Left, lo, n.Price-1); err != nil {
				return err
			}
		}
		if n.Right != NullIndex {
			if t.nodes[n.Right].Parent != h {
				return fmt.Errorf("%w: right child of %d has wrong parent", ErrBrokenTree, n.Price)
			}
			if err := walk(n.Right, n.Price+1, hi); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(t.root, math.MinInt64, math.MaxInt64); err != nil {
		return err
	}
	if seen != t.count {
		return fmt.Errorf("%w: reachable %d, count %d", ErrBrokenTree, seen, t.count)
	}
	return nil
}
