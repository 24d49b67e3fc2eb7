package structure

// PriceTree is a binary search tree of price levels with arena-based memory management.
//
// Nodes live in a single slice and reference each other by int32 handles, so a
// removed node is returned to a free list instead of the garbage collector and a
// handle held by a caller stays valid until that node itself is deleted.
//
// The tree is intentionally not self-balancing. Deletion follows the classic
// transplant procedure; a node with two children is replaced by its in-order
// predecessor or successor depending on the Replacement policy. Surviving nodes
// are relinked, never key-copied, which keeps every other handle stable.

const (
	NullIndex int32 = -1

	// DefaultGrowthFactor is used when the arena runs out of free nodes.
	DefaultGrowthFactor = 2
)

// Replacement selects which neighbour replaces a deleted node with two children.
type Replacement int8

const (
	// Predecessor uses the maximum of the left subtree.
	Predecessor Replacement = iota
	// Successor uses the minimum of the right subtree.
	Successor
)

// PriceNode is a node in the tree. Each node corresponds to one price level.
type PriceNode[V any] struct {
	Left   int32 // Left child index
	Right  int32 // Right child index
	Parent int32 // Parent index
	Price  int64 // Key
	Value  V
}

// PriceTree is an arena-backed BST keyed by int64 price.
type PriceTree[V any] struct {
	nodes       []PriceNode[V]
	root        int32
	freeHead    int32
	count       int32
	replacement Replacement
}

// NewPriceTree creates a new tree with pre-allocated capacity.
func NewPriceTree[V any](capacity int32, replacement Replacement) *PriceTree[V] {
	if capacity <= 0 {
		capacity = 1
	}
	tree := &PriceTree[V]{
		nodes:       make([]PriceNode[V], capacity),
		root:        NullIndex,
		freeHead:    0,
		replacement: replacement,
	}
	tree.linkFree(0, capacity)
	return tree
}

// linkFree threads nodes[from:to] onto the free list using the Left pointer.
func (t *PriceTree[V]) linkFree(from, to int32) {
	for i := from; i < to-1; i++ {
		t.nodes[i].Left = i + 1
	}
	t.nodes[to-1].Left = t.freeHead
	t.freeHead = from
}

// grow expands the arena. Existing handles remain valid.
func (t *PriceTree[V]) grow() {
	oldCap := int32(len(t.nodes))
	newCap := oldCap * DefaultGrowthFactor
	nodes := make([]PriceNode[V], newCap)
	copy(nodes, t.nodes)
	t.nodes = nodes
	t.linkFree(oldCap, newCap)
}

// alloc allocates a node from the free list.
func (t *PriceTree[V]) alloc() int32 {
	if t.freeHead == NullIndex {
		t.grow()
	}
	idx := t.freeHead
	t.freeHead = t.nodes[idx].Left
	t.nodes[idx] = PriceNode[V]{
		Left:   NullIndex,
		Right:  NullIndex,
		Parent: NullIndex,
	}
	return idx
}

// free returns a node to the free list.
func (t *PriceTree[V]) free(idx int32) {
	var zero V
	t.nodes[idx].Value = zero
	t.nodes[idx].Right = NullIndex
	t.nodes[idx].Parent = NullIndex
	t.nodes[idx].Left = t.freeHead
	t.freeHead = idx
}

// Insert adds a node for price and returns its handle.
// Returns the existing handle and false if the price is already present.
func (t *PriceTree[V]) Insert(price int64, value V) (int32, bool) {
	parent := NullIndex
	h := t.root
	for h != NullIndex {
		parent = h
		switch {
		case price > t.nodes[h].Price:
			h = t.nodes[h].Right
		case price < t.nodes[h].Price:
			h = t.nodes[h].Left
		default:
			return h, false
		}
	}

	idx := t.alloc()
	t.nodes[idx].Price = price
	t.nodes[idx].Value = value
	t.nodes[idx].Parent = parent

	switch {
	case parent == NullIndex:
		t.root = idx
	case price > t.nodes[parent].Price:
		t.nodes[parent].Right = idx
	default:
		t.nodes[parent].Left = idx
	}
	t.count++
	return idx, true
}

// Search returns the handle for price, or NullIndex.
func (t *PriceTree[V]) Search(price int64) int32 {
	h := t.root
	for h != NullIndex {
		cmp := t.nodes[h].Price
		if price < cmp {
			h = t.nodes[h].Left
		} else if price > cmp {
			h = t.nodes[h].Right
		} else {
			return h
		}
	}
	return NullIndex
}

// Contains checks if a price exists in the tree.
func (t *PriceTree[V]) Contains(price int64) bool {
	return t.Search(price) != NullIndex
}

// Node returns the node behind a handle. The pointer is only valid until the next Insert.
func (t *PriceTree[V]) Node(h int32) *PriceNode[V] {
	return &t.nodes[h]
}

// Price returns the key of a handle.
func (t *PriceTree[V]) Price(h int32) int64 {
	return t.nodes[h].Price
}

// Value returns the value of a handle.
func (t *PriceTree[V]) Value(h int32) V {
	return t.nodes[h].Value
}

// Root returns the root handle.
func (t *PriceTree[V]) Root() int32 {
	return t.root
}

// Count returns the number of nodes in the tree.
func (t *PriceTree[V]) Count() int32 {
	return t.count
}

// Capacity returns the current arena size.
func (t *PriceTree[V]) Capacity() int32 {
	return int32(len(t.nodes))
}

// Min returns the handle of the leftmost node, or NullIndex if the tree is empty.
func (t *PriceTree[V]) Min() int32 {
	return t.findMin(t.root)
}

// Max returns the handle of the rightmost node, or NullIndex if the tree is empty.
func (t *PriceTree[V]) Max() int32 {
	return t.findMax(t.root)
}

func (t *PriceTree[V]) findMin(h int32) int32 {
	if h == NullIndex {
		return NullIndex
	}
	for t.nodes[h].Left != NullIndex {
		h = t.nodes[h].Left
	}
	return h
}

func (t *PriceTree[V]) findMax(h int32) int32 {
	if h == NullIndex {
		return NullIndex
	}
	for t.nodes[h].Right != NullIndex {
		h = t.nodes[h].Right
	}
	return h
}

// Successor returns the next larger node after h.
func (t *PriceTree[V]) Successor(h int32) int32 {
	if t.nodes[h].Right != NullIndex {
		return t.findMin(t.nodes[h].Right)
	}
	parent := t.nodes[h].Parent
	for parent != NullIndex && h == t.nodes[parent].Right {
		h = parent
		parent = t.nodes[parent].Parent
	}
	return parent
}

// Predecessor returns the next smaller node before h.
func (t *PriceTree[V]) Predecessor(h int32) int32 {
	if t.nodes[h].Left != NullIndex {
		return t.findMax(t.nodes[h].Left)
	}
	parent := t.nodes[h].Parent
	for parent != NullIndex && h == t.nodes[parent].Left {
		h = parent
		parent = t.nodes[parent].Parent
	}
	return parent
}

// transplant replaces the subtree rooted at u with the subtree rooted at v.
func (t *PriceTree[V]) transplant(u, v int32) {
	parent := t.nodes[u].Parent
	switch {
	case parent == NullIndex:
		t.root = v
	case u == t.nodes[parent].Left:
		t.nodes[parent].Left = v
	default:
		t.nodes[parent].Right = v
	}
	if v != NullIndex {
		t.nodes[v].Parent = parent
	}
}

// Delete removes the node behind handle z and releases its slot.
func (t *PriceTree[V]) Delete(z int32) {
	left, right := t.nodes[z].Left, t.nodes[z].Right

	switch {
	case left == NullIndex:
		t.transplant(z, right)
	case right == NullIndex:
		t.transplant(z, left)
	case t.replacement == Predecessor:
		y := t.findMax(left)
		if t.nodes[y].Parent != z {
			t.transplant(y, t.nodes[y].Left)
			t.nodes[y].Left = left
			t.nodes[left].Parent = y
		}
		t.transplant(z, y)
		t.nodes[y].Right = right
		t.nodes[right].Parent = y
	default:
		y := t.findMin(right)
		if t.nodes[y].Parent != z {
			t.transplant(y, t.nodes[y].Right)
			t.nodes[y].Right = right
			t.nodes[right].Parent = y
		}
		t.transplant(z, y)
		t.nodes[y].Left = left
		t.nodes[left].Parent = y
	}

	t.free(z)
	t.count--
}

// DeletePrice removes the node for price.
// Returns true if the price was found and deleted.
func (t *PriceTree[V]) DeletePrice(price int64) bool {
	h := t.Search(price)
	if h == NullIndex {
		return false
	}
	t.Delete(h)
	return true
}

// Ascend calls fn for each node in ascending price order until fn returns false.
func (t *PriceTree[V]) Ascend(fn func(h int32) bool) {
	for h := t.Min(); h != NullIndex; h = t.Successor(h) {
		if !fn(h) {
			return
		}
	}
}

// Descend calls fn for each node in descending price order until fn returns false.
func (t *PriceTree[V]) Descend(fn func(h int32) bool) {
	for h := t.Max(); h != NullIndex; h = t.Predecessor(h) {
		if !fn(h) {
			return
		}
	}
}

// InOrderSlice returns all prices in sorted order (for testing/debugging).
func (t *PriceTree[V]) InOrderSlice() []int64 {
	result := make([]int64, 0, t.count)
	t.Ascend(func(h int32) bool {
		result = append(result, t.nodes[h].Price)
		return true
	})
	return result
}

// Height returns the number of nodes on the longest root-to-leaf path.
func (t *PriceTree[V]) Height() int {
	return t.height(t.root)
}

func (t *PriceTree[V]) height(h int32) int {
	if h == NullIndex {
		return 0
	}
	return 1 + max(t.height(t.nodes[h].Left), t.height(t.nodes[h].Right))
}
