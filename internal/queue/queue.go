// Package queue provides the bounded candidate heap used by the scan path.
package queue

// Item is a ranked candidate: its distance plus the location of its metadata.
type Item struct {
	Distance float32 // Distance is the priority of the item in the queue.
	Offset   int64   // Offset of the metadata payload in the store file.
	Length   uint32  // Length of the metadata payload.
}

// Bounded keeps the k smallest-distance items offered to it.
//
// It is a max-heap of capacity k: the root is the worst retained candidate,
// which is evicted whenever an insert pushes the size past k.
type Bounded struct {
	k     int
	items []Item
}

// NewBounded returns a selector retaining at most k items. k <= 0 retains nothing.
func NewBounded(k int) *Bounded {
	if k < 0 {
		k = 0
	}
	return &Bounded{
		k:     k,
		items: make([]Item, 0, k+1),
	}
}

// Len returns the number of retained items.
func (b *Bounded) Len() int { return len(b.items) }

// Offer inserts item, then evicts the current maximum if more than k items
// are held.
func (b *Bounded) Offer(item Item) {
	if b.k == 0 {
		return
	}
	// Full and not better than the current worst: inserting and evicting the
	// maximum would leave the heap as it is.
	if len(b.items) == b.k && item.Distance >= b.items[0].Distance {
		return
	}
	b.items = append(b.items, item)
	b.siftUp(len(b.items) - 1)
	if len(b.items) > b.k {
		b.popMax()
	}
}

// DrainAscending empties the selector and returns its items nearest first.
func (b *Bounded) DrainAscending() []Item {
	out := make([]Item, len(b.items))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = b.popMax()
	}
	return out
}

func (b *Bounded) popMax() Item {
	n := len(b.items)
	root := b.items[0]
	last := b.items[n-1]
	b.items[n-1] = Item{}
	b.items = b.items[:n-1]
	if n-1 > 0 {
		b.items[0] = last
		b.siftDown(0)
	}
	return root
}

func (b *Bounded) less(i, j int) bool {
	return b.items[i].Distance > b.items[j].Distance
}

func (b *Bounded) siftUp(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !b.less(i, p) {
			return
		}
		b.items[i], b.items[p] = b.items[p], b.items[i]
		i = p
	}
}

func (b *Bounded) siftDown(i int) {
	n := len(b.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		r := l + 1
		if r < n && b.less(r, l) {
			best = r
		}
		if !b.less(best, i) {
			return
		}
		b.items[i], b.items[best] = b.items[best], b.items[i]
		i = best
	}
}
