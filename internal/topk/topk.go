// Package topk provides a bounded heap that keeps the k best hits.
//
// The heap keeps its worst hit (lowest score) on top, so once it holds k hits a
// new candidate only has to beat the top to get in. Hits are unordered while
// accumulating and sorted once at the end.
package topk

import (
	"slices"

	"github.com/hupe1980/ringvec/model"
)

// Heap is a bounded min-heap of hits. It is not safe for concurrent use.
type Heap struct {
	k     int
	items []model.Hit
}

// New creates a heap that retains at most k hits. k <= 0 yields a heap that
// accepts nothing.
func New(k int) *Heap {
	if k < 0 {
		k = 0
	}
	return &Heap{
		k:     k,
		items: make([]model.Hit, 0, min(k, 1024)),
	}
}

// Len returns the number of hits currently held.
func (h *Heap) Len() int {
	return len(h.items)
}

// K returns the heap's bound.
func (h *Heap) K() int {
	return h.k
}

// Min returns the worst hit held, if any.
func (h *Heap) Min() (model.Hit, bool) {
	if len(h.items) == 0 {
		return model.Hit{}, false
	}
	return h.items[0], true
}

// Push offers a hit. If the heap is full the hit replaces the current worst
// only when it ranks strictly better. Reports whether the hit was kept.
func (h *Heap) Push(hit model.Hit) bool {
	if h.k == 0 {
		return false
	}
	if len(h.items) < h.k {
		h.items = append(h.items, hit)
		h.siftUp(len(h.items) - 1)
		return true
	}
	if !model.Less(hit, h.items[0]) {
		return false
	}
	h.items[0] = hit
	h.siftDown(0)
	return true
}

// Score returns the score a candidate must beat once the heap is full, and
// false while it still has room.
func (h *Heap) Score() (float32, bool) {
	if len(h.items) < h.k || h.k == 0 {
		return 0, false
	}
	return h.items[0].Score, true
}

// Sorted returns the held hits ordered by descending score, ties by ascending id.
// The heap is left untouched.
func (h *Heap) Sorted() []model.Hit {
	out := slices.Clone(h.items)
	SortHits(out)
	return out
}

// Items returns the held hits in heap order. The slice aliases the heap.
func (h *Heap) Items() []model.Hit {
	return h.items
}

// Reset clears the heap, keeping its bound.
func (h *Heap) Reset() {
	clear(h.items)
	h.items = h.items[:0]
}

// SortHits orders hits by descending score, ties by ascending id.
func SortHits(hits []model.Hit) {
	slices.SortFunc(hits, func(a, b model.Hit) int {
		switch {
		case model.Less(a, b):
			return -1
		case model.Less(b, a):
			return 1
		default:
			return 0
		}
	})
}

// worse reports whether item i ranks below item j.
func (h *Heap) worse(i, j int) bool {
	return model.Less(h.items[j], h.items[i])
}

func (h *Heap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !h.worse(i, parent) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *Heap) siftDown(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && h.worse(right, left) {
			child = right
		}
		if !h.worse(child, i) {
			break
		}
		h.items[i], h.items[child] = h.items[child], h.items[i]
		i = child
	}
}
