package ipc

import "container/heap"

// reorderItem is a received buffer that arrived ahead of the connector's
// expected recv id, held until the gap closes (spec.md §4.7.4 "greater
// than" branch).
type reorderItem struct {
	id  uint32
	buf *Buffer
}

type reorderHeap []*reorderItem

func (h reorderHeap) Len() int            { return len(h) }
func (h reorderHeap) Less(i, j int) bool  { return idLess(h[i].id, h[j].id) }
func (h reorderHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *reorderHeap) Push(x any)         { *h = append(*h, x.(*reorderItem)) }
func (h *reorderHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// maxReorderEntries bounds the out-of-order heap (spec.md §4.7.4): once
// full, a genuinely new arrival is dropped rather than grown without
// bound, since the sender's retransmit timer will supply it again.
const maxReorderEntries = 4

// reorderQueue wraps reorderHeap with the container/heap package-level
// calls so callers never invoke heap.* directly.
type reorderQueue struct{ h reorderHeap }

// add pushes buf under id unless id is already held (a retransmitted
// duplicate of a buffer still awaiting its gap to close) or the heap is
// already at maxReorderEntries, in which case the new arrival is dropped.
func (q *reorderQueue) add(id uint32, buf *Buffer) {
	for _, it := range q.h {
		if it.id == id {
			return
		}
	}
	if len(q.h) >= maxReorderEntries {
		return
	}
	heap.Push(&q.h, &reorderItem{id: id, buf: buf})
}

func (q *reorderQueue) peek() (uint32, *Buffer, bool) {
	if len(q.h) == 0 {
		return 0, nil, false
	}
	return q.h[0].id, q.h[0].buf, true
}

func (q *reorderQueue) pop() { heap.Pop(&q.h) }

func (q *reorderQueue) len() int { return len(q.h) }
