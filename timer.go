package bc

import (
	"container/heap"
	"time"
)

// timerNode is one entry in the scheduler's timer min-heap: §3 TimerNode.
// seq breaks ties between equal deadlines in insertion order (P3), since
// container/heap is not itself a stable sort.
type timerNode struct {
	deadline time.Time
	seq      uint64
	cont     Continuation
	index    int // maintained by container/heap for Remove/Fix
}

// timerHeap implements container/heap.Interface, ordered by deadline
// ascending with seq as the tiebreaker, following the same pattern as the
// teacher package's own timerHeap in loop.go.
type timerHeap []*timerNode

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	node := x.(*timerNode)
	node.index = len(*h)
	*h = append(*h, node)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*h = old[:n-1]
	return node
}

// peek returns the earliest-deadline node without removing it, or nil if
// the heap is empty.
func (h timerHeap) peek() *timerNode {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// removeNode removes an in-flight timer node (used for cancellation).
// No-op if the node's index is already -1 (already popped).
func removeNode(h *timerHeap, node *timerNode) {
	if node.index < 0 || node.index >= h.Len() {
		return
	}
	heap.Remove(h, node.index)
}
