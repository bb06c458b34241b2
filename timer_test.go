package bc

import (
	"container/heap"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerHeapOrdersByDeadlineThenSeq(t *testing.T) {
	var h timerHeap
	base := time.Unix(0, 0)

	push := func(offset time.Duration, seq uint64) *timerNode {
		n := &timerNode{deadline: base.Add(offset), seq: seq}
		heap.Push(&h, n)
		return n
	}

	push(200*time.Millisecond, 3)
	push(100*time.Millisecond, 1)
	push(100*time.Millisecond, 2)
	push(50*time.Millisecond, 4)

	var order []uint64
	for h.Len() > 0 {
		n := h.peek()
		order = append(order, n.seq)
		heap.Pop(&h)
	}

	assert.Equal(t, []uint64{4, 1, 2, 3}, order)
}

func TestRemoveNodeIsNoOpAfterPop(t *testing.T) {
	var h timerHeap
	n := &timerNode{deadline: time.Unix(0, 0)}
	heap.Push(&h, n)
	heap.Pop(&h)

	require.Equal(t, -1, n.index)
	removeNode(&h, n) // must not panic on an already-popped node
}
