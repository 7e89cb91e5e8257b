package task

import (
	"container/heap"
	"time"
)

// taskHeap implements a min-heap of tasks ordered by due time.
// Tasks due at the same instant keep scheduling order.
type taskHeap []*task

func (h taskHeap) Len() int {
	return len(h)
}

func (h taskHeap) Less(i, j int) bool {
	if h[i].due == h[j].due {
		return h[i].seq < h[j].seq
	}
	return h[i].due < h[j].due
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil // Avoid memory leak
	t.index = -1
	*h = old[0 : n-1]
	return t
}

// peek returns the task with the earliest due time without removing it.
// Returns nil if heap is empty.
func (h *taskHeap) peek() *task {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// remove drops t from the heap if it is still queued.
func (h *taskHeap) remove(t *task) bool {
	if t.index < 0 || t.index >= len(*h) || (*h)[t.index] != t {
		return false
	}
	heap.Remove(h, t.index)
	return true
}

// popDue removes and returns the earliest task due at or before now, or nil.
func (h *taskHeap) popDue(now time.Duration) *task {
	t := h.peek()
	if t == nil || t.due > now {
		return nil
	}
	return heap.Pop(h).(*task)
}
