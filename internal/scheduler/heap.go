package scheduler

import "container/heap"

// taskHeap implements container/heap.Interface for Task, sorted by
// NotBefore (earliest first), with the submission sequence number
// breaking ties so equal timestamps dispatch FIFO.
type taskHeap []Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].NotBefore.Equal(h[j].NotBefore) {
		return h[i].seq < h[j].seq
	}
	return h[i].NotBefore.Before(h[j].NotBefore)
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) {
	*h = append(*h, x.(Task))
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// heapPush adds a Task to the heap, maintaining the heap invariant.
func heapPush(h *taskHeap, t Task) {
	heap.Push(h, t)
}

// heapPop removes and returns the Task with the earliest NotBefore.
// Panics if the heap is empty.
func heapPop(h *taskHeap) Task {
	return heap.Pop(h).(Task)
}
