package scheduler

import "container/heap"

// Queue is a min-heap of ready items ordered by less.
// It is not safe for concurrent use; the owner serializes access.
type Queue[T any] struct {
	h *itemHeap[T]
}

// New creates an empty queue. less must be a strict ordering; items that
// compare equal pop in an unspecified order.
func New[T any](less func(a, b T) bool) *Queue[T] {
	return &Queue[T]{h: &itemHeap[T]{less: less}}
}

// Push adds an item.
func (q *Queue[T]) Push(item T) {
	heap.Push(q.h, item)
}

// Pop removes and returns the smallest item. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	if q.h.Len() == 0 {
		return item, false
	}
	return heap.Pop(q.h).(T), true
}

// Peek returns the smallest item without removing it.
func (q *Queue[T]) Peek() (item T, ok bool) {
	if q.h.Len() == 0 {
		return item, false
	}
	return q.h.items[0], true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return q.h.Len() }

// Drain removes every item in priority order.
func (q *Queue[T]) Drain() []T {
	out := make([]T, 0, q.h.Len())
	for q.h.Len() > 0 {
		out = append(out, heap.Pop(q.h).(T))
	}
	return out
}

type itemHeap[T any] struct {
	items []T
	less  func(a, b T) bool
}

func (h *itemHeap[T]) Len() int           { return len(h.items) }
func (h *itemHeap[T]) Less(i, j int) bool { return h.less(h.items[i], h.items[j]) }
func (h *itemHeap[T]) Swap(i, j int)      { h.items[i], h.items[j] = h.items[j], h.items[i] }
func (h *itemHeap[T]) Push(x any)         { h.items = append(h.items, x.(T)) }
func (h *itemHeap[T]) Pop() any {
	n := len(h.items)
	item := h.items[n-1]
	var zero T
	h.items[n-1] = zero
	h.items = h.items[:n-1]
	return item
}
