package utils

import "container/heap"

// Compares the priority of items in a priority queue.
// A negative result means a is served before b.
type PriorityFunc[T any] func(a, b T) int

// Returns true if two items are identical.
type EqualityFunc[T any] func(a, b T) bool

// A priority queue.
type PriorityQueue[T any] struct {
	// The heap used to implement the priority queue.
	heap priorityHeap[T]

	// The function used to determine if two items are identical.
	equals EqualityFunc[T]
}

// Creates a new priority queue.
func NewPriorityQueue[T any](compare PriorityFunc[T], equals EqualityFunc[T]) *PriorityQueue[T] {
	return &PriorityQueue[T]{
		heap: priorityHeap[T]{
			items:   make([]T, 0),
			compare: compare,
		},
		equals: equals,
	}
}

// Pushes an item onto the priority queue.
func (pq *PriorityQueue[T]) Push(item T) {
	heap.Push(&pq.heap, item)
}

// Pops the highest priority item from the priority queue.
func (pq *PriorityQueue[T]) Pop() T {
	return heap.Pop(&pq.heap).(T)
}

// Returns the highest priority item without removing it.
func (pq *PriorityQueue[T]) Peek() (T, bool) {
	if pq.heap.Len() == 0 {
		var zero T
		return zero, false
	}
	return pq.heap.items[0], true
}

// Pops up to n items in priority order.
func (pq *PriorityQueue[T]) PopN(n int) []T {
	items := make([]T, 0, max(0, min(n, pq.Len())))
	for len(items) < n && pq.Len() > 0 {
		items = append(items, pq.Pop())
	}
	return items
}

// Returns the number of items in the priority queue.
func (pq *PriorityQueue[T]) Len() int {
	return pq.heap.Len()
}

// Removes an item from the priority queue.
// Returns false if the item was not queued.
func (pq *PriorityQueue[T]) Remove(item T) bool {
	for i, x := range pq.heap.items {
		if pq.equals(x, item) {
			heap.Remove(&pq.heap, i)
			return true
		}
	}
	return false
}

// Returns the items in the priority queue as a list, in heap order.
func (pq *PriorityQueue[T]) Items() []T {
	return pq.heap.Items()
}

type priorityHeap[T any] struct {
	// The items in the heap.
	items []T

	// The function used to compare items.
	compare PriorityFunc[T]
}

func (pq priorityHeap[T]) Len() int {
	return len(pq.items)
}

func (pq priorityHeap[T]) Less(i, j int) bool {
	return pq.compare(pq.items[i], pq.items[j]) < 0
}

func (pq priorityHeap[T]) Swap(i, j int) {
	pq.items[i], pq.items[j] = pq.items[j], pq.items[i]
}

func (pq *priorityHeap[T]) Push(x any) {
	pq.items = append(pq.items, x.(T))
}

func (pq *priorityHeap[T]) Pop() any {
	n := len(pq.items)
	x := pq.items[n-1]
	var zero T
	pq.items[n-1] = zero
	pq.items = pq.items[:n-1]
	return x
}

func (pq *priorityHeap[T]) Items() []T {
	return pq.items
}
