// Package queue holds items until a consumer drains them in batches.
package queue

import (
	"sync"
)

// Queue is a FIFO safe for concurrent producers. Consumers take items in
// batches with Next or all at once with Drain.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	pushed int
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends items in order.
func (q *Queue[T]) Push(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	q.pushed += len(items)
}

// Next removes and returns up to n items from the head. It returns nil
// when the queue is empty or n < 1.
func (q *Queue[T]) Next(n int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n < 1 || len(q.items) == 0 {
		return nil
	}
	n = min(n, len(q.items))
	batch := make([]T, n)
	copy(batch, q.items[:n])

	var zero T
	for i := range n {
		q.items[i] = zero
	}
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return batch
}

// Drain removes and returns every item.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty reports whether nothing is queued.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Pushed returns how many items were ever pushed.
func (q *Queue[T]) Pushed() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}
