package queue

import (
	"sync"
)

// Queue is a thread-safe FIFO that hands snapshots from the simulation
// goroutine to a storage writer. A bounded queue evicts its oldest item on
// overflow, since a newer snapshot always supersedes an older one.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	limit   int // 0 means unbounded
	evicted uint64
}

// New creates an unbounded queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewBounded creates a queue holding at most limit items.
func NewBounded[T any](limit int) *Queue[T] {
	if limit < 1 {
		limit = 1
	}
	return &Queue[T]{items: make([]T, 0, limit), limit: limit}
}

// Push appends items, evicting the oldest ones if the queue is bounded.
func (q *Queue[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	if q.limit > 0 && len(q.items) > q.limit {
		over := len(q.items) - q.limit
		clear(q.items[:over])
		q.items = append(q.items[:0], q.items[over:]...)
		q.evicted += uint64(over)
	}
}

// Pop removes and returns the oldest item. ok is false if the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Evicted returns how many items a bounded queue has dropped on overflow.
func (q *Queue[T]) Evicted() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.evicted
}

// Clear removes all items.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.items)
	q.items = q.items[:0]
}

// TakeLatest empties the queue and returns only its newest item together
// with how many older items were discarded. ok is false when the queue was
// empty. Writers that persist current state use it to skip stale snapshots.
func (q *Queue[T]) TakeLatest() (latest T, skipped int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if n == 0 {
		return latest, 0, false
	}
	latest = q.items[n-1]
	clear(q.items)
	q.items = q.items[:0]
	return latest, n - 1, true
}
