// Package buffer provides a small thread-safe ring queue for
// fire-and-forget write paths.
package buffer

import "sync"

// Ring is a fixed-capacity FIFO queue. When full, Push evicts the
// oldest item, so fire-and-forget paths keep the freshest data.
// PopWait blocks until an item arrives or the ring closes, which is
// the shape a single drainer goroutine wants.
type Ring[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	count  int
	drops  uint64
	closed bool
	onDrop func(T)
}

// Option configures a Ring.
type Option[T any] func(*Ring[T])

// WithDropHandler installs fn, called for every item evicted by an
// overflowing Push. fn runs on the pushing goroutine and must be
// cheap.
func WithDropHandler[T any](fn func(T)) Option[T] {
	return func(r *Ring[T]) {
		r.onDrop = fn
	}
}

// NewRing returns a ring holding at most capacity items. A capacity
// below one is raised to one.
func NewRing[T any](capacity int, opts ...Option[T]) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	r := &Ring[T]{items: make([]T, capacity)}
	r.cond = sync.NewCond(&r.mu)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Push appends item, evicting the oldest when full. Returns false
// when the ring is closed and the item was not queued.
func (r *Ring[T]) Push(item T) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	var dropped T
	didDrop := false
	if r.count == len(r.items) {
		dropped = r.items[r.head]
		r.head = (r.head + 1) % len(r.items)
		r.count--
		r.drops++
		didDrop = true
	}
	r.items[(r.head+r.count)%len(r.items)] = item
	r.count++
	r.mu.Unlock()

	r.cond.Signal()
	if didDrop && r.onDrop != nil {
		r.onDrop(dropped)
	}
	return true
}

// Pop removes the oldest item without blocking.
func (r *Ring[T]) Pop() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.popLocked()
}

// PopWait blocks until an item is available or the ring closes. It
// returns false only when the ring is closed and fully drained, so a
// drainer can flush queued items after Close.
func (r *Ring[T]) PopWait() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.count == 0 && !r.closed {
		r.cond.Wait()
	}
	return r.popLocked()
}

func (r *Ring[T]) popLocked() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	item := r.items[r.head]
	r.items[r.head] = zero
	r.head = (r.head + 1) % len(r.items)
	r.count--
	return item, true
}

// Len returns the number of queued items.
func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Cap returns the ring's capacity.
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

// Drops returns how many items overflow has evicted.
func (r *Ring[T]) Drops() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drops
}

// Close rejects further pushes and wakes blocked readers. Items
// already queued remain poppable.
func (r *Ring[T]) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cond.Broadcast()
}
