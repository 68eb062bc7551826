package state

import "sync"

// Cell is a single shared mutable value. Every write replaces the value as a
// whole under the cell's lock. Subscribers are called outside the lock, one
// write at a time and in write order. A write made while another goroutine is
// delivering is queued and delivered by that goroutine, so the writer may return
// before its subscribers have run. Writes made from inside a subscriber are
// delivered after the current delivery finishes.
type Cell[T any] struct {
	mu         sync.Mutex
	value      T
	nextID     int
	subs       []subscriber[T]
	pending    []T
	delivering bool
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the value and notifies subscribers.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	c.deliverLocked(v)
}

// Update computes the replacement from the current value while holding the lock,
// so concurrent read-modify-write cycles cannot interleave. fn must not call back
// into the cell.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	v := fn(c.value)
	c.value = v
	c.deliverLocked(v)
	return v
}

// Renotify delivers the current value to subscribers again, in order with
// other writes.
func (c *Cell[T]) Renotify() {
	c.mu.Lock()
	c.deliverLocked(c.value)
}

// deliverLocked queues v and, unless another goroutine is already delivering,
// drains the queue. It must be called with c.mu held and returns with it released.
func (c *Cell[T]) deliverLocked(v T) {
	c.pending = append(c.pending, v)
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true

	done := false
	defer func() {
		if !done {
			// A subscriber panicked; drop the backlog so later writes still deliver.
			c.mu.Lock()
			c.pending = nil
			c.delivering = false
			c.mu.Unlock()
		}
	}()

	for len(c.pending) > 0 {
		next := c.pending[0]
		var zero T
		c.pending[0] = zero
		c.pending = c.pending[1:]
		subs := c.snapshotSubs()
		c.mu.Unlock()

		notify(subs, next)

		c.mu.Lock()
	}
	c.pending = nil
	c.delivering = false
	c.mu.Unlock()
	done = true
}

// Subscribe registers fn to run after every write. The returned function removes it.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *Cell[T]) snapshotSubs() []subscriber[T] {
	if len(c.subs) == 0 {
		return nil
	}
	subs := make([]subscriber[T], len(c.subs))
	copy(subs, c.subs)
	return subs
}

func notify[T any](subs []subscriber[T], v T) {
	for _, s := range subs {
		s.fn(v)
	}
}
