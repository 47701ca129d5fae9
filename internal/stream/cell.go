// Package stream provides the small reactive layer the session core is built
// on: a current-value Cell with ordered observer delivery, derived cells
// (Map, Combine2, Combine3) and a four-state Result for async values.
package stream

import (
	"sync"
)

// Observable is a value that changes over time. Subscribe delivers the
// current value first and then every later change, in order. The returned
// function removes the observer.
type Observable[T any] interface {
	Get() T
	Subscribe(fn func(T)) (unsubscribe func())
}

// Option configures a Cell.
type Option[T any] func(*Cell[T])

// WithEqual suppresses a Set whose value equals the current one.
func WithEqual[T any](eq func(a, b T) bool) Option[T] {
	return func(c *Cell[T]) { c.equal = eq }
}

// Distinct is WithEqual using ==.
func Distinct[T comparable]() Option[T] {
	return WithEqual(func(a, b T) bool { return a == b })
}

// delivery is one queued notification. targets is resolved when the
// notification is enqueued so late subscribers do not see older values.
type delivery[T any] struct {
	value   T
	targets []uint64
}

// Cell holds a current value and notifies observers of every change.
//
// Notifications are delivered in Set order. The goroutine whose Set finds the
// cell idle drains the queue; a Set issued while a delivery is running (from an
// observer or from another goroutine) only enqueues and returns. Observers
// therefore never run re-entrantly and may write to any cell, including this one.
type Cell[T any] struct {
	mu       sync.Mutex
	value    T
	equal    func(a, b T) bool
	subs     map[uint64]func(T)
	order    []uint64
	nextID   uint64
	queue    []delivery[T]
	draining bool
}

// NewCell creates a cell holding initial.
func NewCell[T any](initial T, opts ...Option[T]) *Cell[T] {
	c := &Cell[T]{
		value: initial,
		subs:  make(map[uint64]func(T)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the latest value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the value and notifies observers.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.setLocked(v)
	c.drainLocked()
}

// Update atomically replaces the value with fn(current) and returns the new
// value. fn runs with the cell locked and must not touch the cell.
func (c *Cell[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	v := fn(c.value)
	c.setLocked(v)
	c.drainLocked()
	return v
}

func (c *Cell[T]) setLocked(v T) {
	if c.equal != nil && c.equal(c.value, v) {
		return
	}
	c.value = v
	if len(c.order) == 0 {
		return
	}
	targets := make([]uint64, len(c.order))
	copy(targets, c.order)
	c.queue = append(c.queue, delivery[T]{value: v, targets: targets})
}

// Subscribe registers fn and delivers the current value to it.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[id] = fn
	c.order = append(c.order, id)
	c.queue = append(c.queue, delivery[T]{value: c.value, targets: []uint64{id}})
	c.drainLocked()

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(id) })
	}
}

func (c *Cell[T]) unsubscribe(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
	for i, o := range c.order {
		if o == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
}

// drainLocked must be called with c.mu held and returns with it released.
func (c *Cell[T]) drainLocked() {
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.queue) > 0 {
		d := c.queue[0]
		c.queue[0] = delivery[T]{}
		c.queue = c.queue[1:]
		for _, id := range d.targets {
			fn, ok := c.subs[id]
			if !ok {
				continue
			}
			c.mu.Unlock()
			fn(d.value)
			c.mu.Lock()
		}
	}
	c.queue = nil
	c.draining = false
	c.mu.Unlock()
}

// Map derives a cell whose value is fn(src). The returned stop function
// detaches it from src.
func Map[A, B any](src Observable[A], fn func(A) B, opts ...Option[B]) (*Cell[B], func()) {
	out := NewCell(fn(src.Get()), opts...)
	stop := src.Subscribe(func(a A) {
		out.Set(fn(a))
	})
	return out, stop
}

// Combine2 derives a cell recomputed from the latest value of both sources.
func Combine2[A, B, R any](a Observable[A], b Observable[B], fn func(A, B) R, opts ...Option[R]) (*Cell[R], func()) {
	var (
		mu sync.Mutex
		la = a.Get()
		lb = b.Get()
	)
	out := NewCell(fn(la, lb), opts...)

	recompute := func() {
		out.Update(func(R) R {
			mu.Lock()
			defer mu.Unlock()
			return fn(la, lb)
		})
	}

	stopA := a.Subscribe(func(v A) {
		mu.Lock()
		la = v
		mu.Unlock()
		recompute()
	})
	stopB := b.Subscribe(func(v B) {
		mu.Lock()
		lb = v
		mu.Unlock()
		recompute()
	})

	return out, func() {
		stopA()
		stopB()
	}
}

// Combine3 derives a cell recomputed from the latest value of each source
// whenever any of them changes.
func Combine3[A, B, C, R any](a Observable[A], b Observable[B], c Observable[C], fn func(A, B, C) R, opts ...Option[R]) (*Cell[R], func()) {
	var (
		mu sync.Mutex
		la = a.Get()
		lb = b.Get()
		lc = c.Get()
	)
	out := NewCell(fn(la, lb, lc), opts...)

	recompute := func() {
		out.Update(func(R) R {
			mu.Lock()
			defer mu.Unlock()
			return fn(la, lb, lc)
		})
	}

	stopA := a.Subscribe(func(v A) {
		mu.Lock()
		la = v
		mu.Unlock()
		recompute()
	})
	stopB := b.Subscribe(func(v B) {
		mu.Lock()
		lb = v
		mu.Unlock()
		recompute()
	})
	stopC := c.Subscribe(func(v C) {
		mu.Lock()
		lc = v
		mu.Unlock()
		recompute()
	})

	return out, func() {
		stopA()
		stopB()
		stopC()
	}
}
