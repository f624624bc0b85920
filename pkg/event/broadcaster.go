// Package event provides a typed fan-out of values to subscribed listeners.
//
// Each listener runs in isolation: a panic inside one callback is
// recovered and reported through the configured error hook, and delivery
// continues with the remaining listeners.
package event

import (
	"fmt"
	"sync"
)

// Listener receives published values.
type Listener[T any] func(T)

// Broadcaster delivers values to its listeners synchronously, in
// subscription order.
type Broadcaster[T any] struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[uint64]Listener[T]
	order     []uint64
	onPanic   func(error)
}

// Option configures a Broadcaster.
type Option func(*options)

type options struct {
	onPanic func(error)
}

// WithPanicHandler sets the hook invoked with a recovered listener panic.
func WithPanicHandler(fn func(error)) Option {
	return func(o *options) {
		o.onPanic = fn
	}
}

// New creates an empty Broadcaster.
func New[T any](opts ...Option) *Broadcaster[T] {
	o := &options{onPanic: func(error) {}}
	for _, opt := range opts {
		opt(o)
	}
	return &Broadcaster[T]{
		listeners: make(map[uint64]Listener[T]),
		onPanic:   o.onPanic,
	}
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is idempotent.
func (b *Broadcaster[T]) Subscribe(fn Listener[T]) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Broadcaster[T]) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.listeners, id)
	for i, v := range b.order {
		if v == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Publish delivers v to every listener registered at the time of the call.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.RLock()
	snapshot := make([]Listener[T], 0, len(b.order))
	for _, id := range b.order {
		snapshot = append(snapshot, b.listeners[id])
	}
	b.mu.RUnlock()

	for _, fn := range snapshot {
		b.deliver(fn, v)
	}
}

func (b *Broadcaster[T]) deliver(fn Listener[T], v T) {
	defer func() {
		if r := recover(); r != nil {
			b.onPanic(fmt.Errorf("event: listener panic: %v", r))
		}
	}()
	fn(v)
}

// Len returns the number of registered listeners.
func (b *Broadcaster[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Reset removes every listener.
func (b *Broadcaster[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[uint64]Listener[T])
	b.order = nil
}
