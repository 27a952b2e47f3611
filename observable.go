package signup

import (
	"sort"
	"sync"
)

// Observable holds a value and notifies subscribers every time it is set.
// Subscribers run synchronously on the setter's goroutine, outside the lock.
type Observable[T any] struct {
	mu     sync.RWMutex
	value  T
	nextID int
	subs   map[int]func(T)
}

// NewObservable returns an Observable initialized to value.
func NewObservable[T any](value T) *Observable[T] {
	return &Observable[T]{
		value: value,
		subs:  make(map[int]func(T)),
	}
}

// NewFlag returns a boolean Observable starting at false.
func NewFlag() *Observable[bool] {
	return NewObservable(false)
}

// Get returns the current value.
func (o *Observable[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value
}

// Set stores value and notifies subscribers.
func (o *Observable[T]) Set(value T) {
	o.mu.Lock()
	o.value = value
	subs := o.snapshot()
	o.mu.Unlock()

	for _, fn := range subs {
		fn(value)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (o *Observable[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.subs[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			o.mu.Unlock()
		})
	}
}

// snapshot returns subscribers in registration order. Caller holds the lock.
func (o *Observable[T]) snapshot() []func(T) {
	if len(o.subs) == 0 {
		return nil
	}
	ids := make([]int, 0, len(o.subs))
	for id := range o.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]func(T), 0, len(ids))
	for _, id := range ids {
		out = append(out, o.subs[id])
	}
	return out
}
