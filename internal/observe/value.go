// Package observe provides observable state for screens: a last-value
// container, a one-shot signal with acknowledgment, and a load-state union.
package observe

import "sync"

// Value holds the latest snapshot of some state and fans it out to
// subscribers. Every subscriber receives the current value on subscribe.
// A slow subscriber only ever sees the newest value, never a backlog.
type Value[T any] struct {
	mu   sync.Mutex
	v    T
	subs map[int]chan T
	next int
}

// NewValue creates a Value holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{v: initial, subs: make(map[int]chan T)}
}

// Get returns the current value.
func (o *Value[T]) Get() T {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.v
}

// Set replaces the value and notifies subscribers.
func (o *Value[T]) Set(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.v = v
	for _, ch := range o.subs {
		offer(ch, v)
	}
}

// Update applies fn to the current value under the lock and publishes the result.
func (o *Value[T]) Update(fn func(T) T) T {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.v = fn(o.v)
	for _, ch := range o.subs {
		offer(ch, o.v)
	}
	return o.v
}

// Subscribe returns a channel replaying the current value and then every
// change. The cancel function closes the channel.
func (o *Value[T]) Subscribe() (<-chan T, func()) {
	ch := make(chan T, 1)
	o.mu.Lock()
	if o.subs == nil {
		o.subs = make(map[int]chan T)
	}
	id := o.next
	o.next++
	o.subs[id] = ch
	ch <- o.v
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.subs, id)
			close(ch)
			o.mu.Unlock()
		})
	}
}

// offer replaces whatever is buffered in ch with v. Callers hold the lock,
// so there is a single sender per channel.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
