package observe

import "sync"

// Signal is a one-shot notification that stays raised until the consumer
// acknowledges it.
type Signal[T comparable] struct {
	mu     sync.Mutex
	v      T
	raised bool
}

// Raise sets the signal, replacing any unacknowledged value.
func (s *Signal[T]) Raise(v T) {
	s.mu.Lock()
	s.v = v
	s.raised = true
	s.mu.Unlock()
}

// Peek returns the pending value without consuming it.
func (s *Signal[T]) Peek() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v, s.raised
}

// Ack clears the signal if it still holds v. A signal raised with a different
// value after the consumer peeked is left in place.
func (s *Signal[T]) Ack(v T) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.raised || s.v != v {
		return false
	}
	var zero T
	s.v = zero
	s.raised = false
	return true
}
