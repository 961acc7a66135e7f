// Package presence tracks which conversations currently have a foreground
// viewer. The notification path consults it to decide between injecting a
// message into the open thread and posting a system notification.
package presence

import "sync"

// Registry maps a conversation key to the number of active viewers.
type Registry struct {
	mu     sync.RWMutex
	counts map[string]int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{counts: make(map[string]int)}
}

// Acquire registers a viewer for key. The returned release function
// unregisters it; calling it more than once has no further effect.
func (r *Registry) Acquire(key string) (release func()) {
	r.mu.Lock()
	r.counts[key]++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.counts[key] <= 1 {
				delete(r.counts, key)
				return
			}
			r.counts[key]--
		})
	}
}

// Active reports whether key has at least one viewer.
func (r *Registry) Active(key string) bool {
	return r.Count(key) > 0
}

// Count returns the number of viewers for key.
func (r *Registry) Count(key string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.counts[key]
}

// Keys returns the keys with at least one viewer.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.counts))
	for k := range r.counts {
		keys = append(keys, k)
	}
	return keys
}
