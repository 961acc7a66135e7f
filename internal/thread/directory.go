package thread

import (
	"sync"
)

// Directory owns the threads currently open in the process. A thread lives
// while at least one holder has it open; the last release closes it.
type Directory struct {
	deps Deps

	mu      sync.Mutex
	threads map[string]*entry
}

type entry struct {
	thread *Thread
	refs   int
}

// NewDirectory creates an empty directory whose threads share deps.
func NewDirectory(deps Deps) *Directory {
	return &Directory{deps: deps, threads: make(map[string]*entry)}
}

// Open returns the thread for otherUserID, creating it if needed. The
// release function must be called once the caller is done with it.
func (d *Directory) Open(otherUserID string) (*Thread, func()) {
	d.mu.Lock()
	e, ok := d.threads[otherUserID]
	if !ok {
		e = &entry{thread: New(otherUserID, d.deps)}
		d.threads[otherUserID] = e
	}
	e.refs++
	t := e.thread
	d.mu.Unlock()

	var once sync.Once
	return t, func() {
		once.Do(func() { d.release(otherUserID, t) })
	}
}

func (d *Directory) release(otherUserID string, t *Thread) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.threads[otherUserID]
	if !ok || e.thread != t {
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	delete(d.threads, otherUserID)
	t.Close()
}

// Get returns the open thread for otherUserID.
func (d *Directory) Get(otherUserID string) (*Thread, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.threads[otherUserID]
	if !ok {
		return nil, false
	}
	return e.thread, true
}

// Each calls fn for every open thread. fn runs without the directory lock.
func (d *Directory) Each(fn func(*Thread)) {
	d.mu.Lock()
	threads := make([]*Thread, 0, len(d.threads))
	for _, e := range d.threads {
		threads = append(threads, e.thread)
	}
	d.mu.Unlock()
	for _, t := range threads {
		fn(t)
	}
}

// Len returns the number of open threads.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.threads)
}
