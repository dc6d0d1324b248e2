package fileio

import "sync"

// Tracker is the set of watched stream handles.
type Tracker struct {
	mu      sync.Mutex
	streams map[uintptr]struct{}
}

// NewTracker returns an empty set.
func NewTracker() *Tracker {
	return &Tracker{streams: make(map[uintptr]struct{})}
}

func (t *Tracker) Track(stream uintptr) {
	t.mu.Lock()
	t.streams[stream] = struct{}{}
	t.mu.Unlock()
}

// Untrack forgets stream and reports whether it was watched.
func (t *Tracker) Untrack(stream uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.streams[stream]
	delete(t.streams, stream)
	return ok
}

func (t *Tracker) Tracked(stream uintptr) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.streams[stream]
	return ok
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.streams)
}
