package fileio

import "sync"

// Guard detects a hook being entered again on a thread that is already
// inside it.
type Guard struct {
	id     func() int
	mu     sync.Mutex
	active map[int]struct{}
}

// Token marks one entry into the guarded region.
type Token struct {
	g  *Guard
	id int
}

// NewGuard returns a guard keyed by id, which must identify the calling
// thread.
func NewGuard(id func() int) *Guard {
	return &Guard{id: id, active: make(map[int]struct{})}
}

// Enter claims the region for the calling thread. It returns false if the
// thread already holds it.
func (g *Guard) Enter() (*Token, bool) {
	id := g.id()
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[id]; busy {
		return nil, false
	}
	g.active[id] = struct{}{}
	return &Token{g: g, id: id}, true
}

// Release leaves the region. Releasing twice is harmless.
func (t *Token) Release() {
	if t == nil || t.g == nil {
		return
	}
	t.g.mu.Lock()
	delete(t.g.active, t.id)
	t.g.mu.Unlock()
	t.g = nil
}
