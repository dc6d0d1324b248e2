package fileio

import (
	"sync/atomic"

	"github.com/apex/log"
)

// Function names a replaced libc entry point.
type Function int

const (
	Fopen Function = iota
	Fread
	Fclose
	numFunctions
)

func (f Function) String() string {
	switch f {
	case Fopen:
		return "fopen"
	case Fread:
		return "fread"
	case Fclose:
		return "fclose"
	}
	return "unknown"
}

// Hooks is the state shared by the replacement functions of one process.
type Hooks struct {
	cfg       Config
	files     *Tracker
	guard     *Guard
	originals [numFunctions]atomic.Uintptr
}

// New returns hook state for cfg; threadID identifies the calling thread.
func New(cfg Config, threadID func() int) *Hooks {
	return &Hooks{
		cfg:   cfg,
		files: NewTracker(),
		guard: NewGuard(threadID),
	}
}

// Config returns the settings the hooks were created with.
func (h *Hooks) Config() Config {
	return h.cfg
}

// Files returns the watched stream set.
func (h *Hooks) Files() *Tracker {
	return h.files
}

// SetOriginal publishes the packed pointer that calls the original fn.
func (h *Hooks) SetOriginal(fn Function, p uintptr) {
	h.originals[fn].Store(p)
	log.WithField("function", fn).Debugf("original at %#x", p)
}

// Original returns the pointer published for fn, 0 before SetOriginal.
func (h *Hooks) Original(fn Function) uintptr {
	return h.originals[fn].Load()
}

// Enter guards a replacement against recursion on the calling thread.
func (h *Hooks) Enter() (*Token, bool) {
	return h.guard.Enter()
}

// OnOpen records stream, the result of opening path, if path is watched.
func (h *Hooks) OnOpen(path string, stream uintptr) bool {
	log.Debugf("fopen checking: %s", path)
	if stream == 0 || !h.cfg.Matches(path) {
		return false
	}
	h.files.Track(stream)
	log.WithField("stream", stream).Infof("fopen matched: %s", path)
	return true
}

// OnRead inspects a completed read of items elements of size bytes from
// stream. view returns the first n bytes of the destination buffer. It
// reports whether the buffer was rewritten.
func (h *Hooks) OnRead(stream uintptr, size, items uint, view func(n int) []byte) bool {
	if size == 0 || items == 0 || !h.files.Tracked(stream) {
		return false
	}
	total := size * items
	if total/items != size || total > uint(h.cfg.MaxBuffer) {
		log.Debugf("fread: skipping buffer of %d*%d bytes", size, items)
		return false
	}
	buf := view(int(total))
	if !Rewrite(buf, h.cfg) {
		log.WithField("stream", stream).Debug("fread: no patching needed")
		return false
	}
	log.WithField("stream", stream).Infof("fread: patched %d bytes in place", total)
	return true
}

// OnClose forgets stream before it is released and its handle reused.
func (h *Hooks) OnClose(stream uintptr) {
	if h.files.Untrack(stream) {
		log.WithField("stream", stream).Debug("fclose: untracked")
	}
}
