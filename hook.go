// Package armhook redirects functions of the process it is loaded into on
// 32-bit ARM Linux, by rewriting GOT slots or the first instructions of a
// Thumb function.
package armhook

import (
	"sync"

	"github.com/k2io/armhook/internal/armabi"
	"github.com/pkg/errors"
)

// Kind tells how a target was redirected.
type Kind int

const (
	// KindGOT is a swapped GOT slot
	KindGOT Kind = iota
	// KindInline is an overwritten function prologue
	KindInline
)

func (k Kind) String() string {
	if k == KindInline {
		return "inline"
	}
	return "got"
}

// Record describes one applied redirection.
type Record struct {
	Kind   Kind
	Symbol string
	// Target is the GOT slot or the untagged function address.
	Target uintptr
	// Original is the previous slot value or the packed original function.
	Original    uintptr
	Replacement uintptr
	// Saved holds the overwritten code bytes of an inline hook.
	Saved []byte
	// Trampoline calls the original function of an inline hook.
	Trampoline armabi.Addr
}

type hook struct {
	Record
	// the trampoline page, kept mapped for the process lifetime
	jumper []byte
}

var (
	// hooks applied with target addresses as keys
	hooks map[uintptr]*hook
	// protect the hooks map
	lock sync.Mutex
)

var (
	// ErrDoubleHook means already hooked
	ErrDoubleHook = errors.New("double hook")
	// ErrHookNotFound means the hook not found
	ErrHookNotFound = errors.New("hook not found")
	// ErrARMMode means the target is ARM code, only Thumb targets are patched
	ErrARMMode = errors.New("arm mode target not supported")
	// ErrSymbolNotFound means the target symbol could not be resolved
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrAlloc means no executable page for a trampoline
	ErrAlloc = errors.New("cannot allocate trampoline")
	// ErrFault means the patched address was not accessible
	ErrFault = errors.New("fault while patching")
)

// Publish receives the packed original pointer of a target before the
// redirection becomes visible, so replacements can call through at once.
type Publish func(original uintptr)

func init() {
	hooks = make(map[uintptr]*hook)
}

// Installed returns the record of the hook applied at target.
func Installed(target uintptr) (Record, error) {
	lock.Lock()
	defer lock.Unlock()
	h, ok := hooks[target]
	if !ok || h == nil {
		return Record{}, ErrHookNotFound
	}
	return h.Record, nil
}

// reserve claims target in the registry. Callers hold lock.
func reserve(target uintptr) error {
	if _, ok := hooks[target]; ok {
		return errors.Wrapf(ErrDoubleHook, "%#x", target)
	}
	// early bucket allocation, commit only assigns
	hooks[target] = nil
	return nil
}

func release(target uintptr) {
	if h, ok := hooks[target]; ok && h == nil {
		delete(hooks, target)
	}
}

func commit(h *hook) {
	hooks[h.Target] = h
}
