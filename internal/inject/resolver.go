package inject

import (
	"github.com/apex/log"
	"github.com/k2io/armhook/internal/armabi"
	"github.com/k2io/armhook/internal/dl"
	"github.com/k2io/armhook/internal/elfsym"
	"github.com/k2io/armhook/internal/proc"
	"github.com/pkg/errors"
)

// Resolver finds the address of symbol from module in process pid.
type Resolver interface {
	Resolve(pid int, module, symbol string) (armabi.Addr, error)
}

// LocalResolver looks symbol up in this process and moves the address to
// the same module in the target. Both processes must map the same file.
type LocalResolver struct {
	FS     proc.FS
	Lookup func(symbol string) (uintptr, error)
}

// NewLocalResolver resolves through the dynamic linker of this process.
func NewLocalResolver(fs proc.FS) *LocalResolver {
	return &LocalResolver{FS: fs, Lookup: dl.Lookup}
}

func (r *LocalResolver) Resolve(pid int, module, symbol string) (armabi.Addr, error) {
	packed, err := r.Lookup(symbol)
	if err != nil {
		return armabi.Addr{}, err
	}
	local := armabi.Unpack(packed)
	remote, err := r.FS.RemoteAddr(pid, module, local.Value)
	if err != nil {
		return armabi.Addr{}, errors.Wrapf(err, "%s in %s", symbol, module)
	}
	addr := armabi.Addr{Value: remote, Thumb: local.Thumb}
	log.WithFields(log.Fields{"pid": pid, "module": module}).Debugf("%s: local %v remote %v", symbol, local, addr)
	return addr, nil
}

// ELFResolver reads the symbol value from the module file and adds the
// module base in the target.
type ELFResolver struct {
	FS proc.FS
}

func (r *ELFResolver) Resolve(pid int, module, symbol string) (armabi.Addr, error) {
	sym, err := elfsym.DynamicSymbol(module, symbol)
	if err != nil {
		return armabi.Addr{}, err
	}
	if sym.Value == 0 {
		return armabi.Addr{}, errors.Wrapf(elfsym.ErrSymbolNotFound, "%s is undefined in %s", symbol, module)
	}
	base, err := r.FS.FindModuleBase(pid, module)
	if err != nil {
		return armabi.Addr{}, err
	}
	addr := armabi.Unpack(base + uintptr(sym.Value))
	log.WithFields(log.Fields{"pid": pid, "module": module}).Debugf("%s: value %#x base %#x -> %v", symbol, sym.Value, base, addr)
	return addr, nil
}
