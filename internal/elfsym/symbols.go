// Package elfsym locates patch targets in on-disk ELF images by joining
// relocation entries with the dynamic symbol table.
package elfsym

import (
	"debug/elf"
	"fmt"
	"os"

	"github.com/apex/log"
	"github.com/pkg/errors"
)

var (
	// ErrSymbolNotFound means no relocation references the symbol
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrMalformed means the image could not be decoded
	ErrMalformed = errors.New("malformed elf image")
	// ErrDuplicateSymbol means the dynamic symbol table defines a name twice
	ErrDuplicateSymbol = errors.New("duplicate symbol")
)

// GOTEntry is an imported symbol and the slot the dynamic linker fills for it.
type GOTEntry struct {
	Symbol string
	// Offset is the relocation target relative to the image load base.
	Offset  uint64
	Type    uint32
	Machine elf.Machine
	Section string
}

func (g GOTEntry) String() string {
	return fmt.Sprintf("%s@%#x (%s, %s)", g.Symbol, g.Offset, relocName(g.Machine, g.Type), g.Section)
}

func relocName(m elf.Machine, t uint32) string {
	switch m {
	case elf.EM_ARM:
		return elf.R_ARM(t).String()
	case elf.EM_AARCH64:
		return elf.R_AARCH64(t).String()
	case elf.EM_386:
		return elf.R_386(t).String()
	case elf.EM_X86_64:
		return elf.R_X86_64(t).String()
	}
	return fmt.Sprintf("R_%d", t)
}

// FindGOTEntry returns the GOT slot offset of the imported symbol in the ELF
// image at path. Both REL and RELA relocation sections are searched.
func FindGOTEntry(path, symbol string) (entry GOTEntry, err error) {
	f, err := openPath(path)
	if err != nil {
		return GOTEntry{}, err
	}
	defer f.Close()
	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrapf(ErrMalformed, "%s: %v", path, p)
		}
	}()

	entry, err = f.gotEntry(symbol)
	if err != nil {
		return GOTEntry{}, errors.Wrapf(err, "%s in %s", symbol, path)
	}
	log.WithField("image", path).Debugf("GOT entry %v", entry)
	return entry, nil
}

// DynamicSymbol returns the dynamic symbol table entry for symbol in the ELF
// image at path.
func DynamicSymbol(path, symbol string) (sym elf.Symbol, err error) {
	f, err := openPath(path)
	if err != nil {
		return elf.Symbol{}, err
	}
	defer f.Close()
	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrapf(ErrMalformed, "%s: %v", path, p)
		}
	}()

	syms, err := f.elf.DynamicSymbols()
	if err != nil {
		return elf.Symbol{}, errors.Wrapf(ErrMalformed, "dynamic symbols of %s: %v", path, err)
	}
	var found *elf.Symbol
	for i := range syms {
		if syms[i].Name != symbol {
			continue
		}
		if found != nil {
			return elf.Symbol{}, errors.Wrapf(ErrDuplicateSymbol, "%s in %s", symbol, path)
		}
		found = &syms[i]
	}
	if found == nil {
		return elf.Symbol{}, errors.Wrapf(ErrSymbolNotFound, "%s in %s", symbol, path)
	}
	return *found, nil
}

func openPath(path string) (*elfFile, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	f, err := openElf(r)
	if err != nil {
		r.Close()
		return nil, errors.Wrapf(ErrMalformed, "%s: %v", path, err)
	}
	f.closer = r
	return f, nil
}
