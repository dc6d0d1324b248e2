package elfsym

import (
	"debug/elf"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

type elfFile struct {
	elf    *elf.File
	closer io.Closer
}

func openElf(r io.ReaderAt) (*elfFile, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &elfFile{elf: f}, nil
}

func (e *elfFile) Close() error {
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}

type reloc struct {
	off uint64
	sym uint32
	typ uint32
}

// gotEntry searches the relocation sections first and falls back to the
// tables PT_DYNAMIC names, which survive section stripping.
func (e *elfFile) gotEntry(symbol string) (GOTEntry, error) {
	syms, symErr := e.elf.DynamicSymbols()
	if symErr == nil {
		if entry, ok := e.sectionGOTEntry(syms, symbol); ok {
			return entry, nil
		}
	}
	dyn, err := e.dynamic()
	if err != nil {
		return GOTEntry{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if dyn == nil {
		if symErr != nil {
			return GOTEntry{}, errors.Wrap(ErrMalformed, symErr.Error())
		}
		return GOTEntry{}, ErrSymbolNotFound
	}
	return e.dynamicGOTEntry(dyn, symbol)
}

func (e *elfFile) sectionGOTEntry(syms []elf.Symbol, symbol string) (GOTEntry, bool) {
	for _, sec := range e.elf.Sections {
		if sec.Type != elf.SHT_REL && sec.Type != elf.SHT_RELA {
			continue
		}
		// only relocations against the dynamic symbol table name imports
		if int(sec.Link) >= len(e.elf.Sections) || e.elf.Sections[sec.Link].Type != elf.SHT_DYNSYM {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			continue
		}
		for _, r := range decodeRelocs(e.elf.Class, e.elf.ByteOrder, sec.Type == elf.SHT_RELA, data) {
			// DynamicSymbols drops the null entry at index 0
			if r.sym == 0 || int(r.sym) > len(syms) {
				continue
			}
			if syms[r.sym-1].Name == symbol {
				return GOTEntry{
					Symbol:  symbol,
					Offset:  r.off,
					Type:    r.typ,
					Machine: e.elf.Machine,
					Section: sec.Name,
				}, true
			}
		}
	}
	return GOTEntry{}, false
}

func decodeRelocs(class elf.Class, bo binary.ByteOrder, rela bool, data []byte) []reloc {
	var size int
	switch {
	case class == elf.ELFCLASS32 && !rela:
		size = 8
	case class == elf.ELFCLASS32:
		size = 12
	case class == elf.ELFCLASS64 && !rela:
		size = 16
	case class == elf.ELFCLASS64:
		size = 24
	default:
		return nil
	}
	relocs := make([]reloc, 0, len(data)/size)
	for ; len(data) >= size; data = data[size:] {
		if class == elf.ELFCLASS32 {
			info := bo.Uint32(data[4:8])
			relocs = append(relocs, reloc{
				off: uint64(bo.Uint32(data[0:4])),
				sym: elf.R_SYM32(info),
				typ: elf.R_TYPE32(info),
			})
			continue
		}
		info := bo.Uint64(data[8:16])
		relocs = append(relocs, reloc{
			off: bo.Uint64(data[0:8]),
			sym: elf.R_SYM64(info),
			typ: elf.R_TYPE64(info),
		})
	}
	return relocs
}
