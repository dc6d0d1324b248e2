package elfsym

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/pkg/errors"
)

// maxTable bounds any table read through the program headers.
const maxTable = 64 << 20

// dynamicTable holds the PT_DYNAMIC entries of an image by tag.
type dynamicTable map[elf.DynTag][]uint64

func (d dynamicTable) one(tag elf.DynTag) (uint64, bool) {
	v, ok := d[tag]
	if !ok || len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

// dynamic decodes the PT_DYNAMIC segment, nil when the image has none.
func (e *elfFile) dynamic() (dynamicTable, error) {
	for _, p := range e.elf.Progs {
		if p.Type != elf.PT_DYNAMIC {
			continue
		}
		if p.Filesz > maxTable {
			return nil, errors.Errorf("PT_DYNAMIC of %d bytes", p.Filesz)
		}
		data := make([]byte, p.Filesz)
		if _, err := p.ReadAt(data, 0); err != nil {
			return nil, errors.Wrap(err, "read PT_DYNAMIC")
		}
		return decodeDynamic(e.elf.Class, e.elf.ByteOrder, data), nil
	}
	return nil, nil
}

func decodeDynamic(class elf.Class, bo binary.ByteOrder, data []byte) dynamicTable {
	size := 8
	if class == elf.ELFCLASS64 {
		size = 16
	}
	d := make(dynamicTable)
	for ; len(data) >= size; data = data[size:] {
		var tag elf.DynTag
		var val uint64
		if class == elf.ELFCLASS64 {
			tag = elf.DynTag(int64(bo.Uint64(data[0:8])))
			val = bo.Uint64(data[8:16])
		} else {
			tag = elf.DynTag(int32(bo.Uint32(data[0:4])))
			val = uint64(bo.Uint32(data[4:8]))
		}
		if tag == elf.DT_NULL {
			break
		}
		d[tag] = append(d[tag], val)
	}
	return d
}

// readVaddr reads size bytes at a link-time virtual address through the
// PT_LOAD segment holding them.
func (e *elfFile) readVaddr(addr, size uint64) ([]byte, error) {
	if size > maxTable {
		return nil, errors.Errorf("%d bytes at %#x", size, addr)
	}
	for _, p := range e.elf.Progs {
		if p.Type != elf.PT_LOAD || addr < p.Vaddr || addr-p.Vaddr > p.Filesz || size > p.Filesz-(addr-p.Vaddr) {
			continue
		}
		b := make([]byte, size)
		if _, err := p.ReadAt(b, int64(addr-p.Vaddr)); err != nil {
			return nil, errors.Wrapf(err, "read %#x", addr)
		}
		return b, nil
	}
	return nil, errors.Errorf("%#x+%d not in a loaded segment", addr, size)
}

// dynamicName resolves a symbol index through DT_SYMTAB and DT_STRTAB.
func (e *elfFile) dynamicName(d dynamicTable, index uint32) (string, bool) {
	symtab, ok1 := d.one(elf.DT_SYMTAB)
	strtab, ok2 := d.one(elf.DT_STRTAB)
	strsz, ok3 := d.one(elf.DT_STRSZ)
	if !ok1 || !ok2 || !ok3 {
		return "", false
	}
	syment, ok := d.one(elf.DT_SYMENT)
	if !ok {
		syment = 16
		if e.elf.Class == elf.ELFCLASS64 {
			syment = 24
		}
	}
	// st_name leads the entry in both classes
	ent, err := e.readVaddr(symtab+uint64(index)*syment, 4)
	if err != nil {
		return "", false
	}
	off := uint64(e.elf.ByteOrder.Uint32(ent))
	if off >= strsz {
		return "", false
	}
	str, err := e.readVaddr(strtab+off, strsz-off)
	if err != nil {
		return "", false
	}
	end := bytes.IndexByte(str, 0)
	if end < 0 {
		return "", false
	}
	return string(str[:end]), true
}

func (e *elfFile) dynamicGOTEntry(d dynamicTable, symbol string) (GOTEntry, error) {
	pltRela := false
	if v, ok := d.one(elf.DT_PLTREL); ok && elf.DynTag(v) == elf.DT_RELA {
		pltRela = true
	}
	tables := []struct {
		addr, size elf.DynTag
		rela       bool
	}{
		{elf.DT_JMPREL, elf.DT_PLTRELSZ, pltRela},
		{elf.DT_REL, elf.DT_RELSZ, false},
		{elf.DT_RELA, elf.DT_RELASZ, true},
	}
	for _, t := range tables {
		addr, ok1 := d.one(t.addr)
		size, ok2 := d.one(t.size)
		if !ok1 || !ok2 {
			continue
		}
		data, err := e.readVaddr(addr, size)
		if err != nil {
			continue
		}
		for _, r := range decodeRelocs(e.elf.Class, e.elf.ByteOrder, t.rela, data) {
			if r.sym == 0 {
				continue
			}
			if name, ok := e.dynamicName(d, r.sym); ok && name == symbol {
				return GOTEntry{
					Symbol:  symbol,
					Offset:  r.off,
					Type:    r.typ,
					Machine: e.elf.Machine,
					Section: t.addr.String(),
				}, nil
			}
		}
	}
	return GOTEntry{}, ErrSymbolNotFound
}
