package armhook

import (
	"encoding/binary"

	"github.com/apex/log"
	"github.com/k2io/armhook/internal/armabi"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// CopyThumbPrefix copies whole Thumb instructions from src to dst until
// armabi.TrampolinePrefix bytes are covered. A 32-bit instruction that would
// cross the limit is not copied. It returns the number of bytes copied.
func CopyThumbPrefix(dst, src []byte) int {
	n := 0
	for n+2 <= len(src) && n < armabi.TrampolinePrefix {
		w := armabi.ThumbInstrWidth(binary.LittleEndian.Uint16(src[n:]))
		if n+w > armabi.TrampolinePrefix || n+w > len(src) || n+w > len(dst) {
			log.Debugf("stop before %d-byte instruction at +%d", w, n)
			break
		}
		copy(dst[n:n+w], src[n:n+w])
		n += w
	}
	return n
}

// MakeThumbTrampoline builds a stub that runs the relocated prologue of
// original and continues in original right after it. The result is Thumb
// tagged.
func MakeThumbTrampoline(original armabi.Addr) (armabi.Addr, error) {
	at, _, err := makeThumbTrampoline(original)
	return at, err
}

func makeThumbTrampoline(original armabi.Addr) (armabi.Addr, []byte, error) {
	fn := original.Value
	prefix, err := readCode(fn, armabi.TrampolinePrefix)
	if err != nil {
		return armabi.Addr{}, nil, err
	}
	jumper, err := unix.Mmap(-1, 0, int(pageSize),
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return armabi.Addr{}, nil, errors.Wrapf(ErrAlloc, "mmap: %v", err)
	}
	at := slicePtr(jumper)

	n := CopyThumbPrefix(jumper, prefix)
	back := armabi.ThumbAddr(fn).Add(n)
	seq := armabi.BranchSequence(at+uintptr(n), uint32(back.Packed()))
	copy(jumper[n:], seq[:])

	if err := flushCache(at, at+uintptr(n+len(seq))); err != nil {
		unix.Munmap(jumper)
		return armabi.Addr{}, nil, err
	}
	log.WithFields(log.Fields{
		"original": original,
		"copied":   n,
	}).Debugf("trampoline %#x returns to %v: % x", at, back, jumper[:n+len(seq)])
	return armabi.ThumbAddr(at), jumper, nil
}
