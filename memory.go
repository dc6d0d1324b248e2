// Copyright (C) 2022 K2 Cyber Security Inc.

package armhook

import (
	"runtime/debug"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var pageSize uintptr

func init() {
	pageSize = uintptr(unix.Getpagesize())
}

// makeSlice views size bytes of raw memory at addr.
func makeSlice(addr, size uintptr) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
}

func slicePtr(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}

func pageRange(addr, size uintptr) (start, length uintptr) {
	start = pageSize * (addr / pageSize)
	length = pageSize * ((addr + size + pageSize - 1 - start) / pageSize)
	return start, length
}

func protectPages(addr, size uintptr) error {
	return mprotectPages(addr, size, unix.PROT_EXEC|unix.PROT_READ|unix.PROT_WRITE)
}

func reProtectPages(addr, size uintptr) error {
	return mprotectPages(addr, size, unix.PROT_EXEC|unix.PROT_READ)
}

func mprotectPages(addr, size uintptr, prot int) error {
	start, length := pageRange(addr, size)
	for i := uintptr(0); i < length; i += pageSize {
		data := makeSlice(start+i, pageSize)
		if err := unix.Mprotect(data, prot); err != nil {
			return errors.Wrapf(err, "mprotect %#x prot %#x", start+i, prot)
		}
	}
	return nil
}

// withWritable runs write with the pages covering [addr, addr+size) writable
// and narrows them back to read/execute on every exit path. A memory fault
// inside write is returned as ErrFault.
func withWritable(addr, size uintptr, write func() error) (err error) {
	if err := protectPages(addr, size); err != nil {
		return err
	}
	defer func() {
		if rerr := reProtectPages(addr, size); rerr != nil && err == nil {
			err = rerr
		}
	}()
	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrapf(ErrFault, "%#x: %v", addr, p)
		}
	}()
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))

	return write()
}

// peekWord loads the pointer sized word at addr, reporting a fault as
// ErrFault.
func peekWord(addr uintptr) (v uintptr, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Wrapf(ErrFault, "%#x: %v", addr, p)
		}
	}()
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	return atomic.LoadUintptr((*uintptr)(unsafe.Pointer(addr))), nil
}

// readCode copies n bytes at addr, reporting a fault as ErrFault.
func readCode(addr, n uintptr) (b []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			b, err = nil, errors.Wrapf(ErrFault, "%#x: %v", addr, p)
		}
	}()
	defer debug.SetPanicOnFault(debug.SetPanicOnFault(true))
	b = make([]byte, n)
	copy(b, makeSlice(addr, n))
	return b, nil
}
