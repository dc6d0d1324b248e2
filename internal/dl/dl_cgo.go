//go:build cgo

// Package dl resolves symbols in the global scope of the calling process.
package dl

/*
#cgo linux LDFLAGS: -ldl
#define _GNU_SOURCE
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

static uintptr_t lookup_default(const char *name) {
	return (uintptr_t)dlsym(RTLD_DEFAULT, name);
}
*/
import "C"

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Available reports whether dynamic lookup is compiled in.
const Available = true

// Lookup returns the packed address of name, as dlsym(RTLD_DEFAULT, name).
func Lookup(name string) (uintptr, error) {
	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))
	p := uintptr(C.lookup_default(cs))
	if p == 0 {
		return 0, errors.Wrap(ErrNotFound, name)
	}
	return p, nil
}
