package main

/*
#include <stdint.h>
#include <stdio.h>

FILE *call_fopen(uintptr_t fn, char *path, char *mode);
size_t call_fread(uintptr_t fn, void *ptr, size_t size, size_t nmemb, FILE *stream);
int call_fclose(uintptr_t fn, FILE *stream);
*/
import "C"

import (
	"unsafe"

	"github.com/k2io/armhook/internal/fileio"
)

//export hooked_fopen
func hooked_fopen(path, mode *C.char) *C.FILE {
	real := C.uintptr_t(state.Original(fileio.Fopen))
	tok, ok := state.Enter()
	if !ok {
		return C.call_fopen(real, path, mode)
	}
	defer tok.Release()

	f := C.call_fopen(real, path, mode)
	if path != nil {
		state.OnOpen(C.GoString(path), uintptr(unsafe.Pointer(f)))
	}
	return f
}

//export hooked_fread
func hooked_fread(ptr unsafe.Pointer, size, nmemb C.size_t, stream *C.FILE) C.size_t {
	n := C.call_fread(C.uintptr_t(state.Original(fileio.Fread)), ptr, size, nmemb, stream)
	if ptr == nil || n == 0 {
		return n
	}
	state.OnRead(uintptr(unsafe.Pointer(stream)), uint(size), uint(n), func(l int) []byte {
		return unsafe.Slice((*byte)(ptr), l)
	})
	return n
}

//export hooked_fclose
func hooked_fclose(stream *C.FILE) C.int {
	state.OnClose(uintptr(unsafe.Pointer(stream)))
	return C.call_fclose(C.uintptr_t(state.Original(fileio.Fclose)), stream)
}
