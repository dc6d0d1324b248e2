package main

/*
#cgo arm CFLAGS: -mthumb

// Go cannot call C function pointers; these trampolines do. Replacements
// are installed Thumb tagged and must be Thumb code.
#include <stdint.h>
#include <stdio.h>

FILE *hooked_fopen(char *path, char *mode);
size_t hooked_fread(void *ptr, size_t size, size_t nmemb, FILE *stream);
int hooked_fclose(FILE *stream);

typedef FILE *(*fopen_fn)(const char *, const char *);
typedef size_t (*fread_fn)(void *, size_t, size_t, FILE *);
typedef int (*fclose_fn)(FILE *);

FILE *call_fopen(uintptr_t fn, char *path, char *mode) {
	return ((fopen_fn)fn)(path, mode);
}

size_t call_fread(uintptr_t fn, void *ptr, size_t size, size_t nmemb, FILE *stream) {
	return ((fread_fn)fn)(ptr, size, nmemb, stream);
}

int call_fclose(uintptr_t fn, FILE *stream) {
	return ((fclose_fn)fn)(stream);
}

static uintptr_t fopen_hook(void) { return (uintptr_t)&hooked_fopen; }
static uintptr_t fread_hook(void) { return (uintptr_t)&hooked_fread; }
static uintptr_t fclose_hook(void) { return (uintptr_t)&hooked_fclose; }
*/
import "C"

func fopenHook() uintptr  { return uintptr(C.fopen_hook()) }
func freadHook() uintptr  { return uintptr(C.fread_hook()) }
func fcloseHook() uintptr { return uintptr(C.fclose_hook()) }
