//go:build android && cgo

package logging

/*
#cgo LDFLAGS: -llog
#include <android/log.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	"github.com/apex/log"
)

// logcat writes entries to the Android log buffer.
type logcat struct {
	tag *C.char
}

func newHandler(tag string) log.Handler {
	return &logcat{tag: C.CString(tag)}
}

func priority(l log.Level) C.int {
	switch l {
	case log.DebugLevel:
		return C.int(C.ANDROID_LOG_DEBUG)
	case log.InfoLevel:
		return C.int(C.ANDROID_LOG_INFO)
	case log.WarnLevel:
		return C.int(C.ANDROID_LOG_WARN)
	case log.ErrorLevel:
		return C.int(C.ANDROID_LOG_ERROR)
	}
	return C.int(C.ANDROID_LOG_FATAL)
}

func (h *logcat) HandleLog(e *log.Entry) error {
	msg := C.CString(format(e))
	defer C.free(unsafe.Pointer(msg))
	C.__android_log_write(priority(e.Level), h.tag, msg)
	return nil
}
