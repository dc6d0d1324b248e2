//go:build linux && arm

package armhook

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// __ARM_NR_cacheflush
const sysCacheflush = 0x0f0002

func flushCache(start, end uintptr) error {
	if _, _, errno := unix.Syscall(sysCacheflush, start, end, 0); errno != 0 {
		return errors.Wrapf(errno, "cacheflush %#x-%#x", start, end)
	}
	return nil
}
