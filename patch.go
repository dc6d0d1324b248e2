// Copyright (C) 2022 K2 Cyber Security Inc.

package armhook

import (
	"sync/atomic"
	"unsafe"

	"github.com/apex/log"
	"github.com/k2io/armhook/internal/armabi"
)

// PatchGOTEntry stores replacement, tagged Thumb, into the GOT slot and
// returns the previous value. Callers must serialize patches of one slot.
func PatchGOTEntry(slot, replacement uintptr) (uintptr, error) {
	var original uintptr
	err := withWritable(slot, unsafe.Sizeof(original), func() error {
		p := (*uintptr)(unsafe.Pointer(slot))
		original = atomic.SwapUintptr(p, replacement|1)
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.WithField("slot", slot).Debugf("GOT %#x -> %#x", original, replacement|1)
	return original, nil
}

// PatchThumbHook overwrites the first armabi.BranchSize bytes at target with
// an absolute branch to replacement. The overwritten bytes are lost, build
// the trampoline first.
func PatchThumbHook(target, replacement uintptr) error {
	seq := armabi.BranchSequence(target, uint32(replacement|1))
	err := withWritable(target, armabi.BranchSize, func() error {
		copy(makeSlice(target, armabi.BranchSize), seq[:])
		return flushCache(target, target+armabi.BranchSize)
	})
	if err != nil {
		return err
	}
	log.WithField("target", target).Debugf("inline branch to %#x: % x", replacement|1, seq)
	return nil
}
