// Copyright (C) 2022 K2 Cyber Security Inc.

package armhook

import (
	"github.com/apex/log"
	"github.com/k2io/armhook/internal/armabi"
	"github.com/k2io/armhook/internal/dl"
	"github.com/pkg/errors"
	"golang.org/x/arch/arm/armasm"
	"golang.org/x/sys/unix"
)

// HookFunction redirects the function the dynamic linker resolves for name
// to replacement, which must be a Thumb function. publish receives the
// trampoline that calls the original before the redirection is written. The
// trampoline is returned as well.
func HookFunction(name string, replacement uintptr, publish Publish) (armabi.Addr, error) {
	packed, err := dl.Lookup(name)
	if err != nil {
		if errors.Is(err, dl.ErrNotFound) {
			return armabi.Addr{}, errors.Wrap(ErrSymbolNotFound, name)
		}
		return armabi.Addr{}, err
	}
	tramp, err := hookFunction(name, armabi.Unpack(packed), replacement, publish)
	if err != nil {
		return armabi.Addr{}, errors.Wrap(err, name)
	}
	return tramp, nil
}

// HookFunctionAt is HookFunction for a known address.
func HookFunctionAt(target armabi.Addr, replacement uintptr, publish Publish) (armabi.Addr, error) {
	return hookFunction("", target, replacement, publish)
}

func hookFunction(name string, target armabi.Addr, replacement uintptr, publish Publish) (armabi.Addr, error) {
	if target.IsZero() {
		return armabi.Addr{}, ErrSymbolNotFound
	}
	if !target.Thumb {
		return armabi.Addr{}, errors.Wrap(ErrARMMode, describeARM(target.Value))
	}

	lock.Lock()
	defer lock.Unlock()
	if err := reserve(target.Value); err != nil {
		return armabi.Addr{}, err
	}
	h, err := applyThumbHook(target, replacement, publish)
	if err != nil {
		release(target.Value)
		return armabi.Addr{}, err
	}
	h.Symbol = name
	commit(h)
	log.WithFields(log.Fields{
		"symbol":      name,
		"target":      target,
		"replacement": replacement,
		"trampoline":  h.Trampoline,
	}).Info("inline hook installed")
	return h.Trampoline, nil
}

// applyThumbHook builds the trampoline, publishes it and only then writes
// the branch over the target prologue.
func applyThumbHook(target armabi.Addr, replacement uintptr, publish Publish) (*hook, error) {
	saved, err := readCode(target.Value, armabi.BranchSize)
	if err != nil {
		return nil, err
	}

	tramp, jumper, err := makeThumbTrampoline(target)
	if err != nil {
		return nil, err
	}
	if publish != nil {
		publish(tramp.Packed())
	}
	if err := PatchThumbHook(target.Value, replacement); err != nil {
		unix.Munmap(jumper)
		return nil, err
	}
	return &hook{
		Record: Record{
			Kind:        KindInline,
			Target:      target.Value,
			Original:    target.Packed(),
			Replacement: replacement,
			Saved:       saved,
			Trampoline:  tramp,
		},
		jumper: jumper,
	}, nil
}

// describeARM decodes the first instruction at addr for error reports.
func describeARM(addr uintptr) string {
	code, err := readCode(addr, armabi.WordSize)
	if err != nil {
		return err.Error()
	}
	inst, err := armasm.Decode(code, armasm.ModeARM)
	if err != nil {
		return errors.Wrapf(err, "%#x", addr).Error()
	}
	return armasm.GNUSyntax(inst) + " at " + armabi.Addr{Value: addr}.String()
}
