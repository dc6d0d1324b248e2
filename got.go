package armhook

import (
	"github.com/apex/log"
	"github.com/k2io/armhook/internal/elfsym"
	"github.com/k2io/armhook/internal/proc"
	"github.com/pkg/errors"
)

// HookGOT points the GOT slot of symbol in the loaded module at replacement
// and returns the previous slot value. module is matched against the paths
// of this process' mappings; the first match is also the image parsed for
// the slot offset. publish receives the current slot value before the swap
// and once more if the swap observed a different one.
func HookGOT(module, symbol string, replacement uintptr, publish Publish) (uintptr, error) {
	fs, err := proc.Default()
	if err != nil {
		return 0, err
	}
	m, err := fs.FindModule(proc.Self, module)
	if err != nil {
		return 0, err
	}
	entry, err := elfsym.FindGOTEntry(m.Path, symbol)
	if err != nil {
		if errors.Is(err, elfsym.ErrSymbolNotFound) {
			return 0, errors.Wrapf(ErrSymbolNotFound, "%s in %s", symbol, m.Path)
		}
		return 0, err
	}
	slot := m.Start + uintptr(entry.Offset)
	log.WithFields(log.Fields{
		"module": m.Path,
		"base":   m.Start,
	}).Debugf("GOT entry %v at %#x", entry, slot)
	return hookGOTSlot(symbol, slot, replacement, publish)
}

func hookGOTSlot(symbol string, slot, replacement uintptr, publish Publish) (uintptr, error) {
	lock.Lock()
	defer lock.Unlock()
	if err := reserve(slot); err != nil {
		return 0, errors.Wrap(err, symbol)
	}

	current, err := peekWord(slot)
	if err != nil {
		release(slot)
		return 0, errors.Wrap(err, symbol)
	}
	if publish != nil {
		publish(current)
	}
	original, err := PatchGOTEntry(slot, replacement)
	if err != nil {
		release(slot)
		return 0, errors.Wrap(err, symbol)
	}
	if original != current && publish != nil {
		log.WithField("symbol", symbol).Warnf("GOT slot changed from %#x to %#x during hook", current, original)
		publish(original)
	}
	commit(&hook{Record: Record{
		Kind:        KindGOT,
		Symbol:      symbol,
		Target:      slot,
		Original:    original,
		Replacement: replacement,
	}})
	log.WithFields(log.Fields{
		"symbol":   symbol,
		"slot":     slot,
		"original": original,
	}).Info("GOT hook installed")
	return original, nil
}
