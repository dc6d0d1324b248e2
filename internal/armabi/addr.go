// Package armabi holds the ARM/Thumb encodings shared by the in-process patch
// engine and the remote process controller.
package armabi

import "fmt"

// WordSize is the machine word size of the 32-bit ARM ABI.
const WordSize = 4

// Addr is a code or data address together with its instruction set.
// The packed form (low bit set for Thumb) only exists at OS and ABI
// boundaries; use Packed and Unpack to cross them.
type Addr struct {
	Value uintptr
	Thumb bool
}

// Unpack splits a packed code pointer into address and mode.
func Unpack(packed uintptr) Addr {
	return Addr{Value: packed &^ 1, Thumb: packed&1 == 1}
}

// ThumbAddr returns a Thumb tagged address for v.
func ThumbAddr(v uintptr) Addr {
	return Addr{Value: v &^ 1, Thumb: true}
}

// Packed returns the address in the interworking encoding.
func (a Addr) Packed() uintptr {
	if a.Thumb {
		return a.Value | 1
	}
	return a.Value &^ 1
}

// Add returns a moved by n bytes in the same mode.
func (a Addr) Add(n int) Addr {
	return Addr{Value: a.Value + uintptr(n), Thumb: a.Thumb}
}

// IsZero reports whether a is the null address.
func (a Addr) IsZero() bool {
	return a.Value == 0
}

func (a Addr) String() string {
	if a.Thumb {
		return fmt.Sprintf("%#x(thumb)", a.Value)
	}
	return fmt.Sprintf("%#x(arm)", a.Value)
}
