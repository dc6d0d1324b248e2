package remote

import (
	"fmt"

	"github.com/k2io/armhook/internal/armabi"
)

// ARM uregs indices as laid out by PTRACE_GETREGS.
const (
	RegSP   = 13
	RegLR   = 14
	RegPC   = 15
	RegCPSR = 16

	// argRegs is how many call arguments travel in r0..r3.
	argRegs = 4
)

// Registers is the ARM EABI register set in ptrace order.
type Registers [18]uint32

func (r Registers) SP() uint32   { return r[RegSP] }
func (r Registers) LR() uint32   { return r[RegLR] }
func (r Registers) PC() uint32   { return r[RegPC] }
func (r Registers) CPSR() uint32 { return r[RegCPSR] }

// Thumb reports whether the CPSR execution state is Thumb.
func (r Registers) Thumb() bool {
	return r[RegCPSR]&armabi.CPSRThumb != 0
}

func (r Registers) String() string {
	return fmt.Sprintf("r0=%#x r1=%#x r2=%#x r3=%#x sp=%#x lr=%#x pc=%#x cpsr=%#x",
		r[0], r[1], r[2], r[3], r[RegSP], r[RegLR], r[RegPC], r[RegCPSR])
}

// CallFrame is a register set and stack contents prepared for a call.
type CallFrame struct {
	Regs Registers
	// Stack holds the arguments past the fourth, to be stored at StackAddr.
	Stack     []uint32
	StackAddr uintptr
}

// MarshalCall prepares regs for calling fn with args under AAPCS: the first
// four arguments go to r0..r3, the rest are placed at the lowered stack
// pointer in order. Return lands on address 0 so the callee faults back to
// the tracer.
func MarshalCall(regs Registers, fn armabi.Addr, args []uint32) CallFrame {
	frame := CallFrame{Regs: regs}
	for i := 0; i < len(args) && i < argRegs; i++ {
		frame.Regs[i] = args[i]
	}
	if len(args) > argRegs {
		frame.Stack = append([]uint32(nil), args[argRegs:]...)
		frame.Regs[RegSP] -= uint32(len(frame.Stack) * armabi.WordSize)
	}
	frame.StackAddr = uintptr(frame.Regs[RegSP])

	frame.Regs[RegLR] = 0
	frame.Regs[RegPC] = uint32(fn.Value)
	if fn.Thumb {
		frame.Regs[RegCPSR] |= armabi.CPSRThumb
	} else {
		frame.Regs[RegCPSR] &^= armabi.CPSRThumb
	}
	return frame
}
