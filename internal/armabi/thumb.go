package armabi

import "encoding/binary"

const (
	// BranchSize is the length of the absolute branch written by BranchSequence.
	BranchSize = 12
	// TrampolinePrefix is how many bytes of an original function a trampoline
	// relocates at most.
	TrampolinePrefix = 8
	// CPSRThumb is the execution state bit of the CPSR.
	CPSRThumb = 0x20
	// Nop16 is the 16-bit Thumb NOP.
	Nop16 = 0xbf00
)

var (
	// ldr.w r12, [pc, #4]
	ldrR12 = [4]byte{0xdf, 0xf8, 0x04, 0xc0}
	// bx r12
	bxR12 = [2]byte{0x60, 0x47}
	nop   = [2]byte{byte(Nop16 & 0xff), byte(Nop16 >> 8)}
)

// ThumbInstrWidth returns the width in bytes of the Thumb instruction whose
// first halfword is hw. Top five bits 0b11101, 0b11110 and 0b11111 start a
// 32-bit instruction, everything else is 16-bit.
func ThumbInstrWidth(hw uint16) int {
	switch hw >> 11 {
	case 0x1d, 0x1e, 0x1f:
		return 4
	}
	return 2
}

// BranchSequence encodes "ldr.w r12, [pc, #4]; bx r12" plus the literal dest
// for placement at address at. The literal has to sit at Align(at+4, 4)+4, so
// for halfword aligned placement it follows bx directly and the padding moves
// to the end.
func BranchSequence(at uintptr, dest uint32) [BranchSize]byte {
	var seq [BranchSize]byte
	copy(seq[0:4], ldrR12[:])
	copy(seq[4:6], bxR12[:])
	if at%4 == 0 {
		copy(seq[6:8], nop[:])
		binary.LittleEndian.PutUint32(seq[8:12], dest)
	} else {
		binary.LittleEndian.PutUint32(seq[6:10], dest)
		copy(seq[10:12], nop[:])
	}
	return seq
}

// LiteralOffset returns where BranchSequence placed the literal relative to at.
func LiteralOffset(at uintptr) int {
	return int(((at + 4) &^ 3) + 4 - at)
}
