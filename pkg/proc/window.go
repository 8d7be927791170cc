package proc

import (
	"encoding/binary"
	"fmt"
)

// InstructionWindow holds the bytes of target memory starting at PC, enough
// of them to decode any single instruction of the architecture.
//
// The window is always filled a machine word at a time, each word
// decomposed in little-endian order, so Bytes[0] is the byte at PC
// regardless of how long the instruction there actually is.
type InstructionWindow struct {
	PC    uint64
	Bytes []byte

	ptrSize int
}

// NewInstructionWindow returns an empty window sized for arch.
func NewInstructionWindow(arch *Arch) *InstructionWindow {
	return &InstructionWindow{
		Bytes:   make([]byte, arch.WindowSize()),
		ptrSize: arch.PtrSize(),
	}
}

// Reset zeroes the window and moves it to pc.
func (w *InstructionWindow) Reset(pc uint64) {
	w.PC = pc
	for i := range w.Bytes {
		w.Bytes[i] = 0
	}
}

// Words returns the number of machine words in the window.
func (w *InstructionWindow) Words() int {
	return len(w.Bytes) / w.ptrSize
}

// WordAddr returns the target address of the i-th word of the window.
func (w *InstructionWindow) WordAddr(i int) uint64 {
	return w.PC + uint64(i*w.ptrSize)
}

// PutWord stores word as the i-th machine word of the window.
func (w *InstructionWindow) PutWord(i int, word uint64) {
	off := i * w.ptrSize
	switch w.ptrSize {
	case 8:
		binary.LittleEndian.PutUint64(w.Bytes[off:], word)
	case 4:
		binary.LittleEndian.PutUint32(w.Bytes[off:], uint32(word))
	default:
		panic(fmt.Sprintf("unsupported word size %d", w.ptrSize))
	}
}
