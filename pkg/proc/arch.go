package proc

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrUnsupportedArch is returned when insdump is asked to trace on an
// architecture it has no decoder for.
var ErrUnsupportedArch = errors.New("unsupported architecture")

// Arch represents a CPU architecture.
type Arch struct {
	Name string // architecture name

	ptrSize              int
	maxInstructionLength int
	decodeMode           int

	// PCRegName is the name of the program counter register, used in
	// diagnostics only.
	PCRegName string

	asmDecode func(mode int, flavour AssemblyFlavour, win *InstructionWindow) (int, string, error)
}

// PtrSize returns the size of a pointer (and of a ptrace word) on this
// architecture.
func (a *Arch) PtrSize() int {
	return a.ptrSize
}

// MaxInstructionLength is the maximum size in bytes of an instruction.
func (a *Arch) MaxInstructionLength() int {
	return a.maxInstructionLength
}

// WindowWords returns the number of machine words needed to hold one
// instruction of maximum length.
func (a *Arch) WindowWords() int {
	return (a.maxInstructionLength + a.ptrSize - 1) / a.ptrSize
}

// WindowSize returns the size in bytes of an InstructionWindow for this
// architecture. It is always a multiple of PtrSize.
func (a *Arch) WindowSize() int {
	return a.WindowWords() * a.ptrSize
}

func (a *Arch) String() string {
	return a.Name
}

// ArchFor returns the Arch for the given GOARCH value.
func ArchFor(goarch string) (*Arch, error) {
	switch goarch {
	case "amd64":
		return AMD64Arch(), nil
	case "386":
		return I386Arch(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedArch, goarch)
}

// NativeArch returns the Arch insdump was compiled for.
func NativeArch() (*Arch, error) {
	return ArchFor(runtime.GOARCH)
}
