package proc

import (
	"errors"
	"fmt"
	"io"
)

// ErrDecode is returned (wrapped) by a Disassembler when the bytes at the
// current position are not a valid instruction.
var ErrDecode = errors.New("could not decode instruction")

// Disassembler decodes exactly one instruction from the start of an
// InstructionWindow. It returns the number of bytes the instruction
// occupies and writes its textual form to out.
//
// A Disassembler must not treat ErrLineBufferFull from out as a failure:
// the text is simply truncated.
type Disassembler interface {
	Decode(win *InstructionWindow, out io.Writer) (int, error)
}

// DecodeResult is the outcome of decoding one instruction.
type DecodeResult struct {
	// Len is the number of bytes consumed, always > 0.
	Len int
	// Text is the textual form of the instruction. It is borrowed from the
	// LineBuffer passed to Decode and is only valid until its next Reset.
	Text string
}

// Decode resets lb and decodes the instruction at the start of win into it.
func Decode(d Disassembler, win *InstructionWindow, lb *LineBuffer) (DecodeResult, error) {
	lb.Reset()
	n, err := d.Decode(win, lb)
	if err != nil && !errors.Is(err, ErrLineBufferFull) {
		return DecodeResult{}, err
	}
	if n <= 0 {
		return DecodeResult{}, fmt.Errorf("%w at %#x", ErrDecode, win.PC)
	}
	return DecodeResult{Len: n, Text: lb.String()}, nil
}

// AssemblyFlavour is the assembly syntax to display.
type AssemblyFlavour int

const (
	// GNUFlavour will display GNU assembly syntax.
	GNUFlavour = AssemblyFlavour(iota)
	// IntelFlavour will display Intel assembly syntax.
	IntelFlavour
	// GoFlavour will display Go assembly syntax.
	GoFlavour
)

func (f AssemblyFlavour) String() string {
	switch f {
	case GNUFlavour:
		return "gnu"
	case IntelFlavour:
		return "intel"
	case GoFlavour:
		return "go"
	}
	return fmt.Sprintf("AssemblyFlavour(%d)", int(f))
}

// ParseAssemblyFlavour parses the name of an assembly syntax.
func ParseAssemblyFlavour(s string) (AssemblyFlavour, error) {
	switch s {
	case "", "gnu", "att":
		return GNUFlavour, nil
	case "intel":
		return IntelFlavour, nil
	case "go":
		return GoFlavour, nil
	}
	return 0, fmt.Errorf("unknown assembly syntax %q (must be one of gnu, intel, go)", s)
}

// archDisassembler decodes instructions using the decoder of an Arch.
type archDisassembler struct {
	arch    *Arch
	flavour AssemblyFlavour
}

// NewDisassembler returns a Disassembler for arch that renders instructions
// in the given flavour.
func NewDisassembler(arch *Arch, flavour AssemblyFlavour) Disassembler {
	return &archDisassembler{arch: arch, flavour: flavour}
}

func (d *archDisassembler) Decode(win *InstructionWindow, out io.Writer) (int, error) {
	n, text, err := d.arch.asmDecode(d.arch.decodeMode, d.flavour, win)
	if err != nil {
		return 0, err
	}
	if _, err := io.WriteString(out, text); err != nil && !errors.Is(err, ErrLineBufferFull) {
		return 0, err
	}
	return n, nil
}
