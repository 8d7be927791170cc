package proc

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

func x86AsmDecode(mode int, flavour AssemblyFlavour, win *InstructionWindow) (int, string, error) {
	inst, err := x86asm.Decode(win.Bytes, mode)
	if err != nil {
		return 0, "", fmt.Errorf("%w at %#x: %v", ErrDecode, win.PC, err)
	}

	// The syntax printers resolve PC relative operands to absolute
	// addresses when given a non-zero pc.
	var text string
	switch flavour {
	case GNUFlavour:
		text = x86asm.GNUSyntax(inst, win.PC, nil)
	case GoFlavour:
		text = x86asm.GoSyntax(inst, win.PC, nil)
	case IntelFlavour:
		fallthrough
	default:
		text = x86asm.IntelSyntax(inst, win.PC, nil)
	}
	return inst.Len, text, nil
}
