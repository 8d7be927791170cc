package native

import (
	sys "golang.org/x/sys/unix"
)

func pcFromRegs(regs *sys.PtraceRegs) uint64 {
	return regs.Rip
}
