//go:build amd64 || 386

package native

import (
	"syscall"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP, delivering sig
// (0 for none) to the tracee.
func ptraceSingleStep(pid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(pid), uintptr(0), uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptraceSetOptions executes ptrace PTRACE_SETOPTIONS.
func ptraceSetOptions(pid, options int) error {
	return sys.PtraceSetOptions(pid, options)
}

// ptracePeekWord reads one machine word of the tracee's memory at addr.
// The raw syscall is used so that a word whose value happens to be -1 is
// not mistaken for an error.
func ptracePeekWord(pid int, addr uintptr) (uint64, error) {
	var word uintptr
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_PEEKDATA, uintptr(pid), addr, uintptr(unsafe.Pointer(&word)), 0, 0)
	if e1 != syscall.Errno(0) {
		return 0, e1
	}
	return uint64(word), nil
}

type ptraceSiginfo struct {
	signo int32
	errno int32
	code  int32
	pad   [128]byte // siginfo_t is 128 bytes on linux, the rest is not needed
}

// ptraceGetSiginfo returns the signal number and si_code of the signal that
// caused the current signal-delivery stop.
func ptraceGetSiginfo(pid int) (signo, code int32, err error) {
	var siginfo ptraceSiginfo
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, sys.PTRACE_GETSIGINFO, uintptr(pid), 0, uintptr(unsafe.Pointer(&siginfo)), 0, 0)
	if e1 != syscall.Errno(0) {
		return 0, 0, e1
	}
	return siginfo.signo, siginfo.code, nil
}

// ptraceGetPC reads the tracee's program counter with PTRACE_GETREGS.
func ptraceGetPC(pid int) (uint64, error) {
	var regs sys.PtraceRegs
	if err := sys.PtraceGetRegs(pid, &regs); err != nil {
		return 0, err
	}
	return pcFromRegs(&regs), nil
}
