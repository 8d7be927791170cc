//go:build amd64 || 386

package native

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/go-delve/insdump/pkg/proc"
	"github.com/go-delve/insdump/pkg/proc/linutil"
)

// Launch creates a new child process that is stopped before the first
// instruction of the target image runs. First entry in cfg.Cmd is the
// program to run, and then rest are the arguments to be supplied to that
// process.
//
// If the target cannot be executed a diagnostic is written to the child's
// stderr and the returned Process is already exited with
// ExecFailureStatus. Any other failure to create the child is returned as
// a *SpawnError.
func Launch(cfg LaunchConfig) (*Process, error) {
	if len(cfg.Cmd) == 0 || cfg.Cmd[0] == "" {
		return nil, &SpawnError{Err: errors.New("no command")}
	}
	arch := cfg.Arch
	if arch == nil {
		var err error
		arch, err = proc.NativeArch()
		if err != nil {
			return nil, &SpawnError{Cmd: cfg.Cmd[0], Err: err}
		}
	}
	if cfg.Wd != "" {
		fi, err := os.Stat(cfg.Wd)
		if err != nil {
			return nil, &SpawnError{Cmd: cfg.Cmd[0], Err: err}
		}
		if !fi.IsDir() {
			return nil, &SpawnError{Cmd: cfg.Cmd[0], Err: fmt.Errorf("%s: not a directory", cfg.Wd)}
		}
	}
	stdin, stdout, stderr := cfg.Stdin, cfg.Stdout, cfg.Stderr
	if stdin == nil {
		stdin = os.Stdin
	}
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	var (
		process *exec.Cmd
		err     error
	)
	p := newProcess(arch)
	p.execPtraceFunc(func() {
		process = exec.Command(cfg.Cmd[0])
		process.Args = cfg.Cmd
		process.Stdin = stdin
		process.Stdout = stdout
		process.Stderr = stderr
		process.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
		process.Dir = cfg.Wd
		err = process.Start()
	})
	if err != nil {
		p.postExit()
		cause, ok := execFailure(err)
		if !ok {
			return nil, &SpawnError{Cmd: cfg.Cmd[0], Err: err}
		}
		name := cfg.Name
		if name == "" {
			name = filepath.Base(os.Args[0])
		}
		fmt.Fprintf(stderr, "%s: exec %s: %v\n", name, cfg.Cmd[0], cause)
		p.execErr = err
		p.exitStatus = ExecFailureStatus
		p.log.Debugf("exec of %s failed: %v", cfg.Cmd[0], err)
		return p, nil
	}
	p.pid = process.Process.Pid
	// The child is reaped with wait4 from here on.
	if err := process.Process.Release(); err != nil {
		p.log.WithField("pid", p.pid).Debugf("could not release process handle: %v", err)
	}
	p.log.WithField("pid", p.pid).Debugf("launched %q", cfg.Cmd)
	return p, nil
}

// execFailure reports whether err means the target image could not be
// executed, as opposed to the child not being created at all.
func execFailure(err error) (error, bool) {
	var ee *exec.Error
	if errors.As(err, &ee) {
		return ee.Err, true
	}
	var pe *os.PathError
	if errors.As(err, &pe) {
		for _, errno := range []syscall.Errno{sys.ENOENT, sys.EACCES, sys.ENOEXEC, sys.ENOTDIR, sys.EISDIR, sys.ELOOP, sys.ENAMETOOLONG, sys.ETXTBSY, sys.E2BIG} {
			if errors.Is(pe.Err, errno) {
				return pe.Err, true
			}
		}
	}
	return nil, false
}

// WaitForInitialStop blocks until the child reports the stop that follows
// a successful execve. If the child terminates instead it becomes exited.
func (p *Process) WaitForInitialStop() error {
	switch p.state {
	case StateExited:
		return nil
	case StateCreated:
	default:
		return fmt.Errorf("initial stop: process already %v", p.state)
	}
	ws, err := p.wait()
	if err != nil {
		return err
	}
	if p.setStatus(ws) {
		return nil
	}
	if sig := ws.StopSignal(); sig != sys.SIGTRAP {
		p.log.WithField("pid", p.pid).Warnf("initial stop with %v", sig)
	}
	return nil
}

// Resume arms a stopped child for tracing: the child is killed if the
// tracer goes away. The child stays stopped until the first StepOnce.
func (p *Process) Resume() error {
	switch p.state {
	case StateExited:
		return nil
	case StateStopped:
	default:
		return ErrNotStopped
	}
	var err error
	p.execPtraceFunc(func() { err = ptraceSetOptions(p.pid, sys.PTRACE_O_EXITKILL) })
	if err != nil {
		return &PtraceError{Op: "setoptions", Pid: p.pid, Err: err}
	}
	return nil
}

// StepOnce executes exactly one instruction of the child and waits for it
// to stop again. It returns true once the child has exited or was killed.
//
// Signals the child receives while being stepped, including a SIGTRAP sent
// with kill, are delivered to it with an immediate new step request, so the
// instruction at which the signal arrived is not reported twice. Job
// control stops are absorbed.
func (p *Process) StepOnce() (exited bool, err error) {
	switch p.state {
	case StateExited:
		return true, nil
	case StateStopped:
	default:
		return false, ErrNotStopped
	}
	sig := 0
	for {
		p.execPtraceFunc(func() { err = ptraceSingleStep(p.pid, sig) })
		// ESRCH means the child is gone; wait collects how it died.
		if err != nil && !errors.Is(err, sys.ESRCH) {
			return false, &PtraceError{Op: "singlestep", Pid: p.pid, Err: err}
		}
		p.state = StateRunning
		var ws sys.WaitStatus
		for p.state == StateRunning {
			ws, err = p.wait()
			if err != nil {
				return false, err
			}
			if p.setStatus(ws) {
				return true, nil
			}
		}
		switch s := ws.StopSignal(); s {
		case sys.SIGTRAP:
			user, err := p.userTrap()
			if err != nil {
				return false, err
			}
			if !user {
				return false, nil
			}
			p.log.WithField("pid", p.pid).Debugf("delivering %v", s)
			sig = int(s)
		case sys.SIGSTOP, sys.SIGTSTP, sys.SIGTTIN, sys.SIGTTOU:
			sig = 0
		default:
			p.log.WithField("pid", p.pid).Debugf("delivering %v", s)
			sig = int(s)
		}
	}
}

// userTrap reports whether the current SIGTRAP stop was caused by a signal
// sent from user space rather than by the kernel completing the step.
func (p *Process) userTrap() (bool, error) {
	var (
		code int32
		err  error
	)
	p.execPtraceFunc(func() { _, code, err = ptraceGetSiginfo(p.pid) })
	if err != nil {
		return false, &PtraceError{Op: "getsiginfo", Pid: p.pid, Err: err}
	}
	// si_code is positive only for signals generated by the kernel.
	return code <= 0, nil
}

// PC returns the program counter of the stopped child.
func (p *Process) PC() (uint64, error) {
	if err := p.checkStopped(); err != nil {
		return 0, err
	}
	var (
		pc  uint64
		err error
	)
	p.execPtraceFunc(func() { pc, err = ptraceGetPC(p.pid) })
	if err != nil {
		return 0, &PtraceError{Op: "getregs", Pid: p.pid, Err: err}
	}
	return pc, nil
}

// ReadWindow fills win with the child's memory starting at addr, one
// machine word at a time. Only a failure to read the first word is an
// error; if a later word is unreadable the rest of the window is left
// zeroed.
func (p *Process) ReadWindow(win *proc.InstructionWindow, addr uint64) error {
	if err := p.checkStopped(); err != nil {
		return err
	}
	win.Reset(addr)
	var err error
	p.execPtraceFunc(func() {
		for i := 0; i < win.Words(); i++ {
			word, perr := ptracePeekWord(p.pid, uintptr(win.WordAddr(i)))
			if perr != nil {
				if i == 0 {
					err = perr
				} else {
					p.log.WithField("pid", p.pid).Debugf("window at %#x truncated after %d words: %v", addr, i, perr)
				}
				return
			}
			win.PutWord(i, word)
		}
	})
	if err != nil {
		return &PtraceError{Op: "peekdata", Pid: p.pid, Err: err}
	}
	return nil
}

// EntryPoint returns the entry point of the executable image, as reported
// by the kernel in the auxiliary vector.
func (p *Process) EntryPoint() (uint64, error) {
	if p.state == StateExited {
		return 0, ErrProcessExited
	}
	return linutil.EntryPoint(p.pid, p.arch.PtrSize())
}

// Kill terminates the child and reaps it.
func (p *Process) Kill() error {
	if p.state == StateExited {
		return nil
	}
	if err := sys.Kill(p.pid, sys.SIGKILL); err != nil && !errors.Is(err, sys.ESRCH) {
		return err
	}
	for {
		ws, err := p.wait()
		if err != nil {
			p.postExit()
			return err
		}
		if p.setStatus(ws) {
			return nil
		}
	}
}

func (p *Process) checkStopped() error {
	switch p.state {
	case StateStopped:
		return nil
	case StateExited:
		return ErrProcessExited
	}
	return ErrNotStopped
}

// wait collects the next status change of the child, retrying on EINTR.
func (p *Process) wait() (sys.WaitStatus, error) {
	var ws sys.WaitStatus
	for {
		wpid, err := sys.Wait4(p.pid, &ws, sys.WALL, nil)
		if errors.Is(err, sys.EINTR) {
			continue
		}
		if err != nil {
			return ws, &PtraceError{Op: "wait", Pid: p.pid, Err: err}
		}
		if wpid == p.pid {
			return ws, nil
		}
	}
}

// setStatus updates the state from a wait status and reports whether the
// child has terminated.
func (p *Process) setStatus(ws sys.WaitStatus) bool {
	switch {
	case ws.Exited():
		p.exitStatus = ws.ExitStatus()
		p.postExit()
		p.log.WithField("pid", p.pid).Debugf("exited with status %d", p.exitStatus)
		return true
	case ws.Signaled():
		p.exitStatus = -1
		p.exitSignal = int(ws.Signal())
		p.postExit()
		p.log.WithField("pid", p.pid).Debugf("killed by %v", ws.Signal())
		return true
	case ws.Stopped():
		p.state = StateStopped
	}
	return false
}
