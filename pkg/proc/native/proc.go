package native

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/go-delve/insdump/pkg/logflags"
	"github.com/go-delve/insdump/pkg/proc"
)

// State is the lifecycle state of a traced process.
type State int

const (
	// StateCreated means the child exists but has not been observed stopped.
	StateCreated State = iota
	// StateStopped means the child is in a ptrace stop and can be inspected.
	StateStopped
	// StateRunning means a resume request was issued and no wait status has
	// been collected yet.
	StateRunning
	// StateExited means the child terminated, normally or by a signal.
	StateExited
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ExecFailureStatus is the exit status reported for a child whose target
// image could not be executed.
const ExecFailureStatus = 127

// LaunchConfig describes the child process to start.
type LaunchConfig struct {
	// Cmd is the program to run followed by its arguments.
	Cmd []string
	// Wd is the working directory of the child, empty for the current one.
	Wd string
	// Arch defaults to proc.NativeArch().
	Arch *proc.Arch

	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File

	// Name prefixes the diagnostic written to Stderr when the target cannot
	// be executed. Defaults to the base name of os.Args[0].
	Name string
}

// ErrNativeBackendDisabled is returned by Launch on platforms without
// ptrace support.
var ErrNativeBackendDisabled = errors.New("native backend not available on this platform")

// ErrProcessExited is returned by operations that need a live child.
var ErrProcessExited = errors.New("process has exited")

// ErrNotStopped is returned when the child must be in a ptrace stop for the
// requested operation but is not.
var ErrNotStopped = errors.New("process is not stopped")

// SpawnError is returned when the child process could not be created.
type SpawnError struct {
	Cmd string
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("could not launch process %s: %v", e.Cmd, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// PtraceError is returned when a ptrace or wait request fails.
type PtraceError struct {
	Op  string
	Pid int
	Err error
}

func (e *PtraceError) Error() string {
	return fmt.Sprintf("%s pid %d: %v", e.Op, e.Pid, e.Err)
}

func (e *PtraceError) Unwrap() error { return e.Err }

// Process represents a single child process traced with ptrace.
type Process struct {
	pid   int
	arch  *proc.Arch
	state State

	exitStatus int
	exitSignal int
	execErr    error

	ptraceChan     chan func()
	ptraceDoneChan chan interface{}

	log logflags.Logger
}

// newProcess returns an initialized Process struct. Before returning,
// it will invoke the method handlePtraceFuncs on a new goroutine.
func newProcess(arch *proc.Arch) *Process {
	p := &Process{
		arch:           arch,
		state:          StateCreated,
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
		log:            logflags.NativeLogger(),
	}
	go p.handlePtraceFuncs()
	return p
}

// Pid returns the process ID of the child.
func (p *Process) Pid() int { return p.pid }

// State returns the current lifecycle state.
func (p *Process) State() State { return p.state }

// Arch returns the architecture of the traced process.
func (p *Process) Arch() *proc.Arch { return p.arch }

// Exited reports whether the child has terminated.
func (p *Process) Exited() bool { return p.state == StateExited }

// ExitStatus returns the exit code of the child, or -1 if it was killed by
// a signal. Only meaningful once Exited returns true.
func (p *Process) ExitStatus() int { return p.exitStatus }

// ExitSignal returns the signal that killed the child, or 0.
func (p *Process) ExitSignal() int { return p.exitSignal }

// ExecErr returns the error that prevented the target image from being
// executed. A Process with a non-nil ExecErr is created already exited.
func (p *Process) ExecErr() error { return p.execErr }

func (p *Process) handlePtraceFuncs() {
	// ptrace(2) requires every request after the tracer relationship is
	// established to come from the same OS thread.
	runtime.LockOSThread()

	for fn := range p.ptraceChan {
		fn()
		p.ptraceDoneChan <- nil
	}
}

func (p *Process) execPtraceFunc(fn func()) {
	p.ptraceChan <- fn
	<-p.ptraceDoneChan
}

func (p *Process) postExit() {
	p.state = StateExited
	if p.ptraceChan != nil {
		close(p.ptraceChan)
		close(p.ptraceDoneChan)
		p.ptraceChan = nil
		p.ptraceDoneChan = nil
	}
}
