//go:build !linux || !(amd64 || 386)

package native

import (
	"github.com/go-delve/insdump/pkg/proc"
)

// Launch returns ErrNativeBackendDisabled.
func Launch(cfg LaunchConfig) (*Process, error) {
	cmd := ""
	if len(cfg.Cmd) > 0 {
		cmd = cfg.Cmd[0]
	}
	return nil, &SpawnError{Cmd: cmd, Err: ErrNativeBackendDisabled}
}

func (p *Process) WaitForInitialStop() error {
	panic(ErrNativeBackendDisabled)
}

func (p *Process) Resume() error {
	panic(ErrNativeBackendDisabled)
}

func (p *Process) StepOnce() (bool, error) {
	panic(ErrNativeBackendDisabled)
}

func (p *Process) PC() (uint64, error) {
	panic(ErrNativeBackendDisabled)
}

func (p *Process) ReadWindow(win *proc.InstructionWindow, addr uint64) error {
	panic(ErrNativeBackendDisabled)
}

func (p *Process) EntryPoint() (uint64, error) {
	panic(ErrNativeBackendDisabled)
}

func (p *Process) Kill() error {
	panic(ErrNativeBackendDisabled)
}
