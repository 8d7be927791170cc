// Package tracer implements the single-step loop of insdump: it drives a
// stopped target one instruction at a time and prints every instruction
// the target executes.
package tracer

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/go-delve/insdump/pkg/logflags"
	"github.com/go-delve/insdump/pkg/proc"
)

// Target is a process that can be stepped one instruction at a time.
// native.Process implements it.
type Target interface {
	// WaitForInitialStop blocks until the freshly launched target stops
	// before its first instruction, or exits.
	WaitForInitialStop() error
	// Resume arms the stopped target for stepping.
	Resume() error
	// StepOnce executes one instruction and reports whether the target
	// has exited.
	StepOnce() (exited bool, err error)
	// PC returns the address of the next instruction to execute.
	PC() (uint64, error)
	// ReadWindow fills win with the target's memory at addr.
	ReadWindow(win *proc.InstructionWindow, addr uint64) error
	// EntryPoint returns the entry point of the program image.
	EntryPoint() (uint64, error)
	Exited() bool
}

// Config configures a Tracer.
type Config struct {
	// Arch of the target. Required.
	Arch *proc.Arch
	// Disassembler used to decode instructions. Required.
	Disassembler proc.Disassembler
	// LineCapacity bounds the instruction text of a line, defaults to
	// proc.DefaultLineCapacity.
	LineCapacity int
	// Out receives the trace. Required.
	Out io.Writer
	// FlushEachLine flushes Out after every line instead of when the
	// buffer fills, for interactive use.
	FlushEachLine bool
	// Style decorates trace lines, may be nil.
	Style proc.LineStyle
	// DecodeErrors, if not nil, receives a diagnostic for every
	// instruction that could not be decoded. Otherwise such instructions
	// are skipped silently.
	DecodeErrors io.Writer
	// Name prefixes decode diagnostics.
	Name string
	// FromEntry suppresses output until the target reaches the entry point
	// of its program image, skipping the dynamic loader.
	FromEntry bool
}

// Stats summarizes a trace.
type Stats struct {
	// Steps is the number of single-step requests that were issued.
	Steps uint64
	// Lines is the number of trace lines printed.
	Lines uint64
	// DecodeFailures is the number of instructions that were executed but
	// could not be decoded.
	DecodeFailures uint64
}

// Tracer prints every instruction executed by a Target.
type Tracer struct {
	cfg    Config
	target Target
	win    *proc.InstructionWindow
	lb     *proc.LineBuffer
	out    *bufio.Writer
	stats  Stats
	log    logflags.Logger
}

// New returns a Tracer for target.
func New(target Target, cfg Config) (*Tracer, error) {
	if target == nil {
		return nil, errors.New("no target")
	}
	if cfg.Arch == nil {
		return nil, errors.New("no architecture")
	}
	if cfg.Disassembler == nil {
		return nil, errors.New("no disassembler")
	}
	if cfg.Out == nil {
		return nil, errors.New("no output")
	}
	if cfg.LineCapacity <= 0 {
		cfg.LineCapacity = proc.DefaultLineCapacity
	}
	if cfg.Name == "" {
		cfg.Name = "insdump"
	}
	out, ok := cfg.Out.(*bufio.Writer)
	if !ok {
		out = bufio.NewWriter(cfg.Out)
	}
	return &Tracer{
		cfg:    cfg,
		target: target,
		win:    proc.NewInstructionWindow(cfg.Arch),
		lb:     proc.NewLineBuffer(cfg.LineCapacity),
		out:    out,
		log:    logflags.TracerLogger(),
	}, nil
}

// Run traces the target until it exits. The target must have just been
// launched. For every step one line is printed describing the instruction
// that step executes; the first line is the target's first instruction.
// Instructions that cannot be decoded produce no line.
//
// Run returns a nil error when the target exits, whatever its exit status.
func (t *Tracer) Run() (stats Stats, err error) {
	defer func() {
		if ferr := t.out.Flush(); err == nil && ferr != nil {
			err = fmt.Errorf("writing trace: %w", ferr)
		}
		stats = t.stats
		t.log.WithFields(logflags.Fields{
			"steps":          stats.Steps,
			"lines":          stats.Lines,
			"decodeFailures": stats.DecodeFailures,
		}).Debug("trace finished")
	}()

	if err := t.target.WaitForInitialStop(); err != nil {
		return t.stats, err
	}
	if t.target.Exited() {
		return t.stats, nil
	}
	if err := t.target.Resume(); err != nil {
		return t.stats, err
	}

	emitting := true
	var entry uint64
	if t.cfg.FromEntry {
		entry, err = t.target.EntryPoint()
		if err != nil {
			t.log.Warnf("could not determine entry point, tracing from the first instruction: %v", err)
		} else {
			emitting = false
			t.log.Debugf("suppressing output until %#x", entry)
		}
	}

	for {
		pc, err := t.target.PC()
		if err != nil {
			return t.stats, err
		}
		if !emitting && pc == entry {
			emitting = true
		}
		if emitting {
			if err := t.emit(pc); err != nil {
				return t.stats, err
			}
		}
		exited, err := t.target.StepOnce()
		if err != nil {
			return t.stats, err
		}
		t.stats.Steps++
		if exited {
			return t.stats, nil
		}
	}
}

// emit prints the instruction at pc.
func (t *Tracer) emit(pc uint64) error {
	if err := t.target.ReadWindow(t.win, pc); err != nil {
		return err
	}
	res, err := proc.Decode(t.cfg.Disassembler, t.win, t.lb)
	if err != nil {
		if !errors.Is(err, proc.ErrDecode) {
			return err
		}
		t.stats.DecodeFailures++
		if t.cfg.DecodeErrors != nil {
			fmt.Fprintf(t.cfg.DecodeErrors, "%s: %#x: cannot decode % x: %v\n", t.cfg.Name, pc, t.win.Bytes, err)
		}
		return nil
	}
	if err := proc.FormatLineStyled(t.out, t.win, res, t.cfg.Style); err != nil {
		return err
	}
	t.stats.Lines++
	if t.cfg.FlushEachLine {
		if err := t.out.Flush(); err != nil {
			return fmt.Errorf("writing trace: %w", err)
		}
	}
	return nil
}
