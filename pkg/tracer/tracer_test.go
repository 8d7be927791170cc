package tracer_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/go-delve/insdump/pkg/proc"
	"github.com/go-delve/insdump/pkg/tracer"
)

const base = 0x1000

// program is a tiny amd64 code fragment:
//
//	1000: nop
//	1001: mov %rsp,%rbp
//	1004: (invalid in 64-bit mode)
//	1005: nop
var program = []byte{0x90, 0x48, 0x89, 0xe5, 0x06, 0x90}

// fakeTarget replays a fixed sequence of program counters over program.
type fakeTarget struct {
	trace []uint64
	pos   int

	exitedAtLaunch bool
	exited         bool
	resumed        bool

	entry    uint64
	entryErr error
	pcErr    error
	readErr  error
	stepErr  error
}

func (f *fakeTarget) WaitForInitialStop() error {
	f.exited = f.exitedAtLaunch
	return nil
}

func (f *fakeTarget) Resume() error {
	f.resumed = true
	return nil
}

func (f *fakeTarget) StepOnce() (bool, error) {
	if !f.resumed {
		return false, errors.New("step before resume")
	}
	if f.stepErr != nil {
		return false, f.stepErr
	}
	f.pos++
	if f.pos >= len(f.trace) {
		f.exited = true
		return true, nil
	}
	return false, nil
}

func (f *fakeTarget) PC() (uint64, error) {
	if f.pcErr != nil {
		return 0, f.pcErr
	}
	return f.trace[f.pos], nil
}

func (f *fakeTarget) ReadWindow(win *proc.InstructionWindow, addr uint64) error {
	if f.readErr != nil {
		return f.readErr
	}
	win.Reset(addr)
	copy(win.Bytes, program[addr-base:])
	return nil
}

func (f *fakeTarget) EntryPoint() (uint64, error) {
	return f.entry, f.entryErr
}

func (f *fakeTarget) Exited() bool { return f.exited }

func newTracer(t *testing.T, target tracer.Target, out *bytes.Buffer, mod func(*tracer.Config)) *tracer.Tracer {
	t.Helper()
	arch := proc.AMD64Arch()
	cfg := tracer.Config{
		Arch:         arch,
		Disassembler: proc.NewDisassembler(arch, proc.GNUFlavour),
		Out:          out,
	}
	if mod != nil {
		mod(&cfg)
	}
	tr, err := tracer.New(target, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

// lines splits s into lines, each keeping its newline.
func lines(s string) []string {
	l := strings.SplitAfter(s, "\n")
	if len(l) > 0 && l[len(l)-1] == "" {
		l = l[:len(l)-1]
	}
	return l
}

func TestRunEmitsOneLinePerStep(t *testing.T) {
	target := &fakeTarget{trace: []uint64{0x1000, 0x1001, 0x1005}}
	var out bytes.Buffer
	stats, err := newTracer(t, target, &out, nil).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Steps != 3 || stats.Lines != 3 || stats.DecodeFailures != 0 {
		t.Errorf("stats: %+v", stats)
	}
	got := lines(out.String())
	if len(got) != 3 {
		t.Fatalf("got %d lines:\n%s", len(got), out.String())
	}
	nop := "\t90 " + strings.Repeat(" ", 18) + "\tnop\n"
	if want := " 1000:" + nop; got[0] != want {
		t.Errorf("first line: got %q, want %q", got[0], want)
	}
	if want := " 1001:\t48 89 e5 " + strings.Repeat(" ", 12) + "\tmov"; !strings.HasPrefix(got[1], want) {
		t.Errorf("second line: %q", got[1])
	}
	if want := " 1005:" + nop; got[2] != want {
		t.Errorf("third line: got %q, want %q", got[2], want)
	}
}

func TestRunFirstLineIsInitialPC(t *testing.T) {
	target := &fakeTarget{trace: []uint64{0x1001, 0x1000}}
	var out bytes.Buffer
	if _, err := newTracer(t, target, &out, nil).Run(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), " 1001:\t") {
		t.Errorf("output does not start at initial pc:\n%s", out.String())
	}
}

func TestRunSkipsUndecodable(t *testing.T) {
	for _, diag := range []bool{false, true} {
		target := &fakeTarget{trace: []uint64{0x1000, 0x1004, 0x1005}}
		var out, errs bytes.Buffer
		tr := newTracer(t, target, &out, func(cfg *tracer.Config) {
			if diag {
				cfg.DecodeErrors = &errs
			}
		})
		stats, err := tr.Run()
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if stats.Steps != 3 || stats.Lines != 2 || stats.DecodeFailures != 1 {
			t.Errorf("stats: %+v", stats)
		}
		if stats.Lines > stats.Steps {
			t.Errorf("more lines than steps: %+v", stats)
		}
		if strings.Contains(out.String(), " 1004:") {
			t.Errorf("undecodable instruction printed:\n%s", out.String())
		}
		if !diag {
			if errs.Len() != 0 {
				t.Errorf("unexpected diagnostics: %q", errs.String())
			}
			continue
		}
		if !strings.HasPrefix(errs.String(), "insdump: 0x1004: cannot decode 06 90 00") {
			t.Errorf("diagnostic: %q", errs.String())
		}
	}
}

func TestRunExitedAtLaunch(t *testing.T) {
	target := &fakeTarget{exitedAtLaunch: true}
	var out bytes.Buffer
	stats, err := newTracer(t, target, &out, nil).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats != (tracer.Stats{}) || out.Len() != 0 {
		t.Errorf("stats %+v output %q", stats, out.String())
	}
	if target.resumed {
		t.Errorf("exited target was resumed")
	}
}

func TestRunFromEntry(t *testing.T) {
	target := &fakeTarget{trace: []uint64{0x1000, 0x1001, 0x1005, 0x1000}, entry: 0x1005}
	var out bytes.Buffer
	stats, err := newTracer(t, target, &out, func(cfg *tracer.Config) { cfg.FromEntry = true }).Run()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Steps != 4 || stats.Lines != 2 {
		t.Errorf("stats: %+v", stats)
	}
	got := lines(out.String())
	if len(got) != 2 || !strings.HasPrefix(got[0], " 1005:") || !strings.HasPrefix(got[1], " 1000:") {
		t.Errorf("output:\n%s", out.String())
	}

	// without an entry point the whole trace is printed
	target = &fakeTarget{trace: []uint64{0x1000, 0x1001}, entryErr: errors.New("no auxv")}
	out.Reset()
	stats, err = newTracer(t, target, &out, func(cfg *tracer.Config) { cfg.FromEntry = true }).Run()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Lines != 2 {
		t.Errorf("stats: %+v", stats)
	}
}

func TestRunTraceFailures(t *testing.T) {
	failure := errors.New("boom")
	for _, tc := range []struct {
		name   string
		target *fakeTarget
	}{
		{"pc", &fakeTarget{trace: []uint64{0x1000}, pcErr: failure}},
		{"read", &fakeTarget{trace: []uint64{0x1000}, readErr: failure}},
		{"step", &fakeTarget{trace: []uint64{0x1000, 0x1001}, stepErr: failure}},
	} {
		var out bytes.Buffer
		_, err := newTracer(t, tc.target, &out, nil).Run()
		if !errors.Is(err, failure) {
			t.Errorf("%s: got %v, want %v", tc.name, err, failure)
		}
	}
}

func TestRunLineCapacity(t *testing.T) {
	target := &fakeTarget{trace: []uint64{0x1001}}
	var out bytes.Buffer
	if _, err := newTracer(t, target, &out, func(cfg *tracer.Config) { cfg.LineCapacity = 5 }).Run(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(out.String(), "\tmo...\n") {
		t.Errorf("output not truncated: %q", out.String())
	}
}

type upperStyle struct{}

func (upperStyle) Address(s string) string { return "<" + s + ">" }
func (upperStyle) Text(s string) string    { return strings.ToUpper(s) }

func TestRunStyle(t *testing.T) {
	target := &fakeTarget{trace: []uint64{0x1000}}
	var out bytes.Buffer
	if _, err := newTracer(t, target, &out, func(cfg *tracer.Config) { cfg.Style = upperStyle{} }).Run(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), " <1000>:\t90 ") || !strings.HasSuffix(out.String(), "\tNOP\n") {
		t.Errorf("styled output: %q", out.String())
	}
}

func TestNewValidates(t *testing.T) {
	arch := proc.AMD64Arch()
	d := proc.NewDisassembler(arch, proc.GNUFlavour)
	var out bytes.Buffer
	for _, cfg := range []tracer.Config{
		{Disassembler: d, Out: &out},
		{Arch: arch, Out: &out},
		{Arch: arch, Disassembler: d},
	} {
		if _, err := tracer.New(&fakeTarget{}, cfg); err == nil {
			t.Errorf("New(%+v) succeeded", cfg)
		}
	}
	if _, err := tracer.New(nil, tracer.Config{Arch: arch, Disassembler: d, Out: &out}); err == nil {
		t.Errorf("New without target succeeded")
	}
}
