package proc_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-delve/insdump/pkg/proc"
)

func TestLineBufferFits(t *testing.T) {
	lb := proc.NewLineBuffer(16)
	for _, s := range []string{"mov", "    ", "%rax,%rbx"} {
		if _, err := lb.WriteString(s); err != nil {
			t.Fatalf("WriteString(%q): %v", s, err)
		}
	}
	if got := lb.String(); got != "mov    %rax,%rbx" {
		t.Errorf("got %q", got)
	}
	if lb.Truncated() {
		t.Error("buffer should not be truncated")
	}
}

func TestLineBufferOverflow(t *testing.T) {
	const capacity = 32
	lb := proc.NewLineBuffer(capacity)
	lb.WriteString("vpshufb ")
	_, err := lb.WriteString(strings.Repeat("%ymm1,", 10))
	if !errors.Is(err, proc.ErrLineBufferFull) {
		t.Fatalf("expected ErrLineBufferFull, got %v", err)
	}
	got := lb.String()
	if len(got) != capacity {
		t.Errorf("len = %d, want %d (%q)", len(got), capacity, got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("%q does not end with the truncation marker", got)
	}
	if !strings.HasPrefix(got, "vpshufb %ymm1,") {
		t.Errorf("lost the head of the text: %q", got)
	}

	// Further writes fail and leave the content alone.
	n, err := lb.WriteString("x")
	if n != 0 || !errors.Is(err, proc.ErrLineBufferFull) {
		t.Errorf("write to full buffer = %d, %v", n, err)
	}
	if lb.String() != got {
		t.Errorf("content changed: %q", lb.String())
	}
	if !lb.Truncated() {
		t.Error("Truncated() = false")
	}
}

func TestLineBufferExactFitThenOverflow(t *testing.T) {
	lb := proc.NewLineBuffer(8)
	if _, err := lb.WriteString("12345678"); err != nil {
		t.Fatal(err)
	}
	if lb.Truncated() {
		t.Fatal("an exact fit is not a truncation")
	}
	if _, err := lb.WriteString("9"); !errors.Is(err, proc.ErrLineBufferFull) {
		t.Fatalf("got %v", err)
	}
	if got := lb.String(); got != "12345..." {
		t.Errorf("got %q", got)
	}
}

func TestLineBufferReset(t *testing.T) {
	lb := proc.NewLineBuffer(8)
	lb.WriteString("too long for this")
	lb.Reset()
	if lb.Len() != 0 || lb.Truncated() {
		t.Fatalf("Reset left %q", lb.String())
	}
	lb.WriteString("ret")
	if lb.String() != "ret" {
		t.Errorf("got %q", lb.String())
	}
}

func TestLineBufferMinimumCapacity(t *testing.T) {
	lb := proc.NewLineBuffer(1)
	if lb.Cap() < 4 {
		t.Fatalf("Cap() = %d", lb.Cap())
	}
	lb.WriteString("abcdefgh")
	if got := lb.String(); got != "a..." {
		t.Errorf("got %q", got)
	}
}
