package proc_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/go-delve/insdump/pkg/proc"
)

func windowWith(pc uint64, b ...byte) *proc.InstructionWindow {
	win := proc.NewInstructionWindow(proc.AMD64Arch())
	win.Reset(pc)
	copy(win.Bytes, b)
	return win
}

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name string
		win  *proc.InstructionWindow
		res  proc.DecodeResult
		want string
	}{
		{
			name: "short instruction is padded",
			win:  windowWith(0x7f09959621f0, 0x41, 0x89, 0xf8, 0xcc),
			res:  proc.DecodeResult{Len: 3, Text: "mov %edi,%r8d"},
			want: " 7f09959621f0:\t41 89 f8 " + strings.Repeat(" ", 12) + "\tmov %edi,%r8d\n",
		},
		{
			name: "single byte",
			win:  windowWith(0x401000, 0x90),
			res:  proc.DecodeResult{Len: 1, Text: "nop"},
			want: " 401000:\t90 " + strings.Repeat(" ", 18) + "\tnop\n",
		},
		{
			name: "exactly seven bytes",
			win:  windowWith(0x10, 0x48, 0xc7, 0xc0, 0x01, 0x00, 0x00, 0x00),
			res:  proc.DecodeResult{Len: 7, Text: "mov $0x1,%rax"},
			want: " 10:\t48 c7 c0 01 00 00 00 \tmov $0x1,%rax\n",
		},
		{
			name: "long instruction is not padded",
			win:  windowWith(0x20, 0x48, 0xb8, 0x88, 0x77, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11),
			res:  proc.DecodeResult{Len: 10, Text: "movabs $0x1122334455667788,%rax"},
			want: " 20:\t48 b8 88 77 66 55 44 33 22 11 \tmovabs $0x1122334455667788,%rax\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := proc.FormatLine(&buf, tt.win, tt.res); err != nil {
				t.Fatal(err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}
}

type bracketStyle struct{}

func (bracketStyle) Address(s string) string { return "[" + s + "]" }
func (bracketStyle) Text(s string) string    { return "<" + s + ">" }

func TestFormatLineStyled(t *testing.T) {
	var buf bytes.Buffer
	win := windowWith(0xabc, 0xc3)
	if err := proc.FormatLineStyled(&buf, win, proc.DecodeResult{Len: 1, Text: "ret"}, bracketStyle{}); err != nil {
		t.Fatal(err)
	}
	want := " [abc]:\tc3 " + strings.Repeat(" ", 18) + "\t<ret>\n"
	if got := buf.String(); got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}
