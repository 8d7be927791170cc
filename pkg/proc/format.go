package proc

import (
	"bufio"
	"io"
	"strconv"
)

// minByteColumns is the number of instruction bytes the raw byte column is
// padded to, so that the text of short instructions lines up.
const minByteColumns = 7

const hexdigits = "0123456789abcdef"

// LineStyle decorates the address and the instruction text of a trace line,
// for example with terminal color escapes.
type LineStyle interface {
	Address(s string) string
	Text(s string) string
}

// FormatLine writes the trace line for the instruction decoded from win:
//
//	7f09959621f0:	41 89 f8             	mov    %edi,%r8d
//
// The address is in hex without padding, followed by res.Len raw bytes and
// the instruction text. The byte column is at least minByteColumns bytes
// wide; longer instructions simply widen it.
func FormatLine(w io.Writer, win *InstructionWindow, res DecodeResult) error {
	return FormatLineStyled(w, win, res, nil)
}

// FormatLineStyled is like FormatLine but passes the address and text
// through style, if it is not nil.
func FormatLineStyled(w io.Writer, win *InstructionWindow, res DecodeResult, style LineStyle) error {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}

	addr := strconv.FormatUint(win.PC, 16)
	text := res.Text
	if style != nil {
		addr = style.Address(addr)
		text = style.Text(text)
	}

	bw.WriteByte(' ')
	bw.WriteString(addr)
	bw.WriteString(":\t")
	n := res.Len
	if n > len(win.Bytes) {
		n = len(win.Bytes)
	}
	for _, b := range win.Bytes[:n] {
		bw.WriteByte(hexdigits[b>>4])
		bw.WriteByte(hexdigits[b&0xf])
		bw.WriteByte(' ')
	}
	for i := n; i < minByteColumns; i++ {
		bw.WriteString("   ")
	}
	bw.WriteByte('\t')
	bw.WriteString(text)
	bw.WriteByte('\n')

	if !ok {
		return bw.Flush()
	}
	return nil
}
