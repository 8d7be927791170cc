// Package colorize highlights trace lines for display on a terminal.
package colorize

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/go-delve/insdump/pkg/proc"
)

// Mode selects when output is colorized.
type Mode int

const (
	// Auto colorizes output written to a terminal.
	Auto Mode = iota
	// Always colorizes output.
	Always
	// Never colorizes output.
	Never
)

func (m Mode) String() string {
	switch m {
	case Auto:
		return "auto"
	case Always:
		return "always"
	case Never:
		return "never"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the value of the --color flag.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return Auto, nil
	case "always", "on", "true":
		return Always, nil
	case "never", "off", "false":
		return Never, nil
	}
	return Auto, fmt.Errorf("invalid color mode %q (must be one of auto, always, never)", s)
}

// Enabled reports whether output written to f should be colorized.
func Enabled(mode Mode, f *os.File) bool {
	switch mode {
	case Always:
		return true
	case Never:
		return false
	}
	if f == nil || os.Getenv("NO_COLOR") != "" || strings.ToLower(os.Getenv("TERM")) == "dumb" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Writer returns a writer for f that understands ANSI escapes on every
// platform.
func Writer(f *os.File) io.Writer {
	return colorable.NewColorable(f)
}

// DefaultStyle is the chroma style used for instruction text.
const DefaultStyle = "monokai"

const (
	addressEscape = "\033[38;5;245m"
	resetEscape   = "\033[0m"
)

// Highlighter colors the address and the instruction text of trace lines.
// It implements proc.LineStyle.
type Highlighter struct {
	lexer     chroma.Lexer
	style     *chroma.Style
	formatter chroma.Formatter
	sb        strings.Builder
}

var _ proc.LineStyle = (*Highlighter)(nil)

// NewHighlighter returns a Highlighter for instructions printed in the
// given assembly syntax, using the named chroma style.
func NewHighlighter(flavour proc.AssemblyFlavour, styleName string) *Highlighter {
	var candidates []string
	switch flavour {
	case proc.IntelFlavour:
		candidates = []string{"nasm", "gas"}
	default:
		candidates = []string{"gas", "nasm"}
	}
	var lexer chroma.Lexer
	for _, name := range candidates {
		if lexer = lexers.Get(name); lexer != nil {
			break
		}
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	return &Highlighter{
		lexer:     chroma.Coalesce(lexer),
		style:     style,
		formatter: formatter,
	}
}

// Address dims the address column.
func (h *Highlighter) Address(s string) string {
	return addressEscape + s + resetEscape
}

// Text highlights the instruction text. If highlighting fails the text is
// returned unchanged.
func (h *Highlighter) Text(s string) string {
	iterator, err := h.lexer.Tokenise(nil, s)
	if err != nil {
		return s
	}
	h.sb.Reset()
	if err := h.formatter.Format(&h.sb, h.style, iterator); err != nil {
		return s
	}
	// lexers terminate their input with a newline, the line formatter
	// adds its own
	return strings.ReplaceAll(h.sb.String(), "\n", "")
}
