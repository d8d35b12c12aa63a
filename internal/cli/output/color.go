package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w writes to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Palette colors the parts of CLI output. The zero Palette leaves text
// unchanged.
type Palette struct {
	Key    func(a ...any) string
	Prompt func(a ...any) string
	Error  func(a ...any) string
}

// NewPalette returns a coloring palette when enabled, else the zero one.
func NewPalette(enabled bool) Palette {
	if !enabled {
		return Palette{}
	}
	return Palette{
		Key:    sprint(color.FgCyan),
		Prompt: sprint(color.FgGreen, color.Bold),
		Error:  sprint(color.FgRed, color.Bold),
	}
}

// PaletteFor colors output only when w is a terminal.
func PaletteFor(w io.Writer) Palette {
	return NewPalette(IsTerminal(w))
}

func sprint(attrs ...color.Attribute) func(a ...any) string {
	c := color.New(attrs...)
	c.EnableColor()
	return c.SprintFunc()
}

func paint(fn func(a ...any) string, s string) string {
	if fn == nil {
		return s
	}
	return fn(s)
}

// KeyText returns s in the key color.
func (p Palette) KeyText(s string) string { return paint(p.Key, s) }

// PromptText returns s in the prompt color.
func (p Palette) PromptText(s string) string { return paint(p.Prompt, s) }

// ErrorText returns s in the error color.
func (p Palette) ErrorText(s string) string { return paint(p.Error, s) }
