package main

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// painter colors text only when w is a terminal.
type painter struct {
	enabled bool
}

func newPainter(w io.Writer) painter {
	return painter{enabled: isTerminal(w) && !color.NoColor}
}

func (p painter) paint(attr color.Attribute, s string) string {
	if !p.enabled {
		return s
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(s)
}

func (p painter) ok(s string) string    { return p.paint(color.FgGreen, s) }
func (p painter) warn(s string) string  { return p.paint(color.FgYellow, s) }
func (p painter) fail(s string) string  { return p.paint(color.FgRed, s) }
func (p painter) title(s string) string { return p.paint(color.FgCyan, s) }
