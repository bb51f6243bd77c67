package core

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Printer handles all display output for the CLI. Every per-file
// outcome is a single line prefixed with its status tag.
type Printer struct {
	Writer io.Writer
	// Quiet suppresses everything except positives-mode path lines.
	Quiet bool
}

// NewPrinter creates a default Printer writing to stdout.
func NewPrinter() *Printer {
	return &Printer{Writer: os.Stdout}
}

var statusColor = map[Status]func(a ...interface{}) string{
	StatusOK:    color.New(color.FgGreen).SprintFunc(),
	StatusSkip:  color.New(color.FgYellow).SprintFunc(),
	StatusWarn:  color.New(color.FgYellow).SprintFunc(),
	StatusError: color.New(color.FgRed).SprintFunc(),
	StatusInfo:  color.New(color.FgCyan).SprintFunc(),
	StatusAbort: color.New(color.FgRed, color.Bold).SprintFunc(),
}

// Line prints a single status-tagged report line.
func (p *Printer) Line(status Status, format string, args ...interface{}) {
	if p.Quiet {
		return
	}
	tag := "[" + string(status) + "]"
	if c, ok := statusColor[status]; ok {
		tag = c(tag)
	}
	fmt.Fprintf(p.Writer, "%s %s\n", tag, fmt.Sprintf(format, args...))
}

// Result prints a collected per-file result.
func (p *Printer) Result(r Result) {
	switch {
	case r.Err != nil:
		p.Line(r.Status, "%s", r.Err)
	default:
		p.Line(r.Status, "%s", r.Message)
	}
}

// Raw prints an untagged line, bypassing Quiet. Used for positives-mode
// path output meant to be piped into the strip stage.
func (p *Printer) Raw(s string) {
	fmt.Fprintln(p.Writer, s)
}
