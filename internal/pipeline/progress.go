package pipeline

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Progress prints one line per pipeline milestone, prefixed with a coloured
// tool tag. Colour is dropped automatically when the output is not a
// terminal.
type Progress struct {
	out   io.Writer
	quiet bool
}

func NewProgress(out io.Writer, quiet bool) *Progress {
	return &Progress{out: out, quiet: quiet}
}

var (
	tagClang     = color.New(color.FgCyan, color.Bold).SprintFunc()
	tagReconcile = color.New(color.FgMagenta, color.Bold).SprintFunc()
	tagOpt       = color.New(color.FgGreen, color.Bold).SprintFunc()
	tagWarn      = color.New(color.FgYellow, color.Bold).SprintFunc()
)

func (p *Progress) Clang(format string, args ...interface{}) {
	p.print("🔧", tagClang("[clang]"), format, args...)
}

func (p *Progress) Reconcile(format string, args ...interface{}) {
	p.print("🔗", tagReconcile("[reconcile]"), format, args...)
}

func (p *Progress) Opt(format string, args ...interface{}) {
	p.print("🚀", tagOpt("[opt]"), format, args...)
}

// Warn is printed even in quiet mode.
func (p *Progress) Warn(format string, args ...interface{}) {
	if p == nil || p.out == nil {
		return
	}
	fmt.Fprintf(p.out, "⚠️  %s %s\n", tagWarn("[warning]"), fmt.Sprintf(format, args...))
}

func (p *Progress) print(icon, tag, format string, args ...interface{}) {
	if p == nil || p.out == nil || p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s %s %s\n", icon, tag, fmt.Sprintf(format, args...))
}
