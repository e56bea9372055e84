package style

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
)

// Narrator prints the provisioning run step by step. On a real
// terminal it speaks through pterm printers; piped or NO_COLOR output
// falls back to plain prefixed lines that stay grep-able.
type Narrator struct {
	out    io.Writer
	styled bool

	section pterm.SectionPrinter
	success pterm.PrefixPrinter
	warning pterm.PrefixPrinter
	failure pterm.PrefixPrinter
	info    pterm.PrefixPrinter
}

// NewNarrator creates a Narrator writing to out, styled when out is a
// capable terminal
func NewNarrator(out *os.File) *Narrator {
	n := &Narrator{out: out, styled: ColorsEnabled(out)}
	n.section = *pterm.DefaultSection.WithWriter(out)
	n.success = *pterm.Success.WithWriter(out)
	n.warning = *pterm.Warning.WithWriter(out)
	n.failure = *pterm.Error.WithWriter(out)
	n.info = *pterm.Info.WithWriter(out)
	return n
}

// NewPlainNarrator creates an unstyled Narrator for arbitrary writers
func NewPlainNarrator(out io.Writer) *Narrator {
	return &Narrator{out: out}
}

// Step announces one numbered step of the run
func (n *Narrator) Step(num, total int, title string) {
	if n.styled {
		n.section.Printfln("[%d/%d] %s", num, total, title)
		return
	}
	fmt.Fprintf(n.out, "\n==> [%d/%d] %s\n", num, total, title)
}

// Success reports a completed step or unit
func (n *Narrator) Success(format string, args ...interface{}) {
	if n.styled {
		n.success.Printfln(format, args...)
		return
	}
	fmt.Fprintf(n.out, "ok: "+format+"\n", args...)
}

// Warn reports a recoverable problem; the run continues
func (n *Narrator) Warn(format string, args ...interface{}) {
	if n.styled {
		n.warning.Printfln(format, args...)
		return
	}
	fmt.Fprintf(n.out, "warning: "+format+"\n", args...)
}

// Fail reports a fatal problem; the caller aborts after this
func (n *Narrator) Fail(format string, args ...interface{}) {
	if n.styled {
		n.failure.Printfln(format, args...)
		return
	}
	fmt.Fprintf(n.out, "error: "+format+"\n", args...)
}

// Skip reports a step that had nothing to do
func (n *Narrator) Skip(format string, args ...interface{}) {
	if n.styled {
		n.info.Printfln("skipped: "+format, args...)
		return
	}
	fmt.Fprintf(n.out, "skipped: "+format+"\n", args...)
}

// Print writes preformatted output such as the run summary block,
// bypassing the prefix printers
func (n *Narrator) Print(s string) {
	fmt.Fprint(n.out, s)
}

// Info reports neutral progress detail
func (n *Narrator) Info(format string, args ...interface{}) {
	if n.styled {
		n.info.Printfln(format, args...)
		return
	}
	fmt.Fprintf(n.out, "info: "+format+"\n", args...)
}
