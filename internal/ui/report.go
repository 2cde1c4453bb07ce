package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/nhle/shodjinn/internal/model"
	"github.com/nhle/shodjinn/internal/theme"
)

// Reporter narrates a run. In silent mode only the credential is written.
type Reporter struct {
	out     io.Writer
	verbose bool
}

// NewReporter creates a reporter writing to out. mode must already be
// resolved to model.OutputVerbose or model.OutputSilent.
func NewReporter(out io.Writer, mode string) *Reporter {
	return &Reporter{
		out:     out,
		verbose: mode == model.OutputVerbose,
	}
}

// Verbose reports whether the reporter narrates every step.
func (r *Reporter) Verbose() bool {
	return r.verbose
}

// Info writes a neutral progress line.
func (r *Reporter) Info(msg string) {
	r.line(theme.InfoMarkStyle.Render("*"), msg)
}

// Success writes a completed-step line.
func (r *Reporter) Success(msg string) {
	r.line(theme.SuccessMarkStyle.Render("✓"), msg)
}

// Warn writes a failed or skipped step line.
func (r *Reporter) Warn(msg string) {
	r.line(theme.WarnMarkStyle.Render("!"), msg)
}

// Credential writes the retrieved API key. In silent mode the key is the
// only thing ever written, on a line of its own.
func (r *Reporter) Credential(key string) {
	if !r.verbose {
		fmt.Fprintln(r.out, key)
		return
	}
	r.line(theme.SuccessMarkStyle.Render("✓"), "Your Shodan API key: "+theme.CredentialStyle.Render(key))
}

// Interrupted announces an operator cancellation.
func (r *Reporter) Interrupted() {
	if r.verbose {
		fmt.Fprintln(r.out, "\nInterrupted by user.")
	}
}

func (r *Reporter) line(mark, msg string) {
	if !r.verbose {
		return
	}
	fmt.Fprintf(r.out, "[%s] %s\n", mark, msg)
}

// ResolveMode turns model.OutputAuto into verbose when f is a terminal
// and silent otherwise. Explicit modes are returned unchanged.
func ResolveMode(mode string, f *os.File) string {
	if mode != model.OutputAuto {
		return mode
	}
	if f != nil && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return model.OutputVerbose
	}
	return model.OutputSilent
}
