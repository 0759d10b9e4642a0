// Package progress reports batch generation progress on stderr.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter provides progress feedback while a batch of prompts is generated.
type Reporter interface {
	Start(total int)
	Update(current int, message string)
	Finish(failed int)
}

// NewReporter returns a TerminalReporter if running in an interactive terminal,
// or a CIReporter if the CI environment variable is set.
func NewReporter() Reporter {
	if os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "" {
		return &CIReporter{Out: os.Stderr}
	}
	return &TerminalReporter{}
}

// TerminalReporter displays a progress bar in the terminal.
type TerminalReporter struct {
	bar *progressbar.ProgressBar
}

func (r *TerminalReporter) Start(total int) {
	r.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Generating figures"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (r *TerminalReporter) Update(current int, message string) {
	if r.bar != nil {
		r.bar.Describe(message)
		_ = r.bar.Set(current)
	}
}

func (r *TerminalReporter) Finish(failed int) {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d prompt(s) failed\n", failed)
	}
}

// CIReporter prints line-by-line progress suitable for CI logs.
type CIReporter struct {
	Out   io.Writer
	total int
}

func (r *CIReporter) Start(total int) {
	r.total = total
	fmt.Fprintf(r.Out, "Starting batch generation for %d prompts\n", total)
}

func (r *CIReporter) Update(current int, message string) {
	fmt.Fprintf(r.Out, "[%d/%d] %s\n", current, r.total, message)
}

func (r *CIReporter) Finish(failed int) {
	if failed > 0 {
		fmt.Fprintf(r.Out, "Batch generation complete, %d failed\n", failed)
		return
	}
	fmt.Fprintln(r.Out, "Batch generation complete")
}
