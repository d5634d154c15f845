package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/hamed0406/jenkinsprobe/internal/domain"
	"github.com/hamed0406/jenkinsprobe/internal/probe"
)

var (
	colorRed    = color.New(color.FgRed).SprintFunc()
	colorGreen  = color.New(color.FgGreen).SprintFunc()
	colorYellow = color.New(color.FgYellow).SprintFunc()
)

// JSON writes the two host groups with sorted keys, sorted hosts and a
// four-space indent. Empty groups render as [].
func JSON(w io.Writer, p domain.Partition) error {
	b, err := json.MarshalIndent(p.Groups(), "", "    ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// Summary writes the per-group host counts.
func Summary(w io.Writer, p domain.Partition) error {
	_, err := fmt.Fprintf(w,
		"Secured instances of Jenkins: %s\nUnsecured instances of jenkins: %s\n",
		colorGreen(p.Protected.Len()),
		colorRed(p.Vulnerable.Len()),
	)
	return err
}

// Progress prints one activity line per resolved probe. Safe for
// concurrent use, so it can be handed to the engine as OnProbe.
type Progress struct {
	mu sync.Mutex
	w  io.Writer
}

func NewProgress(w io.Writer) *Progress { return &Progress{w: w} }

func (p *Progress) Probe(r probe.CheckResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ProbeLine(p.w, r)
}

// ProbeLine writes the activity line for a single probe result.
func ProbeLine(w io.Writer, r probe.CheckResult) {
	target := r.URL
	if target == "" {
		target = r.Host
	}
	fmt.Fprintf(w, "Testing url: %s\n", target)
	if r.Vulnerable() {
		fmt.Fprintf(w, "%s: %s\n", colorRed("unsecure jenkins instance"), target)
		return
	}
	if r.Message != "" {
		fmt.Fprintf(w, "  %s\n", colorYellow(r.Message))
	}
}
