// Package reporter contains the ports.Reporter adapters: a console printer
// and an issue tracker filer with report deduplication.
package reporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

var _ ports.Reporter = (*ConsoleReporter)(nil)

// ConsoleReporter prints each failed suite result as a block of text.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer

	severityColors map[domain.Severity]*color.Color
	label          *color.Color
}

// ConsoleOption configures a ConsoleReporter.
type ConsoleOption func(*ConsoleReporter)

// WithColors forces colored output on or off. By default color follows
// fatih/color's terminal detection.
func WithColors(enabled bool) ConsoleOption {
	return func(r *ConsoleReporter) {
		for _, c := range r.colors() {
			if enabled {
				c.EnableColor()
			} else {
				c.DisableColor()
			}
		}
	}
}

// NewConsoleReporter creates a reporter writing to w.
func NewConsoleReporter(w io.Writer, opts ...ConsoleOption) *ConsoleReporter {
	r := &ConsoleReporter{
		out: w,
		severityColors: map[domain.Severity]*color.Color{
			domain.SeverityCritical: color.New(color.BgRed, color.FgWhite, color.Bold),
			domain.SeverityHigh:     color.New(color.FgRed, color.Bold),
			domain.SeverityMedium:   color.New(color.FgYellow, color.Bold),
			domain.SeverityLow:      color.New(color.FgBlue, color.Bold),
			domain.SeverityTrivial:  color.New(color.FgWhite),
		},
		label: color.New(color.FgCyan),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ConsoleReporter) colors() []*color.Color {
	out := []*color.Color{r.label}
	for _, c := range r.severityColors {
		out = append(out, c)
	}
	return out
}

// ReportFailedVerificationFor prints the result. A result that has not
// failed, or carries an undefined severity, is rejected with a fatal error
// before anything is written.
func (r *ConsoleReporter) ReportFailedVerificationFor(_ context.Context, entity domain.Entity, result domain.SuiteResult) error {
	if !result.HasTestFailed() {
		return domain.Violation("console reporter called with a successful result for %s", entity)
	}
	severity, err := result.Severity.Name()
	if err != nil {
		return err
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s\n", r.severityColors[result.Severity].Sprintf("[%s]", severity), result.FailedTestName)
	fmt.Fprintf(&b, "  %s %s\n", r.label.Sprint("Entity:"), entity)
	fmt.Fprintf(&b, "  %s %s\n", r.label.Sprint("Reason:"), result.Reason)
	if explanation := strings.TrimRight(result.Explanation, "\n"); explanation != "" {
		b.WriteString(explanation)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.out.Write(b.Bytes()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
