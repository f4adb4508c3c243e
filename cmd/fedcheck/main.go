// Command fedcheck verifies the entities of a SAML federation and reports
// failed checks to the console or an issue tracker.
//
// Usage:
//
//	fedcheck verify --config fedcheck.yaml [--reporter console|issue-tracker]
//	fedcheck suites
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitFatal    = 2
	exitFindings = 3
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCLI().rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fedcheck:", err)
	}
	os.Exit(exitCode(err))
}

// findingsError is returned by verify --fail-on-findings when suites failed.
type findingsError struct {
	failures int
}

func (e *findingsError) Error() string {
	return fmt.Sprintf("%d failed verification(s)", e.failures)
}

func exitCode(err error) int {
	var findings *findingsError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &findings):
		return exitFindings
	case domain.IsFatal(err):
		return exitFatal
	default:
		return exitError
	}
}
