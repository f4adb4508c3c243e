// Package verification is the orchestration engine: tests are grouped into
// suites, suites are run per entity by the Runner, and failed suite results
// are handed to a ports.Reporter.
package verification

import (
	"context"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// Test is a single named check run against one entity.
//
// Implementations hold no per-run state: everything they need comes from the
// Context. Expected failure modes (unreachable hosts, missing fields) are
// reported as failed results, never as panics.
type Test interface {
	// Name is the unqualified test name, unique within its suite.
	Name() string

	// ShouldBeSkipped reports whether the test does not apply to the entity.
	ShouldBeSkipped(vc *Context) bool

	// ReasonToSkip explains a skip. Calling it when ShouldBeSkipped returned
	// false is a contract violation and panics with *domain.ContractViolation.
	ReasonToSkip(vc *Context) string

	// Verify runs the check. Only called when the test is not skipped.
	Verify(ctx context.Context, vc *Context) domain.TestResult
}

// NeverSkipped can be embedded by tests that apply to every entity.
type NeverSkipped struct{}

// ShouldBeSkipped always returns false.
func (NeverSkipped) ShouldBeSkipped(*Context) bool { return false }

// ReasonToSkip always panics: there is never a reason.
func (NeverSkipped) ReasonToSkip(*Context) string {
	panic(NotSkipped("test"))
}

// NotSkipped builds the panic value for ReasonToSkip called on a test that
// is not skipped.
func NotSkipped(testName string) *domain.ContractViolation {
	return domain.Violation("ReasonToSkip called for %s, which is not skipped", testName)
}
