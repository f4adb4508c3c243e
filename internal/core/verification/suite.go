package verification

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// Suite is a named, ordered group of tests.
type Suite struct {
	name  string
	tests []Test
}

// NewSuite creates a suite. Names must be non-empty, dot-free and unique
// within the suite; violating that is a programming error and panics.
func NewSuite(name string, tests ...Test) *Suite {
	if err := validateName(name); err != nil {
		panic(domain.Violation("suite name: %v", err))
	}
	seen := make(map[string]bool, len(tests))
	for _, t := range tests {
		if err := validateName(t.Name()); err != nil {
			panic(domain.Violation("test name in suite %s: %v", name, err))
		}
		if seen[t.Name()] {
			panic(domain.Violation("duplicate test %s in suite %s", t.Name(), name))
		}
		seen[t.Name()] = true
	}
	return &Suite{name: name, tests: append([]Test(nil), tests...)}
}

// Name returns the suite name.
func (s *Suite) Name() string {
	return s.name
}

// Tests returns the tests in registration order.
func (s *Suite) Tests() []Test {
	return append([]Test(nil), s.tests...)
}

// QualifiedName returns "suite.test".
func (s *Suite) QualifiedName(t Test) string {
	return QualifiedName(s.name, t.Name())
}

// Run executes the tests in registration order and returns the first
// failure, tagged with the failing test's qualified name. Tests that are
// skipped, or blacklisted for the context's entity, count as passed.
func (s *Suite) Run(ctx context.Context, vc *Context) domain.SuiteResult {
	logger := vc.logger().With(zap.String("suite", s.name))

	for _, t := range s.tests {
		qualified := s.QualifiedName(t)

		if vc.isBlacklisted(qualified) {
			logger.Debug("test blacklisted for entity", zap.String("test_name", qualified))
			continue
		}

		if t.ShouldBeSkipped(vc) {
			logger.Debug("test skipped",
				zap.String("test_name", qualified),
				zap.String("reason", t.ReasonToSkip(vc)))
			continue
		}

		result := s.verify(ctx, vc, t)
		if result.HasFailed() {
			logger.Debug("test failed",
				zap.String("test_name", qualified),
				zap.Stringer("severity", result.Severity),
				zap.String("reason", result.Reason))
			return domain.NewFailedSuiteResult(qualified, result)
		}
	}

	return domain.SuiteSucceeded()
}

func (s *Suite) verify(ctx context.Context, vc *Context, t Test) domain.TestResult {
	if vc.testTimeout <= 0 {
		return t.Verify(ctx, vc)
	}
	testCtx, cancel := context.WithTimeout(ctx, vc.testTimeout)
	defer cancel()
	return t.Verify(testCtx, vc)
}

// QualifiedName joins a suite and test name into the canonical dotted form.
func QualifiedName(suite, test string) string {
	return suite + "." + test
}

// SplitQualifiedName splits "suite.test". ok is false for names without a dot.
func SplitQualifiedName(name string) (suite, test string, ok bool) {
	suite, test, ok = strings.Cut(name, ".")
	return suite, test, ok && suite != "" && test != ""
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("empty name")
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("name %q must not contain '.'", name)
	}
	return nil
}
