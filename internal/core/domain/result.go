package domain

import (
	"sort"
	"strings"
)

// TestResult is the outcome of a single verification test.
// When Failed is false the remaining fields carry no meaning.
type TestResult struct {
	Failed      bool
	Severity    Severity
	Reason      string
	Explanation string
}

// Success returns the success sentinel.
func Success() TestResult {
	return TestResult{}
}

// Failure returns a failed result.
func Failure(severity Severity, reason, explanation string) TestResult {
	return TestResult{
		Failed:      true,
		Severity:    severity,
		Reason:      reason,
		Explanation: explanation,
	}
}

// HasFailed reports whether the test failed.
func (r TestResult) HasFailed() bool {
	return r.Failed
}

// SuiteResult wraps the first failing test of a suite together with the
// qualified (suite.test) name of that test.
type SuiteResult struct {
	Failed         bool
	FailedTestName string
	Severity       Severity
	Reason         string
	Explanation    string
}

// SuiteSucceeded returns the success sentinel for suites.
func SuiteSucceeded() SuiteResult {
	return SuiteResult{}
}

// NewFailedSuiteResult wraps a failed test result.
func NewFailedSuiteResult(qualifiedTestName string, result TestResult) SuiteResult {
	return SuiteResult{
		Failed:         true,
		FailedTestName: qualifiedTestName,
		Severity:       result.Severity,
		Reason:         result.Reason,
		Explanation:    result.Explanation,
	}
}

// HasTestFailed reports whether any test of the suite failed.
func (r SuiteResult) HasTestFailed() bool {
	return r.Failed
}

// Finding is a single observation inside a test that checks many things,
// e.g. one host out of several in a certificate expiry test.
type Finding struct {
	Severity Severity
	Message  string
}

// Findings aggregates findings; the aggregate severity is the maximum.
type Findings struct {
	items []Finding
}

// Add records a finding.
func (f *Findings) Add(severity Severity, message string) {
	f.items = append(f.items, Finding{Severity: severity, Message: message})
}

// Len returns the number of findings.
func (f *Findings) Len() int {
	return len(f.items)
}

// Severity returns the maximum severity observed, or 0 when empty.
func (f *Findings) Severity() Severity {
	var max Severity
	for _, item := range f.items {
		max = MaxSeverity(max, item.Severity)
	}
	return max
}

// Explanation lists the findings as " * message" lines, most severe first.
// Findings of equal severity keep insertion order.
func (f *Findings) Explanation() string {
	items := make([]Finding, len(f.items))
	copy(items, f.items)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Severity > items[j].Severity
	})
	return BulletList(messages(items))
}

// Result turns the findings into a test result: success if there are none,
// otherwise a failure with the given reason.
func (f *Findings) Result(reason string) TestResult {
	if len(f.items) == 0 {
		return Success()
	}
	return Failure(f.Severity(), reason, f.Explanation())
}

func messages(items []Finding) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.Message
	}
	return out
}

// BulletList renders lines as " * line" joined by newlines.
func BulletList(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(" * ")
		b.WriteString(line)
	}
	return b.String()
}
