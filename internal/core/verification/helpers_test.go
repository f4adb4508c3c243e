//go:build unit

package verification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// stubTest is a configurable Test.
type stubTest struct {
	name       string
	skip       bool
	skipReason string
	result     domain.TestResult
	panicWith  any

	mu    sync.Mutex
	calls int
}

func (s *stubTest) Name() string { return s.name }

func (s *stubTest) ShouldBeSkipped(*Context) bool { return s.skip }

func (s *stubTest) ReasonToSkip(*Context) string {
	if !s.skip {
		panic(NotSkipped(s.name))
	}
	return s.skipReason
}

func (s *stubTest) Verify(context.Context, *Context) domain.TestResult {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panicWith != nil {
		panic(s.panicWith)
	}
	return s.result
}

func (s *stubTest) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func passing(name string) *stubTest { return &stubTest{name: name} }

func failing(name string, sev domain.Severity, reason string) *stubTest {
	return &stubTest{name: name, result: domain.Failure(sev, reason, " * "+reason)}
}

func skipped(name, reason string) *stubTest {
	return &stubTest{name: name, skip: true, skipReason: reason}
}

type staticEntities struct {
	entities []domain.Entity
	err      error
}

func (s staticEntities) Entities(context.Context) ([]domain.Entity, error) {
	return s.entities, s.err
}

// stubContexts builds bare contexts and can fail for chosen entities.
type stubContexts struct {
	failFor map[domain.EntityID]error
}

func (s stubContexts) NewContext(_ context.Context, entity domain.Entity, blacklist *Blacklist) (*Context, error) {
	if err, ok := s.failFor[entity.ID]; ok {
		return nil, err
	}
	return NewContext(entity, &domain.EntityMetadata{EntityID: string(entity.ID), Type: entity.Type},
		WithBlacklist(blacklist)), nil
}

type reported struct {
	entity domain.Entity
	result domain.SuiteResult
}

// recordingReporter records reports and can return errors per entity.
type recordingReporter struct {
	mu      sync.Mutex
	reports []reported
	errFor  map[domain.EntityID]error
}

func (r *recordingReporter) ReportFailedVerificationFor(_ context.Context, entity domain.Entity, result domain.SuiteResult) error {
	if !result.HasTestFailed() {
		return domain.Violation("reported a successful result")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, reported{entity: entity, result: result})
	if err, ok := r.errFor[entity.ID]; ok {
		return err
	}
	return nil
}

func (r *recordingReporter) all() []reported {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reported(nil), r.reports...)
}

var errBoom = errors.New("boom")

type countingRecorder struct {
	mu        sync.Mutex
	suiteRunN int
	runN      int
}

func (c *countingRecorder) RecordSuiteRun(string, bool) {
	c.mu.Lock()
	c.suiteRunN++
	c.mu.Unlock()
}
func (c *countingRecorder) RecordIssueCreated(string) {}
func (c *countingRecorder) RecordIssueReportSkipped(string) {}
func (c *countingRecorder) RecordCertificateFetch(string) {}
func (c *countingRecorder) RecordMetadataRefresh(string, bool, int) {}
func (c *countingRecorder) RecordRunDuration(time.Duration) {
	c.mu.Lock()
	c.runN++
	c.mu.Unlock()
}

func (c *countingRecorder) suiteRuns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suiteRunN
}

func (c *countingRecorder) runs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runN
}
