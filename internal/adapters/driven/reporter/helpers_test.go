//go:build unit

package reporter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

type fakeTracker struct {
	mu        sync.Mutex
	created   []ports.Issue
	statuses  map[string]string
	createErr error
	statusErr error
}

func (f *fakeTracker) CreateIssue(_ context.Context, issue ports.Issue) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, issue)
	return fmt.Sprintf("FED-%d", len(f.created)), nil
}

func (f *fakeTracker) IssueStatusID(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return "", f.statusErr
	}
	return f.statuses[key], nil
}

func (f *fakeTracker) issues() []ports.Issue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.Issue(nil), f.created...)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func mappings(t *testing.T) (*domain.PriorityMapping, *domain.StatusMapping) {
	t.Helper()
	priorities, err := domain.NewPriorityMapping(map[domain.Severity]string{
		domain.SeverityTrivial:  "5",
		domain.SeverityLow:      "4",
		domain.SeverityMedium:   "3",
		domain.SeverityHigh:     "2",
		domain.SeverityCritical: "1",
	})
	if err != nil {
		t.Fatal(err)
	}
	statuses, err := domain.NewStatusMapping(
		map[domain.IssueStatus]string{
			domain.IssueStatusOpen:   "10000",
			domain.IssueStatusMuted:  "10100",
			domain.IssueStatusClosed: "6",
		},
		map[string]domain.IssueStatus{"3": domain.IssueStatusOpen},
	)
	if err != nil {
		t.Fatal(err)
	}
	return priorities, statuses
}

func failedResult() domain.SuiteResult {
	return domain.NewFailedSuiteResult("tls.certificate-expiry",
		domain.Failure(domain.SeverityHigh, "TLS certificate(s) expiring", " * h1: certificate expires on 2026-03-11 (in 10 days)"))
}

type failingStore struct {
	ports.ReportRepository
	addErr error
}

func (s failingStore) Add(context.Context, *domain.IssueReport) error { return s.addErr }
