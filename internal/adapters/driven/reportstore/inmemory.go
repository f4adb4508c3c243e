package reportstore

import (
	"context"
	"sync"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

var _ ports.ReportRepository = (*InMemoryReportStore)(nil)

// InMemoryReportStore keeps reports in memory, for tests and dry runs.
type InMemoryReportStore struct {
	mu      sync.RWMutex
	reports map[domain.ReportKey][]*domain.IssueReport
	ids     map[string]struct{}
}

// NewInMemoryReportStore creates an empty store.
func NewInMemoryReportStore() *InMemoryReportStore {
	return &InMemoryReportStore{
		reports: make(map[domain.ReportKey][]*domain.IssueReport),
		ids:     make(map[string]struct{}),
	}
}

// FindMostRecentlyReported implements ports.ReportRepository.
func (s *InMemoryReportStore) FindMostRecentlyReported(_ context.Context, entity domain.Entity, testName string) (*domain.IssueReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.IssueReport
	for _, r := range s.reports[domain.ReportKey{Entity: entity, TestName: testName}] {
		if latest == nil || r.ReportedOn.After(latest.ReportedOn) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// Add implements ports.ReportRepository. Ids are unique across all keys,
// as with the SQLite primary key.
func (s *InMemoryReportStore) Add(_ context.Context, report *domain.IssueReport) error {
	id, err := parseReportID(report.ID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[id]; ok {
		return domain.DuplicateReportError(report, nil)
	}
	key := report.Key()
	for _, r := range s.reports[key] {
		if r.IssueKey == report.IssueKey {
			return domain.DuplicateReportError(report, nil)
		}
	}
	cp := *report
	cp.ID = domain.ReportID(id)
	s.reports[key] = append(s.reports[key], &cp)
	s.ids[id] = struct{}{}
	return nil
}

// Len returns the number of stored reports.
func (s *InMemoryReportStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rs := range s.reports {
		n += len(rs)
	}
	return n
}
