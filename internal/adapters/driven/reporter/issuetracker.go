package reporter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

var _ ports.Reporter = (*IssueTrackerReporter)(nil)

// RefilePolicy decides what happens when a failure was reported before.
type RefilePolicy string

const (
	// RefileNever never files a second issue for the same entity and test.
	RefileNever RefilePolicy = "never"
	// RefileAfterClose files a new issue once the previous one is closed.
	// Muted issues are never refiled.
	RefileAfterClose RefilePolicy = "after_close"
)

// ParseRefilePolicy parses a policy name. Empty means RefileNever.
func ParseRefilePolicy(s string) (RefilePolicy, error) {
	switch RefilePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RefileNever:
		return RefileNever, nil
	case RefileAfterClose:
		return RefileAfterClose, nil
	default:
		return "", domain.ConfigError(fmt.Sprintf("unknown refile policy %q", s))
	}
}

// Clock provides time functionality for testing.
type Clock interface {
	Now() time.Time
}

// RealClock uses the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// IssueTrackerOption configures an IssueTrackerReporter.
type IssueTrackerOption func(*IssueTrackerReporter)

// WithRefilePolicy sets the refile policy. Default RefileNever.
func WithRefilePolicy(p RefilePolicy) IssueTrackerOption {
	return func(r *IssueTrackerReporter) { r.refile = p }
}

// WithMutedStatus sets the tracker status id operators use to silence an
// issue. An issue in this status is never refiled, whatever its mapping.
func WithMutedStatus(statusID string) IssueTrackerOption {
	return func(r *IssueTrackerReporter) { r.mutedStatusID = statusID }
}

// WithReporterLogger sets the logger.
func WithReporterLogger(l *zap.Logger) IssueTrackerOption {
	return func(r *IssueTrackerReporter) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithReporterMetrics sets the metrics recorder.
func WithReporterMetrics(m ports.MetricsRecorder) IssueTrackerOption {
	return func(r *IssueTrackerReporter) { r.metrics = m }
}

// WithReporterClock sets the clock stamped on new reports.
func WithReporterClock(c Clock) IssueTrackerOption {
	return func(r *IssueTrackerReporter) {
		if c != nil {
			r.clock = c
		}
	}
}

// IssueTrackerReporter files one issue per entity and qualified test name.
// The report repository is the deduplication authority; concurrent reports
// for the same key are serialised in-process.
//
// Creating the issue and persisting the report are two separate steps. If
// persisting fails the issue exists without a report and the next run files
// a second one. The orphan issue key is logged at error level so it can be
// closed by hand. Persisting runs on a context detached from cancellation so
// a cancelled run does not widen that window.
type IssueTrackerReporter struct {
	tracker    ports.IssueTracker
	reports    ports.ReportRepository
	priorities *domain.PriorityMapping
	statuses   *domain.StatusMapping

	refile        RefilePolicy
	mutedStatusID string
	logger        *zap.Logger
	metrics       ports.MetricsRecorder
	clock         Clock

	locks keyedMutex
}

// NewIssueTrackerReporter creates the reporter.
func NewIssueTrackerReporter(
	tracker ports.IssueTracker,
	reports ports.ReportRepository,
	priorities *domain.PriorityMapping,
	statuses *domain.StatusMapping,
	opts ...IssueTrackerOption,
) *IssueTrackerReporter {
	r := &IssueTrackerReporter{
		tracker:    tracker,
		reports:    reports,
		priorities: priorities,
		statuses:   statuses,
		refile:     RefileNever,
		logger:     zap.NewNop(),
		clock:      RealClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReportFailedVerificationFor files an issue unless one was filed before.
func (r *IssueTrackerReporter) ReportFailedVerificationFor(ctx context.Context, entity domain.Entity, result domain.SuiteResult) error {
	if !result.HasTestFailed() {
		return domain.Violation("issue tracker reporter called with a successful result for %s", entity)
	}
	if _, err := result.Severity.Name(); err != nil {
		return err
	}

	key := domain.ReportKey{Entity: entity, TestName: result.FailedTestName}
	unlock := r.locks.lock(key)
	defer unlock()

	logger := r.logger.With(
		zap.String("entity_id", string(entity.ID)),
		zap.String("entity_type", string(entity.Type)),
		zap.String("test_name", result.FailedTestName))

	previous, err := r.reports.FindMostRecentlyReported(ctx, entity, result.FailedTestName)
	if err != nil {
		return fmt.Errorf("look up previous report: %w", err)
	}

	if previous != nil {
		refile, err := r.shouldRefile(ctx, previous)
		if err != nil {
			return err
		}
		if !refile {
			logger.Debug("failure already reported",
				zap.String("issue_key", previous.IssueKey),
				zap.Time("reported_on", previous.ReportedOn))
			if r.metrics != nil {
				r.metrics.RecordIssueReportSkipped(result.FailedTestName)
			}
			return nil
		}
		logger.Info("previous issue closed, filing again", zap.String("previous_issue_key", previous.IssueKey))
	}

	return r.file(ctx, logger, entity, result)
}

func (r *IssueTrackerReporter) shouldRefile(ctx context.Context, previous *domain.IssueReport) (bool, error) {
	if r.refile != RefileAfterClose {
		return false, nil
	}
	statusID, err := r.tracker.IssueStatusID(ctx, previous.IssueKey)
	if err != nil {
		return false, fmt.Errorf("get status of issue %s: %w", previous.IssueKey, err)
	}
	if r.mutedStatusID != "" && statusID == r.mutedStatusID {
		return false, nil
	}
	status, err := r.statuses.StatusFor(statusID)
	if err != nil {
		return false, err
	}
	return status == domain.IssueStatusClosed, nil
}

func (r *IssueTrackerReporter) file(ctx context.Context, logger *zap.Logger, entity domain.Entity, result domain.SuiteResult) error {
	priorityID, err := r.priorities.PriorityFor(result.Severity)
	if err != nil {
		return err
	}
	statusID, err := r.statuses.StatusID(domain.IssueStatusOpen)
	if err != nil {
		return err
	}

	issueKey, err := r.tracker.CreateIssue(ctx, ports.Issue{
		StatusID:    statusID,
		PriorityID:  priorityID,
		Summary:     result.Reason,
		Description: issueDescription(entity, result),
	})
	if err != nil {
		return fmt.Errorf("create issue: %w", err)
	}

	report := domain.NewIssueReport(domain.ReportID(uuid.NewString()), entity, result.FailedTestName, issueKey, r.clock.Now())
	if err := r.reports.Add(context.WithoutCancel(ctx), report); err != nil {
		logger.Error("issue created but report not persisted; issue is orphaned",
			zap.String("issue_key", issueKey),
			zap.Error(err))
		return fmt.Errorf("persist report for issue %s: %w", issueKey, err)
	}

	if r.metrics != nil {
		r.metrics.RecordIssueCreated(result.FailedTestName)
	}
	logger.Info("issue filed",
		zap.String("issue_key", issueKey),
		zap.Stringer("severity", result.Severity))
	return nil
}

func issueDescription(entity domain.Entity, result domain.SuiteResult) string {
	var b strings.Builder
	if result.Explanation != "" {
		b.WriteString(result.Explanation)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Entity: %s\n", entity.ID)
	fmt.Fprintf(&b, "Entity type: %s\n", entity.Type.Label())
	fmt.Fprintf(&b, "Test: %s\n", result.FailedTestName)
	fmt.Fprintf(&b, "Severity: %s\n", result.Severity)
	return b.String()
}

// keyedMutex hands out one mutex per report key and forgets it when no
// goroutine holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.ReportKey]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key domain.ReportKey) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[domain.ReportKey]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
