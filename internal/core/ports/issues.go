package ports

import (
	"context"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// Issue is the data needed to file a new issue in the external tracker.
type Issue struct {
	StatusID    string
	PriorityID  string
	Summary     string
	Description string
}

// IssueTracker is the port interface for the external issue tracker.
type IssueTracker interface {
	// CreateIssue files a new issue and returns its key (e.g. "FED-123").
	CreateIssue(ctx context.Context, issue Issue) (string, error)

	// IssueStatusID returns the tracker status id of an existing issue.
	IssueStatusID(ctx context.Context, issueKey string) (string, error)
}

// ReportRepository persists issue reports. It is the deduplication authority.
// Implementations must be safe for concurrent use.
type ReportRepository interface {
	// FindMostRecentlyReported returns the report with the greatest ReportedOn
	// for the entity and qualified test name, or nil if none exists.
	FindMostRecentlyReported(ctx context.Context, entity domain.Entity, testName string) (*domain.IssueReport, error)

	// Add persists a new report. A second report with the same entity, test
	// name and issue key fails with domain.ErrDuplicateReport.
	Add(ctx context.Context, report *domain.IssueReport) error
}

// Reporter consumes failed suite results.
type Reporter interface {
	// ReportFailedVerificationFor reports a failed suite result for an entity.
	// Passing a result that has not failed is a contract violation.
	ReportFailedVerificationFor(ctx context.Context, entity domain.Entity, result domain.SuiteResult) error
}
