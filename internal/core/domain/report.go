package domain

import "time"

// ReportID identifies one issue report. Stores assign no meaning to it
// beyond uniqueness; the reporter issues random UUIDs.
type ReportID string

// IssueReport records that an external issue was filed for an entity and a
// qualified test name. Reports are created once and never mutated or deleted.
type IssueReport struct {
	ID         ReportID
	EntityID   EntityID
	EntityType EntityType
	TestName   string
	ReportedOn time.Time
	IssueKey   string
}

// NewIssueReport creates a report with the given id.
func NewIssueReport(id ReportID, entity Entity, testName, issueKey string, reportedOn time.Time) *IssueReport {
	return &IssueReport{
		ID:         id,
		EntityID:   entity.ID,
		EntityType: entity.Type,
		TestName:   testName,
		ReportedOn: reportedOn,
		IssueKey:   issueKey,
	}
}

// Entity returns the reported entity.
func (r *IssueReport) Entity() Entity {
	return Entity{ID: r.EntityID, Type: r.EntityType}
}

// ReportKey is the natural key the deduplication lookup runs on.
type ReportKey struct {
	Entity   Entity
	TestName string
}

// Key returns the lookup key of the report.
func (r *IssueReport) Key() ReportKey {
	return ReportKey{Entity: r.Entity(), TestName: r.TestName}
}
