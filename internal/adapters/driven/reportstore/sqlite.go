// Package reportstore persists issue reports, the record that an issue was
// filed for an entity and a qualified test name.
package reportstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

var _ ports.ReportRepository = (*SQLiteReportStore)(nil)

// reportedOnLayout is fixed width so text order equals time order.
const reportedOnLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS issue_reports (
	id TEXT PRIMARY KEY,
	entity_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	test_name TEXT NOT NULL,
	reported_on TEXT NOT NULL,
	issue_key TEXT NOT NULL
);`

const indexes = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_issue_reports_unique
	ON issue_reports(entity_id, entity_type, test_name, issue_key);
CREATE INDEX IF NOT EXISTS idx_issue_reports_lookup
	ON issue_reports(entity_id, entity_type, test_name, reported_on);`

// SQLiteReportStore stores reports in a SQLite database.
type SQLiteReportStore struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// OpenSQLite opens or creates the database at path and migrates it.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteReportStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create report store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open report store: %w", err)
	}
	// One connection: SQLite serialises writers anyway and ":memory:" is
	// per connection.
	db.SetMaxOpenConns(1)

	s := &SQLiteReportStore{db: db, path: path, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteReportStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteReportStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create issue_reports: %w", err)
	}

	columns, err := s.columns(ctx)
	if err != nil {
		return err
	}
	if columns["issue_id"] && !columns["issue_key"] {
		if _, err := s.db.ExecContext(ctx, `ALTER TABLE issue_reports RENAME COLUMN issue_id TO issue_key`); err != nil {
			return fmt.Errorf("rename issue_id to issue_key: %w", err)
		}
		s.logger.Info("migrated report store", zap.String("path", s.path), zap.String("change", "issue_id renamed to issue_key"))
	}

	if _, err := s.db.ExecContext(ctx, indexes); err != nil {
		return fmt.Errorf("create issue_reports indexes: %w", err)
	}
	return nil
}

func (s *SQLiteReportStore) columns(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('issue_reports')`)
	if err != nil {
		return nil, fmt.Errorf("inspect issue_reports: %w", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("inspect issue_reports: %w", err)
		}
		out[name] = true
	}
	return out, rows.Err()
}

// FindMostRecentlyReported returns the newest report for entity and testName,
// or nil if there is none.
func (s *SQLiteReportStore) FindMostRecentlyReported(ctx context.Context, entity domain.Entity, testName string) (*domain.IssueReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, reported_on, issue_key
		FROM issue_reports
		WHERE entity_id = ? AND entity_type = ? AND test_name = ?
		ORDER BY reported_on DESC
		LIMIT 1`,
		string(entity.ID), string(entity.Type), testName)

	var id, reportedOn, issueKey string
	if err := row.Scan(&id, &reportedOn, &issueKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.ServiceError("query issue report", err)
	}

	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ServiceError(fmt.Sprintf("issue report has invalid id %q", id), err)
	}
	at, err := time.Parse(reportedOnLayout, reportedOn)
	if err != nil {
		return nil, domain.ServiceError(fmt.Sprintf("issue report %s has invalid reported_on", id), err)
	}

	return &domain.IssueReport{
		ID:         domain.ReportID(parsedID.String()),
		EntityID:   entity.ID,
		EntityType: entity.Type,
		TestName:   testName,
		ReportedOn: at,
		IssueKey:   issueKey,
	}, nil
}

// Add inserts a report. A report reusing an id, or with the same entity,
// test name and issue key, is rejected with domain.ErrDuplicateReport.
func (s *SQLiteReportStore) Add(ctx context.Context, report *domain.IssueReport) error {
	id, err := parseReportID(report.ID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO issue_reports (id, entity_id, entity_type, test_name, reported_on, issue_key)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		string(report.EntityID),
		string(report.EntityType),
		report.TestName,
		report.ReportedOn.UTC().Format(reportedOnLayout),
		report.IssueKey)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.DuplicateReportError(report, err)
		}
		return domain.ServiceError("insert issue report", err)
	}
	return nil
}

// parseReportID returns the canonical text form of a report id.
func parseReportID(id domain.ReportID) (string, error) {
	parsed, err := uuid.Parse(string(id))
	if err != nil {
		return "", domain.Violation("issue report id %q is not a UUID", id)
	}
	return parsed.String(), nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
