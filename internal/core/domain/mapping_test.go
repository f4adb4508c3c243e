//go:build unit

package domain

import (
	"errors"
	"testing"
)

func TestPriorityMapping(t *testing.T) {
	m, err := NewPriorityMapping(map[Severity]string{
		SeverityLow:  "4",
		SeverityHigh: "2",
	})
	if err != nil {
		t.Fatalf("NewPriorityMapping() error = %v", err)
	}

	if id, err := m.PriorityFor(SeverityHigh); err != nil || id != "2" {
		t.Errorf("PriorityFor(HIGH) = %q, %v", id, err)
	}
	if sev, err := m.SeverityFor("4"); err != nil || sev != SeverityLow {
		t.Errorf("SeverityFor(4) = %v, %v", sev, err)
	}

	_, err = m.PriorityFor(SeverityCritical)
	if !errors.Is(err, ErrMappingMissing) || !IsFatal(err) {
		t.Errorf("PriorityFor(CRITICAL) error = %v, want fatal mapping_missing", err)
	}
	if _, err := m.SeverityFor("99"); !errors.Is(err, ErrMappingMissing) {
		t.Errorf("SeverityFor(99) error = %v, want mapping_missing", err)
	}
}

func TestNewPriorityMapping_Rejects(t *testing.T) {
	testCases := []struct {
		name  string
		table map[Severity]string
	}{
		{"duplicate id", map[Severity]string{SeverityLow: "1", SeverityHigh: "1"}},
		{"empty id", map[Severity]string{SeverityLow: " "}},
		{"unknown severity", map[Severity]string{Severity(7): "1"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPriorityMapping(tc.table)
			var appErr *AppError
			if !errors.As(err, &appErr) || appErr.Code != ErrCodeConfigMissing {
				t.Errorf("error = %v, want config error", err)
			}
		})
	}
}

func TestStatusMapping(t *testing.T) {
	m, err := NewStatusMapping(
		map[IssueStatus]string{IssueStatusOpen: "1", IssueStatusClosed: "6"},
		map[string]IssueStatus{"5": IssueStatusClosed},
	)
	if err != nil {
		t.Fatalf("NewStatusMapping() error = %v", err)
	}

	if id, err := m.StatusID(IssueStatusOpen); err != nil || id != "1" {
		t.Errorf("StatusID(open) = %q, %v", id, err)
	}
	for _, id := range []string{"5", "6"} {
		if s, err := m.StatusFor(id); err != nil || s != IssueStatusClosed {
			t.Errorf("StatusFor(%s) = %q, %v", id, s, err)
		}
	}
	if _, err := m.StatusID(IssueStatusMuted); !errors.Is(err, ErrMappingMissing) {
		t.Errorf("StatusID(muted) error = %v, want mapping_missing", err)
	}
	if _, err := m.StatusFor("3"); !IsFatal(err) {
		t.Errorf("StatusFor(3) error = %v, want fatal", err)
	}
}

func TestNewStatusMapping_Rejects(t *testing.T) {
	testCases := []struct {
		name    string
		table   map[IssueStatus]string
		aliases map[string]IssueStatus
	}{
		{
			name:    "alias conflicting with table",
			table:   map[IssueStatus]string{IssueStatusOpen: "1"},
			aliases: map[string]IssueStatus{"1": IssueStatusClosed},
		},
		{
			name:  "two statuses sharing an id",
			table: map[IssueStatus]string{IssueStatusOpen: "1", IssueStatusMuted: "1"},
		},
		{
			name:  "empty id",
			table: map[IssueStatus]string{IssueStatusClosed: ""},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewStatusMapping(tc.table, tc.aliases)
			var appErr *AppError
			if !errors.As(err, &appErr) || appErr.Code != ErrCodeConfigMissing {
				t.Errorf("NewStatusMapping() = %v, %v; want config error", m, err)
			}
		})
	}
}
