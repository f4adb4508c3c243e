package domain

import (
	"fmt"
	"strings"
)

// IssueStatus is the tracker-independent status of a filed issue.
type IssueStatus string

const (
	IssueStatusOpen   IssueStatus = "open"
	IssueStatusMuted  IssueStatus = "muted"
	IssueStatusClosed IssueStatus = "closed"
)

// PriorityMapping maps severities to issue tracker priority ids and back.
// Both directions are total over the configured table: a missing entry is a
// fatal mapping_missing error, never a silent default.
type PriorityMapping struct {
	toPriority map[Severity]string
	toSeverity map[string]Severity
}

// NewPriorityMapping builds a mapping from severity to priority id. Two
// severities sharing a priority id would make the reverse lookup ambiguous
// and are rejected.
func NewPriorityMapping(table map[Severity]string) (*PriorityMapping, error) {
	m := &PriorityMapping{
		toPriority: make(map[Severity]string, len(table)),
		toSeverity: make(map[string]Severity, len(table)),
	}
	for sev, id := range table {
		if !sev.Valid() {
			return nil, ConfigError(fmt.Sprintf("priority mapping has unknown severity %d", int(sev)))
		}
		if strings.TrimSpace(id) == "" {
			return nil, ConfigError(fmt.Sprintf("priority mapping for %s is empty", sev))
		}
		if other, dup := m.toSeverity[id]; dup {
			return nil, ConfigError(fmt.Sprintf("priority id %q mapped to both %s and %s", id, other, sev))
		}
		m.toPriority[sev] = id
		m.toSeverity[id] = sev
	}
	return m, nil
}

// PriorityFor returns the tracker priority id for a severity.
func (m *PriorityMapping) PriorityFor(sev Severity) (string, error) {
	id, ok := m.toPriority[sev]
	if !ok {
		return "", MappingMissingError("severity", sev.String())
	}
	return id, nil
}

// SeverityFor returns the severity for a tracker priority id.
func (m *PriorityMapping) SeverityFor(priorityID string) (Severity, error) {
	sev, ok := m.toSeverity[priorityID]
	if !ok {
		return 0, MappingMissingError("priority", priorityID)
	}
	return sev, nil
}

// StatusMapping maps issue statuses to tracker status ids and back.
type StatusMapping struct {
	toID     map[IssueStatus]string
	toStatus map[string]IssueStatus
}

// NewStatusMapping builds a status mapping. Several tracker ids may map to the
// same status only through the reverse table (e.g. "Done" and "Won't Fix" both
// closed); the forward table takes the id given in table. One id never maps to
// two statuses.
func NewStatusMapping(table map[IssueStatus]string, aliases map[string]IssueStatus) (*StatusMapping, error) {
	m := &StatusMapping{
		toID:     make(map[IssueStatus]string, len(table)),
		toStatus: make(map[string]IssueStatus, len(table)+len(aliases)),
	}
	for status, id := range table {
		if strings.TrimSpace(id) == "" {
			return nil, ConfigError(fmt.Sprintf("status mapping for %q is empty", status))
		}
		if other, dup := m.toStatus[id]; dup {
			return nil, ConfigError(fmt.Sprintf("status id %q mapped to both %q and %q", id, other, status))
		}
		m.toID[status] = id
		m.toStatus[id] = status
	}
	for id, status := range aliases {
		if existing, ok := m.toStatus[id]; ok && existing != status {
			return nil, ConfigError(fmt.Sprintf("status id %q mapped to both %q and %q", id, existing, status))
		}
		m.toStatus[id] = status
	}
	return m, nil
}

// StatusID returns the tracker status id for a status.
func (m *StatusMapping) StatusID(status IssueStatus) (string, error) {
	id, ok := m.toID[status]
	if !ok {
		return "", MappingMissingError("status", string(status))
	}
	return id, nil
}

// StatusFor returns the status for a tracker status id.
func (m *StatusMapping) StatusFor(statusID string) (IssueStatus, error) {
	status, ok := m.toStatus[statusID]
	if !ok {
		return "", MappingMissingError("status id", statusID)
	}
	return status, nil
}
