package domain

import (
	"fmt"
	"strings"
)

// Severity is the closed five-level ordinal scale attached to failed results.
// Higher values are more severe.
type Severity int

const (
	SeverityTrivial  Severity = 1
	SeverityLow      Severity = 2
	SeverityMedium   Severity = 3
	SeverityHigh     Severity = 4
	SeverityCritical Severity = 5
)

// AllSeverities lists every severity from least to most severe.
var AllSeverities = []Severity{
	SeverityTrivial,
	SeverityLow,
	SeverityMedium,
	SeverityHigh,
	SeverityCritical,
}

var severityNames = map[Severity]string{
	SeverityTrivial:  "TRIVIAL",
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
}

// Valid reports whether s is one of the five defined levels.
func (s Severity) Valid() bool {
	_, ok := severityNames[s]
	return ok
}

// String returns the upper-case name, or SEVERITY(n) for undefined values.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SEVERITY(%d)", int(s))
}

// Name returns the upper-case name of s. An undefined severity is a defect
// and yields an unknown_severity error.
func (s Severity) Name() (string, error) {
	if name, ok := severityNames[s]; ok {
		return name, nil
	}
	return "", &AppError{
		Code:    ErrCodeUnknownSeverity,
		Message: fmt.Sprintf("unknown severity %d", int(s)),
	}
}

// ParseSeverity parses a severity name case-insensitively.
func ParseSeverity(name string) (Severity, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for sev, n := range severityNames {
		if n == upper {
			return sev, nil
		}
	}
	return 0, &AppError{
		Code:    ErrCodeUnknownSeverity,
		Message: fmt.Sprintf("unknown severity %q", name),
	}
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// UnmarshalText lets severities be used as YAML/JSON map keys and values.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	name, err := s.Name()
	if err != nil {
		return nil, err
	}
	return []byte(name), nil
}
