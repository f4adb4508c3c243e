package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents categorized error types.
// These codes are stable and can be used for programmatic error handling.
type ErrorCode string

const (
	ErrCodeConfigMissing     ErrorCode = "config_missing"
	ErrCodeContractViolation ErrorCode = "contract_violation"
	ErrCodeMappingMissing    ErrorCode = "mapping_missing"
	ErrCodeUnknownSeverity   ErrorCode = "unknown_severity"
	ErrCodeDuplicateReport   ErrorCode = "duplicate_report"
	ErrCodeServiceError      ErrorCode = "service_error"
	ErrCodeSignatureInvalid  ErrorCode = "signature_invalid"
)

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// Fatal reports whether errors with this code must abort a verification run.
// Fatal codes indicate defects or misconfiguration, never runtime conditions.
func (c ErrorCode) Fatal() bool {
	switch c {
	case ErrCodeConfigMissing, ErrCodeContractViolation, ErrCodeMappingMissing, ErrCodeUnknownSeverity:
		return true
	default:
		return false
	}
}

// Title returns a short human title for this error code.
func (c ErrorCode) Title() string {
	switch c {
	case ErrCodeConfigMissing:
		return "Configuration Error"
	case ErrCodeContractViolation:
		return "Contract Violation"
	case ErrCodeMappingMissing:
		return "Mapping Missing"
	case ErrCodeUnknownSeverity:
		return "Unknown Severity"
	case ErrCodeDuplicateReport:
		return "Duplicate Report"
	case ErrCodeServiceError:
		return "Service Error"
	case ErrCodeSignatureInvalid:
		return "Signature Invalid"
	default:
		return "Error"
	}
}

// AppError is a structured error with code, message, and optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError sentinel carrying the same code, so callers can
// write errors.Is(err, domain.ErrDuplicateReport).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Cause == nil && t.Code == e.Code
}

// Sentinels for errors.Is matching by code.
var (
	ErrDuplicateReport   = &AppError{Code: ErrCodeDuplicateReport}
	ErrMappingMissing    = &AppError{Code: ErrCodeMappingMissing}
	ErrContractViolation = &AppError{Code: ErrCodeContractViolation}
	ErrUnknownSeverity   = &AppError{Code: ErrCodeUnknownSeverity}
)

// IsFatal reports whether err (or anything it wraps) is an AppError whose
// code must abort the whole run.
func IsFatal(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code.Fatal()
	}
	var cv *ContractViolation
	return errors.As(err, &cv)
}

// ConfigError creates a configuration error.
func ConfigError(message string) *AppError {
	return &AppError{Code: ErrCodeConfigMissing, Message: message}
}

// ServiceError creates a service error with optional cause.
func ServiceError(message string, cause error) *AppError {
	return &AppError{Code: ErrCodeServiceError, Message: message, Cause: cause}
}

// DuplicateReportError is returned by report stores on a uniqueness violation.
func DuplicateReportError(r *IssueReport, cause error) *AppError {
	return &AppError{
		Code: ErrCodeDuplicateReport,
		Message: fmt.Sprintf("issue report for %s test %q issue %q already exists",
			r.Entity(), r.TestName, r.IssueKey),
		Cause: cause,
	}
}

// MappingMissingError is returned when a severity, status or priority has no
// configured counterpart.
func MappingMissingError(kind, key string) *AppError {
	return &AppError{
		Code:    ErrCodeMappingMissing,
		Message: fmt.Sprintf("no %s mapping configured for %q", kind, key),
	}
}

// ContractViolation marks a programming error: a caller broke a documented
// precondition. It is used both as a panic value and as an error.
type ContractViolation struct {
	Message string
}

// Error implements the error interface.
func (c *ContractViolation) Error() string {
	return "contract violation: " + c.Message
}

// Is lets errors.Is(err, ErrContractViolation) match panics converted to errors.
func (c *ContractViolation) Is(target error) bool {
	return target == ErrContractViolation
}

// Violation creates a ContractViolation with a formatted message.
func Violation(format string, args ...any) *ContractViolation {
	return &ContractViolation{Message: fmt.Sprintf(format, args...)}
}
