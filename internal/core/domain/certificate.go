package domain

import (
	"crypto/x509"
	"fmt"
	"time"
)

// CertificateResultKind classifies the outcome of fetching a host's certificate.
type CertificateResultKind int

const (
	CertificateFetched CertificateResultKind = iota
	CertificateConnectionFailed
	CertificateExtractionFailed
	CertificateParsingFailed
)

// String returns a short label used in logs and metrics.
func (k CertificateResultKind) String() string {
	switch k {
	case CertificateFetched:
		return "success"
	case CertificateConnectionFailed:
		return "connection_failed"
	case CertificateExtractionFailed:
		return "extraction_failed"
	case CertificateParsingFailed:
		return "parsing_failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// CertificateResult is the outcome of fetching the end-user (leaf)
// certificate a host presents. Exactly one of Certificate or Message is set.
type CertificateResult struct {
	Kind        CertificateResultKind
	Certificate *x509.Certificate
	Message     string
}

// CertificateSuccess wraps a fetched certificate.
func CertificateSuccess(cert *x509.Certificate) CertificateResult {
	return CertificateResult{Kind: CertificateFetched, Certificate: cert}
}

// CertificateFailure builds a failed result of the given kind.
func CertificateFailure(kind CertificateResultKind, message string) CertificateResult {
	return CertificateResult{Kind: kind, Message: message}
}

// Succeeded reports whether a certificate was obtained.
func (r CertificateResult) Succeeded() bool {
	return r.Kind == CertificateFetched && r.Certificate != nil
}

// ExpiryThresholds configures how close to expiry a certificate may get
// before it is reported, and at which severity.
type ExpiryThresholds struct {
	// High is the remaining validity below which a finding is HIGH.
	High time.Duration
	// Medium is the remaining validity below which a finding is MEDIUM.
	Medium time.Duration
}

// DefaultExpiryThresholds reports below two weeks as HIGH and below a month as MEDIUM.
var DefaultExpiryThresholds = ExpiryThresholds{
	High:   14 * 24 * time.Hour,
	Medium: 30 * 24 * time.Hour,
}

// ExpirySeverity classifies a certificate's remaining validity at now.
// Expired certificates are CRITICAL. The second return value is false when
// the certificate is comfortably valid.
func (t ExpiryThresholds) ExpirySeverity(notAfter, now time.Time) (Severity, bool) {
	remaining := notAfter.Sub(now)
	switch {
	case remaining <= 0:
		return SeverityCritical, true
	case remaining < t.High:
		return SeverityHigh, true
	case remaining < t.Medium:
		return SeverityMedium, true
	default:
		return 0, false
	}
}

// RemainingDays returns whole days of validity left, negative when expired.
func RemainingDays(notAfter, now time.Time) int {
	return int(notAfter.Sub(now).Hours() / 24)
}
