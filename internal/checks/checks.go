// Package checks contains the built-in verification tests and registers them
// under their canonical suite names.
package checks

import (
	"fmt"
	"time"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
	"github.com/philiph/saml-fedcheck/internal/core/verification"
)

// Canonical suite names.
const (
	SuiteTLS      = "tls"
	SuiteMetadata = "metadata"
)

// Options configures the built-in tests.
type Options struct {
	// Thresholds classify certificate expiry. Zero means DefaultExpiryThresholds.
	Thresholds domain.ExpiryThresholds

	// Validator checks configured metadata for completeness.
	// Nil means DefaultMetadataValidator().
	Validator *ConfiguredMetadataValidator

	// Metrics records certificate fetch outcomes. May be nil.
	Metrics ports.MetricsRecorder
}

func (o Options) thresholds() domain.ExpiryThresholds {
	if o.Thresholds.High <= 0 && o.Thresholds.Medium <= 0 {
		return domain.DefaultExpiryThresholds
	}
	return o.Thresholds
}

func (o Options) validator() *ConfiguredMetadataValidator {
	if o.Validator == nil {
		return DefaultMetadataValidator()
	}
	return o.Validator
}

// Register adds every built-in test to reg.
func Register(reg *verification.Registry, opts Options) {
	thresholds := opts.thresholds()
	validator := opts.validator()

	reg.Register(SuiteTLS, CertificateExpiryTestName, func() verification.Test {
		return NewCertificateExpiryTest(thresholds, opts.Metrics)
	})
	reg.Register(SuiteTLS, EndpointsUseHTTPSTestName, func() verification.Test {
		return &EndpointsUseHTTPSTest{}
	})

	reg.Register(SuiteMetadata, EntityCompletenessTestName, func() verification.Test {
		return NewEntityCompletenessTest(validator)
	})
	reg.Register(SuiteMetadata, SigningCertificateExpiryTestName, func() verification.Test {
		return NewSigningCertificateExpiryTest(thresholds)
	})
	reg.Register(SuiteMetadata, RemoteMetadataConsistencyTestName, func() verification.Test {
		return &RemoteMetadataConsistencyTest{}
	})
}

func describeExpiry(subject string, notAfter, now time.Time) string {
	days := domain.RemainingDays(notAfter, now)
	date := notAfter.UTC().Format("2006-01-02")
	if !notAfter.After(now) {
		return fmt.Sprintf("%s: certificate expired on %s (%d days ago)", subject, date, -days)
	}
	return fmt.Sprintf("%s: certificate expires on %s (in %d days)", subject, date, days)
}
