package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/verification"
)

const (
	EntityCompletenessTestName        = "completeness"
	SigningCertificateExpiryTestName  = "signing-certificate-expiry"
	RemoteMetadataConsistencyTestName = "remote-consistency"
)

// EntityCompletenessTest validates the configured metadata of an entity.
type EntityCompletenessTest struct {
	verification.NeverSkipped
	validator *ConfiguredMetadataValidator
}

// NewEntityCompletenessTest creates the test.
func NewEntityCompletenessTest(validator *ConfiguredMetadataValidator) *EntityCompletenessTest {
	return &EntityCompletenessTest{validator: validator}
}

// Name implements verification.Test.
func (t *EntityCompletenessTest) Name() string { return EntityCompletenessTestName }

// Verify implements verification.Test.
func (t *EntityCompletenessTest) Verify(_ context.Context, vc *verification.Context) domain.TestResult {
	violations := t.validator.Validate(vc.Configured)
	if len(violations) == 0 {
		return domain.Success()
	}
	return domain.Failure(domain.SeverityHigh, "Entity metadata is incomplete", domain.BulletList(violations))
}

// SigningCertificateExpiryTest checks the signing certificates registered in
// the federation metadata.
type SigningCertificateExpiryTest struct {
	thresholds domain.ExpiryThresholds
}

// NewSigningCertificateExpiryTest creates the test.
func NewSigningCertificateExpiryTest(thresholds domain.ExpiryThresholds) *SigningCertificateExpiryTest {
	return &SigningCertificateExpiryTest{thresholds: thresholds}
}

// Name implements verification.Test.
func (t *SigningCertificateExpiryTest) Name() string { return SigningCertificateExpiryTestName }

// ShouldBeSkipped implements verification.Test.
func (t *SigningCertificateExpiryTest) ShouldBeSkipped(vc *verification.Context) bool {
	return vc.Configured == nil || len(vc.Configured.SigningCertificates) == 0
}

// ReasonToSkip implements verification.Test.
func (t *SigningCertificateExpiryTest) ReasonToSkip(vc *verification.Context) string {
	if !t.ShouldBeSkipped(vc) {
		panic(verification.NotSkipped(t.Name()))
	}
	return "entity has no signing certificates"
}

// Verify implements verification.Test.
func (t *SigningCertificateExpiryTest) Verify(_ context.Context, vc *verification.Context) domain.TestResult {
	now := vc.Now()
	var findings domain.Findings

	for i, data := range vc.Configured.SigningCertificates {
		cert, err := domain.ParseCertificate(data)
		if err != nil {
			findings.Add(domain.SeverityHigh, fmt.Sprintf("signing certificate #%d is unreadable: %v", i+1, err))
			continue
		}
		severity, found := t.thresholds.ExpirySeverity(cert.NotAfter, now)
		if !found {
			continue
		}
		subject := cert.Subject.CommonName
		if subject == "" {
			subject = fmt.Sprintf("signing certificate #%d", i+1)
		}
		findings.Add(severity, describeExpiry(subject, cert.NotAfter, now))
	}

	return findings.Result("Signing certificate(s) expiring")
}

// RemoteMetadataConsistencyTest compares the metadata an entity publishes
// itself with what is registered in the federation.
type RemoteMetadataConsistencyTest struct{}

// Name implements verification.Test.
func (t *RemoteMetadataConsistencyTest) Name() string { return RemoteMetadataConsistencyTestName }

// ShouldBeSkipped implements verification.Test.
func (t *RemoteMetadataConsistencyTest) ShouldBeSkipped(vc *verification.Context) bool {
	return !vc.HasMetadataURL()
}

// ReasonToSkip implements verification.Test.
func (t *RemoteMetadataConsistencyTest) ReasonToSkip(vc *verification.Context) string {
	if !t.ShouldBeSkipped(vc) {
		panic(verification.NotSkipped(t.Name()))
	}
	return "no metadata url known for entity"
}

// Verify implements verification.Test.
func (t *RemoteMetadataConsistencyTest) Verify(ctx context.Context, vc *verification.Context) domain.TestResult {
	remote, err := vc.RemoteMetadata(ctx)
	if err != nil {
		return domain.Failure(domain.SeverityHigh, "Remote metadata unavailable",
			domain.BulletList([]string{fmt.Sprintf("%s: %v", vc.Configured.MetadataURL, err)}))
	}

	var findings domain.Findings
	if remote.EntityID != vc.Configured.EntityID {
		findings.Add(domain.SeverityCritical,
			fmt.Sprintf("entityID %q published at %s differs from registered %q",
				remote.EntityID, vc.Configured.MetadataURL, vc.Configured.EntityID))
	}

	registered := certificateSet(vc.Configured.SigningCertificates)
	published := certificateSet(remote.SigningCertificates)
	for _, c := range vc.Configured.SigningCertificates {
		if _, ok := published[normalizeCertificate(c)]; !ok {
			findings.Add(domain.SeverityMedium,
				fmt.Sprintf("registered signing certificate %s is not published", certificateLabel(c)))
		}
	}
	for _, c := range remote.SigningCertificates {
		if _, ok := registered[normalizeCertificate(c)]; !ok {
			findings.Add(domain.SeverityLow,
				fmt.Sprintf("published signing certificate %s is not registered", certificateLabel(c)))
		}
	}

	return findings.Result("Remote metadata differs from federation metadata")
}

func normalizeCertificate(data string) string {
	return strings.Join(strings.Fields(data), "")
}

func certificateSet(certs []string) map[string]struct{} {
	set := make(map[string]struct{}, len(certs))
	for _, c := range certs {
		set[normalizeCertificate(c)] = struct{}{}
	}
	return set
}

func certificateLabel(data string) string {
	cert, err := domain.ParseCertificate(data)
	if err != nil || cert.Subject.CommonName == "" {
		n := normalizeCertificate(data)
		if len(n) > 16 {
			n = n[:16] + "..."
		}
		return n
	}
	return fmt.Sprintf("CN=%s (serial %s)", cert.Subject.CommonName, cert.SerialNumber)
}
