package checks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
	"github.com/philiph/saml-fedcheck/internal/core/verification"
)

const (
	CertificateExpiryTestName = "certificate-expiry"
	EndpointsUseHTTPSTestName = "endpoints-use-https"
)

// CertificateExpiryTest checks the TLS certificate of every https endpoint
// host. Hosts whose certificate cannot be fetched are logged and left out;
// reachability is not what this test is about.
type CertificateExpiryTest struct {
	thresholds domain.ExpiryThresholds
	metrics    ports.MetricsRecorder
}

// NewCertificateExpiryTest creates the test. metrics may be nil.
func NewCertificateExpiryTest(thresholds domain.ExpiryThresholds, metrics ports.MetricsRecorder) *CertificateExpiryTest {
	return &CertificateExpiryTest{thresholds: thresholds, metrics: metrics}
}

// Name implements verification.Test.
func (t *CertificateExpiryTest) Name() string { return CertificateExpiryTestName }

// ShouldBeSkipped implements verification.Test.
func (t *CertificateExpiryTest) ShouldBeSkipped(vc *verification.Context) bool {
	return t.skipReason(vc) != ""
}

// ReasonToSkip implements verification.Test.
func (t *CertificateExpiryTest) ReasonToSkip(vc *verification.Context) string {
	reason := t.skipReason(vc)
	if reason == "" {
		panic(verification.NotSkipped(t.Name()))
	}
	return reason
}

func (t *CertificateExpiryTest) skipReason(vc *verification.Context) string {
	switch {
	case vc.Certificates == nil:
		return "no certificate service configured"
	case vc.Configured == nil || len(vc.Configured.HTTPSHosts()) == 0:
		return "entity has no https endpoints"
	default:
		return ""
	}
}

// Verify implements verification.Test.
func (t *CertificateExpiryTest) Verify(ctx context.Context, vc *verification.Context) domain.TestResult {
	now := vc.Now()
	var findings domain.Findings

	for _, host := range vc.Configured.HTTPSHosts() {
		res := vc.Certificates.EndUserCertificateForHost(ctx, host)
		if t.metrics != nil {
			t.metrics.RecordCertificateFetch(res.Kind.String())
		}
		if !res.Succeeded() {
			vc.Logger.Warn("cannot fetch tls certificate",
				zap.String("host", host),
				zap.Stringer("result", res.Kind),
				zap.String("message", res.Message))
			continue
		}

		severity, found := t.thresholds.ExpirySeverity(res.Certificate.NotAfter, now)
		if !found {
			continue
		}
		findings.Add(severity, describeExpiry(host, res.Certificate.NotAfter, now))
	}

	return findings.Result("TLS certificate(s) expiring")
}

// EndpointsUseHTTPSTest fails when any protocol endpoint is plain http.
type EndpointsUseHTTPSTest struct{}

// Name implements verification.Test.
func (t *EndpointsUseHTTPSTest) Name() string { return EndpointsUseHTTPSTestName }

// ShouldBeSkipped implements verification.Test.
func (t *EndpointsUseHTTPSTest) ShouldBeSkipped(vc *verification.Context) bool {
	return vc.Configured == nil || len(vc.Configured.Endpoints) == 0
}

// ReasonToSkip implements verification.Test.
func (t *EndpointsUseHTTPSTest) ReasonToSkip(vc *verification.Context) string {
	if !t.ShouldBeSkipped(vc) {
		panic(verification.NotSkipped(t.Name()))
	}
	return "entity declares no endpoints"
}

// Verify implements verification.Test.
func (t *EndpointsUseHTTPSTest) Verify(_ context.Context, vc *verification.Context) domain.TestResult {
	var findings domain.Findings
	for _, e := range vc.Configured.Endpoints {
		if e.IsHTTPS() {
			continue
		}
		findings.Add(domain.SeverityMedium, fmt.Sprintf("%s %s is not served over https", e.Kind, e.Location))
	}
	return findings.Result("Endpoint(s) without TLS")
}
