package ports

import (
	"context"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// CertificateService fetches the certificate a TLS endpoint presents.
// Implementations must be safe for concurrent use.
type CertificateService interface {
	// EndUserCertificateForHost connects to host (host or host:port, port 443
	// by default) and returns the leaf certificate. Expected failures are
	// reported through the result kind, never as a Go error. The context
	// carries the caller's timeout.
	EndUserCertificateForHost(ctx context.Context, host string) domain.CertificateResult
}
