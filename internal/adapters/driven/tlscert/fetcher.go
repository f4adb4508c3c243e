// Package tlscert fetches the leaf certificate a TLS endpoint presents.
package tlscert

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

const defaultPort = "443"

var _ ports.CertificateService = (*Fetcher)(nil)

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithDialTimeout bounds the TCP connect and TLS handshake when the caller's
// context carries no earlier deadline.
func WithDialTimeout(d time.Duration) Option {
	return func(f *Fetcher) { f.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithRootCAs verifies chains against pool. Without it the chain is not
// verified at all: an expired or self-signed certificate must still be
// fetched so its expiry can be reported.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(f *Fetcher) { f.roots = pool }
}

// Fetcher connects to hosts and returns the certificate they present.
type Fetcher struct {
	timeout time.Duration
	logger  *zap.Logger
	roots   *x509.CertPool
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{timeout: 10 * time.Second, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// EndUserCertificateForHost returns the leaf certificate of host. The port
// defaults to 443. Failures are reported through the result kind.
func (f *Fetcher) EndUserCertificateForHost(ctx context.Context, host string) domain.CertificateResult {
	addr, serverName := address(host)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	var leaf []byte
	dialer := &tls.Dialer{Config: &tls.Config{
		ServerName:         serverName,
		InsecureSkipVerify: f.roots == nil, //nolint:gosec // expiry of untrusted certs must be reported too
		RootCAs:            f.roots,
		MinVersion:         tls.VersionTLS12,
		VerifyConnection: func(cs tls.ConnectionState) error {
			if len(cs.PeerCertificates) > 0 {
				leaf = cs.PeerCertificates[0].Raw
			}
			return nil
		},
	}}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		f.logger.Debug("tls connection failed", zap.String("host", addr), zap.Error(err))
		return domain.CertificateFailure(domain.CertificateConnectionFailed, err.Error())
	}
	defer conn.Close()

	if len(leaf) == 0 {
		return domain.CertificateFailure(domain.CertificateExtractionFailed, "server presented no certificate")
	}

	cert, err := x509.ParseCertificate(leaf)
	if err != nil {
		return domain.CertificateFailure(domain.CertificateParsingFailed, err.Error())
	}
	return domain.CertificateSuccess(cert)
}

// address adds the default port and returns the dial address and SNI name.
func address(host string) (addr, serverName string) {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return host, h
	}
	return net.JoinHostPort(host, defaultPort), host
}
