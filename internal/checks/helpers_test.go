//go:build unit

package checks

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

var now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type fixedClock struct{}

func (fixedClock) Now() time.Time { return now }

// selfSigned returns a certificate valid until notAfter and its base64 DER.
func selfSigned(t *testing.T, cn string, notAfter time.Time) (*x509.Certificate, string) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    notAfter.Add(-365 * day),
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert, base64.StdEncoding.EncodeToString(der)
}

// stubCertificates serves fixed results per host; unknown hosts fail to connect.
type stubCertificates struct {
	results map[string]domain.CertificateResult
}

func (s stubCertificates) EndUserCertificateForHost(_ context.Context, host string) domain.CertificateResult {
	if r, ok := s.results[host]; ok {
		return r
	}
	return domain.CertificateFailure(domain.CertificateConnectionFailed, "connection refused")
}

type stubRemote struct {
	md  *domain.EntityMetadata
	err error
}

func (s stubRemote) RemoteMetadata(context.Context, *domain.EntityMetadata) (*domain.EntityMetadata, error) {
	return s.md, s.err
}

type fetchRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *fetchRecorder) RecordSuiteRun(string, bool)             {}
func (r *fetchRecorder) RecordIssueCreated(string)               {}
func (r *fetchRecorder) RecordIssueReportSkipped(string)         {}
func (r *fetchRecorder) RecordMetadataRefresh(string, bool, int) {}
func (r *fetchRecorder) RecordRunDuration(time.Duration)         {}
func (r *fetchRecorder) RecordCertificateFetch(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func httpsSP(id string, locations ...string) *domain.EntityMetadata {
	md := &domain.EntityMetadata{EntityID: id, Type: domain.EntityTypeServiceProvider}
	for _, loc := range locations {
		md.Endpoints = append(md.Endpoints, domain.Endpoint{
			Kind:     domain.EndpointAssertionConsumerService,
			Binding:  "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST",
			Location: loc,
		})
	}
	return md
}
