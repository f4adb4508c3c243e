//go:build unit

package signature

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

const unsignedXML = `<?xml version="1.0" encoding="UTF-8"?><root xmlns="urn:test"><child>value</child></root>`

func generateTestCert(t *testing.T, notAfter time.Time) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	notBefore := notAfter.Add(-365 * 24 * time.Hour)
	if latest := time.Now().Add(-time.Hour); notBefore.After(latest) {
		notBefore = latest
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "Federation Signer"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("failed to parse certificate: %v", err)
	}
	return cert, key
}

func sign(t *testing.T, key *rsa.PrivateKey, cert *x509.Certificate, doc string) []byte {
	t.Helper()
	signed, err := NewXMLDsigSigner(key, cert).Sign([]byte(doc))
	if err != nil {
		t.Fatalf("Sign() returned error: %v", err)
	}
	return signed
}

func TestXMLDsigVerifier_RejectsBadInput(t *testing.T) {
	cert, _ := generateTestCert(t, time.Now().Add(365*24*time.Hour))
	verifier := NewXMLDsigVerifier([]*x509.Certificate{cert})

	tests := []struct {
		name string
		data string
	}{
		{"invalid xml", "not valid xml"},
		{"empty", ""},
		{"unsigned", unsignedXML},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := verifier.Verify([]byte(tc.data))
			if err == nil {
				t.Fatal("Verify() should fail")
			}
			var appErr *domain.AppError
			if !errors.As(err, &appErr) || appErr.Code != domain.ErrCodeSignatureInvalid {
				t.Errorf("error = %v, want code %s", err, domain.ErrCodeSignatureInvalid)
			}
			if domain.IsFatal(err) {
				t.Error("invalid signature must not be fatal")
			}
		})
	}
}

func TestXMLDsigVerifier_Roundtrip(t *testing.T) {
	cert, key := generateTestCert(t, time.Now().Add(365*24*time.Hour))
	verifier := NewXMLDsigVerifier([]*x509.Certificate{cert})

	verified, err := verifier.Verify(sign(t, key, cert, unsignedXML))
	if err != nil {
		t.Fatalf("Verify() returned error: %v", err)
	}
	if !strings.Contains(string(verified), "value") {
		t.Errorf("verified output lost content: %s", verified)
	}
}

func TestXMLDsigVerifier_UntrustedSigner(t *testing.T) {
	trusted, _ := generateTestCert(t, time.Now().Add(365*24*time.Hour))
	other, otherKey := generateTestCert(t, time.Now().Add(365*24*time.Hour))
	verifier := NewXMLDsigVerifier([]*x509.Certificate{trusted})

	if _, err := verifier.Verify(sign(t, otherKey, other, unsignedXML)); err == nil {
		t.Error("Verify() should reject a document signed by an untrusted key")
	}
}

func TestXMLDsigVerifier_TamperedDocument(t *testing.T) {
	cert, key := generateTestCert(t, time.Now().Add(365*24*time.Hour))
	verifier := NewXMLDsigVerifier([]*x509.Certificate{cert})

	signed := strings.Replace(string(sign(t, key, cert, unsignedXML)), ">value<", ">evil<", 1)
	if _, err := verifier.Verify([]byte(signed)); err == nil {
		t.Error("Verify() should reject a modified document")
	}
}

func TestXMLDsigVerifier_Rollover(t *testing.T) {
	oldCert, _ := generateTestCert(t, time.Now().Add(10*24*time.Hour))
	newCert, newKey := generateTestCert(t, time.Now().Add(2*365*24*time.Hour))
	verifier := NewXMLDsigVerifier([]*x509.Certificate{oldCert, newCert})

	if _, err := verifier.Verify(sign(t, newKey, newCert, unsignedXML)); err != nil {
		t.Errorf("Verify() with rollover certs returned error: %v", err)
	}
}

func TestXMLDsigVerifier_WarnsAboutExpiringTrustAnchor(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cert, key := generateTestCert(t, now.Add(5*24*time.Hour))

	core, logs := observer.New(zapcore.DebugLevel)
	verifier := NewXMLDsigVerifier([]*x509.Certificate{cert},
		WithLogger(zap.New(core)),
		WithClock(func() time.Time { return now }))

	if _, err := verifier.Verify(sign(t, key, cert, unsignedXML)); err != nil {
		t.Fatalf("Verify() returned error: %v", err)
	}

	warnings := logs.FilterMessage("metadata signing certificate expiring").All()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 expiry warning, got %d", len(warnings))
	}
	if got := warnings[0].ContextMap()["severity"]; got != "HIGH" {
		t.Errorf("severity = %v, want HIGH", got)
	}
	if logs.FilterMessage("metadata signature verified").Len() != 1 {
		t.Error("expected verification to be logged")
	}
}

func TestXMLDsigVerifier_CertificateValidityFollowsClock(t *testing.T) {
	notAfter := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	cert, key := generateTestCert(t, notAfter)
	signed := sign(t, key, cert, unsignedXML)

	testCases := []struct {
		name    string
		now     time.Time
		wantErr bool
	}{
		{name: "before not-before", now: cert.NotBefore.Add(-time.Hour), wantErr: true},
		{name: "within validity", now: notAfter.Add(-24 * time.Hour)},
		{name: "after not-after", now: notAfter.Add(time.Hour), wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			verifier := NewXMLDsigVerifier([]*x509.Certificate{cert},
				WithClock(func() time.Time { return tc.now }))
			_, err := verifier.Verify(signed)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tc.wantErr)
			}
			var appErr *domain.AppError
			if err != nil && (!errors.As(err, &appErr) || appErr.Code != domain.ErrCodeSignatureInvalid) {
				t.Errorf("Verify() error = %v, want code %s", err, domain.ErrCodeSignatureInvalid)
			}
		})
	}
}

func TestXMLDsigSigner_RejectsBadInput(t *testing.T) {
	cert, key := generateTestCert(t, time.Now().Add(24*time.Hour))
	signer := NewXMLDsigSigner(key, cert)

	for _, data := range []string{"", "not valid xml"} {
		if _, err := signer.Sign([]byte(data)); err == nil {
			t.Errorf("Sign(%q) should fail", data)
		}
	}
}

func TestAlgorithmName(t *testing.T) {
	testCases := []struct {
		uri  string
		want string
	}{
		{"http://www.w3.org/2001/04/xmldsig-more#rsa-sha256", "RSA-SHA256"},
		{"http://www.w3.org/2000/09/xmldsig#rsa-sha1", "RSA-SHA1"},
		{"http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256", "ECDSA-SHA256"},
		{"unknown-uri", "unknown-uri"},
	}
	for _, tc := range testCases {
		if got := algorithmName(tc.uri); got != tc.want {
			t.Errorf("algorithmName(%q) = %q, want %q", tc.uri, got, tc.want)
		}
	}
}

func TestLoadTrustAnchors(t *testing.T) {
	c1, _ := generateTestCert(t, time.Now().Add(24*time.Hour))
	c2, _ := generateTestCert(t, time.Now().Add(48*time.Hour))

	var buf []byte
	buf = append(buf, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte("ignored")})...)
	buf = append(buf, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c1.Raw})...)
	buf = append(buf, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: c2.Raw})...)

	path := filepath.Join(t.TempDir(), "signer.pem")
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		t.Fatal(err)
	}

	certs, err := LoadTrustAnchors(path)
	if err != nil {
		t.Fatalf("LoadTrustAnchors() error: %v", err)
	}
	if len(certs) != 2 {
		t.Fatalf("got %d certs, want 2", len(certs))
	}
	if !certs[1].Equal(c2) {
		t.Error("certificates out of order")
	}
}

func TestLoadTrustAnchors_Errors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.pem")
	if err := os.WriteFile(empty, []byte("no pem here"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadTrustAnchors(filepath.Join(dir, "missing.pem")); err == nil {
		t.Error("missing file should fail")
	}
	if _, err := LoadTrustAnchors(empty); err == nil {
		t.Error("file without certificates should fail")
	}
}
