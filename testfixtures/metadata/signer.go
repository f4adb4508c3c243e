// Package metadata builds signed federation aggregates for tests. Documents
// are signed with the same goxmldsig signer the signature adapter uses, so
// tests exercise the full verification path.
package metadata

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/philiph/saml-fedcheck/internal/adapters/driven/signature"
)

const samlMetadataNS = "urn:oasis:names:tc:SAML:2.0:metadata"

// Signer signs federation metadata for tests.
type Signer struct {
	t           testing.TB
	signer      *signature.XMLDsigSigner
	certificate *x509.Certificate
}

// New creates a Signer with an auto-generated key and certificate.
func New(t testing.TB) *Signer {
	t.Helper()

	key, cert := SelfSigned(t, "Test Metadata Signer", time.Now().Add(24*time.Hour))
	return &Signer{
		t:           t,
		signer:      signature.NewXMLDsigSigner(key, cert),
		certificate: cert,
	}
}

// Certificate returns the signing certificate for verifier setup.
func (s *Signer) Certificate() *x509.Certificate {
	return s.certificate
}

// Sign signs the document and fails the test on error.
func (s *Signer) Sign(doc []byte) []byte {
	s.t.Helper()
	signed, err := s.signer.Sign(doc)
	if err != nil {
		s.t.Fatalf("sign metadata: %v", err)
	}
	return signed
}

// Entity describes one EntityDescriptor of a generated aggregate.
type Entity struct {
	EntityID string
	// IdP adds an IDPSSODescriptor with an SSO endpoint at SSO.
	IdP bool
	// SP adds an SPSSODescriptor with an ACS endpoint at ACS.
	SP  bool
	SSO string
	ACS string
	// SigningCert is added as a signing KeyDescriptor to every role.
	SigningCert *x509.Certificate
	// MetadataURL becomes an AdditionalMetadataLocation.
	MetadataURL string
	// RegistrationAuthority becomes mdrpi:RegistrationInfo.
	RegistrationAuthority string
}

// Aggregate renders an unsigned EntitiesDescriptor.
func Aggregate(entities ...Entity) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8"?>
<EntitiesDescriptor xmlns="%s" xmlns:ds="http://www.w3.org/2000/09/xmldsig#" xmlns:mdrpi="urn:oasis:names:tc:SAML:metadata:rpi" Name="urn:test:federation">`, samlMetadataNS)
	for _, e := range entities {
		b.WriteString(e.render())
	}
	b.WriteString("\n</EntitiesDescriptor>\n")
	return []byte(b.String())
}

// EntityDescriptor renders a standalone, unsigned EntityDescriptor, as an
// entity publishes it itself.
func EntityDescriptor(e Entity) []byte {
	body := e.render()
	body = strings.Replace(body, "<EntityDescriptor ",
		fmt.Sprintf(`<EntityDescriptor xmlns="%s" xmlns:ds="http://www.w3.org/2000/09/xmldsig#" xmlns:mdrpi="urn:oasis:names:tc:SAML:metadata:rpi" `, samlMetadataNS), 1)
	return []byte(`<?xml version="1.0" encoding="UTF-8"?>` + body + "\n")
}

func (e Entity) render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n  <EntityDescriptor entityID=%q>", e.EntityID)
	if e.RegistrationAuthority != "" {
		fmt.Fprintf(&b, `
    <Extensions><mdrpi:RegistrationInfo registrationAuthority=%q/></Extensions>`, e.RegistrationAuthority)
	}
	if e.IdP {
		sso := e.SSO
		if sso == "" {
			sso = e.EntityID + "/sso"
		}
		fmt.Fprintf(&b, `
    <IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">%s
      <SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect" Location=%q/>
    </IDPSSODescriptor>`, keyDescriptor(e.SigningCert), sso)
	}
	if e.SP {
		acs := e.ACS
		if acs == "" {
			acs = e.EntityID + "/acs"
		}
		fmt.Fprintf(&b, `
    <SPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">%s
      <AssertionConsumerService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST" Location=%q index="0"/>
    </SPSSODescriptor>`, keyDescriptor(e.SigningCert), acs)
	}
	if e.MetadataURL != "" {
		fmt.Fprintf(&b, `
    <AdditionalMetadataLocation namespace=%q>%s</AdditionalMetadataLocation>`, samlMetadataNS, e.MetadataURL)
	}
	b.WriteString("\n  </EntityDescriptor>")
	return b.String()
}

func keyDescriptor(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	return fmt.Sprintf(`
      <KeyDescriptor use="signing"><ds:KeyInfo><ds:X509Data><ds:X509Certificate>%s</ds:X509Certificate></ds:X509Data></ds:KeyInfo></KeyDescriptor>`,
		base64.StdEncoding.EncodeToString(cert.Raw))
}

// SelfSigned creates an RSA key and a self-signed certificate for cn.
func SelfSigned(t testing.TB, cn string, notAfter time.Time) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		t.Fatalf("generate serial: %v", err)
	}
	notBefore := notAfter.Add(-365 * 24 * time.Hour)
	if latest := time.Now().Add(-time.Hour); notBefore.After(latest) {
		notBefore = latest
	}
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: cn, Organization: []string{"Test"}},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return key, cert
}
