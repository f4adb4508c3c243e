// Package signature verifies the enveloped XML signature a federation puts
// on its metadata aggregate.
package signature

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

var (
	_ ports.SignatureVerifier = (*XMLDsigVerifier)(nil)
	_ ports.MetadataSigner    = (*XMLDsigSigner)(nil)
)

var algorithmURIToName = map[string]string{
	"http://www.w3.org/2000/09/xmldsig#rsa-sha1":          "RSA-SHA1",
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha256":   "RSA-SHA256",
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha384":   "RSA-SHA384",
	"http://www.w3.org/2001/04/xmldsig-more#rsa-sha512":   "RSA-SHA512",
	"http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha256": "ECDSA-SHA256",
	"http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha384": "ECDSA-SHA384",
	"http://www.w3.org/2001/04/xmldsig-more#ecdsa-sha512": "ECDSA-SHA512",
}

func algorithmName(uri string) string {
	if name, ok := algorithmURIToName[uri]; ok {
		return name
	}
	return uri
}

// VerifierOption configures an XMLDsigVerifier.
type VerifierOption func(*XMLDsigVerifier)

// WithLogger logs the algorithm and trust anchor of each verified document,
// and warns when a trust anchor is close to expiry.
func WithLogger(logger *zap.Logger) VerifierOption {
	return func(v *XMLDsigVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithThresholds sets when a trust anchor expiry is worth a warning.
func WithThresholds(t domain.ExpiryThresholds) VerifierOption {
	return func(v *XMLDsigVerifier) { v.thresholds = t }
}

// WithClock sets the clock used for certificate validity and trust anchor
// expiry.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *XMLDsigVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// XMLDsigVerifier verifies enveloped signatures against a set of trusted
// certificates. Several certificates support federation key rollover.
type XMLDsigVerifier struct {
	certStore  dsig.X509CertificateStore
	certs      []*x509.Certificate
	logger     *zap.Logger
	thresholds domain.ExpiryThresholds
	now        func() time.Time
}

// NewXMLDsigVerifier creates a verifier trusting certs.
func NewXMLDsigVerifier(certs []*x509.Certificate, opts ...VerifierOption) *XMLDsigVerifier {
	v := &XMLDsigVerifier{
		certStore:  &dsig.MemoryX509CertificateStore{Roots: certs},
		certs:      certs,
		logger:     zap.NewNop(),
		thresholds: domain.DefaultExpiryThresholds,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates the signature and returns the signed element
// re-serialized, so callers never parse unsigned content.
func (v *XMLDsigVerifier) Verify(data []byte) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "parse metadata XML",
			Cause:   err,
		}
	}

	root := doc.Root()
	if root == nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "empty XML document",
		}
	}

	algorithm := signatureAlgorithm(root)

	// Certificate validity is judged at the same instant as trust anchor expiry.
	validationContext := dsig.NewDefaultValidationContext(v.certStore)
	validationContext.Clock = dsig.NewFakeClockAt(v.now())
	validated, err := validationContext.Validate(root)
	if err != nil {
		return nil, &domain.AppError{
			Code:    domain.ErrCodeSignatureInvalid,
			Message: "metadata signature verification failed",
			Cause:   err,
		}
	}

	v.logger.Info("metadata signature verified", zap.String("algorithm", algorithmName(algorithm)))
	v.checkTrustAnchors()

	out := etree.NewDocument()
	out.SetRoot(validated)
	result, err := out.WriteToBytes()
	if err != nil {
		return nil, domain.ServiceError("serialize validated metadata", err)
	}
	return result, nil
}

// checkTrustAnchors warns about trust anchors that expire soon.
func (v *XMLDsigVerifier) checkTrustAnchors() {
	now := v.now()
	for _, cert := range v.certs {
		sev, expiring := v.thresholds.ExpirySeverity(cert.NotAfter, now)
		if !expiring {
			continue
		}
		v.logger.Warn("metadata signing certificate expiring",
			zap.String("cert_subject", cert.Subject.String()),
			zap.Time("cert_expiry", cert.NotAfter),
			zap.String("severity", sev.String()))
	}
}

// signatureAlgorithm returns Signature/SignedInfo/SignatureMethod/@Algorithm
// or "".
func signatureAlgorithm(root *etree.Element) string {
	sigMethod := root.FindElement("./Signature/SignedInfo/SignatureMethod")
	if sigMethod == nil {
		return ""
	}
	return sigMethod.SelectAttrValue("Algorithm", "")
}

// XMLDsigSigner creates enveloped signatures. It signs test fixtures and
// the output of the sign-metadata helper.
type XMLDsigSigner struct {
	key         *rsa.PrivateKey
	certificate *x509.Certificate
}

// NewXMLDsigSigner creates a signer with the given key pair.
func NewXMLDsigSigner(key *rsa.PrivateKey, certificate *x509.Certificate) *XMLDsigSigner {
	return &XMLDsigSigner{key: key, certificate: certificate}
}

// Sign adds an enveloped signature over the document element.
func (s *XMLDsigSigner) Sign(metadata []byte) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, errors.New("empty metadata")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(metadata); err != nil {
		return nil, fmt.Errorf("parse XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, errors.New("empty XML document")
	}

	keyStore := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{s.certificate.Raw},
		PrivateKey:  s.key,
	})
	signingContext := dsig.NewDefaultSigningContext(keyStore)
	signingContext.Canonicalizer = dsig.MakeC14N10ExclusiveCanonicalizerWithPrefixList("")

	signedRoot, err := signingContext.SignEnveloped(root)
	if err != nil {
		return nil, fmt.Errorf("sign XML: %w", err)
	}
	doc.SetRoot(signedRoot)

	signed, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize signed XML: %w", err)
	}
	return signed, nil
}
