//go:build unit

package domain

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func sampleMetadata() *EntityMetadata {
	return &EntityMetadata{
		EntityID: "https://idp.example.org/idp",
		Type:     EntityTypeIdentityProvider,
		Endpoints: []Endpoint{
			{Kind: EndpointSingleSignOn, Location: "https://idp.example.org/sso"},
			{Kind: EndpointSingleSignOn, Location: "https://login.example.org:8443/sso"},
			{Kind: EndpointSingleLogout, Location: "https://idp.example.org/slo"},
			{Kind: EndpointArtifactResolution, Location: "http://idp.example.org/ars"},
			{Kind: EndpointSingleLogout, Location: "HTTPS://IDP2.example.org/slo"},
		},
		Contacts: []Contact{
			{Type: "technical", Email: "ops@example.org"},
			{Type: "support", Email: "help@example.org"},
			{Type: "Technical", Email: "noc@example.org"},
		},
	}
}

func TestEntityMetadata_Entity(t *testing.T) {
	got := sampleMetadata().Entity()
	want := NewIdentityProvider("https://idp.example.org/idp")
	if got != want {
		t.Errorf("Entity() = %v, want %v", got, want)
	}
}

func TestEntityMetadata_HTTPSHosts(t *testing.T) {
	got := sampleMetadata().HTTPSHosts()
	want := []string{"idp.example.org", "login.example.org:8443", "IDP2.example.org"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("HTTPSHosts() mismatch (-want +got):\n%s", diff)
	}
}

func TestEntityMetadata_EndpointsOfKind(t *testing.T) {
	md := sampleMetadata()
	if got := len(md.EndpointsOfKind(EndpointSingleSignOn)); got != 2 {
		t.Errorf("SSO endpoints = %d, want 2", got)
	}
	if got := md.EndpointsOfKind(EndpointAssertionConsumerService); got != nil {
		t.Errorf("ACS endpoints = %v, want none", got)
	}
}

func TestEntityMetadata_ContactsOfType(t *testing.T) {
	got := sampleMetadata().ContactsOfType("TECHNICAL")
	if len(got) != 2 || got[0].Email != "ops@example.org" || got[1].Email != "noc@example.org" {
		t.Errorf("ContactsOfType(technical) = %v", got)
	}
}

func TestEndpoint_HostAndScheme(t *testing.T) {
	testCases := []struct {
		location  string
		wantHost  string
		wantHTTPS bool
	}{
		{"https://a.example.org/x", "a.example.org", true},
		{"  https://a.example.org:444/x ", "a.example.org:444", true},
		{"http://a.example.org/x", "a.example.org", false},
		{"urn:not-a-url", "", false},
		{"://broken", "", false},
	}
	for _, tc := range testCases {
		e := Endpoint{Location: tc.location}
		if got := e.Host(); got != tc.wantHost {
			t.Errorf("Host(%q) = %q, want %q", tc.location, got, tc.wantHost)
		}
		if got := e.IsHTTPS(); got != tc.wantHTTPS {
			t.Errorf("IsHTTPS(%q) = %v, want %v", tc.location, got, tc.wantHTTPS)
		}
	}
}

func TestParseCertificate(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "signer.example.org"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	encoded := base64.StdEncoding.EncodeToString(der)

	// Metadata wraps the base64 text over several indented lines.
	wrapped := "\n    " + encoded[:40] + "\n\t" + encoded[40:] + "\r\n  "
	cert, err := ParseCertificate(wrapped)
	if err != nil {
		t.Fatalf("ParseCertificate() error = %v", err)
	}
	if cert.Subject.CommonName != "signer.example.org" {
		t.Errorf("CommonName = %q", cert.Subject.CommonName)
	}

	if _, err := ParseCertificate("not base64!"); err == nil || !strings.Contains(err.Error(), "decode") {
		t.Errorf("bad base64 error = %v", err)
	}
	if _, err := ParseCertificate(base64.StdEncoding.EncodeToString([]byte("garbage"))); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("bad DER error = %v", err)
	}
}

func TestIsMetadataExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if IsMetadataExpired(time.Time{}, now) {
		t.Error("zero validUntil must never expire")
	}
	if !IsMetadataExpired(now, now) {
		t.Error("validUntil == now is expired")
	}
	if IsMetadataExpired(now.Add(time.Second), now) {
		t.Error("future validUntil is not expired")
	}
}

func TestMatchesEntityIDPattern(t *testing.T) {
	testCases := []struct {
		pattern string
		id      string
		want    bool
	}{
		{"", "https://idp.example.org", true},
		{"*", "https://idp.example.org", true},
		{"*example*", "https://idp.example.org", true},
		{"*example*", "https://idp.test", false},
		{"https://idp.*", "https://idp.example.org", true},
		{"https://idp.*", "https://sp.example.org", false},
		{"*.org", "https://idp.example.org", true},
		{"*.org", "https://idp.example.com", false},
		{"https://idp.example.org", "https://idp.example.org", true},
		{"https://idp.example.org", "https://idp.example.org/", false},
		{"**", "anything", false},
	}
	for _, tc := range testCases {
		if got := MatchesEntityIDPattern(tc.id, tc.pattern); got != tc.want {
			t.Errorf("MatchesEntityIDPattern(%q, %q) = %v, want %v", tc.id, tc.pattern, got, tc.want)
		}
	}
}

func TestSelectLocalizedValue(t *testing.T) {
	values := []LocalizedValue{
		{Lang: "de", Value: " Beispiel "},
		{Lang: "en-GB", Value: "Example"},
	}
	if got := SelectLocalizedValue(values, "de"); got != "Beispiel" {
		t.Errorf("preferred = %q", got)
	}
	if got := SelectLocalizedValue(values, "fr"); got != "Example" {
		t.Errorf("english fallback = %q", got)
	}
	if got := SelectLocalizedValue(values[:1], "fr"); got != "Beispiel" {
		t.Errorf("first fallback = %q", got)
	}
	if got := SelectLocalizedValue(nil, "en"); got != "" {
		t.Errorf("empty = %q", got)
	}
	if diff := cmp.Diff(map[string]string{"de": "Beispiel", "en-GB": "Example"}, LocalizedValuesToMap(values)); diff != "" {
		t.Errorf("LocalizedValuesToMap mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectBestLogo(t *testing.T) {
	logos := []Logo{
		{URL: "small.png", Height: 16, Width: 16},
		{URL: " large.png ", Height: 80, Width: 200},
		{URL: "broken.png", Height: -500, Width: -500},
	}
	if got := SelectBestLogo(logos); got != "large.png" {
		t.Errorf("SelectBestLogo() = %q, want large.png", got)
	}
	if got := SelectBestLogo(nil); got != "" {
		t.Errorf("SelectBestLogo(nil) = %q", got)
	}
}

// FuzzMatchesEntityIDPattern checks that patterns always match themselves
// once the wildcard is removed, and never panic.
func FuzzMatchesEntityIDPattern(f *testing.F) {
	for _, seed := range []string{"", "*", "**", "*a*", "a*", "*a", "https://idp.example.org"} {
		f.Add(seed, "https://idp.example.org")
	}
	f.Fuzz(func(t *testing.T, pattern, id string) {
		_ = MatchesEntityIDPattern(id, pattern)
		if !strings.Contains(pattern, "*") && !MatchesEntityIDPattern(pattern, pattern) {
			t.Errorf("literal pattern %q does not match itself", pattern)
		}
	})
}

// FuzzSelectBestLogo checks that the chosen URL always comes from the input.
func FuzzSelectBestLogo(f *testing.F) {
	f.Add(100, 100, "a.png", 200, 200, "b.png")
	f.Add(-1, 100, "neg.png", 0, 0, "zero.png")
	f.Add(1<<31, 1<<31, "huge.png", 1, 1, "tiny.png")
	f.Fuzz(func(t *testing.T, h1, w1 int, url1 string, h2, w2 int, url2 string) {
		got := SelectBestLogo([]Logo{{URL: url1, Height: h1, Width: w1}, {URL: url2, Height: h2, Width: w2}})
		if got != strings.TrimSpace(url1) && got != strings.TrimSpace(url2) {
			t.Errorf("SelectBestLogo() = %q, not one of %q, %q", got, url1, url2)
		}
	})
}
