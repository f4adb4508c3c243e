package domain

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// EndpointKind names the role an endpoint plays in SAML metadata.
type EndpointKind string

const (
	EndpointSingleSignOn             EndpointKind = "SingleSignOnService"
	EndpointSingleLogout             EndpointKind = "SingleLogoutService"
	EndpointAssertionConsumerService EndpointKind = "AssertionConsumerService"
	EndpointArtifactResolution       EndpointKind = "ArtifactResolutionService"
)

// Endpoint is a protocol endpoint declared in metadata.
type Endpoint struct {
	Kind     EndpointKind `json:"kind"`
	Binding  string       `json:"binding"`
	Location string       `json:"location"`
}

// Host returns the host[:port] of the endpoint location, or "" if unparsable.
func (e Endpoint) Host() string {
	u, err := url.Parse(strings.TrimSpace(e.Location))
	if err != nil {
		return ""
	}
	return u.Host
}

// IsHTTPS reports whether the endpoint location uses the https scheme.
func (e Endpoint) IsHTTPS() bool {
	u, err := url.Parse(strings.TrimSpace(e.Location))
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, "https")
}

// Contact is a ContactPerson element.
type Contact struct {
	Type      string `json:"type"`
	GivenName string `json:"given_name,omitempty"`
	SurName   string `json:"sur_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// EntityMetadata is the parsed metadata of one IdP or SP.
// This is the core domain model - it has no external dependencies.
type EntityMetadata struct {
	// EntityID is the SAML entityID.
	EntityID string `json:"entity_id"`

	// Type tells whether the descriptor was an IDPSSODescriptor or SPSSODescriptor.
	Type EntityType `json:"type"`

	// DisplayName prefers mdui:DisplayName (English) over OrganizationDisplayName.
	DisplayName string `json:"display_name,omitempty"`

	// DisplayNames contains all language variants of the display name.
	DisplayNames map[string]string `json:"display_names,omitempty"`

	// LogoURL is the URL of the largest mdui:Logo.
	LogoURL string `json:"logo_url,omitempty"`

	// OrganizationName and OrganizationURL come from the Organization element.
	OrganizationName string `json:"organization_name,omitempty"`
	OrganizationURL  string `json:"organization_url,omitempty"`

	// MetadataURL is where the entity publishes its own metadata, if known.
	MetadataURL string `json:"metadata_url,omitempty"`

	// Endpoints lists SSO, SLO, ACS and artifact endpoints in document order.
	Endpoints []Endpoint `json:"endpoints,omitempty"`

	// SigningCertificates are base64 DER certificates with use="signing" or no use.
	SigningCertificates []string `json:"-"`

	// EncryptionCertificates are base64 DER certificates with use="encryption" or no use.
	EncryptionCertificates []string `json:"-"`

	// Contacts lists ContactPerson elements.
	Contacts []Contact `json:"contacts,omitempty"`

	// RegistrationAuthority is the URI of the federation that registered this entity.
	RegistrationAuthority string `json:"registration_authority,omitempty"`

	// RegistrationInstant is when the entity was registered with the federation.
	RegistrationInstant time.Time `json:"registration_instant,omitempty"`

	// ValidUntil is the validUntil attribute of the descriptor or its aggregate.
	ValidUntil *time.Time `json:"valid_until,omitempty"`
}

// Entity returns the entity this metadata describes.
func (m *EntityMetadata) Entity() Entity {
	return Entity{ID: EntityID(m.EntityID), Type: m.Type}
}

// EndpointsOfKind filters endpoints by kind.
func (m *EntityMetadata) EndpointsOfKind(kind EndpointKind) []Endpoint {
	var out []Endpoint
	for _, e := range m.Endpoints {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// HTTPSHosts returns the distinct hosts of https endpoints in document order.
func (m *EntityMetadata) HTTPSHosts() []string {
	seen := make(map[string]bool)
	var hosts []string
	for _, e := range m.Endpoints {
		if !e.IsHTTPS() {
			continue
		}
		host := e.Host()
		if host == "" || seen[host] {
			continue
		}
		seen[host] = true
		hosts = append(hosts, host)
	}
	return hosts
}

// ContactsOfType returns contacts with the given contactType.
func (m *EntityMetadata) ContactsOfType(contactType string) []Contact {
	var out []Contact
	for _, c := range m.Contacts {
		if strings.EqualFold(c.Type, contactType) {
			out = append(out, c)
		}
	}
	return out
}

// ParseCertificate decodes a base64 DER certificate as found in ds:X509Certificate.
func ParseCertificate(data string) (*x509.Certificate, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, data)
	der, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	return cert, nil
}

// UIInfo represents the mdui:UIInfo element.
type UIInfo struct {
	DisplayNames []LocalizedValue `xml:"DisplayName"`
	Logos        []Logo           `xml:"Logo"`
}

// LocalizedValue represents an element with xml:lang attribute.
type LocalizedValue struct {
	Lang  string `xml:"lang,attr"`
	Value string `xml:",chardata"`
}

// Logo represents an mdui:Logo element.
type Logo struct {
	URL    string `xml:",chardata"`
	Height int    `xml:"height,attr"`
	Width  int    `xml:"width,attr"`
}

// RegistrationInfo represents the mdrpi:RegistrationInfo element.
type RegistrationInfo struct {
	RegistrationAuthority string `xml:"registrationAuthority,attr"`
	RegistrationInstant   string `xml:"registrationInstant,attr"` // ISO 8601 timestamp
}

// ErrEntityNotFound is returned when an entity is not present in metadata.
var ErrEntityNotFound = fmt.Errorf("entity not found")

// ErrNoMetadataURL is returned when an entity's own metadata location is unknown.
var ErrNoMetadataURL = fmt.Errorf("no metadata url known for entity")

// ErrMetadataExpired is returned when metadata has a validUntil attribute
// that is in the past.
var ErrMetadataExpired = fmt.Errorf("metadata expired")

// IsMetadataExpired checks if metadata with the given validUntil time has expired.
// Returns false if validUntil is zero (no expiry specified).
func IsMetadataExpired(validUntil time.Time, now time.Time) bool {
	if validUntil.IsZero() {
		return false
	}
	return !now.Before(validUntil)
}

// MatchesEntityIDPattern returns true if the entityID matches the glob pattern.
// Empty pattern matches everything. Supports "*substring*", "prefix*" and "*suffix".
func MatchesEntityIDPattern(entityID, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(pattern, "*") && len(pattern) > 2 {
		return strings.Contains(entityID, pattern[1:len(pattern)-1])
	}

	if strings.HasSuffix(pattern, "*") && !strings.HasPrefix(pattern, "*") {
		return strings.HasPrefix(entityID, pattern[:len(pattern)-1])
	}

	if strings.HasPrefix(pattern, "*") && !strings.HasSuffix(pattern, "*") {
		return strings.HasSuffix(entityID, pattern[1:])
	}

	return entityID == pattern
}

// SelectLocalizedValue returns the value for the preferred language,
// falling back to any English variant and then to the first value.
func SelectLocalizedValue(values []LocalizedValue, preferLang string) string {
	if len(values) == 0 {
		return ""
	}

	for _, v := range values {
		if v.Lang == preferLang {
			return strings.TrimSpace(v.Value)
		}
	}

	for _, v := range values {
		if strings.HasPrefix(v.Lang, "en") {
			return strings.TrimSpace(v.Value)
		}
	}

	return strings.TrimSpace(values[0].Value)
}

// LocalizedValuesToMap converts a slice of LocalizedValue to a map
// keyed by language code.
func LocalizedValuesToMap(values []LocalizedValue) map[string]string {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]string, len(values))
	for _, v := range values {
		m[v.Lang] = strings.TrimSpace(v.Value)
	}
	return m
}

// safeArea calculates the area of a logo, treating negative dimensions as zero.
func safeArea(height, width int) int64 {
	if height <= 0 || width <= 0 {
		return 0
	}
	return int64(height) * int64(width)
}

// SelectBestLogo returns the URL of the largest logo (by area).
func SelectBestLogo(logos []Logo) string {
	if len(logos) == 0 {
		return ""
	}

	best := logos[0]
	bestArea := safeArea(best.Height, best.Width)

	for _, logo := range logos[1:] {
		area := safeArea(logo.Height, logo.Width)
		if area > bestArea {
			best = logo
			bestArea = area
		}
	}

	return strings.TrimSpace(best.URL)
}
