package metadata

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/crewjam/saml"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// rawEntityDescriptor holds what crewjam/saml does not expose: mdui:UIInfo
// on the role descriptors, mdrpi:RegistrationInfo and all ContactPersons.
type rawEntityDescriptor struct {
	EntityID   string `xml:"entityID,attr"`
	Extensions struct {
		RegistrationInfo *domain.RegistrationInfo `xml:"urn:oasis:names:tc:SAML:metadata:rpi RegistrationInfo"`
	} `xml:"urn:oasis:names:tc:SAML:2.0:metadata Extensions"`
	IDPSSODescriptors []rawRoleDescriptor `xml:"urn:oasis:names:tc:SAML:2.0:metadata IDPSSODescriptor"`
	SPSSODescriptors  []rawRoleDescriptor `xml:"urn:oasis:names:tc:SAML:2.0:metadata SPSSODescriptor"`
	ContactPersons    []rawContactPerson  `xml:"urn:oasis:names:tc:SAML:2.0:metadata ContactPerson"`
}

type rawRoleDescriptor struct {
	Extensions struct {
		UIInfo *domain.UIInfo `xml:"urn:oasis:names:tc:SAML:metadata:ui UIInfo"`
	} `xml:"urn:oasis:names:tc:SAML:2.0:metadata Extensions"`
}

// crewjam/saml keeps only one ContactPerson per EntityDescriptor.
type rawContactPerson struct {
	ContactType    string   `xml:"contactType,attr"`
	GivenName      string   `xml:"urn:oasis:names:tc:SAML:2.0:metadata GivenName"`
	SurName        string   `xml:"urn:oasis:names:tc:SAML:2.0:metadata SurName"`
	EmailAddresses []string `xml:"urn:oasis:names:tc:SAML:2.0:metadata EmailAddress"`
}

type rawEntitiesDescriptor struct {
	EntityDescriptors   []rawEntityDescriptor   `xml:"urn:oasis:names:tc:SAML:2.0:metadata EntityDescriptor"`
	EntitiesDescriptors []rawEntitiesDescriptor `xml:"urn:oasis:names:tc:SAML:2.0:metadata EntitiesDescriptor"`
}

// rawMetadataValidity reads validUntil from the document element.
type rawMetadataValidity struct {
	ValidUntil string `xml:"validUntil,attr"`
}

// ParseMetadata parses SAML metadata XML, either a single EntityDescriptor
// or an aggregate EntitiesDescriptor, and returns one EntityMetadata per
// IdP and per SP role in document order. An entity with both roles yields
// two values. Entities with neither role are ignored.
//
// Returns ErrMetadataExpired if the document's validUntil is not after now.
// Also returns the validUntil timestamp if present (nil otherwise).
func ParseMetadata(data []byte, now time.Time) ([]domain.EntityMetadata, *time.Time, error) {
	validUntil, err := extractAndValidateExpiry(data, now)
	if err != nil {
		return nil, nil, err
	}

	extensions := parseAllExtensions(data)

	var entities saml.EntitiesDescriptor
	if err := xml.Unmarshal(data, &entities); err == nil && entities.XMLName.Local == "EntitiesDescriptor" {
		out := collectEntities(&entities, extensions, validUntil)
		if len(out) == 0 {
			return nil, nil, fmt.Errorf("no IdP or SP descriptors found in aggregate metadata")
		}
		return out, validUntil, nil
	}

	var ed saml.EntityDescriptor
	if err := xml.Unmarshal(data, &ed); err != nil {
		return nil, nil, fmt.Errorf("unmarshal xml: %w", err)
	}
	if ed.EntityID == "" {
		return nil, nil, fmt.Errorf("missing entityID attribute")
	}
	out := extractEntityMetadata(&ed, extensions[ed.EntityID], validUntil)
	if len(out) == 0 {
		return nil, nil, fmt.Errorf("entity %s has no IDPSSODescriptor or SPSSODescriptor", ed.EntityID)
	}
	return out, validUntil, nil
}

// extractAndValidateExpiry extracts validUntil from the document element
// and rejects expired metadata.
func extractAndValidateExpiry(data []byte, now time.Time) (*time.Time, error) {
	var validity rawMetadataValidity
	if err := xml.Unmarshal(data, &validity); err != nil {
		// If we can't parse, let the main parser handle the error
		return nil, nil
	}
	if validity.ValidUntil == "" {
		return nil, nil
	}

	validUntil, err := time.Parse(time.RFC3339, validity.ValidUntil)
	if err != nil {
		return nil, fmt.Errorf("invalid validUntil format %q: %w", validity.ValidUntil, err)
	}
	if domain.IsMetadataExpired(validUntil, now) {
		return nil, fmt.Errorf("%w: validUntil %s is in the past", domain.ErrMetadataExpired, validity.ValidUntil)
	}
	return &validUntil, nil
}

// parseAllExtensions indexes the raw extension data by entityID.
func parseAllExtensions(data []byte) map[string]*rawEntityDescriptor {
	result := make(map[string]*rawEntityDescriptor)

	var entities rawEntitiesDescriptor
	if err := xml.Unmarshal(data, &entities); err == nil {
		indexExtensions(&entities, result)
		if len(result) > 0 {
			return result
		}
	}

	var entity rawEntityDescriptor
	if err := xml.Unmarshal(data, &entity); err == nil && entity.EntityID != "" {
		result[entity.EntityID] = &entity
	}
	return result
}

func indexExtensions(entities *rawEntitiesDescriptor, result map[string]*rawEntityDescriptor) {
	for i := range entities.EntityDescriptors {
		ed := &entities.EntityDescriptors[i]
		result[ed.EntityID] = ed
	}
	for i := range entities.EntitiesDescriptors {
		indexExtensions(&entities.EntitiesDescriptors[i], result)
	}
}

// collectEntities walks an aggregate, nested EntitiesDescriptors included.
func collectEntities(entities *saml.EntitiesDescriptor, extensions map[string]*rawEntityDescriptor, validUntil *time.Time) []domain.EntityMetadata {
	var out []domain.EntityMetadata
	for i := range entities.EntityDescriptors {
		ed := &entities.EntityDescriptors[i]
		if ed.EntityID == "" {
			continue
		}
		out = append(out, extractEntityMetadata(ed, extensions[ed.EntityID], validUntil)...)
	}
	for i := range entities.EntitiesDescriptors {
		out = append(out, collectEntities(&entities.EntitiesDescriptors[i], extensions, validUntil)...)
	}
	return out
}

// extractEntityMetadata builds one EntityMetadata per supported role.
func extractEntityMetadata(ed *saml.EntityDescriptor, raw *rawEntityDescriptor, validUntil *time.Time) []domain.EntityMetadata {
	var out []domain.EntityMetadata

	if len(ed.IDPSSODescriptors) > 0 {
		idp := ed.IDPSSODescriptors[0]
		md := baseMetadata(ed, raw, domain.EntityTypeIdentityProvider, validUntil)
		md.Endpoints = append(md.Endpoints, endpoints(domain.EndpointSingleSignOn, idp.SingleSignOnServices)...)
		md.Endpoints = append(md.Endpoints, endpoints(domain.EndpointSingleLogout, idp.SingleLogoutServices)...)
		md.Endpoints = append(md.Endpoints, endpoints(domain.EndpointArtifactResolution, idp.ArtifactResolutionServices)...)
		md.SigningCertificates, md.EncryptionCertificates = certificates(idp.KeyDescriptors)
		if raw != nil {
			applyUIInfo(&md, raw.IDPSSODescriptors)
		}
		out = append(out, md)
	}

	if len(ed.SPSSODescriptors) > 0 {
		sp := ed.SPSSODescriptors[0]
		md := baseMetadata(ed, raw, domain.EntityTypeServiceProvider, validUntil)
		md.Endpoints = append(md.Endpoints, indexedEndpoints(domain.EndpointAssertionConsumerService, sp.AssertionConsumerServices)...)
		md.Endpoints = append(md.Endpoints, endpoints(domain.EndpointSingleLogout, sp.SingleLogoutServices)...)
		md.Endpoints = append(md.Endpoints, indexedEndpoints(domain.EndpointArtifactResolution, sp.ArtifactResolutionServices)...)
		md.SigningCertificates, md.EncryptionCertificates = certificates(sp.KeyDescriptors)
		if raw != nil {
			applyUIInfo(&md, raw.SPSSODescriptors)
		}
		out = append(out, md)
	}

	return out
}

func baseMetadata(ed *saml.EntityDescriptor, raw *rawEntityDescriptor, entityType domain.EntityType, validUntil *time.Time) domain.EntityMetadata {
	md := domain.EntityMetadata{
		EntityID:   ed.EntityID,
		Type:       entityType,
		ValidUntil: validUntil,
	}
	if !ed.ValidUntil.IsZero() {
		v := ed.ValidUntil
		md.ValidUntil = &v
	}
	if len(ed.AdditionalMetadataLocations) > 0 {
		md.MetadataURL = strings.TrimSpace(ed.AdditionalMetadataLocations[0])
	}

	if ed.Organization != nil {
		if len(ed.Organization.OrganizationNames) > 0 {
			md.OrganizationName = strings.TrimSpace(ed.Organization.OrganizationNames[0].Value)
		}
		if len(ed.Organization.OrganizationURLs) > 0 {
			md.OrganizationURL = strings.TrimSpace(ed.Organization.OrganizationURLs[0].Value)
		}
		if len(ed.Organization.OrganizationDisplayNames) > 0 {
			md.DisplayName = strings.TrimSpace(ed.Organization.OrganizationDisplayNames[0].Value)
		}
	}

	if raw == nil {
		return md
	}
	for _, c := range raw.ContactPersons {
		contact := domain.Contact{
			Type:      c.ContactType,
			GivenName: strings.TrimSpace(c.GivenName),
			SurName:   strings.TrimSpace(c.SurName),
		}
		if len(c.EmailAddresses) > 0 {
			contact.Email = strings.TrimPrefix(strings.TrimSpace(c.EmailAddresses[0]), "mailto:")
		}
		md.Contacts = append(md.Contacts, contact)
	}
	if reg := raw.Extensions.RegistrationInfo; reg != nil {
		md.RegistrationAuthority = reg.RegistrationAuthority
		if reg.RegistrationInstant != "" {
			if t, err := time.Parse(time.RFC3339, reg.RegistrationInstant); err == nil {
				md.RegistrationInstant = t
			}
		}
	}
	return md
}

// applyUIInfo prefers mdui:DisplayName over OrganizationDisplayName.
func applyUIInfo(md *domain.EntityMetadata, roles []rawRoleDescriptor) {
	if len(roles) == 0 || roles[0].Extensions.UIInfo == nil {
		return
	}
	ui := roles[0].Extensions.UIInfo
	if len(ui.DisplayNames) > 0 {
		md.DisplayNames = domain.LocalizedValuesToMap(ui.DisplayNames)
		md.DisplayName = domain.SelectLocalizedValue(ui.DisplayNames, "en")
	}
	if len(ui.Logos) > 0 {
		md.LogoURL = domain.SelectBestLogo(ui.Logos)
	}
}

func endpoints(kind domain.EndpointKind, in []saml.Endpoint) []domain.Endpoint {
	out := make([]domain.Endpoint, 0, len(in))
	for _, e := range in {
		out = append(out, domain.Endpoint{Kind: kind, Binding: e.Binding, Location: strings.TrimSpace(e.Location)})
	}
	return out
}

func indexedEndpoints(kind domain.EndpointKind, in []saml.IndexedEndpoint) []domain.Endpoint {
	out := make([]domain.Endpoint, 0, len(in))
	for _, e := range in {
		out = append(out, domain.Endpoint{Kind: kind, Binding: e.Binding, Location: strings.TrimSpace(e.Location)})
	}
	return out
}

// certificates splits KeyDescriptors by use. A KeyDescriptor without use
// counts for both signing and encryption.
func certificates(kds []saml.KeyDescriptor) (signing, encryption []string) {
	for _, kd := range kds {
		for _, cert := range kd.KeyInfo.X509Data.X509Certificates {
			data := strings.Join(strings.Fields(cert.Data), "")
			if data == "" {
				continue
			}
			if kd.Use == "signing" || kd.Use == "" {
				signing = append(signing, data)
			}
			if kd.Use == "encryption" || kd.Use == "" {
				encryption = append(encryption, data)
			}
		}
	}
	return signing, encryption
}
