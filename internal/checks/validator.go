package checks

import (
	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// Validatable produces completeness violations for an entity's metadata.
// Each violation is a short human phrase such as "DisplayName missing".
type Validatable interface {
	Violations(md *domain.EntityMetadata) []string
}

// ValidatableFunc adapts a function to Validatable.
type ValidatableFunc func(md *domain.EntityMetadata) []string

// Violations implements Validatable.
func (f ValidatableFunc) Violations(md *domain.EntityMetadata) []string {
	return f(md)
}

// ConfiguredMetadataValidator runs a fixed list of rules over configured
// metadata and collects their violations in rule order.
type ConfiguredMetadataValidator struct {
	rules []Validatable
}

// NewConfiguredMetadataValidator creates a validator from rules.
func NewConfiguredMetadataValidator(rules ...Validatable) *ConfiguredMetadataValidator {
	return &ConfiguredMetadataValidator{rules: rules}
}

// Validate returns every violation found. Nil metadata yields a single
// violation.
func (v *ConfiguredMetadataValidator) Validate(md *domain.EntityMetadata) []string {
	if md == nil {
		return []string{"metadata missing"}
	}
	var out []string
	for _, rule := range v.rules {
		out = append(out, rule.Violations(md)...)
	}
	return out
}

// DefaultMetadataValidator checks the elements a federation operator needs
// to contact and display an entity, plus the role endpoints.
func DefaultMetadataValidator() *ConfiguredMetadataValidator {
	return NewConfiguredMetadataValidator(
		requireField("DisplayName", func(md *domain.EntityMetadata) string { return md.DisplayName }),
		requireField("OrganizationName", func(md *domain.EntityMetadata) string { return md.OrganizationName }),
		requireField("OrganizationURL", func(md *domain.EntityMetadata) string { return md.OrganizationURL }),
		ValidatableFunc(func(md *domain.EntityMetadata) []string {
			if len(md.ContactsOfType("technical")) == 0 {
				return []string{"technical ContactPerson missing"}
			}
			return nil
		}),
		ValidatableFunc(roleEndpoints),
		ValidatableFunc(func(md *domain.EntityMetadata) []string {
			if md.Type == domain.EntityTypeIdentityProvider && len(md.SigningCertificates) == 0 {
				return []string{"signing KeyDescriptor missing"}
			}
			return nil
		}),
	)
}

func requireField(name string, get func(*domain.EntityMetadata) string) Validatable {
	return ValidatableFunc(func(md *domain.EntityMetadata) []string {
		if get(md) == "" {
			return []string{name + " missing"}
		}
		return nil
	})
}

func roleEndpoints(md *domain.EntityMetadata) []string {
	switch md.Type {
	case domain.EntityTypeIdentityProvider:
		if len(md.EndpointsOfKind(domain.EndpointSingleSignOn)) == 0 {
			return []string{"SingleSignOnService missing"}
		}
	case domain.EntityTypeServiceProvider:
		if len(md.EndpointsOfKind(domain.EndpointAssertionConsumerService)) == 0 {
			return []string{"AssertionConsumerService missing"}
		}
	}
	return nil
}
