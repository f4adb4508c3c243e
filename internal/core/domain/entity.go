package domain

import (
	"fmt"
	"strings"
)

// EntityID is the free-form identifier of a federation entity (usually its SAML entityID).
type EntityID string

// EntityType distinguishes identity providers from service providers.
type EntityType string

const (
	EntityTypeIdentityProvider EntityType = "idp"
	EntityTypeServiceProvider  EntityType = "sp"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return t == EntityTypeIdentityProvider || t == EntityTypeServiceProvider
}

// Label returns the long human form ("IdentityProvider", "ServiceProvider").
func (t EntityType) Label() string {
	switch t {
	case EntityTypeIdentityProvider:
		return "IdentityProvider"
	case EntityTypeServiceProvider:
		return "ServiceProvider"
	default:
		return string(t)
	}
}

// ParseEntityType accepts the short and long forms, case-insensitively.
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idp", "identityprovider", "saml20-idp":
		return EntityTypeIdentityProvider, nil
	case "sp", "serviceprovider", "saml20-sp":
		return EntityTypeServiceProvider, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", s)
	}
}

// Entity is the subject of verification. It is an immutable value; two
// entities are equal when both ID and Type are equal, so Entity can be used
// as a map key.
type Entity struct {
	ID   EntityID
	Type EntityType
}

// NewIdentityProvider returns an IdP entity.
func NewIdentityProvider(id string) Entity {
	return Entity{ID: EntityID(id), Type: EntityTypeIdentityProvider}
}

// NewServiceProvider returns an SP entity.
func NewServiceProvider(id string) Entity {
	return Entity{ID: EntityID(id), Type: EntityTypeServiceProvider}
}

// String renders the entity as "SP(id)" or "IdP(id)".
func (e Entity) String() string {
	switch e.Type {
	case EntityTypeIdentityProvider:
		return fmt.Sprintf("IdP(%s)", e.ID)
	case EntityTypeServiceProvider:
		return fmt.Sprintf("SP(%s)", e.ID)
	default:
		return fmt.Sprintf("%s(%s)", e.Type, e.ID)
	}
}
