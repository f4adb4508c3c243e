package ports

import (
	"context"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// EntitySource supplies the entities a verification run covers.
type EntitySource interface {
	// Entities returns every entity to verify, in a stable order.
	Entities(ctx context.Context) ([]domain.Entity, error)
}

// ConfiguredMetadataStore serves the metadata an entity has registered with
// the federation. Read-only to the verification core.
type ConfiguredMetadataStore interface {
	// ConfiguredMetadata returns the registered metadata for an entity.
	// Returns domain.ErrEntityNotFound if the entity is unknown.
	ConfiguredMetadata(ctx context.Context, entity domain.Entity) (*domain.EntityMetadata, error)

	// Refresh reloads metadata from the source.
	Refresh(ctx context.Context) error
}

// RemoteMetadataFetcher fetches the metadata an entity publishes itself.
type RemoteMetadataFetcher interface {
	// RemoteMetadata fetches and parses the metadata published at the
	// entity's metadata URL. Returns ErrNoMetadataURL when none is known.
	RemoteMetadata(ctx context.Context, configured *domain.EntityMetadata) (*domain.EntityMetadata, error)
}

// MetadataProvider is the combined read-side the verification context needs.
type MetadataProvider interface {
	ConfiguredMetadataStore
	RemoteMetadataFetcher
}
