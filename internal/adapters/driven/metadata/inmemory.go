package metadata

import (
	"context"
	"fmt"
	"sync"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

var (
	_ ports.EntitySource     = (*InMemoryMetadataStore)(nil)
	_ ports.MetadataProvider = (*InMemoryMetadataStore)(nil)
)

// InMemoryMetadataStore is a simple in-memory metadata provider for testing.
// Remote metadata is served from a second map keyed by entity.
type InMemoryMetadataStore struct {
	mu         sync.RWMutex
	configured []domain.EntityMetadata
	remote     map[domain.Entity]*domain.EntityMetadata
	remoteErr  map[domain.Entity]error
}

// NewInMemoryMetadataStore creates a store holding the given entities.
func NewInMemoryMetadataStore(entities ...domain.EntityMetadata) *InMemoryMetadataStore {
	return &InMemoryMetadataStore{
		configured: entities,
		remote:     make(map[domain.Entity]*domain.EntityMetadata),
		remoteErr:  make(map[domain.Entity]error),
	}
}

// SetRemote sets what RemoteMetadata returns for entity.
func (s *InMemoryMetadataStore) SetRemote(entity domain.Entity, md *domain.EntityMetadata, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remote[entity] = md
	s.remoteErr[entity] = err
}

// Entities returns the stored entities in insertion order.
func (s *InMemoryMetadataStore) Entities(context.Context) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Entity, 0, len(s.configured))
	for i := range s.configured {
		out = append(out, s.configured[i].Entity())
	}
	return out, nil
}

// ConfiguredMetadata returns a copy of the stored metadata.
func (s *InMemoryMetadataStore) ConfiguredMetadata(_ context.Context, entity domain.Entity) (*domain.EntityMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.configured {
		if s.configured[i].Entity() == entity {
			md := s.configured[i]
			return &md, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrEntityNotFound, entity)
}

// RemoteMetadata returns what SetRemote stored, or ErrNoMetadataURL.
func (s *InMemoryMetadataStore) RemoteMetadata(_ context.Context, configured *domain.EntityMetadata) (*domain.EntityMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e := configured.Entity()
	if err := s.remoteErr[e]; err != nil {
		return nil, err
	}
	if md, ok := s.remote[e]; ok && md != nil {
		cp := *md
		return &cp, nil
	}
	return nil, domain.ErrNoMetadataURL
}

// Refresh is a no-op for in-memory store.
func (s *InMemoryMetadataStore) Refresh(context.Context) error {
	return nil
}
