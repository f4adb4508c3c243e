package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

var (
	_ ports.EntitySource            = (*FederationStore)(nil)
	_ ports.ConfiguredMetadataStore = (*FederationStore)(nil)
)

// source loads the raw federation aggregate.
type source interface {
	// load returns the document, or nil data with no error when it has
	// not changed since the last successful load.
	load(ctx context.Context) ([]byte, error)
	// kind is the metrics label: "file" or "url".
	kind() string
	// String names the source in logs.
	String() string
}

// FederationStore serves the entities of a federation aggregate. It loads
// lazily on first use and keeps the last good copy when a refresh fails.
type FederationStore struct {
	src     source
	options *metadataOptions

	mu         sync.RWMutex
	loaded     bool
	entities   []domain.EntityMetadata
	byEntity   map[domain.Entity]int
	validUntil *time.Time
	lastError  error
}

func newFederationStore(src source, opts []MetadataOption) *FederationStore {
	return &FederationStore{src: src, options: newOptions(opts)}
}

// Refresh reloads the aggregate, verifies its signature when a verifier is
// configured, and applies the filters.
func (s *FederationStore) Refresh(ctx context.Context) error {
	data, err := s.src.load(ctx)
	if err != nil {
		return s.refreshFailed(fmt.Errorf("load metadata: %w", err))
	}
	if data == nil {
		s.mu.Lock()
		s.lastError = nil
		s.mu.Unlock()
		return nil
	}

	if s.options.signatureVerifier != nil {
		data, err = s.options.signatureVerifier.Verify(data)
		if err != nil {
			return s.refreshFailed(&domain.AppError{
				Code:    domain.ErrCodeSignatureInvalid,
				Message: "verify metadata signature",
				Cause:   err,
			})
		}
	}

	entities, validUntil, err := ParseMetadata(data, s.options.clock.Now())
	if err != nil {
		if errors.Is(err, domain.ErrMetadataExpired) {
			s.options.logger.Warn("metadata expired",
				zap.String("source", s.src.String()),
				zap.Error(err))
		}
		return s.refreshFailed(fmt.Errorf("parse metadata: %w", err))
	}

	entities, failures := applyFiltersAndCollectFailures(entities, s.options)
	if len(failures) > 0 {
		return s.refreshFailed(fmt.Errorf("no entities match filters: %s", strings.Join(failures, ", ")))
	}
	resolveMetadataURLs(entities, s.options.metadataURLs)

	index := make(map[domain.Entity]int, len(entities))
	for i := range entities {
		// First descriptor wins on duplicate entity IDs.
		if _, dup := index[entities[i].Entity()]; !dup {
			index[entities[i].Entity()] = i
		}
	}

	s.mu.Lock()
	s.entities = entities
	s.byEntity = index
	s.validUntil = validUntil
	s.loaded = true
	s.lastError = nil
	s.mu.Unlock()

	if s.options.metricsRecorder != nil {
		s.options.metricsRecorder.RecordMetadataRefresh(s.src.kind(), true, len(index))
	}
	s.options.logger.Info("federation metadata loaded",
		zap.String("source", s.src.String()),
		zap.Int("entity_count", len(index)))
	return nil
}

func (s *FederationStore) refreshFailed(err error) error {
	s.mu.Lock()
	s.lastError = err
	s.mu.Unlock()
	if s.options.metricsRecorder != nil {
		s.options.metricsRecorder.RecordMetadataRefresh(s.src.kind(), false, 0)
	}
	return err
}

func (s *FederationStore) ensureLoaded(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}
	return s.Refresh(ctx)
}

// Entities returns every entity in document order. An entity with both an
// IdP and an SP role is listed twice, once per type.
func (s *FederationStore) Entities(ctx context.Context) ([]domain.Entity, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Entity, 0, len(s.byEntity))
	for i := range s.entities {
		e := s.entities[i].Entity()
		if s.byEntity[e] == i {
			out = append(out, e)
		}
	}
	return out, nil
}

// ConfiguredMetadata returns a copy of the registered metadata of entity.
func (s *FederationStore) ConfiguredMetadata(ctx context.Context, entity domain.Entity) (*domain.EntityMetadata, error) {
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byEntity[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrEntityNotFound, entity)
	}
	md := s.entities[i]
	return &md, nil
}

// ValidUntil returns the aggregate's validUntil, if any.
func (s *FederationStore) ValidUntil() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.validUntil
}

// LastError returns the error of the last refresh, nil after a success.
func (s *FederationStore) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}
