package verification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

// Clock provides time functionality for testing.
type Clock interface {
	Now() time.Time
}

// RealClock uses the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

// Context bundles everything a test may consult about one entity.
// A Context is built per entity and per run; it is not shared across runs.
type Context struct {
	// Entity is the entity under verification.
	Entity domain.Entity

	// Configured is the metadata registered with the federation.
	Configured *domain.EntityMetadata

	// Certificates fetches TLS certificates of endpoint hosts.
	Certificates ports.CertificateService

	// Logger is scoped to the entity.
	Logger *zap.Logger

	// Clock is used for all expiry calculations.
	Clock Clock

	remote      ports.RemoteMetadataFetcher
	remoteOnce  sync.Once
	remoteMD    *domain.EntityMetadata
	remoteErr   error
	blacklist   *Blacklist
	testTimeout time.Duration
}

// NewContext builds a context directly. The Runner uses a ContextFactory
// instead; this is for tests and one-off checks.
func NewContext(entity domain.Entity, configured *domain.EntityMetadata, opts ...ContextOption) *Context {
	vc := &Context{
		Entity:     entity,
		Configured: configured,
		Logger:     zap.NewNop(),
		Clock:      RealClock{},
	}
	for _, opt := range opts {
		opt(vc)
	}
	return vc
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithRemoteFetcher sets the fetcher used by RemoteMetadata.
func WithRemoteFetcher(f ports.RemoteMetadataFetcher) ContextOption {
	return func(vc *Context) { vc.remote = f }
}

// WithCertificateService sets the TLS certificate service.
func WithCertificateService(s ports.CertificateService) ContextOption {
	return func(vc *Context) { vc.Certificates = s }
}

// WithContextLogger sets the context logger.
func WithContextLogger(l *zap.Logger) ContextOption {
	return func(vc *Context) {
		if l != nil {
			vc.Logger = l
		}
	}
}

// WithContextClock sets the clock.
func WithContextClock(c Clock) ContextOption {
	return func(vc *Context) {
		if c != nil {
			vc.Clock = c
		}
	}
}

// WithTestTimeout bounds each Verify call.
func WithTestTimeout(d time.Duration) ContextOption {
	return func(vc *Context) { vc.testTimeout = d }
}

// WithBlacklist applies a blacklist to the tests run with this context.
func WithBlacklist(b *Blacklist) ContextOption {
	return func(vc *Context) { vc.blacklist = b }
}

// Now returns the context clock's current time.
func (c *Context) Now() time.Time {
	if c.Clock == nil {
		return time.Now()
	}
	return c.Clock.Now()
}

// HasMetadataURL reports whether the entity's own metadata location is known.
func (c *Context) HasMetadataURL() bool {
	return c.Configured != nil && c.Configured.MetadataURL != ""
}

// RemoteMetadata fetches the entity's self-published metadata once per
// context and memoises the outcome, including a failure.
func (c *Context) RemoteMetadata(ctx context.Context) (*domain.EntityMetadata, error) {
	c.remoteOnce.Do(func() {
		if c.remote == nil {
			c.remoteErr = fmt.Errorf("no remote metadata fetcher configured")
			return
		}
		if !c.HasMetadataURL() {
			c.remoteErr = domain.ErrNoMetadataURL
			return
		}
		c.remoteMD, c.remoteErr = c.remote.RemoteMetadata(ctx, c.Configured)
	})
	return c.remoteMD, c.remoteErr
}

func (c *Context) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Context) isBlacklisted(name string) bool {
	return c.blacklist.IsBlacklisted(c.Entity, name)
}

// ContextFactory builds a Context per entity from the metadata provider.
type ContextFactory struct {
	metadata    ports.MetadataProvider
	certs       ports.CertificateService
	logger      *zap.Logger
	clock       Clock
	testTimeout time.Duration
}

// NewContextFactory creates a factory. logger and clock may be nil.
func NewContextFactory(metadata ports.MetadataProvider, certs ports.CertificateService, logger *zap.Logger, clock Clock) *ContextFactory {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &ContextFactory{
		metadata: metadata,
		certs:    certs,
		logger:   logger,
		clock:    clock,
	}
}

// SetTestTimeout bounds each Verify call of contexts built afterwards.
func (f *ContextFactory) SetTestTimeout(d time.Duration) {
	f.testTimeout = d
}

// NewContext loads the configured metadata for entity and builds its context.
func (f *ContextFactory) NewContext(ctx context.Context, entity domain.Entity, blacklist *Blacklist) (*Context, error) {
	configured, err := f.metadata.ConfiguredMetadata(ctx, entity)
	if err != nil {
		return nil, fmt.Errorf("load configured metadata for %s: %w", entity, err)
	}
	return NewContext(entity, configured,
		WithRemoteFetcher(f.metadata),
		WithCertificateService(f.certs),
		WithContextLogger(f.logger.With(
			zap.String("entity_id", string(entity.ID)),
			zap.String("entity_type", string(entity.Type)))),
		WithContextClock(f.clock),
		WithTestTimeout(f.testTimeout),
		WithBlacklist(blacklist),
	), nil
}
