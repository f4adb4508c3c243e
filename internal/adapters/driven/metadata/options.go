package metadata

import (
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

// MetadataOption is a functional option for configuring metadata stores.
type MetadataOption func(*metadataOptions)

// Clock provides time functionality for testing.
type Clock interface {
	Now() time.Time
}

// RealClock uses the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time { return time.Now() }

type metadataOptions struct {
	entityFilter                string
	registrationAuthorityFilter string
	entityTypes                 map[string]bool
	metadataURLs                map[string]string
	signatureVerifier           ports.SignatureVerifier
	httpClient                  *retryablehttp.Client
	logger                      *zap.Logger
	metricsRecorder             ports.MetricsRecorder
	clock                       Clock
}

func newOptions(opts []MetadataOption) *metadataOptions {
	options := &metadataOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}
	if options.clock == nil {
		options.clock = RealClock{}
	}
	return options
}

// WithEntityFilter returns an option that filters entities by entity ID pattern.
// Supports glob-like patterns: "*substring*", "prefix*", "*suffix".
func WithEntityFilter(pattern string) MetadataOption {
	return func(o *metadataOptions) {
		o.entityFilter = pattern
	}
}

// WithRegistrationAuthorityFilter returns an option that keeps only entities
// registered by a matching federation. Supports comma-separated patterns.
func WithRegistrationAuthorityFilter(pattern string) MetadataOption {
	return func(o *metadataOptions) {
		o.registrationAuthorityFilter = pattern
	}
}

// WithEntityTypes restricts the store to the given entity types ("idp", "sp").
// Empty means both.
func WithEntityTypes(types ...string) MetadataOption {
	return func(o *metadataOptions) {
		if len(types) == 0 {
			o.entityTypes = nil
			return
		}
		o.entityTypes = make(map[string]bool, len(types))
		for _, t := range types {
			o.entityTypes[t] = true
		}
	}
}

// WithMetadataURLs sets where entities publish their own metadata, keyed by
// entity ID. These override AdditionalMetadataLocation and the https
// entity ID fallback.
func WithMetadataURLs(urls map[string]string) MetadataOption {
	return func(o *metadataOptions) {
		o.metadataURLs = urls
	}
}

// WithSignatureVerifier returns an option that enables signature verification.
// When set, metadata will be verified against the trusted certificates before parsing.
func WithSignatureVerifier(verifier ports.SignatureVerifier) MetadataOption {
	return func(o *metadataOptions) {
		o.signatureVerifier = verifier
	}
}

// WithHTTPClient sets the HTTP client used by URL sources and the remote
// fetcher.
func WithHTTPClient(c *retryablehttp.Client) MetadataOption {
	return func(o *metadataOptions) {
		o.httpClient = c
	}
}

// WithLogger returns an option that sets the logger for the metadata store.
func WithLogger(logger *zap.Logger) MetadataOption {
	return func(o *metadataOptions) {
		o.logger = logger
	}
}

// WithMetricsRecorder returns an option that sets the metrics recorder.
// When set, metadata refresh operations will be recorded as metrics.
func WithMetricsRecorder(recorder ports.MetricsRecorder) MetadataOption {
	return func(o *metadataOptions) {
		o.metricsRecorder = recorder
	}
}

// WithClock returns an option that sets a custom clock for time operations.
func WithClock(clock Clock) MetadataOption {
	return func(o *metadataOptions) {
		o.clock = clock
	}
}
