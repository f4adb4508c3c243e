package metadata

import (
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

var _ ports.MetadataProvider = Provider{}

// Provider combines a registered-metadata store with a remote fetcher.
type Provider struct {
	ports.ConfiguredMetadataStore
	ports.RemoteMetadataFetcher
}

// NewProvider pairs store and fetcher.
func NewProvider(store ports.ConfiguredMetadataStore, fetcher ports.RemoteMetadataFetcher) Provider {
	return Provider{ConfiguredMetadataStore: store, RemoteMetadataFetcher: fetcher}
}
