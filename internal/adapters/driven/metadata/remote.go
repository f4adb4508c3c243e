package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/adapters/driven/httpclient"
	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

var _ ports.RemoteMetadataFetcher = (*RemoteFetcher)(nil)

// RemoteFetcher downloads the metadata an entity publishes itself.
// Remote documents are not signature checked; they are compared against the
// registered copy instead.
type RemoteFetcher struct {
	client *retryablehttp.Client
	logger *zap.Logger
	clock  Clock
}

// NewRemoteFetcher creates a fetcher. Only WithHTTPClient, WithLogger and
// WithClock apply.
func NewRemoteFetcher(opts ...MetadataOption) *RemoteFetcher {
	o := newOptions(opts)
	client := o.httpClient
	if client == nil {
		client = httpclient.New(httpclient.Options{Logger: o.logger})
	}
	return &RemoteFetcher{client: client, logger: o.logger, clock: o.clock}
}

// RemoteMetadata fetches configured.MetadataURL and returns the descriptor
// of the same entity ID and type. When the document holds no such
// descriptor, a single descriptor of the same type is returned so the
// caller can report the entity ID mismatch.
func (f *RemoteFetcher) RemoteMetadata(ctx context.Context, configured *domain.EntityMetadata) (*domain.EntityMetadata, error) {
	if configured == nil || configured.MetadataURL == "" {
		return nil, domain.ErrNoMetadataURL
	}
	target := configured.MetadataURL

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)
	req.Header.Set("Accept", "application/samlmetadata+xml, application/xml;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", target, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	entities, _, err := ParseMetadata(data, f.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}

	md, err := selectDescriptor(entities, configured.Entity())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", target, err)
	}
	f.logger.Debug("remote metadata fetched",
		zap.String("entity_id", configured.EntityID),
		zap.String("url", target))
	return md, nil
}

func selectDescriptor(entities []domain.EntityMetadata, want domain.Entity) (*domain.EntityMetadata, error) {
	var sameType []int
	for i := range entities {
		if entities[i].Type != want.Type {
			continue
		}
		if entities[i].Entity() == want {
			md := entities[i]
			return &md, nil
		}
		sameType = append(sameType, i)
	}
	if len(sameType) == 1 {
		md := entities[sameType[0]]
		return &md, nil
	}
	return nil, fmt.Errorf("%w: no %s descriptor for %s", domain.ErrEntityNotFound, want.Type.Label(), want.ID)
}
