package metadata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/philiph/saml-fedcheck/internal/adapters/driven/httpclient"
)

// maxMetadataSize bounds a downloaded metadata document.
const maxMetadataSize = 256 << 20

// NewURLFederationStore creates a store downloading the aggregate from url.
// Conditional requests (ETag, Last-Modified) avoid re-parsing an unchanged
// aggregate on Refresh.
func NewURLFederationStore(url string, opts ...MetadataOption) *FederationStore {
	options := newOptions(opts)
	client := options.httpClient
	if client == nil {
		client = httpclient.New(httpclient.Options{Logger: options.logger})
	}
	s := &FederationStore{src: &urlSource{url: url, client: client}, options: options}
	return s
}

type urlSource struct {
	url    string
	client *retryablehttp.Client

	mu           sync.Mutex
	etag         string
	lastModified string
}

func (u *urlSource) load(ctx context.Context) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)

	u.mu.Lock()
	if u.etag != "" {
		req.Header.Set("If-None-Match", u.etag)
	}
	if u.lastModified != "" {
		req.Header.Set("If-Modified-Since", u.lastModified)
	}
	u.mu.Unlock()

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metadata: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	u.mu.Lock()
	u.etag = resp.Header.Get("ETag")
	u.lastModified = resp.Header.Get("Last-Modified")
	u.mu.Unlock()
	return data, nil
}

func (u *urlSource) kind() string { return "url" }

func (u *urlSource) String() string { return u.url }
