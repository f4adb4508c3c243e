//go:build unit

package verification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

type countingFetcher struct {
	mu    sync.Mutex
	calls int
	md    *domain.EntityMetadata
	err   error
}

func (f *countingFetcher) RemoteMetadata(context.Context, *domain.EntityMetadata) (*domain.EntityMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.md, f.err
}

func TestContext_RemoteMetadataIsMemoised(t *testing.T) {
	fetcher := &countingFetcher{err: errBoom}
	vc := NewContext(domain.NewServiceProvider("sp"),
		&domain.EntityMetadata{EntityID: "sp", MetadataURL: "https://sp.example.org/md"},
		WithRemoteFetcher(fetcher))

	for i := 0; i < 3; i++ {
		if _, err := vc.RemoteMetadata(context.Background()); !errors.Is(err, errBoom) {
			t.Fatalf("RemoteMetadata() error = %v, want %v", err, errBoom)
		}
	}
	if fetcher.calls != 1 {
		t.Errorf("fetcher called %d times, want 1", fetcher.calls)
	}
}

func TestContext_RemoteMetadataWithoutURL(t *testing.T) {
	fetcher := &countingFetcher{}
	vc := NewContext(domain.NewServiceProvider("sp"), &domain.EntityMetadata{EntityID: "sp"},
		WithRemoteFetcher(fetcher))

	if _, err := vc.RemoteMetadata(context.Background()); !errors.Is(err, domain.ErrNoMetadataURL) {
		t.Errorf("RemoteMetadata() error = %v, want ErrNoMetadataURL", err)
	}
	if fetcher.calls != 0 {
		t.Errorf("fetcher called %d times, want 0", fetcher.calls)
	}
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestContext_NowUsesClock(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	vc := NewContext(domain.NewIdentityProvider("idp"), nil, WithContextClock(fixedClock{at}))
	if !vc.Now().Equal(at) {
		t.Errorf("Now() = %v, want %v", vc.Now(), at)
	}
}
