//go:build unit || integration

package reportstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

var base = time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

func newReport(entity domain.Entity, testName, issueKey string, at time.Time) *domain.IssueReport {
	return domain.NewIssueReport(domain.ReportID(uuid.NewString()), entity, testName, issueKey, at)
}

// testRepositoryContract checks the behavior every ReportRepository shares.
func testRepositoryContract(t *testing.T, newRepo func(t *testing.T) ports.ReportRepository) {
	ctx := context.Background()
	sp := domain.NewServiceProvider("https://sp.example.org")
	idp := domain.NewIdentityProvider("https://sp.example.org")

	t.Run("none found", func(t *testing.T) {
		repo := newRepo(t)
		got, err := repo.FindMostRecentlyReported(ctx, sp, "tls.certificate-expiry")
		if err != nil || got != nil {
			t.Errorf("FindMostRecentlyReported() = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("most recent wins", func(t *testing.T) {
		repo := newRepo(t)
		for i, key := range []string{"FED-1", "FED-3", "FED-2"} {
			at := base.Add(time.Duration([]int{0, 48, 24}[i]) * time.Hour)
			if err := repo.Add(ctx, newReport(sp, "tls.certificate-expiry", key, at)); err != nil {
				t.Fatalf("Add(%s) error = %v", key, err)
			}
		}
		got, err := repo.FindMostRecentlyReported(ctx, sp, "tls.certificate-expiry")
		if err != nil {
			t.Fatalf("FindMostRecentlyReported() error = %v", err)
		}
		if got == nil || got.IssueKey != "FED-3" || !got.ReportedOn.Equal(base.Add(48*time.Hour)) {
			t.Errorf("FindMostRecentlyReported() = %+v, want FED-3", got)
		}
		if got.Entity() != sp || got.TestName != "tls.certificate-expiry" {
			t.Errorf("report key = %v %q", got.Entity(), got.TestName)
		}
	})

	t.Run("keyed by entity type and test", func(t *testing.T) {
		repo := newRepo(t)
		if err := repo.Add(ctx, newReport(sp, "tls.certificate-expiry", "FED-1", base)); err != nil {
			t.Fatal(err)
		}
		if got, _ := repo.FindMostRecentlyReported(ctx, idp, "tls.certificate-expiry"); got != nil {
			t.Errorf("IdP with same id found SP report %+v", got)
		}
		if got, _ := repo.FindMostRecentlyReported(ctx, sp, "metadata.completeness"); got != nil {
			t.Errorf("other test found report %+v", got)
		}
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		repo := newRepo(t)
		if err := repo.Add(ctx, newReport(sp, "tls.certificate-expiry", "FED-1", base)); err != nil {
			t.Fatal(err)
		}
		err := repo.Add(ctx, newReport(sp, "tls.certificate-expiry", "FED-1", base.Add(time.Hour)))
		if !errors.Is(err, domain.ErrDuplicateReport) {
			t.Errorf("Add() duplicate error = %v, want ErrDuplicateReport", err)
		}
		if domain.IsFatal(err) {
			t.Error("duplicate report must not be fatal")
		}
	})

	t.Run("duplicate id rejected across keys", func(t *testing.T) {
		repo := newRepo(t)
		first := newReport(sp, "tls.certificate-expiry", "FED-1", base)
		if err := repo.Add(ctx, first); err != nil {
			t.Fatal(err)
		}
		second := domain.NewIssueReport(first.ID, idp, "metadata.completeness", "FED-2", base)
		err := repo.Add(ctx, second)
		if !errors.Is(err, domain.ErrDuplicateReport) {
			t.Errorf("Add() reused id error = %v, want ErrDuplicateReport", err)
		}
		if got, _ := repo.FindMostRecentlyReported(ctx, idp, "metadata.completeness"); got != nil {
			t.Errorf("report with reused id was stored: %+v", got)
		}
	})

	t.Run("invalid id rejected", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Add(ctx, domain.NewIssueReport("not-a-uuid", sp, "tls.certificate-expiry", "FED-1", base))
		if !errors.Is(err, domain.ErrContractViolation) {
			t.Errorf("Add() error = %v, want ErrContractViolation", err)
		}
		if got, _ := repo.FindMostRecentlyReported(ctx, sp, "tls.certificate-expiry"); got != nil {
			t.Errorf("report with invalid id was stored: %+v", got)
		}
	})

	t.Run("concurrent adds", func(t *testing.T) {
		repo := newRepo(t)
		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repo.Add(ctx, newReport(sp, "tls.certificate-expiry", "FED-9", base))
			}()
		}
		wg.Wait()
		close(errs)

		var ok, dup int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrDuplicateReport):
				dup++
			default:
				t.Errorf("unexpected error %v", err)
			}
		}
		if ok != 1 || dup != 19 {
			t.Errorf("ok=%d dup=%d, want 1 and 19", ok, dup)
		}
	})
}
