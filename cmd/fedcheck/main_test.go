//go:build unit

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	fixtures "github.com/philiph/saml-fedcheck/testfixtures/metadata"
)

// federation writes an aggregate with one IdP and one SP and returns its
// path together with the IdP signing certificate.
func federation(t *testing.T) (string, fixtures.Entity) {
	t.Helper()
	_, cert := fixtures.SelfSigned(t, "idp.test", time.Now().Add(365*24*time.Hour))
	idp := fixtures.Entity{EntityID: "urn:test:idp", IdP: true, SSO: "https://idp.test/sso", SigningCert: cert}
	sp := fixtures.Entity{EntityID: "urn:test:sp", SP: true, ACS: "https://sp.test/acs"}

	path := filepath.Join(t.TempDir(), "federation.xml")
	if err := os.WriteFile(path, fixtures.Aggregate(idp, sp), 0o600); err != nil {
		t.Fatal(err)
	}
	return path, idp
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fedcheck.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := newCLI()
	c.buildLogger = func(bool) (*zap.Logger, error) { return zap.NewNop(), nil }
	cmd := c.rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVerify_ReportsIncompleteEntities(t *testing.T) {
	metadataFile, _ := federation(t)
	cfg := writeConfig(t, fmt.Sprintf(`
federation:
  metadata_file: %s
suites: [metadata]
`, metadataFile))

	out, err := run(t, "verify", "--config", cfg, "--no-color")
	if err != nil {
		t.Fatalf("verify error = %v", err)
	}
	for _, want := range []string{
		"metadata.completeness",
		"Entity: IdP(urn:test:idp)",
		"Entity: SP(urn:test:sp)",
		"2 entities, 2 suites run, 0 skipped, 2 failed, 0 errors",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output misses %q:\n%s", want, out)
		}
	}
}

func TestVerify_FailOnFindings(t *testing.T) {
	metadataFile, _ := federation(t)
	cfg := writeConfig(t, fmt.Sprintf(`
federation:
  metadata_file: %s
  entity_types: [sp]
suites: [metadata]
`, metadataFile))

	out, err := run(t, "verify", "--config", cfg, "--no-color", "--fail-on-findings")
	var findings *findingsError
	if !errors.As(err, &findings) || findings.failures != 1 {
		t.Fatalf("verify error = %v, want one finding", err)
	}
	if got := exitCode(err); got != exitFindings {
		t.Errorf("exitCode = %d, want %d", got, exitFindings)
	}
	if strings.Contains(out, "urn:test:idp") {
		t.Errorf("IdP should be filtered out:\n%s", out)
	}
}

func TestVerify_RemoteMetadataConsistency(t *testing.T) {
	metadataFile, idp := federation(t)
	_, otherCert := fixtures.SelfSigned(t, "other.test", time.Now().Add(365*24*time.Hour))
	published := idp
	published.SigningCert = otherCert

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/samlmetadata+xml")
		_, _ = w.Write(fixtures.EntityDescriptor(published))
	}))
	defer srv.Close()

	textfile := filepath.Join(t.TempDir(), "fedcheck.prom")
	cfg := writeConfig(t, fmt.Sprintf(`
federation:
  metadata_file: %s
metadata_urls:
  "urn:test:idp": %s/metadata
suites: [metadata]
blacklist:
  global: [metadata.completeness]
metrics:
  textfile: %s
`, metadataFile, srv.URL, textfile))

	out, err := run(t, "verify", "--config", cfg, "--no-color")
	if err != nil {
		t.Fatalf("verify error = %v", err)
	}
	if !strings.Contains(out, "metadata.remote-consistency") || !strings.Contains(out, "IdP(urn:test:idp)") {
		t.Errorf("expected a remote consistency failure for the IdP:\n%s", out)
	}
	if strings.Contains(out, "SP(urn:test:sp)") {
		t.Errorf("SP should pass:\n%s", out)
	}

	prom, err := os.ReadFile(textfile)
	if err != nil {
		t.Fatalf("metrics textfile: %v", err)
	}
	for _, want := range []string{
		`fedcheck_suite_runs_total{result="failed",suite="metadata"} 1`,
		`fedcheck_metadata_refresh_total{result="success",source="file"} 1`,
		`fedcheck_metadata_entity_count 2`,
	} {
		if !strings.Contains(string(prom), want) {
			t.Errorf("metrics miss %q:\n%s", want, prom)
		}
	}
}

func TestVerify_ConfigErrorsAreFatal(t *testing.T) {
	metadataFile, _ := federation(t)
	tests := []struct {
		name   string
		config string
		args   []string
	}{
		{
			name:   "missing config file",
			config: "",
		},
		{
			name:   "unknown suite",
			config: fmt.Sprintf("federation: {metadata_file: %s}\nsuites: [nope]\n", metadataFile),
		},
		{
			name:   "unknown blacklist name",
			config: fmt.Sprintf("federation: {metadata_file: %s}\nsuites: [tls]\nblacklist: {global: [tls.nope]}\n", metadataFile),
		},
		{
			name:   "unknown reporter",
			config: fmt.Sprintf("federation: {metadata_file: %s}\nsuites: [tls]\n", metadataFile),
			args:   []string{"--reporter", "email"},
		},
		{
			name:   "issue tracker reporter without section",
			config: fmt.Sprintf("federation: {metadata_file: %s}\nsuites: [tls]\n", metadataFile),
			args:   []string{"--reporter", "issue-tracker"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "absent.yaml")
			if tt.config != "" {
				path = writeConfig(t, tt.config)
			}
			_, err := run(t, append([]string{"verify", "--config", path}, tt.args...)...)
			if err == nil {
				t.Fatal("verify succeeded, want error")
			}
			if got := exitCode(err); got != exitFatal {
				t.Errorf("exitCode(%v) = %d, want %d", err, got, exitFatal)
			}
		})
	}
}

func TestVerify_MetadataLoadFailureIsNotFatal(t *testing.T) {
	cfg := writeConfig(t, "federation: {metadata_file: /nonexistent/federation.xml}\nsuites: [tls]\n")
	_, err := run(t, "verify", "--config", cfg)
	if err == nil {
		t.Fatal("verify succeeded, want error")
	}
	if got := exitCode(err); got != exitError {
		t.Errorf("exitCode = %d, want %d", got, exitError)
	}
}

func TestSuites_ListsCanonicalNames(t *testing.T) {
	out, err := run(t, "suites")
	if err != nil {
		t.Fatalf("suites error = %v", err)
	}
	want := "tls\n" +
		"  tls.certificate-expiry\n" +
		"  tls.endpoints-use-https\n" +
		"metadata\n" +
		"  metadata.completeness\n" +
		"  metadata.signing-certificate-expiry\n" +
		"  metadata.remote-consistency\n"
	if out != want {
		t.Errorf("output =\n%s\nwant\n%s", out, want)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, exitOK},
		{errors.New("boom"), exitError},
		{fmt.Errorf("wrapped: %w", domain.ConfigError("bad")), exitFatal},
		{domain.Violation("broken"), exitFatal},
		{&findingsError{failures: 2}, exitFindings},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
