// Package config loads the fedcheck configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
)

// Duration is a time.Duration read from a string such as "10s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the whole configuration file.
type Config struct {
	Federation   Federation        `json:"federation" yaml:"federation"`
	MetadataURLs map[string]string `json:"metadata_urls" yaml:"metadata_urls"`
	Suites       []string          `json:"suites" yaml:"suites"`
	Blacklist    Blacklist         `json:"blacklist" yaml:"blacklist"`
	TLS          TLS               `json:"tls" yaml:"tls"`
	IssueTracker *IssueTracker     `json:"issue_tracker" yaml:"issue_tracker"`
	ReportStore  ReportStore       `json:"report_store" yaml:"report_store"`
	Runner       Runner            `json:"runner" yaml:"runner"`
	Metrics      Metrics           `json:"metrics" yaml:"metrics"`
}

// Federation locates the metadata aggregate.
type Federation struct {
	MetadataFile string `json:"metadata_file" yaml:"metadata_file"`
	MetadataURL  string `json:"metadata_url" yaml:"metadata_url"`
	// SigningCert is a PEM file with the aggregate signing certificates.
	SigningCert                 string   `json:"signing_cert" yaml:"signing_cert"`
	EntityFilter                string   `json:"entity_filter" yaml:"entity_filter"`
	RegistrationAuthorityFilter string   `json:"registration_authority_filter" yaml:"registration_authority_filter"`
	EntityTypes                 []string `json:"entity_types" yaml:"entity_types"`
	RefreshTimeout              Duration `json:"refresh_timeout" yaml:"refresh_timeout"`
}

// Blacklist names suites or suite.test names to skip.
type Blacklist struct {
	Global   []string            `json:"global" yaml:"global"`
	Entities map[string][]string `json:"entities" yaml:"entities"`
}

// TLS configures certificate fetching and expiry thresholds.
type TLS struct {
	Timeout      Duration `json:"timeout" yaml:"timeout"`
	ExpiryHigh   Duration `json:"expiry_high" yaml:"expiry_high"`
	ExpiryMedium Duration `json:"expiry_medium" yaml:"expiry_medium"`
}

// IssueTracker configures the JIRA reporter.
type IssueTracker struct {
	BaseURL    string `json:"base_url" yaml:"base_url"`
	ProjectKey string `json:"project_key" yaml:"project_key"`
	IssueType  string `json:"issue_type" yaml:"issue_type"`
	Username   string `json:"username" yaml:"username"`
	// APIToken may be given inline; APITokenEnv names an environment
	// variable and wins when set.
	APIToken    string `json:"api_token" yaml:"api_token"`
	APITokenEnv string `json:"api_token_env" yaml:"api_token_env"`
	// Priorities maps severity names (CRITICAL..TRIVIAL) to priority ids.
	Priorities map[string]string `json:"priorities" yaml:"priorities"`
	// Statuses maps open, closed and muted to status ids.
	Statuses map[string]string `json:"statuses" yaml:"statuses"`
	// StatusAliases maps further tracker status ids to open, closed or muted.
	StatusAliases map[string]string `json:"status_aliases" yaml:"status_aliases"`
	RefilePolicy  string            `json:"refile_policy" yaml:"refile_policy"`
}

// ReportStore locates the sqlite database.
type ReportStore struct {
	Path string `json:"path" yaml:"path"`
}

// Runner tunes the verification runner.
type Runner struct {
	Workers     int      `json:"workers" yaml:"workers"`
	TestTimeout Duration `json:"test_timeout" yaml:"test_timeout"`
}

// Metrics configures the Prometheus textfile.
type Metrics struct {
	Textfile string `json:"textfile" yaml:"textfile"`
}

// Defaults applied by Load.
const (
	DefaultRefreshTimeout = 2 * time.Minute
	DefaultTLSTimeout     = 10 * time.Second
	DefaultTestTimeout    = time.Minute
	DefaultReportStore    = "fedcheck.db"
)

// Load reads a YAML (.yaml, .yml) or JSON file, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.AppError{Code: domain.ErrCodeConfigMissing, Message: "read config file", Cause: err}
	}

	var cfg Config
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &domain.AppError{Code: domain.ErrCodeConfigMissing, Message: "parse YAML config", Cause: err}
		}
	} else {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, &domain.AppError{Code: domain.ErrCodeConfigMissing, Message: "parse JSON config", Cause: err}
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Federation.RefreshTimeout == 0 {
		c.Federation.RefreshTimeout = Duration(DefaultRefreshTimeout)
	}
	if c.TLS.Timeout == 0 {
		c.TLS.Timeout = Duration(DefaultTLSTimeout)
	}
	if c.TLS.ExpiryHigh == 0 {
		c.TLS.ExpiryHigh = Duration(domain.DefaultExpiryThresholds.High)
	}
	if c.TLS.ExpiryMedium == 0 {
		c.TLS.ExpiryMedium = Duration(domain.DefaultExpiryThresholds.Medium)
	}
	if c.Runner.Workers == 0 {
		c.Runner.Workers = 1
	}
	if c.Runner.TestTimeout == 0 {
		c.Runner.TestTimeout = Duration(DefaultTestTimeout)
	}
	if c.ReportStore.Path == "" {
		c.ReportStore.Path = DefaultReportStore
	}
}

// Validate checks the configuration. Errors are domain config errors.
func (c *Config) Validate() error {
	f := c.Federation
	switch {
	case f.MetadataFile == "" && f.MetadataURL == "":
		return domain.ConfigError("federation: metadata_file or metadata_url is required")
	case f.MetadataFile != "" && f.MetadataURL != "":
		return domain.ConfigError("federation: metadata_file and metadata_url are mutually exclusive")
	}
	for _, t := range f.EntityTypes {
		if _, err := domain.ParseEntityType(t); err != nil {
			return domain.ConfigError(fmt.Sprintf("federation: unknown entity type %q", t))
		}
	}
	if len(c.Suites) == 0 {
		return domain.ConfigError("suites: at least one suite must be whitelisted")
	}
	if c.TLS.ExpiryHigh.Std() > c.TLS.ExpiryMedium.Std() {
		return domain.ConfigError("tls: expiry_high must not exceed expiry_medium")
	}
	if c.Runner.Workers < 1 {
		return domain.ConfigError("runner: workers must be at least 1")
	}
	if c.Runner.TestTimeout.Std() < 0 {
		return domain.ConfigError("runner: test_timeout must not be negative")
	}
	if c.IssueTracker != nil {
		if err := c.IssueTracker.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (it *IssueTracker) validate() error {
	if it.BaseURL == "" || it.ProjectKey == "" {
		return domain.ConfigError("issue_tracker: base_url and project_key are required")
	}
	if _, err := it.PriorityMapping(); err != nil {
		return err
	}
	if _, err := it.StatusMapping(); err != nil {
		return err
	}
	return nil
}

// ExpiryThresholds returns the configured thresholds.
func (t TLS) ExpiryThresholds() domain.ExpiryThresholds {
	return domain.ExpiryThresholds{High: t.ExpiryHigh.Std(), Medium: t.ExpiryMedium.Std()}
}

// Token resolves the API token, preferring the environment variable.
func (it *IssueTracker) Token() (string, error) {
	if it.APITokenEnv != "" {
		tok, ok := os.LookupEnv(it.APITokenEnv)
		if !ok || tok == "" {
			return "", domain.ConfigError(fmt.Sprintf("issue_tracker: environment variable %s is not set", it.APITokenEnv))
		}
		return tok, nil
	}
	return it.APIToken, nil
}

// PriorityMapping builds the severity mapping. Every severity must be mapped.
func (it *IssueTracker) PriorityMapping() (*domain.PriorityMapping, error) {
	table := make(map[domain.Severity]string, len(it.Priorities))
	for name, id := range it.Priorities {
		sev, err := domain.ParseSeverity(name)
		if err != nil {
			return nil, domain.ConfigError(fmt.Sprintf("issue_tracker.priorities: unknown severity %q", name))
		}
		table[sev] = id
	}
	for _, sev := range domain.AllSeverities {
		if _, ok := table[sev]; !ok {
			return nil, domain.ConfigError(fmt.Sprintf("issue_tracker.priorities: no priority for %s", sev))
		}
	}
	return domain.NewPriorityMapping(table)
}

// StatusMapping builds the status mapping. open and closed are required.
func (it *IssueTracker) StatusMapping() (*domain.StatusMapping, error) {
	table := make(map[domain.IssueStatus]string, len(it.Statuses))
	for name, id := range it.Statuses {
		status, err := parseIssueStatus(name)
		if err != nil {
			return nil, domain.ConfigError(fmt.Sprintf("issue_tracker.statuses: %v", err))
		}
		table[status] = id
	}
	for _, required := range []domain.IssueStatus{domain.IssueStatusOpen, domain.IssueStatusClosed} {
		if _, ok := table[required]; !ok {
			return nil, domain.ConfigError(fmt.Sprintf("issue_tracker.statuses: %s is required", required))
		}
	}

	aliases := make(map[string]domain.IssueStatus, len(it.StatusAliases))
	for id, name := range it.StatusAliases {
		status, err := parseIssueStatus(name)
		if err != nil {
			return nil, domain.ConfigError(fmt.Sprintf("issue_tracker.status_aliases: %v", err))
		}
		aliases[id] = status
	}
	return domain.NewStatusMapping(table, aliases)
}

// MutedStatusID returns the status id of the muted status, or "".
func (it *IssueTracker) MutedStatusID() string {
	for name, id := range it.Statuses {
		if strings.EqualFold(name, string(domain.IssueStatusMuted)) {
			return id
		}
	}
	return ""
}

func parseIssueStatus(name string) (domain.IssueStatus, error) {
	switch s := domain.IssueStatus(strings.ToLower(strings.TrimSpace(name))); s {
	case domain.IssueStatusOpen, domain.IssueStatusMuted, domain.IssueStatusClosed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown status %q", name)
	}
}
