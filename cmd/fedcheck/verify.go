package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/philiph/saml-fedcheck/internal/adapters/driven/httpclient"
	"github.com/philiph/saml-fedcheck/internal/adapters/driven/jira"
	"github.com/philiph/saml-fedcheck/internal/adapters/driven/metadata"
	"github.com/philiph/saml-fedcheck/internal/adapters/driven/metrics"
	"github.com/philiph/saml-fedcheck/internal/adapters/driven/reporter"
	"github.com/philiph/saml-fedcheck/internal/adapters/driven/reportstore"
	"github.com/philiph/saml-fedcheck/internal/adapters/driven/signature"
	"github.com/philiph/saml-fedcheck/internal/adapters/driven/tlscert"
	"github.com/philiph/saml-fedcheck/internal/checks"
	"github.com/philiph/saml-fedcheck/internal/config"
	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
	"github.com/philiph/saml-fedcheck/internal/core/verification"
)

// Reporter names accepted by --reporter.
const (
	reporterConsole      = "console"
	reporterIssueTracker = "issue-tracker"
)

type verifyFlags struct {
	configPath     string
	reporter       string
	failOnFindings bool
	noColor        bool
}

func (c *cli) verifyCmd() *cobra.Command {
	var flags verifyFlags
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run the configured verification suites against every entity",
		Long: `verify loads the federation metadata, runs every whitelisted suite against
every entity that passes the configured filters, and hands failed results to
the selected reporter.

Exit codes: 0 success, 1 error, 2 configuration or contract error,
3 failed verifications with --fail-on-findings.`,
		Example: `  fedcheck verify --config fedcheck.yaml
  fedcheck verify --config fedcheck.yaml --reporter issue-tracker`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runVerify(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}
	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "fedcheck.yaml", "configuration file (YAML or JSON)")
	cmd.Flags().StringVarP(&flags.reporter, "reporter", "r", reporterConsole, "where failures go: console or issue-tracker")
	cmd.Flags().BoolVar(&flags.failOnFindings, "fail-on-findings", false, "exit non-zero when any verification failed")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored console output")
	return cmd
}

func (c *cli) runVerify(ctx context.Context, out io.Writer, flags verifyFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}
	logger := c.logger

	promRegistry := prometheus.NewRegistry()
	var recorder ports.MetricsRecorder = metrics.NewNoopMetricsRecorder()
	if cfg.Metrics.Textfile != "" {
		recorder = metrics.NewPrometheusMetricsRecorderWithRegistry(promRegistry)
		defer func() {
			if err := metrics.WriteTextfile(cfg.Metrics.Textfile, promRegistry); err != nil {
				logger.Error("cannot write metrics", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
			}
		}()
	}

	reg := verification.NewRegistry()
	checks.Register(reg, checks.Options{
		Thresholds: cfg.TLS.ExpiryThresholds(),
		Metrics:    recorder,
	})
	if err := checkBlacklistNames(reg, cfg.Blacklist); err != nil {
		return err
	}
	suites, err := reg.Build(verification.NewSuiteWhitelist(reg, cfg.Suites...))
	if err != nil {
		return domain.ConfigError(fmt.Sprintf("suites: %v", err))
	}

	store, err := newFederationStore(cfg, logger, recorder)
	if err != nil {
		return err
	}
	refreshCtx, cancel := context.WithTimeout(ctx, cfg.Federation.RefreshTimeout.Std())
	err = store.Refresh(refreshCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("load federation metadata: %w", err)
	}

	fetcher := metadata.NewRemoteFetcher(
		metadata.WithHTTPClient(httpclient.New(httpclient.Options{
			Timeout: cfg.Runner.TestTimeout.Std(),
			Logger:  logger,
		})),
		metadata.WithLogger(logger),
	)
	certs := tlscert.NewFetcher(
		tlscert.WithDialTimeout(cfg.TLS.Timeout.Std()),
		tlscert.WithLogger(logger),
	)
	factory := verification.NewContextFactory(metadata.NewProvider(store, fetcher), certs, logger, nil)
	factory.SetTestTimeout(cfg.Runner.TestTimeout.Std())

	runner := verification.NewRunner(store, factory,
		verification.NewBlacklist(cfg.Blacklist.Global, cfg.Blacklist.Entities),
		verification.WithLogger(logger),
		verification.WithMetricsRecorder(recorder),
		verification.WithWorkers(cfg.Runner.Workers),
	)
	for _, s := range suites {
		runner.AddVerificationSuite(s)
	}

	rep, closeReporter, err := c.newReporter(ctx, flags, cfg, out, recorder)
	if err != nil {
		return err
	}
	defer closeReporter()

	summary, err := runner.Run(ctx, rep)
	fmt.Fprintf(out, "%d entities, %d suites run, %d skipped, %d failed, %d errors\n",
		summary.Entities, summary.SuitesRun, summary.SuitesSkipped, summary.Failures, summary.Errors)
	if err != nil {
		return err
	}
	if flags.failOnFindings && summary.Failures > 0 {
		return &findingsError{failures: summary.Failures}
	}
	return nil
}

// checkBlacklistNames rejects blacklist entries that name no registered
// suite or test, since they would silently never match.
func checkBlacklistNames(reg *verification.Registry, b config.Blacklist) error {
	for _, name := range b.Global {
		if !reg.HasName(name) {
			return domain.ConfigError(fmt.Sprintf("blacklist.global: unknown suite or test %q", name))
		}
	}
	for entityID, names := range b.Entities {
		for _, name := range names {
			if !reg.HasName(name) {
				return domain.ConfigError(fmt.Sprintf("blacklist.entities[%s]: unknown suite or test %q", entityID, name))
			}
		}
	}
	return nil
}

func newFederationStore(cfg *config.Config, logger *zap.Logger, recorder ports.MetricsRecorder) (*metadata.FederationStore, error) {
	f := cfg.Federation
	types := make([]string, 0, len(f.EntityTypes))
	for _, name := range f.EntityTypes {
		t, err := domain.ParseEntityType(name)
		if err != nil {
			return nil, domain.ConfigError(fmt.Sprintf("federation.entity_types: %v", err))
		}
		types = append(types, string(t))
	}

	opts := []metadata.MetadataOption{
		metadata.WithEntityFilter(f.EntityFilter),
		metadata.WithRegistrationAuthorityFilter(f.RegistrationAuthorityFilter),
		metadata.WithEntityTypes(types...),
		metadata.WithMetadataURLs(cfg.MetadataURLs),
		metadata.WithLogger(logger),
		metadata.WithMetricsRecorder(recorder),
	}
	if f.SigningCert != "" {
		anchors, err := signature.LoadTrustAnchors(f.SigningCert)
		if err != nil {
			return nil, &domain.AppError{Code: domain.ErrCodeConfigMissing, Message: "federation.signing_cert", Cause: err}
		}
		opts = append(opts, metadata.WithSignatureVerifier(signature.NewXMLDsigVerifier(anchors,
			signature.WithLogger(logger),
			signature.WithThresholds(cfg.TLS.ExpiryThresholds()),
		)))
	}

	if f.MetadataFile != "" {
		return metadata.NewFileFederationStore(f.MetadataFile, opts...), nil
	}
	opts = append(opts, metadata.WithHTTPClient(httpclient.New(httpclient.Options{
		Timeout: f.RefreshTimeout.Std(),
		Logger:  logger,
	})))
	return metadata.NewURLFederationStore(f.MetadataURL, opts...), nil
}

// newReporter builds the selected reporter. The returned close function is
// always safe to call.
func (c *cli) newReporter(ctx context.Context, flags verifyFlags, cfg *config.Config, out io.Writer, recorder ports.MetricsRecorder) (ports.Reporter, func(), error) {
	noop := func() {}
	switch flags.reporter {
	case reporterConsole:
		var opts []reporter.ConsoleOption
		if flags.noColor {
			opts = append(opts, reporter.WithColors(false))
		}
		return reporter.NewConsoleReporter(out, opts...), noop, nil

	case reporterIssueTracker:
		it := cfg.IssueTracker
		if it == nil {
			return nil, noop, domain.ConfigError("issue_tracker section is required for the issue-tracker reporter")
		}
		token, err := it.Token()
		if err != nil {
			return nil, noop, err
		}
		priorities, err := it.PriorityMapping()
		if err != nil {
			return nil, noop, err
		}
		statuses, err := it.StatusMapping()
		if err != nil {
			return nil, noop, err
		}
		refile, err := reporter.ParseRefilePolicy(it.RefilePolicy)
		if err != nil {
			return nil, noop, err
		}
		tracker, err := jira.NewClient(jira.Config{
			BaseURL:    it.BaseURL,
			ProjectKey: it.ProjectKey,
			IssueType:  it.IssueType,
			Username:   it.Username,
			Token:      token,
		}, httpclient.New(httpclient.Options{Logger: c.logger}), c.logger)
		if err != nil {
			return nil, noop, err
		}
		store, err := reportstore.OpenSQLite(ctx, cfg.ReportStore.Path, c.logger)
		if err != nil {
			return nil, noop, err
		}
		closeStore := func() {
			if err := store.Close(); err != nil {
				c.logger.Warn("cannot close report store", zap.Error(err))
			}
		}

		opts := []reporter.IssueTrackerOption{
			reporter.WithRefilePolicy(refile),
			reporter.WithReporterLogger(c.logger),
			reporter.WithReporterMetrics(recorder),
		}
		if muted := it.MutedStatusID(); muted != "" {
			opts = append(opts, reporter.WithMutedStatus(muted))
		}
		return reporter.NewIssueTrackerReporter(tracker, store, priorities, statuses, opts...), closeStore, nil

	default:
		return nil, noop, domain.ConfigError(fmt.Sprintf("unknown reporter %q (want %s or %s)",
			flags.reporter, reporterConsole, reporterIssueTracker))
	}
}
