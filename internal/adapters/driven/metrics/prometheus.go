package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

// PrometheusMetricsRecorder records metrics using Prometheus.
type PrometheusMetricsRecorder struct {
	suiteRunsTotal           *prometheus.CounterVec
	issuesCreatedTotal       *prometheus.CounterVec
	issueReportsSkippedTotal *prometheus.CounterVec
	certificateFetchTotal    *prometheus.CounterVec
	metadataRefreshTotal     *prometheus.CounterVec
	metadataEntityCount      prometheus.Gauge
	runDurationSeconds       prometheus.Histogram
}

// NewPrometheusMetricsRecorder creates a new Prometheus metrics recorder
// using the default Prometheus registry.
func NewPrometheusMetricsRecorder() *PrometheusMetricsRecorder {
	return NewPrometheusMetricsRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsRecorderWithRegistry creates a new Prometheus metrics recorder
// with a custom registry. Use this for testing and for textfile output.
func NewPrometheusMetricsRecorderWithRegistry(reg prometheus.Registerer) *PrometheusMetricsRecorder {
	p := &PrometheusMetricsRecorder{
		suiteRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fedcheck_suite_runs_total",
			Help: "Total verification suite executions",
		}, []string{"suite", "result"}),
		issuesCreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fedcheck_issues_created_total",
			Help: "Total issues filed in the issue tracker",
		}, []string{"test_name"}),
		issueReportsSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fedcheck_issue_reports_skipped_total",
			Help: "Total failures not filed because an issue already exists",
		}, []string{"test_name"}),
		certificateFetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fedcheck_certificate_fetch_total",
			Help: "Total TLS certificate fetches by outcome",
		}, []string{"result"}),
		metadataRefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fedcheck_metadata_refresh_total",
			Help: "Total federation metadata refresh attempts",
		}, []string{"source", "result"}),
		metadataEntityCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "fedcheck_metadata_entity_count",
			Help: "Number of entities in the loaded federation metadata",
		}),
		runDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fedcheck_run_duration_seconds",
			Help:    "Wall time of a full verification run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}

	reg.MustRegister(
		p.suiteRunsTotal,
		p.issuesCreatedTotal,
		p.issueReportsSkippedTotal,
		p.certificateFetchTotal,
		p.metadataRefreshTotal,
		p.metadataEntityCount,
		p.runDurationSeconds,
	)
	return p
}

// RecordSuiteRun records one suite execution for one entity.
func (p *PrometheusMetricsRecorder) RecordSuiteRun(suite string, failed bool) {
	result := "passed"
	if failed {
		result = "failed"
	}
	p.suiteRunsTotal.WithLabelValues(suite, result).Inc()
}

// RecordIssueCreated records a newly filed issue.
func (p *PrometheusMetricsRecorder) RecordIssueCreated(testName string) {
	p.issuesCreatedTotal.WithLabelValues(testName).Inc()
}

// RecordIssueReportSkipped records a failure that already had a report.
func (p *PrometheusMetricsRecorder) RecordIssueReportSkipped(testName string) {
	p.issueReportsSkippedTotal.WithLabelValues(testName).Inc()
}

// RecordCertificateFetch records the outcome kind of a certificate fetch.
func (p *PrometheusMetricsRecorder) RecordCertificateFetch(result string) {
	p.certificateFetchTotal.WithLabelValues(result).Inc()
}

// RecordMetadataRefresh records a metadata refresh attempt. The entity
// gauge only moves on success.
func (p *PrometheusMetricsRecorder) RecordMetadataRefresh(source string, success bool, entityCount int) {
	result := "failure"
	if success {
		result = "success"
		p.metadataEntityCount.Set(float64(entityCount))
	}
	p.metadataRefreshTotal.WithLabelValues(source, result).Inc()
}

// RecordRunDuration records the wall time of a verification run.
func (p *PrometheusMetricsRecorder) RecordRunDuration(d time.Duration) {
	p.runDurationSeconds.Observe(d.Seconds())
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, for the node_exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

var _ ports.MetricsRecorder = (*PrometheusMetricsRecorder)(nil)
