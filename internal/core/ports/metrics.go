package ports

import "time"

// MetricsRecorder is the port interface for recording metrics.
// Implementations are adapters (PrometheusMetricsRecorder for production,
// NoopMetricsRecorder for disabled/testing).
type MetricsRecorder interface {
	// RecordSuiteRun records one suite execution for one entity.
	RecordSuiteRun(suite string, failed bool)

	// RecordIssueCreated records a newly filed external issue.
	RecordIssueCreated(testName string)

	// RecordIssueReportSkipped records a failure that already had an open report.
	RecordIssueReportSkipped(testName string)

	// RecordCertificateFetch records the outcome kind of a certificate fetch.
	RecordCertificateFetch(result string)

	// RecordMetadataRefresh records a metadata refresh attempt.
	RecordMetadataRefresh(source string, success bool, entityCount int)

	// RecordRunDuration records the wall time of a full verification run.
	RecordRunDuration(d time.Duration)
}
