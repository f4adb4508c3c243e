package metrics

import (
	"time"

	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

// NoopMetricsRecorder is a no-op implementation of MetricsRecorder.
// Use this when metrics are disabled.
type NoopMetricsRecorder struct{}

// NewNoopMetricsRecorder creates a new no-op metrics recorder.
func NewNoopMetricsRecorder() *NoopMetricsRecorder {
	return &NoopMetricsRecorder{}
}

func (n *NoopMetricsRecorder) RecordSuiteRun(string, bool) {}
func (n *NoopMetricsRecorder) RecordIssueCreated(string) {}
func (n *NoopMetricsRecorder) RecordIssueReportSkipped(string) {}
func (n *NoopMetricsRecorder) RecordCertificateFetch(string) {}
func (n *NoopMetricsRecorder) RecordMetadataRefresh(string, bool, int) {}
func (n *NoopMetricsRecorder) RecordRunDuration(time.Duration) {}

var _ ports.MetricsRecorder = (*NoopMetricsRecorder)(nil)
