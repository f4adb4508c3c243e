// Package httpclient builds the retrying HTTP client shared by the metadata
// fetchers and the issue tracker client.
package httpclient

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// UserAgent is sent with every outgoing request.
const UserAgent = "saml-fedcheck"

// Options configures New. Zero values pick the defaults.
type Options struct {
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Timeout      time.Duration
	Logger       *zap.Logger
}

// New returns a retryablehttp client that logs through zap.
func New(opts Options) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 1 * time.Second
	c.RetryWaitMax = 4 * time.Second
	if opts.RetryMax > 0 {
		c.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		c.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		c.RetryWaitMax = opts.RetryWaitMax
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c.HTTPClient = &http.Client{Timeout: timeout}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c.Logger = LeveledLogger{logger: logger.Sugar()}
	return c
}

// LeveledLogger adapts zap to retryablehttp.LeveledLogger. Request logs
// are demoted to debug; retries and failures keep their level.
type LeveledLogger struct {
	logger *zap.SugaredLogger
}

var _ retryablehttp.LeveledLogger = LeveledLogger{}

func (l LeveledLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, keysAndValues...)
}

func (l LeveledLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l LeveledLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l LeveledLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warnw(msg, keysAndValues...)
}
