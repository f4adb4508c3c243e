package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/philiph/saml-fedcheck/internal/core/domain"
	"github.com/philiph/saml-fedcheck/internal/core/ports"
)

// RunSummary counts what a run did.
type RunSummary struct {
	Entities      int
	SuitesRun     int
	SuitesSkipped int
	Failures      int
	Errors        int
}

// RunnerOption is a functional option for configuring a Runner.
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	logger          *zap.Logger
	metricsRecorder ports.MetricsRecorder
	workers         int
	clock           Clock
}

// WithLogger sets the runner logger.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(o *runnerOptions) {
		o.logger = logger
	}
}

// WithMetricsRecorder records suite outcomes and run duration.
func WithMetricsRecorder(recorder ports.MetricsRecorder) RunnerOption {
	return func(o *runnerOptions) {
		o.metricsRecorder = recorder
	}
}

// WithWorkers verifies up to n entities concurrently. Suites of one entity
// always run sequentially. Values below 1 mean 1.
func WithWorkers(n int) RunnerOption {
	return func(o *runnerOptions) {
		o.workers = n
	}
}

// WithClock sets the clock used to time runs.
func WithClock(clock Clock) RunnerOption {
	return func(o *runnerOptions) {
		o.clock = clock
	}
}

// contextBuilder is what the runner needs from a ContextFactory.
type contextBuilder interface {
	NewContext(ctx context.Context, entity domain.Entity, blacklist *Blacklist) (*Context, error)
}

// Runner executes every registered suite against every entity and hands
// failed results to a reporter.
type Runner struct {
	entities  ports.EntitySource
	contexts  contextBuilder
	blacklist *Blacklist
	logger    *zap.Logger
	metrics   ports.MetricsRecorder
	workers   int
	clock     Clock

	suites []*Suite
}

// NewRunner creates a runner. blacklist may be nil.
func NewRunner(entities ports.EntitySource, contexts *ContextFactory, blacklist *Blacklist, opts ...RunnerOption) *Runner {
	return newRunner(entities, contexts, blacklist, opts...)
}

func newRunner(entities ports.EntitySource, contexts contextBuilder, blacklist *Blacklist, opts ...RunnerOption) *Runner {
	options := &runnerOptions{}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := options.clock
	if clock == nil {
		clock = RealClock{}
	}
	workers := options.workers
	if workers < 1 {
		workers = 1
	}
	return &Runner{
		entities:  entities,
		contexts:  contexts,
		blacklist: blacklist,
		logger:    logger,
		metrics:   options.metricsRecorder,
		workers:   workers,
		clock:     clock,
	}
}

// AddVerificationSuite registers a suite. Suites run in the order added.
func (r *Runner) AddVerificationSuite(s *Suite) {
	r.suites = append(r.suites, s)
}

// Suites returns the registered suites in run order.
func (r *Runner) Suites() []*Suite {
	return append([]*Suite(nil), r.suites...)
}

// Run verifies every entity. Failures of one entity's suite, context or
// report are logged and counted; the run carries on. A fatal error
// (domain.IsFatal) or cancellation of ctx stops the run and is returned
// together with the summary so far.
func (r *Runner) Run(ctx context.Context, reporter ports.Reporter) (RunSummary, error) {
	started := r.clock.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordRunDuration(r.clock.Now().Sub(started))
		}
	}()

	entities, err := r.entities.Entities(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("list entities: %w", err)
	}

	r.logger.Info("verification run started",
		zap.Int("entity_count", len(entities)),
		zap.Int("suite_count", len(r.suites)),
		zap.Int("workers", r.workers))

	tally := &tally{}

	if r.workers == 1 {
		for _, entity := range entities {
			if err := ctx.Err(); err != nil {
				return tally.summary(), err
			}
			if err := r.verifyEntity(ctx, entity, reporter, tally); err != nil {
				return tally.summary(), err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.workers)
		for _, entity := range entities {
			if gctx.Err() != nil {
				break
			}
			entity := entity
			g.Go(func() error {
				return r.verifyEntity(gctx, entity, reporter, tally)
			})
		}
		if err := g.Wait(); err != nil {
			return tally.summary(), err
		}
		if err := ctx.Err(); err != nil {
			return tally.summary(), err
		}
	}

	summary := tally.summary()
	r.logger.Info("verification run finished",
		zap.Int("entity_count", summary.Entities),
		zap.Int("suites_run", summary.SuitesRun),
		zap.Int("suites_skipped", summary.SuitesSkipped),
		zap.Int("failures", summary.Failures),
		zap.Int("errors", summary.Errors))
	return summary, nil
}

// verifyEntity runs all suites for one entity. Only fatal errors and
// cancellation are returned.
func (r *Runner) verifyEntity(ctx context.Context, entity domain.Entity, reporter ports.Reporter, t *tally) error {
	t.add(func(s *RunSummary) { s.Entities++ })
	logger := r.logger.With(
		zap.String("entity_id", string(entity.ID)),
		zap.String("entity_type", string(entity.Type)))

	vc, err := r.contexts.NewContext(ctx, entity, r.blacklist)
	if err != nil {
		if domain.IsFatal(err) || isCancellation(ctx, err) {
			return err
		}
		logger.Warn("cannot build verification context, skipping entity", zap.Error(err))
		t.add(func(s *RunSummary) { s.Errors++ })
		return nil
	}

	for _, suite := range r.suites {
		if err := ctx.Err(); err != nil {
			return err
		}

		if r.blacklist.IsBlacklisted(entity, suite.Name()) {
			logger.Debug("suite blacklisted for entity", zap.String("suite", suite.Name()))
			t.add(func(s *RunSummary) { s.SuitesSkipped++ })
			continue
		}

		result, err := runSuite(ctx, suite, vc)
		if err != nil {
			if domain.IsFatal(err) {
				logger.Error("fatal error while running suite", zap.String("suite", suite.Name()), zap.Error(err))
				return err
			}
			logger.Error("suite execution failed", zap.String("suite", suite.Name()), zap.Error(err))
			t.add(func(s *RunSummary) { s.Errors++ })
			continue
		}

		t.add(func(s *RunSummary) { s.SuitesRun++ })
		if r.metrics != nil {
			r.metrics.RecordSuiteRun(suite.Name(), result.HasTestFailed())
		}
		if !result.HasTestFailed() {
			continue
		}

		t.add(func(s *RunSummary) { s.Failures++ })
		if err := reporter.ReportFailedVerificationFor(ctx, entity, result); err != nil {
			if domain.IsFatal(err) || isCancellation(ctx, err) {
				return err
			}
			logger.Error("reporting failed verification failed",
				zap.String("test_name", result.FailedTestName),
				zap.Error(err))
			t.add(func(s *RunSummary) { s.Errors++ })
		}
	}
	return nil
}

// runSuite runs a suite and turns panics into errors. A ContractViolation
// panic stays fatal; any other panic is isolated to this suite and entity.
func runSuite(ctx context.Context, suite *Suite, vc *Context) (result domain.SuiteResult, err error) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if cv, ok := rec.(*domain.ContractViolation); ok {
			err = cv
			return
		}
		if e, ok := rec.(error); ok {
			err = fmt.Errorf("suite %s panicked: %w", suite.Name(), e)
			return
		}
		err = fmt.Errorf("suite %s panicked: %v", suite.Name(), rec)
	}()
	return suite.Run(ctx, vc), nil
}

func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

type tally struct {
	mu sync.Mutex
	s  RunSummary
}

func (t *tally) add(fn func(*RunSummary)) {
	t.mu.Lock()
	fn(&t.s)
	t.mu.Unlock()
}

func (t *tally) summary() RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}
