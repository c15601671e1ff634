package worker

import (
	"context"
	"log/slog"
	"sync"

	"validation-worker/internal/domain"
	"validation-worker/internal/metrics"
	"validation-worker/internal/validation"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// Launcher starts jobs of one validator kind, each on its own goroutine.
type Launcher struct {
	kind          validation.Kind
	worker        *JobWorker
	maxConcurrent int64
	sem           *semaphore.Weighted
	wg            sync.WaitGroup
	logger        *slog.Logger
}

// LauncherOption configures a Launcher.
type LauncherOption func(*Launcher)

// WithMaxConcurrent bounds how many jobs run at once. Zero or less keeps
// the default of one goroutine per job with no bound.
func WithMaxConcurrent(n int) LauncherOption {
	return func(l *Launcher) { l.maxConcurrent = int64(n) }
}

// WithDeadLetters parks envelopes whose delivery exhausted all attempts.
func WithDeadLetters(repo domain.DeadLetterRepository) LauncherOption {
	return func(l *Launcher) { l.worker.deadLetters = repo }
}

// WithFailureHandler reports jobs aborted by their validator.
func WithFailureHandler(fn FailureHandler) LauncherOption {
	return func(l *Launcher) { l.worker.onFailure = fn }
}

// NewLauncher creates a launcher running invoker's kind through sender.
func NewLauncher(invoker *validation.Invoker, sender Sender, logger *slog.Logger, opts ...LauncherOption) *Launcher {
	kind := invoker.Kind()
	l := &Launcher{
		kind:   kind,
		worker: NewJobWorker(invoker, sender, nil, logger),
		logger: logger.With("component", "launcher", "kind", kind.Name),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxConcurrent > 0 {
		l.sem = semaphore.NewWeighted(l.maxConcurrent)
	}
	return l
}

// Kind returns the kind this launcher serves.
func (l *Launcher) Kind() validation.Kind { return l.kind }

// Launch starts the job and returns its handle without waiting. Nothing is
// checked here: a malformed job is reported through the handle. ctx only
// supplies the span the job is linked to; the job outlives it.
func (l *Launcher) Launch(ctx context.Context, job *domain.Job, nextService, identity string) *Handle {
	h := newHandle(l.kind.Name)
	metrics.JobsLaunchedTotal.WithLabelValues(l.kind.Name).Inc()
	metrics.JobsInFlight.WithLabelValues(l.kind.Name).Inc()

	l.wg.Add(1)
	go l.run(trace.SpanContextFromContext(ctx), h, job, nextService, identity)

	l.logger.Debug("job launched", "execution_id", h.ID())
	return h
}

func (l *Launcher) run(parent trace.SpanContext, h *Handle, job *domain.Job, nextService, identity string) {
	defer l.wg.Done()
	defer metrics.JobsInFlight.WithLabelValues(l.kind.Name).Dec()

	ctx := context.Background()
	if l.sem != nil {
		// Background is never cancelled, so Acquire only returns once a slot is free.
		_ = l.sem.Acquire(ctx, 1)
		defer l.sem.Release(1)
	}

	l.worker.Run(ctx, parent, h, job, nextService, identity)
}

// Shutdown waits for every launched job to finish or for ctx to end.
func (l *Launcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Info("all jobs finished")
		return nil
	case <-ctx.Done():
		l.logger.Warn("shutdown timed out with jobs still running")
		return ctx.Err()
	}
}
