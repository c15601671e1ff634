package worker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"validation-worker/internal/domain"
	httpinfra "validation-worker/internal/infra/http"
	"validation-worker/internal/metrics"
	"validation-worker/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Sender delivers a payload to the next service.
type Sender interface {
	Send(ctx context.Context, method, url string, payload any, headers map[string]string) (*httpinfra.Response, error)
}

// FailureHandler is told about jobs whose validator failed. Those jobs
// dispatch nothing, so this is where the surrounding process reports them.
type FailureHandler func(h *Handle, err error)

// CountValidatorFailures is a FailureHandler feeding validator_failures_total,
// split by whether the validator panicked or returned an error.
func CountValidatorFailures(h *Handle, err error) {
	reason := "error"
	if errors.Is(err, domain.ErrValidatorPanic) {
		reason = "panic"
	}
	metrics.ValidatorFailuresTotal.WithLabelValues(h.Kind(), reason).Inc()
}

// JobWorker runs a single job through parse, materialize, validate,
// envelope and send.
type JobWorker struct {
	invoker     *validation.Invoker
	sender      Sender
	deadLetters domain.DeadLetterRepository
	onFailure   FailureHandler
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewJobWorker creates a worker for the invoker's kind. deadLetters may be nil.
func NewJobWorker(invoker *validation.Invoker, sender Sender, deadLetters domain.DeadLetterRepository, logger *slog.Logger) *JobWorker {
	return &JobWorker{
		invoker:     invoker,
		sender:      sender,
		deadLetters: deadLetters,
		logger:      logger.With("component", "job-worker", "kind", invoker.Kind().Name),
		tracer:      otel.Tracer("validation-worker"),
	}
}

// Run executes the job to a terminal state recorded on h. The job span is
// linked to parent, the span that launched it. Run never panics on a bad
// job, a failing validator or an unreachable next service.
func (w *JobWorker) Run(ctx context.Context, parent trace.SpanContext, h *Handle, job *domain.Job, nextService, identity string) {
	kind := w.invoker.Kind()
	ctx, span := w.tracer.Start(ctx, "worker.Run", trace.WithLinks(trace.Link{SpanContext: parent}), trace.WithAttributes(
		attribute.String("job.kind", kind.Name),
		attribute.String("execution.id", h.ID()),
	))
	defer span.End()

	logger := w.logger.With("execution_id", h.ID())
	logger.Debug("worker started")

	jobID, data, err := job.Parse()
	if err != nil {
		logger.Error("invalid job data, terminated", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed job")
		w.finish(h, domain.StateAborted, err)
		return
	}
	h.setJobID(jobID)
	h.setState(domain.StateParsed)
	logger = logger.With("job_id", jobID)
	span.SetAttributes(attribute.String("job.id", jobID))
	logger.Info("job started")

	batch := w.invoker.Materialize(data)
	h.setState(domain.StateMaterialized)
	span.AddEvent("materialized")

	logger.Info("validating batch", "entities", len(batch.Names()))
	result, err := w.invoker.Invoke(ctx, batch)
	if err != nil {
		logger.Error("validation failed, nothing dispatched", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "validator failed")
		if w.onFailure != nil {
			w.onFailure(h, err)
		}
		w.finish(h, domain.StateAborted, err)
		return
	}
	h.setState(domain.StateValidated)
	span.AddEvent("validated")

	envelope := domain.Envelope{
		ID:        jobID,
		AIService: kind.AIService,
		Data:      result,
	}
	h.setState(domain.StateEnveloped)

	logger.Info("validation done, publishing", "next_service", nextService)
	_, err = w.sender.Send(ctx, http.MethodPost, nextService, envelope, map[string]string{
		domain.IdentityHeader: identity,
	})
	h.setState(domain.StateDispatched)
	if err != nil {
		logger.Error("failed to pass data to next service", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		if errors.Is(err, domain.ErrDeliveryFailed) {
			w.park(ctx, logger, nextService, envelope, err)
		}
		w.finish(h, domain.StateDone, err)
		return
	}

	span.SetStatus(codes.Ok, "delivered")
	logger.Debug("done, exiting")
	w.finish(h, domain.StateDone, nil)
}

func (w *JobWorker) finish(h *Handle, s domain.State, err error) {
	metrics.JobOutcomesTotal.WithLabelValues(w.invoker.Kind().Name, string(s)).Inc()
	h.finish(s, err)
}

// park hands an undeliverable envelope to the dead-letter repository.
func (w *JobWorker) park(ctx context.Context, logger *slog.Logger, nextService string, env domain.Envelope, cause error) {
	if w.deadLetters == nil {
		return
	}
	kind := w.invoker.Kind().Name

	attempts := 0
	var derr *domain.DeliveryError
	if errors.As(cause, &derr) {
		attempts = derr.Attempts
	}
	letter := &domain.DeadLetter{
		ID:          uuid.NewString(),
		JobID:       env.ID,
		AIService:   env.AIService,
		NextService: nextService,
		Envelope:    env,
		Error:       cause.Error(),
		Attempts:    attempts,
		FailedAt:    time.Now().UTC(),
	}

	// The job's own context may be what failed the delivery.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := w.deadLetters.Save(saveCtx, letter); err != nil {
		metrics.DeadLettersTotal.WithLabelValues(kind, "failed").Inc()
		logger.Error("failed to park undeliverable envelope", "dead_letter_id", letter.ID, "error", err)
		return
	}
	metrics.DeadLettersTotal.WithLabelValues(kind, "parked").Inc()
	logger.Info("parked undeliverable envelope", "dead_letter_id", letter.ID)
}
