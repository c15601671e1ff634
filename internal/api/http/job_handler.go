// internal/api/http/job_handler.go
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"validation-worker/internal/domain"
	"validation-worker/internal/metrics"
	"validation-worker/internal/worker"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// JobHandler accepts validation jobs over HTTP.
type JobHandler struct {
	registry *worker.Registry
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(registry *worker.Registry, logger *slog.Logger) *JobHandler {
	return &JobHandler{
		registry: registry,
		logger:   logger.With("component", "job-handler"),
		validate: validator.New(),
		tracer:   otel.Tracer("validation-worker-api"),
	}
}

// A helper struct to capture the status code
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// instrument wraps a handler with a span and the request counter.
func instrument(tracer trace.Tracer, path string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "HTTP "+r.Method+" "+path, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		r = r.WithContext(ctx)

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(iw, r)

		metrics.HttpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(iw.statusCode)).Inc()

		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "Server Error")
		}
	})
}

// RegisterRoutes registers job routes and the health probe on mux.
func (h *JobHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /jobs/{kind}", instrument(h.tracer, "/jobs/{kind}", h.handleLaunchJob))
	mux.Handle("GET /kinds", instrument(h.tracer, "/kinds", h.handleListKinds))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// handleLaunchJob handles POST /jobs/{kind}. It answers 202 as soon as the
// job is started; the outcome is only visible in logs and metrics.
func (h *JobHandler) handleLaunchJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.LaunchJob")
	defer span.End()

	kind := r.PathValue("kind")
	span.SetAttributes(attribute.String("job.kind", kind))

	var req LaunchJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		span.SetStatus(codes.Error, "Failed to decode request body")
		span.RecordError(err)
		writeError(w, http.StatusBadRequest, "Invalid request body", []string{err.Error()})
		return
	}

	if err := h.validate.Struct(req); err != nil {
		span.SetStatus(codes.Error, "Validation failed")
		span.RecordError(err)
		var validationErrors []string
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				validationErrors = append(validationErrors,
					"Field '"+fe.Field()+"' failed on the '"+fe.Tag()+"' tag.",
				)
			}
		}
		writeError(w, http.StatusBadRequest, "Validation failed", validationErrors)
		return
	}

	job, err := req.ToDomainJob()
	if err != nil {
		span.SetStatus(codes.Error, "Invalid job")
		span.RecordError(err)
		writeError(w, http.StatusBadRequest, "Invalid job", []string{err.Error()})
		return
	}

	handle, err := h.registry.Launch(ctx, kind, job, req.NextService, r.Header.Get(domain.IdentityHeader))
	if err != nil {
		span.SetStatus(codes.Error, "Failed to launch job")
		span.RecordError(err)
		if errors.Is(err, worker.ErrUnknownKind) {
			writeError(w, http.StatusNotFound, err.Error(), nil)
			return
		}
		h.logger.Error("error launching job", "kind", kind, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.String("execution.id", handle.ID()))
	h.logger.Info("job accepted", "kind", kind, "execution_id", handle.ID())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(LaunchJobResponse{
		ExecutionID: handle.ID(),
		Kind:        handle.Kind(),
		State:       string(handle.State()),
	})
}

// handleListKinds handles GET /kinds.
func (h *JobHandler) handleListKinds(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"kinds": h.registry.Kinds()})
}

func writeError(w http.ResponseWriter, status int, msg string, details []string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{"error": msg}
	if len(details) > 0 {
		body["details"] = details
	}
	json.NewEncoder(w).Encode(body)
}
