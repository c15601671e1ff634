// internal/api/http/dead_letter_handler.go
package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"validation-worker/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDeadLetterLimit = 100
	maxDeadLetterLimit     = 1000
)

// DeadLetterHandler exposes parked envelopes for inspection.
type DeadLetterHandler struct {
	repo   domain.DeadLetterRepository
	logger *slog.Logger
	tracer trace.Tracer
}

// NewDeadLetterHandler creates a new DeadLetterHandler.
func NewDeadLetterHandler(repo domain.DeadLetterRepository, logger *slog.Logger) *DeadLetterHandler {
	return &DeadLetterHandler{
		repo:   repo,
		logger: logger.With("component", "dead-letter-handler"),
		tracer: otel.Tracer("validation-worker-api"),
	}
}

// RegisterRoutes registers the dead-letter routes on mux.
func (h *DeadLetterHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /dead-letters/{ai_service}", instrument(h.tracer, "/dead-letters/{ai_service}", h.handleListDeadLetters))
}

// handleListDeadLetters handles GET /dead-letters/{ai_service}?limit=N,
// oldest letter first.
func (h *DeadLetterHandler) handleListDeadLetters(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "handler.ListDeadLetters")
	defer span.End()

	aiService := r.PathValue("ai_service")
	span.SetAttributes(attribute.String("ai_service", aiService))

	limit := defaultDeadLetterLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxDeadLetterLimit {
			span.SetStatus(codes.Error, "invalid limit")
			writeError(w, http.StatusBadRequest, "Invalid limit",
				[]string{"limit must be an integer between 1 and " + strconv.Itoa(maxDeadLetterLimit)})
			return
		}
		limit = n
	}

	letters, err := h.repo.List(ctx, aiService, limit)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to list dead letters")
		span.RecordError(err)
		h.logger.Error("error listing dead letters", "ai_service", aiService, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if letters == nil {
		letters = []*domain.DeadLetter{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"ai_service":   aiService,
		"dead_letters": letters,
	})
}
