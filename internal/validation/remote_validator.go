package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"validation-worker/internal/domain"
	"validation-worker/internal/tabular"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RemoteValidator delegates validation to an HTTP service. The batch is sent
// as {entity: [records]} and the JSON object returned is the result.
type RemoteValidator struct {
	url    string
	client *http.Client
	tracer trace.Tracer
}

// NewRemoteValidator creates a validator posting to url.
func NewRemoteValidator(url string, timeout time.Duration) *RemoteValidator {
	return &RemoteValidator{
		url:    url,
		client: &http.Client{Timeout: timeout},
		tracer: otel.Tracer("validation-worker-remote-validator"),
	}
}

// Validate posts the batch and decodes the response. It does not retry.
func (v *RemoteValidator) Validate(ctx context.Context, batch *tabular.Batch) (domain.Result, error) {
	ctx, span := v.tracer.Start(ctx, "validator.remote.Validate",
		trace.WithAttributes(attribute.String("validator.url", v.url)))
	defer span.End()

	body, err := json.Marshal(batch.Raw())
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to marshal batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create validator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validator unreachable")
		return nil, fmt.Errorf("validator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		span.SetStatus(codes.Error, "validator rejected batch")
		return nil, fmt.Errorf("validator returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var result domain.MapResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode validator response: %w", err)
	}
	return result, nil
}
