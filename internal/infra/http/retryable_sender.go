package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"validation-worker/internal/domain"
	"validation-worker/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRetries is the default number of attempts made for one delivery.
const MaxRetries = 3

const maxBodyBytes = 1 << 20

// Response is what a successful delivery returned.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// RetryableSender issues an HTTP call and repeats it immediately on failure,
// up to a fixed number of attempts.
type RetryableSender struct {
	maxRetries int
	timeout    time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer
}

// SenderOption configures a RetryableSender.
type SenderOption func(*RetryableSender)

// WithMaxRetries sets the number of attempts. Values below 1 are ignored.
func WithMaxRetries(n int) SenderOption {
	return func(s *RetryableSender) {
		if n > 0 {
			s.maxRetries = n
		}
	}
}

// WithTimeout sets the per-attempt client timeout.
func WithTimeout(d time.Duration) SenderOption {
	return func(s *RetryableSender) { s.timeout = d }
}

// NewRetryableSender creates a sender making MaxRetries attempts with a 30s
// per-attempt timeout unless overridden.
func NewRetryableSender(logger *slog.Logger, opts ...SenderOption) *RetryableSender {
	s := &RetryableSender{
		maxRetries: MaxRetries,
		timeout:    30 * time.Second,
		logger:     logger.With("component", "retryable-sender"),
		tracer:     otel.Tracer("validation-worker-sender"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxAttempts returns the configured attempt bound.
func (s *RetryableSender) MaxAttempts() int { return s.maxRetries }

// Send marshals payload as JSON and sends it with method to url. Any 2xx
// response ends the loop; other statuses and transport errors count as a
// failed attempt. Once every attempt failed, the returned error is a
// *domain.DeliveryError carrying the last failure.
func (s *RetryableSender) Send(ctx context.Context, method, url string, payload any, headers map[string]string) (*Response, error) {
	ctx, span := s.tracer.Start(ctx, "sender.Send", trace.WithAttributes(
		attribute.String("http.method", strings.ToUpper(method)),
		attribute.String("http.url", url),
	))
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal payload")
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	// Every Send owns its connection pool; nothing outlives the call.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport, Timeout: s.timeout}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts = attempt

		resp, err := s.doSend(ctx, client, method, url, body, headers)
		if err == nil {
			metrics.DeliveryAttemptsTotal.WithLabelValues("success").Inc()
			span.SetAttributes(attribute.Int("delivery.attempts", attempt), attribute.Int("http.status_code", resp.StatusCode))
			span.SetStatus(codes.Ok, "delivered")
			return resp, nil
		}

		lastErr = err
		metrics.DeliveryAttemptsTotal.WithLabelValues("failure").Inc()
		span.AddEvent("attempt_failed", trace.WithAttributes(attribute.Int("attempt", attempt)))
		s.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"max_attempts", s.maxRetries,
			"url", url,
			"error", err,
		)
	}

	derr := &domain.DeliveryError{Attempts: attempts, Err: lastErr}
	span.RecordError(derr)
	span.SetStatus(codes.Error, "all attempts failed")
	return nil, derr
}

// doSend performs a single attempt.
func (s *RetryableSender) doSend(ctx context.Context, client *http.Client, method, url string, body []byte, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("http request returned non-2xx status: %s", resp.Status)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}
