package worker_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"validation-worker/internal/domain"
)

type logRecord struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

// captureHandler keeps every record so tests can count them by level.
type captureHandler struct {
	mu      *sync.Mutex
	records *[]logRecord
	attrs   []slog.Attr
}

func newCaptureLogger() (*slog.Logger, *captureHandler) {
	h := &captureHandler{mu: &sync.Mutex{}, records: &[]logRecord{}}
	return slog.New(h), h
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	h.mu.Lock()
	*h.records = append(*h.records, logRecord{level: r.Level, msg: r.Message, attrs: attrs})
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(as []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(as))
	merged = append(merged, h.attrs...)
	merged = append(merged, as...)
	return &captureHandler{mu: h.mu, records: h.records, attrs: merged}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (h *captureHandler) atLevel(level slog.Level) []logRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []logRecord
	for _, r := range *h.records {
		if r.level == level {
			out = append(out, r)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// nextService records what the downstream endpoint receives.
type nextService struct {
	*httptest.Server
	hits       atomic.Int32
	mu         sync.Mutex
	bodies     []map[string]any
	identities []string
}

func newNextService(t *testing.T, status int) *nextService {
	t.Helper()
	ns := &nextService{}
	ns.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ns.hits.Add(1)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		ns.mu.Lock()
		ns.bodies = append(ns.bodies, body)
		ns.identities = append(ns.identities, r.Header.Get(domain.IdentityHeader))
		ns.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(ns.Close)
	return ns
}

// memoryDeadLetters is an in-memory domain.DeadLetterRepository.
type memoryDeadLetters struct {
	mu      sync.Mutex
	letters []*domain.DeadLetter
}

func (m *memoryDeadLetters) Save(_ context.Context, letter *domain.DeadLetter) error {
	if err := letter.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	m.letters = append(m.letters, letter)
	m.mu.Unlock()
	return nil
}

func (m *memoryDeadLetters) List(_ context.Context, aiService string, limit int) ([]*domain.DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.DeadLetter
	for _, l := range m.letters {
		if l.AIService == aiService && (limit <= 0 || len(out) < limit) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (ns *nextService) body(i int) map[string]any {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.bodies[i]
}

func (ns *nextService) identity(i int) string {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	return ns.identities[i]
}
