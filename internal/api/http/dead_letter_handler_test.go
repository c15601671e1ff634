package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apihttp "validation-worker/internal/api/http"
	"validation-worker/internal/domain"
)

type stubDeadLetters struct {
	letters   []*domain.DeadLetter
	err       error
	lastLimit int
}

func (s *stubDeadLetters) Save(context.Context, *domain.DeadLetter) error { return nil }

func (s *stubDeadLetters) List(_ context.Context, aiService string, limit int) ([]*domain.DeadLetter, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	var out []*domain.DeadLetter
	for _, l := range s.letters {
		if l.AIService == aiService && len(out) < limit {
			out = append(out, l)
		}
	}
	return out, nil
}

func newDeadLetterAPI(t *testing.T, repo domain.DeadLetterRepository) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	apihttp.NewDeadLetterHandler(repo, discardLogger()).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type deadLetterPage struct {
	AIService   string               `json:"ai_service"`
	DeadLetters []*domain.DeadLetter `json:"dead_letters"`
}

func getPage(t *testing.T, url string) (int, deadLetterPage) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	var page deadLetterPage
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return resp.StatusCode, page
}

func TestListDeadLetters(t *testing.T) {
	failedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	repo := &stubDeadLetters{letters: []*domain.DeadLetter{
		{ID: "d1", JobID: "b1", AIService: "volume-type-ai", Attempts: 3, FailedAt: failedAt},
		{ID: "d2", JobID: "b2", AIService: "volume-type-ai", Attempts: 3, FailedAt: failedAt},
		{ID: "d3", JobID: "b3", AIService: "instance-type-ai", Attempts: 3, FailedAt: failedAt},
	}}
	srv := newDeadLetterAPI(t, repo)

	tests := []struct {
		name      string
		query     string
		wantIDs   []string
		wantLimit int
	}{
		{"default limit", "/dead-letters/volume-type-ai", []string{"d1", "d2"}, 100},
		{"explicit limit", "/dead-letters/volume-type-ai?limit=1", []string{"d1"}, 1},
		{"other service", "/dead-letters/instance-type-ai", []string{"d3"}, 100},
		{"nothing parked", "/dead-letters/disk-type-ai", []string{}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, page := getPage(t, srv.URL+tt.query)
			if code != http.StatusOK {
				t.Fatalf("status = %d, want 200", code)
			}
			if page.DeadLetters == nil {
				t.Fatal("dead_letters must be a list, got null")
			}
			got := make([]string, 0, len(page.DeadLetters))
			for _, l := range page.DeadLetters {
				got = append(got, l.ID)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("ids = %v, want %v", got, tt.wantIDs)
			}
			for i := range got {
				if got[i] != tt.wantIDs[i] {
					t.Errorf("ids = %v, want %v", got, tt.wantIDs)
				}
			}
			if repo.lastLimit != tt.wantLimit {
				t.Errorf("limit passed to repository = %d, want %d", repo.lastLimit, tt.wantLimit)
			}
		})
	}
}

func TestListDeadLetters_Errors(t *testing.T) {
	srv := newDeadLetterAPI(t, &stubDeadLetters{})
	for _, q := range []string{"?limit=0", "?limit=-3", "?limit=abc", "?limit=1001"} {
		if code, _ := getPage(t, srv.URL+"/dead-letters/volume-type-ai"+q); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, code)
		}
	}

	failing := newDeadLetterAPI(t, &stubDeadLetters{err: errors.New("store unavailable")})
	if code, _ := getPage(t, failing.URL+"/dead-letters/volume-type-ai"); code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", code)
	}
}
