package worker

import (
	"context"
	"sync"

	"validation-worker/internal/domain"

	"github.com/google/uuid"
)

// Handle refers to one launched job. It is safe for concurrent use.
type Handle struct {
	id   string
	kind string
	done chan struct{}

	mu    sync.RWMutex
	state domain.State
	jobID string
	err   error
}

func newHandle(kind string) *Handle {
	return &Handle{
		id:    uuid.NewString(),
		kind:  kind,
		done:  make(chan struct{}),
		state: domain.StateStarted,
	}
}

// ID returns the execution id assigned at launch.
func (h *Handle) ID() string { return h.id }

// Kind returns the validator kind the job was launched with.
func (h *Handle) Kind() string { return h.kind }

// Done is closed once the job reached a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// State returns the current pipeline state.
func (h *Handle) State() domain.State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// JobID returns the job's own id, empty until the job was parsed.
func (h *Handle) JobID() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.jobID
}

// Err returns the error that ended the job, if any. A job that reached
// StateDone with a non-nil error had its result lost downstream.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Wait blocks until the job finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) setState(s domain.State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

func (h *Handle) setJobID(id string) {
	h.mu.Lock()
	h.jobID = id
	h.mu.Unlock()
}

func (h *Handle) finish(s domain.State, err error) {
	h.mu.Lock()
	h.state = s
	h.err = err
	h.mu.Unlock()
	close(h.done)
}
