// internal/worker/registry.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"validation-worker/internal/domain"
)

// ErrUnknownKind is returned when no launcher serves the requested kind.
var ErrUnknownKind = errors.New("unknown validator kind")

// Registry routes launches to the launcher registered for each kind.
type Registry struct {
	mu        sync.RWMutex
	launchers map[string]*Launcher
}

// NewRegistry creates a registry holding the given launchers.
func NewRegistry(launchers ...*Launcher) *Registry {
	r := &Registry{launchers: make(map[string]*Launcher)}
	for _, l := range launchers {
		r.Register(l)
	}
	return r
}

// Register adds or replaces the launcher for its kind.
func (r *Registry) Register(l *Launcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.launchers[l.Kind().Name] = l
}

// Kinds returns the registered kind names, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.launchers))
	for name := range r.launchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Launch starts job on the launcher registered for kind.
func (r *Registry) Launch(ctx context.Context, kind string, job *domain.Job, nextService, identity string) (*Handle, error) {
	r.mu.RLock()
	l, ok := r.launchers[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return l.Launch(ctx, job, nextService, identity), nil
}

// Shutdown waits for the jobs of every launcher.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	launchers := make([]*Launcher, 0, len(r.launchers))
	for _, l := range r.launchers {
		launchers = append(launchers, l)
	}
	r.mu.RUnlock()

	var errs []error
	for _, l := range launchers {
		if err := l.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", l.Kind().Name, err))
		}
	}
	return errors.Join(errs...)
}
