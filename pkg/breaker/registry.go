package breaker

import (
	"log/slog"
	"sync"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
)

// Registry hands out one shared breaker per collaborator name. Workflow bodies
// running concurrently against the same collaborator share its breaker.
type Registry struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewRegistry(config Config, logger *slog.Logger) *Registry {
	return &Registry{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*Breaker),
	}
}

// ResetTimeout exposes the registry-wide breaker cool-down so retry backoff
// can respect it.
func (r *Registry) ResetTimeout() time.Duration {
	if r.config.ResetTimeout <= 0 {
		return DefaultConfig.ResetTimeout
	}

	return r.config.ResetTimeout
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.breakers[name]
	if !ok {
		b = New(name, r.config, r.logger)
		r.breakers[name] = b
	}

	return b
}

// States returns the current state of every known breaker.
func (r *Registry) States() map[string]models.BreakerState {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make(map[string]models.BreakerState, len(r.breakers))
	for name, b := range r.breakers {
		states[name] = b.State()
	}

	return states
}

// Snapshots returns a point-in-time view of every known breaker.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshots := make([]Snapshot, 0, len(r.breakers))
	for _, b := range r.breakers {
		snapshots = append(snapshots, b.Snapshot())
	}

	return snapshots
}
