// Package dispatcher implements the master controller: it accepts workflow
// requests, tracks run state, enforces dependency readiness and concurrency
// limits, executes workflow bodies in a bounded worker pool, and archives
// terminal runs.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creatorkit/maestro/pkg/breaker"
	"github.com/creatorkit/maestro/pkg/content"
	"github.com/creatorkit/maestro/pkg/eventbus"
	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/persistence"
	"github.com/creatorkit/maestro/pkg/registry"
	"github.com/google/uuid"
)

// ErrRunNotFound indicates no run exists for the requested run ID.
var ErrRunNotFound = errors.New("run not found")

// Config holds dispatcher tuning.
type Config struct {
	MaxConcurrent       int           // Bounded worker pool size
	BaseBackoff         time.Duration // First retry delay
	MaxBackoff          time.Duration // Retry delay cap
	StarvationThreshold time.Duration // Ready age that promotes a run one tier
	PollInterval        time.Duration // Dispatch loop tick
	Retention           time.Duration // How long terminal runs stay queryable
}

// DefaultConfig mirrors the product's documented defaults (5 concurrent
// workflows).
var DefaultConfig = Config{
	MaxConcurrent:       5,
	BaseBackoff:         2 * time.Second,
	MaxBackoff:          5 * time.Minute,
	StarvationThreshold: 2 * time.Minute,
	PollInterval:        50 * time.Millisecond,
	Retention:           24 * time.Hour,
}

type outcomeKey struct {
	workflow string
	epoch    int64
}

// trackedRun couples a run with its dispatch bookkeeping. Owned by the
// dispatch loop; external readers only ever receive clones.
type trackedRun struct {
	run         *models.WorkflowRun
	definition  models.WorkflowDefinition
	readyAt     time.Time
	nextAttempt time.Time // Earliest re-dispatch after backoff
	failedDep   string
}

type completion struct {
	tracked *trackedRun
	err     error
}

// Dispatcher is the master controller. A single dispatch loop goroutine is
// the only writer of run state and slot accounting.
type Dispatcher struct {
	config   Config
	registry *registry.Registry
	breakers *breaker.Registry
	store    persistence.Persistence
	bus      eventbus.EventPublisher
	logger   *slog.Logger

	mu       sync.Mutex
	runs     map[string]*trackedRun // By run ID
	live     map[string]*trackedRun // Non-terminal run per workflow name
	bodies   map[string]content.BodyFunc
	outcomes map[outcomeKey]models.RunStatus
	lastRun  map[string]*models.WorkflowRun // Latest terminal run per workflow name
	running  int

	wake        chan struct{}
	completions chan completion

	now func() time.Time
}

func New(
	config Config,
	reg *registry.Registry,
	breakers *breaker.Registry,
	store persistence.Persistence,
	bus eventbus.EventPublisher,
	logger *slog.Logger,
) *Dispatcher {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig.MaxConcurrent
	}

	if config.BaseBackoff <= 0 {
		config.BaseBackoff = DefaultConfig.BaseBackoff
	}

	if config.MaxBackoff <= 0 {
		config.MaxBackoff = DefaultConfig.MaxBackoff
	}

	if config.StarvationThreshold <= 0 {
		config.StarvationThreshold = DefaultConfig.StarvationThreshold
	}

	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig.PollInterval
	}

	if config.Retention <= 0 {
		config.Retention = DefaultConfig.Retention
	}

	return &Dispatcher{
		config:      config,
		registry:    reg,
		breakers:    breakers,
		store:       store,
		bus:         bus,
		logger:      logger.With("module", "dispatcher"),
		runs:        make(map[string]*trackedRun),
		live:        make(map[string]*trackedRun),
		bodies:      make(map[string]content.BodyFunc),
		outcomes:    make(map[outcomeKey]models.RunStatus),
		lastRun:     make(map[string]*models.WorkflowRun),
		wake:        make(chan struct{}, 1),
		completions: make(chan completion, config.MaxConcurrent*4),
		now:         time.Now,
	}
}

// RegisterBody binds an executable body to a workflow name. Workflows without
// a body complete immediately; bodies are normally built by content.Pipeline.
func (d *Dispatcher) RegisterBody(workflowName string, body content.BodyFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.bodies[workflowName] = body
}

// SubmitRequest enqueues a workflow run for the given trigger epoch, first
// enqueueing any transitive dependencies that have no outcome for that epoch
// yet. A dependency still in flight for another epoch is enqueued by the
// dispatch loop once that run settles.
// It fails with registry.ErrUnknownWorkflow for unregistered names.
// While a run for the same workflow is in flight the existing run ID is
// returned: at most one live run exists per workflow name.
func (d *Dispatcher) SubmitRequest(ctx context.Context, workflowName string, params map[string]any, epoch int64) (string, error) {
	order, err := d.registry.ResolveOrder([]string{workflowName})
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	runID := ""

	for _, name := range order {
		if existing, ok := d.live[name]; ok {
			if name == workflowName {
				runID = existing.run.ID
			}

			continue
		}

		// Dependencies with a recorded outcome for this epoch are already
		// settled and need no new run.
		if _, done := d.outcomes[outcomeKey{workflow: name, epoch: epoch}]; done && name != workflowName {
			continue
		}

		definition, err := d.registry.Get(name)
		if err != nil {
			return "", err
		}

		var triggerData map[string]any
		if name == workflowName {
			triggerData = params
		}

		tracked := &trackedRun{
			run: &models.WorkflowRun{
				ID:           "run-" + uuid.New().String(),
				WorkflowName: name,
				Status:       models.RunPending,
				Epoch:        epoch,
				TriggerData:  triggerData,
				CreatedAt:    d.now(),
			},
			definition: definition,
		}

		d.runs[tracked.run.ID] = tracked
		d.live[name] = tracked

		d.logger.InfoContext(ctx, "Accepted workflow request",
			"workflow", name,
			"run_id", tracked.run.ID,
			"epoch", epoch,
			"priority", definition.Priority.String())

		if name == workflowName {
			runID = tracked.run.ID
		}
	}

	d.signal()

	return runID, nil
}

// RunStatus returns a snapshot of the run with the given ID.
func (d *Dispatcher) RunStatus(runID string) (*models.WorkflowRun, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tracked, ok := d.runs[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return tracked.run.Clone(), nil
}

// WorkflowHealth returns the per-workflow last-run view consumed by the
// health monitor.
func (d *Dispatcher) WorkflowHealth() map[string]models.WorkflowHealth {
	d.mu.Lock()
	defer d.mu.Unlock()

	health := make(map[string]models.WorkflowHealth)

	for _, definition := range d.registry.All() {
		entry := models.WorkflowHealth{
			Name:     definition.Name,
			Priority: definition.Priority,
		}

		if last, ok := d.lastRun[definition.Name]; ok {
			entry.LastStatus = last.Status
			entry.LastError = last.LastError

			if last.EndedAt != nil {
				entry.LastRunAt = *last.EndedAt
			}
		}

		if tracked, ok := d.live[definition.Name]; ok {
			entry.LastStatus = tracked.run.Status
		}

		health[definition.Name] = entry
	}

	return health
}

func (d *Dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}
