// Package breaker implements the circuit breaker guarding every collaborator
// call. One breaker exists per collaborator name; all state for a breaker is
// serialized behind its own mutex.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creatorkit/maestro/pkg/collaborator"
	"github.com/creatorkit/maestro/pkg/models"
)

// ErrCircuitOpen is returned without invoking the wrapped operation while the
// breaker is open. Callers treat it as a fast-fail collaborator error.
var ErrCircuitOpen = errors.New("circuit open")

// Config holds breaker thresholds.
type Config struct {
	FailureThreshold int           // Consecutive failures before opening
	ResetTimeout     time.Duration // Cool-down before a half-open trial
}

// DefaultConfig mirrors the thresholds the automation product shipped with.
var DefaultConfig = Config{
	FailureThreshold: 5,
	ResetTimeout:     60 * time.Second,
}

// Breaker guards calls to a single named collaborator.
type Breaker struct {
	name   string
	config Config
	logger *slog.Logger

	mu            sync.Mutex
	state         models.BreakerState
	failures      int
	openedAt      time.Time
	trialInFlight bool

	now func() time.Time
}

func New(name string, config Config, logger *slog.Logger) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig.FailureThreshold
	}

	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultConfig.ResetTimeout
	}

	return &Breaker{
		name:   name,
		config: config,
		logger: logger.With("module", "breaker", "collaborator", name),
		state:  models.BreakerClosed,
		now:    time.Now,
	}
}

// Do executes op under breaker protection. While open and inside the reset
// timeout it fails with ErrCircuitOpen and op is never invoked. Only
// collaborator-reported failures and timeouts count toward the failure
// threshold; other errors pass through without accounting.
func (b *Breaker) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if err := b.admit(ctx); err != nil {
		return err
	}

	err := op(ctx)
	b.record(ctx, err)

	return err
}

// admit decides whether the call may proceed and performs the Open to
// HalfOpen transition when the cool-down has elapsed.
func (b *Breaker) admit(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case models.BreakerClosed:
		return nil
	case models.BreakerOpen:
		if b.now().Sub(b.openedAt) < b.config.ResetTimeout {
			return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}

		b.state = models.BreakerHalfOpen
		b.trialInFlight = true
		b.logger.InfoContext(ctx, "Breaker entering half-open state")

		return nil
	case models.BreakerHalfOpen:
		// Exactly one trial call is permitted.
		if b.trialInFlight {
			return fmt.Errorf("%s: %w", b.name, ErrCircuitOpen)
		}

		b.trialInFlight = true

		return nil
	}

	return nil
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	failed := countsAsFailure(err)

	switch b.state {
	case models.BreakerClosed:
		if !failed {
			b.failures = 0

			return
		}

		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.state = models.BreakerOpen
			b.openedAt = b.now()
			b.logger.WarnContext(ctx, "Breaker opened",
				"consecutive_failures", b.failures,
				"reset_timeout", b.config.ResetTimeout)
		}
	case models.BreakerHalfOpen:
		b.trialInFlight = false

		if failed {
			b.state = models.BreakerOpen
			b.openedAt = b.now()
			b.logger.WarnContext(ctx, "Breaker trial failed, reopening")

			return
		}

		b.state = models.BreakerClosed
		b.failures = 0
		b.logger.InfoContext(ctx, "Breaker closed after successful trial")
	case models.BreakerOpen:
		// A call admitted before the breaker opened may report late; it does
		// not change the open state.
	}
}

// countsAsFailure classifies the outcome of a collaborator call. Only
// collaborator-reported failures and deadline expiry open the circuit.
func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}

	if collaborator.IsCollaboratorError(err) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// State returns the current breaker state.
func (b *Breaker) State() models.BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// ResetTimeout exposes the configured cool-down so retry backoff can respect it.
func (b *Breaker) ResetTimeout() time.Duration {
	return b.config.ResetTimeout
}

// Snapshot is a point-in-time view of one breaker, read by the health monitor.
type Snapshot struct {
	Name                string              `json:"name"`
	State               models.BreakerState `json:"state"`
	ConsecutiveFailures int                 `json:"consecutive_failures"`
	OpenedAt            time.Time           `json:"opened_at,omitempty"`
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:                b.name,
		State:               b.state,
		ConsecutiveFailures: b.failures,
		OpenedAt:            b.openedAt,
	}
}
