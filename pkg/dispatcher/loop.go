package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/creatorkit/maestro/pkg/breaker"
	"github.com/creatorkit/maestro/pkg/content"
	"github.com/creatorkit/maestro/pkg/eventbus"
	"github.com/creatorkit/maestro/pkg/events"
	"github.com/creatorkit/maestro/pkg/models"
	"github.com/creatorkit/maestro/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Start runs the dispatch loop until the context is cancelled. The loop is
// the single writer of run state transitions and slot accounting.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.InfoContext(ctx, "Starting dispatcher",
		"max_concurrent", d.config.MaxConcurrent)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.InfoContext(ctx, "Dispatcher stopped")

			return nil
		case done := <-d.completions:
			d.handleCompletion(ctx, done)
		case <-d.wake:
			d.sweep(ctx)
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

// sweep advances every run as far as its dependencies and the slot limit
// allow: missing dependency runs first, then skip propagation, then readiness
// promotion, then dispatch.
func (d *Dispatcher) sweep(ctx context.Context) {
	d.mu.Lock()

	d.ensureDependencies(ctx)
	skipped := d.propagateSkips()
	d.promoteReady()
	started := d.dispatchReady(ctx)

	d.pruneTerminal()

	d.mu.Unlock()

	for _, tracked := range skipped {
		d.archive(ctx, tracked)
		d.publishTerminal(ctx, tracked)
	}

	for _, tracked := range started {
		go d.execute(ctx, tracked)
	}
}

// ensureDependencies creates runs for dependencies that have neither a live
// run nor a settled outcome for a pending run's epoch. SubmitRequest skips a
// dependency while any run of it is in flight; when that run belonged to an
// earlier epoch its outcome never satisfies the dependent, so the sweep
// enqueues the missing epoch's run once the workflow is free again.
func (d *Dispatcher) ensureDependencies(ctx context.Context) {
	type missing struct {
		workflow  string
		epoch     int64
		dependent string
	}

	var needed []missing

	for _, tracked := range d.live {
		if tracked.run.Status != models.RunPending {
			continue
		}

		for _, dep := range tracked.definition.DependsOn {
			if _, settled := d.outcomes[outcomeKey{workflow: dep, epoch: tracked.run.Epoch}]; settled {
				continue
			}

			if _, inFlight := d.live[dep]; inFlight {
				continue
			}

			needed = append(needed, missing{
				workflow:  dep,
				epoch:     tracked.run.Epoch,
				dependent: tracked.run.WorkflowName,
			})
		}
	}

	for _, need := range needed {
		if _, inFlight := d.live[need.workflow]; inFlight {
			continue
		}

		definition, err := d.registry.Get(need.workflow)
		if err != nil {
			continue
		}

		tracked := &trackedRun{
			run: &models.WorkflowRun{
				ID:           "run-" + uuid.New().String(),
				WorkflowName: need.workflow,
				Status:       models.RunPending,
				Epoch:        need.epoch,
				CreatedAt:    d.now(),
			},
			definition: definition,
		}

		d.runs[tracked.run.ID] = tracked
		d.live[need.workflow] = tracked

		d.logger.InfoContext(ctx, "Enqueued missing dependency run",
			"workflow", need.workflow,
			"run_id", tracked.run.ID,
			"epoch", need.epoch,
			"dependent", need.dependent)
	}
}

// propagateSkips marks runs whose dependencies failed for their epoch as
// Skipped. Recording the skip as an outcome cascades the failure through
// transitive dependents on subsequent passes within the same sweep.
func (d *Dispatcher) propagateSkips() []*trackedRun {
	var allSkipped []*trackedRun

	for changed := true; changed; {
		changed = false

		for _, tracked := range d.live {
			if tracked.run.Status != models.RunPending && tracked.run.Status != models.RunReady {
				continue
			}

			for _, dep := range tracked.definition.DependsOn {
				outcome, ok := d.outcomes[outcomeKey{workflow: dep, epoch: tracked.run.Epoch}]
				if !ok || outcome == models.RunSucceeded {
					continue
				}

				tracked.failedDep = dep
				d.finishLocked(tracked, models.RunSkipped,
					fmt.Sprintf("dependency %s %s", dep, outcome))

				allSkipped = append(allSkipped, tracked)
				changed = true

				break
			}
		}
	}

	return allSkipped
}

// promoteReady moves Pending runs whose dependencies all succeeded for their
// epoch into the Ready state.
func (d *Dispatcher) promoteReady() {
	for _, tracked := range d.live {
		if tracked.run.Status != models.RunPending {
			continue
		}

		satisfied := true

		for _, dep := range tracked.definition.DependsOn {
			if d.outcomes[outcomeKey{workflow: dep, epoch: tracked.run.Epoch}] != models.RunSucceeded {
				satisfied = false

				break
			}
		}

		if satisfied {
			tracked.run.Status = models.RunReady
			tracked.readyAt = d.now()
		}
	}
}

// dispatchReady acquires slots for Ready runs in priority order and returns
// the runs to execute. Slot acquisition happens here, under the dispatcher
// lock, so exactly one run can ever hold the slot for a workflow name.
func (d *Dispatcher) dispatchReady(ctx context.Context) []*trackedRun {
	now := d.now()

	ready := make([]*trackedRun, 0)

	for _, tracked := range d.live {
		if tracked.run.Status != models.RunReady {
			continue
		}

		if tracked.nextAttempt.After(now) {
			continue
		}

		ready = append(ready, tracked)
	}

	sort.Slice(ready, func(i, j int) bool {
		pi := d.effectivePriority(ready[i], now)
		pj := d.effectivePriority(ready[j], now)

		if pi != pj {
			return pi < pj
		}

		return ready[i].run.CreatedAt.Before(ready[j].run.CreatedAt)
	})

	started := make([]*trackedRun, 0)

	for _, tracked := range ready {
		if d.running >= d.config.MaxConcurrent {
			break
		}

		d.running++
		tracked.run.Status = models.RunRunning
		startedAt := d.now()
		tracked.run.StartedAt = &startedAt

		d.logger.InfoContext(ctx, "Dispatching workflow run",
			"workflow", tracked.run.WorkflowName,
			"run_id", tracked.run.ID,
			"retry_count", tracked.run.RetryCount,
			"slots_in_use", d.running)

		started = append(started, tracked)
	}

	return started
}

// effectivePriority promotes a run one tier when it has been Ready longer
// than the starvation threshold, bounding how long continuously arriving
// higher-priority work can preempt it.
func (d *Dispatcher) effectivePriority(tracked *trackedRun, now time.Time) models.Priority {
	priority := tracked.definition.Priority

	if priority > models.PriorityCritical && now.Sub(tracked.readyAt) > d.config.StarvationThreshold {
		priority--
	}

	return priority
}

// execute runs one workflow body under its timeout and reports the result to
// the dispatch loop. The dispatcher stops waiting at the deadline even if the
// body's collaborator call has not returned; collaborators are responsible
// for honoring cancellation.
func (d *Dispatcher) execute(ctx context.Context, tracked *trackedRun) {
	d.mu.Lock()
	body := d.bodies[tracked.run.WorkflowName]
	snapshot := tracked.run.Clone()
	d.mu.Unlock()

	tracer := otel.Tracer("maestro/dispatcher")
	runCtx, span := otelhelper.StartSpan(ctx, tracer, "dispatcher.execute",
		attribute.String(otelhelper.WorkflowNameKey, snapshot.WorkflowName),
		attribute.String(otelhelper.RunIDKey, snapshot.ID),
		attribute.Int64(otelhelper.EpochKey, snapshot.Epoch),
		attribute.String(otelhelper.PriorityKey, tracked.definition.Priority.String()),
	)
	defer span.End()

	runCtx, cancel := context.WithTimeout(runCtx, tracked.definition.Timeout)
	defer cancel()

	d.publishEvent(ctx, snapshot.WorkflowName, events.RunDispatched{
		BaseEvent: events.NewBaseEvent(events.RunDispatchedEvent, snapshot.WorkflowName),
		RunID:     snapshot.ID,
		Epoch:     snapshot.Epoch,
	})

	done := make(chan error, 1)

	go func() {
		done <- d.runBody(runCtx, body, snapshot)
	}()

	var err error

	select {
	case err = <-done:
	case <-runCtx.Done():
		err = fmt.Errorf("workflow %s timed out after %s: %w",
			snapshot.WorkflowName, tracked.definition.Timeout, context.DeadlineExceeded)
	}

	if err != nil {
		otelhelper.SetError(span, err)
	}

	d.completions <- completion{tracked: tracked, err: err}
}

func (d *Dispatcher) runBody(ctx context.Context, body content.BodyFunc, run *models.WorkflowRun) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("workflow body panicked: %v", recovered)
		}
	}()

	if body == nil {
		return nil
	}

	return body(ctx, run)
}

// handleCompletion releases the run's slot and either retries, fails, or
// succeeds the run.
func (d *Dispatcher) handleCompletion(ctx context.Context, done completion) {
	tracked := done.tracked

	d.mu.Lock()

	d.running--

	switch {
	case done.err == nil:
		d.finishLocked(tracked, models.RunSucceeded, "")
	case tracked.run.RetryCount < tracked.definition.MaxRetries:
		delay := backoffDelay(d.config.BaseBackoff, d.config.MaxBackoff, tracked.run.RetryCount)

		// A breaker fast-fail cannot succeed before the breaker's own
		// half-open trial; do not retry sooner.
		if errors.Is(done.err, breaker.ErrCircuitOpen) && delay < d.breakers.ResetTimeout() {
			delay = d.breakers.ResetTimeout()
		}

		tracked.run.RetryCount++
		tracked.run.Status = models.RunReady
		tracked.run.LastError = done.err.Error()
		tracked.run.StartedAt = nil
		tracked.readyAt = d.now()
		tracked.nextAttempt = d.now().Add(delay)

		d.logger.WarnContext(ctx, "Workflow run failed, retrying",
			"workflow", tracked.run.WorkflowName,
			"run_id", tracked.run.ID,
			"retry_count", tracked.run.RetryCount,
			"backoff", delay,
			"error", done.err)
	default:
		d.finishLocked(tracked, models.RunFailed, done.err.Error())
	}

	terminal := tracked.run.Status.Terminal()

	d.mu.Unlock()

	if terminal {
		d.archive(ctx, tracked)
		d.publishTerminal(ctx, tracked)
	}

	d.signal()
}

// finishLocked records a terminal status. Callers hold d.mu.
func (d *Dispatcher) finishLocked(tracked *trackedRun, status models.RunStatus, lastError string) {
	endedAt := d.now()

	tracked.run.Status = status
	tracked.run.EndedAt = &endedAt

	if lastError != "" {
		tracked.run.LastError = lastError
	}

	d.outcomes[outcomeKey{workflow: tracked.run.WorkflowName, epoch: tracked.run.Epoch}] = status
	d.lastRun[tracked.run.WorkflowName] = tracked.run
	delete(d.live, tracked.run.WorkflowName)

	d.logger.Info("Workflow run finished",
		"workflow", tracked.run.WorkflowName,
		"run_id", tracked.run.ID,
		"status", status,
		"retry_count", tracked.run.RetryCount,
		"error", tracked.run.LastError)
}

// archive appends the terminal run to the run log.
func (d *Dispatcher) archive(ctx context.Context, tracked *trackedRun) {
	if d.store == nil {
		return
	}

	d.mu.Lock()
	snapshot := tracked.run.Clone()
	d.mu.Unlock()

	if err := d.store.RunLog().Append(ctx, snapshot); err != nil {
		d.logger.ErrorContext(ctx, "Failed to archive run",
			"run_id", snapshot.ID, "error", err)
	}
}

func (d *Dispatcher) publishTerminal(ctx context.Context, tracked *trackedRun) {
	d.mu.Lock()
	snapshot := tracked.run.Clone()
	failedDep := tracked.failedDep
	d.mu.Unlock()

	var event eventbus.Event

	switch snapshot.Status {
	case models.RunSucceeded:
		durationMS := int64(0)
		if snapshot.StartedAt != nil && snapshot.EndedAt != nil {
			durationMS = snapshot.EndedAt.Sub(*snapshot.StartedAt).Milliseconds()
		}

		event = events.RunSucceeded{
			BaseEvent:  events.NewBaseEvent(events.RunSucceededEvent, snapshot.WorkflowName),
			RunID:      snapshot.ID,
			Epoch:      snapshot.Epoch,
			DurationMS: durationMS,
			RetryCount: snapshot.RetryCount,
		}
	case models.RunFailed:
		event = events.RunFailed{
			BaseEvent:  events.NewBaseEvent(events.RunFailedEvent, snapshot.WorkflowName),
			RunID:      snapshot.ID,
			Epoch:      snapshot.Epoch,
			RetryCount: snapshot.RetryCount,
			Error:      snapshot.LastError,
		}
	case models.RunSkipped:
		event = events.RunSkipped{
			BaseEvent:        events.NewBaseEvent(events.RunSkippedEvent, snapshot.WorkflowName),
			RunID:            snapshot.ID,
			Epoch:            snapshot.Epoch,
			FailedDependency: failedDep,
		}
	default:
		return
	}

	d.publishEvent(ctx, snapshot.WorkflowName, event)
}

func (d *Dispatcher) publishEvent(ctx context.Context, key string, event eventbus.Event) {
	if d.bus == nil {
		return
	}

	if err := d.bus.Publish(ctx, key, event); err != nil {
		d.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

// pruneTerminal drops terminal runs past the retention window. Callers hold
// d.mu.
func (d *Dispatcher) pruneTerminal() {
	cutoff := d.now().Add(-d.config.Retention)

	for id, tracked := range d.runs {
		if !tracked.run.Status.Terminal() {
			continue
		}

		if tracked.run.EndedAt != nil && tracked.run.EndedAt.Before(cutoff) {
			delete(d.runs, id)
		}
	}
}
