// Package registry holds immutable workflow definitions and their dependency
// graph, and computes valid execution orders over them.
package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/creatorkit/maestro/pkg/models"
	"github.com/go-playground/validator/v10"
)

type entry struct {
	definition models.WorkflowDefinition
	index      int // Registration order, used as the stable tie-break
}

// Registry stores workflow definitions. Definitions are immutable once
// registered; Register rejects duplicates and cycles without partial updates.
type Registry struct {
	logger   *slog.Logger
	validate *validator.Validate

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger.With("module", "registry"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		entries:  make(map[string]*entry),
	}
}

// Register adds a definition. It fails with ErrDuplicateWorkflow if the name
// is taken and with ErrCyclicDependency if the definition's edges would close
// a cycle. On any error the registry is left unchanged.
func (r *Registry) Register(definition models.WorkflowDefinition) error {
	if err := r.validate.Struct(definition); err != nil {
		return fmt.Errorf("invalid workflow definition %q: %w", definition.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[definition.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWorkflow, definition.Name)
	}

	for _, dep := range definition.DependsOn {
		if dep == definition.Name {
			return fmt.Errorf("%w: %s depends on itself", ErrCyclicDependency, definition.Name)
		}
	}

	if cycle := r.findCycle(definition); cycle != "" {
		return fmt.Errorf("%w: %s", ErrCyclicDependency, cycle)
	}

	if definition.RegisteredAt.IsZero() {
		definition.RegisteredAt = time.Now().UTC()
	}

	r.entries[definition.Name] = &entry{
		definition: definition,
		index:      len(r.order),
	}
	r.order = append(r.order, definition.Name)

	r.logger.Info("Registered workflow",
		"workflow", definition.Name,
		"priority", definition.Priority.String(),
		"depends_on", definition.DependsOn)

	return nil
}

// findCycle searches for a dependency cycle that would exist once candidate
// is part of the graph. Returns a description of the cycle, or "".
func (r *Registry) findCycle(candidate models.WorkflowDefinition) string {
	dependsOn := func(name string) []string {
		if name == candidate.Name {
			return candidate.DependsOn
		}

		if e, ok := r.entries[name]; ok {
			return e.definition.DependsOn
		}

		return nil
	}

	const (
		unvisited = iota
		visiting
		done
	)

	colors := make(map[string]int)

	var visit func(name string) string

	visit = func(name string) string {
		switch colors[name] {
		case visiting:
			return fmt.Sprintf("cycle through %s", name)
		case done:
			return ""
		}

		colors[name] = visiting

		for _, dep := range dependsOn(name) {
			if found := visit(dep); found != "" {
				return found
			}
		}

		colors[name] = done

		return ""
	}

	return visit(candidate.Name)
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (models.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	if !ok {
		return models.WorkflowDefinition{}, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
	}

	return e.definition, nil
}

// All returns every registered definition in registration order.
func (r *Registry) All() []models.WorkflowDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	definitions := make([]models.WorkflowDefinition, 0, len(r.order))
	for _, name := range r.order {
		definitions = append(definitions, r.entries[name].definition)
	}

	return definitions
}

// Dependents returns the names of workflows that depend, directly or
// transitively, on name. Used to propagate dependency failure as skips.
func (r *Registry) Dependents(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	affected := map[string]bool{name: true}

	// Registration order guarantees dependencies precede dependents only for
	// already-linked graphs, so iterate until the set stops growing.
	for changed := true; changed; {
		changed = false

		for _, candidate := range r.order {
			if affected[candidate] {
				continue
			}

			for _, dep := range r.entries[candidate].definition.DependsOn {
				if affected[dep] {
					affected[candidate] = true
					changed = true

					break
				}
			}
		}
	}

	delete(affected, name)

	dependents := make([]string, 0, len(affected))
	for _, candidate := range r.order {
		if affected[candidate] {
			dependents = append(dependents, candidate)
		}
	}

	return dependents
}

// ResolveOrder returns a topologically sorted sequence covering the requested
// names and their transitive dependencies. Independently orderable nodes are
// tie-broken by higher priority first, then registration order.
func (r *Registry) ResolveOrder(requested []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Collect the closure of requested names over dependency edges.
	closure := make(map[string]bool)

	var collect func(name string) error

	collect = func(name string) error {
		if closure[name] {
			return nil
		}

		e, ok := r.entries[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownDependency, name)
		}

		closure[name] = true

		for _, dep := range e.definition.DependsOn {
			if err := collect(dep); err != nil {
				return err
			}
		}

		return nil
	}

	for _, name := range requested {
		if _, ok := r.entries[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, name)
		}

		if err := collect(name); err != nil {
			return nil, err
		}
	}

	// Kahn's algorithm, selecting the best eligible node each round.
	indegree := make(map[string]int, len(closure))
	for name := range closure {
		for _, dep := range r.entries[name].definition.DependsOn {
			if closure[dep] {
				indegree[name]++
			}
		}
	}

	ordered := make([]string, 0, len(closure))
	placed := make(map[string]bool, len(closure))

	for len(ordered) < len(closure) {
		best := ""

		for _, name := range r.order {
			if !closure[name] || placed[name] || indegree[name] > 0 {
				continue
			}

			if best == "" || r.entries[name].definition.Priority < r.entries[best].definition.Priority {
				best = name
			}
		}

		if best == "" {
			// Unreachable for registered graphs; Register rejects cycles.
			return nil, fmt.Errorf("%w: unresolvable order", ErrCyclicDependency)
		}

		ordered = append(ordered, best)
		placed[best] = true

		for name := range closure {
			for _, dep := range r.entries[name].definition.DependsOn {
				if dep == best {
					indegree[name]--
				}
			}
		}
	}

	return ordered, nil
}
