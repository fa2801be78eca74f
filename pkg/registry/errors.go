package registry

import "errors"

// Registration errors are configuration defects: they abort registration and
// are never retried.
var (
	// ErrDuplicateWorkflow indicates a definition with the same name is
	// already registered.
	ErrDuplicateWorkflow = errors.New("duplicate workflow")

	// ErrCyclicDependency indicates the definition's dependency edges would
	// create a cycle in the dependency graph.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrUnknownDependency indicates a referenced dependency name is not
	// registered.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrUnknownWorkflow indicates the requested workflow name is not
	// registered.
	ErrUnknownWorkflow = errors.New("unknown workflow")
)
