package workflow

import "errors"

var (
	// ErrValidation is returned when a workflow document fails validation —
	// duplicate names, an unresolvable dependency, or a dependency cycle.
	// Nothing is submitted to the queue when this is returned.
	ErrValidation = errors.New("workflow: document failed validation")
)
