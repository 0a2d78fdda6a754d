package workflowdoc

import "errors"

var (
	// ErrInvalid wraps any workflow document parse or validation failure:
	// malformed YAML or unknown keys, a missing workflow or task name,
	// duplicate task names, an empty task list, a task setting neither or
	// both of prompt and command, or a dependency on an unknown task.
	ErrInvalid = errors.New("workflowdoc: invalid workflow document")
)
