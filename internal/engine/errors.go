package engine

import "errors"

var (
	// ErrStopped is returned by Submit once the orchestrator has begun
	// shutting down; it accepts no new submissions.
	ErrStopped = errors.New("engine: orchestrator is stopped")
)
