package pool

import "errors"

var (
	// ErrCapacityExceeded is returned by Spawn when honoring the request
	// would push the pool above Config.MaxInstances.
	ErrCapacityExceeded = errors.New("pool: capacity exceeded")

	// ErrUnknownWorker is returned when a worker id does not exist in the
	// pool's roster.
	ErrUnknownWorker = errors.New("pool: unknown worker id")

	// ErrNoWorkerAvailable is returned by Acquire when no IDLE worker (or no
	// matching pinned worker) is currently available. Non-fatal: callers
	// retry.
	ErrNoWorkerAvailable = errors.New("pool: no worker available")
)
