package worker

import "errors"

var (
	// ErrNotIdle is returned by Execute when the worker is neither in
	// StateIdle nor in StateBusy, and by MarkBusy when it is not in StateIdle.
	ErrNotIdle = errors.New("worker: not idle")

	// ErrUnknownProfile is returned by New when the requested model profile
	// has no registered builder.
	ErrUnknownProfile = errors.New("worker: unknown model profile")

	// ErrStartFailed is returned by Start when the driver fails to start or
	// its readiness probe fails. The probe is bounded only by the context
	// passed to Start; Config.StartupGrace is not applied to it.
	ErrStartFailed = errors.New("worker: start failed")

	// ErrAlreadyTerminated names the condition of a worker that has already
	// been torn down. Stop and Execute do not return it: Stop on a terminated
	// worker returns nil, and Execute returns ErrNotIdle.
	ErrAlreadyTerminated = errors.New("worker: already terminated")

	// ErrProcessExited wraps a driver-level I/O failure or unexpected child
	// exit during Execute, as distinct from the task's own exit code or a
	// timeout/cancellation. Execute reports it to callers as error="process-exited".
	ErrProcessExited = errors.New("worker: process exited unexpectedly")
)
