package worker

import (
	"context"
	"time"
)

// driver is the actual back-end implementation a Worker delegates to. The
// Worker type owns the state machine (STARTING/IDLE/BUSY/UNHEALTHY/TERMINATED)
// and the output ring buffer; the driver owns how a payload actually reaches
// the external process.
//
// Two driver shapes exist in this package, both satisfying the same
// interface, because the back-ends in this domain genuinely work two
// different ways:
//
//   - session CLI drivers (claude/codex/goose): the binary is invoked fresh
//     per prompt but resumes a session id, so the *logical* process is
//     long-lived even though the *OS* process is not.
//   - the shell driver: one OS process (a shell) is kept alive for the
//     worker's entire lifetime and commands are piped to its stdin.
//
// Both are interchangeable from the pool and dispatch loop's point of view.
type driver interface {
	// start prepares the driver. For session drivers this is a cheap
	// existence check; for the shell driver it spawns and probes the
	// persistent process.
	start(ctx context.Context) error

	// execute runs one payload and returns its result. Must respect ctx
	// cancellation/timeout.
	execute(ctx context.Context, payload Payload, out *ringBuffer) (Result, error)

	// healthProbe is a cheap liveness check.
	healthProbe(ctx context.Context) bool

	// stop requests termination, waiting up to grace before the driver may
	// escalate to a forceful kill. Idempotent.
	stop(grace time.Duration) error
}
