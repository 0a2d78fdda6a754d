package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Config configures a single Worker instance.
type Config struct {
	ID               string
	ModelProfile     string // "claude", "codex", "goose", "shell"
	Command          string // CLI binary name; profile-specific default if empty
	Model            string // model override passed to session CLI drivers
	SystemPrompt     string
	WorkingDirectory string
	OutputBufferSize int // bytes; default 64 KiB
	StartupGrace     time.Duration
}

// Worker wraps one external process (or session-resuming CLI identity) and
// exposes the start/execute/stop/health_probe contract.
type Worker struct {
	id           string
	modelProfile string
	workDir      string
	procMgr      *ProcessManager

	mu            sync.Mutex
	state         State
	currentTaskID string
	startedAt     time.Time
	lastActiveAt  time.Time
	activeCancel  context.CancelFunc

	driver driver
	output *ringBuffer
}

// New constructs a Worker for the given config. The worker starts in
// StateStarting; call Start to run the readiness probe.
func New(cfg Config, procMgr *ProcessManager) (*Worker, error) {
	if cfg.OutputBufferSize <= 0 {
		cfg.OutputBufferSize = 64 * 1024
	}
	if cfg.StartupGrace <= 0 {
		cfg.StartupGrace = 5 * time.Second
	}

	d, err := newDriver(cfg, procMgr)
	if err != nil {
		return nil, err
	}

	return &Worker{
		id:           cfg.ID,
		modelProfile: cfg.ModelProfile,
		workDir:      cfg.WorkingDirectory,
		procMgr:      procMgr,
		state:        StateStarting,
		driver:       d,
		output:       newRingBuffer(cfg.OutputBufferSize),
	}, nil
}

// ID returns the worker's stable identifier.
func (w *Worker) ID() string { return w.id }

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start runs the readiness probe. On success the worker transitions to
// StateIdle; on failure it transitions to StateUnhealthy and returns
// ErrStartFailed.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	w.startedAt = time.Now()
	w.lastActiveAt = w.startedAt
	w.mu.Unlock()

	if err := w.driver.start(ctx); err != nil {
		w.mu.Lock()
		w.state = StateUnhealthy
		w.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	w.mu.Lock()
	w.state = StateIdle
	w.mu.Unlock()
	return nil
}

// MarkBusy transitions an IDLE worker to BUSY without running anything yet,
// used by the pool's acquire to reserve a worker ahead of the dispatcher
// handing it a payload via Execute.
func (w *Worker) MarkBusy() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateIdle {
		return ErrNotIdle
	}
	w.state = StateBusy
	return nil
}

// Execute runs one payload. Precondition: State() == StateIdle or BUSY (the
// latter when the caller already reserved this worker via MarkBusy). The
// worker is BUSY for the call's duration and returns to IDLE on success, or
// UNHEALTHY on I/O failure, timeout, or unexpected exit.
func (w *Worker) Execute(ctx context.Context, taskID string, payload Payload, timeout time.Duration) (Result, error) {
	w.mu.Lock()
	switch w.state {
	case StateIdle, StateBusy:
		w.state = StateBusy
	default:
		w.mu.Unlock()
		return Result{}, ErrNotIdle
	}
	w.currentTaskID = taskID

	execCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		execCtx, cancel = context.WithCancel(ctx)
	}
	w.activeCancel = cancel
	w.mu.Unlock()
	defer cancel()

	start := time.Now()
	result, err := w.driver.execute(execCtx, payload, w.output)
	result.Duration = time.Since(start)
	if err != nil {
		if taxonomy := classifyExecError(execCtx, err); taxonomy != "" {
			result.Error = taxonomy
		}
	}

	w.mu.Lock()
	w.lastActiveAt = time.Now()
	w.currentTaskID = ""
	w.activeCancel = nil
	if err != nil {
		w.state = StateUnhealthy
	} else {
		w.state = StateIdle
	}
	w.mu.Unlock()

	return result, err
}

// Interrupt cancels the in-flight Execute call, if any, causing it to
// return with a context-cancellation error. No-op if the worker is not
// currently executing.
func (w *Worker) Interrupt() {
	w.mu.Lock()
	cancel := w.activeCancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// HealthProbe performs a cheap liveness check. A false result means the
// caller should mark the worker StateUnhealthy.
func (w *Worker) HealthProbe(ctx context.Context) bool {
	return w.driver.healthProbe(ctx)
}

// Stop requests termination, waiting up to grace before escalating. Final
// state is always StateTerminated; idempotent.
func (w *Worker) Stop(grace time.Duration) error {
	w.mu.Lock()
	if w.state == StateTerminated {
		w.mu.Unlock()
		return nil
	}
	cancel := w.activeCancel
	w.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	err := w.driver.stop(grace)

	w.mu.Lock()
	w.state = StateTerminated
	w.currentTaskID = ""
	w.mu.Unlock()

	return err
}

// MarkUnhealthy forces the worker into StateUnhealthy, used by the pool's
// health sweep when a probe fails.
func (w *Worker) MarkUnhealthy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateTerminated {
		w.state = StateUnhealthy
	}
}

// Snapshot returns a read-only view of the worker's public state.
func (w *Worker) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		ID:            w.id,
		State:         w.state,
		CurrentTaskID: w.currentTaskID,
		WorkDir:       w.workDir,
		ModelProfile:  w.modelProfile,
		StartedAt:     w.startedAt,
		LastActiveAt:  w.lastActiveAt,
		RecentOutput:  w.output.String(),
	}
}

// IdleSince reports how long the worker has been idle, used by the pool's
// idle-reap sweep. Returns 0 if not currently idle.
func (w *Worker) IdleSince() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateIdle {
		return 0
	}
	return time.Since(w.lastActiveAt)
}

// classifyExecError maps a driver failure to the worker's error taxonomy.
// execCtx.Err() distinguishes a timeout (the deadline set from task.timeout
// elapsed) from a cancellation (stop/interrupt canceled it early); drivers
// signal an I/O failure or unexpected child exit by wrapping ErrProcessExited.
// Returns "" when the error is a driver-reported business outcome (a command's
// own non-zero exit), which Execute leaves as the driver set it.
func classifyExecError(execCtx context.Context, err error) string {
	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.Is(execCtx.Err(), context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrProcessExited):
		return "process-exited"
	default:
		return ""
	}
}
