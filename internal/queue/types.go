// Package queue implements priority scheduling with dependency resolution:
// tasks are admitted, gated on their dependencies, and released to the
// dispatch loop in priority order once runnable.
package queue

import (
	"time"

	"github.com/chrisarseno/claude-swarm/internal/worker"
)

// Priority totally orders tasks within the ready set. Higher value
// dispatches first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// State is a task's position in its lifecycle.
type State int

const (
	StatePending State = iota
	StateReady
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Task is the queue's unit of work.
type Task struct {
	ID             string
	Name           string
	Payload        worker.Payload
	Priority       Priority
	DependsOn      []string
	PinnedInstance string
	Timeout        time.Duration

	SubmittedAt time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	State        State
	Result       *worker.Result
	CancelReason string

	// cancelRequested is set on a RUNNING task by Cancel; the dispatcher
	// that owns the task observes it via CancelRequested and stops the
	// worker executing it. Queue-mutex-protected like every other field.
	cancelRequested bool
}

// clone returns a copy of t with its own DependsOn slice, safe to hand to
// callers outside the queue's mutex.
func (t *Task) clone() *Task {
	cp := *t
	cp.DependsOn = append([]string(nil), t.DependsOn...)
	return &cp
}

// Counts is a point-in-time tally of tasks by state, used by Snapshot.
type Counts struct {
	Pending   int
	Ready     int
	Running   int
	Completed int
	Failed    int
	Cancelled int
}

// Snapshot is a consistent view of the queue for status reporting.
type Snapshot struct {
	Counts     Counts
	QueueDepth map[Priority]int
}
