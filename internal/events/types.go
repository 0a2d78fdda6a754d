package events

import "time"

// Kind identifies the category of an Event.
type Kind string

const (
	KindInstanceSpawned    Kind = "instance-spawned"
	KindInstanceTerminated Kind = "instance-terminated"
	KindTaskSubmitted      Kind = "task-submitted"
	KindTaskReady          Kind = "task-ready"
	KindTaskStarted        Kind = "task-started"
	KindTaskCompleted      Kind = "task-completed"
	KindTaskCancelled      Kind = "task-cancelled"
	KindWorkflowCompleted  Kind = "workflow-completed"
	KindEventsDropped      Kind = "events-dropped"
)

// Event is a single structured notification published on the bus. Fields
// unused by a given Kind are left zero.
type Event struct {
	Kind       Kind
	Timestamp  time.Time
	WorkerID   string
	TaskID     string
	TaskName   string
	WorkflowID string
	State      string
	Error      string
	Dropped    int // set only on KindEventsDropped: how many events this subscriber missed
}
