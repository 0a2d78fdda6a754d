package queue

import "errors"

var (
	// ErrCycleDetected is returned by Add when the submission would create a
	// dependency cycle. The queue is left unchanged.
	ErrCycleDetected = errors.New("queue: dependency cycle detected")

	// ErrUnknownID is returned when a depends_on id, or an id passed to
	// Complete/Cancel, does not name a task in the queue.
	ErrUnknownID = errors.New("queue: unknown task id")

	// ErrAlreadyExists is returned by Add when the caller supplies an id
	// already present in the task table.
	ErrAlreadyExists = errors.New("queue: task id already exists")
)
