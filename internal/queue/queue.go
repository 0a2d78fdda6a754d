package queue

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chrisarseno/claude-swarm/internal/worker"
)

// priorityOrder lists priorities from highest to lowest dispatch precedence.
var priorityOrder = []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

// Queue is the task table, priority ready set, pending map, and
// reverse-dependency index, all mutated only under a single mutex. Dispatch
// loops never hold this mutex across a worker execute call.
type Queue struct {
	mu sync.Mutex

	tasks      map[string]*Task       // task table: source of truth
	pending    map[string]*Task       // id -> task with unmet deps
	ready      map[Priority]*list.List // priority -> FIFO of ready task ids
	dependents map[string][]string    // task id -> ids that depend on it
}

// New creates an empty Queue.
func New() *Queue {
	ready := make(map[Priority]*list.List, len(priorityOrder))
	for _, p := range priorityOrder {
		ready[p] = list.New()
	}
	return &Queue{
		tasks:      make(map[string]*Task),
		pending:    make(map[string]*Task),
		ready:      ready,
		dependents: make(map[string][]string),
	}
}

// Add admits a task. If task.ID is empty one is assigned. If every
// dependency is already COMPLETED the task becomes READY and joins its
// priority sub-queue; otherwise it is PENDING. Fails with ErrCycleDetected
// if any dependency's ancestor chain already includes this task's id
// (detected via DFS restricted to ancestors, not a whole-graph pass), and
// with ErrUnknownID if a dependency does not exist.
func (q *Queue) Add(t *Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	} else if _, exists := q.tasks[t.ID]; exists {
		return "", ErrAlreadyExists
	}

	for _, dep := range t.DependsOn {
		if dep == t.ID {
			return "", ErrCycleDetected
		}
		if _, ok := q.tasks[dep]; !ok {
			return "", ErrUnknownID
		}
	}
	for _, dep := range t.DependsOn {
		if q.ancestorsInclude(dep, t.ID, make(map[string]bool)) {
			return "", ErrCycleDetected
		}
	}

	t.SubmittedAt = time.Now()
	t.State = StatePending
	q.tasks[t.ID] = t

	for _, dep := range t.DependsOn {
		q.dependents[dep] = append(q.dependents[dep], t.ID)
	}

	if q.depsSatisfied(t) {
		q.promoteToReady(t)
	} else {
		q.pending[t.ID] = t
	}

	return t.ID, nil
}

// ancestorsInclude walks the dependency graph upward from start, returning
// true if target is found. Caller holds q.mu.
func (q *Queue) ancestorsInclude(start, target string, seen map[string]bool) bool {
	return ancestorsIncludeWith(func(id string) (*Task, bool) {
		t, ok := q.tasks[id]
		return t, ok
	}, start, target, seen)
}

// ancestorsIncludeWith is ancestorsInclude generalized over a lookup
// function, so batch validation can see both committed tasks and
// not-yet-committed sibling tasks in the same batch.
func ancestorsIncludeWith(lookup func(string) (*Task, bool), start, target string, seen map[string]bool) bool {
	if start == target {
		return true
	}
	if seen[start] {
		return false
	}
	seen[start] = true

	task, ok := lookup(start)
	if !ok {
		return false
	}
	for _, dep := range task.DependsOn {
		if ancestorsIncludeWith(lookup, dep, target, seen) {
			return true
		}
	}
	return false
}

// AddBatch admits a group of tasks atomically: either every task is added or
// the queue is left unchanged. Tasks may depend on each other within the
// batch or on already-committed tasks; ids are assigned for any task with an
// empty ID before validation runs.
func (q *Queue) AddBatch(tasks []*Task) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, len(tasks))
	batch := make(map[string]*Task, len(tasks))
	for i, t := range tasks {
		if t.ID == "" {
			t.ID = uuid.NewString()
		} else if _, exists := q.tasks[t.ID]; exists {
			return nil, ErrAlreadyExists
		}
		if _, dup := batch[t.ID]; dup {
			return nil, ErrAlreadyExists
		}
		batch[t.ID] = t
		ids[i] = t.ID
	}

	lookup := func(id string) (*Task, bool) {
		if t, ok := batch[id]; ok {
			return t, true
		}
		t, ok := q.tasks[id]
		return t, ok
	}

	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if dep == t.ID {
				return nil, ErrCycleDetected
			}
			if _, ok := lookup(dep); !ok {
				return nil, ErrUnknownID
			}
		}
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if ancestorsIncludeWith(lookup, dep, t.ID, make(map[string]bool)) {
				return nil, ErrCycleDetected
			}
		}
	}

	// Validation passed for the whole batch; commit every task.
	for _, t := range tasks {
		t.SubmittedAt = time.Now()
		t.State = StatePending
		q.tasks[t.ID] = t
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			q.dependents[dep] = append(q.dependents[dep], t.ID)
		}
	}
	for _, t := range tasks {
		if q.depsSatisfied(t) {
			q.promoteToReady(t)
		} else {
			q.pending[t.ID] = t
		}
	}

	return ids, nil
}

func (q *Queue) depsSatisfied(t *Task) bool {
	for _, dep := range t.DependsOn {
		dt, ok := q.tasks[dep]
		if !ok || dt.State != StateCompleted {
			return false
		}
	}
	return true
}

// promoteToReady transitions t to READY and pushes it to the back of its
// priority sub-queue. Caller holds q.mu.
func (q *Queue) promoteToReady(t *Task) {
	t.State = StateReady
	delete(q.pending, t.ID)
	q.ready[t.Priority].PushBack(t.ID)
}

// requeueFront transitions t back to READY at the FRONT of its priority
// sub-queue, used when the dispatcher pops a task but no worker is
// available. Caller holds q.mu.
func (q *Queue) requeueFront(t *Task) {
	t.State = StateReady
	q.ready[t.Priority].PushFront(t.ID)
}

// NextReady pops the head of the highest non-empty priority sub-queue,
// marking the task RUNNING. Non-blocking.
func (q *Queue) NextReady() (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range priorityOrder {
		l := q.ready[p]
		front := l.Front()
		if front == nil {
			continue
		}
		l.Remove(front)
		id := front.Value.(string)
		t := q.tasks[id]
		t.State = StateRunning
		t.StartedAt = time.Now()
		return t.clone(), true
	}
	return nil, false
}

// Requeue pushes a previously popped task back to the front of its priority
// sub-queue, preserving FIFO order within the priority. Used by the
// dispatch loop when acquire(worker) finds none available.
func (q *Queue) Requeue(taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return ErrUnknownID
	}
	q.requeueFront(t)
	return nil
}

// Complete transitions a RUNNING task to COMPLETED (ExitCode 0 and empty
// Error) or FAILED (anything else), then promotes or cascades-cancels its
// dependents.
func (q *Queue) Complete(taskID string, result worker.Result) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return ErrUnknownID
	}

	t.CompletedAt = time.Now()
	t.Result = &result
	if result.ExitCode == 0 && result.Error == "" {
		t.State = StateCompleted
	} else {
		t.State = StateFailed
	}

	for _, depID := range q.dependents[taskID] {
		dep, ok := q.tasks[depID]
		if !ok || dep.State != StatePending {
			continue
		}
		if t.State == StateFailed {
			q.cascadeCancel(dep, "upstream-failed")
		} else if q.depsSatisfied(dep) {
			q.promoteToReady(dep)
		}
	}
	return nil
}

// Cancel marks a task CANCELLED. PENDING/READY tasks are cancelled
// immediately (removed from the ready set) and cascade to dependents.
// RUNNING tasks are flagged "cancel requested"; the owning dispatcher
// interrupts the worker and calls Complete. Terminal tasks are a no-op.
func (q *Queue) Cancel(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[taskID]
	if !ok {
		return false
	}

	switch t.State {
	case StateCompleted, StateFailed, StateCancelled:
		return false
	case StateRunning:
		t.cancelRequested = true
		return true
	default: // PENDING or READY
		if t.State == StateReady {
			q.removeFromReadyQueue(t)
		}
		q.cascadeCancel(t, "cancelled")
		return true
	}
}

// cascadeCancel marks t CANCELLED with reason and recursively cancels every
// dependent still non-terminal. Caller holds q.mu.
func (q *Queue) cascadeCancel(t *Task, reason string) {
	if t.State == StateCompleted || t.State == StateFailed || t.State == StateCancelled {
		return
	}
	if t.State == StateReady {
		q.removeFromReadyQueue(t)
	}
	delete(q.pending, t.ID)
	t.State = StateCancelled
	t.CancelReason = reason
	t.CompletedAt = time.Now()

	for _, depID := range q.dependents[t.ID] {
		if dep, ok := q.tasks[depID]; ok {
			q.cascadeCancel(dep, "upstream-failed")
		}
	}
}

// removeFromReadyQueue scans t's priority sub-queue and removes its entry.
// Caller holds q.mu.
func (q *Queue) removeFromReadyQueue(t *Task) {
	l := q.ready[t.Priority]
	for e := l.Front(); e != nil; e = e.Next() {
		if e.Value.(string) == t.ID {
			l.Remove(e)
			return
		}
	}
}

// CancelRequested reports whether Cancel has been called on taskID while it
// was RUNNING. Used by the dispatcher that owns the task.
func (q *Queue) CancelRequested(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	return ok && t.cancelRequested
}

// Get returns a copy of a task by id.
func (q *Queue) Get(taskID string) (*Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.tasks[taskID]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// List returns a copy of every task, in no particular order. It does not
// filter; callers that want one state filter the result themselves.
func (q *Queue) List() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Task, 0, len(q.tasks))
	for _, t := range q.tasks {
		out = append(out, t.clone())
	}
	return out
}

// Snapshot returns a consistent point-in-time view of queue depths and task
// counts by state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	var c Counts
	for _, t := range q.tasks {
		switch t.State {
		case StatePending:
			c.Pending++
		case StateReady:
			c.Ready++
		case StateRunning:
			c.Running++
		case StateCompleted:
			c.Completed++
		case StateFailed:
			c.Failed++
		case StateCancelled:
			c.Cancelled++
		}
	}

	depth := make(map[Priority]int, len(priorityOrder))
	for _, p := range priorityOrder {
		depth[p] = q.ready[p].Len()
	}

	return Snapshot{Counts: c, QueueDepth: depth}
}
