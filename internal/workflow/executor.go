// Package workflow expands a declarative workflow document into a batch of
// queued tasks, pins instance-addressed tasks to concrete workers, and waits
// for the whole batch to reach a terminal state.
package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gammazero/toposort"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chrisarseno/claude-swarm/internal/engine"
	"github.com/chrisarseno/claude-swarm/internal/events"
	"github.com/chrisarseno/claude-swarm/internal/pool"
	"github.com/chrisarseno/claude-swarm/internal/queue"
	"github.com/chrisarseno/claude-swarm/internal/worker"
	"github.com/chrisarseno/claude-swarm/internal/workflowdoc"
)

const pollInterval = 25 * time.Millisecond

// Executor translates workflowdoc.Documents into task batches on an
// Orchestrator and waits for them to finish.
type Executor struct {
	orch          *engine.Orchestrator
	spawnDefaults pool.SpawnOptions
}

// New builds an Executor bound to orch. spawnDefaults is used to spin up
// additional workers when a workflow's instances count exceeds the pool's
// current size.
func New(orch *engine.Orchestrator, spawnDefaults pool.SpawnOptions) *Executor {
	return &Executor{orch: orch, spawnDefaults: spawnDefaults}
}

// TaskOutcome is one task's result within a Result, keyed by its workflow
// document name.
type TaskOutcome struct {
	TaskID string
	State  queue.State
	Result *worker.Result
}

// Result is the aggregated outcome of a workflow run.
type Result struct {
	WorkflowID string
	TaskIDs    []string
	Tasks      map[string]TaskOutcome // keyed by workflow document task name
	Warnings   []string
}

// Execute validates doc, scales the pool if needed, resolves instance
// pinning, submits the expanded task batch atomically, and blocks until
// every task in the batch reaches a terminal state.
func (e *Executor) Execute(ctx context.Context, doc *workflowdoc.Document) (*Result, error) {
	tasks, idByName, err := e.expand(doc)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if doc.Instances > 0 {
		current := e.orch.Pool().Size()
		target := doc.Instances
		if current > target {
			target = current
		}
		if _, scaleErr := e.orch.Pool().ScaleTo(ctx, target, e.spawnDefaults, 5*time.Second); scaleErr != nil {
			warnings = append(warnings, fmt.Sprintf("scale to %d instances: %v", target, scaleErr))
		}
	}

	e.resolvePinning(doc, tasks, &warnings)

	ids, err := e.orch.SubmitBatch(tasks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	workflowID := uuid.NewString()
	result := &Result{
		WorkflowID: workflowID,
		TaskIDs:    ids,
		Tasks:      make(map[string]TaskOutcome, len(tasks)),
		Warnings:   warnings,
	}

	if err := e.await(ctx, ids); err != nil {
		return result, err
	}

	for name, id := range idByName {
		t, ok := e.orch.Queue().Get(id)
		if !ok {
			continue
		}
		result.Tasks[name] = TaskOutcome{TaskID: id, State: t.State, Result: t.Result}
	}

	if bus := e.orch.Bus(); bus != nil {
		bus.Publish(events.Event{Kind: events.KindWorkflowCompleted, TaskName: doc.Name, Timestamp: time.Now()})
	}

	return result, nil
}

// expand validates doc's task graph and turns it into queue.Tasks with
// depends_on resolved from names to prospective ids. Cycle detection runs
// before anything is scaled or submitted, per the fail-fast contract.
func (e *Executor) expand(doc *workflowdoc.Document) ([]*queue.Task, map[string]string, error) {
	idByName := make(map[string]string, len(doc.Tasks))
	for _, spec := range doc.Tasks {
		if _, dup := idByName[spec.Name]; dup {
			return nil, nil, fmt.Errorf("%w: duplicate task name %q", ErrValidation, spec.Name)
		}
		idByName[spec.Name] = uuid.NewString()
	}

	var edges []toposort.Edge
	for _, spec := range doc.Tasks {
		if len(spec.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, spec.Name})
			continue
		}
		for _, dep := range spec.DependsOn {
			if _, ok := idByName[dep]; !ok {
				return nil, nil, fmt.Errorf("%w: task %q depends on unknown task %q", ErrValidation, spec.Name, dep)
			}
			edges = append(edges, toposort.Edge{dep, spec.Name})
		}
	}
	if _, err := toposort.Toposort(edges); err != nil {
		return nil, nil, fmt.Errorf("%w: dependency cycle: %v", ErrValidation, err)
	}

	tasks := make([]*queue.Task, len(doc.Tasks))
	for i, spec := range doc.Tasks {
		deps := make([]string, len(spec.DependsOn))
		for j, dep := range spec.DependsOn {
			deps[j] = idByName[dep]
		}
		tasks[i] = &queue.Task{
			ID:        idByName[spec.Name],
			Name:      spec.Name,
			Priority:  priorityFromString(spec.Priority),
			DependsOn: deps,
			Timeout:   spec.Timeout,
			Payload: worker.Payload{
				Prompt:           spec.Prompt,
				Command:          spec.Command,
				WorkingDirectory: spec.Directory,
			},
		}
	}
	return tasks, idByName, nil
}

// resolvePinning maps each task's 1-based instance index to the k-th IDLE
// worker in ascending-id order, taken as a snapshot at submit time. A
// reference to an index beyond the currently available IDLE set downgrades
// to unpinned with a recorded warning rather than failing the workflow.
func (e *Executor) resolvePinning(doc *workflowdoc.Document, tasks []*queue.Task, warnings *[]string) {
	hasInstance := false
	for _, spec := range doc.Tasks {
		if spec.Instance > 0 {
			hasInstance = true
			break
		}
	}
	if !hasInstance {
		return
	}

	var idleIDs []string
	for _, snap := range e.orch.Pool().Snapshot() {
		if snap.State == worker.StateIdle {
			idleIDs = append(idleIDs, snap.ID)
		}
	}
	sort.Strings(idleIDs)

	for i, spec := range doc.Tasks {
		if spec.Instance <= 0 {
			continue
		}
		k := spec.Instance - 1
		if k >= len(idleIDs) {
			*warnings = append(*warnings, fmt.Sprintf("task %q references instance %d but only %d idle workers are available; running unpinned", spec.Name, spec.Instance, len(idleIDs)))
			continue
		}
		tasks[i].PinnedInstance = idleIDs[k]
	}
}

// await blocks until every task in ids reaches a terminal state or ctx is
// done, polling each task id in its own goroutine so one slow task never
// delays noticing another has already finished.
func (e *Executor) await(ctx context.Context, ids []string) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, id := range ids {
		id := id
		g.Go(func() error {
			return e.awaitOne(gctx, id)
		})
	}

	return g.Wait()
}

func (e *Executor) awaitOne(ctx context.Context, id string) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		t, ok := e.orch.Queue().Get(id)
		if ok {
			switch t.State {
			case queue.StateCompleted, queue.StateFailed, queue.StateCancelled:
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func priorityFromString(s string) queue.Priority {
	switch s {
	case "critical":
		return queue.PriorityCritical
	case "high":
		return queue.PriorityHigh
	case "low":
		return queue.PriorityLow
	default:
		return queue.PriorityNormal
	}
}
