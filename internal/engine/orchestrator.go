// Package engine binds the task queue to the instance pool: cooperative
// dispatch loops pull ready tasks, acquire an idle worker, run the payload,
// and feed the result back to the queue, publishing events along the way.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/chrisarseno/claude-swarm/internal/config"
	"github.com/chrisarseno/claude-swarm/internal/events"
	"github.com/chrisarseno/claude-swarm/internal/metrics"
	"github.com/chrisarseno/claude-swarm/internal/pool"
	"github.com/chrisarseno/claude-swarm/internal/queue"
	"github.com/chrisarseno/claude-swarm/internal/worker"
)

// Orchestrator owns the Pool and the Queue and runs the dispatch loops that
// bind them.
type Orchestrator struct {
	appCfg *config.Config
	pool   *pool.Pool
	queue  *queue.Queue
	bus    *events.Bus

	dispatchWorkers     int
	healthSweepInterval time.Duration
	defaultGrace        time.Duration
	latency             *metrics.LatencyTracker

	mu           sync.Mutex
	workSignal   chan struct{}
	workerSignal chan struct{}
	stopped      bool
	draining     bool
	terminating  map[string]struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs an Orchestrator, which in turn constructs and owns its
// Pool and Queue.
func New(appCfg *config.Config, bus *events.Bus) *Orchestrator {
	p := pool.New(pool.Config{
		MaxInstances:    appCfg.MaxInstances,
		IdleTimeout:     time.Duration(appCfg.IdleTimeout),
		AutoHeal:        appCfg.AutoHeal,
		SpawnMaxRetries: appCfg.Retry.MaxRetries,
	}, bus)

	workers := appCfg.MaxInstances
	if workers <= 0 {
		workers = 1
	}

	return &Orchestrator{
		appCfg:              appCfg,
		pool:                 p,
		queue:                queue.New(),
		bus:                  bus,
		dispatchWorkers:      workers,
		healthSweepInterval:  30 * time.Second,
		defaultGrace:         10 * time.Second,
		workSignal:           make(chan struct{}),
		workerSignal:         make(chan struct{}),
		latency:              metrics.NewLatencyTracker(),
	}
}

// Pool returns the underlying instance pool, for REST/CLI adapters that
// need direct spawn/scale/terminate access.
func (o *Orchestrator) Pool() *pool.Pool { return o.pool }

// Queue returns the underlying task queue, for read-only listing endpoints.
func (o *Orchestrator) Queue() *queue.Queue { return o.queue }

// Bus returns the event bus tasks and instance lifecycle changes are
// published to, for WebSocket streaming and workflow completion notices.
func (o *Orchestrator) Bus() *events.Bus { return o.bus }

// Config returns the orchestrator's static configuration.
func (o *Orchestrator) Config() *config.Config { return o.appCfg }

// Start launches the dispatch loops and the health sweeper. Call once.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.dispatchWorkers; i++ {
		o.wg.Add(1)
		go o.dispatchLoop(ctx, i)
	}

	o.wg.Add(1)
	go o.healthSweepLoop(ctx)
}

// Submit admits a single task, assigning the configured default timeout (or
// its per-profile override, for pinned tasks against a known worker) when
// the caller left Timeout zero.
func (o *Orchestrator) Submit(t *queue.Task) (string, error) {
	o.mu.Lock()
	stopped := o.stopped
	o.mu.Unlock()
	if stopped {
		return "", ErrStopped
	}

	o.applyDefaultTimeout(t)

	id, err := o.queue.Add(t)
	if err != nil {
		return "", err
	}

	o.publish(events.Event{Kind: events.KindTaskSubmitted, TaskID: id, TaskName: t.Name})
	if got, ok := o.queue.Get(id); ok && got.State == queue.StateReady {
		o.publish(events.Event{Kind: events.KindTaskReady, TaskID: id, TaskName: t.Name})
	}
	o.wakeWork()
	return id, nil
}

// SubmitBatch admits a group of tasks atomically: either all are added to
// the queue or none are.
func (o *Orchestrator) SubmitBatch(tasks []*queue.Task) ([]string, error) {
	o.mu.Lock()
	stopped := o.stopped
	o.mu.Unlock()
	if stopped {
		return nil, ErrStopped
	}

	for _, t := range tasks {
		o.applyDefaultTimeout(t)
	}

	ids, err := o.queue.AddBatch(tasks)
	if err != nil {
		return nil, err
	}

	for i, id := range ids {
		o.publish(events.Event{Kind: events.KindTaskSubmitted, TaskID: id, TaskName: tasks[i].Name})
		if got, ok := o.queue.Get(id); ok && got.State == queue.StateReady {
			o.publish(events.Event{Kind: events.KindTaskReady, TaskID: id, TaskName: tasks[i].Name})
		}
	}
	o.wakeWork()
	return ids, nil
}

func (o *Orchestrator) applyDefaultTimeout(t *queue.Task) {
	if t.Timeout != 0 {
		return
	}
	t.Timeout = time.Duration(o.appCfg.DefaultTimeout)
	if t.PinnedInstance == "" {
		return
	}
	if snap, ok := o.pool.Get(t.PinnedInstance); ok {
		if override := o.appCfg.TimeoutFor(snap.ModelProfile); override != 0 {
			t.Timeout = override
		}
	}
}

// Cancel requests cancellation of a task by id. See queue.Queue.Cancel for
// the precise state-machine semantics; a RUNNING task's owning dispatcher
// observes the request and interrupts its worker.
func (o *Orchestrator) Cancel(taskID string) bool {
	cancelled := o.queue.Cancel(taskID)
	if cancelled {
		if t, ok := o.queue.Get(taskID); ok {
			o.publish(events.Event{Kind: events.KindTaskCancelled, TaskID: taskID, TaskName: t.Name})
		}
	}
	return cancelled
}

// TerminateInstance tears down workerID through the pool. If the worker is
// currently BUSY, the task it is running is marked so runTask completes it
// with error="worker-terminated" instead of racing runTask's own
// release/complete path with a stale roster entry.
func (o *Orchestrator) TerminateInstance(workerID string, grace time.Duration) error {
	if snap, ok := o.pool.Get(workerID); ok && snap.State == worker.StateBusy {
		o.mu.Lock()
		if o.terminating == nil {
			o.terminating = make(map[string]struct{})
		}
		o.terminating[workerID] = struct{}{}
		o.mu.Unlock()
	}

	if err := o.pool.Terminate(workerID, grace); err != nil {
		o.mu.Lock()
		delete(o.terminating, workerID)
		o.mu.Unlock()
		return err
	}
	return nil
}

// consumeTerminating reports whether workerID was marked by TerminateInstance
// and clears the mark, so it fires at most once per termination.
func (o *Orchestrator) consumeTerminating(workerID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.terminating[workerID]; ok {
		delete(o.terminating, workerID)
		return true
	}
	return false
}

// Status aggregates instance and task counts for the status endpoint.
func (o *Orchestrator) Status() Status {
	var ic InstanceCounts
	for _, snap := range o.pool.Snapshot() {
		ic.Total++
		switch snap.State {
		case worker.StateIdle:
			ic.Idle++
		case worker.StateBusy:
			ic.Busy++
		case worker.StateUnhealthy:
			ic.Unhealthy++
		}
	}

	qs := o.queue.Snapshot()
	return Status{Instances: ic, Tasks: qs.Counts, QueueDepth: qs.QueueDepth, Latency: o.latency.Snapshot()}
}

// Stop stops accepting new submissions, lets every dispatcher finish its
// current task (no new task is picked up), then tears down the pool.
// Blocks until all dispatch loops have exited.
func (o *Orchestrator) Stop(grace time.Duration) {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	o.draining = true
	o.mu.Unlock()

	o.wakeWork()
	o.wakeWorker()

	// Dispatchers watch o.draining themselves before picking up new work;
	// cancelling unblocks their signal waits (and the health sweeper) but
	// does not abort a task a dispatcher is already running.
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	o.pool.Shutdown(grace)
}

// dispatchLoop implements the six-step pump: next_ready, acquire, execute,
// release, complete, emit. Exits once ctx is done and, for a draining
// shutdown, after finishing whatever task it currently owns.
func (o *Orchestrator) dispatchLoop(ctx context.Context, id int) {
	defer o.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}
		o.mu.Lock()
		draining := o.draining
		o.mu.Unlock()
		if draining {
			return
		}

		task, ok := o.queue.NextReady()
		if !ok {
			if !o.waitForSignal(ctx, o.workSignalChan()) {
				return
			}
			continue
		}

		w, err := o.pool.Acquire(task.PinnedInstance)
		if err != nil {
			if reqErr := o.queue.Requeue(task.ID); reqErr != nil {
				log.Printf("engine: dispatcher %d: requeue %s after no worker available: %v", id, task.ID, reqErr)
			}
			if !o.waitForSignal(ctx, o.workerSignalChan()) {
				return
			}
			continue
		}

		o.publish(events.Event{Kind: events.KindTaskStarted, TaskID: task.ID, TaskName: task.Name})
		// A task already handed to a worker runs to completion even during
		// shutdown ("drain", not "abort"); execute is bounded by its own
		// timeout, never by the dispatch loop's lifecycle context.
		o.runTask(context.Background(), w, task)
		o.wakeWorker()
	}
}

// execOutcome carries an Execute call's result back from the goroutine that
// runs it to runTask's cancellation-watching select loop.
type execOutcome struct {
	result worker.Result
	err    error
}

// runTask executes task on w, polling for a cancellation request while it
// runs (interrupting w if one arrives), then releases the worker and
// completes the task.
func (o *Orchestrator) runTask(ctx context.Context, w *worker.Worker, task *queue.Task) {
	outcomeCh := make(chan execOutcome, 1)
	go func() {
		result, err := w.Execute(ctx, task.ID, task.Payload, task.Timeout)
		outcomeCh <- execOutcome{result: result, err: err}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	var outcome execOutcome
waitLoop:
	for {
		select {
		case outcome = <-outcomeCh:
			break waitLoop
		case <-ticker.C:
			if o.queue.CancelRequested(task.ID) {
				_ = w.Stop(o.defaultGrace)
			}
		}
	}

	result, execErr := outcome.result, outcome.err
	terminated := o.consumeTerminating(w.ID())

	newState := worker.StateIdle
	if execErr != nil {
		newState = worker.StateUnhealthy
		if result.Error == "" {
			result.Error = execErr.Error()
		}
	}

	if terminated {
		// pool.Terminate already deleted the roster entry and stopped w; there
		// is nothing left to release, and the raw cancellation error the
		// worker reported is superseded by the real cause.
		result.Error = "worker-terminated"
	} else if releaseErr := o.pool.Release(w.ID(), newState, o.defaultGrace); releaseErr != nil {
		log.Printf("engine: release worker %s for task %s: %v", w.ID(), task.ID, releaseErr)
	}
	if completeErr := o.queue.Complete(task.ID, result); completeErr != nil {
		log.Printf("engine: complete task %s: %v", task.ID, completeErr)
	}
	o.latency.Record(result.Duration)

	// A worker-terminated task did not go through queue.Cancel, so it is
	// reported as completed (with its failure carried in Error), the same as
	// any other FAILED outcome.
	kind := events.KindTaskCompleted
	if !terminated && o.queue.CancelRequested(task.ID) {
		kind = events.KindTaskCancelled
	}
	o.publish(events.Event{Kind: kind, TaskID: task.ID, TaskName: task.Name, Error: result.Error})
}

func (o *Orchestrator) healthSweepLoop(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.healthSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.pool.HealthSweep(ctx, o.defaultGrace)
		}
	}
}

func (o *Orchestrator) workSignalChan() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.workSignal
}

func (o *Orchestrator) workerSignalChan() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.workerSignal
}

// waitForSignal blocks until sig fires, a short fallback elapses, or ctx is
// cancelled. Returns false if ctx is done (the dispatcher should exit).
func (o *Orchestrator) waitForSignal(ctx context.Context, sig <-chan struct{}) bool {
	const fallback = 200 * time.Millisecond
	select {
	case <-ctx.Done():
		return false
	case <-sig:
		return true
	case <-time.After(fallback):
		return true
	}
}

// wakeWork broadcasts to every dispatcher blocked waiting for new ready
// work.
func (o *Orchestrator) wakeWork() {
	o.mu.Lock()
	close(o.workSignal)
	o.workSignal = make(chan struct{})
	o.mu.Unlock()
}

// wakeWorker broadcasts to every dispatcher blocked waiting for a worker to
// free up.
func (o *Orchestrator) wakeWorker() {
	o.mu.Lock()
	close(o.workerSignal)
	o.workerSignal = make(chan struct{})
	o.mu.Unlock()
}

func (o *Orchestrator) publish(evt events.Event) {
	if o.bus == nil {
		return
	}
	evt.Timestamp = time.Now()
	o.bus.Publish(evt)
}
