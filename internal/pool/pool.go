package pool

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/chrisarseno/claude-swarm/internal/events"
	"github.com/chrisarseno/claude-swarm/internal/worker"
)

// entry is one roster slot: the worker plus pool-only bookkeeping that does
// not belong on worker.Worker itself.
type entry struct {
	w        *worker.Worker
	opts     SpawnOptions
	draining bool // BUSY worker marked for termination once it completes
}

// Pool maintains the set of Workers and allocates them to tasks. The roster
// (worker list and pool-only bookkeeping) is mutated only under mu; a
// worker's own internal state during execute is mutated only by the worker
// itself.
type Pool struct {
	cfg     Config
	bus     *events.Bus
	procMgr *worker.ProcessManager

	mu      sync.Mutex
	roster  map[string]*entry
	cbs     map[string]*gobreaker.CircuitBreaker
}

// New creates an empty Pool.
func New(cfg Config, bus *events.Bus) *Pool {
	if cfg.SpawnMaxRetries == 0 {
		cfg.SpawnMaxRetries = 3
	}
	return &Pool{
		cfg:     cfg,
		bus:     bus,
		procMgr: worker.NewProcessManager(),
		roster:  make(map[string]*entry),
		cbs:     make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Size returns the current pool cardinality.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.roster)
}

// Spawn creates up to n workers, subject to current+n <= MaxInstances.
// Failures to spawn leave the pool unchanged for the failed slots; the
// successful ids are returned alongside the first error encountered, if any.
func (p *Pool) Spawn(ctx context.Context, n int, opts SpawnOptions) ([]string, error) {
	p.mu.Lock()
	current := len(p.roster)
	if p.cfg.MaxInstances > 0 && current+n > p.cfg.MaxInstances {
		p.mu.Unlock()
		return nil, ErrCapacityExceeded
	}
	p.mu.Unlock()

	var ids []string
	var firstErr error
	for i := 0; i < n; i++ {
		id, err := p.spawnOne(ctx, opts)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		ids = append(ids, id)
	}
	return ids, firstErr
}

// spawnOne builds and starts a single worker, retrying transient start
// failures with exponential backoff behind a per-model-profile circuit
// breaker so a consistently broken backend stops being hammered.
func (p *Pool) spawnOne(ctx context.Context, opts SpawnOptions) (string, error) {
	id := uuid.NewString()
	cb := p.circuitBreaker(opts.ModelProfile)

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.cfg.SpawnMaxRetries)
	boCtx := backoff.WithContext(bo, ctx)

	w, err := worker.New(worker.Config{
		ID:               id,
		ModelProfile:     opts.ModelProfile,
		Command:          opts.Command,
		Model:            opts.Model,
		SystemPrompt:     opts.SystemPrompt,
		WorkingDirectory: opts.WorkingDirectory,
		OutputBufferSize: opts.OutputBufferSize,
		StartupGrace:     opts.StartupGrace,
	}, p.procMgr)
	if err != nil {
		return "", fmt.Errorf("spawn %s: %w", id, err)
	}

	operation := func() error {
		_, cbErr := cb.Execute(func() (interface{}, error) {
			return nil, w.Start(ctx)
		})
		return cbErr
	}
	if err := backoff.Retry(operation, boCtx); err != nil {
		return "", fmt.Errorf("spawn %s: %w", id, err)
	}

	p.mu.Lock()
	p.roster[id] = &entry{w: w, opts: opts}
	p.mu.Unlock()

	p.publish(events.Event{Kind: events.KindInstanceSpawned, WorkerID: id, State: w.State().String()})
	return id, nil
}

func (p *Pool) circuitBreaker(profile string) *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cb, ok := p.cbs[profile]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "worker-spawn:" + profile,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	p.cbs[profile] = cb
	return cb
}

// Terminate moves worker_id to TERMINATED and releases resources. If the
// worker was BUSY, the in-flight task is the caller's responsibility to
// complete with error="worker-terminated" — Terminate only tears down the
// process; it does not touch the queue.
func (p *Pool) Terminate(workerID string, grace time.Duration) error {
	p.mu.Lock()
	e, ok := p.roster[workerID]
	if !ok {
		p.mu.Unlock()
		return ErrUnknownWorker
	}
	delete(p.roster, workerID)
	p.mu.Unlock()

	err := e.w.Stop(grace)
	p.publish(events.Event{Kind: events.KindInstanceTerminated, WorkerID: workerID})
	return err
}

// ScaleTo is idempotent: spawns or terminates IDLE workers to reach target.
// Busy workers are never preempted; excess busy workers are marked draining
// and terminated on release. Proceeds with a warning (returned err is
// non-nil but the partial result still applies) if target cannot be
// reached, e.g. because of MaxInstances.
func (p *Pool) ScaleTo(ctx context.Context, target int, opts SpawnOptions, grace time.Duration) (current int, err error) {
	p.mu.Lock()
	current = len(p.roster)
	p.mu.Unlock()

	if current == target {
		return current, nil
	}

	if current < target {
		ids, spawnErr := p.Spawn(ctx, target-current, opts)
		p.mu.Lock()
		current = len(p.roster)
		p.mu.Unlock()
		if spawnErr != nil {
			return current, fmt.Errorf("scale_to %d: reached %d, spawn of remaining slots failed: %w (spawned %v)", target, current, spawnErr, ids)
		}
		return current, nil
	}

	excess := current - target
	p.mu.Lock()
	var idleIDs, busyIDs []string
	for id, e := range p.roster {
		if e.w.State() == worker.StateIdle {
			idleIDs = append(idleIDs, id)
		} else if e.w.State() == worker.StateBusy {
			busyIDs = append(busyIDs, id)
		}
	}
	sort.Strings(idleIDs)
	sort.Strings(busyIDs)
	p.mu.Unlock()

	terminated := 0
	for _, id := range idleIDs {
		if terminated >= excess {
			break
		}
		if err := p.Terminate(id, grace); err == nil {
			terminated++
		}
	}
	for _, id := range busyIDs {
		if terminated >= excess {
			break
		}
		p.mu.Lock()
		if e, ok := p.roster[id]; ok {
			e.draining = true
		}
		p.mu.Unlock()
		terminated++
	}

	p.mu.Lock()
	current = len(p.roster)
	p.mu.Unlock()

	if terminated < excess {
		return current, fmt.Errorf("scale_to %d: only able to drain %d of %d excess workers", target, terminated, excess)
	}
	return current, nil
}

// Acquire returns an IDLE worker and marks it BUSY. If pinned is non-empty,
// only that worker is considered. Non-blocking: returns ErrNoWorkerAvailable
// rather than waiting.
func (p *Pool) Acquire(pinned string) (*worker.Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pinned != "" {
		e, ok := p.roster[pinned]
		if !ok || e.w.State() != worker.StateIdle || e.draining {
			return nil, ErrNoWorkerAvailable
		}
		if err := e.w.MarkBusy(); err != nil {
			return nil, ErrNoWorkerAvailable
		}
		return e.w, nil
	}

	var candidates []*entry
	for _, e := range p.roster {
		if e.w.State() == worker.StateIdle && !e.draining {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoWorkerAvailable
	}

	// Least-recently-used, tie-broken by ascending id: deterministic for
	// testability.
	sort.Slice(candidates, func(i, j int) bool {
		si, sj := candidates[i].w.Snapshot(), candidates[j].w.Snapshot()
		if si.LastActiveAt.Equal(sj.LastActiveAt) {
			return si.ID < sj.ID
		}
		return si.LastActiveAt.Before(sj.LastActiveAt)
	})
	if err := candidates[0].w.MarkBusy(); err != nil {
		return nil, ErrNoWorkerAvailable
	}
	return candidates[0].w, nil
}

// Release transitions a worker BUSY -> {IDLE, UNHEALTHY, TERMINATED}. A
// draining worker is always terminated regardless of the requested state,
// since it was marked for post-completion removal by ScaleTo.
func (p *Pool) Release(workerID string, newState worker.State, grace time.Duration) error {
	p.mu.Lock()
	e, ok := p.roster[workerID]
	if !ok {
		p.mu.Unlock()
		return ErrUnknownWorker
	}
	draining := e.draining
	p.mu.Unlock()

	if draining || newState == worker.StateTerminated {
		return p.Terminate(workerID, grace)
	}
	if newState == worker.StateUnhealthy {
		e.w.MarkUnhealthy()
		return nil
	}
	// IDLE is the worker's own post-execute default; nothing to do.
	return nil
}

// HealthSweep probes every worker, demotes failures, reaps workers idle
// past Config.IdleTimeout, and respawns replacements when AutoHeal is set.
// Each reaped worker is respawned with the SpawnOptions it was originally
// created with, not a single shared set.
func (p *Pool) HealthSweep(ctx context.Context, grace time.Duration) {
	p.mu.Lock()
	ids := make([]string, 0, len(p.roster))
	for id := range p.roster {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		p.mu.Lock()
		e, ok := p.roster[id]
		p.mu.Unlock()
		if !ok {
			continue
		}

		unhealthy := !e.w.HealthProbe(ctx)
		idleTooLong := p.cfg.IdleTimeout > 0 && e.w.IdleSince() > p.cfg.IdleTimeout

		if !unhealthy && !idleTooLong {
			continue
		}

		if unhealthy {
			e.w.MarkUnhealthy()
		}
		_ = p.Terminate(id, grace)

		if p.cfg.AutoHeal {
			if _, err := p.spawnOne(ctx, e.opts); err != nil {
				p.publish(events.Event{Kind: events.KindInstanceSpawned, Error: err.Error()})
			}
		}
	}
}

// Snapshot returns every worker's public state.
func (p *Pool) Snapshot() []worker.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]worker.Snapshot, 0, len(p.roster))
	for _, e := range p.roster {
		out = append(out, e.w.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the worker snapshot for a single id.
func (p *Pool) Get(workerID string) (worker.Snapshot, bool) {
	p.mu.Lock()
	e, ok := p.roster[workerID]
	p.mu.Unlock()
	if !ok {
		return worker.Snapshot{}, false
	}
	return e.w.Snapshot(), true
}

// Shutdown terminates every worker in the pool, used on orchestrator stop.
func (p *Pool) Shutdown(grace time.Duration) {
	p.mu.Lock()
	ids := make([]string, 0, len(p.roster))
	for id := range p.roster {
		ids = append(ids, id)
	}
	p.mu.Unlock()

	for _, id := range ids {
		_ = p.Terminate(id, grace)
	}
	_ = p.procMgr.KillAll()
}

func (p *Pool) publish(evt events.Event) {
	if p.bus == nil {
		return
	}
	evt.Timestamp = time.Now()
	p.bus.Publish(evt)
}
