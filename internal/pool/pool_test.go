package pool

import (
	"context"
	"testing"
	"time"

	"github.com/chrisarseno/claude-swarm/internal/events"
	"github.com/chrisarseno/claude-swarm/internal/worker"
)

func shellOpts() SpawnOptions {
	return SpawnOptions{ModelProfile: "shell", Command: "/bin/sh"}
}

func TestPool_SpawnRespectsMaxInstances(t *testing.T) {
	p := New(Config{MaxInstances: 1}, nil)

	ids, err := p.Spawn(context.Background(), 2, shellOpts())
	if err != ErrCapacityExceeded {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected no ids spawned, got %v", ids)
	}
}

func TestPool_SpawnAndAcquireRelease(t *testing.T) {
	p := New(Config{MaxInstances: 2}, events.New())
	ids, err := p.Spawn(context.Background(), 1, shellOpts())
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected 1 id, got %v", ids)
	}

	w, err := p.Acquire("")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if w.State() != worker.StateBusy {
		t.Errorf("expected acquired worker BUSY, got %v", w.State())
	}

	if _, err := p.Acquire(""); err != ErrNoWorkerAvailable {
		t.Fatalf("expected ErrNoWorkerAvailable with single busy worker, got %v", err)
	}

	if err := p.Release(ids[0], worker.StateIdle, time.Second); err != nil {
		t.Fatalf("Release: %v", err)
	}

	again, err := p.Acquire("")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	if again.ID() != ids[0] {
		t.Errorf("expected same worker reacquired, got %s", again.ID())
	}
}

func TestPool_AcquirePinnedWorker(t *testing.T) {
	p := New(Config{MaxInstances: 2}, nil)
	ids, _ := p.Spawn(context.Background(), 2, shellOpts())

	w, err := p.Acquire(ids[1])
	if err != nil {
		t.Fatalf("Acquire pinned: %v", err)
	}
	if w.ID() != ids[1] {
		t.Errorf("expected pinned worker %s, got %s", ids[1], w.ID())
	}
}

func TestPool_AcquirePinnedBusyReturnsNoneAvailable(t *testing.T) {
	p := New(Config{MaxInstances: 1}, nil)
	ids, _ := p.Spawn(context.Background(), 1, shellOpts())

	if _, err := p.Acquire(""); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := p.Acquire(ids[0]); err != ErrNoWorkerAvailable {
		t.Fatalf("expected ErrNoWorkerAvailable for busy pinned worker, got %v", err)
	}
}

func TestPool_TerminateRemovesFromRoster(t *testing.T) {
	p := New(Config{MaxInstances: 1}, events.New())
	ids, _ := p.Spawn(context.Background(), 1, shellOpts())

	if err := p.Terminate(ids[0], time.Second); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if p.Size() != 0 {
		t.Errorf("expected empty roster after Terminate, got size %d", p.Size())
	}
	if err := p.Terminate(ids[0], time.Second); err != ErrUnknownWorker {
		t.Errorf("expected ErrUnknownWorker for double terminate, got %v", err)
	}
}

func TestPool_ScaleToIsIdempotent(t *testing.T) {
	p := New(Config{MaxInstances: 5}, nil)

	current, err := p.ScaleTo(context.Background(), 2, shellOpts(), time.Second)
	if err != nil {
		t.Fatalf("ScaleTo: %v", err)
	}
	if current != 2 {
		t.Fatalf("expected 2 workers, got %d", current)
	}

	current, err = p.ScaleTo(context.Background(), 2, shellOpts(), time.Second)
	if err != nil {
		t.Fatalf("second ScaleTo: %v", err)
	}
	if current != 2 {
		t.Errorf("expected ScaleTo to stay a no-op at 2, got %d", current)
	}
}

func TestPool_ScaleDownTerminatesIdleWorkers(t *testing.T) {
	p := New(Config{MaxInstances: 5}, nil)
	p.ScaleTo(context.Background(), 3, shellOpts(), time.Second)

	current, err := p.ScaleTo(context.Background(), 1, shellOpts(), time.Second)
	if err != nil {
		t.Fatalf("ScaleTo down: %v", err)
	}
	if current != 1 {
		t.Errorf("expected 1 worker remaining, got %d", current)
	}
}

func TestPool_ScaleDownMarksBusyWorkersDraining(t *testing.T) {
	p := New(Config{MaxInstances: 2}, nil)
	ids, _ := p.Spawn(context.Background(), 2, shellOpts())

	w, err := p.Acquire(ids[0])
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	current, err := p.ScaleTo(context.Background(), 0, shellOpts(), time.Second)
	if err != nil {
		t.Fatalf("ScaleTo: %v", err)
	}
	if current != 1 {
		t.Fatalf("expected the busy worker to remain in the roster while draining, got %d", current)
	}

	if err := p.Release(w.ID(), worker.StateIdle, time.Second); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if p.Size() != 0 {
		t.Errorf("expected draining worker terminated on release, got size %d", p.Size())
	}
}

func TestPool_HealthSweepReapsUnhealthyWorker(t *testing.T) {
	p := New(Config{MaxInstances: 1}, events.New())
	ids, _ := p.Spawn(context.Background(), 1, shellOpts())

	if _, ok := p.Get(ids[0]); !ok {
		t.Fatal("expected worker to exist")
	}

	p.mu.Lock()
	p.roster[ids[0]].w.Stop(time.Second) // force into TERMINATED so HealthProbe reports unhealthy
	p.mu.Unlock()

	p.HealthSweep(context.Background(), time.Second)
	if p.Size() != 0 {
		t.Errorf("expected unhealthy worker reaped, got size %d", p.Size())
	}
}

func TestPool_HealthSweepAutoHealRespawns(t *testing.T) {
	p := New(Config{MaxInstances: 1, AutoHeal: true}, events.New())
	ids, _ := p.Spawn(context.Background(), 1, shellOpts())

	p.mu.Lock()
	p.roster[ids[0]].w.Stop(time.Second)
	p.mu.Unlock()

	p.HealthSweep(context.Background(), time.Second)
	if p.Size() != 1 {
		t.Errorf("expected auto-heal to respawn a replacement, got size %d", p.Size())
	}
}
