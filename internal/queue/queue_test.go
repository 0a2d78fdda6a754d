package queue

import (
	"testing"

	"github.com/chrisarseno/claude-swarm/internal/worker"
)

func TestQueue_AddAssignsIDAndReady(t *testing.T) {
	q := New()
	id, err := q.Add(&Task{Name: "a", Priority: PriorityNormal})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatal("expected an assigned id")
	}
	got, ok := q.Get(id)
	if !ok {
		t.Fatal("expected task to exist")
	}
	if got.State != StateReady {
		t.Errorf("expected StateReady for task with no deps, got %v", got.State)
	}
}

func TestQueue_AddWithUnmetDependencyIsPending(t *testing.T) {
	q := New()
	aID, _ := q.Add(&Task{Name: "a", Priority: PriorityNormal})
	bID, err := q.Add(&Task{Name: "b", Priority: PriorityNormal, DependsOn: []string{aID}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, _ := q.Get(bID)
	if b.State != StatePending {
		t.Errorf("expected StatePending, got %v", b.State)
	}

	q.NextReady() // pop a, mark running
	if err := q.Complete(aID, worker.Result{ExitCode: 0}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	b, _ = q.Get(bID)
	if b.State != StateReady {
		t.Errorf("expected b promoted to StateReady after a completes, got %v", b.State)
	}
}

func TestQueue_FIFOWithinPriority(t *testing.T) {
	q := New()
	aID, _ := q.Add(&Task{Name: "a", Priority: PriorityNormal})
	bID, _ := q.Add(&Task{Name: "b", Priority: PriorityNormal})

	first, ok := q.NextReady()
	if !ok || first.ID != aID {
		t.Fatalf("expected a dispatched first, got %v", first)
	}
	second, ok := q.NextReady()
	if !ok || second.ID != bID {
		t.Fatalf("expected b dispatched second, got %v", second)
	}
}

func TestQueue_PriorityOrderAtDispatch(t *testing.T) {
	q := New()
	_, _ = q.Add(&Task{Name: "low", Priority: PriorityLow})
	criticalID, _ := q.Add(&Task{Name: "critical", Priority: PriorityCritical})

	next, ok := q.NextReady()
	if !ok || next.ID != criticalID {
		t.Fatalf("expected critical task dispatched first, got %v", next)
	}
}

func TestQueue_CascadedCancellation(t *testing.T) {
	q := New()
	aID, _ := q.Add(&Task{Name: "a", Priority: PriorityNormal})
	bID, _ := q.Add(&Task{Name: "b", Priority: PriorityNormal, DependsOn: []string{aID}})
	cID, _ := q.Add(&Task{Name: "c", Priority: PriorityNormal, DependsOn: []string{bID}})

	if ok := q.Cancel(aID); !ok {
		t.Fatal("expected Cancel(a) to succeed")
	}

	a, _ := q.Get(aID)
	b, _ := q.Get(bID)
	c, _ := q.Get(cID)

	if a.State != StateCancelled {
		t.Errorf("expected a cancelled, got %v", a.State)
	}
	if b.State != StateCancelled || b.CancelReason != "upstream-failed" {
		t.Errorf("expected b cancelled with upstream-failed, got state=%v reason=%q", b.State, b.CancelReason)
	}
	if c.State != StateCancelled || c.CancelReason != "upstream-failed" {
		t.Errorf("expected c cancelled with upstream-failed, got state=%v reason=%q", c.State, c.CancelReason)
	}
}

func TestQueue_CancelTerminalTaskIsNoOp(t *testing.T) {
	q := New()
	id, _ := q.Add(&Task{Name: "a", Priority: PriorityNormal})
	q.NextReady()
	q.Complete(id, worker.Result{ExitCode: 0})

	if ok := q.Cancel(id); ok {
		t.Error("expected Cancel on a terminal task to return false")
	}
}

func TestQueue_SelfLoopRejectedAsCycle(t *testing.T) {
	q := New()
	_, err := q.Add(&Task{ID: "self", Name: "self", Priority: PriorityNormal, DependsOn: []string{"self"}})
	if err != ErrCycleDetected {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}

func TestQueue_UnknownDependencyRejected(t *testing.T) {
	q := New()
	_, err := q.Add(&Task{Name: "a", Priority: PriorityNormal, DependsOn: []string{"does-not-exist"}})
	if err != ErrUnknownID {
		t.Fatalf("expected ErrUnknownID, got %v", err)
	}
}

func TestQueue_FailedUpstreamCascadesToCancelled(t *testing.T) {
	q := New()
	aID, _ := q.Add(&Task{Name: "a", Priority: PriorityNormal})
	bID, _ := q.Add(&Task{Name: "b", Priority: PriorityNormal, DependsOn: []string{aID}})

	q.NextReady()
	if err := q.Complete(aID, worker.Result{ExitCode: 1, Error: "boom"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	b, _ := q.Get(bID)
	if b.State != StateCancelled {
		t.Errorf("expected b cancelled after a failed, got %v", b.State)
	}
}

func TestQueue_DependencyAlreadyCompletedBecomesReadyImmediately(t *testing.T) {
	q := New()
	aID, _ := q.Add(&Task{Name: "a", Priority: PriorityNormal})
	q.NextReady()
	q.Complete(aID, worker.Result{ExitCode: 0})

	bID, err := q.Add(&Task{Name: "b", Priority: PriorityNormal, DependsOn: []string{aID}})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	b, _ := q.Get(bID)
	if b.State != StateReady {
		t.Errorf("expected b to be READY immediately, got %v", b.State)
	}
}

func TestQueue_RequeuePreservesFIFOAtFront(t *testing.T) {
	q := New()
	aID, _ := q.Add(&Task{Name: "a", Priority: PriorityNormal})
	bID, _ := q.Add(&Task{Name: "b", Priority: PriorityNormal})

	popped, _ := q.NextReady() // pops a
	if popped.ID != aID {
		t.Fatalf("expected a popped first, got %s", popped.ID)
	}
	if err := q.Requeue(aID); err != nil {
		t.Fatalf("Requeue: %v", err)
	}

	next, _ := q.NextReady()
	if next.ID != aID {
		t.Errorf("expected requeued a dispatched before b, got %s", next.ID)
	}
	next2, _ := q.NextReady()
	if next2.ID != bID {
		t.Errorf("expected b dispatched after requeued a, got %s", next2.ID)
	}
}

func TestQueue_CancelRunningSetsFlagForDispatcher(t *testing.T) {
	q := New()
	id, _ := q.Add(&Task{Name: "a", Priority: PriorityNormal})
	q.NextReady() // RUNNING

	if ok := q.Cancel(id); !ok {
		t.Fatal("expected Cancel on RUNNING task to return true")
	}
	if !q.CancelRequested(id) {
		t.Error("expected CancelRequested to report true")
	}
}

func TestQueue_SnapshotCounts(t *testing.T) {
	q := New()
	aID, _ := q.Add(&Task{Name: "a", Priority: PriorityCritical})
	_, _ = q.Add(&Task{Name: "b", Priority: PriorityNormal, DependsOn: []string{aID}})

	snap := q.Snapshot()
	if snap.Counts.Ready != 1 {
		t.Errorf("expected 1 ready task, got %d", snap.Counts.Ready)
	}
	if snap.Counts.Pending != 1 {
		t.Errorf("expected 1 pending task, got %d", snap.Counts.Pending)
	}
	if snap.QueueDepth[PriorityCritical] != 1 {
		t.Errorf("expected queue depth 1 for critical, got %d", snap.QueueDepth[PriorityCritical])
	}
}

func TestQueue_AddBatchAllOrNothing(t *testing.T) {
	q := New()
	existingID, _ := q.Add(&Task{Name: "seed", Priority: PriorityNormal})

	a := &Task{ID: "batch-a", Name: "a", Priority: PriorityNormal, DependsOn: []string{existingID}}
	b := &Task{ID: "batch-b", Name: "b", Priority: PriorityNormal, DependsOn: []string{"batch-a"}}
	c := &Task{ID: "batch-c", Name: "c", Priority: PriorityNormal, DependsOn: []string{"missing-id"}}

	if _, err := q.AddBatch([]*Task{a, b, c}); err != ErrUnknownID {
		t.Fatalf("expected ErrUnknownID, got %v", err)
	}
	if _, ok := q.Get("batch-a"); ok {
		t.Error("expected batch-a not to be committed when the batch fails validation")
	}
	if _, ok := q.Get("batch-b"); ok {
		t.Error("expected batch-b not to be committed when the batch fails validation")
	}
}

func TestQueue_AddBatchCommitsAllOnSuccess(t *testing.T) {
	q := New()
	a := &Task{ID: "batch-a", Name: "a", Priority: PriorityNormal}
	b := &Task{ID: "batch-b", Name: "b", Priority: PriorityNormal, DependsOn: []string{"batch-a"}}

	ids, err := q.AddBatch([]*Task{a, b})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}

	ta, _ := q.Get("batch-a")
	if ta.State != StateReady {
		t.Errorf("expected batch-a READY, got %v", ta.State)
	}
	tb, _ := q.Get("batch-b")
	if tb.State != StatePending {
		t.Errorf("expected batch-b PENDING on a same-batch dependency, got %v", tb.State)
	}
}

func TestQueue_AddBatchCycleWithinBatchRejected(t *testing.T) {
	q := New()
	a := &Task{ID: "cyc-a", Name: "a", Priority: PriorityNormal, DependsOn: []string{"cyc-b"}}
	b := &Task{ID: "cyc-b", Name: "b", Priority: PriorityNormal, DependsOn: []string{"cyc-a"}}

	if _, err := q.AddBatch([]*Task{a, b}); err != ErrCycleDetected {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}
}
