package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chrisarseno/claude-swarm/internal/config"
	"github.com/chrisarseno/claude-swarm/internal/engine"
	"github.com/chrisarseno/claude-swarm/internal/events"
	"github.com/chrisarseno/claude-swarm/internal/pool"
	"github.com/chrisarseno/claude-swarm/internal/queue"
	"github.com/chrisarseno/claude-swarm/internal/workflowdoc"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MaxInstances = 4
	cfg.DefaultTimeout = config.Duration(5 * time.Second)
	return cfg
}

func shellOpts() pool.SpawnOptions {
	return pool.SpawnOptions{ModelProfile: "shell", Command: "/bin/sh"}
}

func newRunningOrchestrator(t *testing.T, instances int) (*engine.Orchestrator, func()) {
	t.Helper()
	o := engine.New(testConfig(), events.New())
	if instances > 0 {
		if _, err := o.Pool().Spawn(context.Background(), instances, shellOpts()); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.Start(ctx)
	return o, cancel
}

func TestExecutor_RunsSimpleChain(t *testing.T) {
	o, cancel := newRunningOrchestrator(t, 1)
	defer cancel()

	doc, err := workflowdoc.Parse([]byte(`
name: chain
tasks:
  - name: first
    command: echo one
  - name: second
    command: echo two
    depends_on: [first]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	exec := New(o, shellOpts())
	ctx, done := context.WithTimeout(context.Background(), 3*time.Second)
	defer done()

	result, err := exec.Execute(ctx, doc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Tasks) != 2 {
		t.Fatalf("expected 2 task outcomes, got %d", len(result.Tasks))
	}
	first, ok := result.Tasks["first"]
	if !ok || first.State != queue.StateCompleted {
		t.Errorf("expected first completed, got %+v", first)
	}
	second, ok := result.Tasks["second"]
	if !ok || second.State != queue.StateCompleted {
		t.Errorf("expected second completed, got %+v", second)
	}
}

func TestExecutor_RejectsDuplicateNames(t *testing.T) {
	o, cancel := newRunningOrchestrator(t, 0)
	defer cancel()

	doc := &workflowdoc.Document{
		Name: "dup",
		Tasks: []workflowdoc.TaskSpec{
			{Name: "a", Command: "echo a"},
			{Name: "a", Command: "echo b"},
		},
	}

	exec := New(o, shellOpts())
	_, err := exec.Execute(context.Background(), doc)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestExecutor_RejectsDependencyCycle(t *testing.T) {
	o, cancel := newRunningOrchestrator(t, 0)
	defer cancel()

	doc := &workflowdoc.Document{
		Name: "cyclic",
		Tasks: []workflowdoc.TaskSpec{
			{Name: "a", Command: "echo a", DependsOn: []string{"b"}},
			{Name: "b", Command: "echo b", DependsOn: []string{"a"}},
		},
	}

	exec := New(o, shellOpts())
	_, err := exec.Execute(context.Background(), doc)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestExecutor_PinsInstancesByIndex(t *testing.T) {
	o, cancel := newRunningOrchestrator(t, 2)
	defer cancel()

	doc := &workflowdoc.Document{
		Name:      "pinned",
		Instances: 2,
		Tasks: []workflowdoc.TaskSpec{
			{Name: "one", Command: "echo 1", Instance: 1},
			{Name: "two", Command: "echo 2", Instance: 2},
		},
	}

	exec := New(o, shellOpts())
	ctx, done := context.WithTimeout(context.Background(), 3*time.Second)
	defer done()

	result, err := exec.Execute(ctx, doc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", result.Warnings)
	}
	for _, name := range []string{"one", "two"} {
		outcome := result.Tasks[name]
		if outcome.State != queue.StateCompleted {
			t.Errorf("expected %s completed, got %v", name, outcome.State)
		}
	}
}

func TestExecutor_UnresolvablePinDowngradesWithWarning(t *testing.T) {
	o, cancel := newRunningOrchestrator(t, 1)
	defer cancel()

	doc := &workflowdoc.Document{
		Name:      "over-pinned",
		Instances: 1,
		Tasks: []workflowdoc.TaskSpec{
			{Name: "one", Command: "echo 1", Instance: 5},
		},
	}

	exec := New(o, shellOpts())
	ctx, done := context.WithTimeout(context.Background(), 3*time.Second)
	defer done()

	result, err := exec.Execute(ctx, doc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a downgrade warning")
	}
}
