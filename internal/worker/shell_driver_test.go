package worker

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestShellDriver_StartAndExecute(t *testing.T) {
	d := newShellDriver(Config{Command: "/bin/sh"}, NewProcessManager())

	if err := d.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.stop(time.Second)

	out := newRingBuffer(4096)
	result, err := d.execute(context.Background(), Payload{Command: "echo from-shell"}, out)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(result.Output, "from-shell") {
		t.Errorf("expected output to contain 'from-shell', got %q", result.Output)
	}
	if result.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestShellDriver_NonZeroExitReported(t *testing.T) {
	d := newShellDriver(Config{Command: "/bin/sh"}, NewProcessManager())
	if err := d.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.stop(time.Second)

	out := newRingBuffer(4096)
	result, err := d.execute(context.Background(), Payload{Command: "(exit 3)"}, out)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if result.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", result.ExitCode)
	}
}

func TestShellDriver_StateSurvivesBetweenCommands(t *testing.T) {
	d := newShellDriver(Config{Command: "/bin/sh"}, NewProcessManager())
	if err := d.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.stop(time.Second)

	out := newRingBuffer(4096)
	if _, err := d.execute(context.Background(), Payload{Command: "X=42"}, out); err != nil {
		t.Fatalf("execute (set var): %v", err)
	}
	result, err := d.execute(context.Background(), Payload{Command: "echo $X"}, out)
	if err != nil {
		t.Fatalf("execute (read var): %v", err)
	}
	if !strings.Contains(result.Output, "42") {
		t.Errorf("expected shell state to persist across calls, got %q", result.Output)
	}
}

func TestShellDriver_HealthProbeFalseAfterStop(t *testing.T) {
	d := newShellDriver(Config{Command: "/bin/sh"}, NewProcessManager())
	if err := d.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	if !d.healthProbe(context.Background()) {
		t.Fatal("expected healthy shell right after start")
	}

	if err := d.stop(time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if d.healthProbe(context.Background()) {
		t.Error("expected unhealthy shell after stop")
	}
}
