package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrisarseno/claude-swarm/internal/engine"
	"github.com/chrisarseno/claude-swarm/internal/events"
	"github.com/chrisarseno/claude-swarm/internal/pool"
	"github.com/chrisarseno/claude-swarm/internal/workflow"
	"github.com/chrisarseno/claude-swarm/internal/workflowdoc"
)

var (
	workflowModelProfile string
	workflowRunTimeout   time.Duration
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Validate and run workflow documents",
}

var workflowRunCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Run a workflow document to completion, embedding a standalone orchestrator",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowRun,
}

var workflowValidateCmd = &cobra.Command{
	Use:   "validate <workflow.yaml>",
	Short: "Validate a workflow document without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflowValidate,
}

func init() {
	rootCmd.AddCommand(workflowCmd)
	workflowCmd.AddCommand(workflowRunCmd)
	workflowCmd.AddCommand(workflowValidateCmd)

	workflowRunCmd.Flags().StringVar(&workflowModelProfile, "model-profile", "default", "model profile used to spawn instances the workflow needs")
	workflowRunCmd.Flags().DurationVar(&workflowRunTimeout, "timeout", 5*time.Minute, "overall timeout for the workflow run")
}

func runWorkflowValidate(cmd *cobra.Command, args []string) error {
	if _, err := workflowdoc.ParseFile(args[0]); err != nil {
		return withCode(exitWorkflowInvalid, err)
	}
	fmt.Println("valid")
	return nil
}

func runWorkflowRun(cmd *cobra.Command, args []string) error {
	doc, err := workflowdoc.ParseFile(args[0])
	if err != nil {
		return withCode(exitWorkflowInvalid, err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	profile, ok := cfg.ModelProfiles[workflowModelProfile]
	if !ok && workflowModelProfile != "" {
		return withCode(exitConfig, fmt.Errorf("unknown model profile %q", workflowModelProfile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.New()
	orch := engine.New(cfg, bus)

	instances := doc.Instances
	if instances <= 0 {
		instances = 1
	}
	spawnOpts := pool.SpawnOptions{
		ModelProfile: workflowModelProfile,
		Command:      profile.Command,
		Model:        profile.Model,
		SystemPrompt: profile.SystemPrompt,
	}
	if _, err := orch.Pool().Spawn(ctx, instances, spawnOpts); err != nil {
		return withCode(exitFailure, fmt.Errorf("spawning workflow instances: %w", err))
	}
	orch.Start(ctx)
	defer orch.Stop(10 * time.Second)

	runCtx, cancel := context.WithTimeout(ctx, workflowRunTimeout)
	defer cancel()

	exec := workflow.New(orch, spawnOpts)
	result, err := exec.Execute(runCtx, doc)
	if err != nil {
		return wrapWorkflowErr(err)
	}

	for _, w := range result.Warnings {
		fmt.Printf("warning: %s\n", w)
	}

	failed := false
	for name, outcome := range result.Tasks {
		fmt.Printf("%-24s %s\n", name, outcome.State)
		if outcome.Result != nil && outcome.Result.Error != "" {
			fmt.Printf("  error: %s\n", outcome.Result.Error)
		}
		switch outcome.State.String() {
		case "FAILED", "CANCELLED":
			failed = true
		}
	}

	if failed {
		return withCode(exitFailure, fmt.Errorf("workflow %q completed with failures", doc.Name))
	}
	return nil
}
