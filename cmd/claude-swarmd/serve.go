package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrisarseno/claude-swarm/internal/api/rest"
	"github.com/chrisarseno/claude-swarm/internal/engine"
	"github.com/chrisarseno/claude-swarm/internal/events"
	"github.com/chrisarseno/claude-swarm/internal/pool"
	"github.com/chrisarseno/claude-swarm/internal/workflow"
)

var (
	serveAddr             string
	serveInitialInstances int
	serveModelProfile     string
	serveShutdownGrace    time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orchestrator's REST/WebSocket API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().IntVar(&serveInitialInstances, "instances", 0, "worker instances to spawn at startup (0 uses max_instances from config)")
	serveCmd.Flags().StringVar(&serveModelProfile, "model-profile", "default", "model profile used to spawn startup instances")
	serveCmd.Flags().DurationVar(&serveShutdownGrace, "shutdown-grace", 15*time.Second, "grace period for draining running tasks on shutdown")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	profile, ok := cfg.ModelProfiles[serveModelProfile]
	if !ok && serveModelProfile != "" {
		return withCode(exitConfig, fmt.Errorf("unknown model profile %q", serveModelProfile))
	}

	bus := events.New()
	orch := engine.New(cfg, bus)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	initial := serveInitialInstances
	if initial <= 0 {
		initial = cfg.MaxInstances
	}
	if initial > 0 {
		spawnOpts := pool.SpawnOptions{
			ModelProfile:     serveModelProfile,
			Command:          profile.Command,
			Model:            profile.Model,
			SystemPrompt:     profile.SystemPrompt,
			OutputBufferSize: cfg.OutputBufferSize,
		}
		if _, err := orch.Pool().Spawn(ctx, initial, spawnOpts); err != nil {
			return withCode(exitFailure, fmt.Errorf("spawning initial instances: %w", err))
		}
	}

	orch.Start(ctx)

	wfExec := workflow.New(orch, pool.SpawnOptions{ModelProfile: serveModelProfile, Command: profile.Command})

	restCfg := rest.DefaultConfig()
	restCfg.Address = serveAddr
	server := rest.New(orch, wfExec, restCfg)

	log.Printf("claude-swarmd listening on %s", serveAddr)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		stop()
		log.Println("shutting down: draining running tasks")
		orch.Stop(serveShutdownGrace)
		if err := server.Shutdown(); err != nil {
			return withCode(exitFailure, err)
		}
		return nil
	case err := <-errCh:
		if err != nil {
			return withCode(exitFailure, err)
		}
		return nil
	}
}
