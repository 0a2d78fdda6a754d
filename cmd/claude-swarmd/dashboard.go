package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/chrisarseno/claude-swarm/internal/engine"
	"github.com/chrisarseno/claude-swarm/internal/events"
	"github.com/chrisarseno/claude-swarm/internal/pool"
	"github.com/chrisarseno/claude-swarm/internal/tui"
)

var (
	dashboardModelProfile string
	dashboardInstances    int
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Run a live terminal dashboard over an embedded orchestrator",
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)

	dashboardCmd.Flags().StringVar(&dashboardModelProfile, "model-profile", "default", "model profile used to spawn startup instances")
	dashboardCmd.Flags().IntVar(&dashboardInstances, "instances", 1, "worker instances to spawn at startup")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	profile, ok := cfg.ModelProfiles[dashboardModelProfile]
	if !ok && dashboardModelProfile != "" {
		return withCode(exitConfig, fmt.Errorf("unknown model profile %q", dashboardModelProfile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.New()
	orch := engine.New(cfg, bus)

	if dashboardInstances > 0 {
		spawnOpts := pool.SpawnOptions{
			ModelProfile: dashboardModelProfile,
			Command:      profile.Command,
			Model:        profile.Model,
			SystemPrompt: profile.SystemPrompt,
		}
		if _, err := orch.Pool().Spawn(ctx, dashboardInstances, spawnOpts); err != nil {
			return withCode(exitFailure, fmt.Errorf("spawning dashboard instances: %w", err))
		}
	}
	orch.Start(ctx)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return withCode(exitFailure, err)
	}
	globalPath := filepath.Join(homeDir, ".claude-swarm", "config.json")
	projectPath := filepath.Join(".claude-swarm", "config.json")

	model := tui.New(orch, cfg, globalPath, projectPath)
	program := tea.NewProgram(model, tea.WithAltScreen())

	errCh := make(chan error, 1)
	go func() {
		_, runErr := program.Run()
		errCh <- runErr
	}()

	select {
	case runErr := <-errCh:
		orch.Stop(5 * time.Second)
		if runErr != nil {
			return withCode(exitFailure, runErr)
		}
		return nil
	case <-ctx.Done():
		stop()
		program.Quit()
		<-errCh
		orch.Stop(10 * time.Second)
		return nil
	}
}
