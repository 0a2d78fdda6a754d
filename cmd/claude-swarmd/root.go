package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/chrisarseno/claude-swarm/internal/config"
	"github.com/chrisarseno/claude-swarm/internal/workflow"
)

const version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "claude-swarmd",
	Short:         "Orchestrate a pool of long-lived worker processes",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a project config.json (defaults to ~/.claude-swarm and ./.claude-swarm)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// exitCode, per the CLI adapter's documented contract: 0 success, 1 generic
// failure, 2 invalid usage, 3 configuration error, 4 workflow validation
// error.
type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1
	exitUsage   exitCode = 2
	exitConfig  exitCode = 3
	exitWorkflowInvalid exitCode = 4
)

// codedError attaches an explicit exit code to an error returned from a
// command's RunE.
type codedError struct {
	code exitCode
	err  error
}

func (e *codedError) Error() string { return e.err.Error() }
func (e *codedError) Unwrap() error { return e.err }

func withCode(code exitCode, err error) error {
	if err == nil {
		return nil
	}
	return &codedError{code: code, err: err}
}

func exitCodeFor(err error) int {
	var ce *codedError
	if errors.As(err, &ce) {
		return int(ce.code)
	}
	return int(exitFailure)
}

func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.Load(configPath, "")
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, withCode(exitConfig, err)
	}
	return cfg, nil
}

// wrapWorkflowErr promotes workflow.ErrValidation to the dedicated exit
// code; every other error keeps the generic-failure code.
func wrapWorkflowErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, workflow.ErrValidation) {
		return withCode(exitWorkflowInvalid, err)
	}
	return withCode(exitFailure, err)
}
