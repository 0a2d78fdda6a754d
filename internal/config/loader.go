// Package config loads the engine's configuration by layering a global
// config file, a project config file, and built-in defaults, the same
// missing-file-is-not-an-error / malformed-JSON-is-an-error discipline the
// rest of this codebase's config loading has always used.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load merges configuration from global and project paths onto the
// defaults. Precedence, highest to lowest: project config, global config,
// defaults. Missing files are not errors; malformed JSON is.
func Load(globalPath, projectPath string) (*Config, error) {
	cfg := DefaultConfig()

	if globalPath != "" {
		if err := mergeConfigFile(cfg, globalPath); err != nil {
			return nil, fmt.Errorf("loading global config: %w", err)
		}
	}
	if projectPath != "" {
		if err := mergeConfigFile(cfg, projectPath); err != nil {
			return nil, fmt.Errorf("loading project config: %w", err)
		}
	}
	return cfg, nil
}

// LoadDefault loads from the conventional locations: ~/.claude-swarm/config.json
// and ./.claude-swarm/config.json (relative to the current directory).
func LoadDefault() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}

	globalPath := filepath.Join(homeDir, ".claude-swarm", "config.json")
	projectPath := filepath.Join(".claude-swarm", "config.json")
	return Load(globalPath, projectPath)
}

// mergeConfigFile reads a JSON config file and merges it into base. A
// missing file is silently skipped.
func mergeConfigFile(base *Config, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if loaded.MaxInstances != 0 {
		base.MaxInstances = loaded.MaxInstances
	}
	if loaded.DefaultTimeout != 0 {
		base.DefaultTimeout = loaded.DefaultTimeout
	}
	if loaded.OutputBufferSize != 0 {
		base.OutputBufferSize = loaded.OutputBufferSize
	}
	if loaded.IdleTimeout != 0 {
		base.IdleTimeout = loaded.IdleTimeout
	}
	base.AutoHeal = base.AutoHeal || loaded.AutoHeal
	if loaded.Retry.MaxRetries != 0 {
		base.Retry = loaded.Retry
	}

	if base.TimeoutOverrides == nil {
		base.TimeoutOverrides = make(map[string]Duration)
	}
	for profile, d := range loaded.TimeoutOverrides {
		base.TimeoutOverrides[profile] = d
	}

	if base.ModelProfiles == nil {
		base.ModelProfiles = make(map[string]ModelProfile)
	}
	for name, profile := range loaded.ModelProfiles {
		base.ModelProfiles[name] = profile
	}

	return nil
}
