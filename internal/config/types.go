package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration wraps time.Duration so config files can express it as a string
// ("30s", "5m") instead of raw nanoseconds.
type Duration time.Duration

// MarshalJSON encodes d as its string form, e.g. "30s".
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string ("30s") or a bare number of
// nanoseconds, for forward compatibility with hand-edited configs.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("duration must be a string or number of nanoseconds: %w", err)
	}
	*d = Duration(n)
	return nil
}

// ModelProfile names a worker back-end: which CLI to invoke, which model,
// and its default system prompt.
type ModelProfile struct {
	Kind         string `json:"kind"` // "claude", "codex", "goose", "shell"
	Command      string `json:"command,omitempty"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// RetryPolicy configures the pool's exponential-backoff spawn retry. Only
// MaxRetries is passed to the pool; InitialInterval and MaxInterval are not
// applied, and spawn retries use the backoff library's default intervals.
type RetryPolicy struct {
	InitialInterval Duration `json:"initial_interval,omitempty"`
	MaxInterval     Duration `json:"max_interval,omitempty"`
	MaxRetries      uint64   `json:"max_retries,omitempty"`
}

// Config is the engine's top-level configuration.
type Config struct {
	MaxInstances     int                     `json:"max_instances"`
	DefaultTimeout   Duration                `json:"default_timeout"`
	TimeoutOverrides map[string]Duration     `json:"timeout_overrides,omitempty"` // per-model-profile
	OutputBufferSize int                     `json:"output_buffer_size,omitempty"`
	IdleTimeout      Duration                `json:"idle_timeout,omitempty"` // 0 disables idle reaping
	AutoHeal         bool                    `json:"auto_heal"`
	Retry            RetryPolicy             `json:"retry,omitempty"`
	ModelProfiles    map[string]ModelProfile `json:"model_profiles"`
}

// TimeoutFor resolves a task's effective timeout: the profile-specific
// override if one is configured, else the global default.
func (c *Config) TimeoutFor(profile string) time.Duration {
	if d, ok := c.TimeoutOverrides[profile]; ok {
		return time.Duration(d)
	}
	return time.Duration(c.DefaultTimeout)
}
