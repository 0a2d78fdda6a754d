package config

import "time"

// DefaultConfig returns the engine's default configuration: three
// session-CLI profiles plus a raw shell profile, a 5 minute default task
// timeout, and idle reaping disabled. "default" aliases "claude" so the
// CLI's --model-profile flags work out of the box.
func DefaultConfig() *Config {
	return &Config{
		MaxInstances:     4,
		DefaultTimeout:   Duration(5 * time.Minute),
		OutputBufferSize: 64 * 1024,
		ModelProfiles: map[string]ModelProfile{
			"default": {Kind: "claude", Command: "claude"},
			"claude":  {Kind: "claude", Command: "claude"},
			"codex":   {Kind: "codex", Command: "codex"},
			"goose":   {Kind: "goose", Command: "goose"},
			"shell":   {Kind: "shell", Command: "/bin/sh"},
		},
		Retry: RetryPolicy{
			InitialInterval: Duration(100 * time.Millisecond),
			MaxInterval:     Duration(10 * time.Second),
			MaxRetries:      3,
		},
	}
}
