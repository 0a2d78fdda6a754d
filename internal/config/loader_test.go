package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name                string
		globalConfig        *Config
		projectConfig       *Config
		expectMaxInstances  int
		expectProfileCount  int
		checkProfile        string
		expectProfileKind   string
	}{
		{
			name:               "no config files returns defaults",
			expectMaxInstances: 4,
			expectProfileCount: 5,
		},
		{
			name: "global only adds a new profile",
			globalConfig: &Config{
				ModelProfiles: map[string]ModelProfile{
					"local-llama": {Kind: "shell", Command: "ollama"},
				},
			},
			expectMaxInstances: 4,
			expectProfileCount: 6,
			checkProfile:       "local-llama",
			expectProfileKind:  "shell",
		},
		{
			name: "project only overrides max instances",
			projectConfig: &Config{
				MaxInstances: 8,
			},
			expectMaxInstances: 8,
			expectProfileCount: 5,
		},
		{
			name: "project overrides global",
			globalConfig: &Config{
				MaxInstances: 8,
			},
			projectConfig: &Config{
				MaxInstances: 16,
			},
			expectMaxInstances: 16,
			expectProfileCount: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			globalPath := ""
			if tt.globalConfig != nil {
				globalPath = filepath.Join(tmpDir, "global.json")
				data, err := json.Marshal(tt.globalConfig)
				if err != nil {
					t.Fatalf("marshaling global config: %v", err)
				}
				if err := os.WriteFile(globalPath, data, 0644); err != nil {
					t.Fatalf("writing global config: %v", err)
				}
			}

			projectPath := ""
			if tt.projectConfig != nil {
				projectPath = filepath.Join(tmpDir, "project.json")
				data, err := json.Marshal(tt.projectConfig)
				if err != nil {
					t.Fatalf("marshaling project config: %v", err)
				}
				if err := os.WriteFile(projectPath, data, 0644); err != nil {
					t.Fatalf("writing project config: %v", err)
				}
			}

			cfg, err := Load(globalPath, projectPath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if cfg.MaxInstances != tt.expectMaxInstances {
				t.Errorf("MaxInstances = %d, want %d", cfg.MaxInstances, tt.expectMaxInstances)
			}
			if len(cfg.ModelProfiles) != tt.expectProfileCount {
				t.Errorf("ModelProfiles count = %d, want %d", len(cfg.ModelProfiles), tt.expectProfileCount)
			}
			if tt.checkProfile != "" {
				profile, ok := cfg.ModelProfiles[tt.checkProfile]
				if !ok {
					t.Fatalf("expected profile %q not found", tt.checkProfile)
				}
				if profile.Kind != tt.expectProfileKind {
					t.Errorf("profile %q kind = %q, want %q", tt.checkProfile, profile.Kind, tt.expectProfileKind)
				}
			}
		})
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()

	globalPath := filepath.Join(tmpDir, "global.json")
	if err := os.WriteFile(globalPath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("writing malformed config: %v", err)
	}

	if _, err := Load(globalPath, ""); err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.json", "/nonexistent/project.json")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}
	if len(cfg.ModelProfiles) != 5 {
		t.Errorf("ModelProfiles count = %d, want 5", len(cfg.ModelProfiles))
	}
}

func TestDuration_RoundTripsThroughJSON(t *testing.T) {
	type wrapper struct {
		D Duration `json:"d"`
	}

	data, err := json.Marshal(wrapper{D: Duration(30 * time.Second)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var w wrapper
	if err := json.Unmarshal(data, &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if time.Duration(w.D) != 30*time.Second {
		t.Errorf("expected 30s, got %v", time.Duration(w.D))
	}
}

func TestConfig_TimeoutForUsesOverrideWhenPresent(t *testing.T) {
	cfg := &Config{
		DefaultTimeout:   Duration(time.Minute),
		TimeoutOverrides: map[string]Duration{"codex": Duration(10 * time.Minute)},
	}

	if got := cfg.TimeoutFor("codex"); got != 10*time.Minute {
		t.Errorf("expected override 10m, got %v", got)
	}
	if got := cfg.TimeoutFor("claude"); got != time.Minute {
		t.Errorf("expected default 1m, got %v", got)
	}
}
