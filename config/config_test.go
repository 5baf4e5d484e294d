package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/skillsenselab/asrkit/errors"
)

func TestConfigApplyDefaults(t *testing.T) {
	t.Run("empty environment defaults to development", func(t *testing.T) {
		cfg := Config{Name: "asr"}
		cfg.ApplyDefaults()
		if cfg.Environment != "development" {
			t.Errorf("expected 'development', got %q", cfg.Environment)
		}
		if !cfg.Debug {
			t.Error("expected debug=true for development")
		}
	})

	t.Run("production keeps debug false", func(t *testing.T) {
		cfg := Config{Name: "asr", Environment: "production"}
		cfg.ApplyDefaults()
		if cfg.Debug {
			t.Error("expected debug=false for production")
		}
	})

	t.Run("polling and batch defaults", func(t *testing.T) {
		cfg := Config{Name: "asr"}
		cfg.ApplyDefaults()
		if cfg.Polling.Interval != 2*time.Second {
			t.Errorf("Polling.Interval = %s, want 2s", cfg.Polling.Interval)
		}
		if cfg.Polling.MaxWait != 5*time.Minute {
			t.Errorf("Polling.MaxWait = %s, want 5m", cfg.Polling.MaxWait)
		}
		if cfg.Batch.Workers != 4 {
			t.Errorf("Batch.Workers = %d, want 4", cfg.Batch.Workers)
		}
		if len(cfg.Output.Formats) != 1 || cfg.Output.Formats[0] != "txt" {
			t.Errorf("Output.Formats = %v, want [txt]", cfg.Output.Formats)
		}
	})

	t.Run("service name propagates to logging", func(t *testing.T) {
		cfg := Config{Name: "asr-service"}
		cfg.ApplyDefaults()
		if cfg.Logging.ServiceName != "asr-service" {
			t.Errorf("Logging.ServiceName = %q, want asr-service", cfg.Logging.ServiceName)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		cfg := Config{
			Name:        "asr",
			Environment: "production",
			Engine:      EngineSettings{Default: "whisper"},
		}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid config", func(c *Config) {}, ""},
		{"missing name", func(c *Config) { c.Name = "" }, "name: is required"},
		{"invalid environment", func(c *Config) { c.Environment = "qa" }, "must be one of: development staging production"},
		{"missing default engine", func(c *Config) { c.Engine.Default = "" }, "default: is required"},
		{"negative batch workers", func(c *Config) {
			c.Batch.Workers = -1
		}, "must be greater than or equal to 0"},
		{"interval exceeds max wait", func(c *Config) {
			c.Polling.Interval = 10 * time.Minute
		}, "must not exceed"},
		{"unknown export format", func(c *Config) {
			c.Output.Formats = []string{"vtt"}
		}, "must be one of: txt srt json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
			if !errors.IsValidation(err) {
				t.Errorf("expected a validation-class error, got %v", err)
			}
		})
	}
}

func TestConfigFallbackChain(t *testing.T) {
	cfg := Config{
		Engine:   EngineSettings{Default: "funasr"},
		Fallback: FallbackSettings{Engines: []string{"whisper", "funasr", "qwen"}},
	}
	chain := cfg.FallbackChain()
	want := []string{"funasr", "whisper", "qwen"}
	if len(chain) != len(want) {
		t.Fatalf("chain = %v, want %v", chain, want)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d] = %q, want %q", i, chain[i], want[i])
		}
	}
}

func TestConfigEngineConfig(t *testing.T) {
	cfg := Config{
		Engines: map[string]map[string]any{
			"funasr": {"api_key": "sk-test", "model": "paraformer-v2"},
		},
	}
	if got := cfg.EngineConfig("funasr")["model"]; got != "paraformer-v2" {
		t.Errorf("model = %v, want paraformer-v2", got)
	}
	if m := cfg.EngineConfig("whisper"); m == nil || len(m) != 0 {
		t.Errorf("expected empty map for unconfigured engine, got %v", m)
	}
}

func TestLoadConfigWithYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")

	yamlContent := `
name: asr-service
environment: staging
engine:
  default: funasr
  language: zh
fallback:
  engines: [whisper]
  max_attempts: 3
polling:
  interval: 1s
  max_wait: 2m
engines:
  funasr:
    model: paraformer-v2
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	var cfg Config
	if err := LoadConfig("asr-service", &cfg, WithConfigFile(configPath)); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Name != "asr-service" {
		t.Errorf("Name = %q, want asr-service", cfg.Name)
	}
	if cfg.Engine.Default != "funasr" {
		t.Errorf("Engine.Default = %q, want funasr", cfg.Engine.Default)
	}
	if cfg.Fallback.MaxAttempts != 3 {
		t.Errorf("Fallback.MaxAttempts = %d, want 3", cfg.Fallback.MaxAttempts)
	}
	if cfg.Polling.Interval != time.Second {
		t.Errorf("Polling.Interval = %s, want 1s", cfg.Polling.Interval)
	}
	if cfg.EngineConfig("funasr")["model"] != "paraformer-v2" {
		t.Errorf("funasr model = %v, want paraformer-v2", cfg.EngineConfig("funasr")["model"])
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	var cfg Config
	// A missing config file is not an error; defaults and env still apply.
	if err := LoadConfig("nonexistent-service", &cfg, WithConfigFile("/nonexistent/path.yml")); err != nil {
		t.Fatalf("expected LoadConfig to succeed with missing file, got %v", err)
	}
}

type mockFS struct {
	files map[string]bool
}

func (m *mockFS) Exists(path string) bool  { return m.files[path] }
func (m *mockFS) LoadEnv(path string) error { return nil }

func TestLoadConfigSearchesStandardPaths(t *testing.T) {
	fs := &mockFS{files: map[string]bool{"./config/asr.yml": true}}
	if got := findFile(fs, configSearchPaths("asr")); got != "./config/asr.yml" {
		t.Errorf("findFile = %q, want ./config/asr.yml", got)
	}
}

func TestEnvKeyVariants(t *testing.T) {
	variants := envKeyVariants("POLLING_MAX_WAIT")
	want := map[string]bool{
		"polling_max_wait": true,
		"polling.max.wait": true,
		"polling.max_wait": true,
	}
	for _, v := range variants {
		delete(want, v)
	}
	if len(want) != 0 {
		t.Errorf("missing variants: %v (got %v)", want, variants)
	}
}
