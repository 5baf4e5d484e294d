package logger

import (
	"os"
	"testing"
	"time"
)

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestNew(t *testing.T) {
	cfg := &Config{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	}
	l := New(cfg, "my-service")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNewInvalidLevel(t *testing.T) {
	cfg := &Config{
		Level:  "invalid-level",
		Format: "json",
		Output: "stdout",
	}
	l := New(cfg, "test")
	if l == nil {
		t.Fatal("expected logger to be created even with invalid level")
	}
}

func TestNewFromEnv(t *testing.T) {
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "json")
	defer os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("LOG_FORMAT")

	l := NewFromEnv("env-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected default format 'console', got %q", cfg.Format)
	}
	if !cfg.Timestamp {
		t.Error("expected timestamp enabled by default")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Level: "info", Format: "json"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg = Config{Level: "loud", Format: "json"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid level")
	}

	cfg = Config{Level: "info", Format: "xml"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestFields(t *testing.T) {
	m := Fields("engine", "qwen", "segments", 4)
	if m["engine"] != "qwen" {
		t.Errorf("expected engine=qwen, got %v", m["engine"])
	}
	if m["segments"] != 4 {
		t.Errorf("expected segments=4, got %v", m["segments"])
	}
}

func TestFieldsOddArgs(t *testing.T) {
	m := Fields("engine", "qwen", "dangling")
	if len(m) != 1 {
		t.Errorf("expected dangling key dropped, got %v", m)
	}
}

func TestDurationFields(t *testing.T) {
	m := DurationFields("recognize", 1500*time.Millisecond)
	if m[FieldDuration] != int64(1500) {
		t.Errorf("expected 1500ms, got %v", m[FieldDuration])
	}
}

func TestRegistryGetFallsBackToComponent(t *testing.T) {
	l := Get("never-registered")
	if l == nil {
		t.Fatal("Get should never return nil")
	}
}

func TestRegistryRegisterAndGet(t *testing.T) {
	custom := NewDefault("custom")
	Register("asr", custom)
	if got := Get("asr"); got != custom {
		t.Error("expected registered logger back")
	}
}
