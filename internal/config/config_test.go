package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/darnellt0/em-ai-ecosystem-sub002/internal/config"
	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.HistoryLimit != 20 {
		t.Errorf("HistoryLimit = %d, want 20", cfg.HistoryLimit)
	}
	if cfg.DispatchTimeout != 30*time.Second {
		t.Errorf("DispatchTimeout = %v, want 30s", cfg.DispatchTimeout)
	}
	// Every write gate ships off.
	if cfg.Flags.ExecutionEnabled || cfg.Flags.CalendarWrites || cfg.Flags.EmailSend {
		t.Errorf("Flags = %+v, want everything off by default", cfg.Flags)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ASSISTANT_PORT", "9090")
	t.Setenv("ASSISTANT_EXECUTION_ENABLED", "true")
	t.Setenv("ASSISTANT_CALENDAR_WRITES_ENABLED", "true")
	t.Setenv("ASSISTANT_DISPATCH_TIMEOUT_SECONDS", "5")
	t.Setenv("ASSISTANT_DATA_DIR", "/tmp/assistant")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if !cfg.Flags.ExecutionEnabled || !cfg.Flags.CalendarWrites {
		t.Errorf("Flags = %+v, want env-enabled gates on", cfg.Flags)
	}
	if cfg.Flags.EmailSend {
		t.Error("EmailSend = true, want untouched gates to stay off")
	}
	if cfg.DispatchTimeout != 5*time.Second {
		t.Errorf("DispatchTimeout = %v, want 5s", cfg.DispatchTimeout)
	}
	if cfg.DataDir != "/tmp/assistant" {
		t.Errorf("DataDir = %q, want the env value", cfg.DataDir)
	}
}

func TestLoadYAMLOverridesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("port: 7070\nflags:\n  emailSend: true\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ASSISTANT_PORT", "9090")
	t.Setenv("ASSISTANT_CONFIG", path)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 7070 {
		t.Errorf("Port = %d, want the file's 7070 over the env's 9090", cfg.Port)
	}
	if !cfg.Flags.EmailSend {
		t.Error("EmailSend = false, want the file override")
	}
}

func TestLoadBadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: [not a number"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ASSISTANT_CONFIG", path)

	if _, err := config.Load(); err == nil {
		t.Fatal("Load() error = nil, want a parse error")
	}
}

func TestFlagDefaults(t *testing.T) {
	t.Setenv("ASSISTANT_EXECUTION_ENABLED", "true")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	flags := cfg.FlagDefaults()
	if !flags[models.FlagExecutionEnabled] {
		t.Error("executionEnabled = false, want true")
	}
	if flags[models.FlagCalendarWrites] || flags[models.FlagEmailSend] {
		t.Errorf("flags = %v, want other gates off", flags)
	}
}
