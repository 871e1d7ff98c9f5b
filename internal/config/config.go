package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// Config holds all configuration for the assistant service.
type Config struct {
	Port    int    `yaml:"port"`
	Version string `yaml:"version"`
	DataDir string `yaml:"dataDir"`

	HistoryLimit    int           `yaml:"historyLimit"`
	DispatchTimeout time.Duration `yaml:"dispatchTimeout"`
	ToolDelegateURL string        `yaml:"toolDelegateUrl"`

	Flags     FlagsConfig     `yaml:"flags"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// FlagsConfig are the execution feature gates. Everything defaults to off:
// a fresh deployment plans but never writes.
type FlagsConfig struct {
	ExecutionEnabled bool `yaml:"executionEnabled"`
	CalendarWrites   bool `yaml:"calendarWrites"`
	EmailSend        bool `yaml:"emailSend"`
}

type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

// Load reads configuration from environment variables with sensible
// defaults, then overlays the optional YAML file named by
// ASSISTANT_CONFIG. Environment values act as defaults the file can
// override.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            envInt("ASSISTANT_PORT", 8080),
		Version:         envStr("ASSISTANT_VERSION", "0.1.0"),
		DataDir:         envStr("ASSISTANT_DATA_DIR", ""),
		HistoryLimit:    envInt("ASSISTANT_HISTORY_LIMIT", 20),
		DispatchTimeout: time.Duration(envInt("ASSISTANT_DISPATCH_TIMEOUT_SECONDS", 30)) * time.Second,
		ToolDelegateURL: envStr("ASSISTANT_TOOL_DELEGATE_URL", ""),
		Flags: FlagsConfig{
			ExecutionEnabled: envBool("ASSISTANT_EXECUTION_ENABLED", false),
			CalendarWrites:   envBool("ASSISTANT_CALENDAR_WRITES_ENABLED", false),
			EmailSend:        envBool("ASSISTANT_EMAIL_SEND_ENABLED", false),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "assistant-core"),
		},
	}

	if path := os.Getenv("ASSISTANT_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	return cfg, nil
}

// FlagDefaults converts the configured gates to the executor's flag map.
func (c *Config) FlagDefaults() map[string]bool {
	return map[string]bool{
		models.FlagExecutionEnabled: c.Flags.ExecutionEnabled,
		models.FlagCalendarWrites:   c.Flags.CalendarWrites,
		models.FlagEmailSend:        c.Flags.EmailSend,
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
