// Package config parses checkbook.toml service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "checkbook.toml"

// Config is the top-level checkbook.toml configuration.
type Config struct {
	Server        ServerConfig        `toml:"server"`
	Storage       StorageConfig       `toml:"storage"`
	Calculator    CalculatorConfig    `toml:"calculator"`
	Sessions      SessionsConfig      `toml:"sessions"`
	Observability ObservabilityConfig `toml:"observability"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr                   string `toml:"addr"`
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// StorageConfig controls where history and settings are kept.
type StorageConfig struct {
	DataDir           string `toml:"data_dir"`
	MaxHistoryEntries int    `toml:"max_history_entries"`
}

// CalculatorConfig controls per-calculator behaviour.
type CalculatorConfig struct {
	UndoDepth              int `toml:"undo_depth"`
	FeedbackDismissSeconds int `toml:"feedback_dismiss_seconds"` // 0 = never auto-dismiss
}

// SessionsConfig controls how long idle HTTP calculator sessions live.
type SessionsConfig struct {
	TTLMinutes     int `toml:"ttl_minutes"`
	CleanupSeconds int `toml:"cleanup_seconds"`
}

// ObservabilityConfig controls logging and OTLP export.
type ObservabilityConfig struct {
	OTLPEnabled bool   `toml:"otlp_enabled"`
	ServiceName string `toml:"service_name"`
	LogLevel    string `toml:"log_level"`
}

// ShutdownTimeout is Server.ShutdownTimeoutSeconds as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// FeedbackDismiss is Calculator.FeedbackDismissSeconds as a duration.
func (c *Config) FeedbackDismiss() time.Duration {
	return time.Duration(c.Calculator.FeedbackDismissSeconds) * time.Second
}

// SessionTTL is Sessions.TTLMinutes as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Sessions.TTLMinutes) * time.Minute
}

// SessionCleanup is Sessions.CleanupSeconds as a duration.
func (c *Config) SessionCleanup() time.Duration {
	return time.Duration(c.Sessions.CleanupSeconds) * time.Second
}

// Validate checks the configuration and returns all issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Addr == "" {
		errs = append(errs, fmt.Errorf("server.addr must not be empty"))
	}
	if c.Server.ShutdownTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout_seconds must be >= 0"))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, fmt.Errorf("storage.data_dir must not be empty"))
	}
	if c.Storage.MaxHistoryEntries < 1 {
		errs = append(errs, fmt.Errorf("storage.max_history_entries must be >= 1"))
	}
	if c.Calculator.UndoDepth < 1 {
		errs = append(errs, fmt.Errorf("calculator.undo_depth must be >= 1"))
	}
	if c.Calculator.FeedbackDismissSeconds < 0 {
		errs = append(errs, fmt.Errorf("calculator.feedback_dismiss_seconds must be >= 0 (0 = never)"))
	}
	if c.Sessions.TTLMinutes < 1 {
		errs = append(errs, fmt.Errorf("sessions.ttl_minutes must be >= 1"))
	}
	if c.Sessions.CleanupSeconds < 0 {
		errs = append(errs, fmt.Errorf("sessions.cleanup_seconds must be >= 0 (0 = no background cleanup)"))
	}

	switch strings.ToLower(c.Observability.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("observability.log_level must be debug, info, warn or error"))
	}

	return errors.Join(errs...)
}

// Defaults returns a Config with the values used when no file is present.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Addr:                   ":8080",
			ShutdownTimeoutSeconds: 5,
		},
		Storage: StorageConfig{
			DataDir:           "data",
			MaxHistoryEntries: 500,
		},
		Calculator: CalculatorConfig{
			UndoDepth:              20,
			FeedbackDismissSeconds: 3,
		},
		Sessions: SessionsConfig{
			TTLMinutes:     20,
			CleanupSeconds: 60,
		},
		Observability: ObservabilityConfig{
			OTLPEnabled: false,
			ServiceName: "checkbook-calc",
			LogLevel:    "info",
		},
	}
}

// Load reads the configuration at path. If path is empty, checkbook.toml in
// the working directory is used when present and Defaults otherwise.
// Unknown keys are rejected (likely typos). Environment overrides are
// applied last.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		if _, err := os.Stat(FileName); err == nil {
			path = FileName
		}
	}

	if path != "" {
		meta, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}

		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, strings.Join(keys, ", "))
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// applyEnv overrides file values with CHECKBOOK_* and OTEL_SERVICE_NAME.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("CHECKBOOK_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("CHECKBOOK_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("CHECKBOOK_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("CHECKBOOK_OTLP_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: CHECKBOOK_OTLP_ENABLED: %w", err)
		}
		cfg.Observability.OTLPEnabled = enabled
	}
	if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		cfg.Observability.ServiceName = v
	}
	return nil
}

// InitFile writes a default checkbook.toml to dir.
func InitFile(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: %s already exists at %s", FileName, path)
	}

	content := `# checkbook.toml: checkbook calculator configuration

[server]
addr = ":8080"
shutdown_timeout_seconds = 5

[storage]
data_dir = "data"           # history.json, settings.json, balance.json
max_history_entries = 500

[calculator]
undo_depth = 20
feedback_dismiss_seconds = 3  # 0 = keep undo/redo feedback until replaced

[sessions]
ttl_minutes = 20      # idle HTTP calculator sessions expire after this
cleanup_seconds = 60  # 0 = no background cleanup

[observability]
otlp_enabled = false  # export traces, metrics and logs over OTLP/HTTP
service_name = "checkbook-calc"
log_level = "info"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}
