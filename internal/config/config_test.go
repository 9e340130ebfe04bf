package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"server.addr", cfg.Server.Addr, ":8080"},
		{"server.shutdown_timeout_seconds", cfg.Server.ShutdownTimeoutSeconds, 5},
		{"storage.data_dir", cfg.Storage.DataDir, "data"},
		{"storage.max_history_entries", cfg.Storage.MaxHistoryEntries, 500},
		{"calculator.undo_depth", cfg.Calculator.UndoDepth, 20},
		{"calculator.feedback_dismiss_seconds", cfg.Calculator.FeedbackDismissSeconds, 3},
		{"sessions.ttl_minutes", cfg.Sessions.TTLMinutes, 20},
		{"sessions.cleanup_seconds", cfg.Sessions.CleanupSeconds, 60},
		{"observability.otlp_enabled", cfg.Observability.OTLPEnabled, false},
		{"observability.service_name", cfg.Observability.ServiceName, "checkbook-calc"},
		{"observability.log_level", cfg.Observability.LogLevel, "info"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestDurations(t *testing.T) {
	cfg := Defaults()

	if got := cfg.ShutdownTimeout(); got != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v", got)
	}
	if got := cfg.FeedbackDismiss(); got != 3*time.Second {
		t.Errorf("FeedbackDismiss = %v", got)
	}
	if got := cfg.SessionTTL(); got != 20*time.Minute {
		t.Errorf("SessionTTL = %v", got)
	}
	if got := cfg.SessionCleanup(); got != time.Minute {
		t.Errorf("SessionCleanup = %v", got)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		path := writeConfig(t, `
[server]
addr = ":9090"

[storage]
data_dir = "/var/lib/checkbook"
max_history_entries = 100

[calculator]
undo_depth = 50
feedback_dismiss_seconds = 0

[observability]
log_level = "debug"
`)

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Server.Addr != ":9090" {
			t.Errorf("server.addr = %q", cfg.Server.Addr)
		}
		if cfg.Storage.DataDir != "/var/lib/checkbook" || cfg.Storage.MaxHistoryEntries != 100 {
			t.Errorf("storage = %+v", cfg.Storage)
		}
		if cfg.Calculator.UndoDepth != 50 || cfg.Calculator.FeedbackDismissSeconds != 0 {
			t.Errorf("calculator = %+v", cfg.Calculator)
		}
		if cfg.Sessions.TTLMinutes != 20 {
			t.Errorf("unset sessions.ttl_minutes should keep its default, got %d", cfg.Sessions.TTLMinutes)
		}
		if cfg.Observability.LogLevel != "debug" {
			t.Errorf("observability.log_level = %q", cfg.Observability.LogLevel)
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		path := writeConfig(t, `
[calculator]
undo_dept = 10
`)
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "calculator.undo_dept") {
			t.Fatalf("expected unknown key error, got %v", err)
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		path := writeConfig(t, `[server`)
		if _, err := Load(path); err == nil {
			t.Fatal("expected decode error")
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeConfig(t, `
[calculator]
undo_depth = 0

[observability]
log_level = "loud"
`)
		_, err := Load(path)
		if err == nil {
			t.Fatal("expected validation error")
		}
		for _, want := range []string{"undo_depth", "log_level"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error should mention %q: %v", want, err)
			}
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Fatal("expected error for missing explicit path")
		}
	})
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHECKBOOK_ADDR", ":7070")
	t.Setenv("CHECKBOOK_DATA_DIR", "/tmp/checkbook")
	t.Setenv("CHECKBOOK_LOG_LEVEL", "warn")
	t.Setenv("CHECKBOOK_OTLP_ENABLED", "true")
	t.Setenv("OTEL_SERVICE_NAME", "ledger")

	path := writeConfig(t, `
[server]
addr = ":9090"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":7070" {
		t.Errorf("env should override file addr, got %q", cfg.Server.Addr)
	}
	if cfg.Storage.DataDir != "/tmp/checkbook" {
		t.Errorf("data_dir = %q", cfg.Storage.DataDir)
	}
	if cfg.Observability.LogLevel != "warn" || !cfg.Observability.OTLPEnabled || cfg.Observability.ServiceName != "ledger" {
		t.Errorf("observability = %+v", cfg.Observability)
	}
}

func TestLoadInvalidEnvBool(t *testing.T) {
	t.Setenv("CHECKBOOK_OTLP_ENABLED", "sometimes")

	if _, err := Load(writeConfig(t, "")); err == nil {
		t.Fatal("expected error for unparseable CHECKBOOK_OTLP_ENABLED")
	}
}

func TestInitFile(t *testing.T) {
	for _, k := range []string{"CHECKBOOK_ADDR", "CHECKBOOK_DATA_DIR", "CHECKBOOK_LOG_LEVEL", "CHECKBOOK_OTLP_ENABLED", "OTEL_SERVICE_NAME"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()

	path, err := InitFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != FileName {
		t.Errorf("unexpected path %q", path)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("generated file should load: %v", err)
	}
	if *cfg != Defaults() {
		t.Errorf("generated file should match defaults, got %+v", cfg)
	}

	if _, err := InitFile(dir); err == nil {
		t.Fatal("expected error when file already exists")
	}
}
