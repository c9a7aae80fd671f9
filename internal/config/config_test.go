package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
agent:
  host: "127.0.0.1"
  port: 7177
  cache_version: "v3"
remote:
  base_url: "https://api.fitfam.example.com"
  api_key: "test-key-123"
store:
  dir: "/var/lib/repsync"
queue:
  max_attempts: 4
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadValid verifies that a well-formed YAML config loads with all fields populated.
func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agent.Host != "127.0.0.1" {
		t.Errorf("agent.host = %q, want %q", cfg.Agent.Host, "127.0.0.1")
	}
	if cfg.Agent.Port != 7177 {
		t.Errorf("agent.port = %d, want 7177", cfg.Agent.Port)
	}
	if cfg.Agent.CacheVersion != "v3" {
		t.Errorf("agent.cache_version = %q, want %q", cfg.Agent.CacheVersion, "v3")
	}
	if cfg.Remote.BaseURL != "https://api.fitfam.example.com" {
		t.Errorf("remote.base_url = %q", cfg.Remote.BaseURL)
	}
	if cfg.Queue.MaxAttempts != 4 {
		t.Errorf("queue.max_attempts = %d, want 4", cfg.Queue.MaxAttempts)
	}
}

// TestDefaults verifies fields omitted from the YAML get sane defaults.
func TestDefaults(t *testing.T) {
	yaml := `
agent:
  port: 7177
remote:
  base_url: "https://api.example.com"
store:
  dir: "/tmp/repsync"
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Agent.Host != "127.0.0.1" {
		t.Errorf("agent.host default = %q, want 127.0.0.1", cfg.Agent.Host)
	}
	if cfg.Agent.CacheVersion != "v1" {
		t.Errorf("agent.cache_version default = %q, want v1", cfg.Agent.CacheVersion)
	}
	if cfg.Queue.MaxAttempts != 5 {
		t.Errorf("queue.max_attempts default = %d, want 5", cfg.Queue.MaxAttempts)
	}
	if cfg.Queue.ReplayIntervalSeconds != 60 {
		t.Errorf("queue.replay_interval_seconds default = %d, want 60", cfg.Queue.ReplayIntervalSeconds)
	}
	if cfg.Queue.ProbeIntervalSeconds != 15 {
		t.Errorf("queue.probe_interval_seconds default = %d, want 15", cfg.Queue.ProbeIntervalSeconds)
	}
	if cfg.Session.RestExtendSeconds != 30 {
		t.Errorf("session.rest_extend_seconds default = %d, want 30", cfg.Session.RestExtendSeconds)
	}
	if cfg.Reminders.DelayMinutes != 30 {
		t.Errorf("reminders.delay_minutes default = %d, want 30", cfg.Reminders.DelayMinutes)
	}
}

// TestEnvOverride verifies that REPSYNC_ env vars take precedence over YAML values.
// This ensures deployments can override config via environment.
func TestEnvOverride(t *testing.T) {
	t.Setenv("REPSYNC_REMOTE_BASE_URL", "https://override.example.com")
	t.Setenv("REPSYNC_AGENT_PORT", "9999")
	t.Setenv("REPSYNC_QUEUE_MAX_ATTEMPTS", "7")

	cfg, err := Load(writeTemp(t, validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Remote.BaseURL != "https://override.example.com" {
		t.Errorf("remote.base_url = %q, want override", cfg.Remote.BaseURL)
	}
	if cfg.Agent.Port != 9999 {
		t.Errorf("agent.port = %d, want 9999", cfg.Agent.Port)
	}
	if cfg.Queue.MaxAttempts != 7 {
		t.Errorf("queue.max_attempts = %d, want 7", cfg.Queue.MaxAttempts)
	}
	// Unchanged fields should keep YAML values
	if cfg.Store.Dir != "/var/lib/repsync" {
		t.Errorf("store.dir = %q, want /var/lib/repsync", cfg.Store.Dir)
	}
}

// TestValidationMissingPort verifies that missing required fields produce a clear error.
func TestValidationMissingPort(t *testing.T) {
	yaml := `
remote:
  base_url: "https://api.example.com"
store:
  dir: "/tmp/repsync"
`
	_, err := Load(writeTemp(t, yaml))
	if err == nil {
		t.Fatal("expected validation error for missing agent.port")
	}
}

// TestValidationMissingBaseURL verifies that a missing remote URL is rejected.
// Without it the queue replayer has nowhere to send mutations.
func TestValidationMissingBaseURL(t *testing.T) {
	yaml := `
agent:
  port: 7177
store:
  dir: "/tmp/repsync"
`
	_, err := Load(writeTemp(t, yaml))
	if err == nil {
		t.Fatal("expected validation error for missing remote.base_url")
	}
}

// TestValidationTailscaleHostname verifies tailscale mode requires a hostname.
func TestValidationTailscaleHostname(t *testing.T) {
	yaml := validYAML + `
tailscale:
  enabled: true
`
	_, err := Load(writeTemp(t, yaml))
	if err == nil {
		t.Fatal("expected validation error for missing tailscale.hostname")
	}
}

// TestLoadMissingFile verifies that a missing config file returns a clear error.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
