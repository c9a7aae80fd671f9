package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Remote    RemoteConfig    `yaml:"remote"`
	Store     StoreConfig     `yaml:"store"`
	Queue     QueueConfig     `yaml:"queue"`
	Session   SessionConfig   `yaml:"session"`
	Reminders RemindersConfig `yaml:"reminders"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
}

type AgentConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// CacheVersion tags every cache entry; entries written under a
	// different tag are purged when the agent activates.
	CacheVersion string `yaml:"cache_version"`
}

type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type StoreConfig struct {
	Dir string `yaml:"dir"`
}

type QueueConfig struct {
	MaxAttempts           int `yaml:"max_attempts"`
	ReplayIntervalSeconds int `yaml:"replay_interval_seconds"`
	ProbeIntervalSeconds  int `yaml:"probe_interval_seconds"`
}

type SessionConfig struct {
	RestExtendSeconds int `yaml:"rest_extend_seconds"`
}

type RemindersConfig struct {
	DelayMinutes int `yaml:"delay_minutes"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. Env vars use the prefix REPSYNC_ and
// underscore-separated paths:
//
//	REPSYNC_AGENT_HOST, REPSYNC_AGENT_PORT, REPSYNC_AGENT_CACHE_VERSION,
//	REPSYNC_REMOTE_BASE_URL, REPSYNC_REMOTE_API_KEY,
//	REPSYNC_STORE_DIR, REPSYNC_QUEUE_MAX_ATTEMPTS
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPSYNC_AGENT_HOST"); v != "" {
		cfg.Agent.Host = v
	}
	if v := os.Getenv("REPSYNC_AGENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Agent.Port = port
		}
	}
	if v := os.Getenv("REPSYNC_AGENT_CACHE_VERSION"); v != "" {
		cfg.Agent.CacheVersion = v
	}
	if v := os.Getenv("REPSYNC_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("REPSYNC_REMOTE_API_KEY"); v != "" {
		cfg.Remote.APIKey = v
	}
	if v := os.Getenv("REPSYNC_STORE_DIR"); v != "" {
		cfg.Store.Dir = v
	}
	if v := os.Getenv("REPSYNC_QUEUE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Queue.MaxAttempts = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Agent.Host == "" {
		cfg.Agent.Host = "127.0.0.1"
	}
	if cfg.Agent.CacheVersion == "" {
		cfg.Agent.CacheVersion = "v1"
	}
	if cfg.Remote.TimeoutSeconds == 0 {
		cfg.Remote.TimeoutSeconds = 30
	}
	if cfg.Queue.MaxAttempts == 0 {
		cfg.Queue.MaxAttempts = 5
	}
	if cfg.Queue.ReplayIntervalSeconds == 0 {
		cfg.Queue.ReplayIntervalSeconds = 60
	}
	if cfg.Queue.ProbeIntervalSeconds == 0 {
		cfg.Queue.ProbeIntervalSeconds = 15
	}
	if cfg.Session.RestExtendSeconds == 0 {
		cfg.Session.RestExtendSeconds = 30
	}
	if cfg.Reminders.DelayMinutes == 0 {
		cfg.Reminders.DelayMinutes = 30
	}
}

func (c *Config) validate() error {
	if c.Agent.Port == 0 {
		return fmt.Errorf("agent.port is required")
	}
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store.dir is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	return nil
}
