// Package config handles appmirror configuration from YAML files, with
// environment overrides applied by the caller.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level appmirror configuration.
type Config struct {
	Target        TargetConfig        `yaml:"target"`
	Poll          PollConfig          `yaml:"poll"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// TargetConfig describes how to find and attach to the application's
// debugging endpoint.
type TargetConfig struct {
	Host         string        `yaml:"host"`
	Ports        []int         `yaml:"ports"`
	Pattern      string        `yaml:"pattern"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	GracePeriod  time.Duration `yaml:"grace_period"`
}

// PollConfig controls the capture loop.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ServerConfig controls the HTTP/WebSocket surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Token is the shared access token. Empty means generate one at
	// startup and log it.
	Token string `yaml:"token"`
}

// ObservabilityConfig controls the SQLite event log.
type ObservabilityConfig struct {
	Path     string `yaml:"path"`
	Disabled bool   `yaml:"disabled"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Default returns a configuration with all defaults applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in every unset field.
func (c *Config) ApplyDefaults() {
	if c.Target.Host == "" {
		c.Target.Host = "127.0.0.1"
	}
	if len(c.Target.Ports) == 0 {
		c.Target.Ports = []int{9222, 9223, 9224, 9225}
	}
	if c.Target.ProbeTimeout <= 0 {
		c.Target.ProbeTimeout = 2 * time.Second
	}
	if c.Target.GracePeriod <= 0 {
		c.Target.GracePeriod = 500 * time.Millisecond
	}
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = time.Second
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}
	if c.Observability.Path == "" {
		c.Observability.Path = "data/events.db"
	}
}
