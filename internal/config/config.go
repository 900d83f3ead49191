// Package config loads and validates the server configuration from a YAML
// file, with production-ready defaults for every setting.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"lectern/internal/analyzer"
)

// Config holds all server settings.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Database  DatabaseConfig  `yaml:"database"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
}

// HTTPConfig configures the ingress HTTP server.
type HTTPConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// WebSocketConfig configures observer connections.
type WebSocketConfig struct {
	// PingInterval controls how often the server sends ping frames. Must be
	// less than PongWait.
	PingInterval time.Duration `yaml:"ping_interval"`

	// PongWait is how long to wait for a pong before treating the connection
	// as dead.
	PongWait time.Duration `yaml:"pong_wait"`

	// WriteTimeout is the deadline for a single write to an observer.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// SendBuffer is the per-connection outgoing message buffer depth.
	SendBuffer int `yaml:"send_buffer"`
}

// DatabaseConfig configures the SQLite result store.
type DatabaseConfig struct {
	Path    string        `yaml:"path"`
	Timeout time.Duration `yaml:"timeout"`
}

// AnalyzerConfig selects and tunes the signal analyzer.
type AnalyzerConfig struct {
	// Mode is "simulated" or "passthrough".
	Mode string `yaml:"mode"`

	// Seed makes the simulated analyzer reproducible when non-zero.
	Seed int64 `yaml:"seed"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			PongWait:     60 * time.Second,
			WriteTimeout: 10 * time.Second,
			SendBuffer:   100,
		},
		Database: DatabaseConfig{
			Path:    "./lectern.db",
			Timeout: 30 * time.Second,
		},
		Analyzer: AnalyzerConfig{
			Mode: analyzer.ModeSimulated,
		},
	}
}

// Load reads a config file and merges it over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port must be in 1-65535, got %d", c.HTTP.Port)
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}

	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("websocket ping interval must be positive")
	}
	if c.WebSocket.PongWait <= c.WebSocket.PingInterval {
		return fmt.Errorf("websocket pong wait must exceed ping interval")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("websocket write timeout must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer must be positive")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.Timeout <= 0 {
		return fmt.Errorf("database timeout must be positive")
	}

	switch c.Analyzer.Mode {
	case analyzer.ModeSimulated, analyzer.ModePassthrough:
	default:
		return fmt.Errorf("unknown analyzer mode %q", c.Analyzer.Mode)
	}

	return nil
}
