package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.HTTP.Port)
	}
	if cfg.Analyzer.Mode != "simulated" {
		t.Errorf("default analyzer mode = %q, want simulated", cfg.Analyzer.Mode)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
http:
  port: 9090
analyzer:
  mode: passthrough
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Analyzer.Mode != "passthrough" {
		t.Errorf("analyzer mode = %q, want passthrough", cfg.Analyzer.Mode)
	}
	// Untouched settings keep their defaults.
	if cfg.WebSocket.PingInterval != 30*time.Second {
		t.Errorf("ping interval = %v, want default 30s", cfg.WebSocket.PingInterval)
	}
	if cfg.Database.Path != "./lectern.db" {
		t.Errorf("database path = %q, want default", cfg.Database.Path)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("loading a missing file should fail")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("http: [not a mapping"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("loading invalid YAML should fail")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.HTTP.Port = 0 }},
		{"huge port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"negative read timeout", func(c *Config) { c.HTTP.ReadTimeout = -1 }},
		{"pong wait below ping interval", func(c *Config) { c.WebSocket.PongWait = c.WebSocket.PingInterval / 2 }},
		{"zero send buffer", func(c *Config) { c.WebSocket.SendBuffer = 0 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"unknown analyzer mode", func(c *Config) { c.Analyzer.Mode = "quantum" }},
	}

	for _, c := range cases {
		cfg := DefaultConfig()
		c.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", c.name)
		}
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 8080\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Watch(ctx, path, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Give the watcher a moment to register before rewriting.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("http:\n  port: 9191\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.HTTP.Port != 9191 {
			t.Errorf("reloaded port = %d, want 9191", cfg.HTTP.Port)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop on context cancel")
	}
}

func TestWatchInvalidReloadKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 8080\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan *Config, 4)
	go func() {
		_ = Watch(ctx, path, func(cfg *Config) { calls <- cfg })
	}()

	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("http:\n  port: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-calls:
		t.Errorf("invalid config must not trigger onChange, got %+v", cfg)
	case <-time.After(500 * time.Millisecond):
	}
}
