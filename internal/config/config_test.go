package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"taskpool/internal/worker"
)

func TestLoadFileYAML(t *testing.T) {
	content := `
pool:
  size: 8
  panic_policy: retire
server:
  addr: 127.0.0.1:8080
  max_connections: 20
  sleep_delay: 1s
admin:
  enabled: false
log:
  level: debug
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	cfg, err := LoadFile(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Pool.Size != 8 {
		t.Errorf("expected pool size 8, got %d", cfg.Pool.Size)
	}
	if cfg.Pool.PanicPolicy != "retire" {
		t.Errorf("expected panic policy 'retire', got '%s'", cfg.Pool.PanicPolicy)
	}
	if cfg.Server.Addr != "127.0.0.1:8080" {
		t.Errorf("expected addr '127.0.0.1:8080', got '%s'", cfg.Server.Addr)
	}
	if cfg.Admin.Enabled {
		t.Error("expected admin to be disabled")
	}
	// Unset fields keep their defaults
	if cfg.Server.ReadTimeout != "10s" {
		t.Errorf("expected default read timeout '10s', got '%s'", cfg.Server.ReadTimeout)
	}
	if cfg.Log.MaxBackups != 3 {
		t.Errorf("expected default max backups 3, got %d", cfg.Log.MaxBackups)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "pool": {"size": 2},
  "server": {"max_connections": 0, "reuse_port": true},
  "log": {"level": "warn", "file": "pool.log"}
}`
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	cfg, err := LoadFile(tmpFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Pool.Size != 2 {
		t.Errorf("expected pool size 2, got %d", cfg.Pool.Size)
	}
	if cfg.Server.MaxConnections != 0 {
		t.Errorf("expected unlimited connections, got %d", cfg.Server.MaxConnections)
	}
	if !cfg.Server.ReusePort {
		t.Error("expected reuse_port to be enabled")
	}
	if cfg.Log.File != "pool.log" {
		t.Errorf("expected log file 'pool.log', got '%s'", cfg.Log.File)
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(tmpFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	_, err := LoadFile(tmpFile)
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestToPoolConfig(t *testing.T) {
	cfg := Default()
	cfg.Pool.Size = 3
	cfg.Pool.PanicPolicy = "RETIRE"

	poolCfg, err := cfg.ToPoolConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if poolCfg.Size != 3 {
		t.Errorf("expected size 3, got %d", poolCfg.Size)
	}
	if poolCfg.PanicPolicy != worker.PanicRetire {
		t.Errorf("expected retire policy, got %s", poolCfg.PanicPolicy)
	}
}

func TestToPoolConfigZeroSize(t *testing.T) {
	cfg := Default()
	cfg.Pool.Size = 0

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero pool size")
	}

	poolCfg, err := cfg.ToPoolConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if poolCfg.Size != 0 {
		t.Errorf("expected size 0 to be kept, got %d", poolCfg.Size)
	}
	if _, err := worker.NewPoolWithConfig(poolCfg); !errors.Is(err, worker.ErrInvalidSize) {
		t.Errorf("expected ErrInvalidSize, got %v", err)
	}
}

func TestLoadFileZeroSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.yaml")
	if err := os.WriteFile(path, []byte("pool:\n  size: 0\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Pool.Size != 0 {
		t.Fatalf("expected explicit size 0, got %d", cfg.Pool.Size)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for explicit size 0")
	}
}

func TestToServerConfig(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.Server.SleepDelay = "250ms"
	cfg.Server.ReadTimeout = "2s"
	cfg.Server.MaxConnections = 4

	srvCfg, err := cfg.ToServerConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if srvCfg.Addr != "127.0.0.1:0" {
		t.Errorf("expected addr '127.0.0.1:0', got '%s'", srvCfg.Addr)
	}
	if srvCfg.SleepDelay != 250*time.Millisecond {
		t.Errorf("expected sleep delay 250ms, got %v", srvCfg.SleepDelay)
	}
	if srvCfg.ReadTimeout != 2*time.Second {
		t.Errorf("expected read timeout 2s, got %v", srvCfg.ReadTimeout)
	}
	if srvCfg.MaxConnections != 4 {
		t.Errorf("expected 4 connections, got %d", srvCfg.MaxConnections)
	}
}

func TestToServerConfigInvalidDuration(t *testing.T) {
	cfg := Default()
	cfg.Server.SleepDelay = "invalid"

	if _, err := cfg.ToServerConfig(); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestToLogConfig(t *testing.T) {
	cfg := Default()
	cfg.Log.File = "/tmp/pool.log"
	cfg.Log.Compress = true

	logCfg := cfg.ToLogConfig()
	if logCfg.File != "/tmp/pool.log" || !logCfg.Compress {
		t.Errorf("unexpected log config: %+v", logCfg)
	}
	if logCfg.Level != "info" {
		t.Errorf("expected level 'info', got '%s'", logCfg.Level)
	}
}

func TestStatsInterval(t *testing.T) {
	tests := []struct {
		value   string
		want    time.Duration
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"30s", 30 * time.Second, false},
		{"-1s", 0, true},
		{"often", 0, true},
	}

	for _, tt := range tests {
		cfg := Default()
		cfg.Log.StatsInterval = tt.value
		got, err := cfg.StatsInterval()
		if (err != nil) != tt.wantErr {
			t.Errorf("StatsInterval(%q): unexpected error %v", tt.value, err)
			continue
		}
		if got != tt.want {
			t.Errorf("StatsInterval(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		modify   func(*FileConfig)
		hasError bool
	}{
		{
			name:     "default config",
			modify:   func(*FileConfig) {},
			hasError: false,
		},
		{
			name:     "zero pool size",
			modify:   func(c *FileConfig) { c.Pool.Size = 0 },
			hasError: true,
		},
		{
			name:     "negative pool size",
			modify:   func(c *FileConfig) { c.Pool.Size = -1 },
			hasError: true,
		},
		{
			name:     "unknown panic policy",
			modify:   func(c *FileConfig) { c.Pool.PanicPolicy = "ignore" },
			hasError: true,
		},
		{
			name:     "negative max connections",
			modify:   func(c *FileConfig) { c.Server.MaxConnections = -1 },
			hasError: true,
		},
		{
			name:     "invalid read timeout",
			modify:   func(c *FileConfig) { c.Server.ReadTimeout = "soon" },
			hasError: true,
		},
		{
			name:     "admin without addr",
			modify:   func(c *FileConfig) { c.Admin.Addr = "" },
			hasError: true,
		},
		{
			name:     "disabled admin without addr",
			modify:   func(c *FileConfig) { c.Admin.Enabled = false; c.Admin.Addr = "" },
			hasError: false,
		},
		{
			name:     "unknown log level",
			modify:   func(c *FileConfig) { c.Log.Level = "verbose" },
			hasError: true,
		},
		{
			name:     "invalid stats interval",
			modify:   func(c *FileConfig) { c.Log.StatsInterval = "-5s" },
			hasError: true,
		},
		{
			name:     "negative log backups",
			modify:   func(c *FileConfig) { c.Log.MaxBackups = -1 },
			hasError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.hasError && err == nil {
				t.Error("expected validation error")
			}
			if !tt.hasError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *FileConfig, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(cfg *FileConfig) {
			changes <- cfg
		})
	}()

	// Give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite file: %v", err)
	}

	select {
	case cfg := <-changes:
		if cfg.Log.Level != "debug" {
			t.Errorf("expected level 'debug', got '%s'", cfg.Log.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatchIgnoresInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("pool:\n  size: 1\n"), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *FileConfig, 4)
	go func() {
		_ = Watch(ctx, path, 20*time.Millisecond, func(cfg *FileConfig) {
			changes <- cfg
		})
	}()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte("pool:\n  size: -5\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite file: %v", err)
	}

	select {
	case cfg := <-changes:
		t.Errorf("expected invalid config to be ignored, got %+v", cfg.Pool)
	case <-time.After(300 * time.Millisecond):
	}
}
