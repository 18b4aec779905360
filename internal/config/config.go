package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"taskpool/internal/logger"
	"taskpool/internal/server"
	"taskpool/internal/worker"

	"gopkg.in/yaml.v3"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Pool   PoolConfig   `yaml:"pool" json:"pool"`
	Server ServerConfig `yaml:"server" json:"server"`
	Admin  AdminConfig  `yaml:"admin" json:"admin"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// PoolConfig はプール設定
type PoolConfig struct {
	Size        int    `yaml:"size" json:"size"`
	PanicPolicy string `yaml:"panic_policy" json:"panic_policy"`
}

// ServerConfig は接続受付の設定
type ServerConfig struct {
	Addr           string `yaml:"addr" json:"addr"`
	DocRoot        string `yaml:"doc_root" json:"doc_root"`
	MaxConnections int    `yaml:"max_connections" json:"max_connections"`
	SleepDelay     string `yaml:"sleep_delay" json:"sleep_delay"`
	ReadTimeout    string `yaml:"read_timeout" json:"read_timeout"`
	ReusePort      bool   `yaml:"reuse_port" json:"reuse_port"`
}

// AdminConfig は管理 API の設定
type AdminConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
	Compress   bool   `yaml:"compress" json:"compress"`

	// StatsInterval はジョブ統計をログに出す間隔（"0" で無効）
	StatsInterval string `yaml:"stats_interval" json:"stats_interval"`
}

// Default はデフォルト設定を返す
func Default() *FileConfig {
	srv := server.DefaultConfig()
	return &FileConfig{
		Pool: PoolConfig{
			Size:        4,
			PanicPolicy: worker.PanicRecover.String(),
		},
		Server: ServerConfig{
			Addr:           srv.Addr,
			MaxConnections: srv.MaxConnections,
			SleepDelay:     srv.SleepDelay.String(),
			ReadTimeout:    srv.ReadTimeout.String(),
		},
		Admin: AdminConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9090",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,

			StatsInterval: "30s",
		},
	}
}

// LoadFile は設定ファイルを読み込む
// ファイルにない項目はデフォルト値のまま残る
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return config, nil
}

// ToPoolConfig は worker.PoolConfig に変換する
func (f *FileConfig) ToPoolConfig() (worker.PoolConfig, error) {
	config := worker.DefaultPoolConfig()
	config.Size = f.Pool.Size

	policy, err := parsePanicPolicy(f.Pool.PanicPolicy)
	if err != nil {
		return config, err
	}
	config.PanicPolicy = policy

	return config, nil
}

// ToServerConfig は server.Config に変換する
func (f *FileConfig) ToServerConfig() (server.Config, error) {
	sc := f.Server
	config := server.DefaultConfig()

	if sc.Addr != "" {
		config.Addr = sc.Addr
	}
	config.DocRoot = sc.DocRoot
	config.MaxConnections = sc.MaxConnections
	config.ReusePort = sc.ReusePort

	if sc.SleepDelay != "" {
		d, err := time.ParseDuration(sc.SleepDelay)
		if err != nil {
			return config, fmt.Errorf("invalid sleep_delay: %w", err)
		}
		config.SleepDelay = d
	}
	if sc.ReadTimeout != "" {
		d, err := time.ParseDuration(sc.ReadTimeout)
		if err != nil {
			return config, fmt.Errorf("invalid read_timeout: %w", err)
		}
		config.ReadTimeout = d
	}

	return config, nil
}

// ToLogConfig は logger.Config に変換する
func (f *FileConfig) ToLogConfig() logger.Config {
	return logger.Config{
		Level:      f.Log.Level,
		File:       f.Log.File,
		MaxSizeMB:  f.Log.MaxSizeMB,
		MaxBackups: f.Log.MaxBackups,
		MaxAgeDays: f.Log.MaxAgeDays,
		Compress:   f.Log.Compress,
	}
}

// StatsInterval は統計ログの間隔を返す（0 なら出力しない）
func (f *FileConfig) StatsInterval() (time.Duration, error) {
	if f.Log.StatsInterval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(f.Log.StatsInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid stats_interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("stats_interval must be non-negative: got %v", d)
	}
	return d, nil
}

// parsePanicPolicy は文字列の panic ポリシーをパースする
func parsePanicPolicy(s string) (worker.PanicPolicy, error) {
	switch strings.ToLower(s) {
	case "", "recover":
		return worker.PanicRecover, nil
	case "retire":
		return worker.PanicRetire, nil
	default:
		return worker.PanicRecover, fmt.Errorf("unknown panic policy: %s", s)
	}
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if f.Pool.Size <= 0 {
		return fmt.Errorf("pool.size must be positive: got %d", f.Pool.Size)
	}
	if _, err := parsePanicPolicy(f.Pool.PanicPolicy); err != nil {
		return fmt.Errorf("pool.panic_policy: %w", err)
	}

	if f.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must be non-negative")
	}
	if _, err := f.ToServerConfig(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if f.Admin.Enabled && f.Admin.Addr == "" {
		return fmt.Errorf("admin.addr is required when admin is enabled")
	}

	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if f.Log.MaxSizeMB < 0 || f.Log.MaxBackups < 0 || f.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation settings must be non-negative")
	}
	if _, err := f.StatsInterval(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	return nil
}
