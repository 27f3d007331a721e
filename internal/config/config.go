package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"threadpool/internal/logger"
	"threadpool/internal/worker"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// FileConfig is the on-disk configuration.
type FileConfig struct {
	Pool   PoolConfig   `yaml:"pool" json:"pool"`
	Demo   DemoConfig   `yaml:"demo" json:"demo"`
	Log    LogConfig    `yaml:"log" json:"log"`
	Server ServerConfig `yaml:"server" json:"server"`
}

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	Name    string `yaml:"name" json:"name"`
	Workers int    `yaml:"workers" json:"workers"`
}

// DemoConfig drives the demo submitter.
type DemoConfig struct {
	Tasks      int `yaml:"tasks" json:"tasks"`
	Submitters int `yaml:"submitters" json:"submitters"`
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// ServerConfig enables the status API when Addr is set.
type ServerConfig struct {
	Addr            string `yaml:"addr" json:"addr"`
	ShutdownTimeout string `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *FileConfig {
	return &FileConfig{
		Pool: PoolConfig{
			Name:    "demo",
			Workers: 5,
		},
		Demo: DemoConfig{
			Tasks:      100,
			Submitters: 1,
		},
		Log: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			ShutdownTimeout: "5s",
		},
	}
}

// LoadFile reads a YAML or JSON file on top of Default.
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

// Validate checks every field.
func (f *FileConfig) Validate() error {
	if f.Pool.Workers < 1 {
		return fmt.Errorf("%w: pool.workers must be at least 1, got %d", ErrInvalid, f.Pool.Workers)
	}
	if f.Demo.Tasks < 0 {
		return fmt.Errorf("%w: demo.tasks must be non-negative", ErrInvalid)
	}
	if f.Demo.Submitters < 1 {
		return fmt.Errorf("%w: demo.submitters must be at least 1", ErrInvalid)
	}
	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := f.ShutdownTimeout(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// ToPoolConfig converts the pool section. Logger, metrics and events are
// left for the caller to attach.
func (f *FileConfig) ToPoolConfig() worker.PoolConfig {
	config := worker.DefaultPoolConfig()
	config.Name = f.Pool.Name
	config.NumWorkers = f.Pool.Workers
	return config
}

// LogLevel parses the log section.
func (f *FileConfig) LogLevel() (logger.Level, error) {
	return logger.ParseLevel(f.Log.Level)
}

// ShutdownTimeout parses server.shutdown_timeout; empty means 5s.
func (f *FileConfig) ShutdownTimeout() (time.Duration, error) {
	if f.Server.ShutdownTimeout == "" {
		return 5 * time.Second, nil
	}
	d, err := time.ParseDuration(f.Server.ShutdownTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid server.shutdown_timeout: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("server.shutdown_timeout must be positive")
	}
	return d, nil
}
