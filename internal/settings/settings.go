// Package settings holds the runtime-tunable queue configuration. The file is
// re-read on demand so operators can change the global concurrency budget
// without restarting.
package settings

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Defaults applied when the config file is absent or a key is unset.
const (
	DefaultConcurrency        = 3
	DefaultProcessingInterval = 2 * time.Second
)

// Config is one immutable snapshot of the queue settings.
type Config struct {
	Concurrency        int           `mapstructure:"concurrency"`
	ProcessingInterval time.Duration `mapstructure:"processing_interval"`
}

// Server/infra blocks read once at startup (not reloadable).
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// File is the full parsed configuration file.
type File struct {
	Queue   Config        `mapstructure:"queue"`
	Server  ServerConfig  `mapstructure:"server"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// Settings is a reloadable view over the config file. Current() is safe to
// call from any goroutine; Reload() swaps the snapshot atomically.
type Settings struct {
	path   string
	static bool

	mu   sync.RWMutex
	file File
}

// Load parses the config file at path. An empty path yields pure defaults.
func Load(path string) (*Settings, error) {
	s := &Settings{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the config file and swaps in the new snapshot. Used by the
// queue manager's reload operation.
func (s *Settings) Reload() error {
	if s.static {
		return nil
	}
	v := viper.New()
	v.SetDefault("queue.concurrency", DefaultConcurrency)
	v.SetDefault("queue.processing_interval", DefaultProcessingInterval)
	v.SetDefault("server.addr", ":8990")

	if s.path != "" {
		v.SetConfigFile(s.path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %q: %w", s.path, err)
		}
	}

	var file File
	if err := v.Unmarshal(&file); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if file.Queue.Concurrency < 1 {
		file.Queue.Concurrency = DefaultConcurrency
	}
	if file.Queue.ProcessingInterval <= 0 {
		file.Queue.ProcessingInterval = DefaultProcessingInterval
	}

	s.mu.Lock()
	s.file = file
	s.mu.Unlock()
	return nil
}

// Queue returns the current queue settings snapshot.
func (s *Settings) Queue() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file.Queue
}

// All returns the full current configuration.
func (s *Settings) All() File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.file
}

// Static builds a Settings that always returns cfg. Reload is a no-op.
// Useful for tests and embedders that manage configuration themselves.
func Static(cfg Config) *Settings {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.ProcessingInterval <= 0 {
		cfg.ProcessingInterval = DefaultProcessingInterval
	}
	return &Settings{static: true, file: File{Queue: cfg}}
}
