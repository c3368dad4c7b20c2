// Package config defines the Arbor configuration, loaded through viper from
// a YAML file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Arbor configuration
type Config struct {
	Tree    TreeConfig    `mapstructure:"tree"`
	Worker  WorkerConfig  `mapstructure:"worker"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TreeConfig controls the shape and bounds of the worker tree
type TreeConfig struct {
	// MaxDepth is the default depth of the tree when no --depth flag is given
	MaxDepth int `mapstructure:"max_depth"`
	// MaxNodes caps live nodes in the store; 0 means unbounded
	MaxNodes int `mapstructure:"max_nodes"`
}

// WorkerConfig controls worker scheduling and teardown behavior
type WorkerConfig struct {
	// MaxWorkers caps concurrently running workers; 0 means unlimited
	MaxWorkers int `mapstructure:"max_workers"`
	// JoinTimeoutMs bounds how long teardown waits for one worker to exit
	JoinTimeoutMs int `mapstructure:"join_timeout_ms"`
	// IdleIntervalMs is the heartbeat period of the worker idle loop
	IdleIntervalMs int `mapstructure:"idle_interval_ms"`
}

// LoggingConfig controls structured debug logging
type LoggingConfig struct {
	// Level is the minimum level written: DEBUG, INFO, WARN, or ERROR
	Level string `mapstructure:"level"`
	// Dir is the directory for the JSON log file; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// JoinTimeout returns the join timeout as a time.Duration
func (c *WorkerConfig) JoinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutMs) * time.Millisecond
}

// IdleInterval returns the idle heartbeat period as a time.Duration
func (c *WorkerConfig) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalMs) * time.Millisecond
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Tree: TreeConfig{
			MaxDepth: 2,
			MaxNodes: 0, // unbounded
		},
		Worker: WorkerConfig{
			MaxWorkers:     0, // unlimited
			JoinTimeoutMs:  5000,
			IdleIntervalMs: 100,
		},
		Logging: LoggingConfig{
			Level: "INFO",
			Dir:   "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Tree defaults
	viper.SetDefault("tree.max_depth", defaults.Tree.MaxDepth)
	viper.SetDefault("tree.max_nodes", defaults.Tree.MaxNodes)

	// Worker defaults
	viper.SetDefault("worker.max_workers", defaults.Worker.MaxWorkers)
	viper.SetDefault("worker.join_timeout_ms", defaults.Worker.JoinTimeoutMs)
	viper.SetDefault("worker.idle_interval_ms", defaults.Worker.IdleIntervalMs)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Validate checks the configuration for out-of-range values
func (c *Config) Validate() []error {
	var errs []error
	if c.Tree.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("tree.max_depth must be >= 0, got %d", c.Tree.MaxDepth))
	}
	if c.Tree.MaxNodes < 0 {
		errs = append(errs, fmt.Errorf("tree.max_nodes must be >= 0, got %d", c.Tree.MaxNodes))
	}
	if c.Worker.MaxWorkers < 0 {
		errs = append(errs, fmt.Errorf("worker.max_workers must be >= 0, got %d", c.Worker.MaxWorkers))
	}
	if c.Worker.JoinTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("worker.join_timeout_ms must be > 0, got %d", c.Worker.JoinTimeoutMs))
	}
	if c.Worker.IdleIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("worker.idle_interval_ms must be > 0, got %d", c.Worker.IdleIntervalMs))
	}
	return errs
}

// Load reads the configuration from viper into a Config struct
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", joinErrors(errs))
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := errs[0].Error()
	for _, err := range errs[1:] {
		msg += "; " + err.Error()
	}
	return fmt.Errorf("%s", msg)
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "arbor")
	}
	// Fall back to ~/.config/arbor
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arbor"
	}
	return filepath.Join(home, ".config", "arbor")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
