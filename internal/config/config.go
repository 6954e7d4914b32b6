package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cachekit/internal/artifacts"
	"cachekit/internal/common"
)

// DefaultRoot returns the default cache root directory.
// Uses CACHEKIT_ROOT env var if set, otherwise ~/.cachekit.
// Computed dynamically to support test isolation.
func DefaultRoot() string {
	if dir := os.Getenv("CACHEKIT_ROOT"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cachekit")
}

// Config holds engine tunables, loaded from {root}/cachekit.yaml.
type Config struct {
	RetentionDays         int    `yaml:"retention_days"`          // default: 7
	StaleHours            int    `yaml:"stale_hours"`             // default: 24
	PruneThresholdMB      int64  `yaml:"prune_threshold_mb"`      // default: 500
	MinKeep               int    `yaml:"min_keep"`                // default: 10
	DetectIntervalSeconds int    `yaml:"detect_interval_seconds"` // default: 300
	TempMaxAgeHours       int    `yaml:"temp_max_age_hours"`      // default: 24
	Logging               string `yaml:"logging"`                 // logging level: none, error, warn, info, debug, trace
}

// ApplyDefaults fills zero-value fields with their defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 7
	}
	if cfg.StaleHours == 0 {
		cfg.StaleHours = 24
	}
	if cfg.PruneThresholdMB == 0 {
		cfg.PruneThresholdMB = 500
	}
	if cfg.MinKeep == 0 {
		cfg.MinKeep = 10
	}
	if cfg.DetectIntervalSeconds == 0 {
		cfg.DetectIntervalSeconds = 300
	}
	if cfg.TempMaxAgeHours == 0 {
		cfg.TempMaxAgeHours = 24
	}
}

// RetentionAge returns the retention window as a duration.
func (cfg *Config) RetentionAge() time.Duration {
	return time.Duration(cfg.RetentionDays) * 24 * time.Hour
}

// StaleThreshold returns the staleness threshold as a duration.
func (cfg *Config) StaleThreshold() time.Duration {
	return time.Duration(cfg.StaleHours) * time.Hour
}

// PruneThresholdBytes returns the prune threshold in bytes.
func (cfg *Config) PruneThresholdBytes() int64 {
	return cfg.PruneThresholdMB * 1024 * 1024
}

// DetectInterval returns the change-detection interval as a duration.
func (cfg *Config) DetectInterval() time.Duration {
	return time.Duration(cfg.DetectIntervalSeconds) * time.Second
}

// TempMaxAge returns the scratch-file retention window as a duration.
func (cfg *Config) TempMaxAge() time.Duration {
	return time.Duration(cfg.TempMaxAgeHours) * time.Hour
}

// LoggingEnabled returns whether logging is enabled (any level other than
// "none" or empty).
func (cfg *Config) LoggingEnabled() bool {
	level := strings.ToLower(cfg.Logging)
	return level != "" && level != "none"
}

// LogLevel returns the normalized (lowercase) logging level.
func (cfg *Config) LogLevel() string {
	return strings.ToLower(cfg.Logging)
}

// Default returns a Config populated with the embedded defaults.
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(artifacts.DefaultConfig, &cfg); err != nil {
		panic("failed to parse embedded default config: " + err.Error())
	}
	cfg.ApplyDefaults()
	return &cfg
}

// Load reads {root}/cachekit.yaml. Falls back to the embedded defaults if
// the file does not exist.
func Load(root string) (*Config, error) {
	return LoadFromPath(filepath.Join(root, common.ConfigFileName))
}

// LoadFromPath reads the config from a specific file path.
// Falls back to the embedded defaults if the file does not exist.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
