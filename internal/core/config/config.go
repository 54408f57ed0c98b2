// Package config holds the application configuration of the hive tools:
// where component templates live, logging, naming and build defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete hive configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" json:"log"`
	Registry RegistryConfig `yaml:"registry" json:"registry"`
	Naming   NamingConfig   `yaml:"naming" json:"naming"`
	Build    BuildConfig    `yaml:"build" json:"build"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error, fatal, silent.
	Level string `yaml:"level" json:"level"`
	// Development switches to the console encoder.
	Development bool `yaml:"development" json:"development"`
}

// RegistryConfig configures template discovery.
type RegistryConfig struct {
	// Paths are searched recursively for *.definition.yaml|json and
	// *.naming.yaml files. Relative paths resolve against the config file.
	Paths []string `yaml:"paths,omitempty" json:"paths,omitempty"`
	// Watch reloads the registry when files under Paths change.
	Watch    bool          `yaml:"watch" json:"watch"`
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
}

type NamingConfig struct {
	// Preset is the naming preset new rigs use.
	Preset string `yaml:"preset" json:"preset"`
}

// BuildConfig holds the defaults of new rig configurations.
type BuildConfig struct {
	// Scripts are build script ids attached to every new rig.
	Scripts                []string `yaml:"scripts,omitempty" json:"scripts,omitempty"`
	BlackBox               bool     `yaml:"blackBox" json:"blackBox"`
	DeleteStaticGuideNodes bool     `yaml:"deleteStaticGuideNodes" json:"deleteStaticGuideNodes"`
	AutoAlignGuides        *bool    `yaml:"autoAlignGuides,omitempty" json:"autoAlignGuides,omitempty"`
}

type MetricsConfig struct {
	// Enabled records build stage metrics in the prometheus default registry.
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	autoAlign := true
	return &Config{
		Log:      LogConfig{Level: "info"},
		Registry: RegistryConfig{Debounce: 200 * time.Millisecond},
		Naming:   NamingConfig{Preset: "default"},
		Build:    BuildConfig{AutoAlignGuides: &autoAlign},
	}
}

var logLevels = []string{"debug", "info", "warn", "warning", "error", "fatal", "silent", "off"}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level))
	}
	if c.Naming.Preset == "" {
		errs = append(errs, fmt.Errorf("%w: naming.preset is required", ErrInvalidConfig))
	}
	if c.Registry.Debounce < 0 {
		errs = append(errs, fmt.Errorf("%w: registry.debounce must not be negative", ErrInvalidConfig))
	}
	for i, p := range c.Registry.Paths {
		if p == "" {
			errs = append(errs, fmt.Errorf("%w: registry.paths[%d] is empty", ErrInvalidConfig, i))
		}
	}
	return errors.Join(errs...)
}

// LoadFromFile reads a YAML config. Relative registry paths are made absolute
// against the directory of path.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, path, err)
	}
	base := filepath.Dir(path)
	for i, p := range cfg.Registry.Paths {
		if p != "" && !filepath.IsAbs(p) {
			cfg.Registry.Paths[i] = filepath.Join(base, p)
		}
	}
	return &cfg, nil
}

// SaveToFile writes the config as YAML, creating the directory if needed.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Merge overlays the non-zero values of other. Registry paths and build
// scripts accumulate.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Development {
		c.Log.Development = true
	}

	for _, p := range other.Registry.Paths {
		if !slices.Contains(c.Registry.Paths, p) {
			c.Registry.Paths = append(c.Registry.Paths, p)
		}
	}
	if other.Registry.Watch {
		c.Registry.Watch = true
	}
	if other.Registry.Debounce != 0 {
		c.Registry.Debounce = other.Registry.Debounce
	}

	if other.Naming.Preset != "" {
		c.Naming.Preset = other.Naming.Preset
	}

	for _, s := range other.Build.Scripts {
		if !slices.Contains(c.Build.Scripts, s) {
			c.Build.Scripts = append(c.Build.Scripts, s)
		}
	}
	if other.Build.BlackBox {
		c.Build.BlackBox = true
	}
	if other.Build.DeleteStaticGuideNodes {
		c.Build.DeleteStaticGuideNodes = true
	}
	if other.Build.AutoAlignGuides != nil {
		v := *other.Build.AutoAlignGuides
		c.Build.AutoAlignGuides = &v
	}

	if other.Metrics.Enabled {
		c.Metrics.Enabled = true
	}
}
