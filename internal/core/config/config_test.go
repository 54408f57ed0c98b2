package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/hive/internal/core/observability/log"
)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "default", cfg.Naming.Preset)
	require.NotNil(t, cfg.Build.AutoAlignGuides)
	assert.True(t, *cfg.Build.AutoAlignGuides)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(*Config) {}},
		{name: "unknown log level", modify: func(c *Config) { c.Log.Level = "loud" }, wantErr: true},
		{name: "missing preset", modify: func(c *Config) { c.Naming.Preset = "" }, wantErr: true},
		{name: "negative debounce", modify: func(c *Config) { c.Registry.Debounce = -time.Second }, wantErr: true},
		{name: "empty registry path", modify: func(c *Config) { c.Registry.Paths = []string{""} }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMerge(t *testing.T) {
	off := false
	cfg := DefaultConfig()
	cfg.Registry.Paths = []string{"/a"}
	cfg.Merge(&Config{
		Log:      LogConfig{Level: "debug"},
		Registry: RegistryConfig{Paths: []string{"/a", "/b"}, Watch: true},
		Build:    BuildConfig{Scripts: []string{"publish"}, AutoAlignGuides: &off},
	})
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Registry.Paths)
	assert.True(t, cfg.Registry.Watch)
	assert.Equal(t, 200*time.Millisecond, cfg.Registry.Debounce)
	assert.Equal(t, "default", cfg.Naming.Preset)
	assert.Equal(t, []string{"publish"}, cfg.Build.Scripts)
	assert.False(t, *cfg.Build.AutoAlignGuides)

	cfg.Merge(nil)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoaderLayers(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	work := filepath.Join(project, "rigs", "body")
	require.NoError(t, os.MkdirAll(work, 0o755))

	write(t, filepath.Join(home, UserConfigDir, UserConfigFile), "log:\n  level: warn\nnaming:\n  preset: studio\n")
	write(t, filepath.Join(project, ProjectConfigFile), "registry:\n  paths: [templates]\nnaming:\n  preset: show\n")

	l := NewLoader(log.Nop())
	l.HomeDir, l.WorkDir = home, work
	cfg, err := l.Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "show", cfg.Naming.Preset)
	assert.Equal(t, []string{filepath.Join(project, "templates")}, cfg.Registry.Paths)

	explicit := filepath.Join(t.TempDir(), "override.yaml")
	write(t, explicit, "log:\n  level: debug\nmetrics:\n  enabled: true\n")
	cfg, err = l.Load(explicit)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoaderRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(log.Nop())
	l.HomeDir, l.WorkDir = dir, dir

	_, err := l.Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	write(t, bad, "log:\n  level: loud\n")
	_, err = l.Load(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	broken := filepath.Join(dir, "broken.yaml")
	write(t, broken, "log: [")
	_, err = l.Load(broken)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hive.yaml")
	cfg := DefaultConfig()
	cfg.Registry.Paths = []string{"/templates"}
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
