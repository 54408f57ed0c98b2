package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeusync/hive/internal/core/observability/log"
)

const (
	// ProjectConfigFile is looked up in the working directory and its parents.
	ProjectConfigFile = "hive.yaml"
	UserConfigDir     = ".config/hive"
	UserConfigFile    = "config.yaml"
)

// Loader loads configuration with layered precedence:
//  1. defaults
//  2. user config (~/.config/hive/config.yaml)
//  3. project config (hive.yaml in the working directory or a parent)
//  4. an explicit file, when one is given
type Loader struct {
	logger log.Log

	// WorkDir is where the project lookup starts. Empty means os.Getwd.
	WorkDir string
	// HomeDir holds the user config. Empty means os.UserHomeDir.
	HomeDir string
}

func NewLoader(logger log.Log) *Loader {
	return &Loader{logger: logger}
}

// Load returns the merged and validated configuration. explicit may be "".
func (l *Loader) Load(explicit string) (*Config, error) {
	cfg := DefaultConfig()

	if path := l.userConfigPath(); path != "" {
		if user, err := LoadFromFile(path); err == nil {
			l.logger.Debug("loaded user config", log.String("path", path))
			cfg.Merge(user)
		} else if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("failed to load user config", log.String("path", path), log.Error(err))
		}
	}

	if path := l.findProjectConfig(); path != "" {
		project, err := LoadFromFile(path)
		if err != nil {
			l.logger.Warn("failed to load project config", log.String("path", path), log.Error(err))
		} else {
			l.logger.Debug("loaded project config", log.String("path", path))
			cfg.Merge(project)
		}
	} else {
		l.logger.Debug("no project config found")
	}

	if explicit != "" {
		file, err := LoadFromFile(explicit)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("loaded config", log.String("path", explicit))
		cfg.Merge(file)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) userConfigPath() string {
	home := l.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig walks up from the working directory looking for hive.yaml.
func (l *Loader) findProjectConfig() string {
	dir := l.WorkDir
	if dir == "" {
		var err error
		if dir, err = os.Getwd(); err != nil {
			return ""
		}
	}
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
