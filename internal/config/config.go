package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grape-pipeline/grape/internal/dataset"
	"github.com/grape-pipeline/grape/internal/index"
	"gopkg.in/yaml.v3"
)

// Environment keys that override the config file.
const (
	EnvIndex       = "GRAPE_INDEX"
	EnvLogLevel    = "GRAPE_LOG_LEVEL"
	EnvLockTimeout = "GRAPE_LOCK_TIMEOUT"
)

// Config is the in-memory representation of <project>/.grape/grape.yaml.
type Config struct {
	// Index is the index file. Relative paths are resolved against the
	// project directory.
	Index       string            `yaml:"index"`
	Type        index.Type        `yaml:"type"`
	LockTimeout time.Duration     `yaml:"lock_timeout,omitempty"`
	LogLevel    string            `yaml:"log_level,omitempty"`
	LogFile     string            `yaml:"log_file,omitempty"`
	ReadType    string            `yaml:"read_type,omitempty"`
	FileInfo    []string          `yaml:"file_info,omitempty"`
	Views       map[string]string `yaml:"views,omitempty"`

	project string
}

// GrapeDir returns <project>/.grape.
func GrapeDir(project string) string {
	return filepath.Join(project, ".grape")
}

// ConfigPath returns <project>/.grape/grape.yaml.
func ConfigPath(project string) string {
	return filepath.Join(GrapeDir(project), "grape.yaml")
}

// ProjectDir returns the absolute project directory; empty means the
// working directory.
func ProjectDir(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	dir, err := ExpandPath(dir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve project directory %s: %w", dir, err)
	}
	return abs, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}

// DefaultConfig returns the config written by grape init.
func DefaultConfig(project string) *Config {
	return &Config{
		Index:       "index.txt",
		Type:        index.Data,
		LockTimeout: index.DefaultLockTimeout,
		LogLevel:    "info",
		ReadType:    "fastq",
		FileInfo:    append([]string(nil), dataset.DefaultFileInfo...),
		project:     project,
	}
}

// Load reads <project>/.grape/grape.yaml over the defaults and applies the
// environment overrides. A missing config file is not an error.
func Load(project string) (*Config, error) {
	cfg := DefaultConfig(project)
	path := ConfigPath(project)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("cannot read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("invalid YAML in %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, err := GetConfigValue(c.project, EnvIndex); err != nil {
		return err
	} else if v != "" {
		c.Index = v
	}
	if v, err := GetConfigValue(c.project, EnvLogLevel); err != nil {
		return err
	} else if v != "" {
		c.LogLevel = v
	}
	v, err := GetConfigValue(c.project, EnvLockTimeout)
	if err != nil {
		return err
	}
	if v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvLockTimeout, v, err)
		}
		c.LockTimeout = d
	}
	return nil
}

// Project returns the project directory the config belongs to.
func (c *Config) Project() string { return c.project }

// IndexPath returns the absolute index file path.
func (c *Config) IndexPath() (string, error) {
	p, err := ExpandPath(c.Index)
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", fmt.Errorf("no index configured in %s", ConfigPath(c.project))
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.project, p)
	}
	return p, nil
}

// LogPath returns the absolute log file path, or "" when file logging is off.
func (c *Config) LogPath() (string, error) {
	if c.LogFile == "" {
		return "", nil
	}
	p, err := ExpandPath(c.LogFile)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.project, p)
	}
	return p, nil
}

// OpenIndex returns the configured index with the lock timeout applied. The
// index is not loaded.
func (c *Config) OpenIndex() (*index.Index, error) {
	p, err := c.IndexPath()
	if err != nil {
		return nil, err
	}
	idx := index.New(p, c.Type)
	if c.LockTimeout > 0 {
		idx.LockHandle().Timeout = c.LockTimeout
	}
	return idx, nil
}

// DatasetOptions returns the registry options carried by the config.
func (c *Config) DatasetOptions() dataset.Options {
	return dataset.Options{ReadType: c.ReadType, FileInfo: c.FileInfo}
}

// Save marshals cfg and writes it to <project>/.grape/grape.yaml.
func Save(project string, cfg *Config) error {
	if err := os.MkdirAll(GrapeDir(project), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", GrapeDir(project), err)
	}
	path := ConfigPath(project)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write config %s: %w", path, err)
	}
	return nil
}
