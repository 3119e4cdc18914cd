package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
)

// RepositoryTypeGit is the only supported repository type.
const RepositoryTypeGit = "git"

// Layout of the data directory.
const (
	RepoDirName      = "repo"
	PackageDirName   = "to_send"
	StagingDirName   = ".partial"
	WorkspaceDirName = "tmp"
	MarkerFileName   = "last_tag"
	HistoryDBName    = "history.db"
)

// DefaultNotifyRetries is the number of publish retries when
// notify.max_retries is unset.
const DefaultNotifyRetries = 2

// Git backends.
const (
	GitBackendCLI   = "cli"
	GitBackendGoGit = "gogit"
)

// Config represents the application configuration
type Config struct {
	SleepSeconds   float64 `yaml:"sleep_seconds" toml:"sleep_seconds"`
	RepositoryType string  `yaml:"repository_type" toml:"repository_type"`
	RepositoryURL  string  `yaml:"repository_url" toml:"repository_url"`
	DataDir        string  `yaml:"data_dir" toml:"data_dir"`
	Name           string  `yaml:"name" toml:"name"`
	SCPURL         string  `yaml:"scp_url" toml:"scp_url"`
	Script         string  `yaml:"script,omitempty" toml:"script"`
	SCPSettings    string  `yaml:"scp_settings,omitempty" toml:"scp_settings"`
	Filter         string  `yaml:"filter,omitempty" toml:"filter"`

	Archive   ArchiveConfig   `yaml:"archive" toml:"archive"`
	Git       GitConfig       `yaml:"git" toml:"git"`
	Workspace WorkspaceConfig `yaml:"workspace" toml:"workspace"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	History   HistoryConfig   `yaml:"history" toml:"history"`
	Notify    NotifyConfig    `yaml:"notify" toml:"notify"`
}

// ArchiveConfig selects the package format.
type ArchiveConfig struct {
	Format string `yaml:"format,omitempty" toml:"format"` // zip|tar.gz|tar.zst
}

// GitConfig selects how the repository is mirrored.
type GitConfig struct {
	Backend string      `yaml:"backend,omitempty" toml:"backend"` // cli|gogit
	Auth    *AuthConfig `yaml:"auth,omitempty" toml:"auth"`
}

// WorkspaceConfig controls where snapshots are materialized.
type WorkspaceConfig struct {
	Dir string `yaml:"dir,omitempty" toml:"dir"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen,omitempty" toml:"listen"`
}

// HistoryConfig controls the local event history.
type HistoryConfig struct {
	Enabled       *bool `yaml:"enabled,omitempty" toml:"enabled"`
	RetentionDays int   `yaml:"retention_days,omitempty" toml:"retention_days"`
}

// NotifyConfig enables NATS notifications when NATSURL is set.
type NotifyConfig struct {
	NATSURL    string `yaml:"nats_url,omitempty" toml:"nats_url"`
	Subject    string `yaml:"subject,omitempty" toml:"subject"`
	MaxRetries *int   `yaml:"max_retries,omitempty" toml:"max_retries"`
}

// Load loads configuration from the specified file. Files ending in .toml are
// parsed as TOML, everything else as YAML. ${VAR} references are expanded
// after .env files have been loaded.
func Load(configPath string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		fmt.Fprintf(os.Stderr, "Note: .env file not found or couldn't be loaded: %v\n", err)
	}

	cfg, err := parseFile(configPath)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, shiperrors.ConfigNotFound(configPath)
		}
		return nil, shiperrors.Wrap(err, shiperrors.CategoryConfig, shiperrors.SeverityFatal, "failed to read config file").
			WithContext("path", configPath)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, shiperrors.Wrap(err, shiperrors.CategoryConfig, shiperrors.SeverityFatal, "failed to parse TOML config").
				WithContext("path", configPath)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, shiperrors.Wrap(err, shiperrors.CategoryConfig, shiperrors.SeverityFatal, "failed to parse YAML config").
			WithContext("path", configPath)
	}
	return &cfg, nil
}

// applyDefaults fills optional settings.
func applyDefaults(cfg *Config) {
	if cfg.Archive.Format == "" {
		cfg.Archive.Format = "zip"
	}
	if cfg.Git.Backend == "" {
		cfg.Git.Backend = GitBackendCLI
	}
	if cfg.History.Enabled == nil {
		enabled := true
		cfg.History.Enabled = &enabled
	}
	if cfg.History.RetentionDays == 0 {
		cfg.History.RetentionDays = 30
	}
	if cfg.Notify.Subject == "" {
		cfg.Notify.Subject = "tagshipper.packages"
	}
}

// SleepInterval returns the configured poll interval.
func (c *Config) SleepInterval() time.Duration {
	return time.Duration(c.SleepSeconds * float64(time.Second))
}

// RepoDir returns the mirror location.
func (c *Config) RepoDir() string { return filepath.Join(c.DataDir, RepoDirName) }

// PackageDir returns the pending-delivery directory.
func (c *Config) PackageDir() string { return filepath.Join(c.DataDir, PackageDirName) }

// StagingDir holds packages while they are being written. It sits next to
// the delivery area so the final rename stays on one filesystem.
func (c *Config) StagingDir() string { return filepath.Join(c.DataDir, StagingDirName) }

// WorkspaceDir returns the base for snapshot directories. Without an explicit
// workspace.dir it is private to this data directory.
func (c *Config) WorkspaceDir() string {
	if c.Workspace.Dir != "" {
		return c.Workspace.Dir
	}
	return filepath.Join(c.DataDir, WorkspaceDirName)
}

// NotifyRetries returns how often a failed notification publish is retried.
func (c *Config) NotifyRetries() int {
	if c.Notify.MaxRetries == nil {
		return DefaultNotifyRetries
	}
	return *c.Notify.MaxRetries
}

// MarkerPath returns the Last-Seen Marker file.
func (c *Config) MarkerPath() string { return filepath.Join(c.DataDir, MarkerFileName) }

// HistoryPath returns the history database file.
func (c *Config) HistoryPath() string { return filepath.Join(c.DataDir, HistoryDBName) }

// HistoryEnabled reports whether the event history is kept.
func (c *Config) HistoryEnabled() bool { return c.History.Enabled == nil || *c.History.Enabled }

// HistoryRetention returns how long history events are kept.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.History.RetentionDays) * 24 * time.Hour
}
