package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"git.home.luguber.info/inful/tagshipper/internal/archive"
	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
	"git.home.luguber.info/inful/tagshipper/internal/tagfilter"
)

// maxSleepSeconds bounds the poll interval to what a time.Duration can hold.
const maxSleepSeconds = float64(math.MaxInt64) / float64(time.Second)

// Validate checks the configuration and normalizes enum-like fields in place.
// Every failure is a fatal config or validation error naming the offending field.
func Validate(cfg *Config) error {
	validator := newConfigurationValidator(cfg)
	return validator.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func newConfigurationValidator(config *Config) *configurationValidator {
	return &configurationValidator{config: config}
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateRequired(); err != nil {
		return err
	}
	if err := cv.validateCore(); err != nil {
		return err
	}
	if err := cv.validatePaths(); err != nil {
		return err
	}
	if err := cv.validatePackaging(); err != nil {
		return err
	}
	return cv.validateGit()
}

// validateRequired reports the first missing mandatory key.
func (cv *configurationValidator) validateRequired() error {
	c := cv.config
	required := []struct {
		field   string
		missing bool
	}{
		{"sleep_seconds", c.SleepSeconds == 0},
		{"repository_type", strings.TrimSpace(c.RepositoryType) == ""},
		{"repository_url", strings.TrimSpace(c.RepositoryURL) == ""},
		{"data_dir", strings.TrimSpace(c.DataDir) == ""},
		{"name", strings.TrimSpace(c.Name) == ""},
		{"scp_url", strings.TrimSpace(c.SCPURL) == ""},
	}
	for _, r := range required {
		if r.missing {
			return shiperrors.ConfigRequired(r.field)
		}
	}
	return nil
}

func (cv *configurationValidator) validateCore() error {
	c := cv.config
	if math.IsNaN(c.SleepSeconds) || math.IsInf(c.SleepSeconds, 0) {
		return shiperrors.ValidationFailed("sleep_seconds", "must be a finite number")
	}
	if c.SleepSeconds <= 0 {
		return shiperrors.ValidationFailed("sleep_seconds", "must be greater than zero")
	}
	if c.SleepSeconds >= maxSleepSeconds {
		return shiperrors.ValidationFailed("sleep_seconds", fmt.Sprintf("must be below %.0f", maxSleepSeconds))
	}
	c.RepositoryType = strings.ToLower(strings.TrimSpace(c.RepositoryType))
	if c.RepositoryType != RepositoryTypeGit {
		return shiperrors.ValidationFailed("repository_type", "unsupported repository type "+c.RepositoryType+" (only git is supported)")
	}
	return nil
}

func (cv *configurationValidator) validatePaths() error {
	c := cv.config
	info, err := os.Stat(c.DataDir)
	if err != nil || !info.IsDir() {
		return shiperrors.ValidationFailed("data_dir", "not an existing directory: "+c.DataDir)
	}
	if c.Script != "" {
		info, err := os.Stat(c.Script)
		if err != nil || !info.Mode().IsRegular() {
			return shiperrors.ValidationFailed("script", "hook script not found: "+c.Script)
		}
	}
	if c.Workspace.Dir != "" {
		info, err := os.Stat(c.Workspace.Dir)
		if err != nil || !info.IsDir() {
			return shiperrors.ValidationFailed("workspace.dir", "not an existing directory: "+c.Workspace.Dir)
		}
	}
	return nil
}

func (cv *configurationValidator) validatePackaging() error {
	c := cv.config
	format, err := archive.ParseFormat(c.Archive.Format)
	if err != nil {
		return shiperrors.ValidationFailed("archive.format", err.Error())
	}
	c.Archive.Format = string(format)
	if _, err := tagfilter.Compile(c.Filter); err != nil {
		return shiperrors.ValidationFailed("filter", err.Error())
	}
	if c.History.RetentionDays < 0 {
		return shiperrors.ValidationFailed("history.retention_days", "must not be negative")
	}
	if c.Notify.MaxRetries != nil && *c.Notify.MaxRetries < 0 {
		return shiperrors.ValidationFailed("notify.max_retries", "must not be negative")
	}
	return nil
}

func (cv *configurationValidator) validateGit() error {
	c := cv.config
	switch backend := strings.ToLower(strings.TrimSpace(c.Git.Backend)); backend {
	case GitBackendCLI, GitBackendGoGit:
		c.Git.Backend = backend
	default:
		return shiperrors.ValidationFailed("git.backend", "unsupported git backend "+c.Git.Backend+" (want cli or gogit)")
	}
	auth := c.Git.Auth
	if auth == nil {
		return nil
	}
	norm := NormalizeAuthType(string(auth.Type))
	if norm == "" && auth.Type != "" {
		return shiperrors.ValidationFailed("git.auth.type", "unsupported auth type: "+string(auth.Type))
	}
	auth.Type = norm
	switch auth.Type {
	case AuthTypeBasic:
		if auth.Username == "" || auth.Password == "" {
			return shiperrors.ValidationFailed("git.auth", "basic auth requires username and password")
		}
	case AuthTypeToken:
		if auth.Token == "" {
			return shiperrors.ValidationFailed("git.auth.token", "token auth requires a token")
		}
	}
	if !auth.IsZero() && c.Git.Backend != GitBackendGoGit {
		return shiperrors.ValidationFailed("git.auth", "auth settings require the gogit backend")
	}
	return nil
}
