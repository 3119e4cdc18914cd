package config

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Fingerprint computes a stable hash of the settings that may change while the
// daemon runs. Two configs with equal fingerprints behave identically from the
// next tick on, so the watcher uses it to skip no-op reloads.
func (c *Config) Fingerprint() string {
	if c == nil {
		return ""
	}
	h := sha256.New()
	w := func(parts ...string) { h.Write([]byte(strings.Join(parts, "="))); h.Write([]byte{0}) }
	w("sleep_seconds", strconv.FormatFloat(c.SleepSeconds, 'g', -1, 64))
	w("scp_url", c.SCPURL)
	w("scp_settings", c.SCPSettings)
	w("script", c.Script)
	w("filter", c.Filter)
	w("archive.format", c.Archive.Format)
	return hex.EncodeToString(h.Sum(nil))
}

// RestartRequired lists the fields that differ between c and next but only
// take effect after a restart.
func (c *Config) RestartRequired(next *Config) []string {
	var fields []string
	if c.RepositoryURL != next.RepositoryURL {
		fields = append(fields, "repository_url")
	}
	if c.RepositoryType != next.RepositoryType {
		fields = append(fields, "repository_type")
	}
	if c.DataDir != next.DataDir {
		fields = append(fields, "data_dir")
	}
	if c.Name != next.Name {
		fields = append(fields, "name")
	}
	if c.Git.Backend != next.Git.Backend {
		fields = append(fields, "git.backend")
	}
	if c.Workspace.Dir != next.Workspace.Dir {
		fields = append(fields, "workspace.dir")
	}
	return fields
}

// WithReloadable returns a copy of c carrying the reloadable settings of next.
func (c *Config) WithReloadable(next *Config) *Config {
	merged := *c
	merged.SleepSeconds = next.SleepSeconds
	merged.SCPURL = next.SCPURL
	merged.SCPSettings = next.SCPSettings
	merged.Script = next.Script
	merged.Filter = next.Filter
	merged.Archive = next.Archive
	return &merged
}
