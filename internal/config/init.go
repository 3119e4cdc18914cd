package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const exampleHeader = `# tagshipper configuration
# Every new tag of repository_url is packaged as {name}-{tag}.{format} and
# copied to scp_url. ${VAR} references are expanded from the environment.
`

// Example returns the configuration written by Init.
func Example() *Config {
	enabled := true
	return &Config{
		SleepSeconds:   60,
		RepositoryType: RepositoryTypeGit,
		RepositoryURL:  "https://github.com/example/project.git",
		DataDir:        "/var/lib/tagshipper",
		Name:           "project",
		SCPURL:         "deploy@releases.example.com:/srv/releases/",
		SCPSettings:    "-o BatchMode=yes",
		Filter:         `not prerelease`,
		Archive:        ArchiveConfig{Format: "zip"},
		Git:            GitConfig{Backend: GitBackendCLI},
		History:        HistoryConfig{Enabled: &enabled, RetentionDays: 30},
		Notify:         NotifyConfig{Subject: "tagshipper.packages"},
	}
}

// Init creates a new configuration file with example content. The encoding
// follows the file extension, like Load.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	var buf bytes.Buffer
	buf.WriteString(exampleHeader)
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if err := toml.NewEncoder(&buf).Encode(Example()); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	} else {
		data, err := yaml.Marshal(Example())
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		buf.Write(data)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
