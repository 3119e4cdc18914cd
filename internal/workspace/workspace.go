package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"git.home.luguber.info/inful/tagshipper/internal/logfields"
)

// DefaultPrefix starts every snapshot directory name.
const DefaultPrefix = "tagshipper-"

// Manager hands out ephemeral snapshot directories under a base directory.
type Manager struct {
	baseDir string
	prefix  string
}

// NewManager creates a workspace manager over baseDir. Sweep deletes every
// snapshot directory in baseDir, so it must not be shared between processes.
func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir, prefix: DefaultPrefix}
}

// BaseDir returns the directory snapshot directories are created in.
func (m *Manager) BaseDir() string { return m.baseDir }

// Create makes a fresh, empty directory for label. The label is only used to
// make the name recognizable; uniqueness comes from os.MkdirTemp.
func (m *Manager) Create(label string) (*Dir, error) {
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create workspace base directory: %w", err)
	}
	path, err := os.MkdirTemp(m.baseDir, m.prefix+sanitize(label)+"-")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	slog.Debug("Created workspace", logfields.Path(path))
	return &Dir{path: path}, nil
}

// Sweep removes directories left behind by a previous process and returns
// how many were removed.
func (m *Manager) Sweep() (int, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list workspace base directory: %w", err)
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), m.prefix) {
			continue
		}
		path := filepath.Join(m.baseDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			return removed, fmt.Errorf("failed to remove stale workspace: %w", err)
		}
		slog.Info("Removed stale workspace", logfields.Path(path))
		removed++
	}
	return removed, nil
}

// Dir is one ephemeral workspace directory.
type Dir struct {
	path string
	once sync.Once
	err  error
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// Cleanup removes the directory. Calling it again is a no-op returning the
// first result.
func (d *Dir) Cleanup() error {
	d.once.Do(func() {
		if err := os.RemoveAll(d.path); err != nil {
			d.err = fmt.Errorf("failed to cleanup workspace: %w", err)
			return
		}
		slog.Debug("Cleaned up workspace", logfields.Path(d.path))
	})
	return d.err
}

func sanitize(label string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, label)
}
