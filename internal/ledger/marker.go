package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// MarkerFileName is the name of the marker file under the data directory.
const MarkerFileName = "last_tag"

// MarkerStore persists the Last-Seen Marker. An empty string means no marker.
type MarkerStore interface {
	Load() (string, error)
	Store(tag string) error
}

// FileMarker keeps the marker as a single line in a text file.
type FileMarker struct {
	path string
}

// NewFileMarker returns a marker stored at path.
func NewFileMarker(path string) *FileMarker { return &FileMarker{path: path} }

// Path returns the marker file location.
func (m *FileMarker) Path() string { return m.path }

// Load returns the first non-empty line of the marker file. A missing file is
// an unset marker.
func (m *FileMarker) Load() (string, error) {
	f, err := os.Open(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("open marker: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read marker: %w", err)
	}
	return "", nil
}

// Store replaces the marker. The write goes to a temp file in the same
// directory and is renamed into place, so readers see either the old or the
// new marker.
func (m *FileMarker) Store(tag string) error {
	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(m.path)+"-*")
	if err != nil {
		return fmt.Errorf("create marker temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.WriteString(tag + "\n"); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write marker: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close marker: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		cleanup()
		return fmt.Errorf("replace marker: %w", err)
	}
	return nil
}

// MemoryMarker is an in-memory MarkerStore, used for dry runs and tests.
type MemoryMarker struct {
	Tag string
	Err error
}

func (m *MemoryMarker) Load() (string, error) { return m.Tag, m.Err }

func (m *MemoryMarker) Store(tag string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Tag = tag
	return nil
}
