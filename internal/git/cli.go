package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/tagshipper/internal/logfields"
	"git.home.luguber.info/inful/tagshipper/internal/process"
)

// CLIMirror maintains the mirror with the git command line tool.
type CLIMirror struct {
	path   string
	url    string
	runner process.Runner
	bin    string
}

// NewCLIMirror returns a CLIMirror for url kept at path.
func NewCLIMirror(path, url string, runner process.Runner) *CLIMirror {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	return &CLIMirror{path: path, url: url, runner: runner, bin: "git"}
}

func (m *CLIMirror) Path() string { return m.path }

func (m *CLIMirror) git(ctx context.Context, dir string, args ...string) ([]byte, error) {
	return m.runner.Run(ctx, dir, m.bin, args...)
}

func (m *CLIMirror) Ensure(ctx context.Context) error {
	if m.reusable(ctx) {
		slog.Info("Reusing repository mirror", logfields.Path(m.path), logfields.URL(m.url))
		return nil
	}

	if err := os.RemoveAll(m.path); err != nil {
		return mirrorFailed(m.url, fmt.Errorf("failed to remove existing mirror: %w", err), nil)
	}
	parent := filepath.Dir(m.path)
	if err := os.MkdirAll(parent, 0o750); err != nil {
		return mirrorFailed(m.url, err, nil)
	}

	slog.Info("Cloning repository mirror", logfields.URL(m.url), logfields.Path(m.path))
	out, err := m.git(ctx, parent, "clone", "--mirror", m.url, m.path)
	if err != nil {
		return mirrorFailed(m.url, err, out)
	}
	return nil
}

// reusable reports whether the existing mirror points at the configured URL.
// Any inspection failure counts as not reusable.
func (m *CLIMirror) reusable(ctx context.Context) bool {
	info, err := os.Stat(m.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("Cannot inspect repository mirror", logfields.Path(m.path), logfields.Error(err))
		}
		return false
	}
	if !info.IsDir() {
		return false
	}
	remote, err := m.originURL(ctx)
	if err != nil {
		slog.Warn("Cannot read mirror remote, recreating", logfields.Path(m.path), logfields.Error(err))
		return false
	}
	if remote != m.url {
		slog.Warn("Mirror remote does not match configuration, recreating",
			logfields.Path(m.path), logfields.URL(m.url), slog.String("found", remote))
		return false
	}
	return true
}

func (m *CLIMirror) originURL(ctx context.Context) (string, error) {
	out, err := m.git(ctx, m.path, "config", "--get", "remote.origin.url")
	if err == nil {
		if u := strings.TrimSpace(string(out)); u != "" {
			return u, nil
		}
	}
	out, err = m.git(ctx, m.path, "remote", "-v")
	if err != nil {
		return "", err
	}
	if u := parseRemoteV(string(out)); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("no origin remote configured")
}

// parseRemoteV extracts the origin fetch URL from `git remote -v` output.
func parseRemoteV(out string) string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == "origin" {
			if len(fields) < 3 || fields[2] == "(fetch)" {
				return fields[1]
			}
		}
	}
	return ""
}

func (m *CLIMirror) Refresh(ctx context.Context) error {
	out, err := m.git(ctx, m.path, "remote", "update")
	if err != nil {
		return refreshFailed(m.url, err, out)
	}
	return nil
}

func (m *CLIMirror) Tags(ctx context.Context) ([]string, error) {
	out, err := m.git(ctx, m.path, "tag", "--sort", "version:refname")
	if err != nil {
		return nil, tagsFailed(err, out)
	}
	return parseLines(string(out)), nil
}

func parseLines(out string) []string {
	var lines []string
	for _, l := range strings.Split(out, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func (m *CLIMirror) Materialize(ctx context.Context, tag, dir string) error {
	if out, err := m.git(ctx, dir, "clone", "--quiet", m.path, "."); err != nil {
		return &MaterializeError{Tag: tag, Step: StepClone, Err: withOutput(err, out)}
	}
	if out, err := m.git(ctx, dir, "-c", "advice.detachedHead=false", "checkout", "--quiet", "tags/"+tag); err != nil {
		return &MaterializeError{Tag: tag, Step: StepCheckout, Err: withOutput(err, out)}
	}
	return nil
}

// withOutput makes sure the captured output survives wrapping even for
// runners that do not return *process.CommandError.
func withOutput(err error, out []byte) error {
	if process.OutputOf(err) != nil || len(out) == 0 {
		return err
	}
	return &process.CommandError{Name: "git", ExitCode: -1, Output: out, Err: err}
}
