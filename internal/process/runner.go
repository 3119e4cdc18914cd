// Package process runs external commands (git, scp, hook scripts) and captures
// their combined output for diagnostics.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Runner executes an external command in dir and returns its combined output.
// A non-zero exit is reported as *CommandError.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// CommandError describes a failed external command.
type CommandError struct {
	Name     string
	Args     []string
	Dir      string
	ExitCode int
	Output   []byte
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s failed", e.CommandLine())
	if e.ExitCode >= 0 {
		msg = fmt.Sprintf("%s (exit status %d)", msg, e.ExitCode)
	}
	if out := strings.TrimSpace(string(e.Output)); out != "" {
		msg = fmt.Sprintf("%s: %s", msg, firstLine(out))
	}
	if e.Err != nil && e.ExitCode < 0 {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// CommandLine renders the command for logs.
func (e *CommandError) CommandLine() string {
	return strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
}

// OutputOf returns the captured output of a *CommandError anywhere in err's chain.
func OutputOf(err error) []byte {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Output
	}
	return nil
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Env is appended to the current process environment.
	Env []string
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	// #nosec G204 -- command names come from configuration or fixed tool names
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	slog.Debug("Running command", slog.String("command", name), slog.Any("args", args), slog.String("dir", dir))
	err := cmd.Run()
	out := buf.Bytes()
	if err == nil {
		return out, nil
	}

	ce := &CommandError{Name: name, Args: args, Dir: dir, ExitCode: -1, Output: out, Err: err}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		ce.ExitCode = ee.ExitCode()
	}
	return out, ce
}

// LookPath reports whether each named tool is available on PATH.
func LookPath(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, err := exec.LookPath(n); err != nil {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools not found on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
