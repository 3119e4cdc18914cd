// Package snapshot materializes one tag of the mirror into an isolated,
// VCS-free directory and optionally runs the post-checkout hook on it.
//
// A failed build never leaves its directory behind: the workspace is removed
// before the error is returned.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
	"git.home.luguber.info/inful/tagshipper/internal/git"
	"git.home.luguber.info/inful/tagshipper/internal/logfields"
	"git.home.luguber.info/inful/tagshipper/internal/process"
	"git.home.luguber.info/inful/tagshipper/internal/workspace"
)

// Build steps reported in SnapshotError.
const (
	StepWorkspace = "workspace"
	StepClone     = git.StepClone
	StepCheckout  = git.StepCheckout
	StepStrip     = "strip"
	StepHook      = "hook"
)

// strippedNames are removed from the snapshot root.
var strippedNames = []string{".git", ".gitignore"}

// Builder produces snapshots from a mirror.
type Builder struct {
	mirror    git.Mirror
	workspace *workspace.Manager
	runner    process.Runner
	hook      string
}

// NewBuilder returns a Builder. hook may be empty.
func NewBuilder(mirror git.Mirror, ws *workspace.Manager, runner process.Runner, hook string) *Builder {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	return &Builder{mirror: mirror, workspace: ws, runner: runner, hook: absHook(hook)}
}

// absHook resolves a relative hook path, since the hook runs inside the snapshot.
func absHook(hook string) string {
	if hook == "" || filepath.IsAbs(hook) {
		return hook
	}
	if abs, err := filepath.Abs(hook); err == nil {
		return abs
	}
	return hook
}

// Snapshot is a materialized tag. The caller owns it and must Remove it.
type Snapshot struct {
	Tag string
	dir *workspace.Dir
}

// Path returns the snapshot root.
func (s *Snapshot) Path() string { return s.dir.Path() }

// Remove deletes the snapshot directory. It is safe to call more than once.
func (s *Snapshot) Remove() error {
	if s == nil || s.dir == nil {
		return nil
	}
	return s.dir.Cleanup()
}

// Build materializes tag. Every failure is a snapshot-category ShipperError
// carrying the failing step and any captured process output.
func (b *Builder) Build(ctx context.Context, tag string) (*Snapshot, error) {
	start := time.Now()
	dir, err := b.workspace.Create(tag)
	if err != nil {
		return nil, shiperrors.SnapshotError(tag, StepWorkspace, nil, err)
	}
	snap := &Snapshot{Tag: tag, dir: dir}

	if err := b.populate(ctx, snap); err != nil {
		if cerr := snap.Remove(); cerr != nil {
			slog.Error("Failed to remove snapshot after error", logfields.Tag(tag), logfields.Path(dir.Path()), logfields.Error(cerr))
		}
		return nil, err
	}

	slog.Debug("Snapshot ready", logfields.Tag(tag), logfields.Path(dir.Path()), logfields.Since(start))
	return snap, nil
}

func (b *Builder) populate(ctx context.Context, snap *Snapshot) error {
	tag, path := snap.Tag, snap.Path()

	if err := b.mirror.Materialize(ctx, tag, path); err != nil {
		step := StepClone
		var me *git.MaterializeError
		if errors.As(err, &me) {
			step = me.Step
		}
		return shiperrors.SnapshotError(tag, step, process.OutputOf(err), err)
	}

	if err := strip(path); err != nil {
		return shiperrors.SnapshotError(tag, StepStrip, nil, err)
	}

	if b.hook == "" {
		return nil
	}
	slog.Info("Running hook", logfields.Tag(tag), logfields.Path(b.hook))
	if out, err := b.runner.Run(ctx, path, b.hook, tag, path); err != nil {
		return shiperrors.SnapshotError(tag, StepHook, out, err)
	}
	return nil
}

func strip(root string) error {
	for _, name := range strippedNames {
		if err := os.RemoveAll(filepath.Join(root, name)); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}
