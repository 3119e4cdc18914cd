package git

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/tagshipper/internal/auth"
	"git.home.luguber.info/inful/tagshipper/internal/config"
	"git.home.luguber.info/inful/tagshipper/internal/process"
)

// Mirror is the local bare copy of the remote repository.
type Mirror interface {
	// Path returns the mirror directory.
	Path() string
	// Ensure reuses the mirror when its origin matches the configured URL and
	// recreates it otherwise. Failures are fatal.
	Ensure(ctx context.Context) error
	// Refresh fetches every ref from the remote.
	Refresh(ctx context.Context) error
	// Tags lists the mirror's tags in version order.
	Tags(ctx context.Context) ([]string, error)
	// Materialize writes the tree of tag into the empty directory dir.
	Materialize(ctx context.Context, tag, dir string) error
}

// Materialize steps.
const (
	StepClone    = "clone"
	StepCheckout = "checkout"
)

// MaterializeError identifies the step of Materialize that failed.
type MaterializeError struct {
	Tag  string
	Step string
	Err  error
}

func (e *MaterializeError) Error() string {
	return fmt.Sprintf("%s of tag %s failed: %v", e.Step, e.Tag, e.Err)
}

func (e *MaterializeError) Unwrap() error { return e.Err }

// New returns the backend selected by cfg.Git.Backend.
func New(cfg *config.Config, runner process.Runner) (Mirror, error) {
	switch cfg.Git.Backend {
	case config.GitBackendGoGit:
		method, err := auth.CreateAuth(cfg.Git.Auth)
		if err != nil {
			return nil, fmt.Errorf("failed to setup authentication: %w", err)
		}
		return NewGoGitMirror(cfg.RepoDir(), cfg.RepositoryURL, method), nil
	case config.GitBackendCLI, "":
		return NewCLIMirror(cfg.RepoDir(), cfg.RepositoryURL, runner), nil
	default:
		return nil, fmt.Errorf("unsupported git backend: %s", cfg.Git.Backend)
	}
}
