package git

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"git.home.luguber.info/inful/tagshipper/internal/logfields"
	"git.home.luguber.info/inful/tagshipper/internal/tagorder"
)

const tagRefPrefix = "refs/tags/"

// GoGitMirror maintains the mirror in-process with go-git.
type GoGitMirror struct {
	path string
	url  string
	auth transport.AuthMethod
}

// NewGoGitMirror returns a GoGitMirror for url kept at path. auth may be nil.
func NewGoGitMirror(path, url string, auth transport.AuthMethod) *GoGitMirror {
	return &GoGitMirror{path: path, url: url, auth: auth}
}

func (m *GoGitMirror) Path() string { return m.path }

func (m *GoGitMirror) Ensure(ctx context.Context) error {
	if m.reusable() {
		slog.Info("Reusing repository mirror", logfields.Path(m.path), logfields.URL(m.url))
		return nil
	}
	if err := os.RemoveAll(m.path); err != nil {
		return mirrorFailed(m.url, fmt.Errorf("failed to remove existing mirror: %w", err), nil)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o750); err != nil {
		return mirrorFailed(m.url, err, nil)
	}

	slog.Info("Cloning repository mirror", logfields.URL(m.url), logfields.Path(m.path))
	repository, err := gogit.PlainCloneContext(ctx, m.path, true, &gogit.CloneOptions{
		URL:    m.url,
		Auth:   m.auth,
		Mirror: true,
	})
	if err != nil {
		_ = os.RemoveAll(m.path)
		return mirrorFailed(m.url, err, nil)
	}
	if ref, herr := repository.Head(); herr == nil {
		slog.Info("Repository mirror cloned", logfields.URL(m.url), slog.String("head", ref.Hash().String()[:8]))
	}
	return nil
}

func (m *GoGitMirror) reusable() bool {
	if _, err := os.Stat(m.path); err != nil {
		return false
	}
	repository, err := gogit.PlainOpen(m.path)
	if err != nil {
		slog.Warn("Cannot open repository mirror, recreating", logfields.Path(m.path), logfields.Error(err))
		return false
	}
	remote, err := repository.Remote("origin")
	if err != nil {
		slog.Warn("Cannot read mirror remote, recreating", logfields.Path(m.path), logfields.Error(err))
		return false
	}
	urls := remote.Config().URLs
	if len(urls) == 0 || urls[0] != m.url {
		slog.Warn("Mirror remote does not match configuration, recreating",
			logfields.Path(m.path), logfields.URL(m.url), slog.Any("found", urls))
		return false
	}
	return true
}

func (m *GoGitMirror) Refresh(ctx context.Context) error {
	repository, err := gogit.PlainOpen(m.path)
	if err != nil {
		return refreshFailed(m.url, err, nil)
	}
	err = repository.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []ggitcfg.RefSpec{"+refs/*:refs/*"},
		Auth:       m.auth,
		Tags:       gogit.AllTags,
		Force:      true,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return refreshFailed(m.url, err, nil)
	}
	return nil
}

func (m *GoGitMirror) Tags(_ context.Context) ([]string, error) {
	repository, err := gogit.PlainOpen(m.path)
	if err != nil {
		return nil, tagsFailed(err, nil)
	}
	iter, err := repository.Tags()
	if err != nil {
		return nil, tagsFailed(err, nil)
	}
	var tags []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		tags = append(tags, strings.TrimPrefix(ref.Name().String(), tagRefPrefix))
		return nil
	})
	if err != nil {
		return nil, tagsFailed(err, nil)
	}
	tagorder.Sort(tags)
	return tags, nil
}

func (m *GoGitMirror) Materialize(ctx context.Context, tag, dir string) error {
	repository, err := gogit.PlainOpen(m.path)
	if err != nil {
		return &MaterializeError{Tag: tag, Step: StepClone, Err: err}
	}
	commit, err := resolveTagCommit(repository, tag)
	if err != nil {
		return &MaterializeError{Tag: tag, Step: StepCheckout, Err: err}
	}
	tree, err := commit.Tree()
	if err != nil {
		return &MaterializeError{Tag: tag, Step: StepCheckout, Err: fmt.Errorf("get tree: %w", err)}
	}
	if err := writeTree(ctx, tree, dir); err != nil {
		return &MaterializeError{Tag: tag, Step: StepCheckout, Err: err}
	}
	slog.Debug("Materialized tag", logfields.Tag(tag), slog.String("commit", commit.Hash.String()[:8]), logfields.Path(dir))
	return nil
}

// resolveTagCommit peels lightweight and annotated tags down to their commit.
func resolveTagCommit(repository *gogit.Repository, tag string) (*object.Commit, error) {
	ref, err := repository.Tag(tag)
	if err != nil {
		return nil, fmt.Errorf("resolve tag %s: %w", tag, err)
	}
	tagObj, err := repository.TagObject(ref.Hash())
	switch {
	case err == nil:
		commit, cerr := tagObj.Commit()
		if cerr != nil {
			return nil, fmt.Errorf("tag %s does not point at a commit: %w", tag, cerr)
		}
		return commit, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		commit, cerr := repository.CommitObject(ref.Hash())
		if cerr != nil {
			return nil, fmt.Errorf("get commit for tag %s: %w", tag, cerr)
		}
		return commit, nil
	default:
		return nil, fmt.Errorf("read tag %s: %w", tag, err)
	}
}

// writeTree writes every file of tree below dir, keeping executable bits and symlinks.
func writeTree(ctx context.Context, tree *object.Tree, dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	return tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("tree entry escapes snapshot: %s", f.Name)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}
		if f.Mode == filemode.Symlink {
			link, err := f.Contents()
			if err != nil {
				return err
			}
			return os.Symlink(link, target)
		}
		return writeBlob(f, target)
	})
}

func writeBlob(f *object.File, target string) error {
	mode, err := f.Mode.ToOSFileMode()
	if err != nil {
		return err
	}
	r, err := f.Reader()
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	// #nosec G304 -- target is confined to the snapshot directory above
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", f.Name, err)
	}
	return out.Close()
}
