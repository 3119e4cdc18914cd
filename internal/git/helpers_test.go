package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

var testSig = &object.Signature{Name: "Test", Email: "test@example.com", When: time.Unix(1700000000, 0)}

// sourceRepo is a throwaway repository built in-process.
type sourceRepo struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
}

func newSourceRepo(t *testing.T) *sourceRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	return &sourceRepo{t: t, dir: dir, repo: repo}
}

// commit writes files (path -> content) and commits them.
func (s *sourceRepo) commit(files map[string]string) plumbing.Hash {
	s.t.Helper()
	wt, err := s.repo.Worktree()
	require.NoError(s.t, err)
	for name, content := range files {
		p := filepath.Join(s.dir, filepath.FromSlash(name))
		require.NoError(s.t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(s.t, os.WriteFile(p, []byte(content), 0o600))
		_, err := wt.Add(name)
		require.NoError(s.t, err)
	}
	hash, err := wt.Commit("commit", &gogit.CommitOptions{Author: testSig})
	require.NoError(s.t, err)
	return hash
}

func (s *sourceRepo) tag(name string, hash plumbing.Hash, annotated bool) {
	s.t.Helper()
	var opts *gogit.CreateTagOptions
	if annotated {
		opts = &gogit.CreateTagOptions{Tagger: testSig, Message: "release " + name}
	}
	_, err := s.repo.CreateTag(name, hash, opts)
	require.NoError(s.t, err)
}

func requireFile(t *testing.T, path, content string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, content, string(data))
}
