package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tagshipper/internal/config"
	"git.home.luguber.info/inful/tagshipper/internal/eventstore"
	"git.home.luguber.info/inful/tagshipper/internal/ledger"
	"git.home.luguber.info/inful/tagshipper/internal/metrics"
	"git.home.luguber.info/inful/tagshipper/internal/process"
	"git.home.luguber.info/inful/tagshipper/internal/workspace"
)

type fakeMirror struct {
	mu           sync.Mutex
	tags         []string
	ensureErr    error
	refreshErr   error
	tagsErr      error
	failTags     map[string]error
	panicTag     string
	materialized []string
}

func (m *fakeMirror) Path() string { return "/var/lib/tagshipper/repo" }

func (m *fakeMirror) Ensure(context.Context) error { return m.ensureErr }

func (m *fakeMirror) Refresh(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshErr
}

func (m *fakeMirror) Tags(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tagsErr != nil {
		return nil, m.tagsErr
	}
	return slices.Clone(m.tags), nil
}

func (m *fakeMirror) setTags(tags ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags = tags
}

func (m *fakeMirror) Materialize(_ context.Context, tag, dir string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tag == m.panicTag {
		panic("corrupt object for " + tag)
	}
	if err := m.failTags[tag]; err != nil {
		return err
	}
	m.materialized = append(m.materialized, tag)
	if err := os.WriteFile(filepath.Join(dir, "RELEASE"), []byte(tag+"\n"), 0o600); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o750); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ".git", "HEAD"), []byte("ref\n"), 0o600)
}

func (m *fakeMirror) materializedTags() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.materialized)
}

type call struct {
	dir  string
	name string
	args []string
}

// fakeRunner records every command. scp calls fail when failSCP is set.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []call
	failSCP bool
}

func (r *fakeRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{dir: dir, name: name, args: args})
	if name == "scp" && r.failSCP {
		out := []byte("ssh: connect to host drop port 22: Connection refused\nlost connection")
		return out, &process.CommandError{Name: name, Args: args, ExitCode: 1, Output: out, Err: errors.New("exit status 1")}
	}
	return nil, nil
}

func (r *fakeRunner) scpCalls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call
	for _, c := range r.calls {
		if c.name == "scp" {
			out = append(out, c)
		}
	}
	return out
}

// sentFiles returns the base names of every file handed to scp.
func (r *fakeRunner) sentFiles() []string {
	var names []string
	for _, c := range r.scpCalls() {
		names = append(names, filepath.Base(c.args[len(c.args)-2]))
	}
	return names
}

func (r *fakeRunner) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[metrics.TickOutcome]int
	results  map[metrics.TagResult]int
	advances int
	pending  int
	bytes    int64
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		outcomes: map[metrics.TickOutcome]int{},
		results:  map[metrics.TagResult]int{},
	}
}

func (c *countingRecorder) ObserveTickDuration(time.Duration) {}

func (c *countingRecorder) IncTickOutcome(o metrics.TickOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes[o]++
}

func (c *countingRecorder) IncTagResult(r metrics.TagResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[r]++
}

func (c *countingRecorder) ObservePackageBytes(_ string, n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bytes += n
}

func (c *countingRecorder) ObserveDelivery(time.Duration, bool) {}

func (c *countingRecorder) SetPendingPackages(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = n
}

func (c *countingRecorder) IncMarkerAdvance() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advances++
}

type fixture struct {
	daemon   *Daemon
	cfg      *config.Config
	mirror   *fakeMirror
	runner   *fakeRunner
	marker   *ledger.MemoryMarker
	history  *eventstore.SQLiteStore
	recorder *countingRecorder
	clock    *clockwork.FakeClock
	wsDir    string
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	disabled := false
	return &config.Config{
		SleepSeconds:   30,
		RepositoryType: config.RepositoryTypeGit,
		RepositoryURL:  "https://git.example.com/acme/widget.git",
		DataDir:        t.TempDir(),
		Name:           "widget",
		SCPURL:         "deploy@drop.example.com:/srv/releases/",
		Archive:        config.ArchiveConfig{Format: "zip"},
		Git:            config.GitConfig{Backend: config.GitBackendCLI},
		History:        config.HistoryConfig{Enabled: &disabled},
	}
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := testConfig(t)
	for _, m := range mutate {
		m(cfg)
	}

	history, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)

	f := &fixture{
		cfg:      cfg,
		mirror:   &fakeMirror{},
		runner:   &fakeRunner{},
		marker:   &ledger.MemoryMarker{},
		history:  history,
		recorder: newCountingRecorder(),
		clock:    clockwork.NewFakeClock(),
		wsDir:    t.TempDir(),
	}
	d, err := New(cfg, Components{
		Mirror:    f.mirror,
		Runner:    f.runner,
		Marker:    f.marker,
		Workspace: workspace.NewManager(f.wsDir),
		Recorder:  f.recorder,
		History:   history,
		Clock:     f.clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	f.daemon = d
	return f
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func eventTypes(t *testing.T, store eventstore.Store, tickID string) []string {
	t.Helper()
	events, err := store.ByTick(t.Context(), tickID)
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}
