package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tagshipper/internal/config"
	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
	"git.home.luguber.info/inful/tagshipper/internal/eventstore"
	"git.home.luguber.info/inful/tagshipper/internal/ledger"
	"git.home.luguber.info/inful/tagshipper/internal/metrics"
	"git.home.luguber.info/inful/tagshipper/internal/workspace"
)

func TestRun_TicksSleepsAndStops(t *testing.T) {
	f := newFixture(t)
	f.mirror.setTags("v1.0")

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- f.daemon.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer waitCancel()

	require.NoError(t, f.clock.BlockUntilContext(waitCtx, 1))
	require.Equal(t, StateSleeping, f.daemon.State())
	require.Equal(t, []string{"widget-v1.0.zip"}, f.runner.sentFiles())

	f.mirror.setTags("v1.0", "v1.1")
	f.clock.Advance(f.cfg.SleepInterval() + sleepGrace)
	require.NoError(t, f.clock.BlockUntilContext(waitCtx, 1))
	require.Equal(t, []string{"widget-v1.0.zip", "widget-v1.1.zip"}, f.runner.sentFiles())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	require.Equal(t, StateStopped, f.daemon.State())
	require.Equal(t, "v1.1", f.marker.Tag)
}

func TestRun_WaitsForGracePeriod(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- f.daemon.Run(ctx) }()

	waitCtx, waitCancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, f.clock.BlockUntilContext(waitCtx, 1))

	f.mirror.setTags("v1.0")
	f.clock.Advance(f.cfg.SleepInterval())
	require.Empty(t, f.runner.scpCalls(), "the grace period has not elapsed")

	cancel()
	require.NoError(t, <-done)
	require.Empty(t, f.mirror.materializedTags())
}

func TestRun_PrepareFailureIsReturned(t *testing.T) {
	f := newFixture(t)
	f.mirror.ensureErr = shiperrors.MirrorError(f.cfg.RepositoryURL, errors.New("repository not found"))

	err := f.daemon.Run(t.Context())

	require.Error(t, err)
	require.True(t, shiperrors.IsFatal(err))
	require.Equal(t, StateStopped, f.daemon.State())
}

func TestRun_CanceledBeforeFirstTick(t *testing.T) {
	f := newFixture(t)
	f.mirror.setTags("v1.0")
	require.NoError(t, f.daemon.Prepare(t.Context()))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	require.NoError(t, f.daemon.Run(ctx))
	require.Empty(t, f.mirror.materializedTags())
}

func TestRunOnce(t *testing.T) {
	f := newFixture(t)
	f.mirror.setTags("v1.0")

	report, err := f.daemon.RunOnce(t.Context())

	require.NoError(t, err)
	require.Equal(t, metrics.TickSuccess, report.Outcome)
	require.Equal(t, StateStopped, f.daemon.State())
}

func TestPrepare_RemovesLeftovers(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, StateUninitialized, f.daemon.State())

	stale, err := f.daemon.workspace.Create("v0.9")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(f.cfg.PackageDir(), 0o750))
	require.NoError(t, os.MkdirAll(f.cfg.StagingDir(), 0o750))
	partial := filepath.Join(f.cfg.StagingDir(), "widget-v0.9.zip.123.partial")
	require.NoError(t, os.WriteFile(partial, []byte("half"), 0o600))
	complete := filepath.Join(f.cfg.PackageDir(), "widget-v0.8.zip")
	require.NoError(t, os.WriteFile(complete, []byte("whole"), 0o600))

	require.NoError(t, f.daemon.Prepare(t.Context()))

	require.Equal(t, StateMirrorReady, f.daemon.State())
	require.NoDirExists(t, stale.Path())
	require.NoFileExists(t, partial)
	require.FileExists(t, complete, "complete packages wait for the next drain")
}

func TestNew_SnapshotsStayInsideDataDir(t *testing.T) {
	cfg := testConfig(t)
	d, err := New(cfg, Components{Mirror: &fakeMirror{}, Runner: &fakeRunner{}, Marker: &ledger.MemoryMarker{}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	require.Equal(t, filepath.Join(cfg.DataDir, config.WorkspaceDirName), d.workspace.BaseDir())

	other, err := workspace.NewManager(filepath.Join(t.TempDir(), config.WorkspaceDirName)).Create("v1.0")
	require.NoError(t, err)
	require.NoError(t, d.Prepare(t.Context()))
	require.DirExists(t, other.Path(), "another instance's snapshot must survive startup")
}

func TestPendingTags_DoesNotAdvanceMarker(t *testing.T) {
	f := newFixture(t)
	f.marker.Tag = "v1.0"
	f.mirror.setTags("v1.0", "v1.1", "v2.0")

	pending, err := f.daemon.PendingTags(t.Context())

	require.NoError(t, err)
	require.Equal(t, []string{"v1.1", "v2.0"}, pending)
	require.Equal(t, "v1.0", f.marker.Tag)
	require.Empty(t, f.mirror.materializedTags())
}

func TestReload_ChangesDestinationForNextDrain(t *testing.T) {
	f := newFixture(t)
	f.mirror.setTags("v1.0")
	f.daemon.Tick(t.Context())

	next := *f.cfg
	next.SCPURL = "mirror@backup.example.com:/srv/releases/"
	next.RepositoryURL = "https://git.example.com/other/repo.git"
	require.NoError(t, f.daemon.Reload(&next))

	require.Equal(t, next.SCPURL, f.daemon.Config().SCPURL)
	require.Equal(t, f.cfg.RepositoryURL, f.daemon.Config().RepositoryURL, "repository_url needs a restart")

	f.runner.reset()
	f.mirror.setTags("v1.0", "v1.1")
	f.daemon.Tick(t.Context())

	calls := f.runner.scpCalls()
	require.Len(t, calls, 1)
	require.Equal(t, next.SCPURL, calls[0].args[len(calls[0].args)-1])
}

func TestReload_InvalidKeepsPreviousSettings(t *testing.T) {
	f := newFixture(t)

	next := *f.cfg
	next.Filter = "tag ==="
	require.Error(t, f.daemon.Reload(&next))
	require.Empty(t, f.daemon.Config().Filter)

	next = *f.cfg
	next.Archive = config.ArchiveConfig{Format: "rar"}
	require.Error(t, f.daemon.Reload(&next))
	require.Equal(t, "zip", f.daemon.Config().Archive.Format)
}

func TestReload_ArchiveFormatAppliesToNextTick(t *testing.T) {
	f := newFixture(t)

	next := *f.cfg
	next.Archive = config.ArchiveConfig{Format: "tar.zst"}
	next.SCPSettings = "-P 2222"
	require.NoError(t, f.daemon.Reload(&next))

	f.mirror.setTags("v1.0")
	f.daemon.Tick(t.Context())

	calls := f.runner.scpCalls()
	require.Len(t, calls, 1)
	require.Equal(t, []string{"-P", "2222"}, calls[0].args[:2])
	require.Equal(t, "widget-v1.0.tar.zst", filepath.Base(calls[0].args[2]))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	f.mirror.setTags("v1.0", "v1.1-rc1")
	f.mirror.failTags = map[string]error{"v1.1-rc1": errors.New("bad object")}

	f.daemon.Tick(t.Context())
	st := f.daemon.Status()

	require.Equal(t, "widget", st.Project)
	require.Equal(t, "v1.1-rc1", st.Marker)
	require.NotNil(t, st.LastTick)
	require.Equal(t, string(metrics.TickPartial), st.LastTick.Outcome)
	require.Equal(t, 1, st.LastTick.Packaged)
	require.Equal(t, 1, st.LastTick.Failed)

	byTag := map[string]eventstore.TagSummary{}
	for _, s := range st.Tags {
		byTag[s.Tag] = s
	}
	require.Equal(t, eventstore.StatusDelivered, byTag["v1.0"].Status)
	require.Equal(t, eventstore.StatusFailed, byTag["v1.1-rc1"].Status)
}

func TestPruneHistory(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.History.RetentionDays = 7 })
	ctx := t.Context()

	old := eventstore.Event{TickID: "old", Type: eventstore.TypeTagPackaged, Tag: "v0.1", Timestamp: f.clock.Now().Add(-10 * 24 * time.Hour)}
	fresh := eventstore.Event{TickID: "new", Type: eventstore.TypeTagPackaged, Tag: "v0.2", Timestamp: f.clock.Now()}
	require.NoError(t, f.history.Append(ctx, old))
	require.NoError(t, f.history.Append(ctx, fresh))

	n, err := f.daemon.PruneHistory(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestPruneHistory_ZeroRetentionKeepsEverything(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.history.Append(t.Context(), eventstore.Event{TickID: "t", Type: eventstore.TypeTagSkipped, Timestamp: time.Unix(0, 0)}))

	n, err := f.daemon.PruneHistory(t.Context())
	require.NoError(t, err)
	require.Zero(t, n)
}
