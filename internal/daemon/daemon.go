package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/tagshipper/internal/archive"
	"git.home.luguber.info/inful/tagshipper/internal/config"
	"git.home.luguber.info/inful/tagshipper/internal/delivery"
	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
	"git.home.luguber.info/inful/tagshipper/internal/eventstore"
	"git.home.luguber.info/inful/tagshipper/internal/git"
	"git.home.luguber.info/inful/tagshipper/internal/ledger"
	"git.home.luguber.info/inful/tagshipper/internal/logfields"
	"git.home.luguber.info/inful/tagshipper/internal/metrics"
	"git.home.luguber.info/inful/tagshipper/internal/notify"
	"git.home.luguber.info/inful/tagshipper/internal/process"
	"git.home.luguber.info/inful/tagshipper/internal/retry"
	"git.home.luguber.info/inful/tagshipper/internal/snapshot"
	"git.home.luguber.info/inful/tagshipper/internal/tagfilter"
	"git.home.luguber.info/inful/tagshipper/internal/workspace"
)

// sleepGrace is added to every configured sleep.
const sleepGrace = 100 * time.Millisecond

// historyReplay bounds the events replayed into the status view at startup.
const historyReplay = 1000

// Components are the collaborators of a Daemon. Nil fields are filled with
// the production implementation derived from the configuration.
type Components struct {
	Mirror    git.Mirror
	Runner    process.Runner
	Marker    ledger.MarkerStore
	Workspace *workspace.Manager
	Recorder  metrics.Recorder
	History   eventstore.Store
	Publisher notify.Publisher
	Clock     clockwork.Clock
}

// settings is the reloadable part of the daemon. A tick loads it once and
// uses that value throughout, so reloads take effect at the next tick.
type settings struct {
	cfg       *config.Config
	filter    *tagfilter.Filter
	builder   *snapshot.Builder
	archiver  *archive.Archiver
	queue     delivery.Queue
	transport delivery.Transport
}

// Daemon is the tag poll loop.
type Daemon struct {
	mirror     git.Mirror
	runner     process.Runner
	ledger     *ledger.Ledger
	workspace  *workspace.Manager
	recorder   metrics.Recorder
	history    eventstore.Store
	projection *eventstore.TagHistoryProjection
	publisher  notify.Publisher
	clock      clockwork.Clock

	settings atomic.Pointer[settings]
	state    atomic.Value // State
	lastTick atomic.Pointer[TickReport]
}

// New wires a Daemon for cfg. cfg must already be validated.
func New(cfg *config.Config, c Components) (*Daemon, error) {
	if cfg == nil {
		return nil, shiperrors.ConfigRequired("config")
	}
	if c.Runner == nil {
		c.Runner = process.NewExecRunner()
	}
	if c.Mirror == nil {
		m, err := git.New(cfg, c.Runner)
		if err != nil {
			return nil, err
		}
		c.Mirror = m
	}
	if c.Marker == nil {
		c.Marker = ledger.NewFileMarker(cfg.MarkerPath())
	}
	if c.Workspace == nil {
		c.Workspace = workspace.NewManager(cfg.WorkspaceDir())
	}
	if c.Recorder == nil {
		c.Recorder = metrics.NoopRecorder{}
	}
	if c.History == nil {
		c.History = openHistory(cfg)
	}
	if c.Publisher == nil {
		c.Publisher = openPublisher(cfg)
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}

	d := &Daemon{
		mirror:     c.Mirror,
		runner:     c.Runner,
		ledger:     ledger.New(c.Marker),
		workspace:  c.Workspace,
		recorder:   c.Recorder,
		history:    c.History,
		projection: eventstore.NewTagHistoryProjection(c.History),
		publisher:  c.Publisher,
		clock:      c.Clock,
	}
	s, err := d.newSettings(cfg)
	if err != nil {
		return nil, err
	}
	d.settings.Store(s)
	d.setState(StateUninitialized)
	return d, nil
}

func openHistory(cfg *config.Config) eventstore.Store {
	if !cfg.HistoryEnabled() {
		return eventstore.NoopStore{}
	}
	store, err := eventstore.NewSQLiteStore(cfg.HistoryPath())
	if err != nil {
		slog.Warn("History disabled: could not open database",
			logfields.Path(cfg.HistoryPath()), logfields.Error(err))
		return eventstore.NoopStore{}
	}
	return store
}

func openPublisher(cfg *config.Config) notify.Publisher {
	if cfg.Notify.NATSURL == "" {
		return notify.NoopPublisher{}
	}
	policy := retry.NewPolicy(retry.ModeLinear, 0, 0, cfg.NotifyRetries())
	p, err := notify.NewNATSPublisher(cfg.Notify.NATSURL, cfg.Notify.Subject, policy)
	if err != nil {
		slog.Warn("Notifications disabled", logfields.URL(cfg.Notify.NATSURL), logfields.Error(err))
		return notify.NoopPublisher{}
	}
	return p
}

func (d *Daemon) newSettings(cfg *config.Config) (*settings, error) {
	filter, err := tagfilter.Compile(cfg.Filter)
	if err != nil {
		return nil, shiperrors.ValidationFailed("filter", err.Error())
	}
	format, err := archive.ParseFormat(cfg.Archive.Format)
	if err != nil {
		return nil, shiperrors.ValidationFailed("archive.format", err.Error())
	}
	return &settings{
		cfg:       cfg,
		filter:    filter,
		builder:   snapshot.NewBuilder(d.mirror, d.workspace, d.runner, cfg.Script),
		archiver:  archive.New(cfg.PackageDir(), cfg.StagingDir(), cfg.Name, format),
		queue:     delivery.NewDirQueue(cfg.PackageDir()),
		transport: delivery.NewSCPTransport(d.runner, cfg.SCPSettings, cfg.SCPURL),
	}, nil
}

// Config returns the configuration the next tick will use.
func (d *Daemon) Config() *config.Config { return d.settings.Load().cfg }

// Projection returns the per-tag history view.
func (d *Daemon) Projection() *eventstore.TagHistoryProjection { return d.projection }

// History returns the event store.
func (d *Daemon) History() eventstore.Store { return d.history }

// Prepare ensures the mirror exists and clears leftovers of an interrupted
// run. A failure is fatal.
func (d *Daemon) Prepare(ctx context.Context) error {
	cfg := d.Config()
	start := time.Now()
	slog.Info("Preparing mirror",
		logfields.URL(cfg.RepositoryURL),
		logfields.Path(d.mirror.Path()))

	if err := d.mirror.Ensure(ctx); err != nil {
		return err
	}

	if n, err := d.workspace.Sweep(); err != nil {
		slog.Warn("Failed to sweep stale snapshots", logfields.Path(d.workspace.BaseDir()), logfields.Error(err))
	} else if n > 0 {
		slog.Info("Removed stale snapshots", logfields.Count(n))
	}
	if n, err := d.settings.Load().archiver.SweepPartial(); err != nil {
		slog.Warn("Failed to sweep partial packages", logfields.Path(cfg.StagingDir()), logfields.Error(err))
	} else if n > 0 {
		slog.Info("Removed partial packages", logfields.Count(n))
	}
	if err := d.projection.Rebuild(ctx, historyReplay); err != nil {
		slog.Warn("Failed to replay history", logfields.Error(err))
	}

	d.setState(StateMirrorReady)
	slog.Info("Mirror ready", logfields.Path(d.mirror.Path()), logfields.Since(start))
	return nil
}

// Reload swaps in the reloadable subset of next. Settings that need a restart
// are logged and ignored. An invalid next leaves the running settings alone.
func (d *Daemon) Reload(next *config.Config) error {
	if next == nil {
		return errors.New("nil configuration")
	}
	current := d.Config()
	for _, field := range current.RestartRequired(next) {
		slog.Warn("Configuration change requires a restart; ignoring", slog.String("field", field))
	}
	merged := current.WithReloadable(next)
	if merged.Fingerprint() == current.Fingerprint() {
		slog.Debug("Configuration unchanged")
		return nil
	}
	s, err := d.newSettings(merged)
	if err != nil {
		return err
	}
	d.settings.Store(s)
	slog.Info("Configuration reloaded",
		logfields.Destination(merged.SCPURL),
		slog.String("format", merged.Archive.Format),
		slog.Duration("sleep", merged.SleepInterval()))
	return nil
}

// Close releases the history store and the notification connection.
func (d *Daemon) Close() error {
	return errors.Join(d.history.Close(), d.publisher.Close())
}
