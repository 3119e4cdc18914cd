package commands

import (
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/tagshipper/internal/daemon"
	"git.home.luguber.info/inful/tagshipper/internal/logfields"
	"git.home.luguber.info/inful/tagshipper/internal/metrics"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	NoWatch bool `name:"no-watch" help:"Do not reload the configuration file when it changes"`
}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	reg := prom.NewRegistry()
	if cfg.Metrics.Listen != "" {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.NewPrometheusRecorder(reg)
	}

	d, err := daemon.New(cfg, daemon.Components{Recorder: recorder})
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			slog.Warn("Failed to close daemon resources", logfields.Error(err))
		}
	}()

	slog.Info("Starting tagshipper",
		logfields.Name(cfg.Name),
		logfields.URL(cfg.RepositoryURL),
		logfields.Destination(cfg.SCPURL))

	if err := d.Prepare(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Run(gctx) })

	if !r.NoWatch {
		watcher, err := daemon.NewConfigWatcher(root.Config, d)
		if err != nil {
			slog.Warn("Configuration reload disabled", logfields.Error(err))
		} else {
			g.Go(func() error {
				if err := watcher.Run(gctx); err != nil {
					slog.Warn("Configuration watcher stopped", logfields.Error(err))
				}
				return nil
			})
		}
	}

	if cfg.HistoryEnabled() {
		sched, err := daemon.NewScheduler(nil)
		if err != nil {
			return err
		}
		if err := d.ScheduleHistoryPruning(gctx, sched); err != nil {
			return err
		}
		g.Go(func() error { return sched.Run(gctx) })
	}

	if cfg.Metrics.Listen != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Listen, reg, func() any { return d.Status() })
		})
	}

	err = g.Wait()
	slog.Info("tagshipper stopped")
	return err
}
