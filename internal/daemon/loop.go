package daemon

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/tagshipper/internal/logfields"
)

// Run prepares the mirror if needed and then alternates ticks and sleeps until
// ctx is canceled. A tick in progress always runs to completion, on a context
// detached from ctx, so no half-written package is left behind. Run returns
// nil once stopped; only a Prepare failure is returned.
func (d *Daemon) Run(ctx context.Context) error {
	if d.State() == StateUninitialized {
		if err := d.Prepare(ctx); err != nil {
			d.setState(StateStopped)
			return err
		}
	}
	defer d.setState(StateStopped)

	tickCtx := context.WithoutCancel(ctx)
	for {
		if ctx.Err() != nil {
			slog.Info("Poll loop stopped")
			return nil
		}
		d.Tick(tickCtx)

		interval := d.Config().SleepInterval() + sleepGrace
		d.setState(StateSleeping)
		slog.Debug("Sleeping", logfields.DurationMS(float64(interval.Microseconds())/1000))
		select {
		case <-ctx.Done():
			slog.Info("Poll loop stopped")
			return nil
		case <-d.clock.After(interval):
		}
	}
}

// RunOnce prepares the mirror and runs a single tick.
func (d *Daemon) RunOnce(ctx context.Context) (TickReport, error) {
	if err := d.Prepare(ctx); err != nil {
		return TickReport{}, err
	}
	report := d.Tick(context.WithoutCancel(ctx))
	d.setState(StateStopped)
	return report, nil
}
