package daemon

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/tagshipper/internal/logfields"
)

// historyPruneInterval is how often old history events are deleted.
const historyPruneInterval = 24 * time.Hour

// PruneHistory deletes history events older than the configured retention.
// A retention of zero keeps everything.
func (d *Daemon) PruneHistory(ctx context.Context) (int64, error) {
	retention := d.Config().HistoryRetention()
	if retention <= 0 {
		return 0, nil
	}
	n, err := d.history.Prune(ctx, d.clock.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("Pruned history", logfields.Count(int(n)), slog.Duration("retention", retention))
	}
	return n, nil
}

// ScheduleHistoryPruning registers the daily retention job on s.
func (d *Daemon) ScheduleHistoryPruning(ctx context.Context, s *Scheduler) error {
	_, err := s.ScheduleEvery("history-retention", historyPruneInterval, func() {
		if _, err := d.PruneHistory(ctx); err != nil {
			slog.Warn("History pruning failed", logfields.Error(err))
		}
	})
	return err
}
