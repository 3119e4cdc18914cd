package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/tagshipper/internal/archive"
	"git.home.luguber.info/inful/tagshipper/internal/delivery"
	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
	"git.home.luguber.info/inful/tagshipper/internal/eventstore"
	"git.home.luguber.info/inful/tagshipper/internal/logfields"
	"git.home.luguber.info/inful/tagshipper/internal/metrics"
	"git.home.luguber.info/inful/tagshipper/internal/notify"
	"git.home.luguber.info/inful/tagshipper/internal/process"
)

// Tick stages reported when a tick is aborted.
const (
	StageRefresh = "refresh"
	StageTags    = "tags"
	StageLedger  = "ledger"
	StagePackage = "package"
)

// TagFailure is a tag abandoned during a tick.
type TagFailure struct {
	Tag string
	Err error
}

// TickReport describes what one tick did.
type TickReport struct {
	TickID   string
	Outcome  metrics.TickOutcome
	Stage    string // stage that aborted the tick, if any
	Err      error
	NewTags  []string
	Packaged []archive.Package
	Skipped  []string
	Failed   []TagFailure
	Delivery delivery.Report
	Started  time.Time
	Duration time.Duration
}

func (r *TickReport) settle() {
	if r.Outcome != "" {
		return
	}
	if len(r.Failed) > 0 || r.Delivery.Failed > 0 || r.Delivery.ListErr != nil {
		r.Outcome = metrics.TickPartial
		return
	}
	r.Outcome = metrics.TickSuccess
}

// Tick runs one pass of the pipeline: refresh the mirror, list tags, take the
// new ones from the ledger, package each of them and drain the delivery area.
// It never returns an error; every failure is logged, recorded and reflected
// in the report.
func (d *Daemon) Tick(ctx context.Context) (report TickReport) {
	s := d.settings.Load()
	report.TickID = uuid.NewString()
	report.Started = d.clock.Now()
	log := slog.With(logfields.TickID(report.TickID))
	d.setState(StateTicking)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Tick panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			report.Outcome = metrics.TickPanic
			report.Err = shiperrors.InternalError(fmt.Sprintf("panic during tick: %v", r), nil)
		}
		report.settle()
		report.Duration = d.clock.Since(report.Started)
		d.recorder.ObserveTickDuration(report.Duration)
		d.recorder.IncTickOutcome(report.Outcome)
		last := report
		d.lastTick.Store(&last)
		log.Info("Tick finished",
			slog.String("outcome", string(report.Outcome)),
			slog.Int("packaged", len(report.Packaged)),
			slog.Int("failed", len(report.Failed)),
			slog.Int("delivered", report.Delivery.Delivered),
			logfields.DurationMS(float64(report.Duration.Microseconds())/1000))
	}()

	if err := d.mirror.Refresh(ctx); err != nil {
		d.abort(ctx, log, &report, StageRefresh, err)
		return report
	}
	tags, err := d.mirror.Tags(ctx)
	if err != nil {
		d.abort(ctx, log, &report, StageTags, err)
		return report
	}
	fresh, err := d.ledger.NewTagsSince(tags)
	if err != nil {
		d.abort(ctx, log, &report, StageLedger, err)
		return report
	}
	report.NewTags = fresh
	if len(fresh) > 0 {
		d.recorder.IncMarkerAdvance()
		log.Info("New tags", logfields.Count(len(fresh)), logfields.Marker(fresh[len(fresh)-1]))
	}

	for _, tag := range fresh {
		if err := d.processTag(ctx, log, s, &report, tag); err != nil {
			d.abort(ctx, log, &report, StagePackage, err)
			return report
		}
	}

	report.Delivery = d.drain(ctx, log, s, report.TickID)
	return report
}

// processTag filters, snapshots and archives one tag. Failures scoped to the
// tag are recorded and swallowed; anything wider is returned.
func (d *Daemon) processTag(ctx context.Context, log *slog.Logger, s *settings, report *TickReport, tag string) error {
	log = log.With(logfields.Tag(tag))

	allowed, err := s.filter.Allow(s.cfg.Name, tag)
	if err != nil {
		d.tagFailed(ctx, log, report, tag, err)
		return nil
	}
	if !allowed {
		log.Info("Tag skipped by filter", slog.String("filter", s.filter.Source()))
		report.Skipped = append(report.Skipped, tag)
		d.recorder.IncTagResult(metrics.TagSkipped)
		d.record(ctx, report.TickID, eventstore.TypeTagSkipped, tag, "", eventstore.TagSkipped{Filter: s.filter.Source()})
		return nil
	}

	start := d.clock.Now()
	pkg, err := d.packageTag(ctx, s, tag)
	if err != nil {
		switch shiperrors.ScopeOf(err) {
		case shiperrors.ScopeTag, shiperrors.ScopeFile:
			d.tagFailed(ctx, log, report, tag, err)
			return nil
		default:
			return err
		}
	}
	elapsed := d.clock.Since(start)

	report.Packaged = append(report.Packaged, pkg)
	d.recorder.IncTagResult(metrics.TagPackaged)
	d.recorder.ObservePackageBytes(string(pkg.Format), pkg.Size)
	log.Info("Tag packaged",
		logfields.File(pkg.Name()),
		logfields.Bytes(pkg.Size),
		logfields.DurationMS(float64(elapsed.Microseconds())/1000))
	d.record(ctx, report.TickID, eventstore.TypeTagPackaged, tag, pkg.Name(), eventstore.TagPackaged{
		Format:     string(pkg.Format),
		Bytes:      pkg.Size,
		DurationMS: elapsed.Milliseconds(),
	})
	d.publish(ctx, notify.PackageEvent{
		Kind:    notify.KindPackaged,
		Project: s.cfg.Name,
		Tag:     tag,
		File:    pkg.Name(),
		Bytes:   pkg.Size,
		TickID:  report.TickID,
	})
	return nil
}

// packageTag builds the snapshot of tag and archives it into the delivery
// area. The snapshot is removed whatever happens.
func (d *Daemon) packageTag(ctx context.Context, s *settings, tag string) (archive.Package, error) {
	snap, err := s.builder.Build(ctx, tag)
	if err != nil {
		return archive.Package{}, err
	}
	defer func() {
		if err := snap.Remove(); err != nil {
			slog.Warn("Failed to remove snapshot",
				logfields.Tag(tag), logfields.Path(snap.Path()), logfields.Error(err))
		}
	}()
	return s.archiver.Archive(ctx, snap.Path(), tag)
}

func (d *Daemon) tagFailed(ctx context.Context, log *slog.Logger, report *TickReport, tag string, err error) {
	report.Failed = append(report.Failed, TagFailure{Tag: tag, Err: err})
	d.recorder.IncTagResult(metrics.TagFailed)

	step := ""
	if se, ok := shiperrors.As(err); ok {
		step = se.ContextString("step")
	}
	output := outputOf(err)
	attrs := []any{logfields.Step(step), logfields.Error(err)}
	if len(output) > 0 {
		attrs = append(attrs, logfields.Output(output))
	}
	log.Error("Tag failed", attrs...)
	d.record(ctx, report.TickID, eventstore.TypeTagFailed, tag, "", eventstore.TagFailed{
		Step:   step,
		Error:  err.Error(),
		Output: string(output),
	})
}

func (d *Daemon) abort(ctx context.Context, log *slog.Logger, report *TickReport, stage string, err error) {
	report.Outcome = metrics.TickAborted
	report.Stage = stage
	report.Err = err

	attrs := []any{
		logfields.Stage(stage),
		logfields.Scope(string(shiperrors.ScopeOf(err))),
		logfields.Category(string(shiperrors.GetCategory(err))),
		logfields.Error(err),
	}
	if output := outputOf(err); len(output) > 0 {
		attrs = append(attrs, logfields.Output(output))
	}
	log.Error("Tick aborted", attrs...)
	d.record(ctx, report.TickID, eventstore.TypeTickAborted, "", "", eventstore.TickAborted{
		Stage: stage,
		Error: err.Error(),
	})
}

// drain runs one delivery pass with the tick's settings.
func (d *Daemon) drain(ctx context.Context, log *slog.Logger, s *settings, tickID string) delivery.Report {
	drainer := delivery.NewDrainer(s.queue, s.transport, d.deliveryObserver(ctx, s, tickID))
	rep := drainer.Drain(ctx)
	if rep.ListErr != nil {
		log.Warn("Delivery area could not be listed", logfields.Path(s.cfg.PackageDir()), logfields.Error(rep.ListErr))
	}
	if pending, err := s.queue.Pending(ctx); err == nil {
		d.recorder.SetPendingPackages(len(pending))
	}
	return rep
}

func (d *Daemon) deliveryObserver(ctx context.Context, s *settings, tickID string) delivery.Observer {
	destination := s.transport.Destination()
	return func(o delivery.Outcome) {
		d.recorder.ObserveDelivery(o.Duration, o.Delivered())
		ev := notify.PackageEvent{
			Project:     s.cfg.Name,
			File:        o.Item.Name,
			Bytes:       o.Item.Size,
			Destination: destination,
			TickID:      tickID,
		}
		if o.Delivered() {
			d.record(ctx, tickID, eventstore.TypePackageDelivered, "", o.Item.Name, eventstore.PackageDelivered{
				Destination: destination,
				Bytes:       o.Item.Size,
				DurationMS:  o.Duration.Milliseconds(),
			})
			ev.Kind = notify.KindDelivered
			d.publish(ctx, ev)
			return
		}
		d.record(ctx, tickID, eventstore.TypePackageFailed, "", o.Item.Name, eventstore.PackageFailed{
			Destination: destination,
			Error:       o.Err.Error(),
			Output:      string(outputOf(o.Err)),
		})
		ev.Kind = notify.KindFailed
		ev.Error = o.Err.Error()
		d.publish(ctx, ev)
	}
}

// Drain runs a single delivery pass outside the poll loop.
func (d *Daemon) Drain(ctx context.Context) delivery.Report {
	tickID := uuid.NewString()
	return d.drain(ctx, slog.With(logfields.TickID(tickID)), d.settings.Load(), tickID)
}

// PendingTags refreshes the mirror and returns the tags the next tick would
// process. The marker is not advanced.
func (d *Daemon) PendingTags(ctx context.Context) ([]string, error) {
	if err := d.mirror.Refresh(ctx); err != nil {
		return nil, err
	}
	tags, err := d.mirror.Tags(ctx)
	if err != nil {
		return nil, err
	}
	return d.ledger.Pending(tags)
}

// Marker returns the last-seen tag.
func (d *Daemon) Marker() (string, error) { return d.ledger.Marker() }

// LastTick returns the report of the most recent tick, or nil.
func (d *Daemon) LastTick() *TickReport { return d.lastTick.Load() }

// record appends an event to the history and folds it into the status view.
// History failures are logged and never affect the pipeline.
func (d *Daemon) record(ctx context.Context, tickID, typ, tag, file string, payload any) {
	ev, err := eventstore.New(tickID, typ, tag, file, payload)
	if err != nil {
		slog.Warn("Failed to build history event", slog.String("type", typ), logfields.Error(err))
		return
	}
	ev.Timestamp = d.clock.Now()
	if err := d.history.Append(ctx, ev); err != nil {
		slog.Warn("Failed to record history event", slog.String("type", typ), logfields.Error(err))
	}
	d.projection.Apply(ev)
}

func (d *Daemon) publish(ctx context.Context, ev notify.PackageEvent) {
	ev.Timestamp = d.clock.Now()
	if err := d.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("Failed to publish package event",
			slog.String("kind", ev.Kind), logfields.File(ev.File), logfields.Error(err))
	}
}

// outputOf returns captured process output carried by err.
func outputOf(err error) []byte {
	if se, ok := shiperrors.As(err); ok {
		if out := se.ContextString("output"); out != "" {
			return []byte(out)
		}
	}
	return process.OutputOf(err)
}
