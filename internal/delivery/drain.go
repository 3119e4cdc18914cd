package delivery

import (
	"context"
	"log/slog"
	"time"

	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
	"git.home.luguber.info/inful/tagshipper/internal/logfields"
	"git.home.luguber.info/inful/tagshipper/internal/process"
)

// Outcome is the result of delivering one item.
type Outcome struct {
	Item      Item
	Err       error // transfer error, nil when delivered
	RemoveErr error
	Duration  time.Duration
}

// Delivered reports whether the transfer succeeded.
func (o Outcome) Delivered() bool { return o.Err == nil }

// Report summarizes one drain pass.
type Report struct {
	Delivered    int
	Failed       int
	RemoveErrors int
	Outcomes     []Outcome

	// ListErr is set when the delivery area could not be listed.
	ListErr error
}

// Observer is notified after every item of a drain pass.
type Observer func(Outcome)

// Drainer runs drain passes over a queue.
type Drainer struct {
	queue     Queue
	transport Transport
	observers []Observer
}

// NewDrainer returns a Drainer sending items of queue through transport.
func NewDrainer(queue Queue, transport Transport, observers ...Observer) *Drainer {
	return &Drainer{queue: queue, transport: transport, observers: observers}
}

// Drain sends every item pending at the start of the pass and removes it
// afterwards regardless of the transfer outcome. It never fails as a whole:
// per-item errors are logged and counted.
func (d *Drainer) Drain(ctx context.Context) Report {
	var report Report
	items, err := d.queue.Pending(ctx)
	if err != nil {
		slog.Error("Cannot list delivery area", logfields.Error(err))
		report.ListErr = err
		return report
	}
	if len(items) == 0 {
		return report
	}
	slog.Info("Draining delivery area", logfields.Count(len(items)), logfields.Destination(d.transport.Destination()))

	for _, item := range items {
		outcome := d.deliver(ctx, item)
		report.Outcomes = append(report.Outcomes, outcome)
		if outcome.Delivered() {
			report.Delivered++
		} else {
			report.Failed++
		}
		if outcome.RemoveErr != nil {
			report.RemoveErrors++
		}
		for _, obs := range d.observers {
			obs(outcome)
		}
	}
	slog.Info("Drain complete",
		slog.Int("delivered", report.Delivered),
		slog.Int("failed", report.Failed),
		slog.Int("remove_errors", report.RemoveErrors))
	return report
}

func (d *Drainer) deliver(ctx context.Context, item Item) Outcome {
	start := time.Now()
	outcome := Outcome{Item: item}

	if err := d.transport.Send(ctx, item.Path); err != nil {
		outcome.Err = shiperrors.DeliveryError(item.Path, process.OutputOf(err), err)
		slog.Warn("Delivery failed, discarding package",
			logfields.File(item.Name),
			logfields.Destination(d.transport.Destination()),
			logfields.Output(process.OutputOf(err)),
			logfields.Error(err))
	} else {
		slog.Info("Package delivered", logfields.File(item.Name), logfields.Bytes(item.Size), logfields.Destination(d.transport.Destination()))
	}

	if err := d.queue.Remove(item); err != nil {
		outcome.RemoveErr = err
		slog.Error("Cannot remove package", logfields.File(item.Name), logfields.Error(err))
	}
	outcome.Duration = time.Since(start)
	return outcome
}
