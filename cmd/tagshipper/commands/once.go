package commands

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/tagshipper/internal/daemon"
	"git.home.luguber.info/inful/tagshipper/internal/logfields"
	"git.home.luguber.info/inful/tagshipper/internal/metrics"
)

// OnceCmd implements the 'once' command.
type OnceCmd struct{}

func (o *OnceCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	d, err := daemon.New(cfg, daemon.Components{})
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			slog.Warn("Failed to close daemon resources", logfields.Error(err))
		}
	}()

	report, err := d.RunOnce(ctx)
	if err != nil {
		return err
	}
	printTick(g, report)

	switch report.Outcome {
	case metrics.TickAborted, metrics.TickPanic:
		return report.Err
	default:
		return nil
	}
}

func printTick(g *Global, report daemon.TickReport) {
	w := g.out()
	_, _ = fmt.Fprintf(w, "tick %s: %s\n", report.TickID, outcomeColor(string(report.Outcome)))
	if report.Stage != "" {
		_, _ = fmt.Fprintf(w, "  aborted at %s: %v\n", report.Stage, report.Err)
	}
	for _, pkg := range report.Packaged {
		_, _ = fmt.Fprintf(w, "  %s %s (%d bytes)\n", okColor.Sprint("packaged"), pkg.Name(), pkg.Size)
	}
	for _, tag := range report.Skipped {
		_, _ = fmt.Fprintf(w, "  %s %s\n", dimColor.Sprint("skipped"), tag)
	}
	for _, f := range report.Failed {
		_, _ = fmt.Fprintf(w, "  %s %s: %v\n", failColor.Sprint("failed"), f.Tag, f.Err)
	}
	printDrain(w, report.Delivery)
}
