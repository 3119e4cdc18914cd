package commands

import (
	"fmt"
	"io"
	"log/slog"

	"git.home.luguber.info/inful/tagshipper/internal/daemon"
	"git.home.luguber.info/inful/tagshipper/internal/delivery"
	"git.home.luguber.info/inful/tagshipper/internal/logfields"
)

// DrainCmd implements the 'drain' command.
type DrainCmd struct{}

func (c *DrainCmd) Run(g *Global, root *CLI) error {
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

	report := d.Drain(ctx)
	printDrain(g.out(), report)
	return report.ListErr
}

func printDrain(w io.Writer, report delivery.Report) {
	for _, o := range report.Outcomes {
		if o.Delivered() {
			_, _ = fmt.Fprintf(w, "  %s %s\n", okColor.Sprint("delivered"), o.Item.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s %s: %v\n", failColor.Sprint("lost"), o.Item.Name, o.Err)
	}
	_, _ = fmt.Fprintf(w, "delivered %d, failed %d\n", report.Delivered, report.Failed)
}
