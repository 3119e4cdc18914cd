package commands

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/tagshipper/internal/daemon"
	"git.home.luguber.info/inful/tagshipper/internal/logfields"
	"git.home.luguber.info/inful/tagshipper/internal/tagfilter"
)

// TagsCmd implements the 'tags' command. It never advances the marker.
type TagsCmd struct{}

func (c *TagsCmd) Run(g *Global, root *CLI) error {
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

	if err := d.Prepare(ctx); err != nil {
		return err
	}
	pending, err := d.PendingTags(ctx)
	if err != nil {
		return err
	}
	marker, err := d.Marker()
	if err != nil {
		return err
	}
	filter, err := tagfilter.Compile(cfg.Filter)
	if err != nil {
		return err
	}
	return printPending(g, cfg.Name, marker, pending, filter)
}

func printPending(g *Global, project, marker string, pending []string, filter *tagfilter.Filter) error {
	w := g.out()
	if marker == "" {
		marker = "(none)"
	}
	_, _ = fmt.Fprintf(w, "last seen: %s\n", warnColor.Sprint(marker))
	if len(pending) == 0 {
		_, _ = fmt.Fprintln(w, "no new tags")
		return nil
	}
	for _, tag := range pending {
		ok, err := filter.Allow(project, tag)
		switch {
		case err != nil:
			_, _ = fmt.Fprintf(w, "  %s %s: %v\n", failColor.Sprint("error"), tag, err)
		case ok:
			_, _ = fmt.Fprintf(w, "  %s %s\n", okColor.Sprint("ship"), tag)
		default:
			_, _ = fmt.Fprintf(w, "  %s %s\n", dimColor.Sprint("skip"), tag)
		}
	}
	return nil
}
