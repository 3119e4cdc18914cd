package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
	"git.home.luguber.info/inful/tagshipper/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of events to show" default:"20"`
	Tick  string `help:"Show the events of one tick"`
	JSON  bool   `name:"json" help:"Print events as JSON lines"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if !cfg.HistoryEnabled() {
		return shiperrors.ValidationFailed("history.enabled", "history is disabled in the configuration")
	}
	store, err := eventstore.NewSQLiteStore(cfg.HistoryPath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	return h.print(context.Background(), g, store)
}

func (h *HistoryCmd) print(ctx context.Context, g *Global, store eventstore.Store) error {
	var (
		events []eventstore.Event
		err    error
	)
	if h.Tick != "" {
		events, err = store.ByTick(ctx, h.Tick)
	} else {
		events, err = store.Recent(ctx, h.Limit)
	}
	if err != nil {
		return err
	}

	w := g.out()
	if h.JSON {
		enc := json.NewEncoder(w)
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}
	if len(events) == 0 {
		_, _ = fmt.Fprintln(w, "no events recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tTICK\tEVENT\tTAG\tFILE")
	for _, e := range events {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), shortID(e.TickID), e.Type, e.Tag, e.File)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
