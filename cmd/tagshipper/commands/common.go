package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/mattn/go-isatty"

	"git.home.luguber.info/inful/tagshipper/internal/config"
)

// Global is shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path" default:"tagshipper.yaml" type:"path"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log output format (auto, text, json)" enum:"auto,text,json" default:"auto"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run     RunCmd     `cmd:"" default:"1" help:"Watch for new tags and ship them (default)"`
	Once    OnceCmd    `cmd:"" help:"Prepare the mirror and run a single tick"`
	Drain   DrainCmd   `cmd:"" help:"Deliver every pending package once"`
	Tags    TagsCmd    `cmd:"" help:"Show the tags the next tick would process"`
	History HistoryCmd `cmd:"" help:"Show recent pipeline events"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	Check   CheckCmd   `cmd:"" help:"Validate the configuration and required tools"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	handler := newLogHandler(os.Stderr, config.NormalizeLogFormat(c.LogFormat), c.Verbose, isTerminal(os.Stderr))
	slog.SetDefault(slog.New(handler))
	return nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newLogHandler picks text for terminals and JSON otherwise, unless the
// format is forced.
func newLogHandler(w io.Writer, format config.LogFormat, verbose, tty bool) slog.Handler {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON || (format == config.LogFormatAuto && !tty) {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func loadConfig(root *CLI) (*config.Config, error) {
	return config.Load(root.Config)
}
