package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/tagshipper/cmd/tagshipper/commands"
	shiperrors "git.home.luguber.info/inful/tagshipper/internal/errors"
	"git.home.luguber.info/inful/tagshipper/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("tagshipper"),
		kong.Description("Watch a git repository for new tags, package each one and ship it with scp."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)

	global := &commands.Global{Logger: slog.Default(), Out: os.Stdout}
	if err := parser.Run(global, cli); err != nil {
		shiperrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
