package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/tagshipper/internal/config"
	"git.home.luguber.info/inful/tagshipper/internal/eventstore"
	"git.home.luguber.info/inful/tagshipper/internal/tagfilter"
)

func init() {
	color.NoColor = true
}

func newParser(t *testing.T, cli *CLI) *kong.Kong {
	t.Helper()
	parser, err := kong.New(cli, kong.Name("tagshipper"), kong.Vars{"version": "test"}, kong.Exit(func(int) {}))
	require.NoError(t, err)
	return parser
}

func TestCLI_DefaultsToRun(t *testing.T) {
	cli := &CLI{}
	ctx, err := newParser(t, cli).Parse([]string{})
	require.NoError(t, err)
	require.Equal(t, "run", ctx.Command())
	require.Equal(t, "tagshipper.yaml", filepath.Base(cli.Config))
	require.Equal(t, "auto", cli.LogFormat)
}

func TestCLI_ParsesSubcommandFlags(t *testing.T) {
	cli := &CLI{}
	ctx, err := newParser(t, cli).Parse([]string{"-c", "/etc/tagshipper.toml", "--log-format", "json", "history", "-n", "5", "--json"})
	require.NoError(t, err)
	require.Equal(t, "history", ctx.Command())
	require.Equal(t, "/etc/tagshipper.toml", cli.Config)
	require.Equal(t, 5, cli.History.Limit)
	require.True(t, cli.History.JSON)
}

func TestCLI_RejectsUnknownLogFormat(t *testing.T) {
	cli := &CLI{}
	_, err := newParser(t, cli).Parse([]string{"--log-format", "xml", "check"})
	require.Error(t, err)
}

func TestNewLogHandler(t *testing.T) {
	var buf bytes.Buffer

	h := newLogHandler(&buf, config.LogFormatAuto, false, false)
	slog.New(h).Info("hello", slog.String("tag", "v1.0"))
	require.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "auto without a terminal logs JSON")
	require.False(t, h.Enabled(context.Background(), slog.LevelDebug))

	buf.Reset()
	h = newLogHandler(&buf, config.LogFormatAuto, true, true)
	slog.New(h).Info("hello", slog.String("tag", "v1.0"))
	require.Contains(t, buf.String(), "tag=v1.0")
	require.True(t, h.Enabled(context.Background(), slog.LevelDebug))

	buf.Reset()
	h = newLogHandler(&buf, config.LogFormatText, false, false)
	slog.New(h).Info("hello")
	require.Contains(t, buf.String(), "msg=hello")
}

func TestRunInit(t *testing.T) {
	var out bytes.Buffer
	g := &Global{Out: &out}
	path := filepath.Join(t.TempDir(), "tagshipper.yaml")

	require.NoError(t, RunInit(g, path, false))
	require.FileExists(t, path)
	require.Contains(t, out.String(), "initialized successfully")

	out.Reset()
	require.Error(t, RunInit(g, path, false))
	require.Contains(t, out.String(), "Initialization failed")
	require.NoError(t, RunInit(g, path, true))
}

func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()
	dataDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "tagshipper.yaml")
	body := fmt.Sprintf(`sleep_seconds: 10
repository_type: git
repository_url: https://git.example.com/acme/widget.git
data_dir: %s
name: widget
scp_url: deploy@drop.example.com:/srv/releases/
`, dataDir)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path, dataDir
}

func TestDrainCmd_EmptyDeliveryArea(t *testing.T) {
	path, _ := writeTestConfig(t)
	var out bytes.Buffer

	err := (&DrainCmd{}).Run(&Global{Out: &out}, &CLI{Config: path})

	require.NoError(t, err)
	require.Contains(t, out.String(), "delivered 0, failed 0")
}

func TestCheckCmd_MissingConfig(t *testing.T) {
	var out bytes.Buffer
	err := (&CheckCmd{}).Run(&Global{Out: &out}, &CLI{Config: filepath.Join(t.TempDir(), "absent.yaml")})

	require.Error(t, err)
	require.Contains(t, out.String(), "✗ configuration")
}

func TestRequiredTools(t *testing.T) {
	cfg := &config.Config{Git: config.GitConfig{Backend: config.GitBackendCLI}}
	require.Equal(t, []string{"scp", "git"}, requiredTools(cfg))

	cfg.Git.Backend = config.GitBackendGoGit
	require.Equal(t, []string{"scp"}, requiredTools(cfg))
}

func TestPrintPending(t *testing.T) {
	filter, err := tagfilter.Compile("!prerelease")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, printPending(&Global{Out: &out}, "widget", "v0.9", []string{"v1.0", "v1.1-rc1"}, filter))

	got := out.String()
	require.Contains(t, got, "last seen: v0.9")
	require.Contains(t, got, "ship v1.0")
	require.Contains(t, got, "skip v1.1-rc1")

	out.Reset()
	require.NoError(t, printPending(&Global{Out: &out}, "widget", "", nil, filter))
	require.Contains(t, out.String(), "last seen: (none)")
	require.Contains(t, out.String(), "no new tags")
}

func TestHistoryCmd_Print(t *testing.T) {
	store, err := eventstore.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ev, err := eventstore.New("0f8fad5b-d9cb-469f-a165-70867728950e", eventstore.TypeTagPackaged, "v1.0", "widget-v1.0.zip", eventstore.TagPackaged{Format: "zip", Bytes: 10})
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), ev))

	var out bytes.Buffer
	cmd := &HistoryCmd{Limit: 10}
	require.NoError(t, cmd.print(t.Context(), &Global{Out: &out}, store))
	require.Contains(t, out.String(), "tag_packaged")
	require.Contains(t, out.String(), "0f8fad5b ")
	require.Contains(t, out.String(), "widget-v1.0.zip")

	out.Reset()
	cmd = &HistoryCmd{Tick: ev.TickID, JSON: true}
	require.NoError(t, cmd.print(t.Context(), &Global{Out: &out}, store))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	var decoded eventstore.Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	require.Equal(t, "v1.0", decoded.Tag)
}

func TestHistoryCmd_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, (&HistoryCmd{Limit: 5}).print(t.Context(), &Global{Out: &out}, eventstore.NoopStore{}))
	require.Contains(t, out.String(), "no events recorded")
}
