package delivery

import (
	"context"
	"strings"

	"git.home.luguber.info/inful/tagshipper/internal/process"
)

// Transport copies one local file to the remote destination.
type Transport interface {
	Send(ctx context.Context, path string) error
	Destination() string
}

// SCPTransport sends files with scp.
type SCPTransport struct {
	runner      process.Runner
	bin         string
	settings    []string
	destination string
}

// NewSCPTransport returns an scp transport. settings holds extra scp flags
// separated by whitespace, e.g. "-P 2222 -o BatchMode=yes".
func NewSCPTransport(runner process.Runner, settings, destination string) *SCPTransport {
	if runner == nil {
		runner = process.NewExecRunner()
	}
	return &SCPTransport{runner: runner, bin: "scp", settings: strings.Fields(settings), destination: destination}
}

// Args returns the scp arguments used for path.
func (t *SCPTransport) Args(path string) []string {
	args := make([]string, 0, len(t.settings)+2)
	args = append(args, t.settings...)
	return append(args, path, t.destination)
}

func (t *SCPTransport) Destination() string { return t.destination }

func (t *SCPTransport) Send(ctx context.Context, path string) error {
	_, err := t.runner.Run(ctx, "", t.bin, t.Args(path)...)
	return err
}
