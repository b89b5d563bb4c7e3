package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/engine"
)

var scenariosDir = filepath.Join("..", "..", "testdata", "scenarios")

// response mirrors CLIResponse with the payload left undecoded.
type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decodeResponse(t *testing.T, buf *bytes.Buffer, data any) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp), buf.String())
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}

// execute runs cmd with args and returns stdout. Logs go to a separate
// buffer so they never mix with command output.
func execute(cmd *cobra.Command, args ...string) (*bytes.Buffer, error) {
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args
	}
	cmd.SetArgs(args)
	return out, cmd.Execute()
}

func writeAspect(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0644))
}

// newBareCommand returns a command for calling a run function directly,
// with options the flags cannot express.
func newBareCommand() (*cobra.Command, *bytes.Buffer) {
	out := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, out
}

// recordRun runs the demo sequence into a fresh database and returns its
// path. Invocation IDs are inv-1 through inv-10 in call order.
func recordRun(t *testing.T) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "weave.db")

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		IDGenerator: engine.NewSequentialGenerator("inv"),
	}
	cmd, _ := newBareCommand()
	require.NoError(t, runDemo(opts, cmd))
	return dbPath
}
