package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/engine"
	"github.com/roach88/weave/internal/ir"
	"github.com/roach88/weave/internal/store"
)

// runOutput mirrors RunResult with step results left undecoded.
type runOutput struct {
	Steps []struct {
		Operation string          `json:"operation"`
		Result    json.RawMessage `json:"result"`
		Failure   *ir.Failure     `json:"failure"`
	} `json:"steps"`
	Tracks     map[int]int      `json:"tracks"`
	Records    int64            `json:"records"`
	Database   string           `json:"database"`
	Dispatches map[string]int64 `json:"dispatches"`
}

func TestRunText(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)

	out, err := execute(cmd)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "✓ concert.perform() = null")
	assert.Contains(t, output, "✓ cd.playTrack(2) = null")
	assert.Contains(t, output, "✓ calc.add(1.0, 2.0) = 3.0")
	assert.Contains(t, output, "✓ calc.div(1.0, 2.0) = 0.5")
	assert.Contains(t, output, "Track counts: 1=2 2=2")
	assert.Contains(t, output, "Event records: ")
	assert.NotContains(t, output, "Event log:")
}

func TestRunJSON(t *testing.T) {
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewRunCommand(rootOpts)

	out, err := execute(cmd)
	require.NoError(t, err)

	var result runOutput
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, result.Steps, 10)
	assert.Equal(t, "concert.perform", result.Steps[0].Operation)
	assert.Equal(t, "calc.sub", result.Steps[7].Operation)
	assert.JSONEq(t, "-1.0", string(result.Steps[7].Result))
	for _, s := range result.Steps {
		assert.Nil(t, s.Failure, s.Operation)
	}
	assert.Equal(t, map[int]int{1: 2, 2: 2}, result.Tracks)
	assert.Positive(t, result.Records)
	assert.Empty(t, result.Dispatches, "metrics are off by default")
}

func TestRunPersistsEvents(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "weave.db")

	rootOpts := &RootOptions{Format: "json"}
	cmd := NewRunCommand(rootOpts)

	out, err := execute(cmd, "--db", dbPath)
	require.NoError(t, err)

	var result runOutput
	decodeResponse(t, out, &result)
	assert.Equal(t, dbPath, result.Database)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	maxSeq, err := st.MaxSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.Records, maxSeq, "every record is persisted")

	invs, err := st.ReadInvocations(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, invs, 10)
}

func TestRunAsync(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "weave.db")

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)

	out, err := execute(cmd, "--db", dbPath, "--async")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Event log: "+dbPath)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	counts, err := st.CountByPhase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), counts[ir.PhaseDispatchStart])
	assert.Equal(t, int64(10), counts[ir.PhaseDispatchSuccess])
}

func TestRunAppendsToExistingLog(t *testing.T) {
	dbPath := recordRun(t)

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		IDGenerator: engine.NewSequentialGenerator("second"),
	}
	cmd, _ := newBareCommand()
	require.NoError(t, runDemo(opts, cmd))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	invs, err := st.ReadInvocations(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, invs, 20, "the second run continues the seq instead of colliding")
}

func TestRunMetrics(t *testing.T) {
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewRunCommand(rootOpts)

	out, err := execute(cmd, "--metrics")
	require.NoError(t, err)

	var result runOutput
	decodeResponse(t, out, &result)
	assert.Equal(t, map[string]int64{"success": 10}, result.Dispatches)
}

func TestRunMetricsText(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)

	out, err := execute(cmd, "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Dispatches: success=10")
}

func TestRunCustomAspects(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)

	out, err := execute(cmd, "--aspects", filepath.Join(scenariosDir, "aspects"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Track counts: \n", "no track-counter aspect")
}

func TestRunInvalidAspects(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)

	_, err := execute(cmd, "--aspects", "/nonexistent/aspects")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunInvalidPolicy(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRunCommand(rootOpts)

	_, err := execute(cmd, "--policy", "ignore")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid policy")
}

func TestRenderArgs(t *testing.T) {
	assert.Equal(t, "()", renderArgs(nil))
	assert.Equal(t, `(1, 2.5, "x")`, renderArgs(ir.Array{ir.Int(1), ir.Float(2.5), ir.String("x")}))
	assert.Equal(t, "null", renderValue(nil))
	assert.Equal(t, "null", renderValue(ir.Null{}))
}
