package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/engine"
)

// recordFailedDivision appends a calc.div(4, 0) call rejected by the
// default validation advice.
func recordFailedDivision(t *testing.T, dbPath string) {
	t.Helper()
	opts := newInvokeOptions("text")
	opts.Args = "[4, 0]"
	opts.Database = dbPath
	opts.IDGenerator = engine.NewFixedGenerator("div-zero")
	cmd, _ := newBareCommand()
	require.Error(t, invokeOperation(opts, "calc.div", cmd))
}

func TestReplayConsistent(t *testing.T) {
	dbPath := recordRun(t)

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)

	out, err := execute(cmd, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Replay Summary: 10 call(s)")
	assert.Contains(t, out.String(), "✓ All replayed outcomes match the recording")
}

func TestReplayConsistentJSON(t *testing.T) {
	dbPath := recordRun(t)
	recordFailedDivision(t, dbPath)

	rootOpts := &RootOptions{Format: "json"}
	cmd := NewReplayCommand(rootOpts)

	out, err := execute(cmd, "--db", dbPath)
	require.NoError(t, err)

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Consistent)
	assert.Equal(t, 11, result.Total)
	require.Len(t, result.Calls, 11)

	last := result.Calls[10]
	assert.Equal(t, "div-zero", last.InvocationID)
	assert.Equal(t, "dispatch.failure Failure(ADVICE_FAILED, Validation: division by zero)", last.Recorded)
	assert.Equal(t, last.Recorded, last.Replayed)
	assert.True(t, last.Match)
}

func TestReplayDivergesWithDifferentAspects(t *testing.T) {
	dbPath := recordRun(t)
	recordFailedDivision(t, dbPath)

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)

	out, err := execute(cmd, "--db", dbPath, "--aspects", filepath.Join(scenariosDir, "aspects"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "replay diverged: 1 of 11 call(s)")

	output := out.String()
	assert.Contains(t, output, "✗ div-zero calc.div(4, 0)")
	assert.Contains(t, output, "replayed: dispatch.suppressed Failure(DIVISION_BY_ZERO, division by zero)")
	assert.Contains(t, output, "✗ 1 call(s) diverged")
}

func TestReplayDivergedJSON(t *testing.T) {
	dbPath := recordRun(t)
	recordFailedDivision(t, dbPath)

	rootOpts := &RootOptions{Format: "json"}
	cmd := NewReplayCommand(rootOpts)

	out, err := execute(cmd, "--db", dbPath, "--aspects", filepath.Join(scenariosDir, "aspects"))
	require.Error(t, err)

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_REPLAY", resp.Error.Code)
	assert.False(t, result.Consistent)
	assert.Equal(t, 1, result.Diverged)
}

func TestReplayOperationFilter(t *testing.T) {
	dbPath := recordRun(t)

	rootOpts := &RootOptions{Format: "json"}
	cmd := NewReplayCommand(rootOpts)

	out, err := execute(cmd, "--db", dbPath, "--operation", "cd.playTrack")
	require.NoError(t, err)

	var result ReplayResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 4, result.Total)
	for _, c := range result.Calls {
		assert.Equal(t, "cd.playTrack", c.Operation)
	}
}

func TestReplaySkipsUnfinished(t *testing.T) {
	dbPath := recordRun(t)
	appendDangling(t, dbPath, "dangling")

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)

	out, err := execute(cmd, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Replay Summary: 10 call(s)")
	assert.Contains(t, out.String(), "Skipped 1 unfinished call(s)")
}

func TestReplayMissingDatabase(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)

	_, err := execute(cmd, "--db", filepath.Join(t.TempDir(), "none.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}
