package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/harness"
)

func TestTestCommandAllPass(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)

	out, err := execute(cmd, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ All 5 scenario(s) passed")
}

func TestTestCommandJSON(t *testing.T) {
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTestCommand(rootOpts)

	out, err := execute(cmd, scenariosDir)
	require.NoError(t, err)

	var result harness.SuiteResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 5, result.Passed)
}

func TestTestCommandFilter(t *testing.T) {
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTestCommand(rootOpts)

	out, err := execute(cmd, scenariosDir, "--filter", "div*")
	require.NoError(t, err)

	var result harness.SuiteResult
	decodeResponse(t, out, &result)
	assert.Equal(t, 1, result.Total)
}

func TestTestCommandFilterNoMatch(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)

	out, err := execute(cmd, scenariosDir, "--filter", "nothing*")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "No scenarios found.")
}

func TestTestCommandFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ok.yaml"),
		[]byte("name: ok\nflow: [{invoke: calc.add, args: [1, 2]}]\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "failing.yaml"),
		[]byte("name: failing\nflow: [{invoke: calc.div, args: [1, 0]}]\n"), 0644))

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)

	out, err := execute(cmd, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 scenario(s) failed")

	output := out.String()
	assert.Contains(t, output, "✗ failing")
	assert.Contains(t, output, "expected outcome success, got failure")
	assert.Contains(t, output, "1 passed, 1 failed, 2 total")
}

func TestTestCommandFailuresJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	rootOpts := &RootOptions{Format: "json"}
	cmd := NewTestCommand(rootOpts)

	out, err := execute(cmd, dir)
	require.Error(t, err)

	var result harness.SuiteResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST", resp.Error.Code)
	assert.Equal(t, 1, result.Failed)
}

func TestTestCommandMissingDir(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewTestCommand(rootOpts)

	_, err := execute(cmd, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestFilterScenarios(t *testing.T) {
	paths := []string{"a/divide.yaml", "a/suppress.yml", "a/track_counter.yaml"}

	got, err := filterScenarios(paths, "")
	require.NoError(t, err)
	assert.Equal(t, paths, got)

	got, err = filterScenarios(paths, "s*")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/suppress.yml"}, got)

	_, err = filterScenarios(paths, "[")
	assert.Error(t, err)
}
