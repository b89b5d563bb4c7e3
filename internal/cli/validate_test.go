package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weave/internal/compiler"
)

func TestValidateValidAspects(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)

	out, err := execute(cmd, filepath.Join(scenariosDir, "aspects"))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ All aspects valid (1 aspect(s) in 1 file(s))")
}

func TestValidateValidAspectsJSON(t *testing.T) {
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)

	out, err := execute(cmd, filepath.Join(scenariosDir, "aspects"))
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, 1, result.Aspects)
	assert.Equal(t, 1, result.Files)
	assert.Empty(t, result.Errors)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)

	out, err := execute(cmd, "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, out.String(), "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)

	out, err := execute(cmd, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, out.String(), "no CUE files found")
}

func TestValidateUnknownAdvice(t *testing.T) {
	dir := t.TempDir()
	writeAspect(t, dir, "bad.cue", `
aspect: ghost: {
	pointcut: "within(calc)"
	advice: [{kind: "before", use: "no-such-advice"}]
}
`)

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)

	out, err := execute(cmd, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 1 error(s)")
	assert.Contains(t, out.String(), "✗ Validation failed")
	assert.Contains(t, out.String(), `no before advice named "no-such-advice" in catalog`)
}

func TestValidateCollectsEveryError(t *testing.T) {
	dir := t.TempDir()
	writeAspect(t, dir, "a.cue", badPointcutAspect)
	writeAspect(t, dir, "b.cue", `
aspect: dup: {
	pointcut: "within(calc)"
	advice: [{kind: "before", use: "log-call"}]
}
`)
	writeAspect(t, dir, "c.cue", `
aspect: dup: {
	pointcut: "within(cd)"
	advice: [{kind: "before", use: "count-track"}]
}
`)

	rootOpts := &RootOptions{Format: "json"}
	cmd := NewValidateCommand(rootOpts)

	out, err := execute(cmd, dir)
	require.Error(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.Files)

	var codes []string
	for _, e := range result.Errors {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, compiler.ErrInvalidPointcut)
	assert.Contains(t, codes, compiler.ErrDuplicateAspect)
}

func TestValidateWarningsDoNotFail(t *testing.T) {
	dir := t.TempDir()
	writeAspect(t, dir, "unmatched.cue", `
aspect: nowhere: {
	pointcut: "within(billing)"
	advice: [{kind: "before", use: "log-call"}]
}
`)

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewValidateCommand(rootOpts)

	out, err := execute(cmd, dir)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✓ All aspects valid")
	assert.Contains(t, out.String(), `warning: aspect "nowhere" matches no registered operation`)
}

func TestCheckAspects(t *testing.T) {
	loaded, errs := LoadAspects(filepath.Join(scenariosDir, "aspects"), LoadModeCollectAll)
	require.Empty(t, errs)

	rootOpts := &RootOptions{Format: "text"}
	cmd, _ := newBareCommand()
	require.NoError(t, rootOpts.ensure(cmd))

	result := checkAspects(loaded, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "reading x.cue"}}, rootOpts.Logger)
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, compiler.ValidationError{Field: "load", Message: "reading x.cue", Code: ErrCodeLoadFailed}, result.Errors[0])
}

func TestDemoOperations(t *testing.T) {
	var buf bytes.Buffer
	ops, err := demoOperations(newLogger(&buf, 0, "text", false))
	require.NoError(t, err)

	var names []string
	for _, op := range ops {
		names = append(names, op.Name)
	}
	assert.Equal(t, []string{"calc.add", "calc.div", "calc.mul", "calc.sub", "cd.playTrack", "concert.perform", "concert.showAdmiration"}, names)
}
