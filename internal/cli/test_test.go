package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

// copyScenarios copies the harness scenarios into a fresh scenarios
// directory and returns it.
func copyScenarios(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	files, err := filepath.Glob(filepath.Join(harnessScenarios, "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	for _, f := range files {
		data, err := os.ReadFile(f)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, filepath.Base(f)), data, 0644))
	}
	return dir
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand, &RootOptions{Format: "text"}, harnessScenarios)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ ltr_cascade")
	assert.Contains(t, out, "✓ commit_rejection")
	assert.Contains(t, out, "Test Summary: 4 passed, 0 failed, 4 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_JSON(t *testing.T) {
	out, err := execute(t, NewTestCommand, &RootOptions{Format: "json"}, harnessScenarios)
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 4, result.Passed)
	for _, s := range result.Scenarios {
		assert.True(t, s.Pass, "%s: %v", s.Name, s.Errors)
	}
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, NewTestCommand, &RootOptions{Format: "text"}, "--filter", "ltr_*", harnessScenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ ltr_cascade")
	assert.NotContains(t, out, "conceal_color")
	assert.Contains(t, out, "1 total")
}

func TestTestCommand_NoMatch(t *testing.T) {
	out, err := execute(t, NewTestCommand, &RootOptions{Format: "text"}, "--filter", "nothing_*", harnessScenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := copyScenarios(t)
	golden := filepath.Join(filepath.Dir(dir), "golden")

	out, err := execute(t, NewTestCommand, &RootOptions{Format: "text"}, "--update", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ ltr_cascade (golden updated)")

	// The default golden directory sits next to the scenarios directory.
	written, err := os.ReadFile(filepath.Join(golden, "ltr_cascade.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile("../harness/testdata/golden/ltr_cascade.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	out, err = execute(t, NewTestCommand, &RootOptions{Format: "text"}, dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "4 passed")
}

func TestTestCommand_GoldenMismatch(t *testing.T) {
	dir := copyScenarios(t)
	golden := t.TempDir()
	writeFile(t, golden, "conceal_color.golden", `{"scenario":"stale"}`)

	out, err := execute(t, NewTestCommand, &RootOptions{Format: "text"}, "--golden", golden, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ conceal_color")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "Test Summary: 3 passed, 1 failed, 4 total")
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", `
name: wrong
description: "expects the wrong code"
codec: h264
domain: enc
steps:
  - set: BIT_RATE
    value: 0
    expect:
      error: READ_ONLY
`)

	out, err := execute(t, NewTestCommand, &RootOptions{Format: "json"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, result.Scenarios, 1)
	assert.False(t, result.Scenarios[0].Pass)
}

func TestTestCommand_TableFallback(t *testing.T) {
	dir := t.TempDir()
	table := writeFile(t, t.TempDir(), "mini.cue", miniTable)
	writeFile(t, dir, "mini.yaml", `
name: mini_rate
description: "bit rate bounds of the mini table"
codec: h264
domain: enc
steps:
  - set: BIT_RATE
    value: 101
    expect:
      error: OUT_OF_RANGE
assertions:
  - type: bounds
    cap: BIT_RATE
    min: 1
    max: 100
`)

	out, err := execute(t, NewTestCommand, &RootOptions{Format: "text", Table: table}, dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ mini_rate")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, NewTestCommand, &RootOptions{Format: "text"}, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "b.yml", "")
	writeFile(t, dir, "notes.txt", "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, err = findScenarioFiles(dir, "b")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "b.yml"), files[0])

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
}
