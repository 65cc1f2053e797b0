package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand_Builtin(t *testing.T) {
	out, err := execute(t, NewValidateCommand, &RootOptions{Format: "text"})
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Table waipio valid")
	assert.Contains(t, out, "capability rows")
}

func TestValidateCommand_BuiltinJSON(t *testing.T) {
	out, err := execute(t, NewValidateCommand, &RootOptions{Format: "json"})
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, "waipio", result.Platform)
	assert.Greater(t, result.Rows, 100)
	assert.NotEmpty(t, result.Hash)
}

func TestValidateCommand_File(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mini.cue", miniTable)

	out, err := execute(t, NewValidateCommand, &RootOptions{Format: "text"}, path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Table mini valid (2 capability rows)")
}

func TestValidateCommand_TableFlag(t *testing.T) {
	path := writeFile(t, t.TempDir(), "mini.cue", miniTable)

	out, err := execute(t, NewValidateCommand, &RootOptions{Format: "text", Table: path})
	require.NoError(t, err)
	assert.Contains(t, out, "Table mini valid")
}

func TestValidateCommand_Cycle(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cyclic.cue", cyclicTable)

	out, err := execute(t, NewValidateCommand, &RootOptions{Format: "text"}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E240: graph.h264.enc:")
}

func TestValidateCommand_CycleJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cyclic.cue", cyclicTable)

	out, err := execute(t, NewValidateCommand, &RootOptions{Format: "json"}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCycle, resp.Error.Code)
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "graph.h264.enc", result.Errors[0].Field)
}

func TestValidateCommand_CompileError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", "platform: \"bad\"\ncore: {\n\tmax_session_count: \"three\"\n}\ncaps: []\n")

	out, err := execute(t, NewValidateCommand, &RootOptions{Format: "json"}, path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrCodeLoadFailed, result.Errors[0].Code)
}

func TestValidateCommand_RowErrors(t *testing.T) {
	inverted := `
platform: "inverted"
core: {
	enc_codecs: ["h264"]
	dec_codecs: []
	max_session_count: 1
}
caps: [
	{cap: "BIT_RATE", domain: ["enc"], codecs: ["h264"], min: 100, max: 1, value: 10},
]
`
	path := writeFile(t, t.TempDir(), "inverted.cue", inverted)

	out, err := execute(t, NewValidateCommand, &RootOptions{Format: "text"}, path)
	require.Error(t, err)
	assert.Contains(t, out, "E210: BIT_RATE.min: min 100 exceeds max 1")
}

func TestValidateCommand_FileNotFound(t *testing.T) {
	out, err := execute(t, NewValidateCommand, &RootOptions{Format: "text"}, filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidateCommand_TooManyArgs(t *testing.T) {
	_, err := execute(t, NewValidateCommand, &RootOptions{Format: "text"}, "a.cue", "b.cue")
	require.Error(t, err)
}
