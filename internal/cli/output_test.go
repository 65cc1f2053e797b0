package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]string{"result": "success"}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error("OUT_OF_RANGE", "value 0 outside [1, 100]", nil))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "OUT_OF_RANGE", resp.Error.Code)
	assert.Equal(t, "value 0 outside [1, 100]", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("Table valid"))
	assert.Equal(t, "Table valid\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("E005", "table file not found: x.cue", map[string]string{"path": "x.cue"}))
	assert.Contains(t, buf.String(), "Error [E005]: table file not found: x.cue")
	assert.NotContains(t, buf.String(), "Details:")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error("E005", "missing", map[string]string{"path": "x.cue"}))
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_Report(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, formatter.Report(map[string]int{"sets": 2}, "session-1", "", ""))

		var data map[string]int
		resp := decodeResponse(t, buf.String(), &data)
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, "session-1", resp.TraceID)
		assert.Nil(t, resp.Error)
		assert.Equal(t, 2, data["sets"])
		assert.Contains(t, buf.String(), "\n  \"status\"", "indented")
	})

	t.Run("error", func(t *testing.T) {
		buf := &bytes.Buffer{}
		formatter := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, formatter.Report([]string{}, "", "PROPERTY_REJECTED", "commit stopped"))

		resp := decodeResponse(t, buf.String(), nil)
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "PROPERTY_REJECTED", resp.Error.Code)
	})
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: tt.verbose}

			formatter.VerboseLog("Compiling %s", "waipio.cue")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Equal(t, "Compiling waipio.cue\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestOutputFormatter_GetErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	formatter := &OutputFormatter{Writer: out}
	assert.Same(t, out, formatter.GetErrWriter())

	errOut := &bytes.Buffer{}
	formatter.ErrWriter = errOut
	assert.Same(t, errOut, formatter.GetErrWriter())
}

func TestFail(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := fail(formatter, ExitFailure, caps.Errorf(caps.CodeReadOnly, caps.MBCyclesVSP, "no set rule"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, caps.IsCode(err, caps.CodeReadOnly))
	assert.Contains(t, buf.String(), "Error [READ_ONLY]")

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, "READ_ONLY", exitErr.Message)
}
