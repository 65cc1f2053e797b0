package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/testutil"
)

func runMatrixJSON(t *testing.T) MatrixResult {
	t.Helper()
	buf := &bytes.Buffer{}
	opts := &MatrixOptions{RootOptions: &RootOptions{Format: "json"}, IDs: testutil.NewSequentialIDs("matrix")}
	require.NoError(t, runMatrix(opts, testCommand(buf)))

	var result MatrixResult
	resp := decodeResponse(t, buf.String(), &result)
	assert.Equal(t, "ok", resp.Status)
	return result
}

func TestMatrix_Waipio(t *testing.T) {
	result := runMatrixJSON(t)
	assert.Equal(t, "waipio", result.Platform)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Rows, 6)
	assert.Positive(t, result.Rows[0].Writes, "h264/enc")

	sessions := make(map[string]bool)
	for _, row := range result.Rows {
		name := row.Codec + "/" + row.Domain
		if name == "vp9/enc" {
			assert.False(t, row.Supported)
			assert.Empty(t, row.Session)
			continue
		}
		assert.True(t, row.Supported, name)
		assert.Empty(t, row.Error, name)
		assert.Positive(t, row.Capabilities, name)
		assert.Equal(t, row.Writes > 0, row.QueueBytes > 0, name)
		assert.LessOrEqual(t, row.Writes+row.Internal, row.Capabilities, name)
		assert.Len(t, row.StateHash, 64, name)
		sessions[row.Session] = true
	}
	assert.Len(t, sessions, 5, "one session per supported pair")
}

func TestMatrix_Deterministic(t *testing.T) {
	first := runMatrixJSON(t)
	second := runMatrixJSON(t)
	for i := range first.Rows {
		assert.Equal(t, first.Rows[i].StateHash, second.Rows[i].StateHash, "%s/%s", first.Rows[i].Codec, first.Rows[i].Domain)
		assert.Equal(t, first.Rows[i].Writes, second.Rows[i].Writes)
	}
}

func TestMatrix_Text(t *testing.T) {
	out, err := execute(t, NewMatrixCommand, &RootOptions{Format: "text"})
	require.NoError(t, err)

	assert.Contains(t, out, "waipio session matrix")
	assert.Contains(t, out, "CODEC")
	assert.Contains(t, out, "unsupported")
	assert.Contains(t, out, "✓ All supported sessions committed")
}

func TestMatrix_MissingTable(t *testing.T) {
	_, err := execute(t, NewMatrixCommand, &RootOptions{Format: "text", Table: "/nonexistent/table.cue"})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "0123456789ab", shortHash("0123456789abcdef"))
	assert.Equal(t, "abc", shortHash("abc"))
}
