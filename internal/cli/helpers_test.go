package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// miniTable is a two-capability platform used where the Waipio table would
// make expectations hard to state.
const miniTable = `
platform: "mini"
core: {
	enc_codecs: ["h264"]
	dec_codecs: ["h264"]
	max_session_count: 2
}
caps: [
	{cap: "BIT_RATE", domain: ["enc"], codecs: ["h264"], min: 1, max: 100, value: 10,
		hfi: 0x0300013b, flags: ["ROOT", "OUTPUT_PORT", "DYNAMIC_ALLOWED"], set: "u32"},
	{cap: "BITRATE_MODE", domain: ["enc"], codecs: ["h264"], min: 0, max: 1, value: 1,
		hfi: 0x0300012a, menu: {VBR: 0, CBR: 1}, flags: ["MENU", "OUTPUT_PORT"], set: "u32_enum"},
]
`

// cyclicTable compiles and validates row by row, but its encoder graph has
// a two-node cycle.
const cyclicTable = `
platform: "cyclic"
core: {
	enc_codecs: ["h264"]
	dec_codecs: []
	max_session_count: 1
}
caps: [
	{cap: "BITRATE_MODE", domain: ["enc"], codecs: ["h264"], min: 0, max: 1, value: 0,
		children: ["LTR_COUNT"]},
	{cap: "LTR_COUNT", domain: ["enc"], codecs: ["h264"], min: 0, max: 2, value: 0,
		children: ["BITRATE_MODE"]},
]
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs the command newCmd builds with args and returns its stdout.
func execute(t *testing.T, newCmd func(*RootOptions) *cobra.Command, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newCmd(opts)
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// testCommand returns a bare command writing to buf, for calling runX
// functions directly with options the constructors do not expose.
func testCommand(buf *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	return cmd
}

// jsonResponse is CLIResponse with the payload left raw for typed decoding.
type jsonResponse struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   *CLIError       `json:"error"`
	TraceID string          `json:"trace_id"`
}

// decodeResponse parses out as a CLI response and decodes its payload into
// data when data is non-nil.
func decodeResponse(t *testing.T, out string, data any) jsonResponse {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if data != nil {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp
}
