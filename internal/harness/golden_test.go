package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// To regenerate golden files after an intended behaviour change:
//
//	go test ./internal/harness -run Golden -update
func TestRunWithGolden_Testdata(t *testing.T) {
	for _, name := range []string{"ltr_cascade", "tp10c_qp_range", "commit_rejection", "conceal_color"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/ltr_cascade.yaml")
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	require.NoError(t, AssertGolden(t, scenario, result))
}

func TestSnapshot_Canonical(t *testing.T) {
	scenario := &Scenario{Name: "snap", Codec: "hevc", Domain: "dec"}
	result := NewResult()
	result.Session = "session-1"
	result.AddTrace(TraceEvent{Step: 1, Op: OpSetExternal, Cap: caps.ConcealColor8Bit, External: 0x10, Value: "7"})
	result.AddTrace(TraceEvent{Step: 2, Op: OpCommit, Rejected: caps.BitRate, Error: caps.CodePropertyRejected})

	got, err := Snapshot(scenario, result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"codec":"hevc","domain":"dec","scenario":"snap","session":"session-1","trace":[`+
			`{"cap":"CONCEAL_COLOR_8BIT","external_id":16,"op":"set_external","step":1,"value":"7"},`+
			`{"error":"PROPERTY_REJECTED","op":"commit","rejected":"BIT_RATE","step":2}]}`,
		string(got))
}

func TestSnapshot_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/tp10c_qp_range.yaml")
	require.NoError(t, err)

	var first []byte
	for i := 0; i < 3; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		snap, err := Snapshot(scenario, result)
		require.NoError(t, err)
		if first == nil {
			first = snap
			continue
		}
		assert.Equal(t, first, snap, "run %d", i)
	}
}
