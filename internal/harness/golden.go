package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// TraceSnapshot captures the step trace of one scenario execution.
// It is serialized with caps.MarshalCanonical for byte-stable comparison.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Codec    string       `json:"codec"`
	Domain   string       `json:"domain"`
	Session  string       `json:"session"`
	Trace    []TraceEvent `json:"trace"`
}

// Snapshot returns the canonical JSON of result's trace.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	return caps.MarshalCanonical(TraceSnapshot{
		Scenario: scenario.Name,
		Codec:    scenario.Codec,
		Domain:   scenario.Domain,
		Session:  result.Session,
		Trace:    result.Trace,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against the golden file
// of scenario, without re-running it.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}
