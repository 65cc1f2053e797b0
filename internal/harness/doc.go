// Package harness provides conformance testing for the capability resolver.
//
// A scenario opens one session on a capability table, drives it with set,
// start, commit and close requests, and checks every outcome against the
// real engine.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: ltr_cascade
//	description: "CBR disables long-term reference frames"
//	codec: h264
//	domain: enc
//	steps:
//	  - set: LTR_COUNT
//	    value: "2"
//	    expect:
//	      changed: [LTR_COUNT, USE_LTR, MARK_LTR]
//	  - set: BITRATE_MODE
//	    value: CBR
//	  - set: LTR_COUNT
//	    value: "1"
//	    expect:
//	      error: OUT_OF_RANGE
//	  - commit:
//	      reject: [BIT_RATE]
//	    expect:
//	      error: PROPERTY_REJECTED
//	assertions:
//	  - type: bounds
//	    cap: USE_LTR
//	    min: 0
//	    max: 0
//
// Values are menu names or integer literals. A step without an expect
// clause must succeed. The optional table field points at a CUE table
// relative to the scenario file; without it the built-in Waipio table is
// used.
//
// # Assertion Types
//
//   - value: a capability's final value
//   - bounds: a capability's final live bounds
//   - dirty, clean: dirty flags of a list of capabilities
//   - written: capabilities accepted by the encoder in any commit
//   - journal_order: journal event kinds appear in order
//   - journal_count: a journal event kind appears exactly N times
//
// # Deterministic Testing
//
// Every scenario runs with session ids from testutil.SequentialIDs, a
// fresh logical clock and an in-memory SQLite journal, so the same
// scenario always yields a byte-identical trace. RunWithGolden compares
// that trace against testdata/golden/<name>.golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/ltr_cascade.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        fmt.Println(e)
//	    }
//	}
package harness
