package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// Scenario defines a conformance scenario: one session, a sequence of
// requests with expected outcomes, and assertions on the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Table is an optional path to a CUE capability table, relative to the
	// scenario file. Empty selects the built-in Waipio table.
	Table string `yaml:"table,omitempty"`

	// Codec and Domain select the session ("h264", "hevc", "vp9" and
	// "enc", "dec").
	Codec  string `yaml:"codec"`
	Domain string `yaml:"domain"`

	// Steps run in order against the session. A failing step does not stop
	// the scenario.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state, the property writes and the
	// journal.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one request. Exactly one of Set, External, Start, Commit or Close
// is given.
type Step struct {
	// Set names the capability to set to Value.
	Set string `yaml:"set,omitempty"`

	// External is a control-framework id to set to Value.
	External uint32 `yaml:"external,omitempty"`

	// Value is a menu name or an integer literal ("CBR", "-12", "0x3c00000").
	Value string `yaml:"value,omitempty"`

	// Start moves the session to streaming.
	Start bool `yaml:"start,omitempty"`

	// Commit pushes dirty capabilities to a recording encoder.
	Commit *CommitStep `yaml:"commit,omitempty"`

	// Close closes the session.
	Close bool `yaml:"close,omitempty"`

	// Expect checks the step's outcome. If nil the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// CommitStep configures the encoder used by one commit.
type CommitStep struct {
	// Reject lists capabilities whose property writes the encoder refuses.
	Reject []string `yaml:"reject,omitempty"`
}

// Expect specifies the outcome of a step.
type Expect struct {
	// Error is the expected error code, e.g. "OUT_OF_RANGE". Empty means
	// the step succeeds.
	Error string `yaml:"error,omitempty"`

	// Changed is the exact changed list of a successful set, in order.
	Changed []string `yaml:"changed,omitempty"`
}

// Op returns the step's operation name as it appears in traces.
func (s Step) Op() string {
	switch {
	case s.Set != "":
		return OpSet
	case s.External != 0:
		return OpSetExternal
	case s.Start:
		return OpStart
	case s.Commit != nil:
		return OpCommit
	case s.Close:
		return OpClose
	}
	return ""
}

// Step operations.
const (
	OpSet         = "set"
	OpSetExternal = "set_external"
	OpStart       = "start"
	OpCommit      = "commit"
	OpClose       = "close"
)

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "value": Cap holds Value
	// - "bounds": Cap has live bounds [Min, Max]
	// - "dirty": every capability in Caps is dirty
	// - "clean": every capability in Caps is clean
	// - "written": every capability in Caps was written by some commit
	// - "journal_order": Kinds appear in the journal in order
	// - "journal_count": Kind appears exactly Count times in the journal
	Type string `yaml:"type"`

	// Cap is the capability (used by value, bounds).
	Cap string `yaml:"cap,omitempty"`

	// Value is the expected value (used by value).
	Value string `yaml:"value,omitempty"`

	// Min and Max are the expected bounds (used by bounds).
	Min *int64 `yaml:"min,omitempty"`
	Max *int64 `yaml:"max,omitempty"`

	// Caps lists capabilities (used by dirty, clean, written).
	Caps []string `yaml:"caps,omitempty"`

	// Kinds is the expected event order (used by journal_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Kind and Count are used by journal_count.
	Kind  string `yaml:"kind,omitempty"`
	Count int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertValue        = "value"
	AssertBounds       = "bounds"
	AssertDirty        = "dirty"
	AssertClean        = "clean"
	AssertWritten      = "written"
	AssertJournalOrder = "journal_order"
	AssertJournalCount = "journal_count"
)

// LoadScenario reads and parses a scenario YAML file. A relative table
// path is resolved against the scenario's directory.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the table path relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Table != "" && !filepath.IsAbs(scenario.Table) && basePath != "" {
		scenario.Table = filepath.Join(basePath, scenario.Table)
	}
	if scenario.Table != "" {
		if _, err := os.Stat(scenario.Table); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: table file not found: %s", scenario.Table)
		}
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if _, err := caps.ParseCodec(s.Codec); err != nil {
		return fmt.Errorf("codec: %w", err)
	}
	if _, err := caps.ParseDomain(s.Domain); err != nil {
		return fmt.Errorf("domain: %w", err)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s *Step) error {
	ops := 0
	for _, set := range []bool{s.Set != "", s.External != 0, s.Start, s.Commit != nil, s.Close} {
		if set {
			ops++
		}
	}
	if ops != 1 {
		return fmt.Errorf("steps[%d]: exactly one of set, external, start, commit, close is required", index)
	}

	switch s.Op() {
	case OpSet:
		if _, err := caps.ParseID(s.Set); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
		fallthrough
	case OpSetExternal:
		if s.Value == "" {
			return fmt.Errorf("steps[%d]: value is required for %s", index, s.Op())
		}
	case OpCommit:
		if err := validateNames(s.Commit.Reject); err != nil {
			return fmt.Errorf("steps[%d].commit: %w", index, err)
		}
	}

	if s.Expect != nil {
		if s.Expect.Error != "" && len(s.Expect.Changed) > 0 {
			return fmt.Errorf("steps[%d].expect: error and changed are mutually exclusive", index)
		}
		if err := validateNames(s.Expect.Changed); err != nil {
			return fmt.Errorf("steps[%d].expect: %w", index, err)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertValue:
		if a.Cap == "" || a.Value == "" {
			return fmt.Errorf("assertions[%d]: cap and value are required for value", index)
		}
	case AssertBounds:
		if a.Cap == "" || a.Min == nil || a.Max == nil {
			return fmt.Errorf("assertions[%d]: cap, min and max are required for bounds", index)
		}
	case AssertDirty, AssertClean, AssertWritten:
		if len(a.Caps) == 0 {
			return fmt.Errorf("assertions[%d]: caps list is required for %s", index, a.Type)
		}
	case AssertJournalOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for journal_order", index)
		}
	case AssertJournalCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for journal_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Cap != "" {
		if _, err := caps.ParseID(a.Cap); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}
	if err := validateNames(a.Caps); err != nil {
		return fmt.Errorf("assertions[%d]: %w", index, err)
	}
	return nil
}

func validateNames(names []string) error {
	for _, n := range names {
		if _, err := caps.ParseID(n); err != nil {
			return err
		}
	}
	return nil
}

func parseIDs(names []string) []caps.ID {
	ids := make([]caps.ID, 0, len(names))
	for _, n := range names {
		// Names were checked by validateScenario.
		id, _ := caps.ParseID(n)
		ids = append(ids, id)
	}
	return ids
}
