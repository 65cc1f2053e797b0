package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/registry"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", event.Step, event.Op)
			if event.Cap.Valid() {
				fmt.Fprintf(&buf, " %s", event.Cap)
			}
			if event.Value != "" {
				fmt.Fprintf(&buf, "=%s", event.Value)
			}
			if event.Error != "" {
				fmt.Fprintf(&buf, " -> %s", event.Error)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns one
// message per failure. g resolves menu names in expected values.
func EvaluateAssertions(result *Result, assertions []Assertion, g *registry.Graph) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, g); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, g *registry.Graph) error {
	switch a.Type {
	case AssertValue:
		return assertValue(result, a, g)
	case AssertBounds:
		return assertBounds(result, a)
	case AssertDirty:
		return assertDirty(result, a, true)
	case AssertClean:
		return assertDirty(result, a, false)
	case AssertWritten:
		return assertWritten(result, a)
	case AssertJournalOrder:
		return assertJournalOrder(result, a)
	case AssertJournalCount:
		return assertJournalCount(result, a)
	}
	return fmt.Errorf("unknown assertion type: %s", a.Type)
}

func stateOf(result *Result, a Assertion, name string) (engine.CapState, error) {
	id, err := caps.ParseID(name)
	if err != nil {
		return engine.CapState{}, err
	}
	cs, ok := result.Cap(id)
	if !ok {
		return engine.CapState{}, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s in the session", name),
			Actual:   "capability not present",
			Trace:    result.Trace,
		}
	}
	return cs, nil
}

// assertValue checks the final value of a capability. The expected value
// may be a menu name.
func assertValue(result *Result, a Assertion, g *registry.Graph) error {
	cs, err := stateOf(result, a, a.Cap)
	if err != nil {
		return err
	}
	d, err := g.Lookup(cs.Cap)
	if err != nil {
		return err
	}
	want, err := d.ParseValue(a.Value)
	if err != nil {
		return err
	}
	if cs.Value != want {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s = %s", cs.Cap, d.FormatValue(want)),
			Actual:   fmt.Sprintf("%s = %s", cs.Cap, d.FormatValue(cs.Value)),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertBounds(result *Result, a Assertion) error {
	cs, err := stateOf(result, a, a.Cap)
	if err != nil {
		return err
	}
	want := caps.Bounds{Min: *a.Min, Max: *a.Max}
	if cs.Bounds != want {
		return &AssertionError{
			Type:     AssertBounds,
			Expected: fmt.Sprintf("%s bounds %s", cs.Cap, want),
			Actual:   fmt.Sprintf("%s bounds %s", cs.Cap, cs.Bounds),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertDirty(result *Result, a Assertion, dirty bool) error {
	for _, name := range a.Caps {
		cs, err := stateOf(result, a, name)
		if err != nil {
			return err
		}
		if cs.Dirty != dirty {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s dirty=%t", cs.Cap, dirty),
				Actual:   fmt.Sprintf("%s dirty=%t", cs.Cap, cs.Dirty),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func assertWritten(result *Result, a Assertion) error {
	for _, id := range parseIDs(a.Caps) {
		if !slices.Contains(result.Written, id) {
			return &AssertionError{
				Type:     AssertWritten,
				Expected: fmt.Sprintf("a property write for %s", id),
				Actual:   fmt.Sprintf("written: %v", result.Written),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertJournalOrder checks that kinds appear in the journal in the given
// order. Intervening events are allowed.
func assertJournalOrder(result *Result, a Assertion) error {
	next := 0
	for _, e := range result.Journal {
		if next < len(a.Kinds) && string(e.Kind) == a.Kinds[next] {
			next++
		}
	}
	if next < len(a.Kinds) {
		return &AssertionError{
			Type:     AssertJournalOrder,
			Expected: fmt.Sprintf("events in order: %v", a.Kinds),
			Actual:   fmt.Sprintf("journal %v stops matching at %s", journalKinds(result.Journal), a.Kinds[next]),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertJournalCount checks that a kind appears exactly Count times.
func assertJournalCount(result *Result, a Assertion) error {
	count := 0
	for _, e := range result.Journal {
		if string(e.Kind) == a.Kind {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertJournalCount,
			Expected: fmt.Sprintf("%d %s events", a.Count, a.Kind),
			Actual:   fmt.Sprintf("%d %s events", count, a.Kind),
			Trace:    result.Trace,
		}
	}
	return nil
}

func journalKinds(events []engine.Event) []engine.EventKind {
	out := make([]engine.EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}
