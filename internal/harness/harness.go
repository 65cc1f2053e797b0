package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/store"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/table"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/testutil"
)

// Harness is the scenario execution engine. It drives one session with
// deterministic ids and clock, journaling into its own store.
type Harness struct {
	store   *store.Store
	manager *engine.Manager
	session *engine.Session
	written []caps.ID
	logger  *slog.Logger
}

var waipio = sync.OnceValues(func() (*caps.Platform, error) { return table.Waipio() })

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation, with
// session ids "session-1", "session-2", ... and a clock starting at 1.
//
// Execution flow:
// 1. Load the table and open the session
// 2. Execute steps, checking each against its expect clause
// 3. Read back the journal
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	platform, err := loadPlatform(scenario.Table)
	if err != nil {
		return nil, fmt.Errorf("failed to load table: %w", err)
	}
	// Parsed by validateScenario.
	codec, _ := caps.ParseCodec(scenario.Codec)
	domain, _ := caps.ParseDomain(scenario.Domain)

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store:  st,
		logger: logger,
		manager: engine.NewManager(platform,
			engine.WithLogger(logger),
			engine.WithIDGenerator(testutil.NewSequentialIDs("session")),
			engine.WithJournal(st),
			engine.WithClock(engine.NewClock()),
		),
	}
	h.session, err = h.manager.Open(codec, domain)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s %s session: %w", codec, domain, err)
	}
	defer h.manager.CloseAll()

	ctx := context.Background()
	result := NewResult()
	result.Session = h.session.ID()
	result.State = h.session.Snapshot()

	for i, step := range scenario.Steps {
		event, err := h.execute(ctx, i+1, step)
		result.AddTrace(event)
		checkStep(result, i+1, step, event, err)
		if snap := h.session.Snapshot(); snap != nil {
			result.State = snap
		}
	}

	result.Written = h.written
	result.Journal, err = h.store.ReadEvents(ctx, h.session.ID())
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, h.session.Graph()) {
		result.AddError(msg)
	}
	return result, nil
}

func loadPlatform(path string) (*caps.Platform, error) {
	if path == "" {
		return waipio()
	}
	return table.LoadFile(path)
}

// execute runs one step. The returned error is the engine's, for
// comparison against the step's expect clause.
func (h *Harness) execute(ctx context.Context, n int, step Step) (TraceEvent, error) {
	event := TraceEvent{Step: n, Op: step.Op()}
	var err error

	switch event.Op {
	case OpSet:
		// Checked by validateScenario.
		id, _ := caps.ParseID(step.Set)
		event.Cap = id
		var v int64
		if v, event.Value, err = h.parseValue(id, step.Value); err == nil {
			event.Changed, err = h.session.Set(id, v)
		}

	case OpSetExternal:
		event.External = step.External
		var id caps.ID
		if d, lookupErr := h.session.Graph().LookupExternal(step.External); lookupErr == nil {
			id = d.ID
		}
		event.Cap = id
		var v int64
		if v, event.Value, err = h.parseValue(id, step.Value); err == nil {
			event.Changed, err = h.session.SetExternal(step.External, v)
		}

	case OpStart:
		err = h.session.Start()

	case OpCommit:
		enc := testutil.NewRejectingEncoder(parseIDs(step.Commit.Reject)...)
		_, err = h.session.Commit(ctx, enc)
		h.written = append(h.written, enc.Caps()...)
		var ce *engine.CommitError
		if errors.As(err, &ce) {
			event.Rejected = ce.Cap
		}

	case OpClose:
		err = h.session.Close()
	}

	if err != nil {
		event.Changed = nil
		event.Error = caps.CodeOf(err)
		h.logger.Debug("step failed", "step", n, "op", event.Op, "error", err)
	}
	return event, err
}

// parseValue resolves a step value against the descriptor of id, returning
// the value and its display form. Without a descriptor only integer
// literals are accepted; the engine then reports the missing capability.
func (h *Harness) parseValue(id caps.ID, s string) (int64, string, error) {
	d, err := h.session.Graph().Lookup(id)
	if err != nil {
		v, perr := strconv.ParseInt(s, 0, 64)
		if perr != nil {
			return 0, s, err
		}
		return v, s, nil
	}
	v, err := d.ParseValue(s)
	if err != nil {
		return 0, s, err
	}
	return v, d.FormatValue(v), nil
}

// checkStep compares a step's outcome with its expect clause.
func checkStep(result *Result, n int, step Step, event TraceEvent, err error) {
	want := Expect{}
	if step.Expect != nil {
		want = *step.Expect
	}

	if err != nil {
		if want.Error == "" {
			result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", n, event.Op, err))
		} else if string(event.Error) != want.Error {
			result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %v", n, event.Op, want.Error, err))
		}
		return
	}
	if want.Error != "" {
		result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got success", n, event.Op, want.Error))
		return
	}
	if want.Changed != nil {
		if expected := parseIDs(want.Changed); !slices.Equal(expected, event.Changed) {
			result.AddError(fmt.Sprintf("step %d (%s): expected changed %v, got %v", n, event.Op, expected, event.Changed))
		}
	}
}
