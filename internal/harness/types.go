package harness

import (
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
)

// TraceEvent is the outcome of one scenario step.
type TraceEvent struct {
	Step     int       `json:"step"`
	Op       string    `json:"op"`
	Cap      caps.ID   `json:"cap,omitempty"`
	External uint32    `json:"external_id,omitempty"`
	Value    string    `json:"value,omitempty"`
	Changed  []caps.ID `json:"changed,omitempty"`
	Rejected caps.ID   `json:"rejected,omitempty"`
	Error    caps.Code `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step matched its expectation
	// and every assertion held.
	Pass bool `json:"pass"`

	// Session is the id of the session the scenario ran in.
	Session string `json:"session"`

	// Trace contains one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the last snapshot taken while the session was open.
	State []engine.CapState `json:"state,omitempty"`

	// Written lists the capabilities accepted by the encoder, over all
	// commits, in write order.
	Written []caps.ID `json:"written,omitempty"`

	// Journal holds the session's journaled events.
	Journal []engine.Event `json:"journal,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends the outcome of a step.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}

// Cap returns the final state of id.
func (r *Result) Cap(id caps.ID) (engine.CapState, bool) {
	for _, cs := range r.State {
		if cs.Cap == id {
			return cs, true
		}
	}
	return engine.CapState{}, false
}
