package testutil

import (
	"slices"
	"sync"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
)

// MemoryJournal keeps journal events in memory.
//
// FailOn makes Record fail for one event kind, for exercising the engine's
// rollback paths.
//
// Thread-safety: all methods are safe for concurrent use.
type MemoryJournal struct {
	mu     sync.Mutex
	events []engine.Event
	failOn engine.EventKind
	err    error
}

// NewMemoryJournal creates an empty journal that accepts every event.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// FailOn makes every later Record of kind return err.
func (j *MemoryJournal) FailOn(kind engine.EventKind, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.failOn, j.err = kind, err
}

// Record implements engine.Journal.
func (j *MemoryJournal) Record(e engine.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil && e.Kind == j.failOn {
		return j.err
	}
	j.events = append(j.events, e)
	return nil
}

// Events returns a copy of the recorded events in order.
func (j *MemoryJournal) Events() []engine.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.events)
}

// Kinds returns the kind of every recorded event in order.
func (j *MemoryJournal) Kinds() []engine.EventKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]engine.EventKind, len(j.events))
	for i, e := range j.events {
		out[i] = e.Kind
	}
	return out
}

// Reset drops every recorded event and clears FailOn.
func (j *MemoryJournal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = nil
	j.failOn, j.err = "", nil
}
