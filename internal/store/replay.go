package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/registry"
)

// ErrReplayDiverged is returned when re-running a journaled set request
// produces a different changed list than the one recorded.
var ErrReplayDiverged = errors.New("replay diverged")

// ReplayResult is the reconstructed state of one journaled session.
type ReplayResult struct {
	Session SessionRecord `json:"session"`

	// Sets and Writes count the replayed set requests and the journaled
	// property writes.
	Sets   int `json:"sets"`
	Writes int `json:"writes"`

	// Streaming reports whether the session was started.
	Streaming bool `json:"streaming"`

	// State holds every capability's value and bounds in ascending id
	// order. Dirty flags depend on commit boundaries the journal does not
	// record, so they are always false here.
	State []engine.CapState `json:"state"`
}

// Replay rebuilds a journaled session against platform p by opening a fresh
// session and re-running every set and start event in seq order. Each set
// must reproduce its recorded changed list, otherwise the result wraps
// ErrReplayDiverged.
//
// The journal is read-only during replay; the rebuilt session journals
// nowhere.
func (s *Store) Replay(ctx context.Context, p *caps.Platform, sessionID string, opts ...engine.Option) (*ReplayResult, error) {
	events, err := s.ReadEvents(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}
	if len(events) == 0 || events[0].Kind != engine.EventOpen {
		return nil, fmt.Errorf("replay %s: journal does not start with an open event", sessionID)
	}
	rec, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}

	g, err := registry.Build(p, rec.Codec, rec.Domain)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}
	opts = append(slices.Clone(opts), engine.WithIDGenerator(engine.NewFixedGenerator(sessionID)), engine.WithJournal(nil))
	sess, err := engine.Open(g, opts...)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", sessionID, err)
	}
	defer sess.Close()

	result := &ReplayResult{Session: rec}
	for _, e := range events[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		switch e.Kind {
		case engine.EventSet:
			var changed []caps.ID
			if e.External != 0 {
				changed, err = sess.SetExternal(e.External, e.Value)
			} else {
				changed, err = sess.Set(e.Cap, e.Value)
			}
			if err != nil {
				return nil, fmt.Errorf("replay %s: seq %d: %w", sessionID, e.Seq, err)
			}
			if !slices.Equal(changed, e.Changed) {
				return nil, fmt.Errorf("replay %s: seq %d set %s=%d changed %v, journal has %v: %w",
					sessionID, e.Seq, e.Cap, e.Value, changed, e.Changed, ErrReplayDiverged)
			}
			result.Sets++
		case engine.EventStart:
			if err := sess.Start(); err != nil {
				return nil, fmt.Errorf("replay %s: seq %d: %w", sessionID, e.Seq, err)
			}
			result.Streaming = true
		case engine.EventWrite:
			result.Writes++
		}
	}

	result.State = sess.Snapshot()
	for i := range result.State {
		result.State[i].Dirty = false
	}
	return result, nil
}
