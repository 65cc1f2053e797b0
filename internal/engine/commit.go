package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/firmware"
)

// CommitReport describes one Commit call. On a partial commit it covers the
// capabilities handled before the failure.
type CommitReport struct {
	SessionID string                 `json:"session_id"`
	Writes    []caps.EncodedProperty `json:"writes"`
	Committed []caps.ID              `json:"committed"`
	Internal  []caps.ID              `json:"internal"`
}

// Commit pushes every dirty capability to enc in commit order.
//
// Capabilities without a firmware property, and those whose set strategy
// needs no write in the current configuration, are cleared without a
// write. The first failure stops the pipeline with a *CommitError; writes
// already accepted stay applied and clean, the rest stay dirty.
func (s *Session) Commit(ctx context.Context, enc firmware.PropertyEncoder) (*CommitReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, closedError(s.id)
	}

	report := &CommitReport{SessionID: s.id}
	dirty := s.dirty()
	for i, id := range dirty {
		d, err := s.graph.Lookup(id)
		if err != nil {
			return report, err
		}
		prop, err := s.encode(d)
		if err != nil {
			return report, s.stop(report, dirty[i:], caps.CodeConfigError, err)
		}
		if prop == nil {
			s.clear(id)
			report.Committed = append(report.Committed, id)
			report.Internal = append(report.Internal, id)
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, s.stop(report, dirty[i:], "", err)
		}
		if err := enc.WriteProperty(ctx, *prop); err != nil {
			return report, s.stop(report, dirty[i:], caps.CodePropertyRejected, err)
		}
		s.clear(id)
		report.Writes = append(report.Writes, *prop)
		report.Committed = append(report.Committed, id)
		if err := s.record(Event{Kind: EventWrite, Cap: id, Value: s.inst[id].Value, Property: prop}); err != nil {
			return report, fmt.Errorf("journal write %s: %w", id, err)
		}
	}

	s.logger.Info("session committed", "writes", len(report.Writes), "internal", len(report.Internal))
	return report, nil
}

// encode runs the set strategy of d. A nil property means nothing to write.
func (s *Session) encode(d *caps.Descriptor) (*caps.EncodedProperty, error) {
	if !d.Forwarded() {
		return nil, nil
	}
	fn := setters[d.Set]
	if fn == nil {
		return nil, caps.Errorf(caps.CodeConfigError, d.ID, "unknown set strategy %q", d.Set)
	}
	prop, err := fn(s.inst, s.graph.Codec(), s.inst[d.ID].Value)
	if err != nil || prop == nil {
		return nil, err
	}
	prop.Cap = d.ID
	prop.HWPropertyID = d.HWPropertyID
	prop.Port = d.Port()
	return prop, nil
}

func (s *Session) clear(id caps.ID) {
	i := s.inst[id]
	i.Dirty = false
	s.inst[id] = i
}

func (s *Session) stop(report *CommitReport, pending []caps.ID, code caps.Code, err error) error {
	ce := &CommitError{
		Cap:       pending[0],
		Code:      code,
		Committed: slices.Clone(report.Committed),
		Pending:   slices.Clone(pending),
		Err:       err,
	}
	s.logger.Warn("commit stopped", "cap", ce.Cap, "code", code, "error", err, "pending", len(ce.Pending))
	if jerr := s.record(Event{Kind: EventReject, Cap: ce.Cap, Value: s.inst[ce.Cap].Value, Err: err.Error()}); jerr != nil {
		return errors.Join(ce, fmt.Errorf("journal reject %s: %w", ce.Cap, jerr))
	}
	return ce
}
