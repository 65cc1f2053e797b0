package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/firmware"
)

// RejectingEncoder accepts every property except those of the listed
// capabilities, recording what it accepts in a firmware.Recorder.
//
// Thread-safety: RejectingEncoder is safe for concurrent use.
type RejectingEncoder struct {
	firmware.Recorder

	mu     sync.Mutex
	reject map[caps.ID]bool
	tried  []caps.ID
}

// NewRejectingEncoder creates an encoder that rejects ids.
func NewRejectingEncoder(ids ...caps.ID) *RejectingEncoder {
	e := &RejectingEncoder{reject: make(map[caps.ID]bool, len(ids))}
	for _, id := range ids {
		e.reject[id] = true
	}
	return e
}

// WriteProperty rejects p if its capability is listed, otherwise records it.
func (e *RejectingEncoder) WriteProperty(ctx context.Context, p caps.EncodedProperty) error {
	e.mu.Lock()
	e.tried = append(e.tried, p.Cap)
	rejected := e.reject[p.Cap]
	e.mu.Unlock()

	if rejected {
		return fmt.Errorf("firmware rejected %s (hfi %#x)", p.Cap, p.HWPropertyID)
	}
	return e.Recorder.WriteProperty(ctx, p)
}

// Allow stops rejecting id, so a retried commit can succeed.
func (e *RejectingEncoder) Allow(id caps.ID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.reject, id)
}

// Tried returns every capability a write was attempted for, in order.
func (e *RejectingEncoder) Tried() []caps.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]caps.ID(nil), e.tried...)
}
