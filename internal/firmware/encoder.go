package firmware

import (
	"context"
	"sync"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// PropertyEncoder accepts committed property writes. A non-nil error means
// the firmware declined the property; the caller stops at the first
// rejection.
type PropertyEncoder interface {
	WriteProperty(ctx context.Context, p caps.EncodedProperty) error
}

// EncoderFunc adapts a function to PropertyEncoder.
type EncoderFunc func(ctx context.Context, p caps.EncodedProperty) error

// WriteProperty calls f.
func (f EncoderFunc) WriteProperty(ctx context.Context, p caps.EncodedProperty) error {
	return f(ctx, p)
}

// Discard accepts every property and keeps nothing.
var Discard PropertyEncoder = EncoderFunc(func(context.Context, caps.EncodedProperty) error { return nil })

// Recorder keeps every accepted property in order.
//
// Thread-safety: Recorder is safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	props []caps.EncodedProperty
}

// WriteProperty appends p.
func (r *Recorder) WriteProperty(ctx context.Context, p caps.EncodedProperty) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.props = append(r.props, p)
	return nil
}

// Properties returns a copy of the accepted writes.
func (r *Recorder) Properties() []caps.EncodedProperty {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]caps.EncodedProperty(nil), r.props...)
}

// Caps returns the capability of every accepted write, in order.
func (r *Recorder) Caps() []caps.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]caps.ID, len(r.props))
	for i, p := range r.props {
		out[i] = p.Cap
	}
	return out
}
