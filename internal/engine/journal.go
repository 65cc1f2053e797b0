package engine

import (
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
)

// EventKind names a journal event.
type EventKind string

const (
	EventOpen   EventKind = "open"
	EventSet    EventKind = "set"
	EventStart  EventKind = "start"
	EventWrite  EventKind = "write"
	EventReject EventKind = "reject"
	EventClose  EventKind = "close"
)

// Event is one journal record. Fields that do not apply to Kind are zero.
type Event struct {
	Seq       int64                 `json:"seq"`
	SessionID string                `json:"session_id"`
	Kind      EventKind             `json:"kind"`
	Codec     caps.Codec            `json:"codec,omitempty"`
	Domain    caps.Domain           `json:"domain,omitempty"`
	Cap       caps.ID               `json:"cap,omitempty"`
	External  uint32                `json:"external_id,omitempty"`
	Value     int64                 `json:"value,omitempty"`
	Changed   []caps.ID             `json:"changed,omitempty"`
	Property  *caps.EncodedProperty `json:"property,omitempty"`
	Err       string                `json:"error,omitempty"`
}

// Journal records session events. It is called with the session lock held,
// after the event's state change has been computed.
//
// A failing Record on open or set aborts the operation and leaves the
// session unchanged. A failing Record after a property write stops the
// commit; the write itself has already happened.
type Journal interface {
	Record(e Event) error
}
