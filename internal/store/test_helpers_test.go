package store

import (
	"path/filepath"
	"testing"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createOpenEvent creates the first event of a session.
func createOpenEvent(sessionID string, seq int64) engine.Event {
	return engine.Event{
		Seq:       seq,
		SessionID: sessionID,
		Kind:      engine.EventOpen,
		Codec:     caps.H264,
		Domain:    caps.Encoder,
	}
}

// createWriteEvent creates a write of a four byte payload.
func createWriteEvent(sessionID string, seq int64, id caps.ID, hw uint32, v uint32) engine.Event {
	return engine.Event{
		Seq:       seq,
		SessionID: sessionID,
		Kind:      engine.EventWrite,
		Cap:       id,
		Value:     int64(v),
		Property: &caps.EncodedProperty{
			Cap:          id,
			HWPropertyID: hw,
			Port:         caps.PortOutput,
			PayloadType:  caps.PayloadU32,
			Payload:      caps.U32Payload(v),
		},
	}
}

func mustWrite(t *testing.T, s *Store, events ...engine.Event) {
	t.Helper()
	for _, e := range events {
		if err := s.Record(e); err != nil {
			t.Fatalf("Record(seq %d) failed: %v", e.Seq, err)
		}
	}
}
