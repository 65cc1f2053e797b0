package store

import (
	"context"
	"testing"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
)

func TestWriteEvent_OpenCreatesSession(t *testing.T) {
	s := createTestStore(t)
	mustWrite(t, s, createOpenEvent("s1", 1))

	var codec, domain string
	var opened int64
	err := s.db.QueryRow("SELECT codec, domain, opened_seq FROM sessions WHERE id = 's1'").Scan(&codec, &domain, &opened)
	if err != nil {
		t.Fatalf("session row missing: %v", err)
	}
	if codec != "h264" || domain != "enc" || opened != 1 {
		t.Errorf("session row = (%q, %q, %d)", codec, domain, opened)
	}
}

func TestWriteEvent_SetStoresChangedByName(t *testing.T) {
	s := createTestStore(t)
	mustWrite(t, s,
		createOpenEvent("s1", 1),
		engine.Event{
			Seq:       2,
			SessionID: "s1",
			Kind:      engine.EventSet,
			Cap:       caps.BitrateMode,
			Value:     caps.BitrateModeCBR,
			Changed:   []caps.ID{caps.BitrateMode, caps.LTRCount},
		},
	)

	var capName, changed string
	err := s.db.QueryRow("SELECT cap, changed FROM events WHERE seq = 2").Scan(&capName, &changed)
	if err != nil {
		t.Fatalf("event row missing: %v", err)
	}
	if capName != "BITRATE_MODE" {
		t.Errorf("cap = %q", capName)
	}
	if changed != `["BITRATE_MODE","LTR_COUNT"]` {
		t.Errorf("changed = %s", changed)
	}
}

func TestWriteEvent_DuplicateSeqFails(t *testing.T) {
	s := createTestStore(t)
	mustWrite(t, s, createOpenEvent("s1", 1))

	err := s.Record(engine.Event{Seq: 1, SessionID: "s1", Kind: engine.EventStart})
	if err == nil {
		t.Fatal("expected duplicate seq to fail")
	}
}

func TestWriteEvent_UnknownSessionFails(t *testing.T) {
	s := createTestStore(t)

	err := s.Record(engine.Event{Seq: 1, SessionID: "ghost", Kind: engine.EventStart})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestWriteEvent_WriteStoresPayload(t *testing.T) {
	s := createTestStore(t)
	mustWrite(t, s,
		createOpenEvent("s1", 1),
		createWriteEvent("s1", 2, caps.BitRate, 0x0300000a, 8_000_000),
	)

	var hw, port, payloadType int64
	var payload []byte
	err := s.db.QueryRow(
		"SELECT hw_property_id, port, payload_type, payload FROM property_writes WHERE seq = 2",
	).Scan(&hw, &port, &payloadType, &payload)
	if err != nil {
		t.Fatalf("property write missing: %v", err)
	}
	if hw != 0x0300000a || port != int64(caps.PortOutput) || payloadType != int64(caps.PayloadU32) {
		t.Errorf("row = (%#x, %d, %d)", hw, port, payloadType)
	}
	if string(payload) != string(caps.U32Payload(8_000_000)) {
		t.Errorf("payload = %x", payload)
	}
}

func TestWriteEvent_WriteWithoutPropertyRollsBack(t *testing.T) {
	s := createTestStore(t)
	mustWrite(t, s, createOpenEvent("s1", 1))

	err := s.Record(engine.Event{Seq: 2, SessionID: "s1", Kind: engine.EventWrite, Cap: caps.BitRate})
	if err == nil {
		t.Fatal("expected error for write without property")
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM events WHERE seq = 2").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("event row survived rollback")
	}
}

func TestWriteEvent_CloseStampsSession(t *testing.T) {
	s := createTestStore(t)
	mustWrite(t, s,
		createOpenEvent("s1", 1),
		engine.Event{Seq: 5, SessionID: "s1", Kind: engine.EventClose},
	)

	rec, err := s.ReadSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ReadSession() failed: %v", err)
	}
	if !rec.Closed() || rec.ClosedSeq != 5 {
		t.Errorf("session = %+v, want closed at 5", rec)
	}
}
