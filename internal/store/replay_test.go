package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/firmware"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/table"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func waipio(t *testing.T) *caps.Platform {
	t.Helper()
	p, err := table.Waipio()
	if err != nil {
		t.Fatalf("table.Waipio() failed: %v", err)
	}
	return p
}

func TestReplay_RebuildsSession(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	p := waipio(t)
	m := engine.NewManager(p,
		engine.WithLogger(quiet),
		engine.WithJournal(s),
		engine.WithIDGenerator(engine.NewFixedGenerator("enc", "dec")),
	)

	enc, err := m.Open(caps.HEVC, caps.Encoder)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	dec, err := m.Open(caps.HEVC, caps.Decoder)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	steps := []struct {
		id caps.ID
		v  int64
	}{
		{caps.PixFmts, caps.PixFmtTP10C},
		{caps.MinFrameQP, -6},
		{caps.LTRCount, 2},
		{caps.BitrateMode, caps.BitrateModeCBR},
	}
	for _, st := range steps {
		if _, err := enc.Set(st.id, st.v); err != nil {
			t.Fatalf("Set(%s) failed: %v", st.id, err)
		}
	}
	conceal, err := dec.Graph().Lookup(caps.ConcealColor8Bit)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dec.SetExternal(conceal.ExternalID, 0x42); err != nil {
		t.Fatalf("SetExternal() failed: %v", err)
	}

	report, err := enc.Commit(ctx, firmware.Discard)
	if err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if err := enc.Start(); err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Set(caps.BitRate, 3_000_000); err != nil {
		t.Fatal(err)
	}
	want := enc.Snapshot()
	wantDec := dec.Snapshot()
	if err := m.CloseAll(); err != nil {
		t.Fatalf("CloseAll() failed: %v", err)
	}

	got, err := s.Replay(ctx, p, "enc", engine.WithLogger(quiet))
	if err != nil {
		t.Fatalf("Replay() failed: %v", err)
	}
	if got.Sets != len(steps)+1 || got.Writes != len(report.Writes) || !got.Streaming {
		t.Errorf("Replay() counts = sets %d writes %d streaming %v", got.Sets, got.Writes, got.Streaming)
	}
	if !got.Session.Closed() {
		t.Error("replayed session should be closed in the journal")
	}
	assertSameValues(t, got.State, want)

	gotDec, err := s.Replay(ctx, p, "dec", engine.WithLogger(quiet))
	if err != nil {
		t.Fatalf("Replay(dec) failed: %v", err)
	}
	assertSameValues(t, gotDec.State, wantDec)
}

func assertSameValues(t *testing.T, got, want []engine.CapState) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("state has %d caps, want %d", len(got), len(want))
	}
	for i := range want {
		w := want[i]
		w.Dirty = false
		if !reflect.DeepEqual(got[i], w) {
			t.Errorf("state[%d] = %+v, want %+v", i, got[i], w)
		}
	}
}

func TestReplay_DetectsDivergence(t *testing.T) {
	s := createTestStore(t)
	mustWrite(t, s,
		createOpenEvent("s1", 1),
		engine.Event{
			Seq:       2,
			SessionID: "s1",
			Kind:      engine.EventSet,
			Cap:       caps.LTRCount,
			Value:     2,
			Changed:   []caps.ID{caps.LTRCount},
		},
	)

	_, err := s.Replay(context.Background(), waipio(t), "s1", engine.WithLogger(quiet))
	if !errors.Is(err, ErrReplayDiverged) {
		t.Errorf("Replay() error = %v, want ErrReplayDiverged", err)
	}
}

func TestReplay_RejectedSetFails(t *testing.T) {
	s := createTestStore(t)
	mustWrite(t, s,
		createOpenEvent("s1", 1),
		engine.Event{Seq: 2, SessionID: "s1", Kind: engine.EventSet, Cap: caps.MBCyclesVSP, Value: 30},
	)

	_, err := s.Replay(context.Background(), waipio(t), "s1", engine.WithLogger(quiet))
	if !caps.IsCode(err, caps.CodeReadOnly) {
		t.Errorf("Replay() error = %v, want READ_ONLY", err)
	}
}

func TestReplay_UnknownSession(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.Replay(context.Background(), waipio(t), "missing"); err == nil {
		t.Error("expected error for unknown session")
	}
}

func TestStore_ResumeClockFromLastSeq(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	p := waipio(t)

	first := engine.NewManager(p, engine.WithLogger(quiet), engine.WithJournal(s),
		engine.WithIDGenerator(engine.NewFixedGenerator("first")))
	sess, err := first.Open(caps.H264, caps.Decoder)
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Close(); err != nil {
		t.Fatal(err)
	}

	last, err := s.LastSeq(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second := engine.NewManager(p, engine.WithLogger(quiet), engine.WithJournal(s),
		engine.WithClock(engine.NewClockAt(last)), engine.WithIDGenerator(engine.NewFixedGenerator("second")))
	if _, err := second.Open(caps.H264, caps.Decoder); err != nil {
		t.Fatalf("Open() after resume failed: %v", err)
	}

	sessions, err := s.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 || sessions[1].OpenedSeq != last+1 {
		t.Errorf("sessions = %+v", sessions)
	}
}
