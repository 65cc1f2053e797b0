package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/registry"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/table"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func waipio(t *testing.T) *caps.Platform {
	t.Helper()
	p, err := table.Waipio()
	require.NoError(t, err)
	return p
}

func graph(t *testing.T, codec caps.Codec, domain caps.Domain) *registry.Graph {
	t.Helper()
	g, err := registry.Build(waipio(t), codec, domain)
	require.NoError(t, err)
	return g
}

func openSession(t *testing.T, codec caps.Codec, domain caps.Domain, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(quiet), WithIDGenerator(NewFixedGenerator("session-1"))}, opts...)
	s, err := Open(graph(t, codec, domain), opts...)
	require.NoError(t, err)
	return s
}

func get(t *testing.T, s *Session, id caps.ID) Instance {
	t.Helper()
	i, err := s.Get(id)
	require.NoError(t, err)
	return i
}

func mustSet(t *testing.T, s *Session, id caps.ID, v int64) []caps.ID {
	t.Helper()
	changed, err := s.Set(id, v)
	require.NoError(t, err)
	return changed
}

func hash(t *testing.T, s *Session) string {
	t.Helper()
	h, err := s.StateHash()
	require.NoError(t, err)
	return h
}

// memJournal keeps events in memory and can be told to fail one kind.
type memJournal struct {
	mu     sync.Mutex
	events []Event
	failOn EventKind
}

var errJournal = errors.New("journal unavailable")

func (j *memJournal) Record(e Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if e.Kind == j.failOn {
		return errJournal
	}
	j.events = append(j.events, e)
	return nil
}

func (j *memJournal) kinds() []EventKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]EventKind, len(j.events))
	for i, e := range j.events {
		out[i] = e.Kind
	}
	return out
}

// reader is a ValueReader over plain values.
type reader map[caps.ID]int64

func (r reader) Value(id caps.ID) (int64, bool) {
	v, ok := r[id]
	return v, ok
}

// fakeEdges is a hand-built graph for propagation order tests. Parents are
// derived from children.
type fakeEdges map[caps.ID][]caps.ID

func (f fakeEdges) Children(id caps.ID) []caps.ID { return f[id] }

func (f fakeEdges) Parents(id caps.ID) []caps.ID {
	var out []caps.ID
	for p, children := range f {
		for _, c := range children {
			if c == id {
				out = append(out, p)
			}
		}
	}
	return out
}

func bounds(min, max int64) caps.Bounds { return caps.Bounds{Min: min, Max: max} }

func fmtIDs(ids []caps.ID) string { return fmt.Sprint(ids) }
