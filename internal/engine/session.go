package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/registry"
)

// State is the lifecycle phase of a session.
type State int

const (
	StateOpen State = iota
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Session owns the capability instances of one codec session.
//
// Thread-safety: every method is safe for concurrent use; they are
// serialized by one mutex per session.
type Session struct {
	mu      sync.Mutex
	id      string
	graph   *registry.Graph
	state   State
	inst    instances
	logger  *slog.Logger
	journal Journal
	clock   *Clock
	onClose func(*Session)
}

// Open creates a session over g. Every capability starts at its default
// with the descriptor's bounds, then one adjust pass over the whole graph in
// commit order makes the initial state consistent. Every instance starts
// dirty so the first Commit pushes the full configuration.
func Open(g *registry.Graph, opts ...Option) (*Session, error) {
	return open(g, newConfig(opts), nil)
}

func open(g *registry.Graph, c config, onClose func(*Session)) (*Session, error) {
	id := c.ids.Generate()
	s := &Session{
		id:      id,
		graph:   g,
		state:   StateOpen,
		logger:  c.logger.With("session", id),
		journal: c.journal,
		clock:   c.clock,
		onClose: onClose,
	}

	in := make(instances, g.Len())
	for _, capID := range g.IDs() {
		d, err := g.Lookup(capID)
		if err != nil {
			return nil, err
		}
		if d.Adjust != caps.AdjustNone && adjusters[d.Adjust] == nil {
			return nil, caps.Errorf(caps.CodeConfigError, capID, "unknown adjust strategy %q", d.Adjust)
		}
		if d.Set != caps.SetNone && setters[d.Set] == nil {
			return nil, caps.Errorf(caps.CodeConfigError, capID, "unknown set strategy %q", d.Set)
		}
		in[capID] = Instance{Value: d.Default, Bounds: d.Bounds(), Dirty: true}
	}
	for _, capID := range g.CommitOrder() {
		s.adjust(in, capID)
	}

	if err := s.record(Event{Kind: EventOpen, Codec: g.Codec(), Domain: g.Domain()}); err != nil {
		return nil, fmt.Errorf("journal open: %w", err)
	}
	s.inst = in
	s.logger.Info("session opened", "codec", g.Codec(), "domain", g.Domain(), "caps", g.Len())
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Graph returns the capability graph the session was opened on.
func (s *Session) Graph() *registry.Graph { return s.graph }

// State returns the lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Get returns the live state of id.
func (s *Session) Get(id caps.ID) (Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return Instance{}, closedError(s.id)
	}
	if _, err := s.graph.Lookup(id); err != nil {
		return Instance{}, err
	}
	return s.inst[id], nil
}

// Set requests id = v and returns every capability whose value or bounds
// changed, id first. Setting the current value changes nothing.
//
// Set is transactional: on any error the session is exactly as before.
func (s *Session) Set(id caps.ID, v int64) ([]caps.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set([]caps.ID{id}, 0, v)
}

// SetExternal resolves a control-framework id and sets every capability
// bound to it, in ascending id order, as one transaction.
func (s *Session) SetExternal(externalID uint32, v int64) ([]caps.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return nil, closedError(s.id)
	}
	ids := s.graph.Aliases(externalID)
	if len(ids) == 0 {
		_, err := s.graph.LookupExternal(externalID)
		return nil, err
	}
	return s.set(ids, externalID, v)
}

func (s *Session) set(ids []caps.ID, external uint32, v int64) ([]caps.ID, error) {
	if s.state == StateClosed {
		return nil, closedError(s.id)
	}

	next := s.inst
	copied := false
	var changed []caps.ID
	for _, id := range ids {
		if err := s.check(next, id, v); err != nil {
			return nil, err
		}
		cur := next[id]
		if cur.Value == v {
			continue
		}
		if !copied {
			next = next.clone()
			copied = true
		}
		cur.Value = v
		cur.Dirty = true
		next[id] = cur
		changed = appendNew(changed, id)

		more, visited, err := s.propagate(next, id)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("propagated", "cap", id, "visited", visited)
		for _, c := range more {
			changed = appendNew(changed, c)
		}
	}

	if err := s.record(Event{Kind: EventSet, Cap: ids[0], External: external, Value: v, Changed: changed}); err != nil {
		return nil, fmt.Errorf("journal set %s: %w", ids[0], err)
	}
	s.inst = next
	s.logger.Debug("capability set", "cap", ids[0], "value", v, "changed", changed)
	return changed, nil
}

// check validates a request in the order: unknown, read-only, streaming,
// range.
func (s *Session) check(in instances, id caps.ID, v int64) error {
	d, err := s.graph.Lookup(id)
	if err != nil {
		return err
	}
	if !d.Writable() {
		return caps.Errorf(caps.CodeReadOnly, id, "no set strategy")
	}
	if s.state == StateStreaming && !d.Flags.Has(caps.FlagDynamicAllowed) {
		return caps.Errorf(caps.CodeNotDynamicallyAllowed, id, "cannot change while streaming")
	}
	return d.Check(v, in[id].Bounds)
}

func appendNew(ids []caps.ID, id caps.ID) []caps.ID {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// Start moves the session to streaming. From then on only DYNAMIC_ALLOWED
// capabilities accept Set. Starting a streaming session is a no-op.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed:
		return closedError(s.id)
	case StateStreaming:
		return nil
	}
	if err := s.record(Event{Kind: EventStart}); err != nil {
		return fmt.Errorf("journal start: %w", err)
	}
	s.state = StateStreaming
	s.logger.Info("session streaming")
	return nil
}

// Close destroys the instances. Every later call except Close, ID, Graph,
// State and Snapshot fails with SESSION_CLOSED. Closing twice is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.inst = nil
	err := s.record(Event{Kind: EventClose})
	s.mu.Unlock()

	if s.onClose != nil {
		s.onClose(s)
	}
	s.logger.Info("session closed")
	if err != nil {
		return fmt.Errorf("journal close: %w", err)
	}
	return nil
}

// Snapshot returns the state of every capability in ascending id order.
// A closed session has none.
func (s *Session) Snapshot() []CapState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() []CapState {
	if s.inst == nil {
		return nil
	}
	out := make([]CapState, 0, len(s.inst))
	for _, id := range s.graph.IDs() {
		i := s.inst[id]
		out = append(out, CapState{Cap: id, Value: i.Value, Bounds: i.Bounds, Dirty: i.Dirty})
	}
	return out
}

// StateHash identifies the session's values, bounds and dirty flags.
// Two sessions with equal hashes commit the same configuration.
func (s *Session) StateHash() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return "", closedError(s.id)
	}
	return caps.Hash(caps.HashDomainState, struct {
		Codec  caps.Codec  `json:"codec"`
		Domain caps.Domain `json:"domain"`
		Caps   []CapState  `json:"caps"`
	}{s.graph.Codec(), s.graph.Domain(), s.snapshot()})
}

// Dirty returns the dirty capabilities in commit order.
func (s *Session) Dirty() []caps.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty()
}

func (s *Session) dirty() []caps.ID {
	var out []caps.ID
	for _, id := range s.graph.CommitOrder() {
		if s.inst[id].Dirty {
			out = append(out, id)
		}
	}
	return out
}

func (s *Session) record(e Event) error {
	if s.journal == nil {
		return nil
	}
	e.Seq = s.clock.Next()
	e.SessionID = s.id
	return s.journal.Record(e)
}
