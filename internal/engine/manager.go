package engine

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/firmware"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/registry"
)

// Manager owns the open sessions of one platform and enforces the core
// session limit. All sessions share the manager's clock, logger and
// journal.
//
// Thread-safety: Manager is safe for concurrent use.
type Manager struct {
	registry *registry.Registry
	cfg      config

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager returns a manager for p.
func NewManager(p *caps.Platform, opts ...Option) *Manager {
	return &Manager{
		registry: registry.New(p),
		cfg:      newConfig(opts),
		sessions: make(map[string]*Session),
	}
}

// Registry returns the graph cache shared by all sessions.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// Open creates a session for (codec, domain). It fails with SESSION_LIMIT
// once MAX_SESSION_COUNT sessions are open, and with CONFIG_ERROR when the
// platform cannot build the graph.
func (m *Manager) Open(codec caps.Codec, domain caps.Domain) (*Session, error) {
	g, err := m.registry.Graph(codec, domain)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	limit := m.registry.Platform().Core.MaxSessionCount
	if int64(len(m.sessions)) >= limit {
		e := caps.Errorf(caps.CodeSessionLimit, caps.InvalidID, "%d of %d sessions open", len(m.sessions), limit)
		e.Details = map[string]string{"limit": fmt.Sprint(limit)}
		return nil, e
	}
	s, err := open(g, m.cfg, m.release)
	if err != nil {
		return nil, err
	}
	m.sessions[s.id] = s
	return s, nil
}

func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, s.id)
}

// Session returns an open session by id.
func (m *Manager) Session(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns the open sessions ordered by id.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *Session) int { return strings.Compare(a.id, b.id) })
	return out
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CommitAll commits every open session in parallel, each to the encoder
// encoderFor returns for it. Reports are keyed by session id and include
// partial reports of failed sessions. The first error cancels the context
// passed to the other commits.
func (m *Manager) CommitAll(ctx context.Context, encoderFor func(*Session) firmware.PropertyEncoder) (map[string]*CommitReport, error) {
	sessions := m.Sessions()
	reports := make([]*CommitReport, len(sessions))

	g, ctx := errgroup.WithContext(ctx)
	for i, s := range sessions {
		g.Go(func() error {
			r, err := s.Commit(ctx, encoderFor(s))
			reports[i] = r
			if err != nil {
				return fmt.Errorf("session %s: %w", s.id, err)
			}
			return nil
		})
	}
	err := g.Wait()

	out := make(map[string]*CommitReport, len(sessions))
	for i, s := range sessions {
		if reports[i] != nil {
			out[s.id] = reports[i]
		}
	}
	return out, err
}

// CloseAll closes every open session and returns the first error.
func (m *Manager) CloseAll() error {
	var first error
	for _, s := range m.Sessions() {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
