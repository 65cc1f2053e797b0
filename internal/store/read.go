package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/caps"
	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
)

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	ID        string      `json:"id"`
	Codec     caps.Codec  `json:"codec"`
	Domain    caps.Domain `json:"domain"`
	OpenedSeq int64       `json:"opened_seq"`
	ClosedSeq int64       `json:"closed_seq,omitempty"`
}

// Closed reports whether a close event was journaled for the session.
func (r SessionRecord) Closed() bool { return r.ClosedSeq != 0 }

// ReadSession retrieves a single session by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, codec, domain, opened_seq, closed_seq
		FROM sessions
		WHERE id = ?
	`, id)
	return scanSession(row)
}

// ListSessions returns every journaled session in the order it was opened.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ListSessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, codec, domain, opened_seq, closed_seq
		FROM sessions
		ORDER BY opened_seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []SessionRecord{}
	for rows.Next() {
		r, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (SessionRecord, error) {
	var (
		r             SessionRecord
		codec, domain string
		closed        sql.NullInt64
	)
	if err := row.Scan(&r.ID, &codec, &domain, &r.OpenedSeq, &closed); err != nil {
		return SessionRecord{}, err
	}
	var err error
	if r.Codec, err = caps.ParseCodec(codec); err != nil {
		return SessionRecord{}, fmt.Errorf("session %s: %w", r.ID, err)
	}
	if r.Domain, err = caps.ParseDomain(domain); err != nil {
		return SessionRecord{}, fmt.Errorf("session %s: %w", r.ID, err)
	}
	r.ClosedSeq = closed.Int64
	return r, nil
}

// ReadEvents returns the events of one session ordered by seq. Open events
// carry the session's codec and domain; write events carry their property.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]engine.Event, error) {
	rec, err := s.ReadSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	writes, err := s.readWrites(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, session_id, kind, cap, external_id, value, changed, error
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []engine.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		switch e.Kind {
		case engine.EventOpen:
			e.Codec, e.Domain = rec.Codec, rec.Domain
		case engine.EventWrite:
			if p, ok := writes[e.Seq]; ok {
				e.Property = &p
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(row scanner) (engine.Event, error) {
	var (
		e            engine.Event
		kind, capStr string
		changed      string
		external     int64
	)
	if err := row.Scan(&e.Seq, &e.SessionID, &kind, &capStr, &external, &e.Value, &changed, &e.Err); err != nil {
		return engine.Event{}, fmt.Errorf("scan event: %w", err)
	}
	e.Kind = engine.EventKind(kind)
	e.External = uint32(external)

	var err error
	if e.Cap, err = parseCap(capStr); err != nil {
		return engine.Event{}, fmt.Errorf("event %d: %w", e.Seq, err)
	}
	if e.Changed, err = unmarshalChanged(changed); err != nil {
		return engine.Event{}, fmt.Errorf("event %d: %w", e.Seq, err)
	}
	return e, nil
}

// ReadWrites returns the accepted property writes of one session in commit
// order. Returns an empty slice (not nil) if there are none.
func (s *Store) ReadWrites(ctx context.Context, sessionID string) ([]caps.EncodedProperty, error) {
	rows, err := s.queryWrites(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []caps.EncodedProperty{}
	for rows.Next() {
		_, p, err := scanWrite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate property writes: %w", err)
	}
	return out, nil
}

func (s *Store) readWrites(ctx context.Context, sessionID string) (map[int64]caps.EncodedProperty, error) {
	rows, err := s.queryWrites(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64]caps.EncodedProperty)
	for rows.Next() {
		seq, p, err := scanWrite(rows)
		if err != nil {
			return nil, err
		}
		out[seq] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate property writes: %w", err)
	}
	return out, nil
}

func (s *Store) queryWrites(ctx context.Context, sessionID string) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, cap, hw_property_id, port, payload_type, payload
		FROM property_writes
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query property writes: %w", err)
	}
	return rows, nil
}

func scanWrite(row scanner) (int64, caps.EncodedProperty, error) {
	var (
		seq                   int64
		capStr                string
		hw, port, payloadType int64
		p                     caps.EncodedProperty
	)
	if err := row.Scan(&seq, &capStr, &hw, &port, &payloadType, &p.Payload); err != nil {
		return 0, caps.EncodedProperty{}, fmt.Errorf("scan property write: %w", err)
	}
	id, err := parseCap(capStr)
	if err != nil {
		return 0, caps.EncodedProperty{}, fmt.Errorf("property write %d: %w", seq, err)
	}
	p.Cap = id
	p.HWPropertyID = uint32(hw)
	p.Port = caps.Port(port)
	p.PayloadType = caps.PayloadType(payloadType)
	return seq, p, nil
}
