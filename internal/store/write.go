package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/soez/android-vendor-qcom-opensource-video-driver/internal/engine"
)

// Record implements engine.Journal. The engine calls it with the session
// lock held, so it uses a background context.
func (s *Store) Record(e engine.Event) error {
	return s.WriteEvent(context.Background(), e)
}

// WriteEvent appends e to the journal in one transaction. Open events also
// create the session row, close events stamp it, and write events store the
// property payload.
//
// Sequence numbers are unique: writing a second event with a seq already in
// the journal is an error. Managers appending to an existing journal resume
// their clock from LastSeq.
func (s *Store) WriteEvent(ctx context.Context, e engine.Event) error {
	changed, err := marshalChanged(e.Changed)
	if err != nil {
		return fmt.Errorf("write event %d: %w", e.Seq, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write event %d: begin tx: %w", e.Seq, err)
	}
	defer tx.Rollback() // No-op if committed

	if e.Kind == engine.EventOpen {
		if err := insertSession(ctx, tx, e); err != nil {
			return fmt.Errorf("write event %d: %w", e.Seq, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events
		(seq, session_id, kind, cap, external_id, value, changed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Seq,
		e.SessionID,
		string(e.Kind),
		capName(e.Cap),
		e.External,
		e.Value,
		changed,
		e.Err,
	)
	if err != nil {
		return fmt.Errorf("write event %d: insert: %w", e.Seq, err)
	}

	switch e.Kind {
	case engine.EventWrite:
		if err := insertWrite(ctx, tx, e); err != nil {
			return fmt.Errorf("write event %d: %w", e.Seq, err)
		}
	case engine.EventClose:
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET closed_seq = ? WHERE id = ?`, e.Seq, e.SessionID); err != nil {
			return fmt.Errorf("write event %d: close session: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write event %d: commit: %w", e.Seq, err)
	}
	return nil
}

func insertSession(ctx context.Context, tx *sql.Tx, e engine.Event) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, codec, domain, opened_seq)
		VALUES (?, ?, ?, ?)
	`,
		e.SessionID,
		e.Codec.String(),
		e.Domain.String(),
		e.Seq,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func insertWrite(ctx context.Context, tx *sql.Tx, e engine.Event) error {
	if e.Property == nil {
		return fmt.Errorf("write event without property")
	}
	p := e.Property
	_, err := tx.ExecContext(ctx, `
		INSERT INTO property_writes
		(seq, session_id, cap, hw_property_id, port, payload_type, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		e.Seq,
		e.SessionID,
		capName(p.Cap),
		p.HWPropertyID,
		uint32(p.Port),
		uint32(p.PayloadType),
		p.Payload,
	)
	if err != nil {
		return fmt.Errorf("insert property write: %w", err)
	}
	return nil
}
