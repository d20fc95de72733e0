package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRecordStore persists finalized records in the intake_records
// table, one row per session. A re-finalized session (after a reset)
// replaces its row.
type PostgresRecordStore struct {
	db pgxDB
}

func NewPostgresRecordStore(db pgxDB) *PostgresRecordStore {
	if db == nil {
		panic("handoff: postgres pool cannot be nil")
	}
	return &PostgresRecordStore{db: db}
}

func (s *PostgresRecordStore) Deliver(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("handoff: marshal record: %w", err)
	}
	review := make([]string, len(rec.NeedsReview))
	for i, f := range rec.NeedsReview {
		review[i] = string(f)
	}

	query := `
		INSERT INTO intake_records (session_id, event_id, event_type, refiner, needs_review, record, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			event_type = EXCLUDED.event_type,
			refiner = EXCLUDED.refiner,
			needs_review = EXCLUDED.needs_review,
			record = EXCLUDED.record,
			finalized_at = EXCLUDED.finalized_at
	`
	if _, err := s.db.Exec(ctx, query,
		rec.SessionID, rec.EventID, rec.EventType, rec.Refiner, review, data, rec.FinalizedAt,
	); err != nil {
		return fmt.Errorf("handoff: insert intake record: %w", err)
	}
	return nil
}

// Load returns the stored record, or nil when none exists.
func (s *PostgresRecordStore) Load(ctx context.Context, sessionID string) (*Record, error) {
	var data []byte
	err := s.db.QueryRow(ctx, `SELECT record FROM intake_records WHERE session_id = $1`, sessionID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("handoff: select intake record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("handoff: unmarshal record: %w", err)
	}
	return &rec, nil
}

func (s *PostgresRecordStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM intake_records WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("handoff: delete intake record: %w", err)
	}
	return nil
}
