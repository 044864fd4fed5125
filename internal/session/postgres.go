package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/handoff/integration/database/pg"
)

const (
	pgSelect = `SELECT id, user_id, history, intent, tags, status, qr_code, qr_expiry,
		kiosk_id, transferred_at, created_at, updated_at
		FROM sessions WHERE id = $1`

	// The CASE arms keep a status that already left 'active' unless the
	// incoming record carries the same one.
	pgUpsert = `INSERT INTO sessions (id, user_id, history, intent, tags, status, qr_code,
		qr_expiry, kiosk_id, transferred_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			history = EXCLUDED.history,
			intent = EXCLUDED.intent,
			tags = EXCLUDED.tags,
			qr_code = EXCLUDED.qr_code,
			qr_expiry = EXCLUDED.qr_expiry,
			updated_at = EXCLUDED.updated_at,
			status = CASE WHEN sessions.status IN ('active', EXCLUDED.status) THEN EXCLUDED.status ELSE sessions.status END,
			kiosk_id = CASE WHEN sessions.status IN ('active', EXCLUDED.status) THEN EXCLUDED.kiosk_id ELSE sessions.kiosk_id END,
			transferred_at = CASE WHEN sessions.status IN ('active', EXCLUDED.status)
				THEN EXCLUDED.transferred_at ELSE sessions.transferred_at END`

	pgDelete = `DELETE FROM sessions WHERE id = $1`
)

// PostgresStore keeps sessions in the sessions table. It joins a
// transaction carried on the context by pg.WithTx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore on pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	var (
		s             Session
		history       []byte
		intent        []byte
		qrExpiry      *time.Time
		transferredAt *time.Time
	)

	err := pg.Conn(ctx, p.pool).QueryRow(ctx, pgSelect, id).Scan(
		&s.ID, &s.UserID, &history, &intent, &s.Tags, &s.Status, &s.QRCode, &qrExpiry,
		&s.KioskID, &transferredAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}

	if err := json.Unmarshal(history, &s.History); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	if err := json.Unmarshal(intent, &s.Intent); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	if qrExpiry != nil {
		s.QRExpiry = qrExpiry.UTC()
	}
	if transferredAt != nil {
		s.TransferredAt = transferredAt.UTC()
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

func (p *PostgresStore) Save(ctx context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return ErrInvalidID
	}

	history, err := json.Marshal(nonNil(s.History))
	if err != nil {
		return err
	}
	intent, err := json.Marshal(s.Intent)
	if err != nil {
		return err
	}

	_, err = pg.Conn(ctx, p.pool).Exec(ctx, pgUpsert,
		s.ID, s.UserID, history, intent, nonNil(s.Tags), string(s.Status), s.QRCode,
		nullTime(s.QRExpiry), s.KioskID, nullTime(s.TransferredAt), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := pg.Conn(ctx, p.pool).Exec(ctx, pgDelete, id)
	if err != nil {
		return errors.Join(ErrStoreFailure, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
