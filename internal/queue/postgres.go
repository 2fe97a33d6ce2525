package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/WilliamAziza/Sign-In-App/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const kioskStorageDDL = `
	CREATE TABLE IF NOT EXISTS kiosk_storage (
		key        TEXT PRIMARY KEY,
		value      JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
`

// PostgresBackend stores the queue under one key of a key/value table, for
// kiosks that run next to a local Postgres instead of writing files.
type PostgresBackend struct {
	pool *pgxpool.Pool
	key  string
}

func NewPostgresBackend(ctx context.Context, connString, key string) (*PostgresBackend, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("postgres not responding: %w", err)
	}

	if _, err := p.Exec(ctx, kioskStorageDDL); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ensure kiosk_storage table: %w", err)
	}

	return &PostgresBackend{pool: p, key: key}, nil
}

func (b *PostgresBackend) Load(ctx context.Context) ([]models.AttendanceRecord, error) {
	var raw []byte
	err := b.pool.QueryRow(ctx, `SELECT value FROM kiosk_storage WHERE key = $1`, b.key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load key %s: %w", b.key, err)
	}

	var records []models.AttendanceRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("corrupt value under key %s: %w", b.key, err)
	}
	return records, nil
}

// Update locks the key's row for the whole transaction. The row is created
// first so there is always something to lock, even for an empty queue.
func (b *PostgresBackend) Update(ctx context.Context, fn UpdateFunc) error {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO kiosk_storage (key, value) VALUES ($1, '[]'::jsonb)
		ON CONFLICT (key) DO NOTHING
	`, b.key); err != nil {
		return fmt.Errorf("failed to seed key %s: %w", b.key, err)
	}

	var raw []byte
	if err := tx.QueryRow(ctx,
		`SELECT value FROM kiosk_storage WHERE key = $1 FOR UPDATE`, b.key,
	).Scan(&raw); err != nil {
		return fmt.Errorf("failed to lock key %s: %w", b.key, err)
	}

	var current []models.AttendanceRecord
	if err := json.Unmarshal(raw, &current); err != nil {
		return fmt.Errorf("corrupt value under key %s: %w", b.key, err)
	}

	next, err := fn(current)
	if err != nil || next == nil {
		return err
	}

	body, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE kiosk_storage SET value = $2::jsonb, updated_at = CURRENT_TIMESTAMP WHERE key = $1`,
		b.key, string(body),
	); err != nil {
		return fmt.Errorf("failed to save key %s: %w", b.key, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit key %s: %w", b.key, err)
	}
	return nil
}

func (b *PostgresBackend) Close() {
	b.pool.Close()
}
