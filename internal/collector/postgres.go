package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/WilliamAziza/Sign-In-App/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const signinsDDL = `
	CREATE TABLE IF NOT EXISTS attendance_signins (
		server_id       TEXT PRIMARY KEY,
		record_id       TEXT NOT NULL UNIQUE,
		employee_id     TEXT NOT NULL,
		name            TEXT NOT NULL,
		is_late         BOOLEAN NOT NULL,
		late_by_minutes INTEGER NOT NULL,
		signed_in_at    TIMESTAMPTZ NOT NULL,
		received_at     TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)
`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
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

	if _, err := p.Exec(ctx, signinsDDL); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ensure attendance_signins table: %w", err)
	}

	return &PostgresRepository{pool: p}, nil
}

func (r *PostgresRepository) Save(ctx context.Context, in models.StoredSignIn) (models.StoredSignIn, bool, error) {
	query := `
		INSERT INTO attendance_signins
			(server_id, record_id, employee_id, name, is_late, late_by_minutes, signed_in_at, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (record_id) DO NOTHING
		RETURNING server_id
	`
	var serverID string
	err := r.pool.QueryRow(ctx, query,
		in.ServerID,
		in.RecordID,
		in.EmployeeID,
		in.Name,
		in.IsLate,
		in.LateByMinutes,
		in.SignInTime,
		in.ReceivedAt,
	).Scan(&serverID)

	if err == nil {
		return in, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return models.StoredSignIn{}, false, fmt.Errorf("failed to insert sign-in %s: %w", in.RecordID, err)
	}

	// Conflict: this record id was stored by an earlier sync.
	existing, err := r.findByRecordID(ctx, in.RecordID)
	if err != nil {
		return models.StoredSignIn{}, false, err
	}
	return existing, false, nil
}

func (r *PostgresRepository) findByRecordID(ctx context.Context, recordID string) (models.StoredSignIn, error) {
	query := `
		SELECT server_id, record_id, employee_id, name, is_late, late_by_minutes, signed_in_at, received_at
		FROM attendance_signins
		WHERE record_id = $1
	`
	var s models.StoredSignIn
	err := r.pool.QueryRow(ctx, query, recordID).Scan(
		&s.ServerID,
		&s.RecordID,
		&s.EmployeeID,
		&s.Name,
		&s.IsLate,
		&s.LateByMinutes,
		&s.SignInTime,
		&s.ReceivedAt,
	)
	if err != nil {
		return models.StoredSignIn{}, fmt.Errorf("failed to load sign-in %s: %w", recordID, err)
	}
	return s, nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]models.StoredSignIn, error) {
	query := `
		SELECT server_id, record_id, employee_id, name, is_late, late_by_minutes, signed_in_at, received_at
		FROM attendance_signins
		ORDER BY received_at DESC, server_id DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sign-ins: %w", err)
	}
	defer rows.Close()

	var out []models.StoredSignIn
	for rows.Next() {
		var s models.StoredSignIn
		if err := rows.Scan(
			&s.ServerID,
			&s.RecordID,
			&s.EmployeeID,
			&s.Name,
			&s.IsLate,
			&s.LateByMinutes,
			&s.SignInTime,
			&s.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sign-in: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}
