package collector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/models"
	"github.com/WilliamAziza/Sign-In-App/pkg/encoding"

	_ "github.com/nakagami/firebirdsql"
)

const firebirdTimeLayout = "2006-01-02 15:04:05"

// Firebird 2.5 has no CREATE TABLE IF NOT EXISTS; EnsureSchema checks
// RDB$RELATIONS first. NAME is a WIN1252 column shared with the legacy HR
// application, so connect with charset NONE and pass encoded bytes.
const firebirdSigninsDDL = `
	CREATE TABLE ATTENDANCE_SIGNINS (
		SERVER_ID       VARCHAR(26) NOT NULL PRIMARY KEY,
		RECORD_ID       VARCHAR(64) NOT NULL UNIQUE,
		EMPLOYEE_ID     VARCHAR(64) NOT NULL,
		NAME            VARCHAR(120) CHARACTER SET WIN1252 NOT NULL,
		IS_LATE         SMALLINT NOT NULL,
		LATE_BY_MINUTES INTEGER NOT NULL,
		SIGNED_IN_AT    TIMESTAMP NOT NULL,
		RECEIVED_AT     TIMESTAMP NOT NULL
	)
`

// FirebirdRepository stores sign-ins in the branch's legacy Firebird database.
// Timestamps are stored as UTC wall time.
type FirebirdRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewFirebirdRepository(connString string, logger *slog.Logger) (*FirebirdRepository, error) {
	db, err := sql.Open("firebirdsql", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open firebird connection: %w", err)
	}

	// Legacy servers cope badly with many attachments
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("firebird ping failed: %w", err)
	}

	r := &FirebirdRepository{db: db, logger: logger}
	if err := r.EnsureSchema(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Connected to Firebird successfully", "dialect", 3)
	return r, nil
}

func (r *FirebirdRepository) EnsureSchema(ctx context.Context) error {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM RDB$RELATIONS WHERE RDB$RELATION_NAME = 'ATTENDANCE_SIGNINS'`,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to inspect firebird schema: %w", err)
	}
	if n > 0 {
		return nil
	}

	if _, err := r.db.ExecContext(ctx, firebirdSigninsDDL); err != nil {
		return fmt.Errorf("failed to create ATTENDANCE_SIGNINS: %w", err)
	}
	r.logger.Info("Created ATTENDANCE_SIGNINS table")
	return nil
}

func (r *FirebirdRepository) Save(ctx context.Context, in models.StoredSignIn) (models.StoredSignIn, bool, error) {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(opCtx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return models.StoredSignIn{}, false, fmt.Errorf("failed to start transaction: %w", err)
	}
	// no-op once committed
	defer tx.Rollback()

	existing, found, err := r.findByRecordID(opCtx, tx, in.RecordID)
	if err != nil {
		return models.StoredSignIn{}, false, err
	}
	if found {
		return existing, false, tx.Commit()
	}

	insert := `
		INSERT INTO ATTENDANCE_SIGNINS
			(SERVER_ID, RECORD_ID, EMPLOYEE_ID, NAME, IS_LATE, LATE_BY_MINUTES, SIGNED_IN_AT, RECEIVED_AT)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(opCtx, insert,
		in.ServerID,
		in.RecordID,
		in.EmployeeID,
		encoding.FromUTF8(in.Name),
		boolToSmallint(in.IsLate),
		in.LateByMinutes,
		in.SignInTime.UTC().Format(firebirdTimeLayout),
		in.ReceivedAt.UTC().Format(firebirdTimeLayout),
	)
	if err != nil {
		if isUniqueViolation(err) {
			// another kiosk request stored the same record id first
			r.logger.Warn("Duplicate record id race detected", "record_id", in.RecordID)
			tx.Rollback()
			return r.loadExisting(ctx, in.RecordID)
		}
		return models.StoredSignIn{}, false, fmt.Errorf("failed to insert sign-in %s: %w", in.RecordID, err)
	}

	if err := tx.Commit(); err != nil {
		return models.StoredSignIn{}, false, fmt.Errorf("commit failed: %w", err)
	}
	return in, true, nil
}

func (r *FirebirdRepository) loadExisting(ctx context.Context, recordID string) (models.StoredSignIn, bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted, ReadOnly: true})
	if err != nil {
		return models.StoredSignIn{}, false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	existing, found, err := r.findByRecordID(ctx, tx, recordID)
	if err != nil {
		return models.StoredSignIn{}, false, err
	}
	if !found {
		return models.StoredSignIn{}, false, fmt.Errorf("sign-in %s vanished after unique violation", recordID)
	}
	return existing, false, nil
}

func (r *FirebirdRepository) findByRecordID(ctx context.Context, tx *sql.Tx, recordID string) (models.StoredSignIn, bool, error) {
	query := `
		SELECT SERVER_ID, RECORD_ID, EMPLOYEE_ID, NAME, IS_LATE, LATE_BY_MINUTES, SIGNED_IN_AT, RECEIVED_AT
		FROM ATTENDANCE_SIGNINS
		WHERE RECORD_ID = ?
	`
	s, err := scanFirebirdRow(tx.QueryRowContext(ctx, query, recordID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.StoredSignIn{}, false, nil
	}
	if err != nil {
		return models.StoredSignIn{}, false, fmt.Errorf("failed to look up sign-in %s: %w", recordID, err)
	}
	return s, true, nil
}

func (r *FirebirdRepository) ListRecent(ctx context.Context, limit int) ([]models.StoredSignIn, error) {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT FIRST %d SERVER_ID, RECORD_ID, EMPLOYEE_ID, NAME, IS_LATE, LATE_BY_MINUTES, SIGNED_IN_AT, RECEIVED_AT
		FROM ATTENDANCE_SIGNINS
		ORDER BY RECEIVED_AT DESC, SERVER_ID DESC
	`, limit)

	rows, err := r.db.QueryContext(opCtx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sign-ins: %w", err)
	}
	defer rows.Close()

	var out []models.StoredSignIn
	for rows.Next() {
		s, err := scanFirebirdRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sign-in: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *FirebirdRepository) Close() error {
	r.logger.Info("Closing Firebird connection pool")
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFirebirdRow(row rowScanner) (models.StoredSignIn, error) {
	var (
		s                  models.StoredSignIn
		name               []byte
		late               int16
		signedIn, received time.Time
	)
	if err := row.Scan(&s.ServerID, &s.RecordID, &s.EmployeeID, &name, &late, &s.LateByMinutes, &signedIn, &received); err != nil {
		return models.StoredSignIn{}, err
	}
	s.ServerID = strings.TrimSpace(s.ServerID)
	s.RecordID = strings.TrimSpace(s.RecordID)
	s.EmployeeID = strings.TrimSpace(s.EmployeeID)
	s.Name = encoding.ToUTF8(name)
	s.IsLate = late != 0
	s.SignInTime = asUTC(signedIn)
	s.ReceivedAt = asUTC(received)
	return s, nil
}

// asUTC reinterprets a zone-less Firebird TIMESTAMP as the UTC wall time it
// was written as.
func asUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func boolToSmallint(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isc_unique_key_violation; foreign key and check violations share the
// "violation of" prefix and must not match.
const gdsUniqueKeyViolation = "335544665"

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "violation of primary or unique key constraint") ||
		strings.Contains(msg, gdsUniqueKeyViolation)
}
