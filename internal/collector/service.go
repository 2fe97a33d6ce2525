// Package collector is the remote side of the kiosk sync protocol: it stores
// submitted sign-ins idempotently and acknowledges them by record id.
package collector

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/models"
	"github.com/WilliamAziza/Sign-In-App/pkg/metrics"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200

	// DefaultPublishBudget bounds how long one batch may spend announcing
	// events, so a slow broker cannot push the reply past the kiosk's timeout.
	DefaultPublishBudget = 10 * time.Second
)

// Repository stores sign-ins keyed by the kiosk-assigned record id.
// Save must be idempotent: a record id seen before returns the row already
// stored and created=false.
type Repository interface {
	Save(ctx context.Context, in models.StoredSignIn) (stored models.StoredSignIn, created bool, err error)
	ListRecent(ctx context.Context, limit int) ([]models.StoredSignIn, error)
}

// Publisher announces newly stored sign-ins downstream.
type Publisher interface {
	PublishSignIn(ctx context.Context, ev models.SignInEvent) error
}

type Service struct {
	repo     Repository
	pub      Publisher
	logger   *slog.Logger
	maxBatch int
	budget   time.Duration
	clock    func() time.Time

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

type Option func(*Service)

// WithPublishBudget sets the deadline shared by all publishes of one batch.
// Events still unpublished when it expires are counted as publish failures.
func WithPublishBudget(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.budget = d
		}
	}
}

func NewService(repo Repository, pub Publisher, maxBatch int, l *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		pub:      pub,
		logger:   l,
		maxBatch: maxBatch,
		budget:   DefaultPublishBudget,
		clock:    time.Now,
		entropy:  ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) newServerID(t time.Time) string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// Accept stores every valid record of batch and acknowledges the ids that are
// durably held. Invalid records and records that failed to store are left out
// of SyncedIDs so the kiosk keeps them.
func (s *Service) Accept(ctx context.Context, batch []models.AttendanceRecord) (models.SyncAck, error) {
	if len(batch) > s.maxBatch {
		return models.SyncAck{}, ErrTooLarge(fmt.Sprintf("batch of %d exceeds limit of %d records", len(batch), s.maxBatch))
	}

	metrics.CollectorBatchSize.Observe(float64(len(batch)))
	start := time.Now()

	synced := make([]models.Identifier, 0, len(batch))
	var created []models.StoredSignIn
	var valid, failed int

	for _, rec := range batch {
		l := s.logger.With("record_id", rec.ID, "employee_id", rec.EmployeeID)

		if err := validate(rec); err != nil {
			l.Warn("Rejected invalid sign-in record", "reason", err)
			metrics.CollectorRecords.WithLabelValues("invalid").Inc()
			continue
		}
		valid++

		now := s.clock().UTC()
		stored, isNew, err := s.repo.Save(ctx, models.StoredSignIn{
			ServerID:      s.newServerID(now),
			RecordID:      strings.TrimSpace(rec.ID),
			EmployeeID:    strings.TrimSpace(rec.EmployeeID),
			Name:          strings.TrimSpace(rec.Name),
			IsLate:        rec.IsLate,
			LateByMinutes: rec.LateByMinutes,
			SignInTime:    rec.SignInTime,
			ReceivedAt:    now,
		})
		if err != nil {
			l.Error("Failed to store sign-in", "error", err)
			metrics.CollectorRecords.WithLabelValues("storage_error").Inc()
			failed++
			continue
		}

		synced = append(synced, models.Identifier(rec.ID))
		metrics.CollectorRecords.WithLabelValues("accepted").Inc()

		if !isNew {
			l.Debug("Duplicate submission acknowledged", "server_id", stored.ServerID)
			continue
		}
		created = append(created, stored)
	}

	s.announceAll(ctx, created)

	s.logger.Info("Batch cycle telemetry",
		"count", len(batch),
		"accepted", len(synced),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if valid > 0 && failed == valid {
		return models.SyncAck{Success: false, Message: "storage unavailable"}, nil
	}

	return models.SyncAck{
		Success:   true,
		SyncedIDs: synced,
		Message:   fmt.Sprintf("accepted %d of %d", len(synced), len(batch)),
	}, nil
}

// announceAll publishes once every record is committed, under one shared
// deadline. A failure here never unaccepts a record; consumers can rebuild
// from the store.
func (s *Service) announceAll(ctx context.Context, stored []models.StoredSignIn) {
	if len(stored) == 0 {
		return
	}

	pctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	for i, row := range stored {
		if pctx.Err() != nil {
			skipped := len(stored) - i
			s.logger.Warn("Publish budget exhausted, events not announced", "skipped", skipped, "budget", s.budget)
			metrics.PublishFailures.Add(float64(skipped))
			return
		}

		ev := models.SignInEvent{
			EventID:       uuid.NewString(),
			ServerID:      row.ServerID,
			RecordID:      row.RecordID,
			EmployeeID:    row.EmployeeID,
			Name:          row.Name,
			IsLate:        row.IsLate,
			LateByMinutes: row.LateByMinutes,
			SignInTime:    row.SignInTime,
			Timestamp:     s.clock().UTC(),
		}
		if err := s.pub.PublishSignIn(pctx, ev); err != nil {
			s.logger.Warn("Sign-in stored but event publish failed", "record_id", row.RecordID, "server_id", row.ServerID, "error", err)
			metrics.PublishFailures.Inc()
		}
	}
}

// List returns the most recently received sign-ins.
func (s *Service) List(ctx context.Context, limit int) ([]models.StoredSignIn, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	rows, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list sign-ins", "error", err)
		return nil, ErrUnavailable("sign-in store unavailable")
	}
	if rows == nil {
		rows = []models.StoredSignIn{}
	}
	return rows, nil
}

func validate(rec models.AttendanceRecord) error {
	switch {
	case strings.TrimSpace(rec.ID) == "":
		return ErrInvalid("id is required")
	case strings.TrimSpace(rec.EmployeeID) == "":
		return ErrInvalid("employeeId is required")
	case strings.TrimSpace(rec.Name) == "":
		return ErrInvalid("name is required")
	case rec.SignInTime.IsZero():
		return ErrInvalid("signInTime is required")
	case rec.LateByMinutes < 0:
		return ErrInvalid("lateByMinutes must not be negative")
	}
	return nil
}
