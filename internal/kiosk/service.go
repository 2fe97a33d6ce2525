// Package kiosk wires the sign-in flow: build the record, persist it, then
// try to sync if the network looks usable.
package kiosk

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/attendance"
	"github.com/WilliamAziza/Sign-In-App/internal/connectivity"
	"github.com/WilliamAziza/Sign-In-App/internal/models"
	"github.com/WilliamAziza/Sign-In-App/internal/syncer"
	"github.com/WilliamAziza/Sign-In-App/pkg/metrics"

	"github.com/google/uuid"
)

type Queue interface {
	Append(ctx context.Context, rec models.AttendanceRecord) error
	ReadAll(ctx context.Context) []models.AttendanceRecord
}

type Syncer interface {
	Sync(ctx context.Context) syncer.Outcome
}

type Option func(*Service)

// WithClock overrides the wall clock used to stamp sign-ins.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDGenerator overrides how queued records get their identifier.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

type Service struct {
	queue  Queue
	probe  connectivity.Probe
	syncer Syncer
	clock  func() time.Time
	newID  func() string
	logger *slog.Logger
}

func NewService(q Queue, p connectivity.Probe, s Syncer, l *slog.Logger, opts ...Option) *Service {
	svc := &Service{
		queue:  q,
		probe:  p,
		syncer: s,
		clock:  time.Now,
		newID:  uuid.NewString,
		logger: l,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// SignInResult describes a recorded sign-in. Sync is nil when the probe said
// the kiosk was offline.
type SignInResult struct {
	Record models.AttendanceRecord
	Online bool
	Sync   *syncer.Outcome
}

func (r SignInResult) Message() string {
	msg := "Sign-in recorded locally"
	if r.Record.IsLate {
		msg += " (" + attendance.Status(r.Record) + ")"
	}
	if r.Sync == nil {
		return msg + ". Offline, will sync later."
	}
	return msg + ". " + r.Sync.Message()
}

// SignIn persists first and syncs second. An error means nothing was
// recorded (attendance.ValidationError or queue.PersistenceError); sync
// problems are reported in the result and never undo the local write.
func (s *Service) SignIn(ctx context.Context, name, employeeID string) (SignInResult, error) {
	rec, err := attendance.Build(name, employeeID, s.clock())
	if err != nil {
		return SignInResult{}, err
	}
	rec.ID = s.newID()

	l := s.logger.With("record_id", rec.ID, "employee_id", rec.EmployeeID)

	if err := s.queue.Append(ctx, rec); err != nil {
		l.Error("Failed to save sign-in data", "error", err)
		return SignInResult{}, err
	}
	metrics.SignInsRecorded.WithLabelValues(strconv.FormatBool(rec.IsLate)).Inc()
	l.Info("Sign-in recorded locally", "late", rec.IsLate, "late_by_minutes", rec.LateByMinutes)

	res := SignInResult{Record: rec}
	if !s.probe.IsConnected(ctx) {
		l.Info("Kiosk offline, sign-in stays queued")
		return res, nil
	}

	res.Online = true
	out := s.syncer.Sync(ctx)
	res.Sync = &out
	return res, nil
}

// History lists queued sign-ins oldest first.
func (s *Service) History(ctx context.Context) []models.AttendanceRecord {
	return s.queue.ReadAll(ctx)
}

// SyncNow runs one sync attempt regardless of the probe.
func (s *Service) SyncNow(ctx context.Context) syncer.Outcome {
	return s.syncer.Sync(ctx)
}
