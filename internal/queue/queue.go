// Package queue is the kiosk's durable, append-only list of sign-ins that
// have not yet been acknowledged by the collector.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/WilliamAziza/Sign-In-App/internal/models"
	"github.com/WilliamAziza/Sign-In-App/pkg/metrics"
)

// UpdateFunc maps the stored queue to its new contents. Returning nil leaves
// the store untouched.
type UpdateFunc func(current []models.AttendanceRecord) ([]models.AttendanceRecord, error)

// Backend is a single durable key holding the whole queue. Update must hold
// an exclusive lock from its read to its write that every other Backend over
// the same storage honours, including ones in other processes.
type Backend interface {
	Load(ctx context.Context) ([]models.AttendanceRecord, error)
	Update(ctx context.Context, fn UpdateFunc) error
}

// PersistenceError means a durable write (or the read it depends on) failed
// and the queue was left as it was.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("queue %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Queue runs every read-modify-write through Backend.Update, so an append can
// never be lost to a concurrent replace in this or any other process.
type Queue struct {
	mu      sync.Mutex
	backend Backend
	logger  *slog.Logger
}

func New(b Backend, l *slog.Logger) *Queue {
	return &Queue{backend: b, logger: l}
}

// Append durably stores rec after the existing contents. The record counts as
// queued only if Append returns nil.
func (q *Queue) Append(ctx context.Context, rec models.AttendanceRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	// an unreadable store fails the update before fn runs, so it is never
	// clobbered
	depth := 0
	err := q.backend.Update(ctx, func(current []models.AttendanceRecord) ([]models.AttendanceRecord, error) {
		next := make([]models.AttendanceRecord, 0, len(current)+1)
		next = append(next, current...)
		next = append(next, rec)
		depth = len(next)
		return next, nil
	})
	if err != nil {
		return &PersistenceError{Op: "append", Err: err}
	}

	metrics.QueueDepth.Set(float64(depth))
	return nil
}

// ReadAll returns the queue oldest first. An unreadable store yields an empty
// list; the condition is logged, not returned.
func (q *Queue) ReadAll(ctx context.Context) []models.AttendanceRecord {
	q.mu.Lock()
	defer q.mu.Unlock()

	records, err := q.backend.Load(ctx)
	if err != nil {
		q.logger.Error("Local queue unreadable, treating as empty", "error", err)
		return []models.AttendanceRecord{}
	}
	if records == nil {
		return []models.AttendanceRecord{}
	}
	return records
}

// Replace atomically overwrites the queue with records.
func (q *Queue) Replace(ctx context.Context, records []models.AttendanceRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if records == nil {
		records = []models.AttendanceRecord{}
	}
	err := q.backend.Update(ctx, func([]models.AttendanceRecord) ([]models.AttendanceRecord, error) {
		return records, nil
	})
	if err != nil {
		return &PersistenceError{Op: "replace", Err: err}
	}
	metrics.QueueDepth.Set(float64(len(records)))
	return nil
}

// Reconcile drops exactly the records whose ID is in accepted and returns how
// many were removed. It filters the current contents, not a stale snapshot,
// so records appended while a sync was in flight are kept.
func (q *Queue) Reconcile(ctx context.Context, accepted map[string]struct{}) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed, depth := 0, 0
	err := q.backend.Update(ctx, func(current []models.AttendanceRecord) ([]models.AttendanceRecord, error) {
		remaining := make([]models.AttendanceRecord, 0, len(current))
		for _, rec := range current {
			if _, ok := accepted[rec.ID]; ok {
				continue
			}
			remaining = append(remaining, rec)
		}

		removed = len(current) - len(remaining)
		if removed == 0 {
			return nil, nil
		}
		depth = len(remaining)
		return remaining, nil
	})
	if err != nil {
		return 0, &PersistenceError{Op: "reconcile", Err: err}
	}
	if removed > 0 {
		metrics.QueueDepth.Set(float64(depth))
	}
	return removed, nil
}
