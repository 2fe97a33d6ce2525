package queue

import (
	"context"
	"sync"

	"github.com/WilliamAziza/Sign-In-App/internal/models"
)

// MemoryBackend is a process-local backend with fault injection.
type MemoryBackend struct {
	mu      sync.Mutex
	records []models.AttendanceRecord
	loadErr error
	saveErr error
	saves   int
}

func NewMemoryBackend(records ...models.AttendanceRecord) *MemoryBackend {
	return &MemoryBackend{records: append([]models.AttendanceRecord(nil), records...)}
}

func (m *MemoryBackend) Load(_ context.Context) ([]models.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]models.AttendanceRecord(nil), m.records...), nil
}

func (m *MemoryBackend) Update(_ context.Context, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return m.loadErr
	}
	next, err := fn(append([]models.AttendanceRecord(nil), m.records...))
	if err != nil || next == nil {
		return err
	}
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = append([]models.AttendanceRecord(nil), next...)
	m.saves++
	return nil
}

// FailLoad makes subsequent loads return err (nil clears it).
func (m *MemoryBackend) FailLoad(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

// FailSave makes subsequent saves return err (nil clears it).
func (m *MemoryBackend) FailSave(err error) {
	m.mu.Lock()
	m.saveErr = err
	m.mu.Unlock()
}

// Saves reports how many successful writes happened.
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
