package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/models"
	"github.com/WilliamAziza/Sign-In-App/pkg/infra"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// FileBackend keeps the queue as a JSON array in a single file. Writes are
// atomic (see infra.WriteFileAtomic). Updates hold an OS lock on a sidecar
// "<path>.lock" file, so a `kiosk watch` and a `kiosk signin` running as
// separate processes never interleave a read-modify-write.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

func (b *FileBackend) Path() string { return b.path }

// Load reads without the lock; renames make every read see a whole file.
func (b *FileBackend) Load(_ context.Context) ([]models.AttendanceRecord, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", b.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []models.AttendanceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", b.path, err)
	}
	return records, nil
}

func (b *FileBackend) Update(ctx context.Context, fn UpdateFunc) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create queue directory: %w", err)
	}

	// a fresh Flock per call: each one owns its own descriptor, which is what
	// flock(2) excludes on, even between goroutines of one process
	lock := flock.New(b.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", lock.Path(), err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", lock.Path())
	}
	defer lock.Unlock()

	current, err := b.Load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(current)
	if err != nil || next == nil {
		return err
	}
	return b.save(next)
}

func (b *FileBackend) save(records []models.AttendanceRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	return infra.WriteFileAtomic(b.path, data)
}
