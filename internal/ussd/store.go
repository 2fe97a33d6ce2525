package ussd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/models"
	"github.com/WilliamAziza/Sign-In-App/pkg/infra"
)

// isoLayout matches JavaScript's Date.toISOString, which existing data.json
// files were written with.
const isoLayout = "2006-01-02T15:04:05.000Z"

// Store persists USSD sign-ins and assigns their sequential ids.
type Store interface {
	Record(ctx context.Context, name, phoneNumber string, at time.Time) (models.USSDSignIn, error)
	List(ctx context.Context) ([]models.USSDSignIn, error)
}

// FileStore keeps every sign-in in one indented JSON array on disk. All
// access goes through mu, so concurrent sessions never lose an entry.
type FileStore struct {
	path    string
	mu      sync.Mutex
	entries []models.USSDSignIn
}

// OpenFileStore loads path if it exists. A file that cannot be parsed is an
// error rather than an empty store, so existing entries are never overwritten.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return s, nil
}

func (s *FileStore) Record(_ context.Context, name, phoneNumber string, at time.Time) (models.USSDSignIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := models.USSDSignIn{
		ID:          len(s.entries) + 1,
		Name:        name,
		PhoneNumber: phoneNumber,
		Timestamp:   at.UTC().Format(isoLayout),
	}

	next := append(s.entries[:len(s.entries):len(s.entries)], entry)
	if err := s.write(next); err != nil {
		return models.USSDSignIn{}, err
	}
	s.entries = next
	return entry, nil
}

func (s *FileStore) List(context.Context) ([]models.USSDSignIn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.USSDSignIn, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *FileStore) write(entries []models.USSDSignIn) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sign-ins: %w", err)
	}

	return infra.WriteFileAtomic(s.path, data)
}
