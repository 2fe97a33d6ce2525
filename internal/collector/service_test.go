package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memRepo struct {
	mu      sync.Mutex
	rows    map[string]models.StoredSignIn
	failFor map[string]bool
	listErr error
}

func newMemRepo() *memRepo {
	return &memRepo{rows: map[string]models.StoredSignIn{}, failFor: map[string]bool{}}
}

func (m *memRepo) Save(_ context.Context, in models.StoredSignIn) (models.StoredSignIn, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[in.RecordID] || m.failFor["*"] {
		return models.StoredSignIn{}, false, errors.New("connection reset")
	}
	if existing, ok := m.rows[in.RecordID]; ok {
		return existing, false, nil
	}
	m.rows[in.RecordID] = in
	return in, true, nil
}

func (m *memRepo) ListRecent(_ context.Context, limit int) ([]models.StoredSignIn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.StoredSignIn
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServerID > out[j].ServerID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.SignInEvent
	err    error
}

func (p *recordingPublisher) PublishSignIn(_ context.Context, ev models.SignInEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func signIn(id, employeeID, name string) models.AttendanceRecord {
	return models.AttendanceRecord{
		ID:            id,
		EmployeeID:    employeeID,
		Name:          name,
		Timestamp:     "3/9/2026, 8:45:00 AM",
		IsLate:        true,
		LateByMinutes: 15,
		SignInTime:    time.Date(2026, time.March, 9, 8, 45, 0, 0, time.UTC),
	}
}

func ackIDs(ack models.SyncAck) []string {
	var out []string
	for _, id := range ack.SyncedIDs {
		out = append(out, string(id))
	}
	return out
}

func TestAcceptSkipsInvalidRecords(t *testing.T) {
	repo, pub := newMemRepo(), &recordingPublisher{}
	svc := NewService(repo, pub, 100, discardLogger())

	batch := []models.AttendanceRecord{
		signIn("1", "E1", "Alice"),
		signIn("2", "E2", "  "),
		signIn("", "E3", "Carol"),
		signIn("4", "E4", "Dan"),
	}
	ack, err := svc.Accept(context.Background(), batch)
	if err != nil {
		t.Fatal(err)
	}
	if !ack.Success {
		t.Fatalf("ack = %+v", ack)
	}
	got := ackIDs(ack)
	if len(got) != 2 || got[0] != "1" || got[1] != "4" {
		t.Fatalf("syncedIds = %v, want [1 4]", got)
	}
	if ack.Message != "accepted 2 of 4" {
		t.Fatalf("Message = %q", ack.Message)
	}
	if pub.count() != 2 {
		t.Fatalf("published %d events, want 2", pub.count())
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	repo, pub := newMemRepo(), &recordingPublisher{}
	svc := NewService(repo, pub, 100, discardLogger())
	ctx := context.Background()

	if _, err := svc.Accept(ctx, []models.AttendanceRecord{signIn("1", "E1", "Alice")}); err != nil {
		t.Fatal(err)
	}
	first := repo.rows["1"].ServerID

	ack, err := svc.Accept(ctx, []models.AttendanceRecord{signIn("1", "E1", "Alice"), signIn("2", "E2", "Bob")})
	if err != nil {
		t.Fatal(err)
	}
	if got := ackIDs(ack); len(got) != 2 {
		t.Fatalf("resubmitted record not acknowledged: %v", got)
	}
	if repo.rows["1"].ServerID != first {
		t.Fatal("duplicate submission reassigned the server id")
	}
	if pub.count() != 2 {
		t.Fatalf("published %d events, want 2 (no duplicate event)", pub.count())
	}
	if len(first) != 26 {
		t.Fatalf("server id %q is not a ULID", first)
	}
}

func TestAcceptStorageFailures(t *testing.T) {
	repo, pub := newMemRepo(), &recordingPublisher{}
	svc := NewService(repo, pub, 100, discardLogger())
	ctx := context.Background()

	repo.failFor["2"] = true
	ack, err := svc.Accept(ctx, []models.AttendanceRecord{signIn("1", "E1", "Alice"), signIn("2", "E2", "Bob")})
	if err != nil {
		t.Fatal(err)
	}
	if got := ackIDs(ack); !ack.Success || len(got) != 1 || got[0] != "1" {
		t.Fatalf("ack = %+v, want success with [1]", ack)
	}

	repo.failFor["*"] = true
	ack, err = svc.Accept(ctx, []models.AttendanceRecord{signIn("3", "E3", "Carol")})
	if err != nil {
		t.Fatal(err)
	}
	if ack.Success || ack.Message != "storage unavailable" || len(ack.SyncedIDs) != 0 {
		t.Fatalf("ack = %+v, want storage unavailable", ack)
	}
}

func TestAcceptPublishFailureKeepsRecord(t *testing.T) {
	repo := newMemRepo()
	pub := &recordingPublisher{err: errors.New("broker connection is closed")}
	svc := NewService(repo, pub, 100, discardLogger())

	ack, err := svc.Accept(context.Background(), []models.AttendanceRecord{signIn("1", "E1", "Alice")})
	if err != nil {
		t.Fatal(err)
	}
	if got := ackIDs(ack); len(got) != 1 {
		t.Fatalf("publish failure unaccepted the record: %+v", ack)
	}
}

// stallingPublisher never confirms; it only returns once ctx is done.
type stallingPublisher struct {
	calls atomic.Int32
}

func (p *stallingPublisher) PublishSignIn(ctx context.Context, _ models.SignInEvent) error {
	p.calls.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestAcceptBoundsPublishingByOneBudget(t *testing.T) {
	repo := newMemRepo()
	pub := &stallingPublisher{}
	svc := NewService(repo, pub, 1000, discardLogger(), WithPublishBudget(50*time.Millisecond))

	var batch []models.AttendanceRecord
	for i := 0; i < 100; i++ {
		batch = append(batch, signIn(fmt.Sprint(i), "E"+fmt.Sprint(i), "Worker"))
	}

	start := time.Now()
	ack, err := svc.Accept(context.Background(), batch)
	if err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Accept took %v with a stalled broker, want it bounded by the publish budget", elapsed)
	}
	if len(ack.SyncedIDs) != len(batch) || !ack.Success {
		t.Fatalf("stored records were not all acknowledged: %d of %d", len(ack.SyncedIDs), len(batch))
	}
	if n := pub.calls.Load(); n != 1 {
		t.Errorf("publisher called %d times, want 1 before the budget ran out", n)
	}
}

func TestAcceptBatchLimit(t *testing.T) {
	svc := NewService(newMemRepo(), &recordingPublisher{}, 1, discardLogger())

	_, err := svc.Accept(context.Background(), []models.AttendanceRecord{signIn("1", "E1", "A"), signIn("2", "E2", "B")})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodePayloadTooLarge {
		t.Fatalf("error = %v, want PAYLOAD_TOO_LARGE", err)
	}
}

func TestListClampsLimit(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, &recordingPublisher{}, 1000, discardLogger())
	ctx := context.Background()

	var batch []models.AttendanceRecord
	for i := 0; i < MaxListLimit+10; i++ {
		batch = append(batch, signIn(fmt.Sprint(i), "E", "W"))
	}
	if _, err := svc.Accept(ctx, batch); err != nil {
		t.Fatal(err)
	}

	rows, err := svc.List(ctx, 10_000)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != MaxListLimit {
		t.Fatalf("List returned %d rows, want %d", len(rows), MaxListLimit)
	}

	repo.listErr = errors.New("down")
	_, err = svc.List(ctx, 0)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != CodeUnavailable {
		t.Fatalf("error = %v, want UNAVAILABLE", err)
	}
}
