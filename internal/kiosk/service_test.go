package kiosk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/attendance"
	"github.com/WilliamAziza/Sign-In-App/internal/connectivity"
	"github.com/WilliamAziza/Sign-In-App/internal/models"
	"github.com/WilliamAziza/Sign-In-App/internal/queue"
	"github.com/WilliamAziza/Sign-In-App/internal/syncer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSyncer struct {
	calls atomic.Int32
	out   syncer.Outcome
}

func (f *fakeSyncer) Sync(context.Context) syncer.Outcome {
	f.calls.Add(1)
	return f.out
}

func fixedClock(hour, minute int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, time.March, 9, hour, minute, 0, 0, time.UTC)
	}
}

func sequentialIDs() func() string {
	var n atomic.Int32
	return func() string { return fmt.Sprint(n.Add(1)) }
}

var alwaysOnline = connectivity.ProbeFunc(func(context.Context) bool { return true })

func TestSignInOnlineSyncs(t *testing.T) {
	b := queue.NewMemoryBackend()
	q := queue.New(b, discardLogger())
	fs := &fakeSyncer{out: syncer.Outcome{Kind: syncer.Synced, Accepted: 1}}

	svc := NewService(q, alwaysOnline, fs, discardLogger(),
		WithClock(fixedClock(8, 45)), WithIDGenerator(sequentialIDs()))

	res, err := svc.SignIn(context.Background(), " Bob ", "E2")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Online || res.Sync == nil || res.Sync.Kind != syncer.Synced {
		t.Fatalf("result = %+v, want synced", res)
	}
	if fs.calls.Load() != 1 {
		t.Fatalf("sync called %d times", fs.calls.Load())
	}
	if res.Record.ID != "1" || !res.Record.IsLate || res.Record.LateByMinutes != 15 {
		t.Fatalf("record = %+v", res.Record)
	}
	if !strings.Contains(res.Message(), "Late by 15 min") {
		t.Fatalf("Message() = %q", res.Message())
	}
}

func TestSignInOfflineQueues(t *testing.T) {
	q := queue.New(queue.NewMemoryBackend(), discardLogger())
	fs := &fakeSyncer{}

	svc := NewService(q, connectivity.Offline, fs, discardLogger(),
		WithClock(fixedClock(8, 10)), WithIDGenerator(sequentialIDs()))

	for _, name := range []string{"Alice", "Bob"} {
		res, err := svc.SignIn(context.Background(), name, "E1")
		if err != nil {
			t.Fatal(err)
		}
		if res.Online || res.Sync != nil {
			t.Fatalf("offline sign-in reported online: %+v", res)
		}
		if !strings.HasSuffix(res.Message(), "Offline, will sync later.") {
			t.Fatalf("Message() = %q", res.Message())
		}
	}
	if fs.calls.Load() != 0 {
		t.Fatal("sync attempted while offline")
	}

	hist := svc.History(context.Background())
	if len(hist) != 2 || hist[0].Name != "Alice" || hist[1].Name != "Bob" {
		t.Fatalf("History = %+v", hist)
	}
}

func TestSignInValidationStoresNothing(t *testing.T) {
	b := queue.NewMemoryBackend()
	fs := &fakeSyncer{}
	svc := NewService(queue.New(b, discardLogger()), alwaysOnline, fs, discardLogger())

	_, err := svc.SignIn(context.Background(), "   ", "E1")
	var vErr *attendance.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if b.Saves() != 0 || fs.calls.Load() != 0 {
		t.Fatal("invalid sign-in touched the queue or the collector")
	}
}

func TestSignInPersistenceFailureSkipsSync(t *testing.T) {
	b := queue.NewMemoryBackend()
	b.FailSave(errors.New("disk full"))
	fs := &fakeSyncer{}
	svc := NewService(queue.New(b, discardLogger()), alwaysOnline, fs, discardLogger())

	_, err := svc.SignIn(context.Background(), "Alice", "E1")
	var pErr *queue.PersistenceError
	if !errors.As(err, &pErr) {
		t.Fatalf("error = %v, want PersistenceError", err)
	}
	if fs.calls.Load() != 0 {
		t.Fatal("sync attempted for a sign-in that was not recorded")
	}
}

func TestSignInSyncFailureKeepsRecord(t *testing.T) {
	q := queue.New(queue.NewMemoryBackend(), discardLogger())
	fs := &fakeSyncer{out: syncer.Outcome{Kind: syncer.NetworkFailure, Reason: "connection refused"}}
	svc := NewService(q, alwaysOnline, fs, discardLogger(), WithIDGenerator(sequentialIDs()))

	res, err := svc.SignIn(context.Background(), "Alice", "E1")
	if err != nil {
		t.Fatalf("sync failure surfaced as error: %v", err)
	}
	if res.Sync.Kind != syncer.NetworkFailure {
		t.Fatalf("outcome = %+v", res.Sync)
	}
	if got := svc.History(context.Background()); len(got) != 1 {
		t.Fatalf("queue has %d records, want 1", len(got))
	}
}

func TestWatchSyncsOnReconnect(t *testing.T) {
	var mu sync.Mutex
	states := []bool{false, true, true, false, true}
	probe := connectivity.ProbeFunc(func(context.Context) bool {
		mu.Lock()
		defer mu.Unlock()
		if len(states) == 0 {
			return true
		}
		s := states[0]
		states = states[1:]
		return s
	})

	fs := &fakeSyncer{out: syncer.Outcome{Kind: syncer.NothingToSync}}
	svc := NewService(queue.New(queue.NewMemoryBackend(), discardLogger()), probe, fs, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Watch(ctx, 5*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for fs.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("sync called %d times, want 2 reconnects", fs.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	// stays online after the scripted states run out: no further syncs
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if got := fs.calls.Load(); got != 2 {
		t.Fatalf("sync called %d times, want exactly 2", got)
	}
}

func TestRenderHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderHistory(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Sign-In History (0 people)") || !strings.Contains(buf.String(), "No sign-ins yet") {
		t.Fatalf("empty render = %q", buf.String())
	}

	buf.Reset()
	records := []models.AttendanceRecord{
		{Name: "Alice", EmployeeID: "E1", Timestamp: "3/9/2026, 8:10:00 AM"},
		{Name: "Bob", EmployeeID: "E2", Timestamp: "3/9/2026, 8:45:00 AM", IsLate: true, LateByMinutes: 15},
	}
	if err := RenderHistory(&buf, records); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"(2 people)", "Alice", "On time", "Bob", "Late by 15 min"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "Alice") > strings.Index(out, "Bob") {
		t.Error("render does not preserve queue order")
	}
}
