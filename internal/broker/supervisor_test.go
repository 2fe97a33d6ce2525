package broker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/models"
	"github.com/WilliamAziza/Sign-In-App/pkg/infra"
)

type fakeLink struct {
	healthy   atomic.Bool
	closed    atomic.Bool
	mu        sync.Mutex
	published []models.SignInEvent
}

func (f *fakeLink) PublishSignIn(_ context.Context, ev models.SignInEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, ev)
	return nil
}

func (f *fakeLink) IsHealthy() bool { return f.healthy.Load() }

func (f *fakeLink) Close() error {
	f.closed.Store(true)
	f.healthy.Store(false)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestRoutingKey(t *testing.T) {
	if got := RoutingKey(models.SignInEvent{IsLate: true}); got != "attendance.signin.late" {
		t.Errorf("late routing key = %q", got)
	}
	if got := RoutingKey(models.SignInEvent{}); got != "attendance.signin.ontime" {
		t.Errorf("on time routing key = %q", got)
	}
}

func TestSupervisorRedialsUntilConnected(t *testing.T) {
	var dials atomic.Int32
	links := make(chan *fakeLink, 4)

	dial := func() (Link, error) {
		if dials.Add(1) <= 2 {
			return nil, errors.New("connection refused")
		}
		l := &fakeLink{}
		l.healthy.Store(true)
		links <- l
		return l, nil
	}

	s := NewSupervisor(dial, infra.NewBackoff(time.Millisecond, 5*time.Millisecond, 2), quietLogger())
	s.interval = 10 * time.Millisecond

	if err := s.PublishSignIn(context.Background(), models.SignInEvent{EventID: "early"}); !errors.Is(err, ErrBrokerUnavailable) {
		t.Fatalf("publish before connect: err = %v, want ErrBrokerUnavailable", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	first := <-links
	waitFor(t, "publish to succeed", func() bool {
		return s.PublishSignIn(context.Background(), models.SignInEvent{EventID: "e1"}) == nil
	})
	if dials.Load() != 3 {
		t.Errorf("dials = %d, want 3", dials.Load())
	}

	// dropping the link triggers a fresh dial
	first.healthy.Store(false)
	second := <-links
	if second == first {
		t.Fatal("expected a new link after the first one dropped")
	}
	if !first.closed.Load() {
		t.Error("dropped link was not closed")
	}

	cancel()
	<-done
	if !second.closed.Load() {
		t.Error("Run did not close the live link on shutdown")
	}
	if err := s.PublishSignIn(context.Background(), models.SignInEvent{EventID: "late"}); !errors.Is(err, ErrBrokerUnavailable) {
		t.Errorf("publish after shutdown: err = %v", err)
	}
}

func TestDiscardPublisher(t *testing.T) {
	if err := (Discard{}).PublishSignIn(context.Background(), models.SignInEvent{}); err != nil {
		t.Fatalf("Discard returned %v", err)
	}
}
