package infra

import (
	"context"
	"testing"
	"time"
)

func TestBackoffGrowsWithinBounds(t *testing.T) {
	minDelay, maxDelay := 100*time.Millisecond, 800*time.Millisecond
	b := NewBackoff(minDelay, maxDelay, 2.0)

	for i := 0; i < 10; i++ {
		wait := b.Next()
		if wait < minDelay {
			t.Fatalf("attempt %d: wait %v below minimum %v", i+1, wait, minDelay)
		}
		// jitter may push the capped value up to 20% above the cap
		if wait > maxDelay+maxDelay/5 {
			t.Fatalf("attempt %d: wait %v above cap %v", i+1, wait, maxDelay)
		}
	}
	if got := b.Attempts(); got != 10 {
		t.Fatalf("Attempts() = %d, want 10", got)
	}

	b.Reset()
	if got := b.Attempts(); got != 0 {
		t.Fatalf("Attempts() after Reset = %d, want 0", got)
	}
	if wait := b.Next(); wait > minDelay+minDelay/5 {
		t.Fatalf("first wait after Reset = %v, want about %v", wait, minDelay)
	}
}

func TestBackoffWaitHonoursContext(t *testing.T) {
	b := NewBackoff(time.Hour, time.Hour, 2.0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if b.Wait(ctx) {
		t.Fatal("Wait returned true on a cancelled context")
	}
}
