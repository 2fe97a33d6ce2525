package kiosk

import (
	"context"
	"time"
)

// Watch polls the probe every interval and runs one sync each time the kiosk
// comes back online (and once at start if it is already online). It is a
// reconnection trigger, not a retry loop: while online, nothing is resent
// until the next transition or sign-in. Blocks until ctx is done.
func (s *Service) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("📡 Watching connectivity", "interval", interval)

	online := false
	check := func() {
		now := s.probe.IsConnected(ctx)
		if now && !online {
			out := s.syncer.Sync(ctx)
			s.logger.Info("Network available, queue synced", "outcome", out.Kind.String(), "accepted", out.Accepted, "message", out.Message())
		} else if !now && online {
			s.logger.Warn("Network lost, sign-ins will queue locally")
		}
		online = now
	}

	check()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Watch stopped")
			return
		case <-ticker.C:
			check()
		}
	}
}
