package broker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/models"
	"github.com/WilliamAziza/Sign-In-App/pkg/infra"
	"github.com/WilliamAziza/Sign-In-App/pkg/metrics"
)

const healthCheckInterval = 2 * time.Second

// Link is a connected publisher whose health can be polled.
type Link interface {
	PublishSignIn(ctx context.Context, ev models.SignInEvent) error
	IsHealthy() bool
	Close() error
}

// Dialer opens a new Link.
type Dialer func() (Link, error)

// Supervisor keeps one Link alive, redialing with jittered backoff whenever
// it drops. Publishes while the link is down fail fast with
// ErrBrokerUnavailable.
type Supervisor struct {
	dial     Dialer
	backoff  *infra.Backoff
	logger   *slog.Logger
	interval time.Duration
	current  atomic.Pointer[linkBox]
}

type linkBox struct{ link Link }

func NewSupervisor(dial Dialer, backoff *infra.Backoff, l *slog.Logger) *Supervisor {
	metrics.BrokerHealthy.Set(0)
	return &Supervisor{dial: dial, backoff: backoff, logger: l, interval: healthCheckInterval}
}

// NewRabbitMQSupervisor supervises RabbitMQ clients for url.
func NewRabbitMQSupervisor(url string, l *slog.Logger) *Supervisor {
	dial := func() (Link, error) { return NewRabbitMQClient(url, l) }
	return NewSupervisor(dial, infra.NewBackoff(1*time.Second, 60*time.Second, 2.0), l)
}

// Run blocks until ctx is done, then closes the current link.
func (s *Supervisor) Run(ctx context.Context) {
	defer func() {
		if box := s.current.Swap(nil); box != nil {
			box.link.Close()
		}
		metrics.BrokerHealthy.Set(0)
	}()

	for {
		if box := s.current.Load(); box == nil || !box.link.IsHealthy() {
			if box != nil {
				s.current.Store(nil)
				box.link.Close()
				metrics.BrokerHealthy.Set(0)
			}

			link, err := s.dial()
			if err != nil {
				metrics.BrokerReconnections.Inc()
				s.logger.Error("RabbitMQ link failure, retrying", "attempt", s.backoff.Attempts()+1, "error", err)
				if !s.backoff.Wait(ctx) {
					return
				}
				continue
			}

			s.current.Store(&linkBox{link: link})
			s.backoff.Reset()
			metrics.BrokerHealthy.Set(1)
			s.logger.Info("RabbitMQ link established 🚀")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}
	}
}

func (s *Supervisor) PublishSignIn(ctx context.Context, ev models.SignInEvent) error {
	box := s.current.Load()
	if box == nil || !box.link.IsHealthy() {
		return ErrBrokerUnavailable
	}
	return box.link.PublishSignIn(ctx, ev)
}

// Discard is the publisher used when no broker is configured.
type Discard struct{}

func (Discard) PublishSignIn(context.Context, models.SignInEvent) error { return nil }
