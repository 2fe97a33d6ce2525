package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeAttendance = "attendance.topic"
	confirmTimeout     = 10 * time.Second
)

var ErrBrokerUnavailable = errors.New("broker connection is closed")

// RoutingKey is attendance.signin.late or attendance.signin.ontime, so
// consumers can bind only to late arrivals.
func RoutingKey(ev models.SignInEvent) string {
	if ev.IsLate {
		return "attendance.signin.late"
	}
	return "attendance.signin.ontime"
}

// RabbitMQClient publishes sign-in events with publisher confirms enabled.
type RabbitMQClient struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	logger     *slog.Logger
	connClosed chan *amqp.Error
	chanClosed chan *amqp.Error
	closeOnce  sync.Once
	healthy    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
	pubMu      sync.Mutex
}

func NewRabbitMQClient(url string, l *slog.Logger) (*RabbitMQClient, error) {
	c, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := c.Channel()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		ExchangeAttendance,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to declare topic exchange: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		ch.Close()
		c.Close()
		return nil, fmt.Errorf("failed to activate Publisher Confirms: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &RabbitMQClient{
		conn:       c,
		channel:    ch,
		logger:     l,
		connClosed: make(chan *amqp.Error, 1),
		chanClosed: make(chan *amqp.Error, 1),
		ctx:        ctx,
		cancel:     cancel,
	}
	client.healthy.Store(true)

	client.conn.NotifyClose(client.connClosed)
	client.channel.NotifyClose(client.chanClosed)

	go func() {
		select {
		case err := <-client.connClosed:
			client.healthy.Store(false)
			l.Warn("RabbitMQ connection closed", "error", err)
		case err := <-client.chanClosed:
			client.healthy.Store(false)
			l.Warn("RabbitMQ channel closed", "error", err)
		case <-client.ctx.Done():
			return
		}
	}()

	l.Info("Successfully connected to RabbitMQ and monitors established")
	return client, nil
}

// PublishSignIn sends ev and blocks until the broker confirms it (ACK/NACK).
func (r *RabbitMQClient) PublishSignIn(ctx context.Context, ev models.SignInEvent) error {
	if !r.IsHealthy() {
		return ErrBrokerUnavailable
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	routingKey := RoutingKey(ev)
	l := r.logger.With("event_id", ev.EventID, "routing_key", routingKey)

	// amqp channels are not safe for concurrent publishes with confirms
	r.pubMu.Lock()
	deferred, err := r.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		ExchangeAttendance,
		routingKey,
		false,
		false,
		amqp.Publishing{
			Headers:      amqp.Table{"server_id": ev.ServerID},
			MessageId:    ev.EventID,
			Timestamp:    ev.Timestamp,
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	r.pubMu.Unlock()
	if err != nil {
		l.Error("failed to publish message to exchange", "error", err)
		return fmt.Errorf("publish call failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-deferred.Done():
		if !deferred.Acked() {
			return fmt.Errorf("RabbitMQ NACK received: event not persisted")
		}
		return nil
	case <-time.After(confirmTimeout):
		return fmt.Errorf("publisher confirm timeout")
	}
}

func (r *RabbitMQClient) Close() error {
	r.closeOnce.Do(func() {
		r.logger.Info("Terminating RabbitMQ client")
		r.cancel()
		r.healthy.Store(false)
		if r.channel != nil {
			r.channel.Close()
		}
		if r.conn != nil {
			r.conn.Close()
		}
	})
	return nil
}

func (r *RabbitMQClient) IsHealthy() bool {
	return r.healthy.Load()
}
