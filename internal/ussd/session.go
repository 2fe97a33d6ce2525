package ussd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/attendance"
)

const (
	msgWelcome      = "Welcome to Employee Sign-In.\nPlease enter your name:"
	msgInvalidInput = "Invalid input. Please enter your name:"
	msgStoreFailed  = "Sorry, we could not record your sign-in. Please try again."
)

// Request is one step of a USSD session as posted by the telco aggregator.
// Text holds every answer of the session so far joined by '*'.
type Request struct {
	SessionID   string `form:"sessionId" json:"sessionId"`
	ServiceCode string `form:"serviceCode" json:"serviceCode"`
	PhoneNumber string `form:"phoneNumber" json:"phoneNumber"`
	Text        string `form:"text" json:"text"`
}

type Session struct {
	store    Store
	logger   *slog.Logger
	now      func() time.Time
	location *time.Location
}

type SessionOption func(*Session)

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithLocation sets the zone used for the confirmation message only; stored
// timestamps are always UTC.
func WithLocation(loc *time.Location) SessionOption {
	return func(s *Session) { s.location = loc }
}

func NewSession(store Store, l *slog.Logger, opts ...SessionOption) *Session {
	s := &Session{
		store:    store,
		logger:   l,
		now:      time.Now,
		location: time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Respond returns the CON/END reply for req.
func (s *Session) Respond(ctx context.Context, req Request) string {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return cont(msgWelcome)
	}

	inputs := strings.Split(text, "*")
	if len(inputs) != 1 {
		return cont(msgInvalidInput)
	}

	name := strings.TrimSpace(inputs[0])
	if name == "" {
		return cont(msgInvalidInput)
	}

	at := s.now()
	entry, err := s.store.Record(ctx, name, req.PhoneNumber, at)
	if err != nil {
		s.logger.Error("Failed to record USSD sign-in", "session_id", req.SessionID, "error", err)
		return end(msgStoreFailed)
	}

	s.logger.Info("USSD sign-in recorded", "id", entry.ID, "session_id", req.SessionID, "service_code", req.ServiceCode)

	return end(fmt.Sprintf("Thank you, %s. Your sign-in is recorded at %s.", name, at.In(s.location).Format(attendance.DisplayLayout)))
}

func cont(msg string) string { return "CON " + msg }

func end(msg string) string { return "END " + msg }
