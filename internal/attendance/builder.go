// Package attendance turns raw sign-in input into immutable attendance
// records and decides lateness against the daily cutoff.
package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/WilliamAziza/Sign-In-App/internal/models"
)

const (
	CutoffHour   = 8
	CutoffMinute = 30

	// DisplayLayout mirrors the en-US locale rendering used on the kiosk screen.
	DisplayLayout = "1/2/2006, 3:04:05 PM"
)

// ValidationError reports a required field that was blank after trimming.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

// Cutoff returns 08:30 on the calendar day of t, in t's location.
func Cutoff(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, CutoffHour, CutoffMinute, 0, 0, t.Location())
}

// Lateness reports whether t is strictly after the day's cutoff and by how
// many whole minutes.
func Lateness(t time.Time) (late bool, minutes int) {
	cutoff := Cutoff(t)
	if !t.After(cutoff) {
		return false, 0
	}
	return true, int(t.Sub(cutoff) / time.Minute)
}

// Build creates a record for name and employeeID signed in at now. It has no
// side effects; the caller assigns the record identifier before queueing.
func Build(name, employeeID string, now time.Time) (models.AttendanceRecord, error) {
	name = strings.TrimSpace(name)
	employeeID = strings.TrimSpace(employeeID)

	if name == "" {
		return models.AttendanceRecord{}, &ValidationError{Field: "name"}
	}
	if employeeID == "" {
		return models.AttendanceRecord{}, &ValidationError{Field: "employee id"}
	}

	late, minutes := Lateness(now)

	return models.AttendanceRecord{
		EmployeeID:    employeeID,
		Name:          name,
		Timestamp:     now.Format(DisplayLayout),
		IsLate:        late,
		LateByMinutes: minutes,
		SignInTime:    now,
	}, nil
}

// Status is the one-line lateness verdict shown next to a record.
func Status(r models.AttendanceRecord) string {
	if !r.IsLate {
		return "On time"
	}
	return fmt.Sprintf("Late by %d min", r.LateByMinutes)
}
