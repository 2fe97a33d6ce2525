package models

import "time"

// AttendanceRecord is one sign-in as persisted in the local queue and as
// submitted to the collector. Values are never mutated after creation.
type AttendanceRecord struct {
	ID            string    `json:"id"`
	EmployeeID    string    `json:"employeeId"`
	Name          string    `json:"name"`
	Timestamp     string    `json:"timestamp"` // display only
	IsLate        bool      `json:"isLate"`
	LateByMinutes int       `json:"lateByMinutes"`
	SignInTime    time.Time `json:"signInTime"`
	ServerID      string    `json:"serverId,omitempty"`
}

// SyncAck is the collector's reply to a sync batch.
type SyncAck struct {
	Success   bool         `json:"success"`
	SyncedIDs []Identifier `json:"syncedIds,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// StoredSignIn is a record as held by the collector.
type StoredSignIn struct {
	ServerID      string    `json:"serverId"`
	RecordID      string    `json:"id"`
	EmployeeID    string    `json:"employeeId"`
	Name          string    `json:"name"`
	IsLate        bool      `json:"isLate"`
	LateByMinutes int       `json:"lateByMinutes"`
	SignInTime    time.Time `json:"signInTime"`
	ReceivedAt    time.Time `json:"receivedAt"`
}

// SignInEvent is the message announced on the broker once a record is stored.
type SignInEvent struct {
	EventID       string    `json:"event_id"`
	ServerID      string    `json:"server_id"`
	RecordID      string    `json:"record_id"`
	EmployeeID    string    `json:"employee_id"`
	Name          string    `json:"name"`
	IsLate        bool      `json:"is_late"`
	LateByMinutes int       `json:"late_by_minutes"`
	SignInTime    time.Time `json:"sign_in_time"`
	Timestamp     time.Time `json:"timestamp"`
}

// USSDSignIn is one entry of the USSD gateway's flat file.
type USSDSignIn struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Timestamp   string `json:"timestamp"`
}
