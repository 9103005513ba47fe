// Package notify defines transient, single-slot user notifications.
package notify

import "time"

// Severity represents how a notification is presented.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Notification is a single toast message. ExpiresAt is set by the Center
// when the notification is shown.
type Notification struct {
	ID        int64
	Title     string
	Message   string
	Severity  Severity
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the notification's dwell time has elapsed at now.
func (n Notification) Expired(now time.Time) bool {
	return !n.ExpiresAt.IsZero() && !now.Before(n.ExpiresAt)
}

// Change is delivered to subscribers whenever the displayed notification
// changes. Expired is true when the notification was removed by its timer
// or dismissed.
type Change struct {
	Notification Notification
	Expired      bool
}
