// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within tradeoff.
package eventbus

import (
	"github.com/hay-kot/tradeoff/internal/core/identity"
	"github.com/hay-kot/tradeoff/internal/core/notify"
	"github.com/hay-kot/tradeoff/internal/core/task"
	"github.com/hay-kot/tradeoff/internal/core/workflow"
)

// Event names a kind of event carried by the bus.
type Event string

const (
	// Keep list sorted A-Z
	EventAnalysisCompleted     Event = "analysis.completed"
	EventAuthChanged           Event = "auth.changed"
	EventNotificationExpired   Event = "notification.expired"
	EventNotificationPublished Event = "notification.published"
	EventPhaseChanged          Event = "phase.changed"
	EventTaskRecorded          Event = "task.recorded"
	EventTuiStarted            Event = "tui.started"
	EventTuiStopped            Event = "tui.stopped"
	EventVerificationCompleted Event = "verification.completed"
)

// PhaseChangedPayload is emitted on every session phase transition.
type PhaseChangedPayload struct {
	SessionID string
	From      workflow.Phase
	To        workflow.Phase
}

// AnalysisCompletedPayload is emitted when a text analysis lands.
type AnalysisCompletedPayload struct {
	Completion workflow.Completion
}

// VerificationCompletedPayload is emitted when a photo verification lands.
type VerificationCompletedPayload struct {
	Completion workflow.Completion
}

// NotificationPublishedPayload is emitted when a notification becomes current.
type NotificationPublishedPayload struct {
	Notification notify.Notification
}

// NotificationExpiredPayload is emitted when the current notification is cleared.
type NotificationExpiredPayload struct {
	Notification notify.Notification
}

// AuthChangedPayload is emitted on sign in and sign out. User is nil when
// signed out.
type AuthChangedPayload struct {
	User *identity.User
}

// TaskRecordedPayload is emitted after a task is persisted.
type TaskRecordedPayload struct {
	Task task.Task
}

// TUIStartedPayload is emitted when the TUI starts.
type TUIStartedPayload struct{}

// TUIStoppedPayload is emitted when the TUI stops.
type TUIStoppedPayload struct{}
