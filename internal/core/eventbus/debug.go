package eventbus

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RegisterDebugLogger logs all bus activity. Published events log at debug
// level, dropped events warn and subscriber panics log as errors.
func RegisterDebugLogger(bus *EventBus, logger zerolog.Logger) {
	bus.OnPublish(func(event Event, payload any) {
		e := logger.Debug().Str("event", string(event))
		switch p := payload.(type) {
		case PhaseChangedPayload:
			e = e.Str("session_id", p.SessionID).Str("from", string(p.From)).Str("to", string(p.To))
		case AnalysisCompletedPayload:
			e = e.Str("session_id", p.Completion.SessionID).Stringer("ongoing", p.Completion.Ongoing)
		case VerificationCompletedPayload:
			e = e.Str("session_id", p.Completion.SessionID)
		case NotificationPublishedPayload:
			e = e.Int64("notification_id", p.Notification.ID).Str("title", p.Notification.Title)
		case NotificationExpiredPayload:
			e = e.Int64("notification_id", p.Notification.ID)
		case TaskRecordedPayload:
			e = e.Str("task_id", p.Task.ID)
		}
		e.Msg("event fired")
	})

	bus.OnDrop(func(event Event, _ any) {
		logger.Warn().Str("event", string(event)).Msg("event dropped: buffer full")
	})

	bus.OnPanic(func(event Event, _ any, recovered any) {
		logger.Error().
			Str("event", string(event)).
			Str("panic", fmt.Sprint(recovered)).
			Msg("subscriber panicked")
	})
}
