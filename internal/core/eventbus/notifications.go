package eventbus

import "github.com/hay-kot/tradeoff/internal/core/notify"

// BridgeNotifications republishes every change of center on the bus as
// notification.published or notification.expired.
func BridgeNotifications(center *notify.Center, bus *EventBus) {
	if center == nil || bus == nil {
		return
	}

	center.Subscribe(func(c notify.Change) {
		if c.Expired {
			bus.PublishNotificationExpired(NotificationExpiredPayload{Notification: c.Notification})
			return
		}
		bus.PublishNotificationPublished(NotificationPublishedPayload{Notification: c.Notification})
	})
}
