package eventbus

// PublishPhaseChanged publishes EventPhaseChanged.
func (bus *EventBus) PublishPhaseChanged(p PhaseChangedPayload) {
	bus.send(EventPhaseChanged, p)
}

// SubscribePhaseChanged registers fn for EventPhaseChanged.
func (bus *EventBus) SubscribePhaseChanged(fn func(PhaseChangedPayload)) {
	subscribeTyped(bus, EventPhaseChanged, fn)
}

// PublishAnalysisCompleted publishes EventAnalysisCompleted.
func (bus *EventBus) PublishAnalysisCompleted(p AnalysisCompletedPayload) {
	bus.send(EventAnalysisCompleted, p)
}

// SubscribeAnalysisCompleted registers fn for EventAnalysisCompleted.
func (bus *EventBus) SubscribeAnalysisCompleted(fn func(AnalysisCompletedPayload)) {
	subscribeTyped(bus, EventAnalysisCompleted, fn)
}

// PublishVerificationCompleted publishes EventVerificationCompleted.
func (bus *EventBus) PublishVerificationCompleted(p VerificationCompletedPayload) {
	bus.send(EventVerificationCompleted, p)
}

// SubscribeVerificationCompleted registers fn for EventVerificationCompleted.
func (bus *EventBus) SubscribeVerificationCompleted(fn func(VerificationCompletedPayload)) {
	subscribeTyped(bus, EventVerificationCompleted, fn)
}

// PublishNotificationPublished publishes EventNotificationPublished.
func (bus *EventBus) PublishNotificationPublished(p NotificationPublishedPayload) {
	bus.send(EventNotificationPublished, p)
}

// SubscribeNotificationPublished registers fn for EventNotificationPublished.
func (bus *EventBus) SubscribeNotificationPublished(fn func(NotificationPublishedPayload)) {
	subscribeTyped(bus, EventNotificationPublished, fn)
}

// PublishNotificationExpired publishes EventNotificationExpired.
func (bus *EventBus) PublishNotificationExpired(p NotificationExpiredPayload) {
	bus.send(EventNotificationExpired, p)
}

// SubscribeNotificationExpired registers fn for EventNotificationExpired.
func (bus *EventBus) SubscribeNotificationExpired(fn func(NotificationExpiredPayload)) {
	subscribeTyped(bus, EventNotificationExpired, fn)
}

// PublishAuthChanged publishes EventAuthChanged.
func (bus *EventBus) PublishAuthChanged(p AuthChangedPayload) {
	bus.send(EventAuthChanged, p)
}

// SubscribeAuthChanged registers fn for EventAuthChanged.
func (bus *EventBus) SubscribeAuthChanged(fn func(AuthChangedPayload)) {
	subscribeTyped(bus, EventAuthChanged, fn)
}

// PublishTaskRecorded publishes EventTaskRecorded.
func (bus *EventBus) PublishTaskRecorded(p TaskRecordedPayload) {
	bus.send(EventTaskRecorded, p)
}

// SubscribeTaskRecorded registers fn for EventTaskRecorded.
func (bus *EventBus) SubscribeTaskRecorded(fn func(TaskRecordedPayload)) {
	subscribeTyped(bus, EventTaskRecorded, fn)
}

// PublishTuiStarted publishes EventTuiStarted.
func (bus *EventBus) PublishTuiStarted(p TUIStartedPayload) {
	bus.send(EventTuiStarted, p)
}

// SubscribeTuiStarted registers fn for EventTuiStarted.
func (bus *EventBus) SubscribeTuiStarted(fn func(TUIStartedPayload)) {
	subscribeTyped(bus, EventTuiStarted, fn)
}

// PublishTuiStopped publishes EventTuiStopped.
func (bus *EventBus) PublishTuiStopped(p TUIStoppedPayload) {
	bus.send(EventTuiStopped, p)
}

// SubscribeTuiStopped registers fn for EventTuiStopped.
func (bus *EventBus) SubscribeTuiStopped(fn func(TUIStoppedPayload)) {
	subscribeTyped(bus, EventTuiStopped, fn)
}

func subscribeTyped[T any](bus *EventBus, event Event, fn func(T)) {
	bus.subscribe(event, func(payload any) {
		if p, ok := payload.(T); ok {
			fn(p)
		}
	})
}
