package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// durableWait is how long Publish waits for buffer space before dropping an
// event that feeds the task store or the signed-in state. Other events are
// dropped as soon as the buffer is full.
const durableWait = 250 * time.Millisecond

var durable = map[Event]bool{
	EventAnalysisCompleted:     true,
	EventVerificationCompleted: true,
	EventAuthChanged:           true,
}

// IsDurable reports whether Publish waits for buffer space for event.
func IsDurable(event Event) bool {
	return durable[event]
}

// Stats counts bus traffic since the bus was created.
type Stats struct {
	Published uint64
	Dropped   uint64
	Panics    uint64
}

type hookList[F any] struct {
	mu  sync.RWMutex
	fns []F
}

func (l *hookList[F]) add(fn F) {
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *hookList[F]) snapshot() []F {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fns := make([]F, len(l.fns))
	copy(fns, l.fns)
	return fns
}

// hooks holds the lifecycle hooks and traffic counters for the EventBus.
type hooks struct {
	publish   hookList[func(Event, any)]
	drop      hookList[func(Event, any)]
	subscribe hookList[func(Event)]
	panic     hookList[func(Event, any, any)]

	published atomic.Uint64
	dropped   atomic.Uint64
	panics    atomic.Uint64
}

// OnPublish registers a hook that fires after an event is enqueued.
func (bus *EventBus) OnPublish(fn func(Event, any)) { bus.hooks.publish.add(fn) }

// OnDrop registers a hook that fires when an event is dropped because the
// buffer stayed full.
func (bus *EventBus) OnDrop(fn func(Event, any)) { bus.hooks.drop.add(fn) }

// OnSubscribe registers a hook that fires after a subscriber is registered.
func (bus *EventBus) OnSubscribe(fn func(Event)) { bus.hooks.subscribe.add(fn) }

// OnPanic registers a hook that fires when a subscriber panics.
func (bus *EventBus) OnPanic(fn func(Event, any, any)) { bus.hooks.panic.add(fn) }

// Stats returns the traffic counters.
func (bus *EventBus) Stats() Stats {
	return Stats{
		Published: bus.hooks.published.Load(),
		Dropped:   bus.hooks.dropped.Load(),
		Panics:    bus.hooks.panics.Load(),
	}
}

// send enqueues an event and fires hooks. Durable events wait up to
// durableWait for the dispatcher to make room.
func (bus *EventBus) send(event Event, payload any) {
	env := envelope{event: event, payload: payload}

	select {
	case bus.ch <- env:
		bus.runOnPublish(env)
		return
	default:
	}

	if durable[event] {
		timer := time.NewTimer(durableWait)
		defer timer.Stop()
		select {
		case bus.ch <- env:
			bus.runOnPublish(env)
			return
		case <-timer.C:
		}
	}

	bus.hooks.dropped.Add(1)
	for _, fn := range bus.hooks.drop.snapshot() {
		fn(event, payload)
	}
}

func (bus *EventBus) runOnPublish(env envelope) {
	bus.hooks.published.Add(1)
	for _, fn := range bus.hooks.publish.snapshot() {
		fn(env.event, env.payload)
	}
}

func (bus *EventBus) runOnSubscribe(event Event) {
	for _, fn := range bus.hooks.subscribe.snapshot() {
		fn(event)
	}
}

func (bus *EventBus) runOnPanic(event Event, payload any, recovered any) {
	bus.hooks.panics.Add(1)
	for _, fn := range bus.hooks.panic.snapshot() {
		func() {
			defer func() { _ = recover() }()
			fn(event, payload, recovered)
		}()
	}
}
