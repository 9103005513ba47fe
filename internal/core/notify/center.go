package notify

import (
	"fmt"
	"sync"
	"time"
)

// DefaultDwell is how long a notification stays visible.
const DefaultDwell = 3 * time.Second

// Subscriber is a callback invoked when the displayed notification changes.
type Subscriber func(Change)

// Timer is the part of *time.Timer the Center needs.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn after d. It matches time.AfterFunc.
type Scheduler func(d time.Duration, fn func()) Timer

func realScheduler(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Option configures a Center.
type Option func(*Center)

// WithScheduler replaces the expiry scheduler. Tests use it to fire expiry
// timers by hand.
func WithScheduler(s Scheduler) Option {
	return func(c *Center) { c.schedule = s }
}

// WithClock replaces the clock used to stamp notifications.
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// Center holds at most one live notification. A new notification replaces
// the current one immediately; there is no queue. Each notification
// schedules its own expiry, and an expiry only clears the slot if it still
// holds the notification that scheduled it.
//
// Expiry timers fire on their own goroutines, so the Center is safe for
// concurrent use.
type Center struct {
	dwell    time.Duration
	schedule Scheduler
	now      func() time.Time

	mu          sync.Mutex
	nextID      int64
	current     *Notification
	timer       Timer
	subscribers []Subscriber
}

// NewCenter creates a notification center. A non-positive dwell uses
// DefaultDwell.
func NewCenter(dwell time.Duration, opts ...Option) *Center {
	if dwell <= 0 {
		dwell = DefaultDwell
	}

	c := &Center{
		dwell:    dwell,
		schedule: realScheduler,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dwell returns the configured display time.
func (c *Center) Dwell() time.Duration {
	return c.dwell
}

// Subscribe registers a callback invoked on every show and expiry.
func (c *Center) Subscribe(fn Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Notify replaces the current notification and schedules its expiry.
func (c *Center) Notify(title, message string, severity Severity) Notification {
	now := c.now()

	c.mu.Lock()
	c.nextID++
	n := Notification{
		ID:        c.nextID,
		Title:     title,
		Message:   message,
		Severity:  severity,
		CreatedAt: now,
		ExpiresAt: now.Add(c.dwell),
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.current = &n
	id := n.ID
	c.timer = c.schedule(c.dwell, func() { c.expire(id) })
	subs := c.snapshotSubscribers()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(Change{Notification: n})
	}

	return n
}

// Successf shows a success notification with a formatted message.
func (c *Center) Successf(title, format string, args ...any) Notification {
	return c.Notify(title, fmt.Sprintf(format, args...), SeveritySuccess)
}

// Errorf shows an error notification with a formatted message.
func (c *Center) Errorf(title, format string, args ...any) Notification {
	return c.Notify(title, fmt.Sprintf(format, args...), SeverityError)
}

// Current returns the displayed notification, if any.
func (c *Center) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Notification{}, false
	}
	return *c.current, true
}

// Dismiss clears the displayed notification ahead of its timer.
func (c *Center) Dismiss() {
	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		return
	}
	c.expireLocked()
}

// Close stops any pending expiry timer. The displayed notification is left
// in place.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// expire clears the slot only if it still holds notification id.
func (c *Center) expire(id int64) {
	c.mu.Lock()
	if c.current == nil || c.current.ID != id {
		c.mu.Unlock()
		return
	}
	c.expireLocked()
}

// expireLocked clears the slot and notifies subscribers. c.mu must be held;
// it is released before subscribers run.
func (c *Center) expireLocked() {
	n := *c.current
	c.current = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	subs := c.snapshotSubscribers()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(Change{Notification: n, Expired: true})
	}
}

func (c *Center) snapshotSubscribers() []Subscriber {
	subs := make([]Subscriber, len(c.subscribers))
	copy(subs, c.subscribers)
	return subs
}
