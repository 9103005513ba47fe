package notify

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// manualScheduler records scheduled callbacks so tests can fire them.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

type manualTimer struct {
	d       time.Duration
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *manualScheduler) schedule(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{d: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// fire runs the i-th scheduled callback regardless of whether it was stopped,
// the way a timer that already fired would race a Stop call.
func (s *manualScheduler) fire(i int) {
	s.mu.Lock()
	fn := s.timers[i].fn
	s.mu.Unlock()
	fn()
}

func newManualCenter(t *testing.T, dwell time.Duration) (*Center, *manualScheduler) {
	t.Helper()
	s := &manualScheduler{}
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewCenter(dwell, WithScheduler(s.schedule), WithClock(func() time.Time { return fixed }))
	return c, s
}

func TestCenter_Notify_replaces_current(t *testing.T) {
	c, _ := newManualCenter(t, time.Second)

	first := c.Notify("first", "one", SeveritySuccess)
	second := c.Notify("second", "two", SeverityError)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, second.ID, cur.ID)
	assert.NotEqual(t, first.ID, cur.ID)
	assert.Equal(t, "second", cur.Title)
	assert.Equal(t, SeverityError, cur.Severity)
}

func TestCenter_Notify_sets_expiry_from_dwell(t *testing.T) {
	c, s := newManualCenter(t, 3*time.Second)

	n := c.Notify("title", "msg", SeveritySuccess)

	assert.Equal(t, n.CreatedAt.Add(3*time.Second), n.ExpiresAt)
	require.Len(t, s.timers, 1)
	assert.Equal(t, 3*time.Second, s.timers[0].d)
}

func TestCenter_expiry_clears_current(t *testing.T) {
	c, s := newManualCenter(t, time.Second)

	c.Notify("title", "msg", SeveritySuccess)
	s.fire(0)

	_, ok := c.Current()
	assert.False(t, ok)
}

func TestCenter_stale_timer_does_not_clear_newer(t *testing.T) {
	c, s := newManualCenter(t, time.Second)

	c.Notify("old", "msg", SeveritySuccess)
	newer := c.Notify("new", "msg", SeverityError)

	// The first timer fires late, after it was superseded.
	s.fire(0)

	cur, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, newer.ID, cur.ID)
	assert.True(t, s.timers[0].stopped)
}

func TestCenter_Subscribe_receives_show_and_expire(t *testing.T) {
	c, s := newManualCenter(t, time.Second)

	var changes []Change
	c.Subscribe(func(ch Change) { changes = append(changes, ch) })

	c.Successf("done", "analyzed %d", 1)
	s.fire(0)

	require.Len(t, changes, 2)
	assert.False(t, changes[0].Expired)
	assert.Equal(t, "analyzed 1", changes[0].Notification.Message)
	assert.True(t, changes[1].Expired)
	assert.Equal(t, changes[0].Notification.ID, changes[1].Notification.ID)
}

func TestCenter_Dismiss(t *testing.T) {
	c, _ := newManualCenter(t, time.Second)

	c.Errorf("oops", "bad")
	c.Dismiss()
	c.Dismiss() // no-op when empty

	_, ok := c.Current()
	assert.False(t, ok)
}

func TestCenter_default_dwell(t *testing.T) {
	c := NewCenter(0)
	assert.Equal(t, DefaultDwell, c.Dwell())
}

func TestCenter_real_timer_expires(t *testing.T) {
	c := NewCenter(20 * time.Millisecond)
	defer c.Close()

	expired := make(chan Change, 1)
	c.Subscribe(func(ch Change) {
		if ch.Expired {
			expired <- ch
		}
	})

	n := c.Notify("title", "msg", SeveritySuccess)

	select {
	case ch := <-expired:
		assert.Equal(t, n.ID, ch.Notification.ID)
	case <-time.After(time.Second):
		t.Fatal("notification did not expire")
	}
}

func TestNotification_Expired(t *testing.T) {
	now := time.Now()
	n := Notification{ExpiresAt: now}

	assert.True(t, n.Expired(now))
	assert.False(t, n.Expired(now.Add(-time.Millisecond)))
	assert.False(t, Notification{}.Expired(now))
}
