package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hay-kot/tradeoff/internal/core/notify"
)

const toastWidth = 50

// notifyChangeMsg carries a notification center change into the update loop.
type notifyChangeMsg notify.Change

// newToastFeed forwards notification center changes into the program. The
// center calls subscribers synchronously from inside session methods; the
// latest change always describes the slot, so coalescing loses nothing.
func newToastFeed(center *notify.Center) *latestFeed[notify.Change] {
	f := newLatestFeed[notify.Change]()
	center.Subscribe(f.send)
	return f
}

func toNotifyMsg(c notify.Change) tea.Msg {
	return notifyChangeMsg(c)
}

// ToastController holds the single notification currently on screen.
type ToastController struct {
	current *notify.Notification
}

// Apply folds a center change into the controller.
func (c *ToastController) Apply(ch notify.Change) {
	if ch.Expired {
		if c.current != nil && c.current.ID == ch.Notification.ID {
			c.current = nil
		}
		return
	}
	n := ch.Notification
	c.current = &n
}

// Current returns the displayed notification.
func (c *ToastController) Current() (notify.Notification, bool) {
	if c.current == nil {
		return notify.Notification{}, false
	}
	return *c.current, true
}

func renderToast(n notify.Notification) string {
	style := toastSuccessStyle
	icon := "✓"
	if n.Severity == notify.SeverityError {
		style = toastErrorStyle
		icon = "✗"
	}

	content := icon + " " + n.Title
	if n.Message != "" {
		content += "\n" + n.Message
	}
	return style.Width(toastWidth).Render(content)
}
