package tui

import tea "github.com/charmbracelet/bubbletea"

// latestFeed hands values from synchronous callbacks to the update loop
// without blocking the caller. It holds one pending value and a newer value
// replaces an unread one, so the reader always sees the latest state.
type latestFeed[T any] struct {
	ch chan T
}

func newLatestFeed[T any]() *latestFeed[T] {
	return &latestFeed[T]{ch: make(chan T, 1)}
}

func (f *latestFeed[T]) send(v T) {
	for {
		select {
		case f.ch <- v:
			return
		default:
		}
		select {
		case <-f.ch:
		default:
		}
	}
}

// wait returns a Cmd that blocks for the next value and wraps it.
func (f *latestFeed[T]) wait(wrap func(T) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return wrap(<-f.ch)
	}
}
