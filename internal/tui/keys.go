package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Submit  key.Binding
	Example key.Binding
	Attach  key.Binding
	Remove  key.Binding
	Verify  key.Binding
	Reset   key.Binding
	Dismiss key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "analyze")),
		Example: key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "example")),
		Attach:  key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "attach photo")),
		Remove:  key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "remove photo")),
		Verify:  key.NewBinding(key.WithKeys("ctrl+v"), key.WithHelp("ctrl+v", "verify")),
		Reset:   key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset")),
		Dismiss: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss")),
		Refresh: key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "backend status")),
		Quit:    key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Example, k.Attach, k.Verify, k.Reset, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Example, k.Reset},
		{k.Attach, k.Remove, k.Verify},
		{k.Dismiss, k.Refresh, k.Quit},
	}
}
