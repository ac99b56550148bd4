package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the tray.
type KeyMap struct {
	// Tray icon
	Toggle key.Binding
	Hide   key.Binding

	// Pane tabs
	ViewUnread key.Binding
	ViewAll    key.Binding

	// Actions
	MarkAllRead key.Binding
	Visit       key.Binding
	Refresh     key.Binding

	// Navigation
	Down key.Binding
	Up   key.Binding

	Help key.Binding
	Quit key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "toggle notifications"),
		),
		Hide: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close"),
		),
		ViewUnread: key.NewBinding(
			key.WithKeys("u", "1"),
			key.WithHelp("u/1", "unread"),
		),
		ViewAll: key.NewBinding(
			key.WithKeys("a", "2"),
			key.WithHelp("a/2", "view all"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark all as read"),
		),
		Visit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Toggle, k.ViewUnread, k.ViewAll, k.MarkAllRead,
		k.Visit, k.Help, k.Quit,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Hide, k.Help, k.Quit},
		{k.ViewUnread, k.ViewAll, k.Refresh},
		{k.Up, k.Down, k.Visit, k.MarkAllRead},
	}
}
