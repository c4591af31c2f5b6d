package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Replay    key.Binding
	Follow    key.Binding
	Filter    key.Binding
	History   key.Binding
	Archive   key.Binding
	Search    key.Binding
	Copy      key.Binding
	VIP       key.Binding
	Coupon    key.Binding
	Email     key.Binding
	Label     key.Binding
	Back      key.Binding
	Quit      key.Binding
	PreviewUp key.Binding
	PreviewDn key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k", "ctrl+k"),
		key.WithHelp("up/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j", "ctrl+j"),
		key.WithHelp("dn/j", "down"),
	),
	Replay: key.NewBinding(
		key.WithKeys("enter", "r"),
		key.WithHelp("enter", "replay"),
	),
	Follow: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "follow"),
	),
	Filter: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "filter"),
	),
	History: key.NewBinding(
		key.WithKeys("h"),
		key.WithHelp("h", "history"),
	),
	Archive: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "live/archive"),
	),
	Search: key.NewBinding(
		key.WithKeys("/"),
		key.WithHelp("/", "search archive"),
	),
	Copy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy id"),
	),
	VIP: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "vip"),
	),
	Coupon: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "coupon"),
	),
	Email: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "email"),
	),
	Label: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "label visitor"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "back"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	PreviewUp: key.NewBinding(
		key.WithKeys("ctrl+u"),
		key.WithHelp("C-u", "preview up"),
	),
	PreviewDn: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("C-d", "preview down"),
	),
	PageUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "preview pgup"),
	),
	PageDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "preview pgdn"),
	),
}
