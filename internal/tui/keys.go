package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	MoveUp   key.Binding
	MoveDown key.Binding
	Nest     key.Binding

	PrevContainer key.Binding
	NextContainer key.Binding

	Unnest key.Binding
	Delete key.Binding
	Detail key.Binding
	CopyID key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		MoveUp:   key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
		MoveDown: key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
		Nest:     key.NewBinding(key.WithKeys("tab", ">", "L"), key.WithHelp("tab", "nest")),

		PrevContainer: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "to previous container")),
		NextContainer: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "to next container")),

		Unnest: key.NewBinding(key.WithKeys("shift+tab", "<", "H"), key.WithHelp("S-tab", "un-nest")),
		Delete: key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Detail: key.NewBinding(key.WithKeys("enter", " "), key.WithHelp("enter", "details")),
		CopyID: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
		Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MoveUp, k.MoveDown, k.Nest, k.Unnest, k.Delete, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Detail, k.CopyID},
		{k.MoveUp, k.MoveDown, k.Nest, k.Unnest},
		{k.PrevContainer, k.NextContainer},
		{k.Delete, k.Help, k.Quit},
	}
}
