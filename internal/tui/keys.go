package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings for the panel.
type KeyMap struct {
	// List
	Up       key.Binding
	Down     key.Binding
	Open     key.Binding
	Dismiss  key.Binding
	ClearAll key.Binding

	// Banner
	DismissBanner key.Binding
	FlickUp       key.Binding
	FlickDown     key.Binding
	FlickLeft     key.Binding
	FlickRight    key.Binding

	// Gates
	ToggleDND   key.Binding
	ToggleLock  key.Binding
	TogglePanel key.Binding
	ToggleLED   key.Binding

	// Global
	Help key.Binding
	Quit key.Binding
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Dismiss, k.DismissBanner, k.FlickUp, k.Help, k.Quit}
}

// FullHelp returns all bindings grouped by column.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open, k.Dismiss, k.ClearAll},
		{k.DismissBanner, k.FlickUp, k.FlickDown, k.FlickLeft, k.FlickRight},
		{k.ToggleDND, k.ToggleLock, k.TogglePanel, k.ToggleLED},
		{k.Help, k.Quit},
	}
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "dismiss"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "clear all"),
		),
		DismissBanner: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "close banner"),
		),
		FlickUp: key.NewBinding(
			key.WithKeys("K", "shift+up"),
			key.WithHelp("K", "flick banner up"),
		),
		FlickDown: key.NewBinding(
			key.WithKeys("J", "shift+down"),
			key.WithHelp("J", "flick banner down"),
		),
		FlickLeft: key.NewBinding(
			key.WithKeys("H", "shift+left"),
			key.WithHelp("H", "flick banner left"),
		),
		FlickRight: key.NewBinding(
			key.WithKeys("L", "shift+right"),
			key.WithHelp("L", "flick banner right"),
		),
		ToggleDND: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "do not disturb"),
		),
		ToggleLock: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "lock screen"),
		),
		TogglePanel: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "panel open"),
		),
		ToggleLED: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "LED"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
