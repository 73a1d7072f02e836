package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the grid view.
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	NextPage key.Binding
	PrevPage key.Binding

	// Actions
	Open        key.Binding
	Browse      key.Binding
	Search      key.Binding
	FieldSearch key.Binding
	Sort        key.Binding
	Essential   key.Binding
	ClearSearch key.Binding
	Refresh     key.Binding
	Collections key.Binding
	Dashboard   key.Binding
	Help        key.Binding
	Quit        key.Binding
	Apply       key.Binding
	Cancel      key.Binding

	// Column layout
	ColumnPrev   key.Binding
	ColumnNext   key.Binding
	MoveLeft     key.Binding
	MoveRight    key.Binding
	HideColumn   key.Binding
	ResetColumns key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous row"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next row"),
		),
		NextPage: key.NewBinding(
			key.WithKeys("right", "l", "n"),
			key.WithHelp("→/n", "next page"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("left", "h", "p"),
			key.WithHelp("←/p", "previous page"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "view record"),
		),
		Browse: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open link"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		FieldSearch: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "search a field"),
		),
		Sort: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "sort by field"),
		),
		Essential: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "essential columns"),
		),
		ClearSearch: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "clear search"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Collections: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "collections"),
		),
		Dashboard: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "dashboard"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Apply: key.NewBinding(
			key.WithKeys("enter"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
		),
		ColumnPrev: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous column"),
		),
		ColumnNext: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next column"),
		),
		MoveLeft: key.NewBinding(
			key.WithKeys("<"),
			key.WithHelp("<", "move column left"),
		),
		MoveRight: key.NewBinding(
			key.WithKeys(">"),
			key.WithHelp(">", "move column right"),
		),
		HideColumn: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "hide column"),
		),
		ResetColumns: key.NewBinding(
			key.WithKeys("="),
			key.WithHelp("=", "reset columns"),
		),
	}
}

// ShortHelp returns key bindings to be shown in the mini help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit}
}

// FullHelp returns key bindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.NextPage, k.PrevPage},
		{k.Open, k.Browse, k.Search, k.FieldSearch, k.ClearSearch},
		{k.Sort, k.Essential, k.Refresh},
		{k.ColumnPrev, k.ColumnNext, k.MoveLeft, k.MoveRight, k.HideColumn, k.ResetColumns},
		{k.Collections, k.Dashboard, k.Help, k.Quit},
	}
}

// DashboardKeyMap defines the key bindings of the dashboard.
type DashboardKeyMap struct {
	Up          key.Binding
	Down        key.Binding
	SyncKind    key.Binding
	SyncIssues  key.Binding
	Resync      key.Binding
	Refresh     key.Binding
	Collections key.Binding
	Logout      key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// DefaultDashboardKeyMap returns the default dashboard bindings.
func DefaultDashboardKeyMap() DashboardKeyMap {
	return DashboardKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "previous repository"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next repository"),
		),
		SyncKind: key.NewBinding(
			key.WithKeys("1", "2", "3", "4", "5", "6"),
			key.WithHelp("1-6", "sync panel"),
		),
		SyncIssues: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", "sync issues of repository"),
		),
		Resync: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "re-sync integration"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Collections: key.NewBinding(
			key.WithKeys("c", "enter"),
			key.WithHelp("c", "browse collections"),
		),
		Logout: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "log out"),
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

// ShortHelp returns key bindings to be shown in the mini help view.
func (k DashboardKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.SyncKind, k.Resync, k.Collections, k.Help, k.Quit}
}

// FullHelp returns key bindings for the expanded help view.
func (k DashboardKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.SyncKind, k.SyncIssues},
		{k.Resync, k.Refresh, k.Collections},
		{k.Logout, k.Help, k.Quit},
	}
}
