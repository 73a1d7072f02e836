package tui

import "github.com/charmbracelet/lipgloss"

// Palette, as 256-color codes.
const (
	colorAccent  = lipgloss.Color("205")
	colorBrand   = lipgloss.Color("62")
	colorMuted   = lipgloss.Color("241")
	colorBorder  = lipgloss.Color("240")
	colorText    = lipgloss.Color("252")
	colorLink    = lipgloss.Color("39")
	colorOK      = lipgloss.Color("42")
	colorFailed  = lipgloss.Color("196")
	colorWarning = lipgloss.Color("228")
)

// Screen-level styles shared by the pickers, login and dashboard.
var (
	TitleStyle        = lipgloss.NewStyle().Bold(true).Foreground(colorBrand).MarginBottom(1)
	SelectedItemStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))
	NormalItemStyle   = lipgloss.NewStyle().Foreground(colorText)
	ErrorStyle        = lipgloss.NewStyle().Bold(true).Foreground(colorFailed)
	SuccessStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorOK)
	PromptStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).MarginBottom(1)
	HelpStyle         = lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1)
)

// Grid, detail and dashboard panels.
var (
	dimStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	titleStyle  = lipgloss.NewStyle().Bold(true)
	accentStyle = lipgloss.NewStyle().Foreground(colorAccent)
	badgeStyle  = lipgloss.NewStyle().Background(colorAccent).Foreground(lipgloss.Color("0")).Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)
	focusedPanelStyle = panelStyle.BorderForeground(colorAccent)

	detailLabelStyle = lipgloss.NewStyle().Foreground(colorMuted)
	detailValueStyle = lipgloss.NewStyle().Foreground(colorText)
	linkStyle        = lipgloss.NewStyle().Foreground(colorLink).Underline(true)
	warningStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
)

// toastStyle colors a status-line notification by outcome.
func toastStyle(failed bool) lipgloss.Style {
	if failed {
		return ErrorStyle
	}
	return SuccessStyle
}
