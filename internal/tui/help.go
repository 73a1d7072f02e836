package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

var helpOverlayStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorBrand).
	Padding(1, 2).
	MarginTop(1)

// HelpModel renders the key bindings of one screen, either as the full
// overlay toggled with '?' or as the one-line footer.
type HelpModel struct {
	help   help.Model
	screen string
	keymap help.KeyMap
}

// NewHelpModel creates the help for screen.
func NewHelpModel(screen string, keymap help.KeyMap) HelpModel {
	h := help.New()
	h.ShowAll = true
	return HelpModel{help: h, screen: screen, keymap: keymap}
}

// View renders the full overlay.
func (m HelpModel) View(width int) string {
	m.help.Width = max(width-8, 20) // border + padding
	body := m.help.View(m.keymap)
	if m.screen != "" {
		body = titleStyle.Render(m.screen+" keys") + "\n\n" + body
	}
	return helpOverlayStyle.Render(body)
}

// ShortView renders the one-line footer.
func (m HelpModel) ShortView(width int) string {
	m.help.ShowAll = false
	m.help.Width = width
	return m.help.View(m.keymap)
}
