package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LoginModel guides the user through connecting a GitHub account: the OAuth
// flow runs in the browser and the resulting session cookie is pasted back.
type LoginModel struct {
	authURL string
	input   textinput.Model
	pasting bool
	notice  string
	err     error
	width   int
}

// NewLoginModel creates the login screen. err explains why it is shown, if known.
func NewLoginModel(authURL string, err error) LoginModel {
	ti := textinput.New()
	ti.Placeholder = "connect.sid=... or the bare cookie value"
	ti.Prompt = "Session: "
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 4096

	return LoginModel{
		authURL: authURL,
		input:   ti,
		err:     err,
	}
}

// Init initializes the model.
func (m LoginModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages and updates the model state.
func (m LoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-12, 20)
		return m, nil

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case tea.KeyMsg:
		if m.pasting {
			switch msg.Type {
			case tea.KeyEnter:
				value := strings.TrimSpace(m.input.Value())
				m.pasting = false
				m.input.Blur()
				m.input.SetValue("")
				if value == "" {
					return m, nil
				}
				m.notice = "Checking session..."
				m.err = nil
				return m, func() tea.Msg { return sessionSubmittedMsg{value: value} }
			case tea.KeyEsc:
				m.pasting = false
				m.input.Blur()
				return m, nil
			}
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, func() tea.Msg { return QuitMsg{} }
		case "o":
			if err := openURL(m.authURL); err != nil {
				m.err = fmt.Errorf("could not open browser: %w", err)
			} else {
				m.notice = "Browser opened. Finish the GitHub login, then press p to paste the session cookie."
			}
			return m, nil
		case "p", "enter":
			m.pasting = true
			m.notice = ""
			cmd := m.input.Focus()
			return m, cmd
		case "r":
			m.notice = "Checking session..."
			m.err = nil
			return m, func() tea.Msg { return recheckAuthMsg{} }
		}
	}
	return m, nil
}

// View renders the model.
func (m LoginModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Connect your GitHub account"))
	b.WriteString("\n")
	b.WriteString("1. Press " + accentStyle.Render("o") + " to start the GitHub login in your browser:\n")
	b.WriteString("   " + lipgloss.NewStyle().Underline(true).Render(m.authURL) + "\n")
	b.WriteString("2. Press " + accentStyle.Render("p") + " and paste the session cookie the backend set.\n")
	b.WriteString("3. Press " + accentStyle.Render("r") + " to check again if the session is already configured.\n\n")

	if m.pasting {
		b.WriteString(m.input.View() + "\n")
		b.WriteString(dimStyle.Render("enter: submit · esc: cancel") + "\n")
	}
	if m.notice != "" {
		b.WriteString(PromptStyle.Render(m.notice) + "\n")
	}
	if m.err != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	}
	b.WriteString(HelpStyle.Render("q: quit"))
	return b.String()
}

// Message types
type (
	sessionSubmittedMsg struct{ value string }
	recheckAuthMsg      struct{}
)
