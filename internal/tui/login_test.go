package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginPress(m LoginModel, msg tea.Msg) (LoginModel, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(LoginModel), cmd
}

func TestLogin_OpenBrowser(t *testing.T) {
	var opened string
	prev := openURL
	openURL = func(u string) error { opened = u; return nil }
	t.Cleanup(func() { openURL = prev })

	m := NewLoginModel("http://localhost:3000/api/auth/github", nil)
	m, _ = loginPress(m, runeKey('o'))

	assert.Equal(t, "http://localhost:3000/api/auth/github", opened)
	assert.Contains(t, m.View(), "Browser opened")
}

func TestLogin_OpenBrowserFailure(t *testing.T) {
	prev := openURL
	openURL = func(string) error { return errors.New("no display") }
	t.Cleanup(func() { openURL = prev })

	m, _ := loginPress(NewLoginModel("http://x/auth", nil), runeKey('o'))
	assert.Contains(t, m.View(), "no display")
}

func TestLogin_PasteSession(t *testing.T) {
	m := NewLoginModel("http://x/auth", errors.New("not connected"))
	assert.Contains(t, m.View(), "not connected")

	m, _ = loginPress(m, runeKey('p'))
	require.True(t, m.pasting)
	for _, r := range " s%3Aabc " {
		m, _ = loginPress(m, runeKey(r))
	}
	assert.NotContains(t, m.View(), "abc", "the cookie is masked")

	m, cmd := loginPress(m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, sessionSubmittedMsg{value: "s%3Aabc"}, cmd())
	assert.False(t, m.pasting)
	assert.Nil(t, m.err)
}

func TestLogin_EmptyPasteIgnored(t *testing.T) {
	m, _ := loginPress(NewLoginModel("http://x/auth", nil), runeKey('p'))
	m, cmd := loginPress(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.pasting)
}

func TestLogin_RecheckAndQuit(t *testing.T) {
	m := NewLoginModel("http://x/auth", nil)

	_, cmd := loginPress(m, runeKey('r'))
	require.NotNil(t, cmd)
	assert.Equal(t, recheckAuthMsg{}, cmd())

	_, cmd = loginPress(m, runeKey('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, QuitMsg{}, cmd())
}
