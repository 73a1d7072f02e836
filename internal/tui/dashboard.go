package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/ghsync/internal/dashboard"
	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/prefs"
	"github.com/h0rv/ghsync/internal/syncer"
	"github.com/muesli/reflow/truncate"
)

const (
	panelWidth     = 34
	maxStatusRows  = 8
	recentLabelMax = panelWidth - 6
)

// recentLabelFields are tried in order to name a recent item.
var recentLabelFields = []string{"title", "full_name", "name", "login", "message", "sha"}

// DashboardModel shows the per-kind overview and drives sync actions.
type DashboardModel struct {
	// Dependencies
	loader *dashboard.Loader
	syncer *syncer.Syncer
	prefs  *prefs.Store // optional
	ctx    context.Context

	user     *domain.AuthUser
	settings prefs.DashboardSettings

	// UI components
	keymap     DashboardKeyMap
	help       HelpModel
	spinner    spinner.Model
	repoPrompt textinput.Model

	// State
	stats       *dashboard.Stats
	loading     bool
	cursor      int
	promptOpen  bool
	showHelp    bool
	toast       string
	toastFailed bool

	width  int
	height int
}

// NewDashboardModel creates the dashboard. user may be nil.
func NewDashboardModel(loader *dashboard.Loader, s *syncer.Syncer, p *prefs.Store, user *domain.AuthUser, ctx context.Context) DashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "repository id"
	ti.Prompt = "Sync commits of repository: "

	settings := prefs.DashboardSettings{ShowIntegrationOverview: true, ShowDataOverview: true}
	if p != nil {
		if saved, err := p.DashboardSettings(); err == nil {
			settings = saved
		}
	}

	return DashboardModel{
		loader:     loader,
		syncer:     s,
		prefs:      p,
		ctx:        ctx,
		user:       user,
		settings:   settings,
		keymap:     DefaultDashboardKeyMap(),
		help:       NewHelpModel("Dashboard", DefaultDashboardKeyMap()),
		spinner:    sp,
		repoPrompt: ti,
	}
}

// Init starts the first load.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize(), m.load())
}

// Update handles messages
func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case statsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.setToast(fmt.Sprintf("Dashboard failed: %v", msg.err), true)
			return m, nil
		}
		m.stats = msg.stats
		if n := len(m.needsSync()); m.cursor >= n {
			m.cursor = max(n-1, 0)
		}
		return m, nil

	case syncDoneMsg:
		// Finished actions report through NotifyMsg; only rejected ones land here.
		if errors.Is(msg.err, syncer.ErrSyncInFlight) || errors.Is(msg.err, syncer.ErrInvalidRequest) {
			m.setToast(msg.err.Error(), true)
		}
		return m, nil

	case NotifyMsg:
		m.setToast(msg.Notification.Message, !msg.Notification.Success)
		return m, nil

	case RefetchMsg:
		cmd := m.load()
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

func (m *DashboardModel) setToast(text string, failed bool) {
	m.toast = text
	m.toastFailed = failed
}

// handleKeyPress processes keyboard input
func (m DashboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		if msg.String() == "?" || msg.String() == "q" || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	if m.promptOpen {
		switch msg.Type {
		case tea.KeyEnter:
			m.promptOpen = false
			m.repoPrompt.Blur()
			repo := strings.TrimSpace(m.repoPrompt.Value())
			m.repoPrompt.SetValue("")
			return m, m.sync(syncer.Request{Kind: domain.KindCommits, RepositoryID: repo})
		case tea.KeyEsc:
			m.promptOpen = false
			m.repoPrompt.Blur()
			return m, nil
		}
		var cmd tea.Cmd
		m.repoPrompt, cmd = m.repoPrompt.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keymap.Down):
		if m.cursor < len(m.needsSync())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keymap.SyncKind):
		kind := domain.AllKinds[int(msg.Runes[0]-'1')]
		if kind == domain.KindCommits {
			m.promptOpen = true
			cmd := m.repoPrompt.Focus()
			return m, cmd
		}
		return m, m.sync(syncer.Request{Kind: kind})
	case key.Matches(msg, m.keymap.SyncIssues):
		repos := m.needsSync()
		if m.cursor < len(repos) {
			return m, m.sync(syncer.Request{Kind: domain.KindIssues, RepositoryID: repos[m.cursor].RepositoryID})
		}
	case key.Matches(msg, m.keymap.Resync):
		return m, m.resync()
	case key.Matches(msg, m.keymap.Refresh):
		cmd := m.load()
		return m, cmd
	case key.Matches(msg, m.keymap.Collections):
		return m, func() tea.Msg { return showCollectionsMsg{} }
	case key.Matches(msg, m.keymap.Logout):
		return m, func() tea.Msg { return logoutRequestedMsg{} }
	case msg.String() == "O":
		m.settings.ShowIntegrationOverview = !m.settings.ShowIntegrationOverview
		cmd := m.saveSettings()
		return m, cmd
	case msg.String() == "V":
		m.settings.ShowDataOverview = !m.settings.ShowDataOverview
		cmd := m.saveSettings()
		return m, cmd
	}
	return m, nil
}

func (m *DashboardModel) saveSettings() tea.Cmd {
	if m.prefs != nil {
		if err := m.prefs.SetDashboardSettings(m.settings); err != nil {
			m.setToast(fmt.Sprintf("Saving settings failed: %v", err), true)
		}
	}
	return m.load()
}

// load fetches the panels enabled in settings.
func (m *DashboardModel) load() tea.Cmd {
	if m.loader == nil {
		return nil
	}
	m.loading = true
	l := *m.loader
	if !m.settings.ShowDataOverview {
		l.Kinds = nil
	}
	l.WithSyncStatus = m.settings.ShowIntegrationOverview
	ctx := m.ctx
	return func() tea.Msg {
		stats, err := l.Load(ctx)
		return statsLoadedMsg{stats: stats, err: err}
	}
}

func (m DashboardModel) sync(req syncer.Request) tea.Cmd {
	s, ctx := m.syncer, m.ctx
	return func() tea.Msg {
		_, err := s.Sync(ctx, req)
		return syncDoneMsg{key: req.Key(), err: err}
	}
}

func (m DashboardModel) resync() tea.Cmd {
	s, ctx := m.syncer, m.ctx
	return func() tea.Msg {
		return syncDoneMsg{key: syncer.ResyncKey, err: s.Resync(ctx)}
	}
}

func (m DashboardModel) needsSync() []domain.SyncStatus {
	if m.stats == nil {
		return nil
	}
	var out []domain.SyncStatus
	for _, st := range m.stats.SyncStatus {
		if st.NeedsSync {
			out = append(out, st)
		}
	}
	return out
}

// View renders the dashboard
func (m DashboardModel) View() string {
	width := m.width
	if width == 0 {
		width = 100
	}

	var sections []string
	sections = append(sections, m.renderHeader(width))

	if m.showHelp {
		sections = append(sections, m.help.View(width))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.toast != "" {
		sections = append(sections, toastStyle(m.toastFailed).Render(truncate.StringWithTail(m.toast, uint(width), "…")))
	}
	if m.promptOpen {
		sections = append(sections, m.repoPrompt.View())
	}

	if m.stats == nil {
		sections = append(sections, m.spinner.View()+" Loading dashboard...")
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	if m.settings.ShowDataOverview {
		sections = append(sections, m.renderPanels(width))
	}
	if m.settings.ShowIntegrationOverview {
		sections = append(sections, m.renderIntegration(width))
	}
	sections = append(sections, m.help.ShortView(width))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m DashboardModel) renderHeader(width int) string {
	title := "GitHub Integration"
	if m.user != nil && m.user.Username != "" {
		title += " · @" + m.user.Username
	}
	status := ""
	if m.loading {
		status = m.spinner.View() + "loading"
	} else if m.stats != nil {
		status = "updated " + m.stats.LoadedAt.Format("15:04:05")
	}
	padding := width - lipgloss.Width(title) - lipgloss.Width(status) - 2
	if padding < 1 {
		padding = 1
	}
	return titleStyle.Render(title) + strings.Repeat(" ", padding) + dimStyle.Render(status)
}

// renderPanels lays the per-kind panels out in rows that fit width.
func (m DashboardModel) renderPanels(width int) string {
	perRow := max(width/(panelWidth+2), 1)
	var rows, row []string
	for i, p := range m.stats.Panels {
		row = append(row, m.renderPanel(i, p))
		if len(row) == perRow {
			rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, row...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m DashboardModel) renderPanel(i int, p dashboard.Panel) string {
	var lines []string
	header := fmt.Sprintf("[%d] %s", panelNumber(p.Kind, i), p.Kind.Label())
	if m.syncer != nil && m.syncer.InFlight(string(p.Kind)) {
		header += " " + m.spinner.View()
	}
	lines = append(lines, accentStyle.Bold(true).Render(header))

	if p.Err != nil {
		lines = append(lines, ErrorStyle.Render(truncate.StringWithTail(p.Err.Error(), recentLabelMax, "…")))
	} else {
		lines = append(lines, titleStyle.Render(fmt.Sprintf("%d", p.Total))+dimStyle.Render(" total"))
		if len(p.Recent) == 0 {
			lines = append(lines, dimStyle.Render("(nothing synced yet)"))
		}
		for _, rec := range p.Recent {
			lines = append(lines, "• "+truncate.StringWithTail(recentLabel(rec), recentLabelMax, "…"))
		}
	}
	return panelStyle.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// panelNumber is the sync key of kind, falling back to the panel position.
func panelNumber(kind domain.EntityKind, fallback int) int {
	for i, k := range domain.AllKinds {
		if k == kind {
			return i + 1
		}
	}
	return fallback + 1
}

func (m DashboardModel) renderIntegration(width int) string {
	var lines []string
	lines = append(lines, accentStyle.Bold(true).Render("Issue sync status"))
	if m.stats.SyncStatusErr != nil {
		lines = append(lines, ErrorStyle.Render(m.stats.SyncStatusErr.Error()))
	} else {
		repos := m.needsSync()
		lines = append(lines, fmt.Sprintf("%d of %d repositories need an issue sync", len(repos), len(m.stats.SyncStatus)))
		start := 0
		if m.cursor >= maxStatusRows {
			start = m.cursor - maxStatusRows + 1
		}
		for i := start; i < len(repos) && i < start+maxStatusRows; i++ {
			name := repos[i].FullName
			if name == "" {
				name = repos[i].RepositoryName
			}
			line := fmt.Sprintf("%s (%d issues)", name, repos[i].IssueCount)
			if m.syncer != nil && m.syncer.InFlight(syncer.Request{Kind: domain.KindIssues, RepositoryID: repos[i].RepositoryID}.Key()) {
				line += " " + m.spinner.View()
			}
			if i == m.cursor {
				lines = append(lines, SelectedItemStyle.Render("> "+line))
			} else {
				lines = append(lines, NormalItemStyle.Render("  "+line))
			}
		}
	}
	if m.syncer != nil && m.syncer.InFlight(syncer.ResyncKey) {
		lines = append(lines, m.spinner.View()+" re-syncing organizations and repositories")
	}
	return panelStyle.Width(max(width-4, panelWidth)).Render(strings.Join(lines, "\n"))
}

// recentLabel names rec by its most descriptive field.
func recentLabel(rec domain.Record) string {
	for _, f := range recentLabelFields {
		if v, ok := rec.Get(f); ok && v.Kind == domain.KindString && v.Str != "" {
			return strings.SplitN(v.Str, "\n", 2)[0]
		}
	}
	if id := rec.ID(); id != "" {
		return "#" + id
	}
	return "(unnamed)"
}

// Message types
type (
	statsLoadedMsg struct {
		stats *dashboard.Stats
		err   error
	}
	syncDoneMsg struct {
		key string
		err error
	}
	logoutRequestedMsg struct{}
)
