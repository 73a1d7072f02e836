package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/prefs"
	"github.com/h0rv/ghsync/internal/store"
	"github.com/h0rv/ghsync/internal/viewer"
	"github.com/muesli/reflow/truncate"
	"github.com/pkg/browser"
)

// searchDebounce is the quiet period after the last keystroke before a search runs.
const searchDebounce = 300 * time.Millisecond

// Layout constants
const (
	gridHeaderLines = 2 // title line + status line
	minTableHeight  = 3
)

type gridMode int

const (
	modeNormal gridMode = iota
	modeSearch
	modeFieldTerm
)

// openURL is swapped out in tests.
var openURL = browser.OpenURL

// GridModel is the paged table over one collection.
type GridModel struct {
	// Dependencies
	store  *store.Store
	viewer *viewer.Viewer
	prefs  *prefs.Store // optional
	ctx    context.Context
	logger *slog.Logger

	// UI components
	keymap      KeyMap
	help        HelpModel
	spinner     spinner.Model
	searchInput textinput.Model
	fieldInput  textinput.Model
	table       table.Model

	// View state
	width      int
	height     int
	showHelp   bool
	mode       gridMode
	fieldPath  string
	searchSeq  int
	recent     []string
	recentIdx  int
	errorToast string
	colCursor  int  // focused column for layout keys
	colFocus   bool // focus marker shown once a layout key was used
}

// NewGridModel creates a grid over the collection already selected in s.
func NewGridModel(s *store.Store, v *viewer.Viewer, p *prefs.Store, ctx context.Context, logger *slog.Logger) GridModel {
	if logger == nil {
		logger = slog.Default()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	si := textinput.New()
	si.Placeholder = "Search..."
	si.Prompt = "/ "
	si.SetValue(s.Query().Search)

	fi := textinput.New()
	fi.Placeholder = "contains..."

	t := table.New(table.WithFocused(true), table.WithHeight(10))
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("205"))
	t.SetStyles(styles)

	m := GridModel{
		store:       s,
		viewer:      v,
		prefs:       p,
		ctx:         ctx,
		logger:      logger,
		keymap:      DefaultKeyMap(),
		help:        NewHelpModel("Data grid", DefaultKeyMap()),
		spinner:     sp,
		searchInput: si,
		fieldInput:  fi,
		table:       t,
	}
	if p != nil {
		m.recent, _ = p.RecentSearches()
	}
	m.fieldPath, _ = s.FieldSearch()
	m.rebuildTable()
	return m
}

// Init starts loading the first page.
func (m GridModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize(), m.fetch())
}

// Update handles messages
func (m GridModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeTable()
		return m, nil

	case rowsLoadedMsg:
		if msg.err != nil {
			if err := m.store.Fail(msg.gen, msg.err); err == nil {
				m.errorToast = fmt.Sprintf("Load failed: %v", msg.err)
			}
			return m, nil
		}
		if err := m.store.Apply(msg.gen, msg.result); err == nil {
			m.errorToast = ""
			m.rebuildTable()
		}
		return m, nil

	case searchDebounceMsg:
		if msg.seq != m.searchSeq {
			return m, nil
		}
		return m.commitSearch(msg.term)

	case FieldSelectedMsg:
		switch msg.Purpose {
		case PurposeSort:
			m.store.ToggleSort(msg.Field)
			m.saveCollectionPrefs()
			m.saveViewerSettings()
			return m, m.fetch()
		case PurposeSearch:
			m.fieldPath = msg.Field
			m.mode = modeFieldTerm
			m.fieldInput.Prompt = msg.Field + " ~ "
			_, term := m.store.FieldSearch()
			m.fieldInput.SetValue(term)
			m.saveCollectionPrefs()
			cmd := m.fieldInput.Focus()
			return m, cmd
		}
		return m, nil

	case RefetchMsg:
		if kind, ok := domain.ParseKind(m.store.Collection()); ok {
			for _, k := range msg.Kinds {
				if k == kind {
					return m, m.fetch()
				}
			}
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

// handleKeyPress processes keyboard input
func (m GridModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		if msg.String() == "?" || msg.String() == "q" || msg.String() == "esc" {
			m.showHelp = false
		}
		return m, nil
	}

	switch m.mode {
	case modeSearch:
		return m.handleSearchKey(msg)
	case modeFieldTerm:
		return m.handleFieldTermKey(msg)
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Search):
		m.mode = modeSearch
		m.recentIdx = -1
		m.searchInput.SetValue(m.store.Query().Search)
		m.searchInput.CursorEnd()
		cmd := m.searchInput.Focus()
		return m, cmd
	case key.Matches(msg, m.keymap.FieldSearch):
		return m, m.pickField(PurposeSearch)
	case key.Matches(msg, m.keymap.Sort):
		return m, m.pickField(PurposeSort)
	case key.Matches(msg, m.keymap.Essential):
		m.store.SetEssential(!m.store.Essential())
		m.saveViewerSettings()
		m.rebuildTable()
	case key.Matches(msg, m.keymap.ClearSearch):
		m.searchSeq++
		m.searchInput.SetValue("")
		m.fieldPath = ""
		m.store.SetFieldSearch("", "")
		m.saveCollectionPrefs()
		return m.commitSearch("")
	case key.Matches(msg, m.keymap.Refresh):
		return m, m.fetch()
	case key.Matches(msg, m.keymap.NextPage):
		if m.store.Pagination().HasNext && !m.store.Loading() {
			m.store.SetPage(m.store.Query().Page + 1)
			return m, m.fetch()
		}
	case key.Matches(msg, m.keymap.PrevPage):
		if page := m.store.Query().Page; page > 1 && !m.store.Loading() {
			m.store.SetPage(page - 1)
			return m, m.fetch()
		}
	case key.Matches(msg, m.keymap.Open):
		row, err := m.store.Row(m.table.Cursor())
		if err != nil {
			return m, nil
		}
		return m, func() tea.Msg { return openRecordMsg{record: row} }
	case key.Matches(msg, m.keymap.Browse):
		row, err := m.store.Row(m.table.Cursor())
		if err != nil {
			return m, nil
		}
		links := viewer.Links(row)
		if len(links) == 0 {
			m.errorToast = "No link on this row"
			return m, nil
		}
		if err := openURL(links[0][1]); err != nil {
			m.errorToast = fmt.Sprintf("Open failed: %v", err)
		}
	case key.Matches(msg, m.keymap.ColumnPrev), key.Matches(msg, m.keymap.ColumnNext):
		n := len(m.store.Columns())
		if n == 0 {
			return m, nil
		}
		d := 1
		if key.Matches(msg, m.keymap.ColumnPrev) {
			d = -1
		}
		m.colCursor = (m.colCursor + d + n) % n
		m.colFocus = true
		m.rebuildTable()
	case key.Matches(msg, m.keymap.MoveLeft), key.Matches(msg, m.keymap.MoveRight):
		d := 1
		if key.Matches(msg, m.keymap.MoveLeft) {
			d = -1
		}
		m.colFocus = true
		p, ok := m.store.MoveColumn(m.colCursor, d)
		if !ok {
			m.layoutFixedToast()
			m.rebuildTable()
			return m, nil
		}
		m.colCursor += d
		m.saveGridColumns(p)
		m.rebuildTable()
	case key.Matches(msg, m.keymap.HideColumn):
		p, ok := m.store.HideColumn(m.colCursor)
		if !ok {
			m.layoutFixedToast()
			return m, nil
		}
		m.colFocus = true
		m.saveGridColumns(p)
		m.rebuildTable()
	case key.Matches(msg, m.keymap.ResetColumns):
		m.store.SetColumnPrefs(nil)
		m.colCursor = 0
		m.saveGridColumns(nil)
		m.rebuildTable()
	case key.Matches(msg, m.keymap.Collections):
		return m, func() tea.Msg { return showCollectionsMsg{} }
	case key.Matches(msg, m.keymap.Dashboard):
		return m, func() tea.Msg { return showDashboardMsg{} }
	default:
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd
	}

	return m, nil
}

// handleSearchKey edits the search box. Every change restarts the debounce timer.
func (m GridModel) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.mode = modeNormal
		m.searchInput.Blur()
		m.searchSeq++ // a pending tick must not fire a second fetch
		return m.commitSearch(m.searchInput.Value())
	case tea.KeyEsc:
		m.mode = modeNormal
		m.searchInput.Blur()
		return m, nil
	case tea.KeyUp, tea.KeyDown:
		if len(m.recent) == 0 {
			return m, nil
		}
		if msg.Type == tea.KeyUp {
			m.recentIdx = min(m.recentIdx+1, len(m.recent)-1)
		} else {
			m.recentIdx = max(m.recentIdx-1, 0)
		}
		m.searchInput.SetValue(m.recent[m.recentIdx])
		m.searchInput.CursorEnd()
		m.searchSeq++
		return m, debounceSearch(m.searchSeq, m.searchInput.Value())
	}

	prev := m.searchInput.Value()
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	if m.searchInput.Value() == prev {
		return m, cmd
	}
	m.searchSeq++
	return m, tea.Batch(cmd, debounceSearch(m.searchSeq, m.searchInput.Value()))
}

// handleFieldTermKey edits the field search term. The filter is local and
// applied on every keystroke.
func (m GridModel) handleFieldTermKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.mode = modeNormal
		m.fieldInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.fieldInput, cmd = m.fieldInput.Update(msg)
	m.store.SetFieldSearch(m.fieldPath, m.fieldInput.Value())
	m.rebuildTable()
	return m, cmd
}

// commitSearch applies term. An unchanged term does nothing. A source without
// server search filters the loaded page instead of refetching.
func (m GridModel) commitSearch(term string) (tea.Model, tea.Cmd) {
	prevPage := m.store.Query().Page
	if !m.store.SetSearch(term) {
		m.rebuildTable()
		return m, nil
	}
	if term != "" && m.prefs != nil {
		if err := m.prefs.AddRecentSearch(term); err != nil {
			m.logger.Warn("saving recent search failed", "error", err)
		} else {
			m.recent, _ = m.prefs.RecentSearches()
		}
	}
	if m.store.LocalSearch() && prevPage == 1 && m.store.Phase() == store.PhaseLoaded {
		m.rebuildTable()
		return m, nil
	}
	return m, m.fetch()
}

// debounceSearch fires a searchDebounceMsg once the quiet period has passed.
func debounceSearch(seq int, term string) tea.Cmd {
	return tea.Tick(searchDebounce, func(time.Time) tea.Msg {
		return searchDebounceMsg{seq: seq, term: term}
	})
}

func (m GridModel) pickField(purpose FieldPurpose) tea.Cmd {
	cols := m.store.InferredColumns()
	if len(cols) == 0 {
		return nil
	}
	return func() tea.Msg { return openFieldPickerMsg{columns: cols, purpose: purpose} }
}

// fetch issues a new generation and loads it in the background.
func (m GridModel) fetch() tea.Cmd {
	q, gen, err := m.store.Begin()
	if err != nil {
		return func() tea.Msg { return ErrorMsg{Err: err} }
	}
	m.saveViewerSettings()
	meta := m.store.Meta()
	v, ctx := m.viewer, m.ctx
	return func() tea.Msg {
		res, err := v.Load(ctx, q, meta)
		return rowsLoadedMsg{gen: gen, result: res, err: err}
	}
}

func (m GridModel) saveViewerSettings() {
	if m.prefs == nil {
		return
	}
	q := m.store.Query()
	err := m.prefs.SetViewerSettings(prefs.ViewerSettings{
		SelectedCollection: q.Collection,
		PageSize:           q.Limit,
		SortField:          q.SortField,
		SortOrder:          q.SortOrder,
		EssentialOnly:      m.store.Essential(),
	})
	if err != nil {
		m.logger.Warn("saving viewer settings failed", "error", err)
	}
}

func (m GridModel) saveCollectionPrefs() {
	if m.prefs == nil {
		return
	}
	q := m.store.Query()
	err := m.prefs.SetCollectionPreferences(q.Collection, prefs.CollectionPreferences{
		SortField: q.SortField,
		SortOrder: q.SortOrder,
		FieldPath: m.fieldPath,
	})
	if err != nil {
		m.logger.Warn("saving collection preferences failed", "collection", q.Collection, "error", err)
	}
}

func (m GridModel) saveGridColumns(p []prefs.ColumnPref) {
	if m.prefs == nil {
		return
	}
	if err := m.prefs.SetGridColumns(m.store.Collection(), p); err != nil {
		m.logger.Warn("saving column layout failed", "collection", m.store.Collection(), "error", err)
	}
}

func (m *GridModel) layoutFixedToast() {
	if m.store.Essential() {
		m.errorToast = "Column layout is fixed while essential columns are shown"
	}
}

// rebuildTable copies the visible rows and columns of the store into the table.
func (m *GridModel) rebuildTable() {
	cols := m.store.Columns()
	rows := m.store.Rows()
	q := m.store.Query()
	f := m.store.Formatter()

	m.colCursor = min(m.colCursor, max(len(cols)-1, 0))
	tcols := make([]table.Column, len(cols))
	for i, c := range cols {
		title := c.Header
		if m.colFocus && i == m.colCursor {
			title = "›" + title
		}
		if c.Field == q.SortField {
			if q.SortOrder == domain.SortDesc {
				title += " ▼"
			} else {
				title += " ▲"
			}
		}
		tcols[i] = table.Column{Title: title, Width: max(c.Width, lipgloss.Width(title))}
	}

	trows := make([]table.Row, len(rows))
	for i, r := range rows {
		row := make(table.Row, len(cols))
		for j, c := range cols {
			row[j] = strings.ReplaceAll(f.Cell(r, c.Field), "\n", " ")
		}
		trows[i] = row
	}

	// Rows must never be wider than the columns, so clear them first.
	m.table.SetRows(nil)
	m.table.SetColumns(tcols)
	m.table.SetRows(trows)
	if m.table.Cursor() >= len(trows) {
		m.table.SetCursor(max(len(trows)-1, 0))
	}
}

func (m *GridModel) resizeTable() {
	h := m.height - gridHeaderLines - 1
	if m.mode != modeNormal {
		h--
	}
	m.table.SetHeight(max(h, minTableHeight))
	m.table.SetWidth(m.width)
}

// View renders the grid
func (m GridModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	sections := []string{m.renderHeader(width), m.renderStatus(width)}

	switch m.mode {
	case modeSearch:
		sections = append(sections, m.searchInput.View())
	case modeFieldTerm:
		sections = append(sections, m.fieldInput.View())
	}

	bodyHeight := height - len(sections)
	if bodyHeight < minTableHeight {
		bodyHeight = minTableHeight
	}

	var body string
	switch {
	case m.showHelp:
		lines := strings.Split(m.help.View(width), "\n")
		if len(lines) > bodyHeight {
			lines = lines[:bodyHeight]
		}
		body = strings.Join(lines, "\n")
	case m.store.Phase() == store.PhaseIdle || (m.store.Loading() && len(m.store.AllRows()) == 0):
		body = lipgloss.Place(width, bodyHeight, lipgloss.Center, lipgloss.Center, m.spinner.View()+" Loading...")
	case m.store.Phase() == store.PhaseErrored && len(m.store.AllRows()) == 0:
		body = lipgloss.Place(width, bodyHeight, lipgloss.Center, lipgloss.Center,
			ErrorStyle.Render("Could not load data.")+"\n"+dimStyle.Render("Press 'r' to retry."))
	case len(m.store.Rows()) == 0:
		msg := "No data in this collection."
		if m.store.Query().Search != "" || m.fieldPath != "" {
			msg = "No rows match. Press 'x' to clear the search."
		}
		body = lipgloss.Place(width, bodyHeight, lipgloss.Center, lipgloss.Center, dimStyle.Render(msg))
	default:
		body = m.table.View()
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the collection title on the left and query state on the right
func (m GridModel) renderHeader(width int) string {
	q := m.store.Query()
	title := q.Collection

	var parts []string
	if m.store.Loading() {
		parts = append(parts, m.spinner.View()+"loading")
	}
	pg := m.store.Pagination()
	if pg.TotalPages > 0 {
		parts = append(parts, fmt.Sprintf("page %d/%d", q.Page, pg.TotalPages))
	} else {
		parts = append(parts, fmt.Sprintf("page %d", q.Page))
	}
	parts = append(parts, fmt.Sprintf("%d rows of %d", len(m.store.Rows()), pg.Total))
	if q.Search != "" {
		scope := "server"
		if m.store.LocalSearch() {
			scope = "page"
		}
		parts = append(parts, fmt.Sprintf("/%s (%s)", q.Search, scope))
	}
	if path, term := m.store.FieldSearch(); path != "" && term != "" {
		parts = append(parts, fmt.Sprintf("%s~%s", path, term))
	}
	if m.store.Essential() {
		parts = append(parts, badgeStyle.Render("essential"))
	}
	status := strings.Join(parts, " | ")

	padding := width - lipgloss.Width(title) - lipgloss.Width(status) - 2
	if padding < 1 {
		padding = 1
	}
	return titleStyle.Render(title) + strings.Repeat(" ", padding) + dimStyle.Render(status)
}

// renderStatus renders the error toast, or key hints when there is none
func (m GridModel) renderStatus(width int) string {
	if m.errorToast != "" {
		return toastStyle(true).Render(truncate.StringWithTail(m.errorToast, uint(max(width, 1)), "…"))
	}
	hints := "/:search f:field s:sort e:essential [/]:column </>:move -:hide n/p:page enter:view o:open c:collections d:dashboard ?:help"
	return dimStyle.Render(truncate.StringWithTail(hints, uint(max(width, 1)), "…"))
}

// Message types
type (
	rowsLoadedMsg struct {
		gen    uint64
		result viewer.Result
		err    error
	}
	searchDebounceMsg struct {
		seq  int
		term string
	}
	openFieldPickerMsg struct {
		columns []viewer.Column
		purpose FieldPurpose
	}
	openRecordMsg      struct{ record domain.Record }
	showCollectionsMsg struct{}
	showDashboardMsg   struct{}
)
