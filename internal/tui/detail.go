package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/viewer"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
)

// Layout constants
const (
	leftPanelRatio = 0.40 // Left panel takes 40% of width
	minLeftWidth   = 30
	maxLeftWidth   = 70
	headerHeight   = 1
	footerHeight   = 1
	borderSize     = 2 // Top + bottom border
)

// RecordDeleter removes a record from a generic collection.
type RecordDeleter interface {
	DeleteRecord(ctx context.Context, collection, id string) error
}

// DetailModel shows one record: its formatted fields on the left, the raw JSON
// on the right.
type DetailModel struct {
	// Dependencies
	deleter RecordDeleter // nil disables deletion
	ctx     context.Context

	// Record data
	collection string
	record     domain.Record
	formatter  viewer.Formatter
	links      [][2]string

	// UI components
	spinner  spinner.Model
	viewport viewport.Model

	// State
	confirmDelete bool
	deleting      bool
	errorMsg      string

	// View dimensions
	width  int
	height int
}

// NewDetailModel creates a detail view of record.
func NewDetailModel(collection string, record domain.Record, f viewer.Formatter, deleter RecordDeleter, ctx context.Context) DetailModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	vp := viewport.New(40, 10) // Will be resized in WindowSizeMsg
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	m := DetailModel{
		deleter:    deleter,
		ctx:        ctx,
		collection: collection,
		record:     record,
		formatter:  f,
		links:      viewer.Links(record),
		spinner:    sp,
		viewport:   vp,
	}
	m.viewport.SetContent(prettyJSON(record))
	return m
}

// Init initializes the detail model
func (m DetailModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize())
}

// Update handles messages
func (m DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeComponents()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case recordDeletedMsg:
		m.deleting = false
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("Delete failed: %v", msg.err)
			return m, nil
		}
		return m, func() tea.Msg { return closeDetailMsg{refetch: true} }

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

// resizeComponents calculates and sets component dimensions
func (m *DetailModel) resizeComponents() {
	leftWidth := m.leftWidth(m.width)
	rightWidth := m.width - leftWidth - 1
	if rightWidth < 30 {
		rightWidth = 30
	}

	contentHeight := m.height - headerHeight - footerHeight
	if contentHeight < 10 {
		contentHeight = 10
	}

	m.viewport.Width = rightWidth - borderSize - 2 // -2 for padding
	m.viewport.Height = contentHeight - borderSize
}

func (m DetailModel) leftWidth(width int) int {
	w := int(float64(width) * leftPanelRatio)
	if w < minLeftWidth {
		w = minLeftWidth
	}
	if w > maxLeftWidth {
		w = maxLeftWidth
	}
	return w
}

// handleKeyPress processes keyboard input
func (m DetailModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.confirmDelete {
		switch msg.String() {
		case "y", "Y":
			m.confirmDelete = false
			m.deleting = true
			return m, m.deleteRecord()
		default:
			m.confirmDelete = false
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "esc":
		return m, func() tea.Msg { return closeDetailMsg{} }
	case "o":
		m.open(0)
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		m.open(int(msg.Runes[0] - '1'))
	case "D":
		if m.canDelete() {
			m.confirmDelete = true
			m.errorMsg = ""
		}
	case "j", "down":
		m.viewport.LineDown(1)
	case "k", "up":
		m.viewport.LineUp(1)
	case "ctrl+d":
		m.viewport.HalfViewDown()
	case "ctrl+u":
		m.viewport.HalfViewUp()
	case "g":
		m.viewport.GotoTop()
	case "G":
		m.viewport.GotoBottom()
	}

	return m, nil
}

// canDelete reports whether the record lives in a generic collection and has an id.
// Entity listings are owned by sync and are never edited by hand.
func (m DetailModel) canDelete() bool {
	if m.deleter == nil || m.record.ID() == "" {
		return false
	}
	_, entity := domain.ParseKind(m.collection)
	return !entity
}

func (m *DetailModel) open(i int) {
	if i < 0 || i >= len(m.links) {
		return
	}
	if err := openURL(m.links[i][1]); err != nil {
		m.errorMsg = fmt.Sprintf("Open failed: %v", err)
	}
}

func (m DetailModel) deleteRecord() tea.Cmd {
	d, ctx := m.deleter, m.ctx
	collection, id := m.collection, m.record.ID()
	return func() tea.Msg {
		return recordDeletedMsg{err: d.DeleteRecord(ctx, collection, id)}
	}
}

// View renders the split-screen detail view
func (m DetailModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 100
	}
	if height == 0 {
		height = 30
	}

	leftWidth := m.leftWidth(width)
	rightWidth := width - leftWidth - 1 // 1 char gap

	contentHeight := height - headerHeight - footerHeight
	if contentHeight < 10 {
		contentHeight = 10
	}

	leftPanel := panelStyle.
		Width(leftWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.renderFields(leftWidth-borderSize-2, contentHeight-borderSize))

	rightPanel := focusedPanelStyle.
		Width(rightWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.viewport.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, " ", rightPanel)
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), panels, m.renderFooter(width))
}

// renderHeader renders the top help bar
func (m DetailModel) renderHeader() string {
	if m.confirmDelete {
		return warningStyle.Render(fmt.Sprintf("Delete %s %s? [y]es [any]no", m.collection, m.record.ID()))
	}
	parts := []string{"[q]back", "[j/k]scroll", "[g/G]top/bottom"}
	if len(m.links) > 0 {
		parts = append(parts, "[o/1-9]open link")
	}
	if m.canDelete() {
		parts = append(parts, "[D]delete")
	}
	return dimStyle.Render(strings.Join(parts, " "))
}

// renderFooter renders the bottom status bar
func (m DetailModel) renderFooter(width int) string {
	var left, right string
	switch {
	case m.deleting:
		left = m.spinner.View() + " Deleting..."
	case m.errorMsg != "":
		left = ErrorStyle.Render("✗ " + m.errorMsg)
	default:
		left = dimStyle.Render(fmt.Sprintf("%s · %s", m.collection, m.record.ID()))
	}

	switch {
	case m.viewport.AtTop():
		right = "TOP"
	case m.viewport.AtBottom():
		right = "END"
	default:
		right = fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100))
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + dimStyle.Render(right)
}

// renderFields renders one "Header: value" block per field, links numbered.
func (m DetailModel) renderFields(width, height int) string {
	var lines []string
	link := 0
	for _, f := range m.record {
		lines = append(lines, detailLabelStyle.Render(viewer.Header(f.Name)))

		var value string
		if viewer.IsURLField(f.Name) && f.Value.Kind == domain.KindString && f.Value.Str != "" {
			link++
			value = linkStyle.Render(fmt.Sprintf("[%d] %s", link, truncate.StringWithTail(f.Value.Str, uint(max(width-4, 8)), "…")))
		} else {
			text := m.formatter.Text(f.Value)
			if text == "" {
				text = "—"
			}
			value = detailValueStyle.Render(wordwrap.String(text, max(width-2, 10)))
		}
		lines = append(lines, "  "+strings.ReplaceAll(value, "\n", "\n  "))
	}

	content := strings.Join(lines, "\n")
	all := strings.Split(content, "\n")
	if len(all) > height {
		all = append(all[:height-1], dimStyle.Render(fmt.Sprintf("… %d more lines in JSON view", len(all)-height+1)))
	}
	return strings.Join(all, "\n")
}

// prettyJSON indents the record, keeping its field order.
func prettyJSON(r domain.Record) string {
	raw, err := json.Marshal(r)
	if err != nil {
		return err.Error()
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Message types
type (
	closeDetailMsg   struct{ refetch bool }
	recordDeletedMsg struct{ err error }
)
