package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/ghsync/internal/viewer"
)

// FieldPurpose says what a picked field is used for.
type FieldPurpose int

const (
	PurposeSort FieldPurpose = iota
	PurposeSearch
)

func (p FieldPurpose) title() string {
	if p == PurposeSearch {
		return "Search Which Field?"
	}
	return "Sort By"
}

// fieldItem wraps a grid column for use in bubbles/list.
type fieldItem struct {
	column viewer.Column
}

func (i fieldItem) FilterValue() string {
	return i.column.Field
}

func (i fieldItem) Title() string {
	return i.column.Header
}

func (i fieldItem) Description() string {
	if viewer.IsURLField(i.column.Field) {
		return i.column.Field + " (link)"
	}
	return i.column.Field
}

// fieldDelegate is a custom item delegate for field items.
type fieldDelegate struct{}

func (d fieldDelegate) Height() int                             { return 2 }
func (d fieldDelegate) Spacing() int                            { return 0 }
func (d fieldDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d fieldDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(fieldItem)
	if !ok {
		return
	}

	str := fmt.Sprintf("%d. %s", index+1, i.Title())
	desc := i.Description()

	if index == m.Index() {
		fmt.Fprint(w, SelectedItemStyle.Render("> "+str))
		fmt.Fprint(w, "\n  "+NormalItemStyle.Render(desc))
	} else {
		fmt.Fprint(w, NormalItemStyle.Render("  "+str))
		fmt.Fprint(w, "\n  "+dimStyle.Render(desc))
	}
}

// fieldPickerClosedMsg returns to the grid without a selection.
type fieldPickerClosedMsg struct{}

// FieldPickerModel lists the grid columns so the user can pick one to sort or search by.
type FieldPickerModel struct {
	list    list.Model
	purpose FieldPurpose
}

// NewFieldPickerModel creates a picker over columns.
func NewFieldPickerModel(columns []viewer.Column, purpose FieldPurpose) FieldPickerModel {
	items := make([]list.Item, len(columns))
	for i, c := range columns {
		items[i] = fieldItem{column: c}
	}

	l := list.New(items, fieldDelegate{}, 80, 20)
	l.Title = purpose.title()
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle

	return FieldPickerModel{
		list:    l,
		purpose: purpose,
	}
}

// Init initializes the model.
func (m FieldPickerModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages and updates the model state.
func (m FieldPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 4)
		return m, nil

	case tea.KeyMsg:
		if m.list.SettingFilter() {
			break
		}
		switch msg.String() {
		case "ctrl+c":
			return m, func() tea.Msg { return QuitMsg{} }
		case "q", "esc":
			return m, func() tea.Msg { return fieldPickerClosedMsg{} }
		case "enter":
			if item, ok := m.list.SelectedItem().(fieldItem); ok {
				purpose := m.purpose
				return m, func() tea.Msg {
					return FieldSelectedMsg{Field: item.column.Field, Purpose: purpose}
				}
			}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the model.
func (m FieldPickerModel) View() string {
	return m.list.View()
}
