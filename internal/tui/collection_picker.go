package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/ghsync/internal/domain"
	"github.com/muesli/reflow/truncate"
)

// collectionItem wraps a domain.Collection for use in bubbles/list.
type collectionItem struct {
	collection domain.Collection
}

func (i collectionItem) FilterValue() string {
	return i.collection.Name + " " + i.collection.DisplayName
}

func (i collectionItem) Title() string {
	return i.collection.Label()
}

func (i collectionItem) Description() string {
	desc := fmt.Sprintf("%d records", i.collection.Count)
	if i.collection.Description != "" {
		desc += " · " + i.collection.Description
	}
	return desc
}

// collectionDelegate renders collection items on two lines.
type collectionDelegate struct{}

func (d collectionDelegate) Height() int                             { return 2 }
func (d collectionDelegate) Spacing() int                            { return 1 }
func (d collectionDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d collectionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(collectionItem)
	if !ok {
		return
	}

	str := fmt.Sprintf("%d. %s", index+1, i.Title())
	desc := truncate.StringWithTail(i.Description(), uint(max(m.Width()-4, 10)), "…")

	if index == m.Index() {
		fmt.Fprint(w, SelectedItemStyle.Render("> "+str))
		fmt.Fprint(w, "\n  "+NormalItemStyle.Render(desc))
	} else {
		fmt.Fprint(w, NormalItemStyle.Render("  "+str))
		fmt.Fprint(w, "\n  "+lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(desc))
	}
}

// collectionPickerClosedMsg returns from the picker without a selection.
type collectionPickerClosedMsg struct{}

// CollectionPickerModel displays the collections for the user to select.
type CollectionPickerModel struct {
	list list.Model
	err  error
}

// NewCollectionPickerModel creates a picker over collections. err, when set, is
// shown under the list; the list still holds whatever could be loaded.
func NewCollectionPickerModel(collections []domain.Collection, err error) CollectionPickerModel {
	items := make([]list.Item, len(collections))
	for i, c := range collections {
		items[i] = collectionItem{collection: c}
	}

	l := list.New(items, collectionDelegate{}, 80, 20)
	l.Title = "Select a Collection"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle

	return CollectionPickerModel{
		list: l,
		err:  err,
	}
}

// Init initializes the model.
func (m CollectionPickerModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages and updates the model state.
func (m CollectionPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width - 2)
		m.list.SetHeight(msg.Height - 2)
		return m, nil

	case tea.KeyMsg:
		if m.list.SettingFilter() {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, func() tea.Msg { return QuitMsg{} }
		case "esc":
			return m, func() tea.Msg { return collectionPickerClosedMsg{} }
		case "enter":
			if item, ok := m.list.SelectedItem().(collectionItem); ok {
				return m, func() tea.Msg {
					return CollectionSelectedMsg{Collection: item.collection}
				}
			}
		}

	case ErrorMsg:
		m.err = msg.Err
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the model.
func (m CollectionPickerModel) View() string {
	view := m.list.View()

	if m.err != nil {
		errorMsg := ErrorStyle.Render(fmt.Sprintf("\nError: %v", m.err))
		view += errorMsg
	}

	return view
}
