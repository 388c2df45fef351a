package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/h0rv/colsync/internal/collection"
)

// storeItem wraps a container for use in bubbles/list.
type storeItem struct {
	name   string
	object string
	query  string
	count  int
}

func (i storeItem) FilterValue() string { return i.name }

func (i storeItem) Title() string { return i.name }

func (i storeItem) Description() string {
	desc := "/" + i.object
	if i.query != "" {
		desc += "?" + i.query
	}
	if i.count > 0 {
		desc += fmt.Sprintf(" (%d cached)", i.count)
	}
	return desc
}

// storeDelegate renders a store as a two-line entry.
type storeDelegate struct{}

func (d storeDelegate) Height() int                             { return 2 }
func (d storeDelegate) Spacing() int                            { return 1 }
func (d storeDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d storeDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(storeItem)
	if !ok {
		return
	}

	str := fmt.Sprintf("%d. %s", index+1, i.Title())
	if index == m.Index() {
		fmt.Fprint(w, SelectedItemStyle.Render("> "+str))
		fmt.Fprint(w, "\n  "+NormalItemStyle.Render(i.Description()))
		return
	}
	fmt.Fprint(w, NormalItemStyle.Render("  "+str))
	fmt.Fprint(w, "\n  "+DimStyle.Render(i.Description()))
}

// PickerModel lists the configured stores.
type PickerModel struct {
	list list.Model
	err  error
}

// NewPickerModel creates a picker over containers.
func NewPickerModel(containers []*collection.Container) PickerModel {
	items := make([]list.Item, len(containers))
	for i, c := range containers {
		snap := c.Snapshot()
		items[i] = storeItem{
			name:   c.Name(),
			object: c.ObjectName(),
			query:  snap.Query,
			count:  len(snap.Data),
		}
	}

	l := list.New(items, storeDelegate{}, 80, 20)
	l.Title = "Select a Store"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = TitleStyle

	return PickerModel{list: l}
}

// Init initializes the model.
func (m PickerModel) Init() tea.Cmd {
	return tea.WindowSize()
}

// Update handles messages and updates the model state.
func (m PickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width - 2)
		m.list.SetHeight(msg.Height - 2)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, func() tea.Msg { return QuitMsg{} }
		case "enter":
			if item, ok := m.list.SelectedItem().(storeItem); ok {
				return m, func() tea.Msg { return StoreSelectedMsg{Name: item.name} }
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
func (m PickerModel) View() string {
	view := m.list.View()
	if m.err != nil {
		view += ErrorStyle.Render(fmt.Sprintf("\nError: %v", m.err))
	}
	return view
}
