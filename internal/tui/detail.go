package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/browser"

	"github.com/h0rv/colsync/internal/app"
	"github.com/h0rv/colsync/internal/collection"
	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/slug"
)

// Layout constants
const (
	leftPanelRatio = 0.35
	minLeftWidth   = 30
	maxLeftWidth   = 50
	headerHeight   = 1
	footerHeight   = 1
	borderSize     = 2 // top and bottom border
)

// Detail view styles
var (
	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor)

	detailLabelStyle = lipgloss.NewStyle().
				Foreground(mutedColor)

	detailValueStyle = lipgloss.NewStyle().
				Foreground(textColor)

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(borderColor)

	focusedPanelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(accentColor)

	scrollIndicatorStyle = lipgloss.NewStyle().
				Foreground(accentColor)
)

// DetailModel shows one item: identity on the left and every field in a
// scrollable panel on the right.
type DetailModel struct {
	// Dependencies
	app  *app.App
	ctx  context.Context
	name string
	c    *collection.Container

	// Item data
	id   string
	item domain.Item

	// UI components
	spinner  spinner.Model
	viewport viewport.Model

	// State
	loading  bool
	errorMsg string

	// View dimensions
	width  int
	height int
}

// NewDetailModel creates a detail view for item, which is reloaded through
// the container on Init.
func NewDetailModel(a *app.App, ctx context.Context, name string, item domain.Item) (DetailModel, error) {
	c, err := a.Container(name)
	if err != nil {
		return DetailModel{}, err
	}
	id, ok := c.ID(item)
	if !ok {
		return DetailModel{}, domain.ErrEmptyID
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	vp := viewport.New(40, 10) // resized on WindowSizeMsg
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	return DetailModel{
		app:      a,
		ctx:      ctx,
		name:     name,
		c:        c,
		id:       id,
		item:     item,
		spinner:  sp,
		viewport: vp,
		loading:  true,
	}, nil
}

// Init selects the item, which is served from the cache when it passes the
// store's select check.
func (m DetailModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize(), m.load(false))
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

	case itemLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("Load failed: %v", msg.err)
			return m, nil
		}
		m.errorMsg = ""
		if msg.item != nil {
			m.item = msg.item
		}
		m.updateViewportContent()
		return m, nil

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
	leftWidth := min(max(int(float64(m.width)*leftPanelRatio), minLeftWidth), maxLeftWidth)

	rightWidth := m.width - leftWidth - 3 // gap between panels
	if rightWidth < 30 {
		rightWidth = 30
	}

	contentHeight := m.height - headerHeight - footerHeight - borderSize
	if contentHeight < 10 {
		contentHeight = 10
	}

	m.viewport.Width = rightWidth - borderSize - 2
	m.viewport.Height = contentHeight - borderSize - 1 // panel title
	m.updateViewportContent()
}

// handleKeyPress processes keyboard input
func (m DetailModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "q", "esc":
		return m, func() tea.Msg { return closeDetailMsg{} }
	case "o":
		if u := m.app.URL(m.name, m.item); u != "" {
			_ = browser.OpenURL(u)
		}
	case "r":
		m.loading = true
		return m, m.load(true)
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

	leftWidth := min(max(int(float64(width)*leftPanelRatio), minLeftWidth), maxLeftWidth)
	rightWidth := width - leftWidth - 1

	contentHeight := height - headerHeight - footerHeight
	if contentHeight < 10 {
		contentHeight = 10
	}

	leftPanel := panelBorderStyle.
		Width(leftWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.renderLeftPanel(leftWidth - borderSize))

	rightPanel := focusedPanelBorderStyle.
		Width(rightWidth - borderSize).
		Height(contentHeight - borderSize).
		Render(m.renderRightPanel())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, " ", rightPanel)
	header := DimStyle.Render("[q]back [o]open [r]reload [j/k]scroll [g/G]top/bottom")
	return lipgloss.JoinVertical(lipgloss.Left, header, panels, m.renderFooter(width))
}

// renderFooter renders the bottom status bar
func (m DetailModel) renderFooter(width int) string {
	var left, right string

	switch {
	case m.loading:
		left = m.spinner.View() + " Loading..."
	case m.errorMsg != "":
		left = ErrorStyle.Render("✗ " + m.errorMsg)
	default:
		left = string(m.c.Snapshot().Status)
	}

	if m.viewport.TotalLineCount() > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			right = "TOP"
		case m.viewport.AtBottom():
			right = "END"
		default:
			right = fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100))
		}
	}

	padding := max(width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return DimStyle.Render(left) + strings.Repeat(" ", padding) + DimStyle.Render(right)
}

// renderLeftPanel renders the item identity
func (m DetailModel) renderLeftPanel(width int) string {
	var b strings.Builder

	b.WriteString(detailLabelStyle.Render(m.name + " " + m.id))
	b.WriteString("\n\n")

	title := wordwrap.String(m.app.Title(m.name, m.item), width-2)
	b.WriteString(detailTitleStyle.Render(title))
	b.WriteString("\n\n")

	if mover, err := m.app.Mover(m.name); err == nil {
		if v, ok := m.item.Lookup(mover.StatusField()); ok {
			b.WriteString(detailLabelStyle.Render("Status: "))
			b.WriteString(detailValueStyle.Render(slug.String(v)))
			b.WriteString("\n")
		}
	}

	if u := m.app.URL(m.name, m.item); u != "" {
		b.WriteString(detailLabelStyle.Render("Link: "))
		b.WriteString(detailValueStyle.Render(wordwrap.String(u, width-8)))
		b.WriteString("\n")
	}

	b.WriteString(detailLabelStyle.Render(fmt.Sprintf("Fields: %d", len(m.item))))
	return b.String()
}

// renderRightPanel renders the field list with viewport
func (m DetailModel) renderRightPanel() string {
	scrollHint := ""
	if m.viewport.TotalLineCount() > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			scrollHint = " ↓"
		case m.viewport.AtBottom():
			scrollHint = " ↑"
		default:
			scrollHint = " ↕"
		}
	}
	title := detailLabelStyle.Render("Fields") + scrollIndicatorStyle.Render(scrollHint)
	return title + "\n" + m.viewport.View()
}

// updateViewportContent renders every field of the item, sorted by name.
func (m *DetailModel) updateViewportContent() {
	keys := make([]string, 0, len(m.item))
	for k := range m.item {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	width := max(m.viewport.Width, 10)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(detailLabelStyle.Render(k))
		b.WriteString("\n")
		b.WriteString(detailValueStyle.Render(wordwrap.String(formatValue(m.item[k]), width-2)))
		b.WriteString("\n\n")
	}
	m.viewport.SetContent(strings.TrimRight(b.String(), "\n"))
}

// formatValue renders scalars as their slug and nested values as indented
// JSON.
func formatValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		raw, err := json.MarshalIndent(v, "", "  ")
		if err == nil {
			return string(raw)
		}
	}
	return slug.String(v)
}

func (m DetailModel) load(force bool) tea.Cmd {
	c, ctx, id := m.c, m.ctx, m.id
	return func() tea.Msg {
		item, err := c.FetchOne(ctx, collection.Request{ID: id, Force: force})
		return itemLoadedMsg{item: item, err: err}
	}
}
