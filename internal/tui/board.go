package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/pkg/browser"

	"github.com/h0rv/colsync/internal/app"
	"github.com/h0rv/colsync/internal/collection"
	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/mutation"
	"github.com/h0rv/colsync/internal/query"
	"github.com/h0rv/colsync/internal/slug"
)

// Layout constants
const (
	minColumnWidth = 20
	maxColumnWidth = 40
	headerLines    = 2
	pageJumpSize   = 10
)

// PageKey is the filter advanced by the next and previous page keys.
const PageKey = "page"

// Styles for the board view; widths and heights are set while rendering.
var (
	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(accentColor)

	titleStyle = lipgloss.NewStyle().
			Bold(true)

	moveModeStyle = lipgloss.NewStyle().
			Background(accentColor).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	toastStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34"))
)

// column is one status bucket.
type column struct {
	status any
	count  int
}

func (c column) name() string {
	if c.status == nil {
		return "all"
	}
	return slug.String(c.status)
}

// BoardModel shows the current view of one container as a row of status
// buckets. Only the selected bucket holds items; moving to another bucket
// switches the container's status group and fetches it, which is served
// from the cache once visited.
type BoardModel struct {
	// Dependencies
	app   *app.App
	ctx   context.Context
	name  string
	c     *collection.Container
	mover *mutation.Engine

	// UI components
	keymap      KeyMap
	help        HelpModel
	spinner     spinner.Model
	filterInput textinput.Model
	checkInput  textinput.Model

	// Container state, refreshed by sync
	items   []domain.Item
	checked map[string]bool
	status  domain.Status
	query   string
	undos   int

	// Board state
	columns        []column
	selectedColumn int
	columnOffset   int
	selected       int
	scrollOffset   int

	// View state
	width      int
	height     int
	showHelp   bool
	filterMode bool
	checkMode  bool
	moveMode   bool
	bulkMode   bool
	loading    bool
	toast      string
	errorToast string
}

// NewBoardModel creates a board for the named store.
func NewBoardModel(a *app.App, ctx context.Context, name string) (BoardModel, error) {
	c, err := a.Container(name)
	if err != nil {
		return BoardModel{}, err
	}
	mover, _ := a.Mover(name)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accentColor)

	ti := textinput.New()
	ti.Placeholder = "key=value ..."
	ti.Prompt = "/ "

	ci := textinput.New()
	ci.Placeholder = "id ..."
	ci.Prompt = "+ "

	m := BoardModel{
		app:         a,
		ctx:         ctx,
		name:        name,
		c:           c,
		mover:       mover,
		keymap:      DefaultKeyMap(),
		help:        NewHelpModel(DefaultKeyMap()),
		spinner:     sp,
		filterInput: ti,
		checkInput:  ci,
	}
	m.sync()
	return m, nil
}

// Init starts the first fetch, which is a cache hit when the store was
// visited before.
func (m BoardModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tea.WindowSize(), m.fetch(domain.ModeDefault))
}

// Update handles messages
func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case fetchedMsg:
		m.loading = false
		if msg.err != nil {
			m.errorToast = fmt.Sprintf("Fetch failed: %v", msg.err)
		} else {
			switch msg.outcome {
			case domain.OutcomeCacheHit:
				m.toast = "cached"
			case domain.OutcomeChecked:
				m.toast = "resolved"
			case domain.OutcomeNothingToCheck:
				m.toast = "nothing to check"
			}
		}
		m.sync()
		return m, nil

	case movedMsg:
		m.loading = false
		m.moveMode, m.bulkMode = false, false
		switch {
		case msg.err != nil && len(msg.res.Moved) == 0:
			m.errorToast = fmt.Sprintf("Move failed: %v", msg.err)
		case msg.err != nil:
			m.errorToast = fmt.Sprintf("Refresh failed: %v", msg.err)
		case msg.undo:
			m.toast = fmt.Sprintf("restored %d", len(msg.res.Moved))
		default:
			m.toast = fmt.Sprintf("moved %d", len(msg.res.Moved))
		}
		m.sync()
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
func (m BoardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.showHelp {
		if key.Matches(msg, m.keymap.Help, m.keymap.Quit, m.keymap.Back) {
			m.showHelp = false
		}
		return m, nil
	}

	if m.filterMode {
		switch msg.String() {
		case "enter":
			m.filterMode = false
			m.filterInput.Blur()
			return m.applyFilter(m.filterInput.Value())
		case "esc":
			m.filterMode = false
			m.filterInput.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.filterInput, cmd = m.filterInput.Update(msg)
			return m, cmd
		}
	}

	if m.checkMode {
		switch msg.String() {
		case "enter":
			m.checkMode = false
			m.checkInput.Blur()
			m.checkIDs(strings.FieldsFunc(m.checkInput.Value(), func(r rune) bool {
				return r == ',' || r == ' '
			}))
			return m, nil
		case "esc":
			m.checkMode = false
			m.checkInput.Blur()
			return m, nil
		default:
			var cmd tea.Cmd
			m.checkInput, cmd = m.checkInput.Update(msg)
			return m, cmd
		}
	}

	if m.moveMode || m.bulkMode {
		return m.handleMoveMode(msg)
	}

	m.toast, m.errorToast = "", ""

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Back):
		return m, func() tea.Msg { return backToPickerMsg{} }
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Filter):
		m.filterMode = true
		m.filterInput.SetValue("")
		m.filterInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keymap.Left):
		return m.selectColumn(m.selectedColumn - 1)
	case key.Matches(msg, m.keymap.Right):
		return m.selectColumn(m.selectedColumn + 1)
	case key.Matches(msg, m.keymap.Down):
		m.moveSelection(1)
	case key.Matches(msg, m.keymap.Up):
		m.moveSelection(-1)
	case key.Matches(msg, m.keymap.Top):
		m.jumpTo(0)
	case key.Matches(msg, m.keymap.Bottom):
		m.jumpTo(-1)
	case msg.String() == "ctrl+d":
		m.moveSelection(pageJumpSize)
	case msg.String() == "ctrl+u":
		m.moveSelection(-pageJumpSize)
	case key.Matches(msg, m.keymap.Move):
		if m.mover == nil {
			m.errorToast = "no move endpoint configured"
		} else if m.selectedItem() != nil {
			m.moveMode = true
		}
	case key.Matches(msg, m.keymap.BulkMove):
		if m.mover == nil {
			m.errorToast = "no move endpoint configured"
		} else {
			m.bulkMode = true
		}
	case key.Matches(msg, m.keymap.Undo):
		if m.mover != nil {
			m.loading = true
			return m, m.undo()
		}
	case key.Matches(msg, m.keymap.Check):
		if item := m.selectedItem(); item != nil {
			if id, ok := m.c.ID(item); ok {
				m.checkIDs([]string{id})
			}
		}
	case key.Matches(msg, m.keymap.CheckID):
		m.checkMode = true
		m.checkInput.SetValue("")
		m.checkInput.Focus()
		return m, textinput.Blink
	case key.Matches(msg, m.keymap.Resolve):
		m.loading = true
		return m, m.fetch(domain.ModeChecked)
	case key.Matches(msg, m.keymap.ResetGroups):
		m.c.ResetGroups()
		m.loading = true
		return m, m.fetch(domain.ModeDefault)
	case key.Matches(msg, m.keymap.Refresh):
		m.loading = true
		return m, m.fetch(domain.ModeForce)
	case key.Matches(msg, m.keymap.NextPage):
		return m.turnPage(1)
	case key.Matches(msg, m.keymap.PrevPage):
		return m.turnPage(-1)
	case key.Matches(msg, m.keymap.Open):
		if item := m.selectedItem(); item != nil {
			if u := m.app.URL(m.name, item); u != "" {
				_ = browser.OpenURL(u)
			}
		}
	case key.Matches(msg, m.keymap.Detail):
		if item := m.selectedItem(); item != nil {
			return m, func() tea.Msg { return openDetailMsg{item: item} }
		}
	}

	return m, nil
}

// handleMoveMode reads the destination bucket of a move.
func (m BoardModel) handleMoveMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.moveMode, m.bulkMode = false, false
		return m, nil
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(msg.Runes[0] - '1')
		if idx >= len(m.columns) || m.columns[idx].status == nil {
			return m, nil
		}
		m.loading = true
		if m.bulkMode {
			return m, m.moveBulk(m.columns[idx].status)
		}
		return m, m.moveSelected(m.columns[idx].status)
	}
	return m, nil
}

// View renders the board
func (m BoardModel) View() string {
	width := m.width
	height := m.height
	if width == 0 {
		width = 80
	}
	if height == 0 {
		height = 24
	}

	sections := []string{m.renderHeader(width), m.renderSecondHeader(width)}

	if m.filterMode {
		sections = append(sections, m.filterInput.View())
	}
	if m.checkMode {
		sections = append(sections, m.checkInput.View())
	}
	if m.moveMode || m.bulkMode {
		label := "MOVE"
		if m.bulkMode {
			label = "MOVE ALL"
		}
		sections = append(sections, moveModeStyle.Render(label)+" Press 1-9 to select bucket, ESC to cancel")
	}

	boardHeight := height - headerLines
	if m.filterMode || m.checkMode {
		boardHeight--
	}
	if m.moveMode || m.bulkMode {
		boardHeight--
	}
	if boardHeight < 5 {
		boardHeight = 5
	}

	var main string
	switch {
	case m.showHelp:
		main = m.help.View(width, boardHeight)
	case m.loading && len(m.items) == 0:
		main = lipgloss.Place(width, boardHeight, lipgloss.Center, lipgloss.Center, m.spinner.View()+" Loading...")
	default:
		main = m.renderBoard(width, boardHeight)
	}
	sections = append(sections, main)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the store and query on the left and state on the
// right.
func (m BoardModel) renderHeader(width int) string {
	title := m.name + "  /" + m.c.ObjectName()
	if m.query != "" {
		title += "?" + m.query
	}

	var parts []string
	if m.loading {
		parts = append(parts, m.spinner.View()+"loading")
	}
	if m.status == domain.StatusError {
		parts = append(parts, ErrorStyle.Render("error"))
	}
	parts = append(parts, fmt.Sprintf("%d items", len(m.items)))
	if len(m.checked) > 0 {
		parts = append(parts, fmt.Sprintf("%d checked", len(m.checked)))
	}
	if m.undos > 0 {
		parts = append(parts, fmt.Sprintf("%d undo", m.undos))
	}
	parts = append(parts, "[?]help")
	status := strings.Join(parts, " | ")

	maxTitle := width - lipgloss.Width(status) - 3
	if maxTitle < 10 {
		maxTitle = 10
	}
	title = truncate.StringWithTail(title, uint(maxTitle), "…")

	padding := width - lipgloss.Width(title) - lipgloss.Width(status) - 2
	if padding < 1 {
		padding = 1
	}
	return titleStyle.Render(title) + strings.Repeat(" ", padding) + DimStyle.Render(status)
}

// renderSecondHeader renders navigation hints and the selection position.
func (m BoardModel) renderSecondHeader(width int) string {
	left := "h/l:bucket j/k:item m:move u:undo /:filter enter:view"

	right := ""
	switch {
	case m.errorToast != "":
		right = ErrorStyle.Render(m.errorToast)
	case m.toast != "":
		right = toastStyle.Render(m.toast)
	case len(m.items) > 0:
		right = fmt.Sprintf("bucket %d/%d | item %d/%d",
			m.selectedColumn+1, len(m.columns), m.selected+1, len(m.items))
	}

	padding := width - len(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}
	return DimStyle.Render(left) + strings.Repeat(" ", padding) + right
}

// renderBoard renders the bucket columns within the given dimensions,
// scrolling horizontally when they overflow.
func (m BoardModel) renderBoard(totalWidth, totalHeight int) string {
	numCols := len(m.columns)
	if numCols == 0 {
		return ""
	}

	// Borders add two lines to the content height.
	colContentHeight := totalHeight - 2
	if colContentHeight < 3 {
		colContentHeight = 3
	}

	visibleCols := totalWidth / minColumnWidth
	if visibleCols < 1 {
		visibleCols = 1
	}
	if visibleCols > numCols {
		visibleCols = numCols
	}

	colWidth := totalWidth / visibleCols
	if colWidth > maxColumnWidth {
		colWidth = maxColumnWidth
	}
	if colWidth < minColumnWidth {
		colWidth = minColumnWidth
	}
	innerWidth := colWidth - 4
	if innerWidth < 10 {
		innerWidth = 10
	}

	startCol := m.columnOffset
	endCol := startCol + visibleCols
	if endCol > numCols {
		endCol = numCols
		startCol = max(endCol-visibleCols, 0)
	}

	indicator := lipgloss.NewStyle().
		Width(2).
		Height(colContentHeight+2).
		Foreground(accentColor).
		Align(lipgloss.Center, lipgloss.Center)

	views := make([]string, 0, visibleCols+2)
	if startCol > 0 {
		views = append(views, indicator.Render("◀"))
	}
	for i := startCol; i < endCol; i++ {
		views = append(views, m.renderColumn(i, colWidth, colContentHeight, innerWidth))
	}
	if endCol < numCols {
		views = append(views, indicator.Render("▶"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// renderColumn renders one bucket. innerHeight excludes the border.
func (m BoardModel) renderColumn(idx, width, innerHeight, innerWidth int) string {
	col := m.columns[idx]
	selected := idx == m.selectedColumn

	count := col.count
	if selected && count == 0 {
		count = len(m.items)
	}
	header := truncate.StringWithTail(fmt.Sprintf("[%d] %s (%d)", idx+1, col.name(), count), uint(innerWidth), "…")
	lines := []string{columnHeaderStyle.Render(header)}

	if !selected {
		lines = append(lines, DimStyle.Render("h/l to open"))
	} else {
		lines = append(lines, m.renderItems(innerHeight-1, innerWidth)...)
	}

	bc := borderColor
	if selected {
		bc = accentColor
	}
	style := lipgloss.NewStyle().
		Width(width-2).
		Height(innerHeight).
		Padding(0, 1).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(bc)
	return style.Render(strings.Join(lines, "\n"))
}

func (m BoardModel) renderItems(slots, innerWidth int) []string {
	if len(m.items) == 0 {
		return []string{DimStyle.Render("(empty)")}
	}
	if slots < 1 {
		slots = 1
	}

	var lines []string
	start := m.scrollOffset
	if start > 0 {
		lines = append(lines, DimStyle.Render(fmt.Sprintf("↑ %d more", start)))
		slots--
	}
	end := min(start+slots, len(m.items))
	if end < len(m.items) {
		end = max(end-1, start)
	}

	for i := start; i < end; i++ {
		text := m.formatItem(m.items[i], innerWidth-2)
		switch {
		case i == m.selected:
			lines = append(lines, SelectedItemStyle.Render("> "+text))
		case m.isChecked(m.items[i]):
			lines = append(lines, CheckedItemStyle.Render("  "+text))
		default:
			lines = append(lines, NormalItemStyle.Render("  "+text))
		}
	}
	if remaining := len(m.items) - end; remaining > 0 {
		lines = append(lines, DimStyle.Render(fmt.Sprintf("↓ %d more", remaining)))
	}
	return lines
}

// formatItem renders an item title with its id right-aligned when they
// differ.
func (m BoardModel) formatItem(item domain.Item, maxWidth int) string {
	title := m.app.Title(m.name, item)
	id, _ := m.c.ID(item)
	suffix := ""
	if id != title {
		suffix = id
	}
	if m.isChecked(item) {
		suffix = strings.TrimSpace(suffix + " ✓")
	}

	if suffix == "" {
		return truncate.StringWithTail(title, uint(max(maxWidth, 1)), "…")
	}
	avail := max(maxWidth-lipgloss.Width(suffix)-1, 5)
	title = truncate.StringWithTail(title, uint(avail), "…")
	padding := max(maxWidth-lipgloss.Width(title)-lipgloss.Width(suffix), 1)
	return title + strings.Repeat(" ", padding) + DimStyle.Render(suffix)
}

// sync copies the container state the board renders.
func (m *BoardModel) sync() {
	snap := m.c.Snapshot()
	m.items = snap.View
	m.status = snap.Status
	m.query = snap.Query
	m.undos = len(snap.Undos)
	m.checked = make(map[string]bool, len(snap.Checked))
	for _, id := range snap.Checked {
		m.checked[id] = true
	}
	m.rebuildColumns()

	if m.selected >= len(m.items) {
		m.selected = max(len(m.items)-1, 0)
	}
	m.adjustScroll()
}

// rebuildColumns derives the buckets from the last server summary. Stores
// without a summary show their current view as a single bucket.
func (m *BoardModel) rebuildColumns() {
	m.columns = nil
	current := m.currentStatus()
	if m.mover != nil {
		for _, b := range m.mover.Buckets() {
			m.columns = append(m.columns, column{status: b.Status, count: b.Count})
		}
	}
	if len(m.columns) == 0 {
		m.columns = append(m.columns, column{status: current})
	}

	m.selectedColumn = 0
	for i, col := range m.columns {
		if current != nil && slug.String(col.status) == slug.String(current) {
			m.selectedColumn = i
			break
		}
	}
	m.adjustColumnScroll()
}

// currentStatus is the status bucket the container currently views.
func (m BoardModel) currentStatus() any {
	if m.mover == nil {
		return nil
	}
	field := m.mover.StatusField()
	params, groups, filters := m.c.Context()
	for _, layer := range []domain.Values{filters, groups, params} {
		if v, ok := layer.Get(field); ok {
			return v
		}
	}
	return nil
}

func (m BoardModel) selectColumn(idx int) (tea.Model, tea.Cmd) {
	if idx < 0 || idx >= len(m.columns) || idx == m.selectedColumn || m.mover == nil {
		return m, nil
	}
	m.c.Filter(domain.Pairs(m.mover.StatusField(), m.columns[idx].status))
	m.selectedColumn = idx
	m.selected, m.scrollOffset = 0, 0
	m.adjustColumnScroll()
	m.loading = true
	return m, m.fetch(domain.ModeDefault)
}

// applyFilter parses "k=v" pairs from the filter input. An empty input
// restores the default filters.
func (m BoardModel) applyFilter(input string) (tea.Model, tea.Cmd) {
	update, err := query.ParseAssignments(strings.Fields(input))
	if err != nil {
		m.errorToast = err.Error()
		return m, nil
	}
	if !m.c.Filter(update) {
		m.toast = "filters unchanged"
		return m, nil
	}
	m.selected, m.scrollOffset = 0, 0
	m.loading = true
	return m, m.fetch(domain.ModeDefault)
}

// checkIDs queues ids for resolution by the resolve key. Ids already
// loaded are refused by the container, so only rows outside the cached
// data can be checked.
func (m *BoardModel) checkIDs(ids []string) {
	m.toast, m.errorToast = "", ""
	if len(ids) == 0 {
		return
	}
	queued, refused := 0, ""
	for _, id := range ids {
		if m.c.Check(id) {
			queued++
		} else if refused == "" {
			refused = id
		}
	}
	m.sync()

	switch {
	case queued == len(ids):
		m.toast = fmt.Sprintf("checked %d", queued)
	case queued > 0:
		m.toast = fmt.Sprintf("checked %d, skipped %d", queued, len(ids)-queued)
	case m.status != domain.StatusIdle:
		m.errorToast = "busy, try again"
	case m.checked[refused]:
		m.errorToast = refused + " already checked"
	default:
		m.errorToast = refused + " already loaded"
	}
}

func (m BoardModel) turnPage(delta int) (tea.Model, tea.Cmd) {
	_, _, filters := m.c.Context()
	v, ok := filters.Get(PageKey)
	if !ok {
		m.errorToast = "no page filter"
		return m, nil
	}
	page, _ := query.ParseValue(slug.String(v)).(float64)
	if page+float64(delta) < 1 {
		return m, nil
	}
	m.c.Filter(domain.Pairs(PageKey, page+float64(delta)))
	m.selected, m.scrollOffset = 0, 0
	m.loading = true
	return m, m.fetch(domain.ModeDefault)
}

func (m BoardModel) isChecked(item domain.Item) bool {
	id, ok := m.c.ID(item)
	return ok && m.checked[id]
}

func (m *BoardModel) moveSelection(delta int) {
	if len(m.items) == 0 {
		return
	}
	m.selected = min(max(m.selected+delta, 0), len(m.items)-1)
	m.adjustScroll()
}

// jumpTo selects idx; -1 selects the last item.
func (m *BoardModel) jumpTo(idx int) {
	if len(m.items) == 0 {
		return
	}
	if idx < 0 || idx >= len(m.items) {
		idx = len(m.items) - 1
	}
	m.selected = idx
	m.adjustScroll()
}

// adjustScroll keeps the selected item visible.
func (m *BoardModel) adjustScroll() {
	visible := m.height - headerLines - 2 - 3 // borders, header, indicators
	if m.moveMode || m.bulkMode {
		visible--
	}
	if m.filterMode {
		visible--
	}
	if visible < 3 {
		visible = 3
	}
	if m.selected < m.scrollOffset {
		m.scrollOffset = m.selected
	}
	if m.selected >= m.scrollOffset+visible {
		m.scrollOffset = m.selected - visible + 1
	}
}

// adjustColumnScroll keeps the selected bucket visible.
func (m *BoardModel) adjustColumnScroll() {
	if len(m.columns) == 0 || m.width == 0 {
		return
	}
	visible := min(max(m.width/minColumnWidth, 1), len(m.columns))
	if m.selectedColumn < m.columnOffset {
		m.columnOffset = m.selectedColumn
	}
	if m.selectedColumn >= m.columnOffset+visible {
		m.columnOffset = m.selectedColumn - visible + 1
	}
}

func (m BoardModel) selectedItem() domain.Item {
	if m.selected < 0 || m.selected >= len(m.items) {
		return nil
	}
	return m.items[m.selected]
}

func (m BoardModel) fetch(mode domain.Mode) tea.Cmd {
	c, ctx := m.c, m.ctx
	return func() tea.Msg {
		outcome, err := c.Fetch(ctx, mode)
		return fetchedMsg{outcome: outcome, err: err}
	}
}

func (m BoardModel) moveSelected(status any) tea.Cmd {
	item := m.selectedItem()
	mover, ctx := m.mover, m.ctx
	id, ok := m.c.ID(item)
	if !ok {
		return nil
	}
	return func() tea.Msg {
		target, err := mover.Targets([]string{id}, status)
		if err != nil {
			return movedMsg{err: err}
		}
		res, err := mover.Move(ctx, target)
		return movedMsg{res: res, err: err}
	}
}

func (m BoardModel) moveBulk(status any) tea.Cmd {
	mover, ctx := m.mover, m.ctx
	return func() tea.Msg {
		res, err := mover.Move(ctx, mutation.Bulk{Status: status})
		return movedMsg{res: res, err: err}
	}
}

func (m BoardModel) undo() tea.Cmd {
	mover, ctx := m.mover, m.ctx
	return func() tea.Msg {
		res, err := mover.Undo(ctx)
		return movedMsg{res: res, undo: true, err: err}
	}
}
