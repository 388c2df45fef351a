package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/h0rv/colsync/internal/app"
)

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenPicker AppScreen = iota
	ScreenBoard
	ScreenDetail
)

// AppModel is the root Bubble Tea model that manages screen transitions
// between the store picker, a store's board and an item's detail view.
type AppModel struct {
	// Dependencies
	app *app.App
	ctx context.Context

	// Store to open without showing the picker
	storeFlag string

	// Current state
	currentScreen AppScreen
	currentModel  tea.Model
	err           error

	// Cached models to preserve state across screen transitions
	boardModel *BoardModel
}

// NewAppModel creates the root model. An empty storeFlag starts on the
// picker.
func NewAppModel(a *app.App, ctx context.Context, storeFlag string) AppModel {
	return AppModel{
		app:       a,
		ctx:       ctx,
		storeFlag: storeFlag,
	}
}

// Init initializes the app model.
func (m AppModel) Init() tea.Cmd {
	if m.storeFlag != "" {
		name := m.storeFlag
		return func() tea.Msg { return StoreSelectedMsg{Name: name} }
	}
	return func() tea.Msg { return backToPickerMsg{} }
}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && m.currentScreen != ScreenBoard {
			return m, tea.Quit
		}

	case ErrorMsg:
		m.err = msg.Err
		return m, nil

	case QuitMsg:
		return m, tea.Quit

	case backToPickerMsg:
		m.currentScreen = ScreenPicker
		m.boardModel = nil
		picker := NewPickerModel(m.app.Registry.Containers())
		m.currentModel = picker
		return m, picker.Init()

	case StoreSelectedMsg:
		board, err := NewBoardModel(m.app, m.ctx, msg.Name)
		if err != nil {
			m.err = fmt.Errorf("open store: %w", err)
			return m, nil
		}
		m.currentScreen = ScreenBoard
		m.boardModel = &board
		m.currentModel = board
		return m, board.Init()

	case openDetailMsg:
		if m.boardModel == nil {
			return m, nil
		}
		detail, err := NewDetailModel(m.app, m.ctx, m.boardModel.name, msg.item)
		if err != nil {
			m.boardModel.errorToast = err.Error()
			m.currentModel = *m.boardModel
			return m, nil
		}
		m.currentScreen = ScreenDetail
		m.currentModel = detail
		return m, detail.Init()

	case closeDetailMsg:
		if m.boardModel == nil {
			return m, nil
		}
		m.currentScreen = ScreenBoard
		m.boardModel.sync()
		m.currentModel = *m.boardModel
		return m, tea.WindowSize()
	}

	if m.currentModel != nil {
		var cmd tea.Cmd
		m.currentModel, cmd = m.currentModel.Update(msg)
		if m.currentScreen == ScreenBoard {
			if bm, ok := m.currentModel.(BoardModel); ok {
				m.boardModel = &bm
			}
		}
		return m, cmd
	}

	return m, nil
}

// View renders the current screen.
func (m AppModel) View() string {
	if m.err != nil {
		return ErrorStyle.Render(fmt.Sprintf("Error: %v\n\nPress Ctrl+C to quit", m.err))
	}
	if m.currentModel != nil {
		return m.currentModel.View()
	}
	return "Loading...\n\nPress Ctrl+C to quit"
}
