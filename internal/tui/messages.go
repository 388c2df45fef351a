// Package tui provides Bubble Tea models for browsing and moving the items
// of the configured collections.
package tui

import (
	"github.com/h0rv/colsync/internal/domain"
	"github.com/h0rv/colsync/internal/mutation"
)

// StoreSelectedMsg is emitted when the user picks a store.
type StoreSelectedMsg struct {
	Name string
}

// ErrorMsg is emitted when an error occurs.
type ErrorMsg struct {
	Err error
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}

// Messages exchanged between the board, the detail view and the app.
type (
	fetchedMsg struct {
		outcome domain.Outcome
		err     error
	}
	movedMsg struct {
		res  mutation.Result
		undo bool
		err  error
	}
	openDetailMsg struct{ item domain.Item }
	itemLoadedMsg struct {
		item domain.Item
		err  error
	}
	closeDetailMsg  struct{}
	backToPickerMsg struct{}
)
