// Package tui provides Bubble Tea models for the interactive TUI.
package tui

import (
	"github.com/h0rv/ghsync/internal/domain"
	"github.com/h0rv/ghsync/internal/syncer"
)

// CollectionSelectedMsg is emitted when the user selects a collection.
type CollectionSelectedMsg struct {
	Collection domain.Collection
}

// FieldSelectedMsg is emitted when the user picks a column in the field picker.
type FieldSelectedMsg struct {
	Field   string
	Purpose FieldPurpose
}

// ErrorMsg is emitted when an error occurs.
type ErrorMsg struct {
	Err error
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}

// NotifyMsg carries a finished sync action into the program.
type NotifyMsg struct {
	Notification syncer.Notification
}

// RefetchMsg asks the screens showing kinds to reload.
type RefetchMsg struct {
	Kinds []domain.EntityKind
}
