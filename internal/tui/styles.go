package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared by every screen.
var (
	accentColor = lipgloss.Color("205")
	mutedColor  = lipgloss.Color("241")
	textColor   = lipgloss.Color("252")
	borderColor = lipgloss.Color("240")
)

var (
	// TitleStyle is used for screen titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			MarginBottom(1)

	// SelectedItemStyle is used for the highlighted row.
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(accentColor).
				Bold(true)

	// NormalItemStyle is used for other rows.
	NormalItemStyle = lipgloss.NewStyle().
			Foreground(textColor)

	// CheckedItemStyle marks rows queued for a checked fetch.
	CheckedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("228"))

	// ErrorStyle is used for error messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	// DimStyle is used for hints and secondary text.
	DimStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)
