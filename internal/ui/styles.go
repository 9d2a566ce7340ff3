package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorWarning = lipgloss.Color("214")
	colorError   = lipgloss.Color("196")
	colorSuccess = lipgloss.Color("34")
	colorMuted   = lipgloss.Color("240")
)

var (
	dangerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorError).
			Border(lipgloss.ThickBorder()).
			BorderForeground(colorError).
			Padding(0, 2)

	warningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWarning)

	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
)
