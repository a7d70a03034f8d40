package tui

import "github.com/charmbracelet/lipgloss"

var colorMuted = lipgloss.Color("#6B7280")

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	nameStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#D1D5DB"))
	helpStyle     = lipgloss.NewStyle().Foreground(colorMuted)
	activeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#06B6D4"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	skippedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	selectedStyle = lipgloss.NewStyle().Bold(true).
			Background(lipgloss.Color("#374151")).
			Foreground(lipgloss.Color("#FFFFFF"))

	// Status bar under the list; width is set per render.
	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#111827")).
			Foreground(colorMuted).
			Padding(0, 1)
)
