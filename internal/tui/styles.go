// Package tui is a bubbletea + lipgloss terminal front end for one desk.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorWhite  = lipgloss.Color("#FAFAFA")
	colorGray   = lipgloss.Color("#888888")
	colorGreen  = lipgloss.Color("#6BCB77")
	colorYellow = lipgloss.Color("#FFD93D")
	colorRed    = lipgloss.Color("#FF6B6B")
	colorAccent = lipgloss.Color("#7D56F4")
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Background(colorAccent).
			Bold(true).
			Padding(0, 1)

	tapeStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	expressionStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	displayStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	feedbackStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorGray)
)
