package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("cyan")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("green")).
			Bold(true)

	seamStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("yellow"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)
