package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#a855f7")).
			Padding(0, 1)

	accountStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8891a5"))
	addrStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
	timeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5a6278"))
	liveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10b981")).Bold(true)
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5a6278"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#fcd34d")).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("#f59e0b")).
			PaddingLeft(1)

	infoStyle = errorStyle.
			Foreground(lipgloss.Color("#10b981")).
			BorderForeground(lipgloss.Color("#10b981"))

	promptStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3b82f6")).
			Padding(0, 1)

	waveStyle = lipgloss.NewStyle().PaddingLeft(2)
)
