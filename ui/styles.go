package ui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed    = lipgloss.Color("#FF5555")
	colorYellow = lipgloss.Color("#F1FA8C")
	colorGreen  = lipgloss.Color("#50FA7B")
	colorCyan   = lipgloss.Color("#8BE9FD")
	colorWhite  = lipgloss.Color("#F8F8F2")
	colorGray   = lipgloss.Color("#6272A4")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorGray)
	valueStyle  = lipgloss.NewStyle().Foreground(colorWhite)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	critStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorGray)
)

func tempStyle(celsius uint32) lipgloss.Style {
	switch {
	case celsius >= 85:
		return critStyle
	case celsius >= 70:
		return warnStyle
	default:
		return okStyle
	}
}

func utilStyle(pct uint32) lipgloss.Style {
	switch {
	case pct >= 90:
		return critStyle
	case pct >= 70:
		return warnStyle
	default:
		return okStyle
	}
}
