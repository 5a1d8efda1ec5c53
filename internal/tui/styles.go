package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#C2410C", Dark: "#FB923C"}
	colorSubtle  = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}
	colorError   = lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"}
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(colorPrimary).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Underline(true).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(colorSubtle).
				Padding(0, 1)

	itemStyle = lipgloss.NewStyle().PaddingLeft(2)

	metaStyle = lipgloss.NewStyle().Foreground(colorSubtle)

	errorPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Foreground(colorError).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Foreground(colorSubtle)
)
