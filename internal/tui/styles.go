package tui

import "github.com/charmbracelet/lipgloss"

// Tokyo Night palette.
var (
	colorPrimary   = lipgloss.Color("#7aa2f7")
	colorSecondary = lipgloss.Color("#7dcfff")
	colorMuted     = lipgloss.Color("#565f89")
	colorSurface   = lipgloss.Color("#3b4261")
	colorSuccess   = lipgloss.Color("#9ece6a")
	colorWarning   = lipgloss.Color("#e0af68")
	colorError     = lipgloss.Color("#f7768e")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	labelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorSecondary)

	errorTextStyle = lipgloss.NewStyle().Foreground(colorError)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSurface).
			Padding(0, 1)

	focusedPanelStyle = panelStyle.BorderForeground(colorPrimary)

	toastSuccessStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorSuccess).
				Foreground(colorSuccess).
				Padding(0, 1)

	toastErrorStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorError).
			Foreground(colorError).
			Padding(0, 1)
)

// verdictStyle colors a score by its verdict band.
func verdictStyle(score int) lipgloss.Style {
	switch {
	case score > 70:
		return lipgloss.NewStyle().Bold(true).Foreground(colorSuccess)
	case score >= 40:
		return lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	default:
		return lipgloss.NewStyle().Bold(true).Foreground(colorError)
	}
}
