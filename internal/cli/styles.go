// Package cli provides styled terminal output, progress bars and prompts for
// the prodnorm command.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette. Blue matches the header fill of the generated workbooks.
var (
	accent = lipgloss.Color("#4472C4")
	green  = lipgloss.Color("#70AD47")
	amber  = lipgloss.Color("#FFC000")
	steel  = lipgloss.Color("#8EA9DB")
	muted  = lipgloss.Color("#7F7F7F")
	frame  = lipgloss.Color("#3A3A3A")
)

var (
	// SuccessStyle renders exact matches and completed steps.
	SuccessStyle = lipgloss.NewStyle().Foreground(green)
	// WarningStyle renders unmatched rows and recoverable problems.
	WarningStyle = lipgloss.NewStyle().Foreground(amber)
	// InfoStyle renders fuzzy matches and neutral notices.
	InfoStyle = lipgloss.NewStyle().Foreground(steel)
	// SubtleStyle renders secondary text.
	SubtleStyle = lipgloss.NewStyle().Foreground(muted)
	// SubtitleStyle renders empty-state messages under a heading.
	SubtitleStyle = SubtleStyle.MarginBottom(1)
	// BoldStyle highlights counts.
	BoldStyle = lipgloss.NewStyle().Bold(true)
	// TableHeaderStyle renders column headers of tabwriter tables.
	TableHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accent)
	promptStyle = titleStyle
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(frame).
			Padding(1, 2)
)

// Icons.
const (
	SuccessIcon = "✓"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	BoxIcon     = "📦"
	ChartIcon   = "📊"
	TreeIcon    = "🌳"
)

// FormatSuccess prefixes message with a check mark.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatWarning prefixes message with a warning sign.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo prefixes message with an info sign.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle renders a section heading.
func FormatTitle(title string) string {
	return titleStyle.MarginBottom(1).Render(BoxIcon + " " + title)
}

// FormatPrompt renders a question awaiting input.
func FormatPrompt(prompt string) string {
	return promptStyle.Render(prompt + " → ")
}

// RenderBox renders content under title inside a rounded border.
func RenderBox(title, content string) string {
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), content))
}
