// Package cli provides styled terminal output using lipgloss.
package cli

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// Pharmacy palette.
var (
	PrimaryColor = lipgloss.Color("#2EBD85")
	SuccessColor = lipgloss.Color("#5FD787")
	WarningColor = lipgloss.Color("#FFE66D")
	ErrorColor   = lipgloss.Color("#FF5F5F")
	InfoColor    = lipgloss.Color("#95E1D3")
	SubtleColor  = lipgloss.Color("#666666")
)

var (
	// TitleStyle renders command headings and the report box title.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor).MarginBottom(1)

	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)

	// SubtleStyle dims skipped rows in import reports.
	SubtleStyle = lipgloss.NewStyle().Foreground(SubtleColor)
	BoldStyle   = lipgloss.NewStyle().Bold(true)

	// PromptStyle renders the review question.
	PromptStyle = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)

	// ReportBoxStyle frames the import totals.
	ReportBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(1, 2)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	PillIcon    = "💊"
	MicIcon     = "🎙️"
	ChartIcon   = "📊"
)

// FormatSuccess formats a success message with icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// FormatTitle prefixes a heading with the pill icon.
func FormatTitle(title string) string {
	return TitleStyle.Render(PillIcon + " " + title)
}

func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// FormatStock renders a stock count, in the error color when it is negative.
func FormatStock(stock int) string {
	s := strconv.Itoa(stock)
	if stock < 0 {
		return ErrorStyle.Render(s)
	}
	return s
}

// RenderBox renders a titled report box.
func RenderBox(title, content string) string {
	return ReportBoxStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		TitleStyle.UnsetMargins().Render(title),
		content,
	))
}
