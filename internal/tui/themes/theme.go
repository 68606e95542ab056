// Package themes defines the colors and styles used by the review screen.
package themes

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style for the TUI.
type Theme struct {
	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Selected   lipgloss.Style
	Header     lipgloss.Style
	Approve    lipgloss.Style
	Decline    lipgloss.Style
	Box        lipgloss.Style
	Primary    lipgloss.Color
	Border     lipgloss.Color
	Muted      lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Foreground lipgloss.Color
}

// Default is the default theme.
var Default = newTheme(
	lipgloss.Color("#2EBD85"),
	lipgloss.Color("#404040"),
	lipgloss.Color("#737373"),
	lipgloss.Color("#10b981"),
	lipgloss.Color("#ef4444"),
	lipgloss.Color("#fafafa"),
)

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = newTheme(
	lipgloss.Color("#a6e3a1"),
	lipgloss.Color("#45475a"),
	lipgloss.Color("#6c7086"),
	lipgloss.Color("#a6e3a1"),
	lipgloss.Color("#f38ba8"),
	lipgloss.Color("#cdd6f4"),
)

// ByName returns the named theme, falling back to Default.
func ByName(name string) Theme {
	switch name {
	case "catppuccin", "catppuccin-mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}

func newTheme(primary, border, muted, success, failure, fg lipgloss.Color) Theme {
	return Theme{
		Primary:    primary,
		Border:     border,
		Muted:      muted,
		Success:    success,
		Error:      failure,
		Foreground: fg,

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			MarginBottom(1),
		Subtitle: lipgloss.NewStyle().
			Foreground(muted),
		Selected: lipgloss.NewStyle().
			Background(primary).
			Foreground(lipgloss.Color("#1a1a1a")).
			Bold(true),
		Header: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(border).
			BorderBottom(true).
			Bold(true),
		Approve: lipgloss.NewStyle().
			Foreground(success).
			Bold(true),
		Decline: lipgloss.NewStyle().
			Foreground(failure).
			Bold(true),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
	}
}
