package ui

import "github.com/charmbracelet/lipgloss"

// paletteColors maps note colors to terminal backgrounds. Adaptive colors
// keep card text readable on light and dark terminals.
var paletteColors = map[string]lipgloss.AdaptiveColor{
	"red":    {Light: "#F8C9C4", Dark: "#5C2B29"},
	"orange": {Light: "#FBD5AE", Dark: "#614A19"},
	"yellow": {Light: "#FFF3B0", Dark: "#635D19"},
	"green":  {Light: "#CCF0C4", Dark: "#345920"},
	"blue":   {Light: "#C6DDF6", Dark: "#2D555E"},
	"purple": {Light: "#DCCCF4", Dark: "#42275E"},
	"gray":   {Light: "#E2E2E2", Dark: "#3C3F43"},
}

var (
	accent = lipgloss.AdaptiveColor{Light: "#5A4FCF", Dark: "#A59BFF"}
	muted  = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}
	danger = lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6B5E"}

	// Header renders the screen title bar.
	Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(accent).
		Padding(0, 1)

	// Muted renders secondary text such as timestamps.
	Muted = lipgloss.NewStyle().Foreground(muted)

	// Notice renders inline, non-blocking error notices.
	Notice = lipgloss.NewStyle().Foreground(danger)

	// Status renders confirmations such as "Saved ...".
	Status = lipgloss.NewStyle().Foreground(muted).Italic(true)

	// Label renders field labels in the editor.
	Label = lipgloss.NewStyle().Bold(true)

	cardBase = lipgloss.NewStyle().
			Padding(0, 1).
			MarginBottom(1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted)
)

// Card returns the card style for a note color. Selected cards get an accent
// border.
func Card(color string, selected bool) lipgloss.Style {
	s := cardBase
	if bg, ok := paletteColors[color]; ok {
		s = s.Background(bg).BorderBackground(bg)
	}
	if selected {
		s = s.BorderForeground(accent)
	}
	return s
}

// Swatch renders a short color sample with the color's name.
func Swatch(color string) string {
	if color == "" {
		return Muted.Render("none")
	}
	bg, ok := paletteColors[color]
	if !ok {
		return color
	}
	return lipgloss.NewStyle().Background(bg).Padding(0, 1).Render(color)
}
