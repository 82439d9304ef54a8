package cli

import "github.com/charmbracelet/lipgloss"

// palette holds the colours used in text output.
type palette struct {
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Muted   lipgloss.Color
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
}

func defaultPalette() palette {
	return palette{
		Primary: lipgloss.Color("#7C3AED"),
		Accent:  lipgloss.Color("#06B6D4"),
		Muted:   lipgloss.Color("#6C7086"),
		Success: lipgloss.Color("#A6E3A1"),
		Warning: lipgloss.Color("#F9E2AF"),
		Error:   lipgloss.Color("#F38BA8"),
	}
}

// textStyles are the lipgloss styles for text output. Styles degrade to
// plain text when output is not a terminal.
type textStyles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Score   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
}

func newTextStyles(p palette) textStyles {
	return textStyles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(p.Primary),
		Label:   lipgloss.NewStyle().Bold(true),
		Score:   lipgloss.NewStyle().Foreground(p.Accent),
		Muted:   lipgloss.NewStyle().Foreground(p.Muted),
		Success: lipgloss.NewStyle().Foreground(p.Success),
		Warning: lipgloss.NewStyle().Foreground(p.Warning),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(p.Error),
	}
}

var styles = newTextStyles(defaultPalette())

// preview shortens text to n runes on one line.
func preview(text string, n int) string {
	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' || r == '\r' || r == '\t' {
			runes[i] = ' '
		}
	}
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n-3]) + "..."
}
