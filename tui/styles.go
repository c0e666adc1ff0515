package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// Layout constants - use most of the terminal width
const (
	minContentWidth  = 80
	maxContentWidth  = 160
	contentWidthPct  = 85
	horizontalMargin = 2
)

// contentWidth returns how wide the main column may be for a terminal of
// termWidth columns.
func contentWidth(termWidth int) int {
	w := termWidth * contentWidthPct / 100
	if w < minContentWidth {
		w = minContentWidth
	}
	if w > maxContentWidth {
		w = maxContentWidth
	}
	if termWidth > 0 && w > termWidth-horizontalMargin*2 {
		w = termWidth - horizontalMargin*2
	}
	return w
}

// Colors - soft, muted palette
var (
	primaryColor  = lipgloss.Color("109") // soft teal
	accentColor   = lipgloss.Color("146") // soft lavender
	successColor  = lipgloss.Color("108") // soft sage green
	errorColor    = lipgloss.Color("174") // soft coral
	warnColor     = lipgloss.Color("180") // soft amber
	dimColor      = lipgloss.Color("245") // light gray
	borderColor   = lipgloss.Color("240") // subtle gray
	headerBgColor = lipgloss.Color("238") // dark gray bg
)

// Base styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(1, 2)

	sectionTitleStyle = lipgloss.NewStyle().
				Foreground(primaryColor).
				Bold(true)

	// Badge styles
	badgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(primaryColor).
			Padding(0, 1)

	pausedBadgeStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(warnColor).
				Padding(0, 1)
)

func newSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)
	return s
}

// Helper to create a bordered section
func renderSection(title string, content string) string {
	titleRendered := sectionTitleStyle.Render("┌─ " + title + " ")
	box := lipgloss.NewStyle().
		Border(lipgloss.Border{
			Top:         "",
			Bottom:      "─",
			Left:        "│",
			Right:       "│",
			TopLeft:     "",
			TopRight:    "",
			BottomLeft:  "└",
			BottomRight: "┘",
		}).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(content)
	return titleRendered + "\n" + box
}

// RenderHelpBar renders a full-width help bar at the bottom of the screen.
// The help bar has a background color and left padding of 2 characters.
func RenderHelpBar(text string, termWidth int) string {
	helpBarStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("236")). // dark gray background
		Foreground(dimColor).
		PaddingLeft(2).
		Width(termWidth)

	return helpBarStyle.Render(text)
}

// layoutWithHelp pads content to the terminal height and pins the help bar
// to the bottom line.
func layoutWithHelp(content, help string, width, height int) string {
	const sidePadding = 2
	body := lipgloss.NewStyle().MaxWidth(contentWidth(width)).Render(content)

	var view strings.Builder
	lines := strings.Split(body, "\n")
	for _, line := range lines {
		view.WriteString(strings.Repeat(" ", sidePadding))
		view.WriteString(line)
		view.WriteString("\n")
	}

	for i := len(lines); i < height-1; i++ {
		view.WriteString("\n")
	}

	view.WriteString(RenderHelpBar(help, width))
	return view.String()
}
