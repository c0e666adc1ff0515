package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// selectorItem is one entry of the selector list.
type selectorItem struct {
	name string
	note string // shown dimmed after the name
}

// selectorModel is a simple list selector.
type selectorModel struct {
	title     string
	items     []selectorItem
	cursor    int
	selected  string
	cancelled bool
	width     int
	height    int
}

func newSelectorModel(title string, items []selectorItem, current string) selectorModel {
	m := selectorModel{title: title, items: items, height: 24, width: 80}
	for i, item := range items {
		if item.name == current {
			m.cursor = i
			break
		}
	}
	return m
}

func (m selectorModel) Init() tea.Cmd {
	return nil
}

func (m selectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.items) {
				m.selected = m.items[m.cursor].name
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m selectorModel) View() string {
	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(primaryColor).
		Background(headerBgColor).
		Padding(0, 2).
		Render("☰ " + m.title)
	b.WriteString(header)
	b.WriteString("\n\n")

	var content strings.Builder
	if len(m.items) == 0 {
		content.WriteString(dimStyle.Render("nothing to choose from"))
	}
	for i, item := range m.items {
		cursor := "  "
		style := dimStyle
		if i == m.cursor {
			cursor = "▸ "
			style = selectedStyle
		}
		content.WriteString(style.Render(cursor + item.name))
		if item.note != "" {
			content.WriteString(dimStyle.Render(fmt.Sprintf(" (%s)", item.note)))
		}
		if i < len(m.items)-1 {
			content.WriteString("\n")
		}
	}

	b.WriteString(lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Render(content.String()))

	return layoutWithHelp(b.String(), "↑↓ move • Enter select • Esc cancel", m.width, m.height)
}

// RunSelectCluster lets the operator pick one of the configured clusters.
// It returns ErrCancelled when the picker is dismissed.
func RunSelectCluster(names []string, current string) (string, error) {
	if len(names) == 0 {
		return "", errors.New("no clusters configured, add one with 'tuberdash cluster add'")
	}
	items := make([]selectorItem, 0, len(names))
	for _, name := range names {
		item := selectorItem{name: name}
		if name == current {
			item.note = "current"
		}
		items = append(items, item)
	}

	p := tea.NewProgram(newSelectorModel("Select cluster", items, current))
	result, err := p.Run()
	if err != nil {
		return "", err
	}
	sm := result.(selectorModel)
	if sm.cancelled {
		return "", ErrCancelled
	}
	return sm.selected, nil
}
