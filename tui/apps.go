package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/freshly/tuberdash/internal/api"
	"github.com/freshly/tuberdash/internal/model"
)

type appsLoadedMsg struct {
	apps []*model.TuberApp
	err  error
}

// appSource adapts the app list for fuzzy matching on name and image tag.
type appSource []*model.TuberApp

func (s appSource) String(i int) string { return s[i].Name + " " + s[i].ImageTag }
func (s appSource) Len() int            { return len(s) }

type appsModel struct {
	backend   Backend
	cluster   string
	apps      []*model.TuberApp
	visible   []*model.TuberApp
	cursor    int
	search    textinput.Model
	searching bool
	loading   bool
	loaded    bool
	spinner   spinner.Model
	err       error
}

func newAppsModel(b Backend, cluster string) appsModel {
	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "search apps"
	search.CharLimit = 128

	return appsModel{
		backend: b,
		cluster: cluster,
		search:  search,
		spinner: newSpinner(),
		loading: true,
	}
}

func (m appsModel) init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m appsModel) fetch() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		apps, err := b.Apps(context.Background())
		return appsLoadedMsg{apps: apps, err: err}
	}
}

func (m appsModel) refresh() (appsModel, tea.Cmd) {
	if m.loading {
		return m, nil
	}
	m.loading = true
	return m, tea.Batch(m.spinner.Tick, m.fetch())
}

// filter recomputes visible from the search query, keeping the server's
// order when the query is empty.
func (m *appsModel) filter() {
	q := strings.TrimSpace(m.search.Value())
	if q == "" {
		m.visible = m.apps
	} else {
		matches := fuzzy.FindFrom(q, appSource(m.apps))
		m.visible = make([]*model.TuberApp, 0, len(matches))
		for _, match := range matches {
			m.visible = append(m.visible, m.apps[match.Index])
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m appsModel) update(msg tea.Msg) (appsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case appsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			if url, ok := api.AuthRedirect(msg.err); ok {
				return m, redirectCmd(url)
			}
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.loaded = true
		m.apps = msg.apps
		m.filter()
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleKey(msg)
	}

	if m.searching {
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m appsModel) handleKey(msg tea.KeyMsg) (appsModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Refresh):
		return m.refresh()
	case m.err != nil:
		return m, nil
	case key.Matches(msg, keys.Search):
		m.searching = true
		m.search.Focus()
		return m, textinput.Blink
	case msg.String() == "esc" && m.search.Value() != "":
		m.search.SetValue("")
		m.filter()
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.visible)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Open):
		if m.cursor < len(m.visible) {
			name := m.visible[m.cursor].Name
			return m, func() tea.Msg { return switchToDetailMsg{name: name} }
		}
	}
	return m, nil
}

func (m appsModel) handleSearchKey(msg tea.KeyMsg) (appsModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.filter()
		return m, nil
	case "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	case "up", "down":
		if msg.String() == "up" && m.cursor > 0 {
			m.cursor--
		}
		if msg.String() == "down" && m.cursor < len(m.visible)-1 {
			m.cursor++
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.filter()
	return m, cmd
}

func (m appsModel) view(width, height int) string {
	var b strings.Builder

	title := "  tuber apps"
	if m.cluster != "" {
		title += " · " + m.cluster
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	switch {
	case m.err != nil:
		b.WriteString(renderFetchError(m.err))
	case !m.loaded:
		b.WriteString("  " + m.spinner.View() + " loading apps…\n")
	default:
		if m.searching || m.search.Value() != "" {
			b.WriteString("  " + m.search.View() + "\n\n")
		}
		if len(m.visible) == 0 {
			b.WriteString(dimStyle.Render("  No apps found."))
			b.WriteString("\n")
		}
		for i, app := range m.visible {
			cursor := "  "
			style := dimStyle
			if i == m.cursor {
				cursor = "▸ "
				style = selectedStyle
			}
			line := cursor + fit(app.Name, 28) + " " + app.ImageTag
			b.WriteString(style.Render(line))
			if app.Paused {
				b.WriteString(" ")
				b.WriteString(pausedBadgeStyle.Render("paused"))
			}
			b.WriteString("\n")
		}
		if m.loading {
			b.WriteString("\n  " + m.spinner.View() + dimStyle.Render(" refreshing…"))
		}
	}

	help := helpLine(keys.Open, keys.Search, keys.Refresh, keys.Quit)
	if m.searching {
		help = "type to filter • Enter done • esc clear"
	}
	return layoutWithHelp(b.String(), help, width, height)
}

// renderFetchError is the error panel shown in place of a view whose query
// failed.
func renderFetchError(err error) string {
	code := api.StatusCode(err)
	var content strings.Builder
	content.WriteString(errorStyle.Render(fmt.Sprintf("✗ request failed (status %d)", code)))
	content.WriteString("\n\n")
	content.WriteString(api.Message(err))
	content.WriteString("\n\n")
	content.WriteString(dimStyle.Render("press r to retry"))
	return boxStyle.Render(content.String()) + "\n"
}
