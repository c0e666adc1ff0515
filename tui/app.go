// Package tui is the interactive dashboard: an app list, an app detail view
// with its editable collections, and a standalone collection editor.
package tui

import (
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/freshly/tuberdash/internal/api"
)

type view int

const (
	viewApps view = iota
	viewDetail
)

// Messages
type switchToDetailMsg struct {
	name string
}
type switchToAppsMsg struct{}

type dashboardModel struct {
	backend     Backend
	currentView view
	apps        appsModel
	detail      detailModel
	width       int
	height      int
	redirect    string
}

func newDashboardModel(b Backend, cluster, startApp string) dashboardModel {
	m := dashboardModel{
		backend:     b,
		currentView: viewApps,
		apps:        newAppsModel(b, cluster),
	}
	if startApp != "" {
		m.currentView = viewDetail
		m.detail = newDetailModel(b, startApp)
	}
	return m
}

func (m dashboardModel) Init() tea.Cmd {
	if m.currentView == viewDetail {
		return m.detail.init()
	}
	return m.apps.init()
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case authRedirectMsg:
		slog.Warn("authentication required", "url", msg.url)
		m.redirect = msg.url
		return m, tea.Quit
	case switchToDetailMsg:
		m.currentView = viewDetail
		m.detail = newDetailModel(m.backend, msg.name)
		return m, m.detail.init()
	case switchToAppsMsg:
		m.currentView = viewApps
		if !m.apps.loaded {
			return m, m.apps.init()
		}
		var cmd tea.Cmd
		m.apps, cmd = m.apps.refresh()
		return m, cmd
	}

	switch m.currentView {
	case viewApps:
		var cmd tea.Cmd
		m.apps, cmd = m.apps.update(msg)
		return m, cmd
	case viewDetail:
		var cmd tea.Cmd
		m.detail, cmd = m.detail.update(msg)
		return m, cmd
	}
	return m, nil
}

func (m dashboardModel) View() string {
	switch m.currentView {
	case viewApps:
		return m.apps.view(m.width, m.height)
	case viewDetail:
		return m.detail.view(m.width, m.height)
	}
	return ""
}

// Run starts the dashboard. A non-empty startApp opens that app's detail
// view directly. When the server asks for authentication the dashboard
// exits with an *api.AuthRedirectError.
func Run(b Backend, cluster, startApp string) error {
	p := tea.NewProgram(newDashboardModel(b, cluster, startApp), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return err
	}
	if dm, ok := result.(dashboardModel); ok && dm.redirect != "" {
		return &api.AuthRedirectError{URL: dm.redirect}
	}
	return nil
}

// collectionEditorModel edits one collection of one app outside the
// dashboard.
type collectionEditorModel struct {
	backend  Backend
	app      string
	kind     CollectionKind
	section  collectionModel
	loading  bool
	loaded   bool
	refetch  bool
	spinner  spinner.Model
	err      error
	redirect string
	width    int
	height   int
}

func newCollectionEditorModel(b Backend, app string, kind CollectionKind) collectionEditorModel {
	section := newCollectionModel(b, kind, app)
	section.focused = true
	return collectionEditorModel{
		backend: b,
		app:     app,
		kind:    kind,
		section: section,
		loading: true,
		spinner: newSpinner(),
	}
}

func (m collectionEditorModel) fetch() tea.Cmd {
	return fetchDetail(m.backend, m.app, m.kind == KindEnv)
}

// reload works like detailModel.reload.
func (m collectionEditorModel) reload() (collectionEditorModel, tea.Cmd) {
	if m.loading {
		m.refetch = true
		return m, nil
	}
	m.refetch = false
	m.loading = true
	return m, tea.Batch(m.spinner.Tick, m.fetch())
}

func (m collectionEditorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m collectionEditorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.section.capturing() {
			break
		}
		switch {
		case key.Matches(msg, keys.Quit), key.Matches(msg, keys.Cancel):
			return m, tea.Quit
		case key.Matches(msg, keys.Refresh):
			return m.reload()
		}
		if m.err != nil {
			return m, nil
		}

	case detailLoadedMsg:
		m.loading = false
		if m.refetch {
			return m.reload()
		}
		if msg.err != nil {
			if url, ok := api.AuthRedirect(msg.err); ok {
				m.redirect = url
				return m, tea.Quit
			}
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.loaded = true
		m.section.sync(itemsFor(m.kind, msg.detail))
		return m, nil

	case collectionChangedMsg:
		if msg.editor != m.section.id {
			return m, nil
		}
		return m.reload()

	case authRedirectMsg:
		m.redirect = msg.url
		return m, tea.Quit

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.section, cmd = m.section.update(msg)
	return m, cmd
}

func (m collectionEditorModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("  " + m.app + " · " + m.kind.String()))
	b.WriteString("\n\n")

	help := m.section.help()
	switch {
	case m.err != nil:
		b.WriteString(renderFetchError(m.err))
		help = helpLine(keys.Refresh, keys.Quit)
	case !m.loaded:
		b.WriteString("  " + m.spinner.View() + " loading…\n")
	default:
		b.WriteString(m.section.view())
		if m.loading {
			b.WriteString("\n  " + m.spinner.View() + dimStyle.Render(" refreshing…"))
		}
		if !m.section.capturing() {
			help += " • " + helpLine(keys.Refresh, keys.Quit)
		}
	}
	return layoutWithHelp(b.String(), help, m.width, m.height)
}

// RunCollection opens the editor for one collection of app.
func RunCollection(b Backend, app string, kind CollectionKind) error {
	p := tea.NewProgram(newCollectionEditorModel(b, app, kind), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return err
	}
	if cm, ok := result.(collectionEditorModel); ok && cm.redirect != "" {
		return &api.AuthRedirectError{URL: cm.redirect}
	}
	return nil
}
