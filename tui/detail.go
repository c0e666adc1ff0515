package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/freshly/tuberdash/internal/api"
)

type detailLoadedMsg struct {
	name    string
	withEnv bool
	detail  *api.AppDetail
	err     error
}

// detailReloadMsg asks the detail view of name to re-query after an action.
type detailReloadMsg struct{ name string }

type pane int

const (
	paneVars pane = iota
	paneEnv
	paneExclusions
	paneReviewApps
	paneRacVars
	paneRacExclusions
)

var paneKinds = map[pane]CollectionKind{
	paneVars:          KindVars,
	paneEnv:           KindEnv,
	paneExclusions:    KindExclusions,
	paneRacVars:       KindRacVars,
	paneRacExclusions: KindRacExclusions,
}

const numKinds = int(KindRacExclusions) + 1

type detailModel struct {
	backend  Backend
	name     string
	detail   *api.AppDetail
	loading  bool
	loaded   bool
	refetch  bool // a change landed while a fetch was in flight
	spinner  spinner.Model
	err      error
	sections [numKinds]collectionModel
	focus    int // index into panes()

	envExpanded bool
	envLoaded   bool

	reviewCursor int
	creating     bool
	branchInput  textinput.Model

	confirm confirmModel
}

func newDetailModel(b Backend, name string) detailModel {
	m := detailModel{
		backend: b,
		name:    name,
		loading: true,
		spinner: newSpinner(),
	}
	for k := 0; k < numKinds; k++ {
		m.sections[k] = newCollectionModel(b, CollectionKind(k), name)
	}
	m.sections[KindVars].focused = true

	m.branchInput = textinput.New()
	m.branchInput.Prompt = "  branch: "
	m.branchInput.Placeholder = "feature/my-branch"
	m.branchInput.CharLimit = 200
	return m
}

func (m detailModel) init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch())
}

func (m detailModel) fetch() tea.Cmd {
	return fetchDetail(m.backend, m.name, m.envExpanded)
}

func fetchDetail(b Backend, name string, withEnv bool) tea.Cmd {
	return func() tea.Msg {
		d, err := b.Detail(context.Background(), name, withEnv)
		return detailLoadedMsg{name: name, withEnv: withEnv, detail: d, err: err}
	}
}

// reload re-queries the app. A reload asked for while a fetch is in flight
// runs once that fetch returns, since its result may predate the change.
func (m detailModel) reload() (detailModel, tea.Cmd) {
	if m.loading {
		m.refetch = true
		return m, nil
	}
	m.refetch = false
	m.loading = true
	return m, tea.Batch(m.spinner.Tick, m.fetch())
}

func (m detailModel) reviewApp() bool {
	return m.detail != nil && m.detail.App.ReviewApp
}

func (m detailModel) panes() []pane {
	if m.reviewApp() {
		return []pane{paneVars, paneEnv, paneExclusions}
	}
	return []pane{paneVars, paneEnv, paneExclusions, paneReviewApps, paneRacVars, paneRacExclusions}
}

func (m detailModel) focusedPane() pane {
	ps := m.panes()
	if m.focus >= len(ps) {
		return ps[len(ps)-1]
	}
	return ps[m.focus]
}

// focusedSection returns the collection under focus, or nil for panes that
// are not collections.
func (m *detailModel) focusedSection() *collectionModel {
	p := m.focusedPane()
	k, ok := paneKinds[p]
	if !ok {
		return nil
	}
	if p == paneEnv && !m.envLoaded {
		return nil
	}
	return &m.sections[k]
}

func (m *detailModel) setFocus(i int) {
	ps := m.panes()
	m.focus = (i + len(ps)) % len(ps)
	p := m.focusedPane()
	for k := range m.sections {
		m.sections[k].focused = false
	}
	if k, ok := paneKinds[p]; ok {
		m.sections[k].focused = true
	}
}

func (m detailModel) update(msg tea.Msg) (detailModel, tea.Cmd) {
	switch msg := msg.(type) {
	case detailLoadedMsg:
		if msg.name != m.name {
			return m, nil
		}
		m.loading = false
		if m.refetch {
			return m.reload()
		}
		if msg.err != nil {
			if url, ok := api.AuthRedirect(msg.err); ok {
				return m, redirectCmd(url)
			}
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.loaded = true
		m.detail = msg.detail
		for k := 0; k < numKinds; k++ {
			if CollectionKind(k) == KindEnv && !msg.withEnv {
				continue
			}
			m.sections[k].sync(itemsFor(CollectionKind(k), msg.detail))
		}
		m.envLoaded = m.envExpanded && msg.withEnv
		m.setFocus(m.focus)
		if m.envExpanded && !msg.withEnv {
			return m.reload()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case rowResultMsg:
		var cmds []tea.Cmd
		for k := range m.sections {
			var cmd tea.Cmd
			m.sections[k], cmd = m.sections[k].update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case detailReloadMsg:
		if msg.name != m.name {
			return m, nil
		}
		return m.reload()

	case collectionChangedMsg:
		for k := range m.sections {
			if m.sections[k].id == msg.editor {
				return m.reload()
			}
		}
		return m, nil

	case actionDoneMsg, noteClearMsg:
		var cmd tea.Cmd
		m.confirm, cmd = m.confirm.update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.creating {
		var cmd tea.Cmd
		m.branchInput, cmd = m.branchInput.Update(msg)
		return m, cmd
	}
	if sec := m.focusedSection(); sec != nil && sec.active != "" {
		var cmd tea.Cmd
		*sec, cmd = sec.update(msg)
		return m, cmd
	}
	return m, nil
}

func (m detailModel) handleKey(msg tea.KeyMsg) (detailModel, tea.Cmd) {
	if m.creating {
		return m.handleCreateKey(msg)
	}
	if m.confirm.busy() {
		var cmd tea.Cmd
		m.confirm, cmd = m.confirm.update(msg)
		return m, cmd
	}
	if sec := m.focusedSection(); sec != nil && sec.capturing() {
		var cmd tea.Cmd
		*sec, cmd = sec.update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Back):
		if m.reviewApp() && m.detail.App.SourceAppName != "" {
			source := m.detail.App.SourceAppName
			return m, func() tea.Msg { return switchToDetailMsg{name: source} }
		}
		return m, func() tea.Msg { return switchToAppsMsg{} }
	case key.Matches(msg, keys.Refresh):
		return m.reload()
	}

	if m.err != nil || m.detail == nil {
		return m, nil
	}

	app := m.detail.App
	b := m.backend
	switch {
	case key.Matches(msg, keys.NextPane):
		m.setFocus(m.focus + 1)
		return m, nil
	case key.Matches(msg, keys.PrevPane):
		m.setFocus(m.focus - 1)
		return m, nil
	case key.Matches(msg, keys.Pause):
		label, paused := "Pause "+app.Name, true
		if app.Paused {
			label, paused = "Resume "+app.Name, false
		}
		m.confirm = m.confirm.arm(m.withReload(action{label: label, run: func(ctx context.Context) error {
			return b.SetPaused(ctx, app.Name, paused)
		}}))
		return m, nil
	case key.Matches(msg, keys.Deploy):
		m.confirm = m.confirm.arm(m.withReload(action{label: "Deploy " + app.Name, run: func(ctx context.Context) error {
			return b.Deploy(ctx, app.Name, "")
		}}))
		return m, nil
	case key.Matches(msg, keys.Rollback):
		m.confirm = m.confirm.arm(m.withReload(action{label: "Roll back " + app.Name, run: func(ctx context.Context) error {
			return b.Rollback(ctx, app.Name)
		}}))
		return m, nil
	case key.Matches(msg, keys.Destroy) && app.ReviewApp:
		source := app.SourceAppName
		m.confirm = m.confirm.arm(action{
			label: "Destroy " + app.Name,
			run: func(ctx context.Context) error {
				return b.DestroyApp(ctx, app.Name)
			},
			after: func() tea.Msg {
				if source == "" {
					return switchToAppsMsg{}
				}
				return switchToDetailMsg{name: source}
			},
		})
		return m, nil
	case key.Matches(msg, keys.Toggle) && !app.ReviewApp:
		enabled := app.ReviewAppsConfig == nil || !app.ReviewAppsConfig.Enabled
		label := "Disable review apps for " + app.Name
		if enabled {
			label = "Enable review apps for " + app.Name
		}
		m.confirm = m.confirm.arm(m.withReload(action{label: label, run: func(ctx context.Context) error {
			return b.SetRacEnabled(ctx, app.Name, enabled)
		}}))
		return m, nil
	}

	switch m.focusedPane() {
	case paneEnv:
		if key.Matches(msg, keys.Expand) {
			m.envExpanded = !m.envExpanded
			if !m.envExpanded {
				m.envLoaded = false
				return m, nil
			}
			return m.reload()
		}
	case paneReviewApps:
		return m.handleReviewAppsKey(msg)
	}

	if sec := m.focusedSection(); sec != nil {
		var cmd tea.Cmd
		*sec, cmd = sec.update(msg)
		return m, cmd
	}
	return m, nil
}

func (m detailModel) withReload(a action) action {
	name := m.name
	a.after = func() tea.Msg { return detailReloadMsg{name: name} }
	return a
}

func (m detailModel) handleReviewAppsKey(msg tea.KeyMsg) (detailModel, tea.Cmd) {
	reviewApps := m.detail.App.ReviewApps
	switch {
	case key.Matches(msg, keys.Up):
		if m.reviewCursor > 0 {
			m.reviewCursor--
		}
	case key.Matches(msg, keys.Down):
		if m.reviewCursor < len(reviewApps)-1 {
			m.reviewCursor++
		}
	case key.Matches(msg, keys.Open):
		if m.reviewCursor < len(reviewApps) {
			name := reviewApps[m.reviewCursor].Name
			return m, func() tea.Msg { return switchToDetailMsg{name: name} }
		}
	case key.Matches(msg, keys.Create):
		m.creating = true
		m.branchInput.SetValue("")
		m.branchInput.Focus()
		return m, textinput.Blink
	}
	return m, nil
}

func (m detailModel) handleCreateKey(msg tea.KeyMsg) (detailModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.creating = false
		m.branchInput.Blur()
		return m, nil
	case "enter":
		branch := strings.TrimSpace(m.branchInput.Value())
		if branch == "" {
			return m, nil
		}
		m.creating = false
		m.branchInput.Blur()
		b, name := m.backend, m.name
		m.confirm = m.confirm.arm(m.withReload(action{
			label: fmt.Sprintf("Create review app of %s from %s", name, branch),
			run: func(ctx context.Context) error {
				_, err := b.CreateReviewApp(ctx, name, branch)
				return err
			},
		}))
		return m, nil
	}
	var cmd tea.Cmd
	m.branchInput, cmd = m.branchInput.Update(msg)
	return m, cmd
}

func (m detailModel) view(width, height int) string {
	var b strings.Builder

	switch {
	case m.err != nil:
		b.WriteString(titleStyle.Render("  " + m.name))
		b.WriteString("\n\n")
		b.WriteString(renderFetchError(m.err))
		return layoutWithHelp(b.String(), helpLine(keys.Refresh, keys.Back, keys.Quit), width, height)
	case !m.loaded:
		b.WriteString(titleStyle.Render("  " + m.name))
		b.WriteString("\n\n")
		b.WriteString("  " + m.spinner.View() + " loading…\n")
		return layoutWithHelp(b.String(), helpLine(keys.Back, keys.Quit), width, height)
	}

	b.WriteString(m.headerView())
	b.WriteString("\n")
	if v := m.confirm.view(); v != "" {
		b.WriteString(v)
		b.WriteString("\n")
	}
	if m.loading {
		b.WriteString("  " + m.spinner.View() + dimStyle.Render(" refreshing…") + "\n")
	}
	b.WriteString("\n")

	focused := m.focusedPane()
	for _, p := range m.panes() {
		b.WriteString(renderSection(m.paneTitle(p, p == focused), m.paneView(p)))
		b.WriteString("\n")
	}

	return layoutWithHelp(b.String(), m.help(), width, height)
}

func (m detailModel) headerView() string {
	app := m.detail.App
	var title strings.Builder
	title.WriteString(app.Name)
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(primaryColor).
		Background(headerBgColor).
		Padding(0, 2).
		Render(title.String())
	if app.Paused {
		header += " " + pausedBadgeStyle.Render("paused")
	}
	if app.ReviewApp {
		header += " " + badgeStyle.Render("review app")
	}

	var fields strings.Builder
	field := func(label, value string) {
		if value == "" {
			value = "-"
		}
		fields.WriteString(dimStyle.Render(fmt.Sprintf("  %-18s", label)))
		fields.WriteString(value)
		fields.WriteString("\n")
	}
	field("Image tag", app.ImageTag)
	if app.ReviewApp {
		field("Source app", app.SourceAppName)
		field("Branch", app.Branch)
	}
	field("Slack channel", app.SlackChannel)
	field("GitHub repo", app.GithubRepo)
	field("Cloud source repo", app.CloudSourceRepo)
	if c := m.detail.Cluster; c != nil && c.Name != "" {
		field("Cluster", c.Name+" ("+c.Region+")")
	}
	return header + "\n\n" + fields.String()
}

func (m detailModel) paneTitle(p pane, focused bool) string {
	var title string
	if k, ok := paneKinds[p]; ok {
		title = k.String()
	} else {
		title = "Review Apps"
	}
	if focused {
		title = "▸ " + title
	}
	return title
}

func (m detailModel) paneView(p pane) string {
	switch p {
	case paneEnv:
		if !m.envExpanded {
			return dimStyle.Render("collapsed • o to load")
		}
		if !m.envLoaded {
			return m.spinner.View() + " loading…"
		}
	case paneReviewApps:
		return m.reviewAppsView()
	}
	return strings.TrimRight(m.sections[paneKinds[p]].view(), "\n")
}

func (m detailModel) reviewAppsView() string {
	app := m.detail.App
	var b strings.Builder

	enabled := app.ReviewAppsConfig != nil && app.ReviewAppsConfig.Enabled
	if enabled {
		b.WriteString(successStyle.Render("enabled"))
	} else {
		b.WriteString(dimStyle.Render("disabled"))
	}
	if c := m.detail.Cluster; c != nil && !c.ReviewAppsEnabled {
		b.WriteString(dimStyle.Render(" • not available on this cluster"))
	}
	b.WriteString("\n")

	if len(app.ReviewApps) == 0 {
		b.WriteString(dimStyle.Render("  (none)"))
	}
	focused := m.focusedPane() == paneReviewApps
	for i, ra := range app.ReviewApps {
		cursor := "  "
		style := dimStyle
		if focused && i == m.reviewCursor {
			cursor = "▸ "
			style = selectedStyle
		}
		line := cursor + fit(ra.Name, 32) + " " + fit(ra.Branch, 24) + " " + ra.ImageTag
		b.WriteString(style.Render(line))
		if ra.Paused {
			b.WriteString(" " + pausedBadgeStyle.Render("paused"))
		}
		b.WriteString("\n")
	}
	if m.creating {
		b.WriteString(m.branchInput.View())
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m detailModel) help() string {
	if m.creating {
		return "type a branch name • Enter create • esc cancel"
	}
	if m.confirm.busy() {
		return helpLine(keys.Confirm, keys.Decline)
	}
	var parts []string
	switch p := m.focusedPane(); p {
	case paneEnv:
		if !m.envLoaded {
			parts = append(parts, helpLine(keys.Expand))
			break
		}
		parts = append(parts, m.sections[paneKinds[p]].help(), helpLine(keys.Expand))
	case paneReviewApps:
		parts = append(parts, helpLine(keys.Open, keys.Create, keys.Toggle))
	default:
		parts = append(parts, m.sections[paneKinds[p]].help())
	}
	if sec := m.focusedSection(); sec == nil || sec.active == "" {
		actions := []key.Binding{keys.NextPane, keys.Pause, keys.Deploy, keys.Rollback}
		if m.reviewApp() {
			actions = append(actions, keys.Destroy)
		}
		actions = append(actions, keys.Refresh, keys.Back)
		parts = append(parts, helpLine(actions...))
	}
	return strings.Join(parts, " • ")
}
