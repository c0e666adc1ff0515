package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/freshly/tuberdash/internal/api"
	"github.com/freshly/tuberdash/internal/collection"
)

// Messages
type rowResultMsg struct {
	editor string
	result collection.Result
}

// collectionChangedMsg asks the owner of an editor to re-query.
type collectionChangedMsg struct {
	editor string
}

type authRedirectMsg struct {
	url string
}

func redirectCmd(url string) tea.Cmd {
	return func() tea.Msg { return authRedirectMsg{url: url} }
}

const maxKeyWidth = 32

type collectionModel struct {
	id       string
	kind     CollectionKind
	editor   *collection.Editor
	cursor   int
	focused  bool
	active   string // row id whose inputs are open
	field    int    // 0 key, 1 value
	keyInput textinput.Model
	valInput textinput.Model
	status   string
}

func newCollectionModel(b Backend, kind CollectionKind, app string) collectionModel {
	ed := newEditor(b, kind, app)
	v := ed.Variant()

	keyInput := textinput.New()
	keyInput.CharLimit = 256
	keyInput.Prompt = ""
	keyInput.Placeholder = v.KeyLabel

	valInput := textinput.New()
	valInput.CharLimit = 4096
	valInput.Prompt = ""
	valInput.Placeholder = v.ValueLabel

	return collectionModel{
		id:       app + "/" + kind.String(),
		kind:     kind,
		editor:   ed,
		keyInput: keyInput,
		valInput: valInput,
	}
}

// capturing reports whether every key should go to this editor.
func (m collectionModel) capturing() bool {
	if m.active != "" {
		return true
	}
	r := m.current()
	return r != nil && r.Phase == collection.Confirming
}

func (m collectionModel) current() *collection.Row {
	rows := m.editor.Rows()
	if m.cursor >= 0 && m.cursor < len(rows) {
		return rows[m.cursor]
	}
	return nil
}

func (m *collectionModel) sync(items []collection.Item) {
	m.editor.Sync(items)
	m.clampCursor()
	if m.active != "" {
		if _, ok := m.editor.Row(m.active); !ok {
			m.stopInput()
		}
	}
}

func (m *collectionModel) clampCursor() {
	n := len(m.editor.Rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *collectionModel) stopInput() {
	m.active = ""
	m.keyInput.Blur()
	m.valInput.Blur()
}

func (m *collectionModel) focusField() tea.Cmd {
	if m.field == 0 {
		m.valInput.Blur()
		m.keyInput.Focus()
	} else {
		m.keyInput.Blur()
		m.valInput.Focus()
	}
	return textinput.Blink
}

func (m collectionModel) update(msg tea.Msg) (collectionModel, tea.Cmd) {
	switch msg := msg.(type) {
	case rowResultMsg:
		if msg.editor != m.id {
			return m, nil
		}
		return m.complete(msg.result)
	case tea.KeyMsg:
		m.status = ""
		if m.active != "" {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)
	}

	if m.active == "" {
		return m, nil
	}
	var cmd tea.Cmd
	if m.field == 0 {
		m.keyInput, cmd = m.keyInput.Update(msg)
	} else {
		m.valInput, cmd = m.valInput.Update(msg)
	}
	return m, cmd
}

func (m collectionModel) handleKey(msg tea.KeyMsg) (collectionModel, tea.Cmd) {
	row := m.current()

	if row != nil && row.Phase == collection.Confirming {
		switch {
		case key.Matches(msg, keys.Confirm):
			p, err := m.editor.ConfirmDelete(row.ID())
			if err != nil {
				m.noteRefused(err)
				return m, nil
			}
			return m, m.run(p)
		case key.Matches(msg, keys.Decline):
			m.noteRefused(m.editor.DeclineDelete(row.ID()))
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.editor.Rows())-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Add):
		r := m.editor.OpenNew()
		if r.Loading() {
			return m, nil
		}
		m.active = collection.NewRowID
		m.keyInput.SetValue(r.Key)
		m.valInput.SetValue(r.Draft)
		m.field = 0
		return m, m.focusField()
	case row == nil:
		return m, nil
	case key.Matches(msg, keys.Edit):
		if err := m.editor.BeginEdit(row.ID()); err != nil {
			m.noteRefused(err)
			return m, nil
		}
		m.active = row.ID()
		m.valInput.SetValue(row.Draft)
		m.valInput.CursorEnd()
		m.field = 1
		return m, m.focusField()
	case key.Matches(msg, keys.Delete):
		m.noteRefused(m.editor.RequestDelete(row.ID()))
	}
	return m, nil
}

// noteRefused explains in the status line why the editor turned a key down.
func (m *collectionModel) noteRefused(err error) {
	switch {
	case errors.Is(err, collection.ErrReadOnly):
		m.status = fmt.Sprintf("%s entries can't be edited in place; delete and add instead", strings.ToLower(m.kind.String()))
	case errors.Is(err, collection.ErrBusy):
		m.status = "still saving this entry, wait for it to finish"
	}
}

func (m collectionModel) handleInputKey(msg tea.KeyMsg) (collectionModel, tea.Cmd) {
	r, ok := m.editor.Row(m.active)
	if !ok {
		m.stopInput()
		return m, nil
	}
	if r.Loading() {
		return m, nil
	}

	isNew := m.active == collection.NewRowID
	switch {
	case key.Matches(msg, keys.Cancel):
		if err := m.editor.CancelEdit(m.active); err != nil {
			return m, nil
		}
		m.stopInput()
		return m, nil
	case isNew && (key.Matches(msg, keys.NextField) || key.Matches(msg, keys.PrevField)):
		m.field = 1 - m.field
		return m, m.focusField()
	case key.Matches(msg, keys.Submit):
		if isNew && m.field == 0 {
			m.field = 1
			return m, m.focusField()
		}
		var (
			p   *collection.Pending
			err error
		)
		if isNew {
			p, err = m.editor.SubmitNew(m.keyInput.Value(), m.valInput.Value())
		} else {
			p, err = m.editor.SubmitEdit(m.active, m.valInput.Value())
		}
		if err != nil {
			return m, nil
		}
		m.stopInput()
		return m, m.run(p)
	}

	var cmd tea.Cmd
	if m.field == 0 {
		m.keyInput, cmd = m.keyInput.Update(msg)
	} else {
		m.valInput, cmd = m.valInput.Update(msg)
	}
	return m, cmd
}

func (m collectionModel) run(p *collection.Pending) tea.Cmd {
	id := m.id
	slog.Debug("collection mutation", "collection", id, "row", p.RowID, "request_id", p.Request)
	return func() tea.Msg {
		return rowResultMsg{editor: id, result: p.Run(context.Background())}
	}
}

func (m collectionModel) complete(res collection.Result) (collectionModel, tea.Cmd) {
	refresh := m.editor.Complete(res)
	if m.active != "" {
		r, ok := m.editor.Row(m.active)
		if !ok || (r.Phase != collection.Editing && r.Phase != collection.Adding) {
			m.stopInput()
		}
	}
	m.clampCursor()

	var cmds []tea.Cmd
	if res.Err != nil {
		slog.Warn("collection mutation failed", "collection", m.id, "row", res.RowID, "error", res.Err)
		if url, ok := api.AuthRedirect(res.Err); ok {
			cmds = append(cmds, redirectCmd(url))
		}
	}
	if refresh {
		id := m.id
		cmds = append(cmds, func() tea.Msg { return collectionChangedMsg{editor: id} })
	}
	return m, tea.Batch(cmds...)
}

func (m collectionModel) keyWidth() int {
	w := runewidth.StringWidth(m.editor.Variant().KeyLabel)
	for _, r := range m.editor.Rows() {
		if kw := runewidth.StringWidth(r.Key); kw > w {
			w = kw
		}
	}
	if w > maxKeyWidth {
		w = maxKeyWidth
	}
	return w
}

func (m collectionModel) view() string {
	var b strings.Builder
	rows := m.editor.Rows()
	keyW := m.keyWidth()

	if len(rows) == 0 && m.editor.NewRow() == nil {
		b.WriteString(dimStyle.Render("  (none)"))
		b.WriteString("\n")
	}

	for i, r := range rows {
		cursor := "  "
		style := dimStyle
		if m.focused && i == m.cursor {
			cursor = "▸ "
			style = selectedStyle
		}
		b.WriteString(style.Render(cursor+fit(r.Key, keyW)+"  "))

		switch {
		case r.ID() == m.active:
			b.WriteString(m.valInput.View())
		case r.Phase == collection.Editing || r.Phase == collection.Submitting:
			b.WriteString(style.Render(r.Draft))
		default:
			b.WriteString(style.Render(r.Value))
		}

		switch r.Phase {
		case collection.Submitting:
			b.WriteString(dimStyle.Render("  saving…"))
		case collection.Editing:
			if r.ID() != m.active {
				b.WriteString(dimStyle.Render("  (unsaved)"))
			}
		case collection.Confirming:
			b.WriteString(errorStyle.Render(fmt.Sprintf("  Delete '%s'? (y/n)", r.Key)))
		}
		b.WriteString("\n")
		if r.Err != "" {
			b.WriteString(errorStyle.Render("    ✗ " + r.Err))
			b.WriteString("\n")
		}
	}

	if nr := m.editor.NewRow(); nr != nil {
		b.WriteString(successStyle.Render("+ "))
		if m.active == collection.NewRowID {
			b.WriteString(m.keyInput.View())
			b.WriteString("  ")
			b.WriteString(m.valInput.View())
		} else {
			b.WriteString(dimStyle.Render(fit(nr.Key, keyW) + "  " + nr.Draft))
		}
		if nr.Loading() {
			b.WriteString(dimStyle.Render("  saving…"))
		}
		b.WriteString("\n")
		if nr.Err != "" {
			b.WriteString(errorStyle.Render("    ✗ " + nr.Err))
			b.WriteString("\n")
		}
	}

	if m.status != "" {
		b.WriteString(dimStyle.Render("  " + m.status))
		b.WriteString("\n")
	}
	return b.String()
}

func (m collectionModel) help() string {
	if m.active == collection.NewRowID {
		return helpLine(keys.NextField, keys.Submit, keys.Cancel)
	}
	if m.active != "" {
		return helpLine(keys.Submit, keys.Cancel)
	}
	if r := m.current(); r != nil && r.Phase == collection.Confirming {
		return helpLine(keys.Confirm, keys.Decline)
	}
	if m.editor.Variant().ValueIsIdentity {
		return helpLine(keys.Add, keys.Delete)
	}
	return helpLine(keys.Add, keys.Edit, keys.Delete)
}

// truncate shortens s to n terminal cells.
func truncate(s string, n int) string {
	return runewidth.Truncate(s, n, "…")
}

// fit truncates or pads s to exactly n terminal cells.
func fit(s string, n int) string {
	return runewidth.FillRight(truncate(s, n), n)
}
