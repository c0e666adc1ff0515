package tui

import (
	"context"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/freshly/tuberdash/internal/api"
)

// action is a one-shot operation that must be confirmed before it runs.
type action struct {
	label string // "Deploy storefront"
	run   func(ctx context.Context) error
	after tea.Cmd // runs once the action succeeded
}

type actionDoneMsg struct {
	label string
	err   error
}

type noteClearMsg struct {
	seq int
}

// noteDelay is how long a success note stays on screen.
const noteDelay = 2 * time.Second

// confirmModel arms an action on the first press and runs it after y.
// It never runs two actions at once.
type confirmModel struct {
	armed   *action
	working bool
	note    string
	err     string
	seq     int
}

func (m confirmModel) busy() bool { return m.armed != nil || m.working }

// arm replaces any armed action. Ignored while an action is running.
func (m confirmModel) arm(a action) confirmModel {
	if m.working {
		return m
	}
	m.armed = &a
	m.err = ""
	m.note = ""
	return m
}

func (m confirmModel) update(msg tea.Msg) (confirmModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.armed == nil || m.working {
			return m, nil
		}
		switch msg.String() {
		case "y", "Y":
			a := *m.armed
			m.working = true
			slog.Info("running action", "action", a.label)
			return m, func() tea.Msg {
				return actionDoneMsg{label: a.label, err: a.run(context.Background())}
			}
		case "n", "N", "esc":
			m.armed = nil
		}
		return m, nil

	case actionDoneMsg:
		var after tea.Cmd
		if m.armed != nil {
			after = m.armed.after
		}
		m.working = false
		m.armed = nil
		if msg.err != nil {
			slog.Warn("action failed", "action", msg.label, "error", msg.err)
			m.err = api.Message(msg.err)
			if url, ok := api.AuthRedirect(msg.err); ok {
				return m, redirectCmd(url)
			}
			return m, nil
		}
		m.seq++
		m.note = msg.label + " done"
		seq := m.seq
		clearNote := tea.Tick(noteDelay, func(time.Time) tea.Msg { return noteClearMsg{seq: seq} })
		return m, tea.Batch(clearNote, after)

	case noteClearMsg:
		if msg.seq == m.seq {
			m.note = ""
		}
	}
	return m, nil
}

func (m confirmModel) view() string {
	switch {
	case m.working && m.armed != nil:
		return dimStyle.Render("  " + m.armed.label + ": working…")
	case m.armed != nil:
		return errorStyle.Render("  " + m.armed.label + "? (y/n)")
	case m.err != "":
		return errorStyle.Render("  ✗ " + m.err)
	case m.note != "":
		return successStyle.Render("  ✓ " + m.note)
	}
	return ""
}
