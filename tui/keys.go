package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
)

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Add       key.Binding
	Edit      key.Binding
	Delete    key.Binding
	Confirm   key.Binding
	Decline   key.Binding
	Cancel    key.Binding
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding

	NextPane key.Binding
	PrevPane key.Binding
	Open     key.Binding
	Back     key.Binding
	Refresh  key.Binding
	Search   key.Binding
	Quit     key.Binding

	Pause    key.Binding
	Deploy   key.Binding
	Rollback key.Binding
	Destroy  key.Binding
	Toggle   key.Binding
	Expand   key.Binding
	Create   key.Binding
}

var keys = keyMap{
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Add:       key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	Edit:      key.NewBinding(key.WithKeys("e", "enter"), key.WithHelp("e/Enter", "edit")),
	Delete:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
	Confirm:   key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "confirm")),
	Decline:   key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n", "cancel")),
	Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	NextField: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
	PrevField: key.NewBinding(key.WithKeys("shift+tab")),
	Submit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "save")),

	NextPane: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next section")),
	PrevPane: key.NewBinding(key.WithKeys("shift+tab")),
	Open:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("Enter", "open")),
	Back:     key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
	Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
	Search:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
	Quit:     key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),

	Pause:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
	Deploy:   key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "deploy")),
	Rollback: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "rollback")),
	Destroy:  key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "destroy")),
	Toggle:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "toggle review apps")),
	Expand:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "expand")),
	Create:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "create")),
}

// helpLine joins the help text of bindings for the help bar.
func helpLine(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		if h.Key == "" {
			continue
		}
		parts = append(parts, h.Key+" "+h.Desc)
	}
	return strings.Join(parts, " • ")
}
