package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

var (
	errAborted        = errors.New("aborted")
	errNotInteractive = errors.New("not an interactive terminal")
)

type prompter interface {
	confirm(prompt string) (bool, error)
	required(prompt string) (string, error)
	optionalSecret(prompt string) (string, error)
}

// newPrompter returns the prompter used by commands. Tests replace it.
var newPrompter = func(stdin io.Reader, stdout io.Writer) prompter {
	return &huhPrompter{stdin: stdin, stdout: stdout}
}

type huhPrompter struct {
	stdin  io.Reader
	stdout io.Writer
}

func (h *huhPrompter) interactive() bool {
	f, ok := h.stdin.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (h *huhPrompter) runField(field huh.Field) error {
	if !h.interactive() {
		return errNotInteractive
	}
	form := huh.NewForm(huh.NewGroup(field)).
		WithShowHelp(false).
		WithInput(h.stdin).
		WithOutput(h.stdout)
	err := form.Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return errAborted
	}
	return err
}

func (h *huhPrompter) confirm(prompt string) (bool, error) {
	var value bool
	field := huh.NewConfirm().
		Title(prompt).
		Affirmative("Yes").
		Negative("No").
		Value(&value)
	if err := h.runField(field); err != nil {
		return false, err
	}
	return value, nil
}

func (h *huhPrompter) required(prompt string) (string, error) {
	var value string
	field := huh.NewInput().
		Title(prompt).
		Prompt("> ").
		Value(&value).
		Validate(func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("input required")
			}
			return nil
		})
	if err := h.runField(field); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func (h *huhPrompter) optionalSecret(prompt string) (string, error) {
	var value string
	field := huh.NewInput().
		Title(prompt).
		Prompt("> ").
		Value(&value).
		EchoMode(huh.EchoModePassword)
	if err := h.runField(field); err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// confirmAction asks before a destructive command unless --yes was given.
func confirmAction(stdin io.Reader, stdout io.Writer, format string, args ...any) error {
	if flagYes {
		return nil
	}
	ok, err := newPrompter(stdin, stdout).confirm(fmt.Sprintf(format, args...))
	if errors.Is(err, errNotInteractive) {
		return fmt.Errorf("refusing to continue without confirmation, pass --yes to skip the prompt")
	}
	if err != nil {
		return err
	}
	if !ok {
		return errAborted
	}
	return nil
}
