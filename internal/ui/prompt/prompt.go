// Package prompt asks the user to choose or confirm on the terminal.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
)

// ErrNotInteractive is returned when input is not a terminal.
var ErrNotInteractive = errors.New("cannot prompt without a terminal")

// Prompter asks questions.
type Prompter interface {
	// Select asks for one of options, preselecting current.
	Select(ctx context.Context, title string, options []string, current string) (string, error)
	// Confirm asks a yes/no question. The default answer is no.
	Confirm(ctx context.Context, title string) (bool, error)
}

// New returns a huh prompter when stdin is a terminal and a prompter that
// always fails otherwise.
func New() Prompter {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return Terminal{Accessible: os.Getenv("ACCESSIBLE") != ""}
	}
	return Disabled{}
}

// Terminal prompts with huh forms.
type Terminal struct {
	// Accessible switches huh to line-based prompts for screen readers.
	Accessible bool
}

// Options builds select options, labelling the current choice.
func Options(values []string, current string) []huh.Option[string] {
	opts := make([]huh.Option[string], len(values))
	for i, v := range values {
		label := v
		if v == current {
			label += " (current)"
		}
		opts[i] = huh.NewOption(label, v).Selected(v == current)
	}
	return opts
}

// Select implements Prompter.
func (t Terminal) Select(ctx context.Context, title string, options []string, current string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("nothing to choose from for %q", title)
	}
	choice := current
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(Options(options, current)...).
				Value(&choice),
		),
	).WithAccessible(t.Accessible).RunWithContext(ctx)
	if err != nil {
		return "", err
	}
	return choice, nil
}

// Confirm implements Prompter.
func (t Terminal) Confirm(ctx context.Context, title string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithAccessible(t.Accessible).RunWithContext(ctx)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Disabled refuses to prompt.
type Disabled struct{}

// Select implements Prompter.
func (Disabled) Select(_ context.Context, title string, _ []string, _ string) (string, error) {
	return "", fmt.Errorf("%s: %w; pass the value as an argument", title, ErrNotInteractive)
}

// Confirm implements Prompter.
func (Disabled) Confirm(_ context.Context, title string) (bool, error) {
	return false, fmt.Errorf("%s: %w; pass --yes to confirm", title, ErrNotInteractive)
}

// Static answers from fixed values. Handler tests use it in place of a terminal.
type Static struct {
	Choice string
	Yes    bool
}

// Select implements Prompter.
func (s Static) Select(_ context.Context, _ string, options []string, _ string) (string, error) {
	for _, o := range options {
		if o == s.Choice {
			return o, nil
		}
	}
	return "", fmt.Errorf("%q is not one of %v", s.Choice, options)
}

// Confirm implements Prompter.
func (s Static) Confirm(context.Context, string) (bool, error) {
	return s.Yes, nil
}
