// Package operator is the synchronous question/answer channel between the
// pipeline and the person running it.
package operator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"
)

// Prompter asks blocking questions. An empty Ask answer is the operator's
// cancellation signal and is interpreted by the caller.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
	Ask(ctx context.Context, question string) (string, error)
}

// Terminal prompts on the controlling terminal with huh forms. Aborting a form
// (ctrl+c / esc) counts as "no" or an empty answer rather than an error.
type Terminal struct {
	// Accessible switches huh to plain line-based prompts, which behave
	// better when stdin is piped.
	Accessible bool
}

func (t Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).WithAccessible(t.Accessible).RunWithContext(ctx)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("confirm: %w", err)
	}
	return ok, nil
}

func (t Terminal) Ask(ctx context.Context, question string) (string, error) {
	var answer string
	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title(question).
			Value(&answer),
	)).WithAccessible(t.Accessible).RunWithContext(ctx)
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", nil
		}
		return "", fmt.Errorf("ask: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// ErrNoAnswer is returned by Script once its answers are used up.
var ErrNoAnswer = errors.New("no scripted answer left")

// Script replays canned answers in order. Confirm treats "y" and "yes"
// (any case) as acceptance.
type Script struct {
	mu        sync.Mutex
	answers   []string
	questions []string
}

// NewScript returns a Script that will answer with the given values in order.
func NewScript(answers ...string) *Script {
	return &Script{answers: answers}
}

func (s *Script) next(question string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = append(s.questions, question)
	if len(s.answers) == 0 {
		return "", fmt.Errorf("%w: %q", ErrNoAnswer, question)
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *Script) Confirm(_ context.Context, question string) (bool, error) {
	a, err := s.next(question)
	if err != nil {
		return false, err
	}
	a = strings.ToLower(strings.TrimSpace(a))
	return a == "y" || a == "yes", nil
}

func (s *Script) Ask(_ context.Context, question string) (string, error) {
	a, err := s.next(question)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(a), nil
}

// Questions lists every question asked so far.
func (s *Script) Questions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.questions...)
}

// Remaining reports how many answers have not been consumed.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}
