package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/drug-deposit/internal/importer"
	"github.com/Veraticus/drug-deposit/internal/model"
	"github.com/Veraticus/drug-deposit/internal/tui/themes"
)

var _ importer.Reviewer = (*Reviewer)(nil)

// Option configures a Reviewer.
type Option func(*Reviewer)

// WithTheme sets the color theme.
func WithTheme(theme themes.Theme) Option {
	return func(r *Reviewer) {
		r.theme = theme
	}
}

// WithProgramOptions passes options through to the bubbletea program.
func WithProgramOptions(opts ...tea.ProgramOption) Option {
	return func(r *Reviewer) {
		r.programOpts = append(r.programOpts, opts...)
	}
}

// Reviewer implements importer.Reviewer with a full-screen table.
type Reviewer struct {
	theme       themes.Theme
	programOpts []tea.ProgramOption
}

// NewReviewer creates a reviewer. Without options it takes over the terminal
// using the alternate screen.
func NewReviewer(opts ...Option) *Reviewer {
	r := &Reviewer{theme: themes.Default}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.programOpts) == 0 {
		r.programOpts = []tea.ProgramOption{tea.WithAltScreen()}
	}
	return r
}

// Review runs the review screen until the operator approves or declines.
func (r *Reviewer) Review(ctx context.Context, rows []model.CandidateRecord) (bool, error) {
	if len(rows) == 0 {
		return false, nil
	}

	opts := append([]tea.ProgramOption{tea.WithContext(ctx)}, r.programOpts...)
	p := tea.NewProgram(newReviewModel(rows, r.theme), opts...)

	final, err := p.Run()
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return false, fmt.Errorf("failed to run review screen: %w", err)
	}

	m, ok := final.(reviewModel)
	if !ok {
		return false, fmt.Errorf("unexpected review model %T", final)
	}
	return m.decision == DecisionApproved, nil
}
