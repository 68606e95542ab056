package tui

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/drug-deposit/internal/model"
	"github.com/Veraticus/drug-deposit/internal/tui/themes"
)

func sampleRows() []model.CandidateRecord {
	return []model.CandidateRecord{
		{Name: "Paracetamol", Dose: "500", Units: "mg", MovementType: "entry", PiecesMoved: "50", Lote: "L1", Signature: "Ana"},
		{Name: "Ibuprofen", Dose: "400", MovementType: "exit", PiecesMoved: "5", DestinationOrigin: "Ward 3", PiecesPerBox: "20"},
	}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestReviewModel_Keys(t *testing.T) {
	tests := []struct {
		name     string
		msg      tea.KeyMsg
		decision Decision
		quits    bool
	}{
		{"approve", runeKey('y'), DecisionApproved, true},
		{"decline", runeKey('n'), DecisionDeclined, true},
		{"escape declines", tea.KeyMsg{Type: tea.KeyEsc}, DecisionDeclined, true},
		{"ctrl+c declines", tea.KeyMsg{Type: tea.KeyCtrlC}, DecisionDeclined, true},
		{"navigation keeps reviewing", tea.KeyMsg{Type: tea.KeyDown}, DecisionPending, false},
		{"help keeps reviewing", runeKey('?'), DecisionPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newReviewModel(sampleRows(), themes.Default)

			updated, cmd := m.Update(tt.msg)
			got, ok := updated.(reviewModel)
			require.True(t, ok)

			assert.Equal(t, tt.decision, got.decision)
			if tt.quits {
				require.NotNil(t, cmd)
				assert.IsType(t, tea.QuitMsg{}, cmd())
			}
		})
	}
}

func TestReviewModel_Navigation(t *testing.T) {
	m := newReviewModel(sampleRows(), themes.Default)
	assert.Equal(t, 0, m.table.Cursor())
	assert.Contains(t, m.detail(), "Signed by Ana")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = updated.(reviewModel)
	assert.Equal(t, 1, m.table.Cursor())
	assert.Contains(t, m.detail(), "20 per box")
}

func TestReviewModel_View(t *testing.T) {
	m := newReviewModel(sampleRows(), themes.Default)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	view := updated.(reviewModel).View()

	assert.Contains(t, view, "Movements to import: 2")
	assert.Contains(t, view, "Paracetamol")
	assert.Contains(t, view, "500 mg")
	assert.Contains(t, view, "Ward 3")
	assert.Contains(t, view, "Import these movements?")

	updated, _ = updated.Update(runeKey('y'))
	assert.Empty(t, updated.View())
}

func TestReviewModel_ToggleHelp(t *testing.T) {
	m := newReviewModel(sampleRows(), themes.Default)
	assert.False(t, m.help.ShowAll)

	updated, _ := m.Update(runeKey('?'))
	assert.True(t, updated.(reviewModel).help.ShowAll)
}

func TestTableRows(t *testing.T) {
	rows := tableRows(sampleRows())
	require.Len(t, rows, 2)
	assert.Equal(t, "1", rows[0][0])
	assert.Equal(t, "500 mg", rows[0][2])
	assert.Equal(t, "400", rows[1][2])
	assert.Len(t, rows[0], len(reviewColumns()))
}

func newTestReviewer(input io.Reader) *Reviewer {
	return NewReviewer(WithProgramOptions(
		tea.WithInput(input),
		tea.WithOutput(&bytes.Buffer{}),
		tea.WithoutSignalHandler(),
	))
}

func TestReviewer_Review(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"approved", "y", true},
		{"declined", "n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestReviewer(strings.NewReader(tt.input))

			got, err := r.Review(context.Background(), sampleRows())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReviewer_EmptyBatch(t *testing.T) {
	got, err := newTestReviewer(strings.NewReader("y")).Review(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestReviewer_ContextCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	got, err := newTestReviewer(pr).Review(ctx, sampleRows())
	assert.False(t, got)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThemesByName(t *testing.T) {
	assert.Equal(t, themes.CatppuccinMocha.Primary, themes.ByName("catppuccin").Primary)
	assert.Equal(t, themes.Default.Primary, themes.ByName("unknown").Primary)
}
