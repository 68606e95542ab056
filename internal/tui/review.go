// Package tui provides the interactive batch review screen shown before an
// import writes to the ledger.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/drug-deposit/internal/model"
	"github.com/Veraticus/drug-deposit/internal/tui/themes"
)

// Decision is the outcome of a review session.
type Decision int

// Review outcomes.
const (
	DecisionPending Decision = iota
	DecisionApproved
	DecisionDeclined
)

const minTableHeight = 3

// reviewModel is the bubbletea model for one batch.
type reviewModel struct {
	rows     []model.CandidateRecord
	keys     KeyMap
	help     help.Model
	theme    themes.Theme
	table    table.Model
	width    int
	height   int
	decision Decision
}

func newReviewModel(rows []model.CandidateRecord, theme themes.Theme) reviewModel {
	t := table.New(
		table.WithColumns(reviewColumns()),
		table.WithRows(tableRows(rows)),
		table.WithFocused(true),
		table.WithHeight(min(len(rows), 15)+1),
	)

	s := table.DefaultStyles()
	s.Header = theme.Header
	s.Selected = theme.Selected
	t.SetStyles(s)

	return reviewModel{
		rows:   rows,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		theme:  theme,
		table:  t,
		width:  100,
		height: 24,
	}
}

func reviewColumns() []table.Column {
	return []table.Column{
		{Title: "#", Width: 4},
		{Title: "Drug", Width: 22},
		{Title: "Dose", Width: 10},
		{Title: "Type", Width: 10},
		{Title: "Pieces", Width: 7},
		{Title: "Lot", Width: 10},
		{Title: "Dest/Origin", Width: 18},
		{Title: "Date", Width: 10},
	}
}

func tableRows(rows []model.CandidateRecord) []table.Row {
	out := make([]table.Row, 0, len(rows))
	for i, r := range rows {
		r = r.Normalized()
		out = append(out, table.Row{
			strconv.Itoa(i + 1),
			r.Name,
			strings.TrimSpace(r.Dose + " " + r.Units),
			r.MovementType,
			r.PiecesMoved,
			r.Lote,
			r.DestinationOrigin,
			r.DateMovement,
		})
	}
	return out
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Approve):
			m.decision = DecisionApproved
			return m, tea.Quit
		case key.Matches(msg, m.keys.Decline), key.Matches(msg, m.keys.Quit):
			m.decision = DecisionDeclined
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetHeight(max(minTableHeight, min(len(m.rows)+1, msg.Height-8)))
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m reviewModel) View() string {
	if m.decision != DecisionPending {
		return ""
	}

	title := m.theme.Title.Render(fmt.Sprintf("💊 Movements to import: %d", len(m.rows)))
	prompt := lipgloss.JoinHorizontal(lipgloss.Left,
		"Import these movements? ",
		m.theme.Approve.Render("[y]es"),
		" / ",
		m.theme.Decline.Render("[n]o"),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		m.theme.Box.Render(m.table.View()),
		m.detail(),
		"",
		prompt,
		m.theme.Subtitle.Render(m.help.View(m.keys)),
	)
}

// detail shows the signature of the highlighted row, which does not fit the table.
func (m reviewModel) detail() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return ""
	}
	r := m.rows[i].Normalized()
	var parts []string
	if r.Signature != "" {
		parts = append(parts, "Signed by "+r.Signature)
	}
	if r.Expiration != "" {
		parts = append(parts, "Expires "+r.Expiration)
	}
	if r.PiecesPerBox != "" {
		parts = append(parts, r.PiecesPerBox+" per box")
	}
	return m.theme.Subtitle.Render(strings.Join(parts, " · "))
}
