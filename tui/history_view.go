// ABOUTME: History view for the TUI
// ABOUTME: Lists archived deck days with completion stats and the current streak
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/kith/models"
)

const historyDays = 14

type historyLoadedMsg struct {
	records []models.DeckHistoryRecord
	streak  int
}

func (m Model) loadHistory() tea.Cmd {
	return func() tea.Msg {
		return historyLoadedMsg{
			records: m.app.Archiver.History(m.ctx, m.userID, historyDays),
			streak:  m.app.Archiver.CalculateStreak(m.ctx, m.userID),
		}
	}
}

func (m Model) archive() tea.Cmd {
	return func() tea.Msg {
		m.app.ArchiveOldDecks(m.ctx, m.userID)
		return m.loadHistory()()
	}
}

func (m Model) renderHistoryView() string {
	var s strings.Builder

	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")
	s.WriteString(titleStyle.Render(fmt.Sprintf("HISTORY  streak: %d days", m.streak)))
	s.WriteString("\n")

	if len(m.history) == 0 {
		s.WriteString("No archived decks yet.\n")
	} else {
		columns := []table.Column{
			{Title: "Date", Width: 10},
			{Title: "Cards", Width: 5},
			{Title: "Done", Width: 5},
			{Title: "Skip", Width: 5},
			{Title: "Snooze", Width: 6},
			{Title: "Fresh", Width: 7},
			{Title: "Rate", Width: 5},
			{Title: "Avg", Width: 5},
		}

		rows := make([]table.Row, 0, len(m.history))
		for _, r := range m.history {
			rows = append(rows, table.Row{
				r.Date,
				fmt.Sprintf("%d", r.TotalCards),
				fmt.Sprintf("%d", r.Completed),
				fmt.Sprintf("%d", r.Skipped),
				fmt.Sprintf("%d", r.Snoozed),
				fmt.Sprintf("%d/%d", r.FreshEngaged, r.FreshShown),
				fmt.Sprintf("%d%%", r.CompletionRate),
				fmt.Sprintf("%d", r.AverageScore),
			})
		}

		t := table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithHeight(min(len(rows)+1, max(m.height-10, 3))),
		)

		s.WriteString(t.View())
		s.WriteString("\n")
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("a: Archive old decks • Tab/Esc: Deck • q: Quit"))

	return s.String()
}

func (m Model) handleHistoryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "esc":
		m.viewMode = ViewDeck
		return m, m.loadDeck()
	case "a":
		return m, m.archive()
	}
	return m, nil
}
