// ABOUTME: Deck view and card actions for the TUI
// ABOUTME: Renders today's cards in a table and changes card status from the keyboard
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/kith/models"
)

type deckLoadedMsg struct {
	date  string
	cards []models.DeckCard
	err   error
}

type cardUpdatedMsg struct {
	card *models.DeckCard
	err  error
}

func (m Model) loadDeck() tea.Cmd {
	return func() tea.Msg {
		cards, err := m.app.Builder.TodayDeck(m.ctx, m.userID)
		return deckLoadedMsg{date: m.app.Builder.Today(), cards: cards, err: err}
	}
}

func (m Model) buildDeck() tea.Cmd {
	return func() tea.Msg {
		cards, err := m.app.BuildDeck(m.ctx, m.userID, 0)
		return deckLoadedMsg{date: m.app.Builder.Today(), cards: cards, err: err}
	}
}

func (m Model) setCardStatus(status string) tea.Cmd {
	card := m.selectedCard()
	if card == nil {
		return nil
	}
	cardID := card.ID
	return func() tea.Msg {
		updated, err := m.app.Builder.UpdateCardStatus(m.ctx, m.userID, cardID, status)
		return cardUpdatedMsg{card: updated, err: err}
	}
}

func (m Model) renderDeckView() string {
	var s strings.Builder

	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")
	s.WriteString(titleStyle.Render(fmt.Sprintf("TODAY'S DECK  %s", m.date)))
	s.WriteString("\n")

	if len(m.cards) == 0 {
		s.WriteString("No deck yet today. Press b to build one.\n")
	} else {
		columns := []table.Column{
			{Title: "#", Width: 3},
			{Title: "Contact", Width: 22},
			{Title: "Status", Width: 10},
			{Title: "Channel", Width: 8},
			{Title: "Score", Width: 6},
			{Title: "Why", Width: 36},
		}

		rows := make([]table.Row, 0, len(m.cards))
		for _, c := range m.cards {
			name := c.ContactID
			if c.Contact != nil {
				name = c.Contact.Name
			}
			if c.IsFresh {
				name = "★ " + name
			}
			rows = append(rows, table.Row{
				fmt.Sprintf("%d", c.Position+1),
				name,
				c.Status,
				string(c.Channel),
				fmt.Sprintf("%.0f", c.Score),
				c.Reason,
			})
		}

		t := table.New(
			table.WithColumns(columns),
			table.WithRows(rows),
			table.WithFocused(true),
			table.WithHeight(min(len(rows)+1, max(m.height-10, 3))),
		)
		t.SetCursor(m.selectedRow)

		s.WriteString(t.View())
		s.WriteString("\n")
	}

	if status := m.renderStatus(); status != "" {
		s.WriteString("\n")
		s.WriteString(status)
	}

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("↑/↓: Navigate • Enter: Contact • o: Open • d: Done • s: Skip • z: Snooze • b: Build • r: Refresh • Tab: History • q: Quit"))

	return s.String()
}

func (m Model) handleDeckKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < len(m.cards)-1 {
			m.selectedRow++
		}
	case "enter":
		if m.selectedCard() == nil {
			return m, nil
		}
		m.viewMode = ViewDetail
		m.score = nil
		m.message = ""
		return m, m.loadScore()
	case "o":
		return m, m.setCardStatus(models.CardStatusActive)
	case "d":
		return m, m.setCardStatus(models.CardStatusCompleted)
	case "s":
		return m, m.setCardStatus(models.CardStatusSkipped)
	case "z":
		return m, m.setCardStatus(models.CardStatusSnoozed)
	case "b":
		m.message = "Building deck..."
		return m, m.buildDeck()
	case "r":
		m.message = ""
		return m, m.loadDeck()
	case "tab", "h":
		m.viewMode = ViewHistory
		m.message = ""
		return m, m.loadHistory()
	}
	return m, nil
}

func cardLabel(cards []models.DeckCard, card *models.DeckCard) string {
	if card.Contact != nil {
		return card.Contact.Name
	}
	for _, c := range cards {
		if c.ID == card.ID && c.Contact != nil {
			return c.Contact.Name
		}
	}
	return card.ContactID
}
