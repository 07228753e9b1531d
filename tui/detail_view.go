// ABOUTME: Contact detail view for the TUI
// ABOUTME: Shows the selected card's score breakdown and records outcome notes
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/kith/models"
)

var (
	fieldLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Width(20)

	fieldValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

var sentimentCycle = []string{models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative}

type scoreLoadedMsg struct {
	score models.ScoreRecord
	err   error
}

type outcomeSavedMsg struct {
	sentiment string
	err       error
}

func (m Model) loadScore() tea.Cmd {
	card := m.selectedCard()
	if card == nil {
		return nil
	}
	contactID := card.ContactID
	return func() tea.Msg {
		rec, err := m.app.Score(m.ctx, m.userID, contactID)
		return scoreLoadedMsg{score: rec, err: err}
	}
}

func (m Model) saveOutcome() tea.Cmd {
	card := m.selectedCard()
	if card == nil {
		return nil
	}
	note := &models.OutcomeNote{
		UserID:    m.userID,
		ContactID: card.ContactID,
		Sentiment: m.sentiment,
		Note:      strings.TrimSpace(m.noteInput.Value()),
	}
	return func() tea.Msg {
		err := m.app.RecordOutcome(m.ctx, note)
		return outcomeSavedMsg{sentiment: note.Sentiment, err: err}
	}
}

func (m Model) renderDetailView() string {
	var s strings.Builder

	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	card := m.selectedCard()
	if card == nil {
		s.WriteString("No card selected.\n")
		s.WriteString(helpStyle.Render("Esc: Back • q: Quit"))
		return s.String()
	}

	name := card.ContactID
	if card.Contact != nil {
		name = card.Contact.Name
	}
	s.WriteString(titleStyle.Render(strings.ToUpper(name)))
	s.WriteString("\n")

	s.WriteString(m.renderField("Status", card.Status))
	s.WriteString(m.renderField("Channel", string(card.Channel)))
	s.WriteString(m.renderField("Why", card.Reason))
	if c := card.Contact; c != nil {
		if len(c.Tags) > 0 {
			s.WriteString(m.renderField("Tags", strings.Join(c.Tags, ", ")))
		}
		if c.CadenceDays != nil {
			s.WriteString(m.renderField("Cadence", fmt.Sprintf("every %d days", *c.CadenceDays)))
		}
	}

	s.WriteString("\n")
	s.WriteString(m.renderScore())

	s.WriteString("\n")
	s.WriteString(fieldLabelStyle.Render("Outcome:"))
	s.WriteString(fieldValueStyle.Render(m.sentiment))
	s.WriteString("\n")
	s.WriteString(m.noteInput.View())
	s.WriteString("\n")

	if status := m.renderStatus(); status != "" {
		s.WriteString("\n")
		s.WriteString(status)
	}

	s.WriteString("\n")
	if m.editingNote {
		s.WriteString(helpStyle.Render("Tab: Sentiment • Enter: Save • Esc: Cancel"))
	} else {
		s.WriteString(helpStyle.Render("n: Note outcome • d: Done • s: Skip • z: Snooze • Esc: Back • q: Quit"))
	}

	return s.String()
}

func (m Model) renderScore() string {
	if m.score == nil {
		return "Loading score...\n"
	}

	var s strings.Builder
	s.WriteString(m.renderField("Score", fmt.Sprintf("%.1f (%s)", m.score.Total, m.score.Model)))

	if rhs := m.score.RHS; rhs != nil {
		s.WriteString(m.renderField("Recency", fmt.Sprintf("%.1f", rhs.Recency)))
		s.WriteString(m.renderField("Cadence", fmt.Sprintf("%.1f", rhs.CadenceAdherence)))
		s.WriteString(m.renderField("Quality", fmt.Sprintf("%.1f", rhs.Quality)))
		s.WriteString(m.renderField("Depth", fmt.Sprintf("%.1f", rhs.Depth)))
		if rhs.DaysSinceTouch != nil {
			s.WriteString(m.renderField("Last touch", fmt.Sprintf("%d days ago", *rhs.DaysSinceTouch)))
		}
		if rhs.IsOverdueByCadence {
			s.WriteString(m.renderField("Overdue", "yes"))
		}
	}
	if cs := m.score.Contact; cs != nil {
		s.WriteString(m.renderField("Peak", fmt.Sprintf("%.1f", cs.PeakScore)))
		s.WriteString(m.renderField("Decay", fmt.Sprintf("×%.2f", cs.DecayMultiplier)))
		if cs.FatiguePenalty > 0 {
			s.WriteString(m.renderField("Fatigue", fmt.Sprintf("-%.1f", cs.FatiguePenalty)))
		}
		if cs.DaysSinceLast != nil {
			s.WriteString(m.renderField("Last touch", fmt.Sprintf("%d days ago", *cs.DaysSinceLast)))
		}
	}
	return s.String()
}

func (m Model) renderField(label, value string) string {
	if value == "" {
		value = "-"
	}
	return fieldLabelStyle.Render(label+":") + fieldValueStyle.Render(value) + "\n"
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace":
		m.viewMode = ViewDeck
		m.message = ""
		return m, nil
	case "n":
		m.editingNote = true
		m.message = ""
		return m, m.noteInput.Focus()
	case "d":
		return m, m.setCardStatus(models.CardStatusCompleted)
	case "s":
		return m, m.setCardStatus(models.CardStatusSkipped)
	case "z":
		return m, m.setCardStatus(models.CardStatusSnoozed)
	}
	return m, nil
}

func (m Model) handleNoteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.editingNote = false
		m.noteInput.Blur()
		m.noteInput.Reset()
		return m, nil
	case "tab":
		m.sentiment = nextSentiment(m.sentiment)
		return m, nil
	case "enter":
		m.editingNote = false
		m.noteInput.Blur()
		return m, m.saveOutcome()
	}

	var cmd tea.Cmd
	m.noteInput, cmd = m.noteInput.Update(msg)
	return m, cmd
}

func nextSentiment(current string) string {
	for i, s := range sentimentCycle {
		if s == current {
			return sentimentCycle[(i+1)%len(sentimentCycle)]
		}
	}
	return sentimentCycle[0]
}
