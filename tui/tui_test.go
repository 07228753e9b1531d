// ABOUTME: Tests for the deck viewer TUI
// ABOUTME: Drives the bubbletea model with key and load messages over an in-memory app
package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/config"
	"github.com/harperreed/kith/models"
)

func setupTestModel(t *testing.T, names ...string) Model {
	t.Helper()
	cfg := config.Default()
	cfg.User.ID = "u1"
	cfg.Deck.Timezone = "UTC"

	a, err := app.OpenInMemory(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	for _, name := range names {
		require.NoError(t, a.AddContact(context.Background(), &models.Contact{UserID: "u1", Name: name}))
	}
	return NewModel(context.Background(), a)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs any resulting command through Update once.
func press(t *testing.T, m Model, s string) Model {
	t.Helper()
	next, cmd := m.Update(key(s))
	m = next.(Model)
	if cmd != nil {
		if msg := cmd(); msg != nil {
			next, _ = m.Update(msg)
			m = next.(Model)
		}
	}
	return m
}

func TestEmptyDeckView(t *testing.T) {
	m := setupTestModel(t)
	next, _ := m.Update(m.Init()())
	m = next.(Model)

	assert.Empty(t, m.cards)
	assert.Contains(t, m.View(), "Press b to build")
}

func TestBuildAndNavigate(t *testing.T) {
	m := setupTestModel(t, "Ada", "Bea", "Cy")
	m = press(t, m, "b")
	require.NoError(t, m.err)
	require.Len(t, m.cards, 3)
	assert.Contains(t, m.View(), "TODAY'S DECK")

	m = press(t, m, "j")
	m = press(t, m, "j")
	m = press(t, m, "j")
	assert.Equal(t, 2, m.selectedRow)

	m = press(t, m, "k")
	assert.Equal(t, 1, m.selectedRow)
}

func TestCardStatusKeys(t *testing.T) {
	m := setupTestModel(t, "Ada", "Bea")
	m = press(t, m, "b")
	require.Len(t, m.cards, 2)

	m = press(t, m, "o")
	require.NoError(t, m.err)
	assert.Equal(t, models.CardStatusActive, m.cards[0].Status)

	m = press(t, m, "d")
	require.NoError(t, m.err)
	assert.Equal(t, models.CardStatusCompleted, m.cards[0].Status)
	assert.NotNil(t, m.cards[0].Contact)
	assert.Contains(t, m.message, "completed")

	// completed cards are terminal
	m = press(t, m, "s")
	assert.ErrorIs(t, m.err, models.ErrInvalidTransition)
	assert.Contains(t, m.View(), "Error:")
}

func TestDetailViewRecordsOutcome(t *testing.T) {
	m := setupTestModel(t, "Ada")
	m = press(t, m, "b")
	require.Len(t, m.cards, 1)

	m = press(t, m, "enter")
	assert.Equal(t, ViewDetail, m.viewMode)
	require.NotNil(t, m.score)
	assert.Contains(t, m.View(), "ADA")

	next, _ := m.Update(key("n"))
	m = next.(Model)
	assert.True(t, m.editingNote)

	m = press(t, m, "tab")
	assert.Equal(t, models.SentimentNeutral, m.sentiment)

	for _, r := range "fine" {
		next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	assert.Equal(t, "fine", m.noteInput.Value())

	m = press(t, m, "enter")
	require.NoError(t, m.err)
	assert.False(t, m.editingNote)
	assert.Equal(t, "Saved neutral outcome", m.message)

	counts, err := m.app.Outcomes.CountsByContact(context.Background(), "u1", m.cards[0].ContactID)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Neutral)

	m = press(t, m, "esc")
	assert.Equal(t, ViewDeck, m.viewMode)
}

func TestHistoryView(t *testing.T) {
	m := setupTestModel(t)
	m = press(t, m, "tab")
	assert.Equal(t, ViewHistory, m.viewMode)
	assert.Equal(t, 0, m.streak)
	assert.Contains(t, m.View(), "No archived decks yet")

	m = press(t, m, "a")
	assert.Empty(t, m.history)

	m = press(t, m, "esc")
	assert.Equal(t, ViewDeck, m.viewMode)
}

func TestQuit(t *testing.T) {
	m := setupTestModel(t)
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestNextSentiment(t *testing.T) {
	assert.Equal(t, models.SentimentNeutral, nextSentiment(models.SentimentPositive))
	assert.Equal(t, models.SentimentPositive, nextSentiment(models.SentimentNegative))
	assert.Equal(t, models.SentimentPositive, nextSentiment("bogus"))
}
