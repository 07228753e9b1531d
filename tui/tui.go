// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Full-screen deck viewer for working through today's cards
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/models"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewDeck ViewMode = iota
	ViewDetail
	ViewHistory
)

// Model is the main bubbletea model
type Model struct {
	ctx      context.Context
	app      *app.App
	userID   string
	viewMode ViewMode

	// Deck view state
	date        string
	cards       []models.DeckCard
	selectedRow int

	// Detail view state
	score       *models.ScoreRecord
	noteInput   textinput.Model
	editingNote bool
	sentiment   string

	// History view state
	history []models.DeckHistoryRecord
	streak  int

	// UI state
	message string
	width   int
	height  int
	err     error
}

// NewModel creates a new TUI model for the configured user
func NewModel(ctx context.Context, a *app.App) Model {
	note := textinput.New()
	note.Placeholder = "How did it go?"
	note.CharLimit = 280
	note.Width = 50

	return Model{
		ctx:       ctx,
		app:       a,
		userID:    a.Config.User.ID,
		viewMode:  ViewDeck,
		noteInput: note,
		sentiment: models.SentimentPositive,
		width:     80,
		height:    24,
	}
}

// Run starts the full-screen deck viewer and blocks until the user quits.
func Run(ctx context.Context, a *app.App) error {
	_, err := tea.NewProgram(NewModel(ctx, a), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.loadDeck()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case deckLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.cards = msg.cards
			m.date = msg.date
			m.message = ""
			if m.selectedRow >= len(m.cards) {
				m.selectedRow = max(len(m.cards)-1, 0)
			}
		}
		return m, nil
	case cardUpdatedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.message = cardLabel(m.cards, msg.card) + " → " + msg.card.Status
		for i := range m.cards {
			if m.cards[i].ID == msg.card.ID {
				contact := m.cards[i].Contact
				m.cards[i] = *msg.card
				if m.cards[i].Contact == nil {
					m.cards[i].Contact = contact
				}
			}
		}
		return m, nil
	case scoreLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.score = &msg.score
		}
		return m, nil
	case outcomeSavedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.message = "Saved " + msg.sentiment + " outcome"
			m.noteInput.Reset()
			return m, m.loadScore()
		}
		return m, nil
	case historyLoadedMsg:
		m.history = msg.records
		m.streak = msg.streak
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewDeck:
		return m.renderDeckView()
	case ViewDetail:
		return m.renderDetailView()
	case ViewHistory:
		return m.renderHistoryView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editingNote {
		return m.handleNoteKeys(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	switch m.viewMode {
	case ViewDeck:
		return m.handleDeckKeys(msg)
	case ViewDetail:
		return m.handleDetailKeys(msg)
	case ViewHistory:
		return m.handleHistoryKeys(msg)
	}

	return m, nil
}

func (m Model) selectedCard() *models.DeckCard {
	if m.selectedRow < 0 || m.selectedRow >= len(m.cards) {
		return nil
	}
	return &m.cards[m.selectedRow]
}

func (m Model) renderTabs() string {
	tabs := []struct {
		label string
		mode  ViewMode
	}{
		{"Deck", ViewDeck},
		{"Contact", ViewDetail},
		{"History", ViewHistory},
	}
	var rendered []string
	for _, t := range tabs {
		if t.mode == m.viewMode {
			rendered = append(rendered, tabActiveStyle.Render(t.label))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(t.label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderStatus() string {
	if m.err != nil {
		return errorStyle.Render("Error: " + m.err.Error())
	}
	if m.message != "" {
		return messageStyle.Render(m.message)
	}
	return ""
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)
