// ABOUTME: Daily deck MCP tool handlers
// ABOUTME: Implements build_deck, daily_quota_status, update_card_status, archive_old_decks, get_deck_history and get_streak
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/kith/app"
	"github.com/harperreed/kith/deck"
	"github.com/harperreed/kith/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type DeckHandlers struct {
	app *app.App
}

func NewDeckHandlers(a *app.App) *DeckHandlers {
	return &DeckHandlers{app: a}
}

type CardOutput struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Position    int     `json:"position"`
	ContactID   string  `json:"contact_id"`
	ContactName string  `json:"contact_name,omitempty"`
	Status      string  `json:"status"`
	Channel     string  `json:"channel,omitempty"`
	Reason      string  `json:"reason,omitempty"`
	Score       float64 `json:"score"`
	IsFresh     bool    `json:"is_fresh"`
	OpenedAt    *string `json:"opened_at,omitempty"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

type BuildDeckInput struct {
	UserID   string `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
	MaxCards int    `json:"max_cards,omitempty" jsonschema:"Deck size; defaults to the user's tier quota"`
}

type DeckOutput struct {
	Date  string       `json:"date"`
	Cards []CardOutput `json:"cards"`
}

func (h *DeckHandlers) BuildDeck(ctx context.Context, request *mcp.CallToolRequest, input BuildDeckInput) (*mcp.CallToolResult, DeckOutput, error) {
	if input.MaxCards < 0 {
		return nil, DeckOutput{}, fmt.Errorf("max_cards must not be negative")
	}

	cards, err := h.app.BuildDeck(ctx, userOrDefault(h.app, input.UserID), input.MaxCards)
	if err != nil {
		return nil, DeckOutput{}, fmt.Errorf("failed to build deck: %w", err)
	}
	return nil, deckToOutput(h.app.Builder.Today(), cards), nil
}

type QuotaStatusInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
}

type QuotaStatusOutput struct {
	Date      string `json:"date"`
	Exhausted bool   `json:"exhausted"`
	Quota     int    `json:"quota"`
	IsPremium bool   `json:"is_premium"`
}

func (h *DeckHandlers) DailyQuotaStatus(ctx context.Context, request *mcp.CallToolRequest, input QuotaStatusInput) (*mcp.CallToolResult, QuotaStatusOutput, error) {
	userID := userOrDefault(h.app, input.UserID)
	premium := h.app.IsPremium(ctx, userID)
	return nil, QuotaStatusOutput{
		Date:      h.app.Builder.Today(),
		Exhausted: h.app.Builder.IsDailyQuotaExhausted(ctx, userID),
		Quota:     h.app.Builder.Quota(premium),
		IsPremium: premium,
	}, nil
}

type UpdateCardStatusInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
	CardID string `json:"card_id" jsonschema:"Card ID (required)"`
	Status string `json:"status" jsonschema:"active, completed, skipped or snoozed"`
}

func (h *DeckHandlers) UpdateCardStatus(ctx context.Context, request *mcp.CallToolRequest, input UpdateCardStatusInput) (*mcp.CallToolResult, CardOutput, error) {
	if input.CardID == "" {
		return nil, CardOutput{}, fmt.Errorf("card_id is required")
	}
	if input.Status == "" {
		return nil, CardOutput{}, fmt.Errorf("status is required")
	}

	card, err := h.app.Builder.UpdateCardStatus(ctx, userOrDefault(h.app, input.UserID), input.CardID, input.Status)
	if err != nil {
		return nil, CardOutput{}, fmt.Errorf("failed to update card: %w", err)
	}
	return nil, cardToOutput(card), nil
}

type ArchiveOldDecksInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
}

func (h *DeckHandlers) ArchiveOldDecks(ctx context.Context, request *mcp.CallToolRequest, input ArchiveOldDecksInput) (*mcp.CallToolResult, deck.ArchiveSummary, error) {
	return nil, h.app.ArchiveOldDecks(ctx, userOrDefault(h.app, input.UserID)), nil
}

type DeckHistoryInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of days (default 30)"`
	From   string `json:"from,omitempty" jsonschema:"First date, YYYY-MM-DD; with to, returns a range instead"`
	To     string `json:"to,omitempty" jsonschema:"Last date, YYYY-MM-DD"`
}

type HistoryRecordOutput struct {
	Date             string         `json:"date"`
	IsPremium        bool           `json:"is_premium"`
	TotalCards       int            `json:"total_cards"`
	Completed        int            `json:"completed"`
	Skipped          int            `json:"skipped"`
	Snoozed          int            `json:"snoozed"`
	Pending          int            `json:"pending"`
	Active           int            `json:"active"`
	ChannelCounts    map[string]int `json:"channel_counts,omitempty"`
	FreshShown       int            `json:"fresh_shown"`
	FreshEngaged     int            `json:"fresh_engaged"`
	PositiveOutcomes int            `json:"positive_outcomes"`
	NeutralOutcomes  int            `json:"neutral_outcomes"`
	NegativeOutcomes int            `json:"negative_outcomes"`
	CompletionRate   int            `json:"completion_rate"`
	AverageScore     int            `json:"average_score"`
	FirstOpenedAt    string         `json:"first_opened_at,omitempty"`
	LastCompletedAt  string         `json:"last_completed_at,omitempty"`
}

type DeckHistoryOutput struct {
	Records []HistoryRecordOutput `json:"records"`
}

func (h *DeckHandlers) GetDeckHistory(ctx context.Context, request *mcp.CallToolRequest, input DeckHistoryInput) (*mcp.CallToolResult, DeckHistoryOutput, error) {
	userID := userOrDefault(h.app, input.UserID)

	if input.From != "" || input.To != "" {
		if input.From == "" || input.To == "" {
			return nil, DeckHistoryOutput{}, fmt.Errorf("from and to must be given together")
		}
		from, err := time.Parse(time.DateOnly, input.From)
		if err != nil {
			return nil, DeckHistoryOutput{}, fmt.Errorf("invalid from date: %w", err)
		}
		to, err := time.Parse(time.DateOnly, input.To)
		if err != nil {
			return nil, DeckHistoryOutput{}, fmt.Errorf("invalid to date: %w", err)
		}
		return nil, historyToOutput(h.app.Archiver.HistoryRange(ctx, userID, from, to)), nil
	}

	return nil, historyToOutput(h.app.Archiver.History(ctx, userID, input.Limit)), nil
}

type StreakInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"Owning user (defaults to the configured user)"`
	Days   int    `json:"days,omitempty" jsonschema:"Window for the rate aggregates (default 30)"`
}

type StreakOutput struct {
	Streak              int     `json:"streak"`
	CompletionRate      float64 `json:"completion_rate"`
	FreshConversionRate float64 `json:"fresh_conversion_rate"`
	WindowDays          int     `json:"window_days"`
}

func (h *DeckHandlers) GetStreak(ctx context.Context, request *mcp.CallToolRequest, input StreakInput) (*mcp.CallToolResult, StreakOutput, error) {
	userID := userOrDefault(h.app, input.UserID)
	days := input.Days
	if days <= 0 {
		days = 30
	}
	return nil, StreakOutput{
		Streak:              h.app.Archiver.CalculateStreak(ctx, userID),
		CompletionRate:      h.app.Archiver.CompletionRate(ctx, userID, days),
		FreshConversionRate: h.app.Archiver.FreshConversionRate(ctx, userID, days),
		WindowDays:          days,
	}, nil
}

func deckToOutput(date string, cards []models.DeckCard) DeckOutput {
	output := DeckOutput{Date: date, Cards: make([]CardOutput, len(cards))}
	for i := range cards {
		output.Cards[i] = cardToOutput(&cards[i])
	}
	return output
}

func cardToOutput(card *models.DeckCard) CardOutput {
	output := CardOutput{
		ID:        card.ID,
		Date:      card.Date,
		Position:  card.Position,
		ContactID: card.ContactID,
		Status:    card.Status,
		Channel:   string(card.Channel),
		Reason:    card.Reason,
		Score:     card.Score,
		IsFresh:   card.IsFresh,
	}
	if card.Contact != nil {
		output.ContactName = card.Contact.Name
	}
	if card.OpenedAt != nil {
		t := card.OpenedAt.Format(time.RFC3339)
		output.OpenedAt = &t
	}
	if card.CompletedAt != nil {
		t := card.CompletedAt.Format(time.RFC3339)
		output.CompletedAt = &t
	}
	return output
}

func historyToOutput(recs []models.DeckHistoryRecord) DeckHistoryOutput {
	output := DeckHistoryOutput{Records: make([]HistoryRecordOutput, len(recs))}
	for i, r := range recs {
		out := HistoryRecordOutput{
			Date:             r.Date,
			IsPremium:        r.IsPremium,
			TotalCards:       r.TotalCards,
			Completed:        r.Completed,
			Skipped:          r.Skipped,
			Snoozed:          r.Snoozed,
			Pending:          r.Pending,
			Active:           r.Active,
			ChannelCounts:    r.ChannelCounts,
			FreshShown:       r.FreshShown,
			FreshEngaged:     r.FreshEngaged,
			PositiveOutcomes: r.PositiveOutcomes,
			NeutralOutcomes:  r.NeutralOutcomes,
			NegativeOutcomes: r.NegativeOutcomes,
			CompletionRate:   r.CompletionRate,
			AverageScore:     r.AverageScore,
		}
		if r.FirstOpenedAt != nil {
			out.FirstOpenedAt = r.FirstOpenedAt.Format(time.RFC3339)
		}
		if r.LastCompletedAt != nil {
			out.LastCompletedAt = r.LastCompletedAt.Format(time.RFC3339)
		}
		output.Records[i] = out
	}
	return output
}
