// ABOUTME: Tests for deck cards, deck history and outcome notes
// ABOUTME: Covers idempotent card inserts and atomic archival
package db

import (
	"context"
	"testing"
	"time"

	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCard(date, contactID string, pos int) models.DeckCard {
	return models.DeckCard{
		ID:        models.CardID(date, contactID),
		UserID:    "u1",
		Date:      date,
		ContactID: contactID,
		Position:  pos,
		Status:    models.CardStatusPending,
		Channel:   models.ChannelSMS,
		Reason:    "Time to reconnect",
		Score:     50,
		CreatedAt: base,
	}
}

func TestDeckInsertCardsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewDeckRepository(setupTestDB(t))

	cards := []models.DeckCard{testCard("2026-02-01", "c2", 0), testCard("2026-02-01", "c1", 1)}
	n, err := repo.InsertCards(ctx, cards)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.InsertCards(ctx, append(cards, testCard("2026-02-01", "c3", 2)))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.CardsForDate(ctx, "u1", "2026-02-01")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"c2", "c1", "c3"}, []string{got[0].ContactID, got[1].ContactID, got[2].ContactID})

	count, err := repo.CountForDate(ctx, "u1", "2026-02-01")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDeckUpdateCardState(t *testing.T) {
	ctx := context.Background()
	repo := NewDeckRepository(setupTestDB(t))
	_, err := repo.InsertCards(ctx, []models.DeckCard{testCard("2026-02-01", "c1", 0)})
	require.NoError(t, err)

	card, err := repo.GetCard(ctx, "u1", models.CardID("2026-02-01", "c1"))
	require.NoError(t, err)
	require.NoError(t, card.TransitionStatus(models.CardStatusCompleted, base.Add(time.Hour)))
	require.NoError(t, repo.UpdateCardState(ctx, card))

	got, err := repo.GetCard(ctx, "u1", card.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CardStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(base.Add(time.Hour)))

	_, err = repo.GetCard(ctx, "u1", "nope")
	assert.ErrorIs(t, err, ErrCardNotFound)
}

func TestDeckDatesBefore(t *testing.T) {
	ctx := context.Background()
	repo := NewDeckRepository(setupTestDB(t))
	_, err := repo.InsertCards(ctx, []models.DeckCard{
		testCard("2026-01-30", "c1", 0),
		testCard("2026-01-31", "c1", 0),
		testCard("2026-01-31", "c2", 1),
		testCard("2026-02-01", "c1", 0),
	})
	require.NoError(t, err)

	dates, err := repo.DatesBefore(ctx, "u1", "2026-02-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-01-30", "2026-01-31"}, dates)
}

func TestHistoryArchiveDateAtomic(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	deck := NewDeckRepository(db)
	history := NewHistoryRepository(db)

	_, err := deck.InsertCards(ctx, []models.DeckCard{testCard("2026-01-31", "c1", 0), testCard("2026-01-31", "c2", 1)})
	require.NoError(t, err)

	rec := &models.DeckHistoryRecord{
		UserID: "u1", Date: "2026-01-31", TotalCards: 2, Completed: 1, Pending: 1,
		ChannelCounts: map[string]int{"sms": 1}, CompletionRate: 50, AverageScore: 50,
	}
	deleted, err := history.ArchiveDate(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := deck.CountForDate(ctx, "u1", "2026-01-31")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	got, err := history.Get(ctx, "u1", "2026-01-31")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.ChannelCounts["sms"])
	assert.Equal(t, 50, got.CompletionRate)

	// A second archive keeps the first record and still clears leftover cards.
	_, err = deck.InsertCards(ctx, []models.DeckCard{testCard("2026-01-31", "c3", 0)})
	require.NoError(t, err)
	deleted, err = history.ArchiveDate(ctx, &models.DeckHistoryRecord{UserID: "u1", Date: "2026-01-31"})
	assert.ErrorIs(t, err, ErrHistoryExists)
	assert.Equal(t, 1, deleted)

	remaining, err = deck.CountForDate(ctx, "u1", "2026-01-31")
	require.NoError(t, err)
	assert.Zero(t, remaining)

	got, err = history.Get(ctx, "u1", "2026-01-31")
	require.NoError(t, err)
	assert.Equal(t, 2, got.TotalCards)
}

func TestHistoryListAndRange(t *testing.T) {
	ctx := context.Background()
	history := NewHistoryRepository(setupTestDB(t))
	for _, d := range []string{"2026-01-28", "2026-01-29", "2026-01-30", "2026-01-31"} {
		_, err := history.ArchiveDate(ctx, &models.DeckHistoryRecord{UserID: "u1", Date: d, TotalCards: 1})
		require.NoError(t, err)
	}

	list, err := history.List(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2026-01-31", list[0].Date)

	rng, err := history.Range(ctx, "u1", "2026-01-29", "2026-01-30")
	require.NoError(t, err)
	require.Len(t, rng, 2)
	assert.Equal(t, "2026-01-30", rng[0].Date)

	missing, err := history.Get(ctx, "u1", "2025-12-31")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestOutcomeCounts(t *testing.T) {
	ctx := context.Background()
	repo := NewOutcomesRepository(setupTestDB(t))

	notes := []models.OutcomeNote{
		{UserID: "u1", ContactID: "c1", Sentiment: models.SentimentPositive, CreatedAt: base},
		{UserID: "u1", ContactID: "c1", Sentiment: models.SentimentPositive, CreatedAt: base.Add(time.Hour)},
		{UserID: "u1", ContactID: "c1", Sentiment: models.SentimentNegative, CreatedAt: base.AddDate(0, 0, 1)},
		{UserID: "u1", ContactID: "c2", Sentiment: models.SentimentNeutral, CreatedAt: base},
	}
	for i := range notes {
		require.NoError(t, repo.Create(ctx, &notes[i]))
	}

	byContact, err := repo.CountsByContact(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCounts{Positive: 2, Negative: 1}, byContact)

	day, err := repo.CountsBetween(ctx, "u1", base.Truncate(24*time.Hour), base.Truncate(24*time.Hour).AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCounts{Positive: 2, Neutral: 1}, day)

	assert.ErrorIs(t, repo.Create(ctx, &models.OutcomeNote{UserID: "u1", ContactID: "c1", Sentiment: "meh"}), ErrInvalidOutcome)

	listed, err := repo.ListByContact(ctx, "u1", "c1", 10)
	require.NoError(t, err)
	assert.Len(t, listed, 3)
}
