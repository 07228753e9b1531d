// ABOUTME: Tests for the deck builder over an in-memory SQLite store
// ABOUTME: Fresh quota, idempotency, extension, ordering, channels and status changes
package deck

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/events"
	"github.com/harperreed/kith/models"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fakeScorer struct {
	mu     sync.Mutex
	scores map[string]models.RHSScore
	fail   map[string]bool
	calls  int
}

func (f *fakeScorer) RHS(_ context.Context, c *models.Contact) (models.RHSScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[c.ID] {
		return models.RHSScore{}, errors.New("score unavailable")
	}
	return f.scores[c.ID], nil
}

type fakeEmitter struct {
	mu      sync.Mutex
	emitted []events.EmitParams
}

func (f *fakeEmitter) Emit(_ context.Context, p events.EmitParams) (events.EmitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, p)
	return events.EmitResult{Emitted: true}, nil
}

type deckFixture struct {
	sql      *sql.DB
	contacts *db.ContactsRepository
	cards    *db.DeckRepository
	history  *db.HistoryRepository
	scorer   *fakeScorer
	emitter  *fakeEmitter
	archiver *Archiver
	builder  *Builder
}

func newDeckFixture(t *testing.T, ranking string) *deckFixture {
	t.Helper()
	sqlDB, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zaptest.NewLogger(t)
	f := &deckFixture{
		sql:      sqlDB,
		contacts: db.NewContactsRepository(sqlDB),
		cards:    db.NewDeckRepository(sqlDB),
		history:  db.NewHistoryRepository(sqlDB),
		scorer:   &fakeScorer{scores: map[string]models.RHSScore{}, fail: map[string]bool{}},
		emitter:  &fakeEmitter{},
	}
	interactions := db.NewInteractionsRepository(sqlDB)
	f.archiver = NewArchiver(f.cards, f.history, interactions,
		db.NewOutcomesRepository(sqlDB), time.UTC, logger)
	f.archiver.SetClock(func() time.Time { return testNow })
	f.builder = NewBuilder(f.contacts, f.cards, f.scorer, f.archiver,
		Config{Ranking: ranking, Location: time.UTC}, logger,
		WithClock(func() time.Time { return testNow }),
		WithActionEmitter(f.emitter),
		WithCardTouches(interactions),
	)
	return f
}

// addContact creates a contact; fresh ones were seen 3 days ago and never engaged.
func (f *deckFixture) addContact(t *testing.T, name string, fresh bool, score float64, mutate ...func(*models.Contact)) *models.Contact {
	t.Helper()
	c := &models.Contact{UserID: "u1", Name: name, FirstSeenAt: testNow.AddDate(0, 0, -3)}
	if !fresh {
		c.FirstSeenAt = testNow.AddDate(0, -6, 0)
		engaged := testNow.AddDate(0, -5, 0)
		c.FirstEngagementAt = &engaged
	}
	for _, m := range mutate {
		m(c)
	}
	require.NoError(t, f.contacts.Create(context.Background(), c))

	days := 40
	f.scorer.scores[c.ID] = models.RHSScore{ContactID: c.ID, Total: score, DaysSinceTouch: &days}
	return c
}

func contactIDs(cards []models.DeckCard) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ContactID
	}
	return ids
}

func countFresh(cards []models.DeckCard) int {
	n := 0
	for _, c := range cards {
		if c.IsFresh {
			n++
		}
	}
	return n
}

func TestBuildDeckFreshQuota(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	ctx := context.Background()

	fresh1 := f.addContact(t, "Fresh A", true, 40)
	fresh2 := f.addContact(t, "Fresh B", true, 30)
	f.addContact(t, "Fresh C", true, 20)
	r1 := f.addContact(t, "Regular A", false, 90)
	r2 := f.addContact(t, "Regular B", false, 80)
	r3 := f.addContact(t, "Regular C", false, 70)
	f.addContact(t, "Regular D", false, 10)

	deck, err := f.builder.BuildDeck(ctx, "u1", 0, false)
	require.NoError(t, err)

	require.Len(t, deck, DefaultFreeQuota)
	assert.Equal(t, []string{fresh1.ID, fresh2.ID, r1.ID, r2.ID, r3.ID}, contactIDs(deck))
	assert.Equal(t, 2, countFresh(deck))
	for i, c := range deck {
		assert.Equal(t, i, c.Position)
		assert.Equal(t, models.CardStatusPending, c.Status)
		assert.Equal(t, models.CardID("2026-03-10", c.ContactID), c.ID)
		require.NotNil(t, c.Contact)
		assert.Equal(t, c.ContactID, c.Contact.ID)
	}
}

func TestBuildDeckCapsRequestAtTierQuota(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		f.addContact(t, fmt.Sprintf("Regular %02d", i), false, float64(i))
	}

	free, err := f.builder.BuildDeck(ctx, "u1", 10, false)
	require.NoError(t, err)
	assert.Len(t, free, DefaultFreeQuota)

	premium, err := f.builder.BuildDeck(ctx, "u1", 20, true)
	require.NoError(t, err)
	assert.Len(t, premium, DefaultPremiumQuota)
}

func TestBuildDeckSingleFreshContactAlwaysIncluded(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	fresh := f.addContact(t, "Newbie", true, 1)
	for i := 0; i < 6; i++ {
		f.addContact(t, fmt.Sprintf("Regular %d", i), false, 50+float64(i))
	}

	deck, err := f.builder.BuildDeck(context.Background(), "u1", 3, false)
	require.NoError(t, err)
	require.Len(t, deck, 3)
	assert.Equal(t, fresh.ID, deck[0].ContactID)
	assert.Equal(t, 1, countFresh(deck))
}

func TestBuildDeckBackfillsWithFresh(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	for i := 0; i < 3; i++ {
		f.addContact(t, fmt.Sprintf("Fresh %d", i), true, 10)
	}
	f.addContact(t, "Only Regular", false, 99)

	deck, err := f.builder.BuildDeck(context.Background(), "u1", 5, false)
	require.NoError(t, err)
	assert.Len(t, deck, 4)
	assert.Equal(t, 3, countFresh(deck))
	assert.Equal(t, "Only Regular", deck[2].Contact.Name)
}

func TestBuildDeckIdempotent(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	for i := 0; i < 8; i++ {
		f.addContact(t, fmt.Sprintf("Person %d", i), i%4 == 0, float64(10*i))
	}
	ctx := context.Background()

	first, err := f.builder.BuildDeck(ctx, "u1", 5, false)
	require.NoError(t, err)
	calls := f.scorer.calls

	second, err := f.builder.BuildDeck(ctx, "u1", 5, false)
	require.NoError(t, err)
	assert.Equal(t, contactIDs(first), contactIDs(second))
	assert.Equal(t, calls, f.scorer.calls)
}

func TestBuildDeckNeverShrinks(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	for i := 0; i < 12; i++ {
		f.addContact(t, fmt.Sprintf("Person %02d", i), false, float64(i))
	}
	ctx := context.Background()

	premium, err := f.builder.BuildDeck(ctx, "u1", 0, true)
	require.NoError(t, err)
	require.Len(t, premium, DefaultPremiumQuota)

	free, err := f.builder.BuildDeck(ctx, "u1", 0, false)
	require.NoError(t, err)
	assert.Equal(t, contactIDs(premium), contactIDs(free))
}

func TestBuildDeckExtendsOnUpgrade(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	for i := 0; i < 3; i++ {
		f.addContact(t, fmt.Sprintf("Fresh %d", i), true, float64(i))
	}
	for i := 0; i < 12; i++ {
		f.addContact(t, fmt.Sprintf("Regular %02d", i), false, float64(50+i))
	}
	ctx := context.Background()

	free, err := f.builder.BuildDeck(ctx, "u1", 0, false)
	require.NoError(t, err)
	require.Len(t, free, 5)

	premium, err := f.builder.BuildDeck(ctx, "u1", 0, true)
	require.NoError(t, err)
	require.Len(t, premium, 10)
	assert.Equal(t, contactIDs(free), contactIDs(premium)[:5])

	seen := map[string]bool{}
	for i, c := range premium {
		assert.False(t, seen[c.ContactID], "duplicate contact %s", c.ContactID)
		seen[c.ContactID] = true
		assert.Equal(t, i, c.Position)
	}
	assert.Equal(t, 2, countFresh(premium))
}

func TestBuildDeckTieBreaksByNameThenID(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	f.addContact(t, "Charlie", false, 50)
	f.addContact(t, "alice", false, 50)
	f.addContact(t, "Bob", false, 50)

	deck, err := f.builder.BuildDeck(context.Background(), "u1", 3, false)
	require.NoError(t, err)

	var names []string
	for _, c := range deck {
		names = append(names, c.Contact.Name)
	}
	assert.Equal(t, []string{"Bob", "Charlie", "alice"}, names)
}

func TestBuildDeckSkipsUnscorableContacts(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	bad := f.addContact(t, "Broken", false, 99)
	f.scorer.fail[bad.ID] = true
	ok := f.addContact(t, "Fine", false, 10)

	deck, err := f.builder.BuildDeck(context.Background(), "u1", 5, false)
	require.NoError(t, err)
	assert.Equal(t, []string{ok.ID}, contactIDs(deck))
}

func TestBuildDeckChannelsAndReasons(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	phone := f.addContact(t, "Phone", false, 90, func(c *models.Contact) {
		c.Phones = []string{"+15550001", "+15550002"}
		c.Emails = []string{"p@example.com"}
	})
	email := f.addContact(t, "Email", false, 80, func(c *models.Contact) {
		c.Emails = []string{"e@example.com"}
	})
	nothing := f.addContact(t, "Nothing", false, 70)
	f.scorer.scores[nothing.ID] = models.RHSScore{ContactID: nothing.ID, Total: 70}
	fresh := f.addContact(t, "Fresh", true, 5)

	deck, err := f.builder.BuildDeck(context.Background(), "u1", 4, false)
	require.NoError(t, err)

	byContact := map[string]models.DeckCard{}
	for _, c := range deck {
		byContact[c.ContactID] = c
	}
	assert.Equal(t, models.ChannelSMS, byContact[phone.ID].Channel)
	assert.Equal(t, models.ChannelEmail, byContact[email.ID].Channel)
	assert.Equal(t, models.ChannelCall, byContact[nothing.ID].Channel)
	assert.Equal(t, "You haven't reached out yet", byContact[nothing.ID].Reason)
	assert.Contains(t, byContact[fresh.ID].Reason, "New connection")
	assert.Contains(t, byContact[phone.ID].Reason, "40 days")
}

func TestBuildDeckWeightedRanking(t *testing.T) {
	f := newDeckFixture(t, RankingWeighted)
	plain := f.addContact(t, "Plain", false, 90)
	family := f.addContact(t, "Family", false, 10, func(c *models.Contact) {
		c.Tags = []string{"Family"}
	})

	deck, err := f.builder.BuildDeck(context.Background(), "u1", 2, false)
	require.NoError(t, err)
	assert.Equal(t, []string{family.ID, plain.ID}, contactIDs(deck))
	assert.Greater(t, deck[0].Score, deck[1].Score)
}

func TestBuildDeckArchivesPreviousDays(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	ctx := context.Background()
	c := f.addContact(t, "Yesterday", false, 50)

	yesterday := "2026-03-09"
	_, err := f.cards.InsertCards(ctx, []models.DeckCard{{
		ID: models.CardID(yesterday, c.ID), UserID: "u1", Date: yesterday, ContactID: c.ID,
		Status: models.CardStatusCompleted, Score: 50, CreatedAt: testNow.AddDate(0, 0, -1),
	}})
	require.NoError(t, err)

	deck, err := f.builder.BuildDeck(ctx, "u1", 5, false)
	require.NoError(t, err)
	assert.Len(t, deck, 1)

	old, err := f.cards.CardsForDate(ctx, "u1", yesterday)
	require.NoError(t, err)
	assert.Empty(t, old)

	rec, err := f.history.Get(ctx, "u1", yesterday)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.Completed)
}

func TestIsDailyQuotaExhausted(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	ctx := context.Background()
	f.addContact(t, "Someone", false, 50)

	assert.False(t, f.builder.IsDailyQuotaExhausted(ctx, "u1"))
	_, err := f.builder.BuildDeck(ctx, "u1", 1, false)
	require.NoError(t, err)
	assert.True(t, f.builder.IsDailyQuotaExhausted(ctx, "u1"))
	assert.False(t, f.builder.IsDailyQuotaExhausted(ctx, "someone-else"))
}

func TestUpdateCardStatus(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	ctx := context.Background()
	f.addContact(t, "Someone", false, 50)

	deck, err := f.builder.BuildDeck(ctx, "u1", 1, false)
	require.NoError(t, err)
	id := deck[0].ID

	card, err := f.builder.UpdateCardStatus(ctx, "u1", id, models.CardStatusActive)
	require.NoError(t, err)
	assert.NotNil(t, card.OpenedAt)

	card, err = f.builder.UpdateCardStatus(ctx, "u1", id, models.CardStatusCompleted)
	require.NoError(t, err)
	assert.NotNil(t, card.CompletedAt)

	_, err = f.builder.UpdateCardStatus(ctx, "u1", id, models.CardStatusSkipped)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = f.builder.UpdateCardStatus(ctx, "u1", "nope", models.CardStatusActive)
	assert.ErrorIs(t, err, db.ErrCardNotFound)

	today, err := f.builder.TodayDeck(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.CardStatusCompleted, today[0].Status)

	require.Len(t, f.emitter.emitted, 2)
	assert.Equal(t, models.ActionCardOpened, f.emitter.emitted[0].ActionID)

	// completion records the suggested channel's touch
	done := f.emitter.emitted[1]
	assert.Equal(t, models.ActionCallMade, done.ActionID)
	assert.Equal(t, models.ChannelCall, done.Channel)
	assert.Equal(t, id, done.Metadata["card_id"])
	assert.Equal(t, CompletionSource, done.Metadata["source"])
}

func TestCompletedCardSkipsLoggedTouch(t *testing.T) {
	f := newDeckFixture(t, RankingRHS)
	ctx := context.Background()
	f.addContact(t, "Texted", false, 90, func(c *models.Contact) {
		c.Phones = []string{"+15550001"}
	})
	f.addContact(t, "Untouched", false, 80)

	deck, err := f.builder.BuildDeck(ctx, "u1", 2, false)
	require.NoError(t, err)
	require.Len(t, deck, 2)

	_, err = db.NewInteractionsRepository(f.sql).Append(ctx, &models.InteractionEvent{
		UserID:     "u1",
		Type:       models.InteractionSMSSent,
		ContactIDs: []string{deck[0].ContactID},
		CardID:     deck[0].ID,
		Timestamp:  testNow,
	})
	require.NoError(t, err)

	_, err = f.builder.UpdateCardStatus(ctx, "u1", deck[0].ID, models.CardStatusCompleted)
	require.NoError(t, err)
	assert.Empty(t, f.emitter.emitted)

	_, err = f.builder.UpdateCardStatus(ctx, "u1", deck[1].ID, models.CardStatusCompleted)
	require.NoError(t, err)
	require.Len(t, f.emitter.emitted, 1)
	assert.Equal(t, models.ActionCallMade, f.emitter.emitted[0].ActionID)
	assert.Equal(t, deck[1].ContactID, f.emitter.emitted[0].ContactID)
}
