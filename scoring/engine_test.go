// ABOUTME: Tests for the score engine
// ABOUTME: Uses in-memory fakes for every store to check caching and persistence
package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeStores struct {
	mu         sync.Mutex
	contacts   map[string]*models.Contact
	touches    map[string][]time.Time
	actions    map[string][]models.ActionEvent
	outcomes   map[string]models.OutcomeCounts
	saved      map[string]models.ScoreRecord
	touchReads int
	failSave   bool
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		contacts: map[string]*models.Contact{},
		touches:  map[string][]time.Time{},
		actions:  map[string][]models.ActionEvent{},
		outcomes: map[string]models.OutcomeCounts{},
		saved:    map[string]models.ScoreRecord{},
	}
}

func (f *fakeStores) stores() Stores {
	return Stores{Contacts: f, Touches: f, Actions: f, Outcomes: f, Snapshots: f}
}

func (f *fakeStores) GetContact(_ context.Context, _, contactID string) (*models.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contacts[contactID], nil
}

func (f *fakeStores) TouchTimes(_ context.Context, _, contactID string) ([]time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touchReads++
	return append([]time.Time(nil), f.touches[contactID]...), nil
}

func (f *fakeStores) ListByContact(_ context.Context, _, contactID string, since time.Time) ([]models.ActionEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ActionEvent
	for _, e := range f.actions[contactID] {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStores) CountsByContact(_ context.Context, _, contactID string) (models.OutcomeCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes[contactID], nil
}

func (f *fakeStores) SaveScore(_ context.Context, userID string, rec models.ScoreRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSave {
		return errors.New("disk full")
	}
	f.saved[rec.Model+":"+userID+":"+rec.ContactID] = rec
	return nil
}

func (f *fakeStores) addContact(id string, firstSeenDaysAgo int) *models.Contact {
	c := &models.Contact{ID: id, UserID: "u1", Name: id, FirstSeenAt: daysAgo(firstSeenDaysAgo)}
	f.mu.Lock()
	f.contacts[id] = c
	f.mu.Unlock()
	return c
}

func newTestEngine(t *testing.T, f *fakeStores, model string, clock *fakeClock) *Engine {
	t.Helper()
	return NewEngine(f.stores(), EngineConfig{Model: model}, zaptest.NewLogger(t), WithClock(clock.Now))
}

func engineClock() *fakeClock {
	return &fakeClock{t: testNow}
}

func TestEngineDefaultsToContactModel(t *testing.T) {
	e := NewEngine(newFakeStores().stores(), EngineConfig{}, nil)
	assert.Equal(t, models.ModelContact, e.Model())

	e = NewEngine(newFakeStores().stores(), EngineConfig{Model: "bogus"}, nil)
	assert.Equal(t, models.ModelContact, e.Model())
}

func TestEngineComputeScoreCachedWithinTTL(t *testing.T) {
	f := newFakeStores()
	c := f.addContact("c1", 200)
	f.actions["c1"] = []models.ActionEvent{actionAt(models.ActionCallMade, 20, 15.6, models.ChannelCall)}
	clock := engineClock()
	e := newTestEngine(t, f, models.ModelContact, clock)
	ctx := context.Background()

	first, err := e.ComputeScore(ctx, c)
	require.NoError(t, err)

	// New event without invalidation: cached result is returned unchanged.
	f.actions["c1"] = append(f.actions["c1"], actionAt(models.ActionSMSSent, 1, 8, models.ChannelSMS))
	clock.Advance(time.Minute)
	second, err := e.ComputeScore(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	e.Invalidate("u1", "c1")
	third, err := e.ComputeScore(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 2, third.Contact.EventCount)
}

func TestEngineContactScoreExpiresAfterTTL(t *testing.T) {
	f := newFakeStores()
	c := f.addContact("c1", 200)
	clock := engineClock()
	e := newTestEngine(t, f, models.ModelContact, clock)
	ctx := context.Background()

	_, err := e.ComputeScore(ctx, c)
	require.NoError(t, err)

	f.actions["c1"] = []models.ActionEvent{actionAt(models.ActionCallMade, 10, 15.6, models.ChannelCall)}
	clock.Advance(DefaultCacheTTL)

	rec, err := e.ComputeScore(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Contact.EventCount)
}

func TestEngineRHSMarkerInvalidatesOnNewTouch(t *testing.T) {
	f := newFakeStores()
	c := f.addContact("c1", 200)
	f.touches["c1"] = []time.Time{daysAgo(40)}
	e := newTestEngine(t, f, models.ModelRHS, engineClock())
	ctx := context.Background()

	before, err := e.ComputeScore(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, models.ModelRHS, before.Model)
	assert.Equal(t, 100.0, before.Total)

	f.touches["c1"] = append(f.touches["c1"], daysAgo(10))
	after, err := e.ComputeScore(ctx, c)
	require.NoError(t, err)
	assert.Less(t, after.Total, before.Total)
}

func TestEngineRHSCountsMeaningfulActions(t *testing.T) {
	f := newFakeStores()
	c := f.addContact("c1", 200)
	f.actions["c1"] = []models.ActionEvent{
		actionAt(models.ActionCardImpression, 2, 0, ""),
		actionAt(models.ActionCallMade, 9, 15.6, models.ChannelCall),
	}
	e := newTestEngine(t, f, models.ModelRHS, engineClock())

	s, err := e.RHS(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalEngagements)
	require.NotNil(t, s.DaysSinceTouch)
	assert.Equal(t, 9, *s.DaysSinceTouch)
}

func TestEngineRecalculatePersistsBothModels(t *testing.T) {
	f := newFakeStores()
	f.addContact("c1", 200)
	f.actions["c1"] = []models.ActionEvent{actionAt(models.ActionCallMade, 5, 15.6, models.ChannelCall)}
	e := newTestEngine(t, f, models.ModelContact, engineClock())

	require.NoError(t, e.Recalculate(context.Background(), "u1", "c1"))

	assert.Contains(t, f.saved, "rhs:u1:c1")
	assert.Contains(t, f.saved, "contact:u1:c1")
	assert.InDelta(t, 15.6, f.saved["contact:u1:c1"].Total, 1e-9)
}

func TestEngineRecalculateMissingContact(t *testing.T) {
	e := newTestEngine(t, newFakeStores(), models.ModelContact, engineClock())
	err := e.Recalculate(context.Background(), "u1", "nope")
	assert.Error(t, err)
}

func TestEnginePersistScoresChunks(t *testing.T) {
	f := newFakeStores()
	var contacts []models.Contact
	for i := 0; i < 25; i++ {
		contacts = append(contacts, *f.addContact(fmt.Sprintf("c%02d", i), 100))
	}
	e := newTestEngine(t, f, models.ModelRHS, engineClock())

	require.NoError(t, e.PersistScores(context.Background(), "u1", contacts))
	assert.Len(t, f.saved, 25)
	for _, rec := range f.saved {
		assert.Equal(t, models.ModelRHS, rec.Model)
		assert.GreaterOrEqual(t, rec.Total, 0.0)
		assert.LessOrEqual(t, rec.Total, 100.0)
	}
}

func TestEnginePersistScoresPropagatesWriteErrors(t *testing.T) {
	f := newFakeStores()
	c := f.addContact("c1", 100)
	f.failSave = true
	e := newTestEngine(t, f, models.ModelContact, engineClock())

	err := e.PersistScores(context.Background(), "u1", []models.Contact{*c})
	assert.Error(t, err)
}

func TestEngineInvalidateAll(t *testing.T) {
	f := newFakeStores()
	c1 := f.addContact("c1", 100)
	c2 := f.addContact("c2", 100)
	e := newTestEngine(t, f, models.ModelRHS, engineClock())
	ctx := context.Background()

	_, err := e.RHS(ctx, c1)
	require.NoError(t, err)
	_, err = e.RHS(ctx, c2)
	require.NoError(t, err)
	assert.Equal(t, 2, e.rhsCache.Len())

	e.InvalidateAll("u1")
	assert.Equal(t, 0, e.rhsCache.Len())
}
