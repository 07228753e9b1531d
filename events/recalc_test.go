// ABOUTME: End-to-end tests for recalculation jobs over SQLite and Badger
// ABOUTME: Derived events are written once and score snapshots land in the KV store
package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/kv"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/scoring"
)

type recalcFixture struct {
	contacts  *db.ContactsRepository
	actions   *db.ActionEventsRepository
	snapshots *kv.ScoreSnapshots
	recalc    *Recalculator
	pipeline  *Pipeline
	queue     *Queue
}

func newRecalcFixture(t *testing.T) *recalcFixture {
	t.Helper()
	logger := zaptest.NewLogger(t)

	sqlDB, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store, err := kv.OpenInMemory(logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &recalcFixture{
		contacts:  db.NewContactsRepository(sqlDB),
		actions:   db.NewActionEventsRepository(sqlDB),
		snapshots: kv.NewScoreSnapshots(store),
	}
	engine := scoring.NewEngine(scoring.Stores{
		Contacts:  f.contacts,
		Touches:   db.NewInteractionsRepository(sqlDB),
		Actions:   f.actions,
		Outcomes:  db.NewOutcomesRepository(sqlDB),
		Snapshots: f.snapshots,
	}, scoring.EngineConfig{}, logger)

	f.recalc = NewRecalculator(f.actions, f.contacts, engine, logger)
	f.queue = NewQueue(16, 1, f.recalc.Process, logger)
	f.pipeline = NewPipeline(f.actions, f.contacts, nil, f.queue, logger)
	return f
}

func countAction(t *testing.T, events []models.ActionEvent, id models.ActionID) int {
	t.Helper()
	n := 0
	for _, e := range events {
		if e.ActionID == id {
			n++
		}
	}
	return n
}

func TestRecalculationRecordsDerivedEventsOnce(t *testing.T) {
	f := newRecalcFixture(t)
	ctx := context.Background()
	t0 := time.Now().UTC()

	c := &models.Contact{UserID: "u1", Name: "Grace", FirstSeenAt: t0.Add(-72 * time.Hour)}
	require.NoError(t, f.contacts.Create(ctx, c))

	f.queue.Start(ctx)
	res, err := f.pipeline.Emit(ctx, EmitParams{
		UserID:    "u1",
		ContactID: c.ID,
		ActionID:  models.ActionSMSSent,
		Channel:   models.ChannelSMS,
		Timestamp: t0.Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.JobID)

	_, err = f.queue.Enqueue("u1", c.ID)
	require.NoError(t, err)
	f.queue.Stop()

	job, ok := f.queue.Status(res.JobID)
	require.True(t, ok)
	assert.Equal(t, JobDone, job.Status)

	events, err := f.actions.ListByContact(ctx, "u1", c.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, countAction(t, events, models.ActionFreshFirstTouch))
	assert.Equal(t, 1, countAction(t, events, models.ActionFastFirstTouch))

	rhs, err := f.snapshots.Latest(ctx, models.ModelRHS, "u1", c.ID)
	require.NoError(t, err)
	require.NotNil(t, rhs)

	contact, err := f.snapshots.Latest(ctx, models.ModelContact, "u1", c.ID)
	require.NoError(t, err)
	require.NotNil(t, contact)
	// 8 sms points + 25 freshness bonus + 15 fresh + 10 fast, minus fatigue.
	assert.InDelta(t, 38.0, contact.Total, 1e-9)
}

func TestRecalculationMissingContactFails(t *testing.T) {
	f := newRecalcFixture(t)

	err := f.recalc.Process(context.Background(), Job{ID: "j1", UserID: "u1", ContactID: "ghost"})
	assert.Error(t, err)
}
