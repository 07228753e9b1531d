// ABOUTME: Service container wiring storage, scoring, the event pipeline and the deck
// ABOUTME: Shared by the CLI, MCP server, HTTP API and TUI
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/harperreed/kith/config"
	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/deck"
	"github.com/harperreed/kith/events"
	"github.com/harperreed/kith/kv"
	"github.com/harperreed/kith/models"
	"github.com/harperreed/kith/scoring"
)

// App holds every long-lived component.
type App struct {
	Config *config.Config
	Logger *zap.Logger

	DB *sql.DB
	KV *kv.Store

	Contacts     *db.ContactsRepository
	Interactions *db.InteractionsRepository
	Actions      *db.ActionEventsRepository
	Outcomes     *db.OutcomesRepository
	Cards        *db.DeckRepository
	History      *db.HistoryRepository
	Snapshots    *kv.ScoreSnapshots

	Entitlements *Entitlements
	Engine       *scoring.Engine
	Queue        *events.Queue
	Recalculator *events.Recalculator
	Pipeline     *events.Pipeline
	Archiver     *deck.Archiver
	Builder      *deck.Builder
}

// Open opens the on-disk stores named by cfg and wires the app.
func Open(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.OpenDatabase(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := kv.Open(cfg.KV.Dir, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to open kv store: %w", err)
	}
	return New(cfg, logger, sqlDB, store), nil
}

// OpenInMemory wires the app over private in-memory stores.
func OpenInMemory(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.OpenMemory()
	if err != nil {
		return nil, err
	}
	store, err := kv.OpenInMemory(logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return New(cfg, logger, sqlDB, store), nil
}

// New wires the app over already-open stores.
func New(cfg *config.Config, logger *zap.Logger, sqlDB *sql.DB, store *kv.Store) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		Config:       cfg,
		Logger:       logger,
		DB:           sqlDB,
		KV:           store,
		Contacts:     db.NewContactsRepository(sqlDB),
		Interactions: db.NewInteractionsRepository(sqlDB),
		Actions:      db.NewActionEventsRepository(sqlDB),
		Outcomes:     db.NewOutcomesRepository(sqlDB),
		Cards:        db.NewDeckRepository(sqlDB),
		History:      db.NewHistoryRepository(sqlDB),
		Snapshots:    kv.NewScoreSnapshots(store),
		Entitlements: NewEntitlements(cfg.User.PremiumUsers),
	}

	a.Engine = scoring.NewEngine(scoring.Stores{
		Contacts:  a.Contacts,
		Touches:   a.Interactions,
		Actions:   a.Actions,
		Outcomes:  a.Outcomes,
		Snapshots: a.Snapshots,
	}, scoring.EngineConfig{
		Model:         cfg.Scoring.Model,
		CacheTTL:      cfg.Scoring.CacheTTL,
		CacheCapacity: cfg.Scoring.CacheCapacity,
	}, logger.Named("scoring"))

	a.Recalculator = events.NewRecalculator(a.Actions, a.Contacts, a.Engine, logger.Named("recalc"))
	a.Queue = events.NewQueue(cfg.Pipeline.QueueSize, cfg.Pipeline.Workers, a.Recalculator.Process, logger.Named("queue"))
	a.Pipeline = events.NewPipeline(a.Actions, a.Contacts, a.Entitlements, a.Queue, logger.Named("pipeline"))
	a.Pipeline.SetInvalidator(a.Engine)

	loc := cfg.Location()
	a.Archiver = deck.NewArchiver(a.Cards, a.History, a.Interactions, a.Outcomes, loc, logger.Named("archive"))
	a.Builder = deck.NewBuilder(a.Contacts, a.Cards, a.Engine, a.Archiver, deck.Config{
		FreeQuota:    cfg.Deck.FreeQuota,
		PremiumQuota: cfg.Deck.PremiumQuota,
		Ranking:      cfg.Deck.Ranking,
		Location:     loc,
	}, logger.Named("deck"), deck.WithActionEmitter(a.Pipeline), deck.WithCardTouches(a.Interactions))
	return a
}

// Start launches the background recalculation workers.
func (a *App) Start(ctx context.Context) {
	a.Queue.Start(ctx)
}

// Close drains the queue and closes the stores.
func (a *App) Close() error {
	a.Queue.Stop()
	var errs []error
	if a.KV != nil {
		errs = append(errs, a.KV.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

// IsPremium reports the user's tier.
func (a *App) IsPremium(ctx context.Context, userID string) bool {
	return a.Entitlements.IsPremium(ctx, userID)
}

// AddContact creates a contact and records its discovery.
func (a *App) AddContact(ctx context.Context, c *models.Contact) error {
	if err := a.Contacts.Create(ctx, c); err != nil {
		return err
	}
	if _, err := a.Pipeline.Emit(ctx, events.EmitParams{
		UserID:    c.UserID,
		ContactID: c.ID,
		ActionID:  models.ActionFreshContactAdded,
	}); err != nil {
		a.Logger.Warn("failed to record contact discovery", zap.String("contact_id", c.ID), zap.Error(err))
	}
	return nil
}

// LogInteraction appends an interaction. Touches are also scored through the
// pipeline for every contact they name; other types only schedule recalculation.
func (a *App) LogInteraction(ctx context.Context, ev *models.InteractionEvent) (string, error) {
	id, err := a.Interactions.Append(ctx, ev)
	if err != nil {
		return "", err
	}
	action := ev.Type.Channel().TouchAction()
	for _, contactID := range ev.ContactIDs {
		if action == "" || a.completionRecorded(ctx, ev, contactID) {
			a.recalculate(ev.UserID, contactID)
			continue
		}
		metadata := map[string]any{"interaction_id": id}
		if ev.CardID != "" {
			metadata["card_id"] = ev.CardID
		}
		_, err := a.Pipeline.Emit(ctx, events.EmitParams{
			UserID:         ev.UserID,
			ContactID:      contactID,
			ActionID:       action,
			Channel:        ev.Type.Channel(),
			IsMultiContact: len(ev.ContactIDs) > 1,
			Metadata:       metadata,
			Timestamp:      ev.Timestamp,
		})
		if err != nil {
			a.Logger.Warn("failed to record touch action",
				zap.String("contact_id", contactID),
				zap.String("interaction_id", id),
				zap.Error(err),
			)
			a.recalculate(ev.UserID, contactID)
		}
	}
	return id, nil
}

// completionRecorded reports whether completing the interaction's card
// already scored this contact's touch.
func (a *App) completionRecorded(ctx context.Context, ev *models.InteractionEvent, contactID string) bool {
	if ev.CardID == "" {
		return false
	}
	card, err := a.Cards.GetCard(ctx, ev.UserID, ev.CardID)
	if err != nil || card.ContactID != contactID || card.CompletedAt == nil {
		return false
	}
	recorded, err := a.Actions.ListByContact(ctx, ev.UserID, contactID, *card.CompletedAt)
	if err != nil {
		return false
	}
	for _, e := range recorded {
		if e.Metadata["card_id"] == card.ID && e.Metadata["source"] == deck.CompletionSource {
			return true
		}
	}
	return false
}

// SetCadence updates a contact's cadence; nil clears it.
func (a *App) SetCadence(ctx context.Context, userID, contactID string, days *int) error {
	if err := a.Contacts.UpdateContactCadence(ctx, userID, contactID, days); err != nil {
		return err
	}
	if days != nil {
		if _, err := a.Pipeline.Emit(ctx, events.EmitParams{
			UserID:    userID,
			ContactID: contactID,
			ActionID:  models.ActionCadenceSet,
			Metadata:  map[string]any{"cadence_days": *days},
		}); err != nil {
			a.Logger.Warn("failed to record cadence change", zap.String("contact_id", contactID), zap.Error(err))
		}
		return nil
	}
	a.recalculate(userID, contactID)
	return nil
}

// RecordOutcome stores an outcome note and schedules recalculation.
func (a *App) RecordOutcome(ctx context.Context, n *models.OutcomeNote) error {
	if _, err := a.Contacts.GetContact(ctx, n.UserID, n.ContactID); err != nil {
		return err
	}
	if err := a.Outcomes.Create(ctx, n); err != nil {
		return err
	}
	a.recalculate(n.UserID, n.ContactID)
	return nil
}

// Score returns the configured model's score for a contact.
func (a *App) Score(ctx context.Context, userID, contactID string) (models.ScoreRecord, error) {
	contact, err := a.Contacts.GetContact(ctx, userID, contactID)
	if err != nil {
		return models.ScoreRecord{}, err
	}
	return a.Engine.ComputeScore(ctx, contact)
}

// BuildDeck builds today's deck at the user's tier quota.
func (a *App) BuildDeck(ctx context.Context, userID string, maxCards int) ([]models.DeckCard, error) {
	return a.Builder.BuildDeck(ctx, userID, maxCards, a.IsPremium(ctx, userID))
}

// ArchiveOldDecks closes out every deck before today.
func (a *App) ArchiveOldDecks(ctx context.Context, userID string) deck.ArchiveSummary {
	return a.Archiver.ArchiveOldDecks(ctx, userID, a.IsPremium(ctx, userID))
}

func (a *App) recalculate(userID, contactID string) {
	a.Engine.Invalidate(userID, contactID)
	if _, err := a.Queue.Enqueue(userID, contactID); err != nil {
		a.Logger.Warn("recalculation not scheduled",
			zap.String("contact_id", contactID),
			zap.Error(err),
		)
	}
}
