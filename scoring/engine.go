// ABOUTME: Score engine owning both scoring models and their caches
// ABOUTME: Loads inputs from the stores, serves cached scores and persists snapshots
package scoring

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harperreed/kith/models"
)

// BatchSize bounds concurrent work in batch operations.
const BatchSize = 10

// ContactSource reads contacts.
type ContactSource interface {
	GetContact(ctx context.Context, userID, contactID string) (*models.Contact, error)
}

// TouchSource returns the times a user reached out to a contact via the interaction log.
type TouchSource interface {
	TouchTimes(ctx context.Context, userID, contactID string) ([]time.Time, error)
}

// ActionSource returns a contact's action events since a point in time.
type ActionSource interface {
	ListByContact(ctx context.Context, userID, contactID string, since time.Time) ([]models.ActionEvent, error)
}

// OutcomeSource tallies outcome notes for a contact.
type OutcomeSource interface {
	CountsByContact(ctx context.Context, userID, contactID string) (models.OutcomeCounts, error)
}

// SnapshotStore persists the latest score per contact and model.
type SnapshotStore interface {
	SaveScore(ctx context.Context, userID string, rec models.ScoreRecord) error
}

// Stores groups the engine's collaborators.
type Stores struct {
	Contacts  ContactSource
	Touches   TouchSource
	Actions   ActionSource
	Outcomes  OutcomeSource
	Snapshots SnapshotStore
}

// EngineConfig holds tunables. Zero values fall back to defaults.
type EngineConfig struct {
	Model         string // models.ModelContact or models.ModelRHS
	CacheTTL      time.Duration
	CacheCapacity int
}

// Engine computes, caches and persists scores.
type Engine struct {
	stores       Stores
	model        string
	rhsCache     *Cache[models.RHSScore]
	contactCache *Cache[models.ContactScore]
	logger       *zap.Logger
	now          func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock overrides the engine clock and its caches' clocks.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine with its own caches.
func NewEngine(stores Stores, cfg EngineConfig, logger *zap.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		stores: stores,
		model:  cfg.Model,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.model != models.ModelRHS {
		e.model = models.ModelContact
	}
	e.rhsCache = NewCache[models.RHSScore](cfg.CacheTTL, cfg.CacheCapacity,
		WithCacheName(models.ModelRHS), WithCacheClock(e.now))
	e.contactCache = NewCache[models.ContactScore](cfg.CacheTTL, cfg.CacheCapacity,
		WithCacheName(models.ModelContact), WithCacheClock(e.now))
	return e
}

// Model returns the model ComputeScore reports.
func (e *Engine) Model() string {
	return e.model
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.now()
}

// RHS returns the heuristic score for a contact, from cache when the contact's
// latest touch has not moved.
func (e *Engine) RHS(ctx context.Context, contact *models.Contact) (models.RHSScore, error) {
	touches, err := e.touches(ctx, contact.UserID, contact.ID)
	if err != nil {
		return models.RHSScore{}, err
	}
	marker := touchMarker(touches)
	if s, ok := e.rhsCache.Get(contact.UserID, contact.ID, marker); ok {
		return s, nil
	}

	outcomes, err := e.stores.Outcomes.CountsByContact(ctx, contact.UserID, contact.ID)
	if err != nil {
		return models.RHSScore{}, fmt.Errorf("failed to count outcomes: %w", err)
	}

	s := ComputeRHS(RHSInput{
		Contact:  *contact,
		Touches:  touches,
		Outcomes: outcomes,
		Now:      e.now(),
	})
	e.rhsCache.Set(contact.UserID, contact.ID, marker, s)
	return s, nil
}

// touches merges the interaction log with meaningful action events.
func (e *Engine) touches(ctx context.Context, userID, contactID string) ([]time.Time, error) {
	touches, err := e.stores.Touches.TouchTimes(ctx, userID, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load touches: %w", err)
	}
	events, err := e.stores.Actions.ListByContact(ctx, userID, contactID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("failed to load action events: %w", err)
	}
	for _, ev := range events {
		if ev.Def().Meaningful {
			touches = append(touches, ev.Timestamp)
		}
	}
	return touches, nil
}

// ContactScore returns the accumulation score for a contact. Its cache entry
// lives until the TTL or an explicit invalidation.
func (e *Engine) ContactScore(ctx context.Context, userID, contactID string) (models.ContactScore, error) {
	if s, ok := e.contactCache.Get(userID, contactID, ""); ok {
		return s, nil
	}

	now := e.now()
	since := now.AddDate(0, 0, -ScoreWindowDays)
	events, err := e.stores.Actions.ListByContact(ctx, userID, contactID, since)
	if err != nil {
		return models.ContactScore{}, fmt.Errorf("failed to load action events: %w", err)
	}

	s := ComputeContactScore(userID, contactID, events, now)
	e.contactCache.Set(userID, contactID, "", s)
	return s, nil
}

// ComputeScore returns the configured model's score for a contact.
func (e *Engine) ComputeScore(ctx context.Context, contact *models.Contact) (models.ScoreRecord, error) {
	return e.computeModel(ctx, e.model, contact)
}

func (e *Engine) computeModel(ctx context.Context, model string, contact *models.Contact) (models.ScoreRecord, error) {
	rec := models.ScoreRecord{Model: model, ContactID: contact.ID}
	if model == models.ModelRHS {
		s, err := e.RHS(ctx, contact)
		if err != nil {
			return rec, err
		}
		rec.RHS = &s
		rec.Total = s.Total
		return rec, nil
	}

	s, err := e.ContactScore(ctx, contact.UserID, contact.ID)
	if err != nil {
		return rec, err
	}
	rec.Contact = &s
	rec.Total = s.FinalScore
	return rec, nil
}

// Invalidate drops both cached scores for a contact.
func (e *Engine) Invalidate(userID, contactID string) {
	e.rhsCache.Invalidate(userID, contactID)
	e.contactCache.Invalidate(userID, contactID)
}

// InvalidateAll drops every cached score for a user.
func (e *Engine) InvalidateAll(userID string) {
	e.rhsCache.InvalidateAll(userID)
	e.contactCache.InvalidateAll(userID)
}

// Recalculate invalidates, recomputes both models and persists their snapshots.
func (e *Engine) Recalculate(ctx context.Context, userID, contactID string) error {
	e.Invalidate(userID, contactID)

	contact, err := e.stores.Contacts.GetContact(ctx, userID, contactID)
	if err != nil {
		return fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil {
		return fmt.Errorf("contact %s not found", contactID)
	}

	for _, model := range []string{models.ModelRHS, models.ModelContact} {
		rec, err := e.computeModel(ctx, model, contact)
		if err != nil {
			return fmt.Errorf("failed to compute %s score: %w", model, err)
		}
		if err := e.stores.Snapshots.SaveScore(ctx, userID, rec); err != nil {
			return err
		}
	}
	return nil
}

// PersistScores computes and saves the configured model's score for each
// contact. Chunks run one after another; contacts within a chunk run concurrently.
func (e *Engine) PersistScores(ctx context.Context, userID string, contacts []models.Contact) error {
	for start := 0; start < len(contacts); start += BatchSize {
		end := min(start+BatchSize, len(contacts))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			contact := contacts[i]
			g.Go(func() error {
				rec, err := e.ComputeScore(gctx, &contact)
				if err != nil {
					return err
				}
				return e.stores.Snapshots.SaveScore(gctx, userID, rec)
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("failed to persist scores: %w", err)
		}
	}
	e.logger.Debug("persisted scores",
		zap.String("user_id", userID),
		zap.Int("contacts", len(contacts)),
	)
	return nil
}
