// ABOUTME: Daily deck builder producing an idempotent, quota-bounded outreach list
// ABOUTME: Archives prior days, extends today's deck on upgrade and hydrates contacts
package deck

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/harperreed/kith/events"
	"github.com/harperreed/kith/metrics"
	"github.com/harperreed/kith/models"
)

// Ranking algorithms.
const (
	RankingRHS      = "rhs"
	RankingWeighted = "weighted"
)

const (
	DefaultFreeQuota    = 5
	DefaultPremiumQuota = 10

	// BatchSize bounds concurrent contact loads and score computations.
	BatchSize = 10
)

// ContactStore reads contacts for ranking and hydration.
type ContactStore interface {
	ListContacts(ctx context.Context, userID string) ([]models.Contact, error)
	GetContact(ctx context.Context, userID, contactID string) (*models.Contact, error)
}

// CardStore persists deck cards.
type CardStore interface {
	InsertCards(ctx context.Context, cards []models.DeckCard) (int, error)
	CardsForDate(ctx context.Context, userID, date string) ([]models.DeckCard, error)
	CountForDate(ctx context.Context, userID, date string) (int, error)
	GetCard(ctx context.Context, userID, cardID string) (*models.DeckCard, error)
	UpdateCardState(ctx context.Context, c *models.DeckCard) error
}

// Scorer returns a contact's heuristic score.
type Scorer interface {
	RHS(ctx context.Context, contact *models.Contact) (models.RHSScore, error)
}

// OldDeckArchiver closes out decks from previous days.
type OldDeckArchiver interface {
	ArchiveOldDecks(ctx context.Context, userID string, isPremium bool) ArchiveSummary
}

// ActionEmitter records card interactions as action events.
type ActionEmitter interface {
	Emit(ctx context.Context, params events.EmitParams) (events.EmitResult, error)
}

// Config holds quotas, the ranking algorithm and the deck's calendar.
type Config struct {
	FreeQuota    int
	PremiumQuota int
	Ranking      string
	Location     *time.Location
}

// Builder assembles daily decks.
type Builder struct {
	contacts ContactStore
	cards    CardStore
	scorer   Scorer
	archiver OldDeckArchiver
	emitter  ActionEmitter
	touches  CardInteractions
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the builder clock.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithActionEmitter records status changes as card actions.
func WithActionEmitter(e ActionEmitter) Option {
	return func(b *Builder) { b.emitter = e }
}

// WithCardTouches lets completion skip cards whose touch was already logged.
func WithCardTouches(t CardInteractions) Option {
	return func(b *Builder) { b.touches = t }
}

// NewBuilder creates a deck builder. archiver may be nil.
func NewBuilder(contacts ContactStore, cards CardStore, scorer Scorer, archiver OldDeckArchiver, cfg Config, logger *zap.Logger, opts ...Option) *Builder {
	if cfg.FreeQuota <= 0 {
		cfg.FreeQuota = DefaultFreeQuota
	}
	if cfg.PremiumQuota <= 0 {
		cfg.PremiumQuota = DefaultPremiumQuota
	}
	if cfg.Ranking != RankingWeighted {
		cfg.Ranking = RankingRHS
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Builder{
		contacts: contacts,
		cards:    cards,
		scorer:   scorer,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Today returns the current deck date in the configured timezone.
func (b *Builder) Today() string {
	return b.now().In(b.cfg.Location).Format(models.DateLayout)
}

// Quota returns the tier's daily card count.
func (b *Builder) Quota(isPremium bool) int {
	if isPremium {
		return b.cfg.PremiumQuota
	}
	return b.cfg.FreeQuota
}

// BuildDeck returns today's deck, creating or extending it as needed. A
// non-positive maxCards uses the tier quota and larger requests are capped at
// it. Existing cards are never removed.
func (b *Builder) BuildDeck(ctx context.Context, userID string, maxCards int, isPremium bool) ([]models.DeckCard, error) {
	if b.archiver != nil {
		summary := b.archiver.ArchiveOldDecks(ctx, userID, isPremium)
		for _, e := range summary.Errors {
			b.logger.Warn("failed to archive old deck",
				zap.String("user_id", userID),
				zap.String("date", e.Date),
				zap.String("error", e.Error),
			)
		}
	}

	if quota := b.Quota(isPremium); maxCards <= 0 || maxCards > quota {
		maxCards = quota
	}
	date := b.Today()

	existing, err := b.cards.CardsForDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load today's deck: %w", err)
	}
	if len(existing) > 0 && maxCards <= len(existing) {
		metrics.DecksBuilt.WithLabelValues("existing").Inc()
		return b.hydrate(ctx, userID, existing), nil
	}

	exclude := make(map[string]bool, len(existing))
	freshAlready := 0
	for _, c := range existing {
		exclude[c.ContactID] = true
		if c.IsFresh {
			freshAlready++
		}
	}

	candidates, err := b.rank(ctx, userID, exclude)
	if err != nil {
		return nil, err
	}
	picked := Select(candidates, maxCards-len(existing), freshAlready)

	now := b.now().UTC()
	cards := make([]models.DeckCard, 0, len(picked))
	for i, c := range picked {
		contact := c.Contact
		cards = append(cards, models.DeckCard{
			ID:        models.CardID(date, contact.ID),
			UserID:    userID,
			Date:      date,
			ContactID: contact.ID,
			Position:  len(existing) + i,
			Status:    models.CardStatusPending,
			Channel:   SuggestChannel(&contact),
			Reason:    Reason(c),
			Score:     c.Score,
			IsFresh:   c.Fresh,
			CreatedAt: now,
		})
	}

	inserted, err := b.cards.InsertCards(ctx, cards)
	if err != nil {
		return nil, fmt.Errorf("failed to save deck: %w", err)
	}
	metrics.CardsCreated.Add(float64(inserted))
	outcome := "created"
	if len(existing) > 0 {
		outcome = "extended"
	}
	metrics.DecksBuilt.WithLabelValues(outcome).Inc()
	b.logger.Info("deck built",
		zap.String("user_id", userID),
		zap.String("date", date),
		zap.String("outcome", outcome),
		zap.Int("cards", inserted),
		zap.String("ranking", b.cfg.Ranking),
	)

	deck, err := b.cards.CardsForDate(ctx, userID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to reload deck: %w", err)
	}
	return b.hydrate(ctx, userID, deck), nil
}

// rank scores every contact not already on the deck. Contacts whose score
// cannot be computed are skipped.
func (b *Builder) rank(ctx context.Context, userID string, exclude map[string]bool) ([]Candidate, error) {
	all, err := b.contacts.ListContacts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	var pool []models.Contact
	for _, c := range all {
		if !exclude[c.ID] {
			pool = append(pool, c)
		}
	}

	now := b.now()
	scored := make([]*Candidate, len(pool))
	for start := 0; start < len(pool); start += BatchSize {
		end := min(start+BatchSize, len(pool))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				contact := pool[i]
				rhs, err := b.scorer.RHS(gctx, &contact)
				if err != nil {
					b.logger.Warn("skipping contact without score",
						zap.String("contact_id", contact.ID),
						zap.Error(err),
					)
					return nil
				}
				c := Candidate{Contact: contact, Fresh: contact.IsFresh(now), RHS: rhs, Score: rhs.Total}
				if b.cfg.Ranking == RankingWeighted {
					c.Score = WeightedScore(FactorsFor(&contact, rhs.DaysSinceTouch, now))
				}
				scored[i] = &c
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make([]Candidate, 0, len(scored))
	for _, c := range scored {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

// hydrate attaches contacts to cards. Missing contacts leave Contact nil.
func (b *Builder) hydrate(ctx context.Context, userID string, cards []models.DeckCard) []models.DeckCard {
	for start := 0; start < len(cards); start += BatchSize {
		end := min(start+BatchSize, len(cards))
		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			g.Go(func() error {
				contact, err := b.contacts.GetContact(gctx, userID, cards[i].ContactID)
				if err != nil {
					b.logger.Warn("failed to hydrate deck card",
						zap.String("card_id", cards[i].ID),
						zap.Error(err),
					)
					return nil
				}
				cards[i].Contact = contact
				return nil
			})
		}
		_ = g.Wait()
	}
	return cards
}

// TodayDeck returns today's cards without building anything.
func (b *Builder) TodayDeck(ctx context.Context, userID string) ([]models.DeckCard, error) {
	cards, err := b.cards.CardsForDate(ctx, userID, b.Today())
	if err != nil {
		return nil, fmt.Errorf("failed to load today's deck: %w", err)
	}
	return b.hydrate(ctx, userID, cards), nil
}

// IsDailyQuotaExhausted reports whether any card exists for today. Store
// errors report false.
func (b *Builder) IsDailyQuotaExhausted(ctx context.Context, userID string) bool {
	n, err := b.cards.CountForDate(ctx, userID, b.Today())
	if err != nil {
		b.logger.Warn("failed to count today's cards",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return false
	}
	return n > 0
}

// CompletionSource marks the action a completed card recorded in its metadata.
const CompletionSource = "card_completed"

var statusActions = map[string]models.ActionID{
	models.CardStatusActive:  models.ActionCardOpened,
	models.CardStatusSkipped: models.ActionCardSkipped,
	models.CardStatusSnoozed: models.ActionCardSnoozed,
}

// UpdateCardStatus moves a card through its lifecycle.
func (b *Builder) UpdateCardStatus(ctx context.Context, userID, cardID, status string) (*models.DeckCard, error) {
	card, err := b.cards.GetCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if err := card.TransitionStatus(status, b.now().UTC()); err != nil {
		return nil, err
	}
	if err := b.cards.UpdateCardState(ctx, card); err != nil {
		return nil, err
	}

	if b.emitter == nil {
		return card, nil
	}
	action, ok := statusActions[status]
	params := events.EmitParams{
		UserID:    userID,
		ContactID: card.ContactID,
		Metadata:  map[string]any{"card_id": card.ID},
	}
	if status == models.CardStatusCompleted {
		action, ok = b.completionAction(ctx, card)
		params.Channel = card.Channel
		params.Metadata["source"] = CompletionSource
	}
	if !ok {
		return card, nil
	}
	params.ActionID = action
	if _, err := b.emitter.Emit(ctx, params); err != nil {
		b.logger.Warn("failed to record card action",
			zap.String("card_id", card.ID),
			zap.String("action_id", string(action)),
			zap.Error(err),
		)
	}
	return card, nil
}

// completionAction is the touch a completed card stands for. Cards without a
// suggested channel, or whose touch was already logged, record nothing.
func (b *Builder) completionAction(ctx context.Context, card *models.DeckCard) (models.ActionID, bool) {
	action := card.Channel.TouchAction()
	if action == "" {
		return "", false
	}
	if b.touches == nil {
		return action, true
	}
	logged, err := b.touches.ListByCards(ctx, card.UserID, []string{card.ID})
	if err != nil {
		b.logger.Warn("failed to check card touches", zap.String("card_id", card.ID), zap.Error(err))
		return action, true
	}
	for _, ev := range logged {
		if ev.Type.IsTouch() {
			return "", false
		}
	}
	return action, true
}
