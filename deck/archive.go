// ABOUTME: End-of-day archival of deck cards into history rollups
// ABOUTME: One history record per date, written before that date's cards are deleted
package deck

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/harperreed/kith/db"
	"github.com/harperreed/kith/metrics"
	"github.com/harperreed/kith/models"
)

// ArchiveCardStore reads the cards to archive.
type ArchiveCardStore interface {
	CardsForDate(ctx context.Context, userID, date string) ([]models.DeckCard, error)
	DatesBefore(ctx context.Context, userID, date string) ([]string, error)
}

// HistoryStore persists rollups.
type HistoryStore interface {
	ArchiveDate(ctx context.Context, rec *models.DeckHistoryRecord) (int, error)
	List(ctx context.Context, userID string, limit int) ([]models.DeckHistoryRecord, error)
	Range(ctx context.Context, userID, from, to string) ([]models.DeckHistoryRecord, error)
}

// CardInteractions returns touches linked to deck cards.
type CardInteractions interface {
	ListByCards(ctx context.Context, userID string, cardIDs []string) ([]models.InteractionEvent, error)
}

// OutcomeCounter tallies outcome notes in a time range.
type OutcomeCounter interface {
	CountsBetween(ctx context.Context, userID string, from, to time.Time) (models.OutcomeCounts, error)
}

// ArchiveResult reports one date's archival.
type ArchiveResult struct {
	Date         string `json:"date"`
	Archived     bool   `json:"archived"`
	HistoryID    string `json:"history_id,omitempty"`
	CardsDeleted int    `json:"cards_deleted"`
	Err          error  `json:"-"`
}

// DateError is a per-date archival failure.
type DateError struct {
	Date  string `json:"date"`
	Error string `json:"error"`
}

// ArchiveSummary aggregates archival across dates.
type ArchiveSummary struct {
	ArchivedDates []string    `json:"archived_dates"`
	Errors        []DateError `json:"errors,omitempty"`
}

// Archiver rolls up finished decks and answers history queries.
type Archiver struct {
	cards        ArchiveCardStore
	history      HistoryStore
	interactions CardInteractions
	outcomes     OutcomeCounter
	loc          *time.Location
	logger       *zap.Logger
	now          func() time.Time
}

// NewArchiver creates an archiver. A nil location uses local time.
func NewArchiver(cards ArchiveCardStore, history HistoryStore, interactions CardInteractions, outcomes OutcomeCounter, loc *time.Location, logger *zap.Logger) *Archiver {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		cards:        cards,
		history:      history,
		interactions: interactions,
		outcomes:     outcomes,
		loc:          loc,
		logger:       logger,
		now:          time.Now,
	}
}

// SetClock overrides the archiver clock.
func (a *Archiver) SetClock(now func() time.Time) {
	a.now = now
}

func (a *Archiver) today() string {
	return a.now().In(a.loc).Format(models.DateLayout)
}

// ArchiveDeckSession archives one date. A date without cards is a no-op.
func (a *Archiver) ArchiveDeckSession(ctx context.Context, userID, date string, isPremium bool) ArchiveResult {
	res := ArchiveResult{Date: date}

	cards, err := a.cards.CardsForDate(ctx, userID, date)
	if err != nil {
		res.Err = fmt.Errorf("failed to load cards: %w", err)
		metrics.Archives.WithLabelValues("failed").Inc()
		return res
	}
	if len(cards) == 0 {
		metrics.Archives.WithLabelValues("empty").Inc()
		return res
	}

	rec, err := a.rollup(ctx, userID, date, isPremium, cards)
	if err != nil {
		res.Err = err
		metrics.Archives.WithLabelValues("failed").Inc()
		return res
	}

	deleted, err := a.history.ArchiveDate(ctx, rec)
	if errors.Is(err, db.ErrHistoryExists) {
		a.logger.Debug("deck already archived, cleared leftover cards",
			zap.String("user_id", userID),
			zap.String("date", date),
			zap.Int("cards", deleted),
		)
		metrics.Archives.WithLabelValues("exists").Inc()
		res.Archived = true
		res.CardsDeleted = deleted
		return res
	}
	if err != nil {
		res.Err = fmt.Errorf("failed to archive %s: %w", date, err)
		metrics.Archives.WithLabelValues("failed").Inc()
		return res
	}

	res.Archived = true
	res.HistoryID = rec.ID
	res.CardsDeleted = deleted
	metrics.Archives.WithLabelValues("archived").Inc()
	a.logger.Info("deck archived",
		zap.String("user_id", userID),
		zap.String("date", date),
		zap.Int("cards", deleted),
		zap.Int("completion_rate", rec.CompletionRate),
	)
	return res
}

// rollup computes the history record for a date's cards.
func (a *Archiver) rollup(ctx context.Context, userID, date string, isPremium bool, cards []models.DeckCard) (*models.DeckHistoryRecord, error) {
	rec := &models.DeckHistoryRecord{
		UserID:        userID,
		Date:          date,
		IsPremium:     isPremium,
		TotalCards:    len(cards),
		ChannelCounts: map[string]int{},
	}

	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	linked, err := a.interactions.ListByCards(ctx, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load card interactions: %w", err)
	}
	touched := map[string]bool{}
	for _, ev := range linked {
		ch := ev.Type.Channel()
		if ch == "" {
			continue
		}
		rec.ChannelCounts[string(ch)]++
		touched[ev.CardID] = true
	}

	var scoreSum float64
	for _, c := range cards {
		switch c.Status {
		case models.CardStatusCompleted:
			rec.Completed++
		case models.CardStatusSkipped:
			rec.Skipped++
		case models.CardStatusSnoozed:
			rec.Snoozed++
		case models.CardStatusActive:
			rec.Active++
		default:
			rec.Pending++
		}
		if c.IsFresh {
			rec.FreshShown++
			if c.Status == models.CardStatusCompleted || touched[c.ID] {
				rec.FreshEngaged++
			}
		}
		if c.OpenedAt != nil && (rec.FirstOpenedAt == nil || c.OpenedAt.Before(*rec.FirstOpenedAt)) {
			rec.FirstOpenedAt = c.OpenedAt
		}
		if c.CompletedAt != nil && (rec.LastCompletedAt == nil || c.CompletedAt.After(*rec.LastCompletedAt)) {
			rec.LastCompletedAt = c.CompletedAt
		}
		scoreSum += c.Score
	}
	rec.CompletionRate = int(math.Round(float64(rec.Completed) / float64(rec.TotalCards) * 100))
	rec.AverageScore = int(math.Round(scoreSum / float64(rec.TotalCards)))

	start, err := time.ParseInLocation(models.DateLayout, date, a.loc)
	if err != nil {
		return nil, fmt.Errorf("invalid deck date %q: %w", date, err)
	}
	outcomes, err := a.outcomes.CountsBetween(ctx, userID, start, start.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to count outcomes: %w", err)
	}
	rec.PositiveOutcomes = outcomes.Positive
	rec.NeutralOutcomes = outcomes.Neutral
	rec.NegativeOutcomes = outcomes.Negative
	return rec, nil
}

// ArchiveOldDecks archives every date before today. One date failing does
// not stop the others.
func (a *Archiver) ArchiveOldDecks(ctx context.Context, userID string, isPremium bool) ArchiveSummary {
	summary := ArchiveSummary{ArchivedDates: []string{}}

	dates, err := a.cards.DatesBefore(ctx, userID, a.today())
	if err != nil {
		summary.Errors = append(summary.Errors, DateError{Error: fmt.Sprintf("failed to list old decks: %v", err)})
		return summary
	}

	for _, date := range dates {
		res := a.ArchiveDeckSession(ctx, userID, date, isPremium)
		if res.Err != nil {
			a.logger.Error("archival failed",
				zap.String("user_id", userID),
				zap.String("date", date),
				zap.Error(res.Err),
			)
			summary.Errors = append(summary.Errors, DateError{Date: date, Error: res.Err.Error()})
			continue
		}
		if res.Archived {
			summary.ArchivedDates = append(summary.ArchivedDates, date)
		}
	}
	return summary
}
