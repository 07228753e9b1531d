// ABOUTME: Read-only aggregates over deck history
// ABOUTME: Streaks, completion and fresh-conversion rates, history listings
package deck

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/harperreed/kith/models"
)

// maxStreakDays bounds how far back a streak is walked.
const maxStreakDays = 3650

// CalculateStreak counts consecutive days, ending yesterday or today, with at
// least one completed card. Today is skipped when it has no record yet.
func (a *Archiver) CalculateStreak(ctx context.Context, userID string) int {
	today := a.now().In(a.loc)
	from := today.AddDate(0, 0, -maxStreakDays).Format(models.DateLayout)
	recs, err := a.history.Range(ctx, userID, from, today.Format(models.DateLayout))
	if err != nil {
		a.logger.Warn("failed to load history for streak", zap.String("user_id", userID), zap.Error(err))
		return 0
	}

	byDate := make(map[string]models.DeckHistoryRecord, len(recs))
	for _, r := range recs {
		byDate[r.Date] = r
	}

	day := today
	if _, ok := byDate[day.Format(models.DateLayout)]; !ok {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for i := 0; i < maxStreakDays; i++ {
		rec, ok := byDate[day.Format(models.DateLayout)]
		if !ok || rec.Completed == 0 {
			break
		}
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// window returns history for the last days days, including today.
func (a *Archiver) window(ctx context.Context, userID string, days int) []models.DeckHistoryRecord {
	if days <= 0 {
		return nil
	}
	today := a.now().In(a.loc)
	from := today.AddDate(0, 0, -(days - 1)).Format(models.DateLayout)
	recs, err := a.history.Range(ctx, userID, from, today.Format(models.DateLayout))
	if err != nil {
		a.logger.Warn("failed to load history range", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return recs
}

// CompletionRate is completed cards over shown cards in the window, as a
// percentage. No cards means 0.
func (a *Archiver) CompletionRate(ctx context.Context, userID string, days int) float64 {
	var completed, total int
	for _, r := range a.window(ctx, userID, days) {
		completed += r.Completed
		total += r.TotalCards
	}
	return ratio(completed, total)
}

// FreshConversionRate is engaged fresh cards over shown fresh cards, as a percentage.
func (a *Archiver) FreshConversionRate(ctx context.Context, userID string, days int) float64 {
	var engaged, shown int
	for _, r := range a.window(ctx, userID, days) {
		engaged += r.FreshEngaged
		shown += r.FreshShown
	}
	return ratio(engaged, shown)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}

// History returns the newest records first. Errors yield an empty list.
func (a *Archiver) History(ctx context.Context, userID string, limit int) []models.DeckHistoryRecord {
	recs, err := a.history.List(ctx, userID, limit)
	if err != nil {
		a.logger.Warn("failed to list history", zap.String("user_id", userID), zap.Error(err))
		return []models.DeckHistoryRecord{}
	}
	if recs == nil {
		recs = []models.DeckHistoryRecord{}
	}
	return recs
}

// HistoryRange returns records between two dates inclusive, newest first.
func (a *Archiver) HistoryRange(ctx context.Context, userID string, from, to time.Time) []models.DeckHistoryRecord {
	recs, err := a.history.Range(ctx, userID,
		from.In(a.loc).Format(models.DateLayout), to.In(a.loc).Format(models.DateLayout))
	if err != nil {
		a.logger.Warn("failed to load history range", zap.String("user_id", userID), zap.Error(err))
		return []models.DeckHistoryRecord{}
	}
	if recs == nil {
		recs = []models.DeckHistoryRecord{}
	}
	return recs
}
