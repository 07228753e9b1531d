// ABOUTME: Deck history rollups, one per user and date
// ABOUTME: Archiving writes the rollup and deletes the date's cards atomically
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
)

var ErrHistoryExists = errors.New("deck history already recorded for date")

const historyColumns = `id, user_id, date, is_premium, total_cards, completed, skipped, snoozed,
	pending, active, channel_counts, fresh_shown, fresh_engaged, positive_outcomes,
	neutral_outcomes, negative_outcomes, first_opened_at, last_completed_at, completion_rate,
	average_score, created_at`

// HistoryRepository stores deck history records.
type HistoryRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewHistoryRepository creates a new history repository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db, now: time.Now}
}

// ArchiveDate inserts rec and then deletes every card for rec's user and
// date, in one transaction. Either both happen or neither does. When the
// date already has a record, the existing record is kept, the leftover cards
// are still deleted and ErrHistoryExists is returned with their count.
func (r *HistoryRepository) ArchiveDate(ctx context.Context, rec *models.DeckHistoryRecord) (cardsDeleted int, err error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()

	channels, err := encodeJSON(rec.ChannelCounts)
	if err != nil {
		return 0, fmt.Errorf("failed to encode channel counts: %w", err)
	}
	if channels == nil {
		channels = "{}"
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO deck_history (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO NOTHING
	`,
		rec.ID,
		rec.UserID,
		rec.Date,
		rec.IsPremium,
		rec.TotalCards,
		rec.Completed,
		rec.Skipped,
		rec.Snoozed,
		rec.Pending,
		rec.Active,
		channels,
		rec.FreshShown,
		rec.FreshEngaged,
		rec.PositiveOutcomes,
		rec.NeutralOutcomes,
		rec.NegativeOutcomes,
		nullTime(rec.FirstOpenedAt),
		nullTime(rec.LastCompletedAt),
		rec.CompletionRate,
		rec.AverageScore,
		rec.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert deck history: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	exists := n == 0

	result, err = tx.ExecContext(ctx, `DELETE FROM deck_cards WHERE user_id = ? AND date = ?`, rec.UserID, rec.Date)
	if err != nil {
		return 0, fmt.Errorf("failed to delete archived cards: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if exists {
		return int(deleted), ErrHistoryExists
	}
	return int(deleted), nil
}

// Get returns the record for a date, or nil when the date was never archived.
func (r *HistoryRepository) Get(ctx context.Context, userID, date string) (*models.DeckHistoryRecord, error) {
	recs, err := r.query(ctx, `SELECT `+historyColumns+` FROM deck_history WHERE user_id = ? AND date = ?`, userID, date)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

// List returns the newest records first.
func (r *HistoryRepository) List(ctx context.Context, userID string, limit int) ([]models.DeckHistoryRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	return r.query(ctx, `SELECT `+historyColumns+` FROM deck_history
		WHERE user_id = ? ORDER BY date DESC LIMIT ?`, userID, limit)
}

// Range returns records with from <= date <= to, newest first.
func (r *HistoryRepository) Range(ctx context.Context, userID, from, to string) ([]models.DeckHistoryRecord, error) {
	return r.query(ctx, `SELECT `+historyColumns+` FROM deck_history
		WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date DESC`, userID, from, to)
}

func (r *HistoryRepository) query(ctx context.Context, query string, args ...any) ([]models.DeckHistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var recs []models.DeckHistoryRecord
	for rows.Next() {
		var (
			rec                   models.DeckHistoryRecord
			channels              sql.NullString
			firstOpened, lastDone sql.NullTime
		)
		err := rows.Scan(
			&rec.ID,
			&rec.UserID,
			&rec.Date,
			&rec.IsPremium,
			&rec.TotalCards,
			&rec.Completed,
			&rec.Skipped,
			&rec.Snoozed,
			&rec.Pending,
			&rec.Active,
			&channels,
			&rec.FreshShown,
			&rec.FreshEngaged,
			&rec.PositiveOutcomes,
			&rec.NeutralOutcomes,
			&rec.NegativeOutcomes,
			&firstOpened,
			&lastDone,
			&rec.CompletionRate,
			&rec.AverageScore,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := decodeJSON(channels, &rec.ChannelCounts); err != nil {
			return nil, fmt.Errorf("failed to decode channel counts: %w", err)
		}
		if len(rec.ChannelCounts) == 0 {
			rec.ChannelCounts = nil
		}
		rec.FirstOpenedAt = timePtr(firstOpened)
		rec.LastCompletedAt = timePtr(lastDone)
		rec.CreatedAt = rec.CreatedAt.UTC()
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
