// ABOUTME: Deck card rows, one per user, date and contact
// ABOUTME: Cards are inserted by composite id so concurrent builders converge
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/harperreed/kith/models"
)

var ErrCardNotFound = errors.New("deck card not found")

const cardColumns = `id, user_id, date, contact_id, position, status, channel, reason, score,
	is_fresh, created_at, opened_at, completed_at`

// DeckRepository stores the working deck cards.
type DeckRepository struct {
	db *sql.DB
}

// NewDeckRepository creates a new deck repository.
func NewDeckRepository(db *sql.DB) *DeckRepository {
	return &DeckRepository{db: db}
}

// InsertCards writes cards in one transaction, skipping any whose id or
// (user, date, contact) already exists. Returns how many rows were written.
func (r *DeckRepository) InsertCards(ctx context.Context, cards []models.DeckCard) (int, error) {
	if len(cards) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO deck_cards (`+cardColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, c := range cards {
		result, err := stmt.ExecContext(ctx,
			c.ID,
			c.UserID,
			c.Date,
			c.ContactID,
			c.Position,
			c.Status,
			string(c.Channel),
			c.Reason,
			c.Score,
			c.IsFresh,
			c.CreatedAt.UTC(),
			nullTime(c.OpenedAt),
			nullTime(c.CompletedAt),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert deck card: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// CardsForDate returns a date's cards in deck order.
func (r *DeckRepository) CardsForDate(ctx context.Context, userID, date string) ([]models.DeckCard, error) {
	query := `SELECT ` + cardColumns + ` FROM deck_cards
		WHERE user_id = ? AND date = ?
		ORDER BY position, created_at, id`
	return r.query(ctx, query, userID, date)
}

// CountForDate returns how many cards exist for a date.
func (r *DeckRepository) CountForDate(ctx context.Context, userID, date string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deck_cards WHERE user_id = ? AND date = ?`, userID, date).Scan(&n)
	return n, err
}

// DatesBefore returns the distinct dates with cards strictly before date, oldest first.
func (r *DeckRepository) DatesBefore(ctx context.Context, userID, date string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT date FROM deck_cards
		WHERE user_id = ? AND date < ?
		ORDER BY date
	`, userID, date)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// GetCard retrieves one card.
func (r *DeckRepository) GetCard(ctx context.Context, userID, cardID string) (*models.DeckCard, error) {
	cards, err := r.query(ctx, `SELECT `+cardColumns+` FROM deck_cards WHERE user_id = ? AND id = ?`, userID, cardID)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrCardNotFound
	}
	return &cards[0], nil
}

// UpdateCardState persists a card's status and lifecycle timestamps.
func (r *DeckRepository) UpdateCardState(ctx context.Context, c *models.DeckCard) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE deck_cards SET status = ?, opened_at = ?, completed_at = ?
		WHERE user_id = ? AND id = ?
	`, c.Status, nullTime(c.OpenedAt), nullTime(c.CompletedAt), c.UserID, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update deck card: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCardNotFound
	}
	return nil
}

func (r *DeckRepository) query(ctx context.Context, query string, args ...any) ([]models.DeckCard, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var cards []models.DeckCard
	for rows.Next() {
		var (
			c                 models.DeckCard
			channel           string
			opened, completed sql.NullTime
		)
		err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.Date,
			&c.ContactID,
			&c.Position,
			&c.Status,
			&channel,
			&c.Reason,
			&c.Score,
			&c.IsFresh,
			&c.CreatedAt,
			&opened,
			&completed,
		)
		if err != nil {
			return nil, err
		}
		c.Channel = models.Channel(channel)
		c.CreatedAt = c.CreatedAt.UTC()
		c.OpenedAt = timePtr(opened)
		c.CompletedAt = timePtr(completed)
		cards = append(cards, c)
	}
	return cards, rows.Err()
}
