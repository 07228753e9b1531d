// ABOUTME: Outcome notes recording how a conversation with a contact went
// ABOUTME: Provides sentiment tallies per contact and per calendar day
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

var ErrInvalidOutcome = errors.New("invalid outcome note")

// OutcomesRepository stores outcome notes.
type OutcomesRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOutcomesRepository creates a new outcomes repository.
func NewOutcomesRepository(db *sql.DB) *OutcomesRepository {
	return &OutcomesRepository{db: db, now: time.Now}
}

// Create records an outcome note.
func (r *OutcomesRepository) Create(ctx context.Context, n *models.OutcomeNote) error {
	if n == nil || n.UserID == "" || n.ContactID == "" || !models.ValidSentiment(n.Sentiment) {
		return ErrInvalidOutcome
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = r.now()
	}
	n.CreatedAt = n.CreatedAt.UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outcome_notes (id, user_id, contact_id, sentiment, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, n.ID, n.UserID, n.ContactID, n.Sentiment, nullString(n.Note), n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create outcome note: %w", err)
	}
	return nil
}

// CountsByContact tallies every outcome note recorded for the contact.
func (r *OutcomesRepository) CountsByContact(ctx context.Context, userID, contactID string) (models.OutcomeCounts, error) {
	return r.counts(ctx, `WHERE user_id = ? AND contact_id = ?`, userID, contactID)
}

// CountsBetween tallies notes created in [from, to).
func (r *OutcomesRepository) CountsBetween(ctx context.Context, userID string, from, to time.Time) (models.OutcomeCounts, error) {
	return r.counts(ctx, `WHERE user_id = ? AND created_at >= ? AND created_at < ?`, userID, from.UTC(), to.UTC())
}

func (r *OutcomesRepository) counts(ctx context.Context, where string, args ...any) (models.OutcomeCounts, error) {
	var c models.OutcomeCounts
	rows, err := r.db.QueryContext(ctx, `SELECT sentiment, COUNT(*) FROM outcome_notes `+where+` GROUP BY sentiment`, args...)
	if err != nil {
		return c, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var sentiment string
		var n int
		if err := rows.Scan(&sentiment, &n); err != nil {
			return c, err
		}
		switch sentiment {
		case models.SentimentPositive:
			c.Positive = n
		case models.SentimentNeutral:
			c.Neutral = n
		case models.SentimentNegative:
			c.Negative = n
		}
	}
	return c, rows.Err()
}

// ListByContact returns the contact's notes newest first.
func (r *OutcomesRepository) ListByContact(ctx context.Context, userID, contactID string, limit int) ([]models.OutcomeNote, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, contact_id, sentiment, note, created_at
		FROM outcome_notes
		WHERE user_id = ? AND contact_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, contactID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var notes []models.OutcomeNote
	for rows.Next() {
		var n models.OutcomeNote
		var note sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.ContactID, &n.Sentiment, &note, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Note = note.String
		n.CreatedAt = n.CreatedAt.UTC()
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
