// ABOUTME: Append-only interaction log shared by one or more contacts
// ABOUTME: Logging a touch also records the contacts' first engagement
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/kith/models"
	"github.com/oklog/ulid/v2"
)

var ErrInvalidInteraction = errors.New("invalid interaction")

var touchTypes = []any{
	string(models.InteractionSMSSent),
	string(models.InteractionCallMade),
	string(models.InteractionEmailSent),
	string(models.InteractionFacetimeMade),
	string(models.InteractionSlackSent),
}

const interactionSelect = `
	SELECT e.id, e.user_id, e.type, e.timestamp, e.card_id, e.metadata,
	       (SELECT group_concat(ic.contact_id) FROM interaction_contacts ic WHERE ic.event_id = e.id)
	FROM interaction_events e
`

// InteractionQuery narrows a per-contact query. Zero times are open bounds.
type InteractionQuery struct {
	From  time.Time
	To    time.Time
	Limit int
}

// InteractionsRepository stores interaction events.
type InteractionsRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewInteractionsRepository creates a new interactions repository.
func NewInteractionsRepository(db *sql.DB) *InteractionsRepository {
	return &InteractionsRepository{db: db, now: time.Now}
}

// Append writes the event and its contact links in one transaction. Touch
// events set first_engagement_at on contacts that have none.
func (r *InteractionsRepository) Append(ctx context.Context, ev *models.InteractionEvent) (string, error) {
	if ev == nil || ev.UserID == "" || !ev.Type.Valid() || len(ev.ContactIDs) == 0 {
		return "", ErrInvalidInteraction
	}
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now()
	}
	ev.Timestamp = ev.Timestamp.UTC()

	metadata, err := encodeJSON(ev.Metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO interaction_events (id, user_id, type, timestamp, card_id, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.UserID, string(ev.Type), ev.Timestamp, nullString(ev.CardID), metadata)
	if err != nil {
		return "", fmt.Errorf("failed to insert interaction: %w", err)
	}

	for _, contactID := range ev.ContactIDs {
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO interaction_contacts (event_id, contact_id) VALUES (?, ?)`,
			ev.ID, contactID)
		if err != nil {
			return "", fmt.Errorf("failed to link contact: %w", err)
		}
	}

	if ev.Type.IsTouch() {
		args := []any{ev.Timestamp, r.now().UTC(), ev.UserID}
		for _, id := range ev.ContactIDs {
			args = append(args, id)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE contacts SET first_engagement_at = ?, updated_at = ?
			WHERE user_id = ? AND id IN (`+placeholders(len(ev.ContactIDs))+`)
			  AND first_engagement_at IS NULL
		`, args...)
		if err != nil {
			return "", fmt.Errorf("failed to mark engagement: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return ev.ID, nil
}

// TouchTimes returns the timestamps of every touch involving the contact, oldest first.
func (r *InteractionsRepository) TouchTimes(ctx context.Context, userID, contactID string) ([]time.Time, error) {
	query := `
		SELECT e.timestamp
		FROM interaction_events e
		JOIN interaction_contacts ic ON ic.event_id = e.id
		WHERE e.user_id = ? AND ic.contact_id = ? AND e.type IN (` + placeholders(len(touchTypes)) + `)
		ORDER BY e.timestamp
	`
	args := append([]any{userID, contactID}, touchTypes...)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t.UTC())
	}
	return times, rows.Err()
}

// QueryByContact returns the contact's events newest first.
func (r *InteractionsRepository) QueryByContact(ctx context.Context, userID, contactID string, q InteractionQuery) ([]models.InteractionEvent, error) {
	var b strings.Builder
	b.WriteString(interactionSelect)
	b.WriteString(` JOIN interaction_contacts c ON c.event_id = e.id WHERE e.user_id = ? AND c.contact_id = ?`)
	args := []any{userID, contactID}
	if !q.From.IsZero() {
		b.WriteString(` AND e.timestamp >= ?`)
		args = append(args, q.From.UTC())
	}
	if !q.To.IsZero() {
		b.WriteString(` AND e.timestamp < ?`)
		args = append(args, q.To.UTC())
	}
	b.WriteString(` ORDER BY e.timestamp DESC`)
	if q.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}
	return r.query(ctx, b.String(), args...)
}

// QueryRecent returns the user's latest events across all contacts.
func (r *InteractionsRepository) QueryRecent(ctx context.Context, userID string, limit int) ([]models.InteractionEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	query := interactionSelect + ` WHERE e.user_id = ? ORDER BY e.timestamp DESC LIMIT ?`
	return r.query(ctx, query, userID, limit)
}

// ListByCards returns events linked to any of the given deck cards.
func (r *InteractionsRepository) ListByCards(ctx context.Context, userID string, cardIDs []string) ([]models.InteractionEvent, error) {
	if len(cardIDs) == 0 {
		return nil, nil
	}
	args := []any{userID}
	for _, id := range cardIDs {
		args = append(args, id)
	}
	query := interactionSelect + ` WHERE e.user_id = ? AND e.card_id IN (` + placeholders(len(cardIDs)) + `) ORDER BY e.timestamp`
	return r.query(ctx, query, args...)
}

func (r *InteractionsRepository) query(ctx context.Context, query string, args ...any) ([]models.InteractionEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []models.InteractionEvent
	for rows.Next() {
		var (
			ev         models.InteractionEvent
			typ        string
			cardID     sql.NullString
			metadata   sql.NullString
			contactIDs sql.NullString
		)
		if err := rows.Scan(&ev.ID, &ev.UserID, &typ, &ev.Timestamp, &cardID, &metadata, &contactIDs); err != nil {
			return nil, err
		}
		ev.Type = models.InteractionType(typ)
		ev.Timestamp = ev.Timestamp.UTC()
		ev.CardID = cardID.String
		if contactIDs.Valid && contactIDs.String != "" {
			ev.ContactIDs = strings.Split(contactIDs.String, ",")
		}
		if err := decodeJSON(metadata, &ev.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
