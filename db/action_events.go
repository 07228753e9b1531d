// ABOUTME: Append-only action event log with natural-key idempotency
// ABOUTME: Derived events carry a dedupe key and are inserted at most once per key
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/kith/models"
	"github.com/oklog/ulid/v2"
)

var ErrInvalidActionEvent = errors.New("invalid action event")

const actionEventColumns = `id, user_id, contact_id, action_id, category, base_points, multipliers,
	total_multiplier, freshness_bonus, final_points, channel, customization, is_multi_contact,
	metadata, dedupe_key, timestamp`

// ActionEventsRepository stores scored action events.
type ActionEventsRepository struct {
	db *sql.DB
}

// NewActionEventsRepository creates a new action events repository.
func NewActionEventsRepository(db *sql.DB) *ActionEventsRepository {
	return &ActionEventsRepository{db: db}
}

// Append persists an event. A duplicate dedupe key is reported as an error.
func (r *ActionEventsRepository) Append(ctx context.Context, ev *models.ActionEvent) error {
	_, err := r.insert(ctx, ev, "")
	return err
}

// AppendOnce persists an event unless one with the same dedupe key exists.
// inserted is false when the key was already taken.
func (r *ActionEventsRepository) AppendOnce(ctx context.Context, ev *models.ActionEvent) (inserted bool, err error) {
	if ev == nil || ev.DedupeKey == "" {
		return false, ErrInvalidActionEvent
	}
	n, err := r.insert(ctx, ev, `ON CONFLICT(dedupe_key) DO NOTHING`)
	return n > 0, err
}

func (r *ActionEventsRepository) insert(ctx context.Context, ev *models.ActionEvent, onConflict string) (int64, error) {
	if ev == nil || ev.UserID == "" || ev.ContactID == "" || ev.ActionID == "" {
		return 0, ErrInvalidActionEvent
	}
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	ev.Timestamp = ev.Timestamp.UTC()

	multipliers, err := encodeJSON(ev.Multipliers)
	if err != nil {
		return 0, fmt.Errorf("failed to encode multipliers: %w", err)
	}
	metadata, err := encodeJSON(ev.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `INSERT INTO action_events (` + actionEventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ` + onConflict

	result, err := r.db.ExecContext(ctx, query,
		ev.ID,
		ev.UserID,
		ev.ContactID,
		string(ev.ActionID),
		string(ev.Category),
		ev.BasePoints,
		multipliers,
		ev.TotalMultiplier,
		ev.FreshnessBonus,
		ev.FinalPoints,
		nullString(string(ev.Channel)),
		nullString(string(ev.Customization)),
		ev.IsMultiContact,
		metadata,
		nullString(ev.DedupeKey),
		ev.Timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert action event: %w", err)
	}
	return result.RowsAffected()
}

// ListByContact returns the contact's events at or after since, oldest first.
func (r *ActionEventsRepository) ListByContact(ctx context.Context, userID, contactID string, since time.Time) ([]models.ActionEvent, error) {
	query := `SELECT ` + actionEventColumns + ` FROM action_events
		WHERE user_id = ? AND contact_id = ? AND timestamp >= ?
		ORDER BY timestamp, id`
	return r.query(ctx, query, userID, contactID, since.UTC())
}

// Recent returns the user's latest events across all contacts, newest first.
func (r *ActionEventsRepository) Recent(ctx context.Context, userID string, limit int) ([]models.ActionEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + actionEventColumns + ` FROM action_events
		WHERE user_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`
	return r.query(ctx, query, userID, limit)
}

// LastOccurrence returns when the action was last recorded for the contact, or nil.
func (r *ActionEventsRepository) LastOccurrence(ctx context.Context, userID, contactID string, action models.ActionID) (*time.Time, error) {
	query := `SELECT timestamp FROM action_events
		WHERE user_id = ? AND contact_id = ? AND action_id = ?
		ORDER BY timestamp DESC LIMIT 1`

	var t time.Time
	err := r.db.QueryRowContext(ctx, query, userID, contactID, string(action)).Scan(&t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

func (r *ActionEventsRepository) query(ctx context.Context, query string, args ...any) ([]models.ActionEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var events []models.ActionEvent
	for rows.Next() {
		var (
			ev                    models.ActionEvent
			actionID, category    string
			multipliers, metadata sql.NullString
			channel, custom       sql.NullString
			dedupe                sql.NullString
		)
		err := rows.Scan(
			&ev.ID,
			&ev.UserID,
			&ev.ContactID,
			&actionID,
			&category,
			&ev.BasePoints,
			&multipliers,
			&ev.TotalMultiplier,
			&ev.FreshnessBonus,
			&ev.FinalPoints,
			&channel,
			&custom,
			&ev.IsMultiContact,
			&metadata,
			&dedupe,
			&ev.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		ev.ActionID = models.ActionID(actionID)
		ev.Category = models.Category(category)
		ev.Channel = models.Channel(channel.String)
		ev.Customization = models.CustomizationLevel(custom.String)
		ev.DedupeKey = dedupe.String
		ev.Timestamp = ev.Timestamp.UTC()
		if err := decodeJSON(multipliers, &ev.Multipliers); err != nil {
			return nil, fmt.Errorf("failed to decode multipliers: %w", err)
		}
		if err := decodeJSON(metadata, &ev.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
