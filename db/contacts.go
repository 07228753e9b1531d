// ABOUTME: Contact repository over the contacts table
// ABOUTME: Handles contact CRUD, cadence updates and first-engagement tracking
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/kith/models"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrInvalidContact  = errors.New("invalid contact")
)

const contactColumns = `id, user_id, name, phones, emails, tags, mutuality, cadence_days,
	first_seen_at, first_engagement_at, created_at, updated_at`

// ContactsRepository stores contacts per user.
type ContactsRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewContactsRepository creates a new contacts repository.
func NewContactsRepository(db *sql.DB) *ContactsRepository {
	return &ContactsRepository{db: db, now: time.Now}
}

// Create inserts a contact, assigning an ID and timestamps when missing.
// FirstSeenAt defaults to now.
func (r *ContactsRepository) Create(ctx context.Context, c *models.Contact) error {
	if c == nil || c.UserID == "" || strings.TrimSpace(c.Name) == "" {
		return ErrInvalidContact
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}

	now := r.now().UTC()
	if c.FirstSeenAt.IsZero() {
		c.FirstSeenAt = now
	}
	c.CreatedAt = now
	c.UpdatedAt = now

	phones, err := encodeList(c.Phones)
	if err != nil {
		return err
	}
	emails, err := encodeList(c.Emails)
	if err != nil {
		return err
	}
	tags, err := encodeList(c.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contacts (` + contactColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		c.ID,
		c.UserID,
		c.Name,
		phones,
		emails,
		tags,
		nullInt(c.Mutuality),
		nullInt(c.CadenceDays),
		c.FirstSeenAt.UTC(),
		nullTime(c.FirstEngagementAt),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var (
		c                    models.Contact
		phones, emails, tags string
		mutuality, cadence   sql.NullInt64
		firstEngagement      sql.NullTime
	)
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&phones,
		&emails,
		&tags,
		&mutuality,
		&cadence,
		&c.FirstSeenAt,
		&firstEngagement,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if c.Phones, err = decodeList(phones); err != nil {
		return nil, fmt.Errorf("failed to decode phones: %w", err)
	}
	if c.Emails, err = decodeList(emails); err != nil {
		return nil, fmt.Errorf("failed to decode emails: %w", err)
	}
	if c.Tags, err = decodeList(tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	c.Mutuality = intPtr(mutuality)
	c.CadenceDays = intPtr(cadence)
	c.FirstEngagementAt = timePtr(firstEngagement)
	c.FirstSeenAt = c.FirstSeenAt.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

// GetContact retrieves one of the user's contacts.
func (r *ContactsRepository) GetContact(ctx context.Context, userID, contactID string) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = ? AND id = ?`

	c, err := scanContact(r.db.QueryRowContext(ctx, query, userID, contactID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrContactNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListContacts returns all of the user's contacts ordered by name.
func (r *ContactsRepository) ListContacts(ctx context.Context, userID string) ([]models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = ? ORDER BY name, id`
	return r.query(ctx, query, userID)
}

// FindContacts searches names, phones and emails. An empty query lists everything.
func (r *ContactsRepository) FindContacts(ctx context.Context, userID, q string, limit int) ([]models.Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = ?
		  AND (? = '' OR name LIKE ? OR phones LIKE ? OR emails LIKE ?)
		ORDER BY name, id
		LIMIT ?
	`
	pattern := "%" + q + "%"
	return r.query(ctx, query, userID, q, pattern, pattern, pattern, limit)
}

// GetContactsByIDs loads the given contacts; missing ids are skipped.
func (r *ContactsRepository) GetContactsByIDs(ctx context.Context, userID string, ids []string) ([]models.Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for _, id := range ids {
		args = append(args, id)
	}
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = ? AND id IN (` + placeholders(len(ids)) + `)`
	return r.query(ctx, query, args...)
}

func (r *ContactsRepository) query(ctx context.Context, query string, args ...any) ([]models.Contact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []models.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, *c)
	}
	return contacts, rows.Err()
}

// UpdateContactCadence sets or clears (nil) the desired contact interval.
func (r *ContactsRepository) UpdateContactCadence(ctx context.Context, userID, contactID string, days *int) error {
	query := `UPDATE contacts SET cadence_days = ?, updated_at = ? WHERE user_id = ? AND id = ?`
	return r.exec(ctx, query, nullInt(days), r.now().UTC(), userID, contactID)
}

// UpdateContact overwrites the editable fields.
func (r *ContactsRepository) UpdateContact(ctx context.Context, c *models.Contact) error {
	phones, err := encodeList(c.Phones)
	if err != nil {
		return err
	}
	emails, err := encodeList(c.Emails)
	if err != nil {
		return err
	}
	tags, err := encodeList(c.Tags)
	if err != nil {
		return err
	}
	c.UpdatedAt = r.now().UTC()

	query := `
		UPDATE contacts
		SET name = ?, phones = ?, emails = ?, tags = ?, mutuality = ?, cadence_days = ?, updated_at = ?
		WHERE user_id = ? AND id = ?
	`
	return r.exec(ctx, query, c.Name, phones, emails, tags,
		nullInt(c.Mutuality), nullInt(c.CadenceDays), c.UpdatedAt, c.UserID, c.ID)
}

// MarkEngaged records the first engagement time if none is set yet.
func (r *ContactsRepository) MarkEngaged(ctx context.Context, userID, contactID string, at time.Time) error {
	query := `
		UPDATE contacts SET first_engagement_at = ?, updated_at = ?
		WHERE user_id = ? AND id = ? AND first_engagement_at IS NULL
	`
	_, err := r.db.ExecContext(ctx, query, at.UTC(), r.now().UTC(), userID, contactID)
	return err
}

// DeleteContact removes a contact.
func (r *ContactsRepository) DeleteContact(ctx context.Context, userID, contactID string) error {
	return r.exec(ctx, `DELETE FROM contacts WHERE user_id = ? AND id = ?`, userID, contactID)
}

// exec runs a single-row statement, mapping zero affected rows to ErrContactNotFound.
func (r *ContactsRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrContactNotFound
	}
	return nil
}
