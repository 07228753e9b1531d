// ABOUTME: Daily deck cards and end-of-day history rollups
// ABOUTME: Card status lifecycle and transition rules live here
package models

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for deck dates.
const DateLayout = "2006-01-02"

// Card statuses.
const (
	CardStatusPending   = "pending"
	CardStatusActive    = "active"
	CardStatusCompleted = "completed"
	CardStatusSkipped   = "skipped"
	CardStatusSnoozed   = "snoozed"
)

var ErrInvalidTransition = errors.New("invalid card status transition")

var cardTransitions = map[string][]string{
	CardStatusPending: {CardStatusActive, CardStatusCompleted, CardStatusSkipped, CardStatusSnoozed},
	CardStatusActive:  {CardStatusCompleted, CardStatusSkipped, CardStatusSnoozed},
}

// DeckCard is one contact surfaced on one day's deck.
type DeckCard struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Date        string     `json:"date"`
	ContactID   string     `json:"contact_id"`
	Position    int        `json:"position"`
	Status      string     `json:"status"`
	Channel     Channel    `json:"channel"`
	Reason      string     `json:"reason"`
	Score       float64    `json:"score"`
	IsFresh     bool       `json:"is_fresh"`
	CreatedAt   time.Time  `json:"created_at"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Contact     *Contact   `json:"contact,omitempty"`
}

// CardID builds the composite natural key for a card.
func CardID(date, contactID string) string {
	return date + "-" + contactID
}

// IsTerminal reports whether the card has been acted on.
func (c *DeckCard) IsTerminal() bool {
	switch c.Status {
	case CardStatusCompleted, CardStatusSkipped, CardStatusSnoozed:
		return true
	}
	return false
}

// TransitionStatus validates and applies a status change, stamping timestamps.
func (c *DeckCard) TransitionStatus(newStatus string, at time.Time) error {
	allowed := false
	for _, s := range cardTransitions[c.Status] {
		if s == newStatus {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, newStatus)
	}

	if c.OpenedAt == nil {
		c.OpenedAt = &at
	}
	if newStatus == CardStatusCompleted {
		c.CompletedAt = &at
	}
	c.Status = newStatus
	return nil
}

// DeckHistoryRecord is the archived summary of one day's deck.
type DeckHistoryRecord struct {
	ID               string         `json:"id"`
	UserID           string         `json:"user_id"`
	Date             string         `json:"date"`
	IsPremium        bool           `json:"is_premium"`
	TotalCards       int            `json:"total_cards"`
	Completed        int            `json:"completed"`
	Skipped          int            `json:"skipped"`
	Snoozed          int            `json:"snoozed"`
	Pending          int            `json:"pending"`
	Active           int            `json:"active"`
	ChannelCounts    map[string]int `json:"channel_counts,omitempty"`
	FreshShown       int            `json:"fresh_shown"`
	FreshEngaged     int            `json:"fresh_engaged"`
	PositiveOutcomes int            `json:"positive_outcomes"`
	NeutralOutcomes  int            `json:"neutral_outcomes"`
	NegativeOutcomes int            `json:"negative_outcomes"`
	FirstOpenedAt    *time.Time     `json:"first_opened_at,omitempty"`
	LastCompletedAt  *time.Time     `json:"last_completed_at,omitempty"`
	CompletionRate   int            `json:"completion_rate"`
	AverageScore     int            `json:"average_score"`
	CreatedAt        time.Time      `json:"created_at"`
}
