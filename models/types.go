// ABOUTME: Data models for contacts, touches and outcome notes
// ABOUTME: Defines Contact, InteractionEvent, OutcomeNote and their closed vocabularies
package models

import (
	"time"
)

// FreshWindowDays is how long after discovery a never-engaged contact counts as fresh.
const FreshWindowDays = 14

type Contact struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Name              string     `json:"name"`
	Phones            []string   `json:"phones,omitempty"` // first entry is primary
	Emails            []string   `json:"emails,omitempty"` // first entry is primary
	Tags              []string   `json:"tags,omitempty"`
	Mutuality         *int       `json:"mutuality,omitempty"` // manual 0-100 rating
	CadenceDays       *int       `json:"cadence_days,omitempty"`
	FirstSeenAt       time.Time  `json:"first_seen_at"`
	FirstEngagementAt *time.Time `json:"first_engagement_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// PrimaryPhone returns the first phone number, or "".
func (c *Contact) PrimaryPhone() string {
	if len(c.Phones) == 0 {
		return ""
	}
	return c.Phones[0]
}

// PrimaryEmail returns the first email address, or "".
func (c *Contact) PrimaryEmail() string {
	if len(c.Emails) == 0 {
		return ""
	}
	return c.Emails[0]
}

// Cadence returns the configured cadence in days, or 0 when unset or not positive.
func (c *Contact) Cadence() int {
	if c.CadenceDays == nil || *c.CadenceDays <= 0 {
		return 0
	}
	return *c.CadenceDays
}

// DaysSinceFirstSeen returns whole days between discovery and now, never negative.
func (c *Contact) DaysSinceFirstSeen(now time.Time) int {
	return DaysBetween(c.FirstSeenAt, now)
}

// IsFresh reports whether the contact was discovered recently and never engaged.
func (c *Contact) IsFresh(now time.Time) bool {
	if c.FirstEngagementAt != nil {
		return false
	}
	return c.DaysSinceFirstSeen(now) <= FreshWindowDays
}

// DaysBetween returns whole days from a to b, clamped at zero.
func DaysBetween(a, b time.Time) int {
	d := int(b.Sub(a).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// InteractionType is the legacy touch log vocabulary.
type InteractionType string

const (
	InteractionSMSSent       InteractionType = "sms_sent"
	InteractionCallMade      InteractionType = "call_made"
	InteractionEmailSent     InteractionType = "email_sent"
	InteractionFacetimeMade  InteractionType = "facetime_made"
	InteractionSlackSent     InteractionType = "slack_sent"
	InteractionNoteAdded     InteractionType = "note_added"
	InteractionCardDismissed InteractionType = "card_dismissed"
	InteractionCardSnoozed   InteractionType = "card_snoozed"
)

var interactionTypes = map[InteractionType]bool{
	InteractionSMSSent:       true,
	InteractionCallMade:      true,
	InteractionEmailSent:     true,
	InteractionFacetimeMade:  true,
	InteractionSlackSent:     true,
	InteractionNoteAdded:     true,
	InteractionCardDismissed: true,
	InteractionCardSnoozed:   true,
}

// Valid reports whether t is part of the interaction vocabulary.
func (t InteractionType) Valid() bool {
	return interactionTypes[t]
}

// IsTouch reports whether the interaction is real outreach to the contact.
func (t InteractionType) IsTouch() bool {
	switch t {
	case InteractionSMSSent, InteractionCallMade, InteractionEmailSent,
		InteractionFacetimeMade, InteractionSlackSent:
		return true
	}
	return false
}

// Channel maps a touch to the channel it used. Non-touch types return "".
func (t InteractionType) Channel() Channel {
	switch t {
	case InteractionSMSSent:
		return ChannelSMS
	case InteractionCallMade:
		return ChannelCall
	case InteractionEmailSent:
		return ChannelEmail
	case InteractionFacetimeMade:
		return ChannelVideo
	case InteractionSlackSent:
		return ChannelChat
	}
	return ""
}

type InteractionEvent struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Type       InteractionType `json:"type"`
	Timestamp  time.Time       `json:"timestamp"`
	ContactIDs []string        `json:"contact_ids"`
	CardID     string          `json:"card_id,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// Sentiment constants.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// ValidSentiment reports whether s is a known sentiment.
func ValidSentiment(s string) bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// OutcomeNote records how a conversation went.
type OutcomeNote struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ContactID string    `json:"contact_id"`
	Sentiment string    `json:"sentiment"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OutcomeCounts tallies outcome notes by sentiment.
type OutcomeCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Quality converts outcome counts to a 0-100 quality score. ok is false without
// any positive or negative outcome.
func (o OutcomeCounts) Quality() (q float64, ok bool) {
	total := o.Positive + o.Negative
	if total == 0 {
		return 0, false
	}
	return float64(o.Positive) / float64(total) * 100, true
}
