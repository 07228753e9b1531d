// ABOUTME: Score snapshot records for both scoring models
// ABOUTME: Defines RHSScore, ContactScore, its breakdown, and the unified ScoreRecord
package models

import "time"

// Score model names.
const (
	ModelRHS     = "rhs"
	ModelContact = "contact"
)

// RHSScore is the relationship health snapshot produced by the heuristic model.
type RHSScore struct {
	UserID             string     `json:"user_id"`
	ContactID          string     `json:"contact_id"`
	Recency            float64    `json:"recency"`
	Freshness          float64    `json:"freshness"`
	Fatigue            float64    `json:"fatigue"`
	CadenceAdherence   float64    `json:"cadence_adherence"`
	CadenceConsistency float64    `json:"cadence_consistency"`
	CadenceTrend       float64    `json:"cadence_trend"`
	Quality            float64    `json:"quality"`
	Depth              float64    `json:"depth"`
	Total              float64    `json:"total"`
	IsOverdueByCadence bool       `json:"is_overdue_by_cadence"`
	DaysOverdue        int        `json:"days_overdue"`
	DaysSinceTouch     *int       `json:"days_since_touch,omitempty"`
	LastEngagementAt   *time.Time `json:"last_engagement_at,omitempty"`
	TotalEngagements   int        `json:"total_engagements"`
	PositiveOutcomes   int        `json:"positive_outcomes"`
	NegativeOutcomes   int        `json:"negative_outcomes"`
	ComputedAt         time.Time  `json:"computed_at"`
}

// NeverTouched reports whether the contact has no recorded touch.
func (s *RHSScore) NeverTouched() bool {
	return s.DaysSinceTouch == nil
}

// ChannelPoints is a channel's total contribution within the scoring window.
type ChannelPoints struct {
	Channel Channel `json:"channel"`
	Points  float64 `json:"points"`
}

// ScoreBreakdown explains a ContactScore. It never feeds the numeric total.
type ScoreBreakdown struct {
	Intent       float64         `json:"intent"`
	Interaction  float64         `json:"interaction"`
	Reciprocity  float64         `json:"reciprocity"`
	Context      float64         `json:"context"`
	Cadence      float64         `json:"cadence"`
	Freshness    float64         `json:"freshness"`
	TopChannels  []ChannelPoints `json:"top_channels,omitempty"`
	RecentEvents []ActionEvent   `json:"recent_events,omitempty"`
}

// ContactScore is the rolling-window accumulation snapshot.
type ContactScore struct {
	UserID          string         `json:"user_id"`
	ContactID       string         `json:"contact_id"`
	RawScore        float64        `json:"raw_score"`
	PeakScore       float64        `json:"peak_score"`
	DecayMultiplier float64        `json:"decay_multiplier"`
	DecayedScore    float64        `json:"decayed_score"`
	FatiguePenalty  float64        `json:"fatigue_penalty"`
	FinalScore      float64        `json:"final_score"`
	DaysSinceLast   *int           `json:"days_since_last,omitempty"`
	LastActionAt    *time.Time     `json:"last_action_at,omitempty"`
	EventCount      int            `json:"event_count"`
	Breakdown       ScoreBreakdown `json:"breakdown"`
	ComputedAt      time.Time      `json:"computed_at"`
}

// ScoreRecord is what callers see: the configured model's total plus the snapshot.
type ScoreRecord struct {
	Model     string        `json:"model"`
	ContactID string        `json:"contact_id"`
	Total     float64       `json:"total"`
	RHS       *RHSScore     `json:"rhs,omitempty"`
	Contact   *ContactScore `json:"contact,omitempty"`
}
