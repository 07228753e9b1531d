// ABOUTME: Contact Score, the rolling-window point accumulation model
// ABOUTME: Sums final points over 90 days with exponential decay past a grace period
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/harperreed/kith/models"
)

const (
	ScoreWindowDays  = 90
	DecayGraceDays   = 14
	DecayFloor       = 0.25
	DecayRatePerDay  = 0.01
	topChannelsLimit = 5
	recentEventLimit = 10
)

// ComputeContactScore accumulates the contact's action events inside the window
// ending at now. Events outside the window are ignored.
func ComputeContactScore(userID, contactID string, events []models.ActionEvent, now time.Time) models.ContactScore {
	cutoff := now.AddDate(0, 0, -ScoreWindowDays)
	inWindow := make([]models.ActionEvent, 0, len(events))
	for _, e := range events {
		if e.Timestamp.Before(cutoff) {
			continue
		}
		inWindow = append(inWindow, e)
	}
	sort.SliceStable(inWindow, func(i, j int) bool {
		return inWindow[i].Timestamp.Before(inWindow[j].Timestamp)
	})

	s := models.ContactScore{
		UserID:          userID,
		ContactID:       contactID,
		DecayMultiplier: 1,
		EventCount:      len(inWindow),
		ComputedAt:      now,
	}
	if len(inWindow) == 0 {
		return s
	}

	var running, peak float64
	for _, e := range inWindow {
		running += e.FinalPoints
		if running > peak {
			peak = running
		}
	}
	s.RawScore = running
	s.PeakScore = clampScore(peak)

	last := inWindow[len(inWindow)-1].Timestamp
	days := models.DaysBetween(last, now)
	s.LastActionAt = &last
	s.DaysSinceLast = &days

	s.DecayMultiplier = DecayMultiplier(days)
	s.DecayedScore = s.RawScore * s.DecayMultiplier
	if now.Sub(last) < fatigueWindow {
		s.FatiguePenalty = FatiguePenalty
	}
	s.FinalScore = clampScore(s.DecayedScore - s.FatiguePenalty)
	s.Breakdown = buildBreakdown(inWindow)
	return s
}

// DecayMultiplier is 1 through the grace period, then decays exponentially
// toward DecayFloor.
func DecayMultiplier(daysSinceLast int) float64 {
	overdue := daysSinceLast - DecayGraceDays
	if overdue <= 0 {
		return 1
	}
	return DecayFloor + (1-DecayFloor)*math.Exp(-DecayRatePerDay*float64(overdue))
}

func buildBreakdown(sorted []models.ActionEvent) models.ScoreBreakdown {
	var b models.ScoreBreakdown
	byChannel := map[models.Channel]float64{}

	for _, e := range sorted {
		switch e.Def().Bucket {
		case models.BucketIntent:
			b.Intent += e.FinalPoints
		case models.BucketInteraction:
			b.Interaction += e.FinalPoints
		case models.BucketReciprocity:
			b.Reciprocity += e.FinalPoints
		case models.BucketContext:
			b.Context += e.FinalPoints
		case models.BucketCadence:
			b.Cadence += e.FinalPoints
		case models.BucketFreshness:
			b.Freshness += e.FinalPoints
		}
		if e.Channel != "" {
			byChannel[e.Channel] += e.FinalPoints
		}
	}

	for ch, pts := range byChannel {
		b.TopChannels = append(b.TopChannels, models.ChannelPoints{Channel: ch, Points: pts})
	}
	sort.Slice(b.TopChannels, func(i, j int) bool {
		if b.TopChannels[i].Points == b.TopChannels[j].Points {
			return b.TopChannels[i].Channel < b.TopChannels[j].Channel
		}
		return b.TopChannels[i].Points > b.TopChannels[j].Points
	})
	if len(b.TopChannels) > topChannelsLimit {
		b.TopChannels = b.TopChannels[:topChannelsLimit]
	}

	n := min(len(sorted), recentEventLimit)
	b.RecentEvents = make([]models.ActionEvent, 0, n)
	for i := len(sorted) - 1; i >= len(sorted)-n; i-- {
		b.RecentEvents = append(b.RecentEvents, sorted[i])
	}
	return b
}
