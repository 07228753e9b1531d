// ABOUTME: Relationship health score, the heuristic factor-sum model
// ABOUTME: Recency, freshness, cadence adherence/consistency/trend, quality and depth
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/harperreed/kith/models"
)

const (
	FatiguePenalty   = 20.0
	fatigueWindow    = 72 * time.Hour
	CadenceMaxBoost  = 30.0
	CadenceMaxDebit  = 15.0
	ConsistencyMax   = 10.0
	TrendCap         = 5.0
	QualityMaxBonus  = 20.0
	QualityMidBonus  = 10.0
	QualityLowDebit  = 5.0
	DepthMaxBonus    = 15.0
	minConsistencyIv = 3
	minTrendIv       = 4
)

// RHSInput is everything the heuristic model looks at.
type RHSInput struct {
	Contact  models.Contact
	Touches  []time.Time // any order
	Outcomes models.OutcomeCounts
	Now      time.Time
}

// ComputeRHS scores a contact 0-100; higher means more in need of outreach.
func ComputeRHS(in RHSInput) models.RHSScore {
	touches := append([]time.Time(nil), in.Touches...)
	sort.Slice(touches, func(i, j int) bool { return touches[i].Before(touches[j]) })

	s := models.RHSScore{
		UserID:           in.Contact.UserID,
		ContactID:        in.Contact.ID,
		TotalEngagements: len(touches),
		PositiveOutcomes: in.Outcomes.Positive,
		NegativeOutcomes: in.Outcomes.Negative,
		ComputedAt:       in.Now,
	}

	var daysSince *int
	if len(touches) > 0 {
		last := touches[len(touches)-1]
		d := models.DaysBetween(last, in.Now)
		daysSince = &d
		s.DaysSinceTouch = daysSince
		s.LastEngagementAt = &last
		if in.Now.Sub(last) < fatigueWindow {
			s.Fatigue = FatiguePenalty
		}
	}

	s.Recency = recencyScore(daysSince)

	engaged := in.Contact.FirstEngagementAt != nil || len(touches) > 0
	if !engaged {
		s.Freshness = freshDecay(float64(in.Contact.DaysSinceFirstSeen(in.Now)), FreshBonusPoints)
	}

	if cadence := in.Contact.Cadence(); cadence > 0 {
		s.CadenceAdherence = cadenceAdherence(daysSince, cadence)
		elapsed := in.Contact.DaysSinceFirstSeen(in.Now)
		if daysSince != nil {
			elapsed = *daysSince
		}
		if elapsed > cadence {
			s.IsOverdueByCadence = true
			s.DaysOverdue = elapsed - cadence
		}
	}

	intervals := touchIntervals(touches)
	s.CadenceConsistency = cadenceConsistency(intervals)
	s.CadenceTrend = cadenceTrend(intervals)

	if q, ok := in.Outcomes.Quality(); ok {
		s.Quality = qualityBonus(q)
	}
	s.Depth = depthBonus(touches)

	total := s.Recency + s.Freshness + s.CadenceAdherence + s.CadenceConsistency +
		s.CadenceTrend + s.Quality + s.Depth - s.Fatigue
	s.Total = clampScore(total)
	return s
}

func recencyScore(daysSince *int) float64 {
	if daysSince == nil {
		return 100
	}
	switch d := *daysSince; {
	case d <= 7:
		return 20
	case d <= 14:
		return 40
	case d <= 21:
		return 60
	case d <= 30:
		return 80
	}
	return 100
}

// cadenceAdherence boosts contacts past their cadence and debits ones touched
// well before it was due.
func cadenceAdherence(daysSince *int, cadence int) float64 {
	if daysSince == nil {
		return CadenceMaxBoost
	}
	ratio := float64(*daysSince) / float64(cadence)
	switch {
	case ratio >= 1.5:
		return CadenceMaxBoost
	case ratio >= 1.0:
		return CadenceMaxBoost * (ratio - 1.0) / 0.5
	case ratio >= 0.5:
		return 0
	}
	return -CadenceMaxDebit * (0.5 - ratio) / 0.5
}

// touchIntervals returns gaps in days between consecutive sorted touches.
func touchIntervals(sorted []time.Time) []float64 {
	if len(sorted) < 2 {
		return nil
	}
	out := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		out = append(out, sorted[i].Sub(sorted[i-1]).Hours()/24)
	}
	return out
}

// cadenceConsistency rewards a low coefficient of variation between touches.
func cadenceConsistency(intervals []float64) float64 {
	if len(intervals) < minConsistencyIv {
		return 0
	}
	m := mean(intervals)
	if m <= 0 {
		return 0
	}
	var sq float64
	for _, v := range intervals {
		sq += (v - m) * (v - m)
	}
	cv := math.Sqrt(sq/float64(len(intervals))) / m
	return ConsistencyMax * math.Max(0, 1-cv)
}

// cadenceTrend is positive when recent gaps are shrinking, negative when growing.
func cadenceTrend(intervals []float64) float64 {
	if len(intervals) < minTrendIv {
		return 0
	}
	half := len(intervals) / 2
	early := mean(intervals[:half])
	late := mean(intervals[len(intervals)-half:])
	if early <= 0 {
		return 0
	}
	change := (early - late) / early
	return math.Max(-TrendCap, math.Min(TrendCap, change*TrendCap*2))
}

func qualityBonus(q float64) float64 {
	switch {
	case q >= 70:
		return QualityMaxBonus
	case q >= 50:
		return QualityMidBonus * (q - 50) / 20
	case q < 30:
		return -QualityLowDebit
	}
	return 0
}

// depthBonus rewards a healthy average rhythm between touches.
func depthBonus(sorted []time.Time) float64 {
	if len(sorted) < 2 {
		return 0
	}
	span := sorted[len(sorted)-1].Sub(sorted[0]).Hours() / 24
	avg := span / float64(len(sorted)-1)
	switch {
	case avg >= 7 && avg <= 30:
		return DepthMaxBonus
	case avg < 7:
		return DepthMaxBonus * 0.6
	case avg <= 90:
		return DepthMaxBonus * 0.3
	}
	return 0
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

// touchMarker identifies the latest engagement for cache validation.
func touchMarker(touches []time.Time) string {
	var latest time.Time
	for _, t := range touches {
		if t.After(latest) {
			latest = t
		}
	}
	if latest.IsZero() {
		return ""
	}
	return latest.UTC().Format(time.RFC3339Nano)
}
