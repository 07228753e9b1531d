// ABOUTME: Legacy weighted-factor ranking for deck selection
// ABOUTME: Combines recency, cadence fit, tags, mutuality and freshness, scaled by fatigue
package deck

import (
	"math"
	"strings"
	"time"

	"github.com/harperreed/kith/models"
)

const (
	weightBase        = 50.0
	weightRecency     = 0.3
	weightCadenceFit  = 0.25
	weightTagPriority = 0.15
	weightMutuality   = 0.15
	weightFreshness   = 0.15

	recencyHalfScaleDays = 30.0
)

// tagPriorities ranks relationship tags; a contact takes its highest tag.
var tagPriorities = map[string]float64{
	"family":       100,
	"close-friend": 80,
	"mentor":       60,
	"friend":       50,
	"work":         30,
	"colleague":    30,
}

// WeightedFactors are the six named inputs of the legacy ranking.
type WeightedFactors struct {
	Recency           float64 `json:"recency"`            // 0..100, grows with time since last touch
	CadenceFit        float64 `json:"cadence_fit"`        // -100..100, positive when past cadence
	TagPriority       float64 `json:"tag_priority"`       // 0..100
	Mutuality         float64 `json:"mutuality"`          // 0..100
	Freshness         float64 `json:"freshness"`          // 0..100
	FatigueMultiplier float64 `json:"fatigue_multiplier"` // 0.5, 0.8 or 1
}

// WeightedScore combines the factors into a 0-100 score.
func WeightedScore(f WeightedFactors) float64 {
	raw := weightBase +
		weightRecency*f.Recency +
		weightCadenceFit*f.CadenceFit +
		weightTagPriority*f.TagPriority +
		weightMutuality*f.Mutuality +
		weightFreshness*f.Freshness
	return clamp(clamp(raw, 0, 100)*f.FatigueMultiplier, 0, 100)
}

// FactorsFor derives the factors for a contact. daysSinceTouch is nil when
// the contact was never touched.
func FactorsFor(c *models.Contact, daysSinceTouch *int, now time.Time) WeightedFactors {
	return WeightedFactors{
		Recency:           recencyFactor(daysSinceTouch),
		CadenceFit:        cadenceFitFactor(daysSinceTouch, c.Cadence()),
		TagPriority:       tagPriority(c.Tags),
		Mutuality:         mutualityFactor(c.Mutuality),
		Freshness:         freshnessFactor(c, now),
		FatigueMultiplier: fatigueMultiplier(daysSinceTouch),
	}
}

func recencyFactor(days *int) float64 {
	if days == nil {
		return 100
	}
	return 100 * (1 - math.Exp(-float64(*days)/recencyHalfScaleDays))
}

func cadenceFitFactor(days *int, cadence int) float64 {
	if cadence == 0 {
		return 0
	}
	if days == nil {
		return 100
	}
	ratio := float64(*days) / float64(cadence)
	return clamp((ratio-1)*100, -100, 100)
}

func tagPriority(tags []string) float64 {
	best := 0.0
	for _, t := range tags {
		if p := tagPriorities[strings.ToLower(strings.TrimSpace(t))]; p > best {
			best = p
		}
	}
	return best
}

func mutualityFactor(m *int) float64 {
	if m == nil {
		return 0
	}
	return clamp(float64(*m), 0, 100)
}

// freshnessFactor is 100 on discovery day, falling linearly to 0 at the end
// of the fresh window.
func freshnessFactor(c *models.Contact, now time.Time) float64 {
	if !c.IsFresh(now) {
		return 0
	}
	d := float64(c.DaysSinceFirstSeen(now))
	return clamp(100*(1-d/models.FreshWindowDays), 0, 100)
}

func fatigueMultiplier(days *int) float64 {
	if days == nil {
		return 1
	}
	switch {
	case *days < 3:
		return 0.5
	case *days < 7:
		return 0.8
	}
	return 1
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
