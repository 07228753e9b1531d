// ABOUTME: Tests for candidate selection and the weighted ranking factors
// ABOUTME: Pure functions only, no storage
package deck

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/harperreed/kith/models"
)

func candidates(fresh, regular int) []Candidate {
	var out []Candidate
	for i := 0; i < fresh; i++ {
		out = append(out, Candidate{Contact: models.Contact{ID: fmt.Sprintf("f%d", i), Name: fmt.Sprintf("F%d", i)}, Fresh: true, Score: float64(i)})
	}
	for i := 0; i < regular; i++ {
		out = append(out, Candidate{Contact: models.Contact{ID: fmt.Sprintf("r%d", i), Name: fmt.Sprintf("R%d", i)}, Score: float64(50 + i)})
	}
	return out
}

func freshIn(cs []Candidate) int {
	n := 0
	for _, c := range cs {
		if c.Fresh {
			n++
		}
	}
	return n
}

func TestSelectFreshQuotaProperty(t *testing.T) {
	for fresh := 0; fresh <= 5; fresh++ {
		for slots := 1; slots <= 10; slots++ {
			picked := Select(candidates(fresh, 20), slots, 0)
			assert.Len(t, picked, slots)
			if fresh > 0 {
				assert.GreaterOrEqual(t, freshIn(picked), 1, "fresh=%d slots=%d", fresh, slots)
			}
			if slots >= 2 {
				assert.LessOrEqual(t, freshIn(picked), 2, "fresh=%d slots=%d", fresh, slots)
			}
		}
	}
}

func TestSelectRespectsFreshAlreadyOnDeck(t *testing.T) {
	picked := Select(candidates(3, 10), 5, 2)
	assert.Equal(t, 0, freshIn(picked))

	picked = Select(candidates(3, 10), 5, 1)
	assert.Equal(t, 1, freshIn(picked))
}

func TestSelectZeroSlots(t *testing.T) {
	assert.Empty(t, Select(candidates(2, 2), 0, 0))
}

func TestSelectOrdersFreshFirstThenScore(t *testing.T) {
	picked := Select(candidates(1, 3), 4, 0)
	var ids []string
	for _, c := range picked {
		ids = append(ids, c.Contact.ID)
	}
	assert.Equal(t, []string{"f0", "r2", "r1", "r0"}, ids)
}

func TestSuggestChannel(t *testing.T) {
	assert.Equal(t, models.ChannelSMS, SuggestChannel(&models.Contact{Phones: []string{"+1"}, Emails: []string{"a@b.c"}}))
	assert.Equal(t, models.ChannelEmail, SuggestChannel(&models.Contact{Emails: []string{"a@b.c"}}))
	assert.Equal(t, models.ChannelCall, SuggestChannel(&models.Contact{}))
}

func TestReasonPriority(t *testing.T) {
	d := func(n int) *int { return &n }
	cadence := 10

	assert.Contains(t, Reason(Candidate{Fresh: true, Contact: models.Contact{Name: "Ada"}}), "Ada")
	assert.Equal(t, "You haven't reached out yet", Reason(Candidate{}))
	assert.Contains(t, Reason(Candidate{RHS: models.RHSScore{DaysSinceTouch: d(75)}}), "long overdue")
	assert.Contains(t, Reason(Candidate{
		Contact: models.Contact{CadenceDays: &cadence},
		RHS:     models.RHSScore{DaysSinceTouch: d(25), IsOverdueByCadence: true, DaysOverdue: 15},
	}), "long overdue")
	assert.Contains(t, Reason(Candidate{RHS: models.RHSScore{DaysSinceTouch: d(31)}}), "A little overdue")
	assert.Equal(t, "Good moment to check in", Reason(Candidate{RHS: models.RHSScore{DaysSinceTouch: d(5)}}))
}

func TestWeightedScore(t *testing.T) {
	assert.Equal(t, 50.0, WeightedScore(WeightedFactors{FatigueMultiplier: 1}))
	assert.Equal(t, 100.0, WeightedScore(WeightedFactors{
		Recency: 100, CadenceFit: 100, TagPriority: 100, Mutuality: 100, Freshness: 100, FatigueMultiplier: 1,
	}))
	assert.InDelta(t, 40.0, WeightedScore(WeightedFactors{Recency: 100, FatigueMultiplier: 0.5}), 1e-9)
	assert.Equal(t, 25.0, WeightedScore(WeightedFactors{CadenceFit: -100, FatigueMultiplier: 1}))
}

func TestWeightedFactors(t *testing.T) {
	d := func(n int) *int { return &n }

	assert.Equal(t, 100.0, recencyFactor(nil))
	assert.InDelta(t, 63.212, recencyFactor(d(30)), 1e-3)

	assert.Equal(t, 0.0, cadenceFitFactor(d(10), 0))
	assert.Equal(t, 100.0, cadenceFitFactor(nil, 30))
	assert.InDelta(t, 50.0, cadenceFitFactor(d(45), 30), 1e-9)
	assert.InDelta(t, -66.667, cadenceFitFactor(d(10), 30), 1e-3)
	assert.Equal(t, 100.0, cadenceFitFactor(d(100), 10))

	assert.Equal(t, 100.0, tagPriority([]string{"Family "}))
	assert.Equal(t, 60.0, tagPriority([]string{"work", "mentor"}))
	assert.Equal(t, 0.0, tagPriority([]string{"gym"}))

	m := 130
	assert.Equal(t, 100.0, mutualityFactor(&m))
	assert.Equal(t, 0.0, mutualityFactor(nil))

	assert.Equal(t, 0.5, fatigueMultiplier(d(2)))
	assert.Equal(t, 0.8, fatigueMultiplier(d(5)))
	assert.Equal(t, 1.0, fatigueMultiplier(d(7)))
	assert.Equal(t, 1.0, fatigueMultiplier(nil))
}

func TestFreshnessFactor(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	c := &models.Contact{FirstSeenAt: now}
	assert.Equal(t, 100.0, freshnessFactor(c, now))

	c.FirstSeenAt = now.AddDate(0, 0, -7)
	assert.InDelta(t, 50.0, freshnessFactor(c, now), 1e-9)

	engaged := now
	c.FirstEngagementAt = &engaged
	assert.Equal(t, 0.0, freshnessFactor(c, now))
}
