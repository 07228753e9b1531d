// ABOUTME: Point multipliers applied to action events
// ABOUTME: Channel depth, customization, group/intro and fresh-contact bonus
package scoring

import "github.com/harperreed/kith/models"

const (
	FreshBonusPoints   = 25.0
	FreshFullBonusDays = 14
	FreshBonusEndDays  = 21

	groupMultiplier = 1.2
)

// MultiplierInput is the action metadata the multipliers depend on.
type MultiplierInput struct {
	Channel            models.Channel
	Customization      models.CustomizationLevel
	IsMultiContact     bool
	IsFresh            bool
	DaysSinceFirstSeen int
}

// Multipliers are the factors applied to an action's base points.
type Multipliers struct {
	Channel        float64 `json:"channel"`
	Customization  float64 `json:"customization"`
	Group          float64 `json:"group"`
	FreshnessBonus float64 `json:"freshness_bonus"`
	Total          float64 `json:"total"`
}

// ComputeMultipliers is pure and safe for concurrent use.
func ComputeMultipliers(in MultiplierInput) Multipliers {
	m := Multipliers{
		Channel:       ChannelMultiplier(in.Channel),
		Customization: CustomizationMultiplier(in.Customization),
		Group:         1.0,
	}
	if in.IsMultiContact {
		m.Group = groupMultiplier
	}
	if in.IsFresh {
		m.FreshnessBonus = FreshnessBonus(in.DaysSinceFirstSeen)
	}
	m.Total = m.Channel * m.Customization * m.Group
	return m
}

// FinalPoints applies the multiplier product and then the additive bonus.
func (m Multipliers) FinalPoints(basePoints float64) float64 {
	return basePoints*m.Total + m.FreshnessBonus
}

// Applied returns only the non-default factors, for auditing.
func (m Multipliers) Applied() map[string]float64 {
	applied := map[string]float64{}
	if m.Channel != 1.0 {
		applied["channel"] = m.Channel
	}
	if m.Customization != 1.0 {
		applied["customization"] = m.Customization
	}
	if m.Group != 1.0 {
		applied["group"] = m.Group
	}
	if m.FreshnessBonus != 0 {
		applied["freshness_bonus"] = m.FreshnessBonus
	}
	return applied
}

func ChannelMultiplier(c models.Channel) float64 {
	switch c {
	case models.ChannelCall, models.ChannelVideo:
		return 1.3
	case models.ChannelEmail, models.ChannelChat:
		return 1.15
	}
	return 1.0
}

func CustomizationMultiplier(l models.CustomizationLevel) float64 {
	switch l {
	case models.CustomizationCustom:
		return 1.4
	case models.CustomizationHeavy:
		return 1.25
	case models.CustomizationLight:
		return 1.1
	}
	return 1.0
}

// FreshnessBonus is the full bonus through day 14, fading linearly to zero at day 21.
func FreshnessBonus(daysSinceFirstSeen int) float64 {
	return freshDecay(float64(daysSinceFirstSeen), FreshBonusPoints)
}

func freshDecay(days, full float64) float64 {
	switch {
	case days <= FreshFullBonusDays:
		return full
	case days >= FreshBonusEndDays:
		return 0
	}
	span := float64(FreshBonusEndDays - FreshFullBonusDays)
	return full * (FreshBonusEndDays - days) / span
}
