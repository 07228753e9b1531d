// ABOUTME: Tests for action point multipliers
// ABOUTME: Covers channel, customization, group and freshness bonus composition
package scoring

import (
	"testing"

	"github.com/harperreed/kith/models"
	"github.com/stretchr/testify/assert"
)

func TestComputeMultipliersCallHeavyEdit(t *testing.T) {
	m := ComputeMultipliers(MultiplierInput{
		Channel:       models.ChannelCall,
		Customization: models.CustomizationHeavy,
	})

	assert.Equal(t, 1.3, m.Channel)
	assert.Equal(t, 1.25, m.Customization)
	assert.Equal(t, 1.0, m.Group)
	assert.Zero(t, m.FreshnessBonus)
	assert.InDelta(t, 16.25, m.FinalPoints(10), 1e-9)
}

func TestComputeMultipliersDefaults(t *testing.T) {
	m := ComputeMultipliers(MultiplierInput{})

	assert.Equal(t, 1.0, m.Total)
	assert.Empty(t, m.Applied())
	assert.Equal(t, 8.0, m.FinalPoints(8))
}

func TestChannelMultiplier(t *testing.T) {
	tests := []struct {
		channel models.Channel
		want    float64
	}{
		{models.ChannelCall, 1.3},
		{models.ChannelVideo, 1.3},
		{models.ChannelEmail, 1.15},
		{models.ChannelChat, 1.15},
		{models.ChannelSMS, 1.0},
		{"", 1.0},
	}
	for _, tt := range tests {
		t.Run(string(tt.channel), func(t *testing.T) {
			assert.Equal(t, tt.want, ChannelMultiplier(tt.channel))
		})
	}
}

func TestCustomizationMultiplier(t *testing.T) {
	assert.Equal(t, 1.4, CustomizationMultiplier(models.CustomizationCustom))
	assert.Equal(t, 1.25, CustomizationMultiplier(models.CustomizationHeavy))
	assert.Equal(t, 1.1, CustomizationMultiplier(models.CustomizationLight))
	assert.Equal(t, 1.0, CustomizationMultiplier(models.CustomizationUntouched))
	assert.Equal(t, 1.0, CustomizationMultiplier(""))
}

func TestGroupMultiplierAndApplied(t *testing.T) {
	m := ComputeMultipliers(MultiplierInput{
		Channel:        models.ChannelEmail,
		IsMultiContact: true,
	})

	assert.InDelta(t, 1.15*1.2, m.Total, 1e-9)
	applied := m.Applied()
	assert.Equal(t, map[string]float64{"channel": 1.15, "group": 1.2}, applied)
}

func TestFreshnessBonusDecay(t *testing.T) {
	assert.Equal(t, 25.0, FreshnessBonus(0))
	assert.Equal(t, 25.0, FreshnessBonus(14))
	assert.InDelta(t, 25.0*4/7, FreshnessBonus(17), 1e-9)
	assert.Equal(t, 0.0, FreshnessBonus(21))
	assert.Equal(t, 0.0, FreshnessBonus(60))
}

func TestFreshnessBonusOnlyWhenFresh(t *testing.T) {
	notFresh := ComputeMultipliers(MultiplierInput{DaysSinceFirstSeen: 2})
	assert.Zero(t, notFresh.FreshnessBonus)

	fresh := ComputeMultipliers(MultiplierInput{IsFresh: true, DaysSinceFirstSeen: 2})
	assert.Equal(t, 25.0, fresh.FreshnessBonus)
	assert.Equal(t, 35.0, fresh.FinalPoints(10))
	assert.Equal(t, 25.0, fresh.Applied()["freshness_bonus"])
}
