package officiating

import (
	"testing"

	"github.com/Dosada05/coding-league/models"
	"github.com/stretchr/testify/assert"
)

func TestQualifiedTier(t *testing.T) {
	th := DefaultTierThresholds()
	tests := []struct {
		xp   int
		want models.Tier
	}{
		{0, models.TierBeginner},
		{499, models.TierBeginner},
		{500, models.TierAmateur},
		{999, models.TierAmateur},
		{1000, models.TierRegular},
		{2500, models.TierProfessional},
		{4999, models.TierProfessional},
		{5000, models.TierLegendary},
		{10000, models.TierNational},
		{250000, models.TierNational},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, th.QualifiedTier(tt.xp), "xp=%d", tt.xp)
	}
}

func TestCanJoin(t *testing.T) {
	assert.False(t, CanJoin(models.TierAmateur, models.TierProfessional))
	assert.True(t, CanJoin(models.TierAmateur, models.TierBeginner))
	assert.True(t, CanJoin(models.TierBeginner, models.TierBeginner))
	assert.True(t, CanJoin(models.TierNational, models.TierBeginner))
	assert.True(t, CanJoin(models.TierProfessional, models.TierProfessional))
	assert.True(t, CanJoin(models.TierLegendary, models.TierRegular))
	assert.False(t, CanJoin(models.TierRegular, models.TierNational))
	assert.False(t, CanJoin(models.TierNational, models.Tier("galactic")))
}

func TestTierThresholdsValidate(t *testing.T) {
	assert.NoError(t, DefaultTierThresholds().Validate())

	th := DefaultTierThresholds()
	th.Regular = th.Professional
	assert.Error(t, th.Validate())

	th = DefaultTierThresholds()
	th.Amateur = 0
	assert.Error(t, th.Validate())
}
