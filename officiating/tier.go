package officiating

import (
	"fmt"

	"github.com/Dosada05/coding-league/models"
)

// TierThresholds maps experience points to a qualified tier. A player at or
// above a threshold qualifies for that tier; below Amateur is beginner.
type TierThresholds struct {
	National     int `json:"national"`
	Legendary    int `json:"legendary"`
	Professional int `json:"professional"`
	Regular      int `json:"regular"`
	Amateur      int `json:"amateur"`
}

func DefaultTierThresholds() TierThresholds {
	return TierThresholds{
		National:     10000,
		Legendary:    5000,
		Professional: 2500,
		Regular:      1000,
		Amateur:      500,
	}
}

func (t TierThresholds) Validate() error {
	steps := []int{t.National, t.Legendary, t.Professional, t.Regular, t.Amateur}
	for i := 1; i < len(steps); i++ {
		if steps[i] >= steps[i-1] {
			return fmt.Errorf("tier thresholds must be strictly decreasing, got %v", steps)
		}
	}
	if t.Amateur <= 0 {
		return fmt.Errorf("amateur threshold must be positive, got %d", t.Amateur)
	}
	return nil
}

// QualifiedTier derives a player's tier from experience points.
func (t TierThresholds) QualifiedTier(experience int) models.Tier {
	switch {
	case experience >= t.National:
		return models.TierNational
	case experience >= t.Legendary:
		return models.TierLegendary
	case experience >= t.Professional:
		return models.TierProfessional
	case experience >= t.Regular:
		return models.TierRegular
	case experience >= t.Amateur:
		return models.TierAmateur
	default:
		return models.TierBeginner
	}
}

// CanJoin reports whether a player qualified for playerTier may join a team
// playing in teamTier. Beginner teams accept anyone.
func CanJoin(playerTier, teamTier models.Tier) bool {
	if teamTier == models.TierBeginner {
		return true
	}
	teamRank := models.TierRank(teamTier)
	if teamRank < 0 {
		return false
	}
	return teamRank <= models.TierRank(playerTier)
}
