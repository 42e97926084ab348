package models

import "time"

// Tier - уровень лиги. Порядок значений важен: см. TierRank.
type Tier string

const (
	TierBeginner     Tier = "beginner"
	TierAmateur      Tier = "amateur"
	TierRegular      Tier = "regular"
	TierProfessional Tier = "professional"
	TierLegendary    Tier = "legendary"
	TierNational     Tier = "national"
)

var tierOrder = []Tier{TierBeginner, TierAmateur, TierRegular, TierProfessional, TierLegendary, TierNational}

// TierRank returns the position of t in the ladder, or -1 if t is unknown.
func TierRank(t Tier) int {
	for i, candidate := range tierOrder {
		if candidate == t {
			return i
		}
	}
	return -1
}

func (t Tier) Valid() bool {
	return TierRank(t) >= 0
}

type Team struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	SchoolID  int       `json:"school_id" db:"school_id"`
	Tier      Tier      `json:"tier" db:"tier"`
	CaptainID *int      `json:"captain_id,omitempty" db:"captain_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (t *Team) IsCaptain(playerID int) bool {
	return t.CaptainID != nil && *t.CaptainID == playerID
}

type TeamMember struct {
	ID        int       `json:"id" db:"id"`
	TeamID    int       `json:"team_id" db:"team_id"`
	PlayerID  int       `json:"player_id" db:"player_id"`
	Role      string    `json:"role" db:"role"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	JoinedAt  time.Time `json:"joined_at" db:"joined_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
