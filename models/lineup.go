package models

import "time"

type LineupStatus string

const (
	LineupSubmitted LineupStatus = "submitted"
	LineupApproved  LineupStatus = "approved"
)

type LineupEntry struct {
	ID           int          `json:"id" db:"id"`
	MatchID      int          `json:"match_id" db:"match_id"`
	TeamID       int          `json:"team_id" db:"team_id"`
	PlayerID     int          `json:"player_id" db:"player_id"`
	Position     int          `json:"position" db:"position"`
	Role         string       `json:"role" db:"role"`
	IsCaptain    bool         `json:"is_captain" db:"is_captain"`
	IsSubstitute bool         `json:"is_substitute" db:"is_substitute"`
	Status       LineupStatus `json:"status" db:"status"`
	SubmittedAt  time.Time    `json:"submitted_at" db:"submitted_at"`
	ApprovedAt   *time.Time   `json:"approved_at,omitempty" db:"approved_at"`
}

// LineupPlayer is one row of a lineup submission.
type LineupPlayer struct {
	PlayerID     int    `json:"player_id"`
	Position     int    `json:"position"`
	Role         string `json:"role"`
	IsCaptain    bool   `json:"is_captain"`
	IsSubstitute bool   `json:"is_substitute"`
}
