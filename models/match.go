package models

import "time"

type MatchStatus string

const (
	StatusScheduled      MatchStatus = "scheduled"
	StatusInProgress     MatchStatus = "in_progress"
	MatchStatusCompleted MatchStatus = "completed"
)

type Match struct {
	ID             int         `json:"id" db:"id"`
	ScheduledAt    time.Time   `json:"scheduled_at" db:"scheduled_at"`
	Status         MatchStatus `json:"status" db:"status"`
	HomeTeamID     int         `json:"home_team_id" db:"home_team_id"`
	AwayTeamID     int         `json:"away_team_id" db:"away_team_id"`
	WinnerID       *int        `json:"winner_id,omitempty" db:"winner_id"`
	HomeFinalScore *int        `json:"home_final_score,omitempty" db:"home_final_score"`
	AwayFinalScore *int        `json:"away_final_score,omitempty" db:"away_final_score"`
	Draw           bool        `json:"draw" db:"draw"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// HasTeam сообщает, играет ли команда в этом матче.
func (m *Match) HasTeam(teamID int) bool {
	return m.HomeTeamID == teamID || m.AwayTeamID == teamID
}

func (m *Match) IsCompleted() bool {
	return m.Status == MatchStatusCompleted
}

// IsFinalized reports whether a result has been recorded. Ending the timer
// completes a match; only the finalizer writes final scores.
func (m *Match) IsFinalized() bool {
	return m.HomeFinalScore != nil && m.AwayFinalScore != nil
}

// MatchResult is the outcome written by the finalizer.
type MatchResult struct {
	MatchID        int       `json:"match_id"`
	WinnerID       *int      `json:"winner_id,omitempty"`
	Draw           bool      `json:"draw"`
	TieBroken      bool      `json:"tie_broken"`
	HomeTeamID     int       `json:"home_team_id"`
	AwayTeamID     int       `json:"away_team_id"`
	HomeMean       float64   `json:"home_mean"`
	AwayMean       float64   `json:"away_mean"`
	HomeFinalScore int       `json:"home_final_score"`
	AwayFinalScore int       `json:"away_final_score"`
	SignedJudges   int       `json:"signed_judges"`
	RequiredJudges int       `json:"required_judges"`
	FinalizedAt    time.Time `json:"finalized_at"`
	ArchiveURL     string    `json:"archive_url,omitempty"`
}
