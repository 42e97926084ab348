package models

import "time"

const (
	MinCriterionScore = 0
	MaxCriterionScore = 100
)

// AutoScore is the machine evaluation of a team's submission.
type AutoScore struct {
	ID                 int       `json:"id" db:"id"`
	MatchID            int       `json:"match_id" db:"match_id"`
	TeamID             int       `json:"team_id" db:"team_id"`
	FunctionalityScore float64   `json:"functionality_score" db:"functionality_score"`
	InnovationScore    float64   `json:"innovation_score" db:"innovation_score"`
	PlagiarismFlag     bool      `json:"plagiarism_flag" db:"plagiarism_flag"`
	AIGeneratedFlag    bool      `json:"ai_generated_flag" db:"ai_generated_flag"`
	Suggestions        string    `json:"suggestions" db:"suggestions"`
	EvaluatedAt        time.Time `json:"evaluated_at" db:"evaluated_at"`
}

// Criteria are the six team-level criteria a judge grades.
type Criteria struct {
	CodeFunctionality float64 `json:"code_functionality" db:"code_functionality"`
	Innovation        float64 `json:"innovation" db:"innovation"`
	Presentation      float64 `json:"presentation" db:"presentation"`
	ProblemRelevance  float64 `json:"problem_relevance" db:"problem_relevance"`
	Feasibility       float64 `json:"feasibility" db:"feasibility"`
	Collaboration     float64 `json:"collaboration" db:"collaboration"`
}

func (c Criteria) Values() []float64 {
	return []float64{c.CodeFunctionality, c.Innovation, c.Presentation, c.ProblemRelevance, c.Feasibility, c.Collaboration}
}

type JudgeScore struct {
	ID      int `json:"id" db:"id"`
	MatchID int `json:"match_id" db:"match_id"`
	JudgeID int `json:"judge_id" db:"judge_id"`
	TeamID  int `json:"team_id" db:"team_id"`
	Criteria
	Comments    string     `json:"comments" db:"comments"`
	IsLocked    bool       `json:"is_locked" db:"is_locked"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// PlayerCriteria are the five player-level criteria.
type PlayerCriteria struct {
	RolePerformance  float64 `json:"role_performance" db:"role_performance"`
	Initiative       float64 `json:"initiative" db:"initiative"`
	TechnicalMastery float64 `json:"technical_mastery" db:"technical_mastery"`
	Creativity       float64 `json:"creativity" db:"creativity"`
	Collaboration    float64 `json:"collaboration" db:"collaboration"`
}

func (c PlayerCriteria) Values() []float64 {
	return []float64{c.RolePerformance, c.Initiative, c.TechnicalMastery, c.Creativity, c.Collaboration}
}

type PlayerScore struct {
	ID       int `json:"id" db:"id"`
	MatchID  int `json:"match_id" db:"match_id"`
	JudgeID  int `json:"judge_id" db:"judge_id"`
	PlayerID int `json:"player_id" db:"player_id"`
	PlayerCriteria
	Notes     string    `json:"notes" db:"notes"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type MatchFeedback struct {
	ID        int       `json:"id" db:"id"`
	MatchID   int       `json:"match_id" db:"match_id"`
	JudgeID   int       `json:"judge_id" db:"judge_id"`
	TeamID    *int      `json:"team_id,omitempty" db:"team_id"`
	PlayerID  *int      `json:"player_id,omitempty" db:"player_id"`
	Message   string    `json:"message" db:"message"`
	IsPublic  bool      `json:"is_public" db:"is_public"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
