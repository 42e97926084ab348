package models

import "time"

type AssignmentStatus string

const (
	AssignmentPending  AssignmentStatus = "pending"
	AssignmentAccepted AssignmentStatus = "accepted"
	AssignmentDeclined AssignmentStatus = "declined"
)

type JudgeAssignment struct {
	ID          int              `json:"id" db:"id"`
	MatchID     int              `json:"match_id" db:"match_id"`
	JudgeID     int              `json:"judge_id" db:"judge_id"`
	Status      AssignmentStatus `json:"status" db:"status"`
	IsMainJudge bool             `json:"is_main_judge" db:"is_main_judge"`
	RespondedAt *time.Time       `json:"responded_at,omitempty" db:"responded_at"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

// JudgeSignature is a judge's sign-off on the final result.
type JudgeSignature struct {
	JudgeID   int    `json:"judge_id"`
	Signature string `json:"signature"`
}
