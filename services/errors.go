package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/coding-league/models"
)

// Категории ошибок. Handlers маппят их на HTTP-статусы.
var (
	ErrUnauthorized          = errors.New("unauthorized")
	ErrNotFound              = errors.New("not found")
	ErrPreconditionFailed    = errors.New("precondition failed")
	ErrCapacityExceeded      = errors.New("team capacity exceeded")
	ErrQualificationMismatch = errors.New("tier qualification mismatch")
	ErrQuorumNotMet          = errors.New("judge quorum not met")
	ErrValidationFailed      = errors.New("validation failed")
	ErrInternal              = errors.New("internal error")
)

// Ошибки, специфичные для сущностей.
var (
	ErrMatchNotFound      = fmt.Errorf("match %w", ErrNotFound)
	ErrAssignmentNotFound = fmt.Errorf("judge assignment %w", ErrNotFound)
	ErrTimerNotFound      = fmt.Errorf("match timer %w", ErrNotFound)
	ErrLineupNotFound     = fmt.Errorf("lineup %w", ErrNotFound)
	ErrScoreNotFound      = fmt.Errorf("judge score %w", ErrNotFound)
	ErrTeamNotFound       = fmt.Errorf("team %w", ErrNotFound)
	ErrMemberNotFound     = fmt.Errorf("team member %w", ErrNotFound)
	ErrPlayerNotFound     = fmt.Errorf("player %w", ErrNotFound)
)

// Ошибки авторизации.
var (
	ErrJudgeNotAccepted   = fmt.Errorf("%w: judge has no accepted assignment for this match", ErrUnauthorized)
	ErrNotMainJudge       = fmt.Errorf("%w: only the main judge can submit results", ErrUnauthorized)
	ErrTeamNotInSchool    = fmt.Errorf("%w: team does not belong to the caller's school", ErrUnauthorized)
	ErrForbiddenOperation = fmt.Errorf("%w: operation not allowed for the current user", ErrUnauthorized)
)

// Нарушения предусловий.
var (
	ErrMatchCompleted       = fmt.Errorf("%w: match is completed", ErrPreconditionFailed)
	ErrAssignmentResponded  = fmt.Errorf("%w: assignment was already declined", ErrPreconditionFailed)
	ErrScoreLocked          = fmt.Errorf("%w: judge score is locked", ErrPreconditionFailed)
	ErrNoLockedScores       = fmt.Errorf("%w: no locked judge scores", ErrPreconditionFailed)
	ErrTeamWithoutScores    = fmt.Errorf("%w: a team has no locked judge scores", ErrPreconditionFailed)
	ErrTeamNotInMatch       = fmt.Errorf("%w: team does not play in this match", ErrPreconditionFailed)
	ErrPlayerNotInLineup    = fmt.Errorf("%w: player is not in an approved lineup", ErrPreconditionFailed)
	ErrPlayerNotActive      = fmt.Errorf("%w: player is not an active team member", ErrPreconditionFailed)
	ErrPlayerNotInSchool    = fmt.Errorf("%w: player does not belong to the team's school", ErrPreconditionFailed)
	ErrPlayerAlreadyMember  = fmt.Errorf("%w: player is already a member of the team", ErrPreconditionFailed)
	ErrPlayerHasTeam        = fmt.Errorf("%w: reserve player already belongs to a team", ErrPreconditionFailed)
	ErrEvaluationFailed     = fmt.Errorf("%w: automated evaluation failed", ErrPreconditionFailed)
	ErrNoJudgesAccepted     = fmt.Errorf("%w: match has no accepted judges", ErrPreconditionFailed)
	ErrMultipleCaptains     = fmt.Errorf("%w: lineup has more than one captain", ErrValidationFailed)
	ErrDuplicateLineupEntry = fmt.Errorf("%w: player listed twice in lineup", ErrValidationFailed)
)

// CapacityExceededError reports the active count that blocked an add.
type CapacityExceededError struct {
	TeamID  int `json:"team_id"`
	Current int `json:"current"`
	Limit   int `json:"limit"`
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("team %d already has %d of %d active members", e.TeamID, e.Current, e.Limit)
}

func (e *CapacityExceededError) Is(target error) bool { return target == ErrCapacityExceeded }

type QualificationMismatchError struct {
	PlayerID   int         `json:"player_id"`
	PlayerTier models.Tier `json:"player_tier"`
	TeamID     int         `json:"team_id"`
	TeamTier   models.Tier `json:"team_tier"`
}

func (e *QualificationMismatchError) Error() string {
	return fmt.Sprintf("player %d qualifies for %s and cannot join team %d playing in %s",
		e.PlayerID, e.PlayerTier, e.TeamID, e.TeamTier)
}

func (e *QualificationMismatchError) Is(target error) bool { return target == ErrQualificationMismatch }

type QuorumNotMetError struct {
	Required int `json:"required"`
	Signed   int `json:"signed"`
}

func (e *QuorumNotMetError) Error() string {
	return fmt.Sprintf("%d of %d accepted judges signed", e.Signed, e.Required)
}

func (e *QuorumNotMetError) Is(target error) bool { return target == ErrQuorumNotMet }

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }
