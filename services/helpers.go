package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/Dosada05/coding-league/live"
	"github.com/Dosada05/coding-league/metrics"
	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/officiating"
	"github.com/Dosada05/coding-league/repositories"
)

// Dependencies are shared by every officiating service. Store and Publisher
// are required; the rest fall back to defaults.
type Dependencies struct {
	Store     repositories.Store
	Publisher live.Publisher
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Clock     func() time.Time
}

type base struct {
	store   repositories.Store
	events  live.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func newBase(deps Dependencies, component string) base {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return base{
		store:   deps.Store,
		events:  deps.Publisher,
		metrics: deps.Metrics,
		logger:  logger.With(slog.String("component", component)),
		now:     func() time.Time { return clock().UTC() },
	}
}

// notify publishes after a commit. Broadcast failures never fail the request.
func (b base) notify(ctx context.Context, channel, event string, payload interface{}) {
	if b.events == nil {
		return
	}
	err := b.events.Publish(ctx, channel, event, payload)
	b.metrics.Broadcast(event, err)
	if err != nil {
		b.logger.WarnContext(ctx, "Broadcast failed",
			slog.String("channel", channel),
			slog.String("event", event),
			slog.Any("error", err),
		)
	}
}

var categories = []error{
	ErrUnauthorized,
	ErrNotFound,
	ErrPreconditionFailed,
	ErrCapacityExceeded,
	ErrQualificationMismatch,
	ErrQuorumNotMet,
	ErrValidationFailed,
	ErrInternal,
}

var notFoundTranslations = []struct {
	repo    error
	service error
}{
	{repositories.ErrMatchNotFound, ErrMatchNotFound},
	{repositories.ErrAssignmentNotFound, ErrAssignmentNotFound},
	{repositories.ErrTimerNotFound, ErrTimerNotFound},
	{repositories.ErrScoreNotFound, ErrScoreNotFound},
	{repositories.ErrTeamNotFound, ErrTeamNotFound},
	{repositories.ErrMemberNotFound, ErrMemberNotFound},
	{repositories.ErrUserNotFound, ErrPlayerNotFound},
}

// finish translates err into the service taxonomy and records the action.
// Errors that already carry a category pass through; anything else is an
// unexpected storage failure and is logged before being masked.
func (b base) finish(ctx context.Context, action string, err error) error {
	b.metrics.Action(action, err)
	if err == nil {
		return nil
	}
	for _, category := range categories {
		if errors.Is(err, category) {
			return err
		}
	}
	for _, t := range notFoundTranslations {
		if errors.Is(err, t.repo) {
			return t.service
		}
	}
	switch {
	case errors.Is(err, repositories.ErrScoreLocked):
		return ErrScoreLocked
	case errors.Is(err, repositories.ErrInvalidReference):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, repositories.ErrConflict):
		return fmt.Errorf("%w: %v", ErrPreconditionFailed, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	b.logger.ErrorContext(ctx, "Unexpected storage failure", slog.String("action", action), slog.Any("error", err))
	return fmt.Errorf("%w: %s", ErrInternal, action)
}

// requireActor rejects an anonymous caller.
func requireActor(actor models.Actor) error {
	if actor.UserID <= 0 {
		return ErrForbiddenOperation
	}
	return nil
}

// requireAcceptedJudge loads the caller's assignment and checks it was accepted.
func (b base) requireAcceptedJudge(ctx context.Context, exec repositories.SQLExecutor, matchID int, actor models.Actor) (*models.JudgeAssignment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	assignment, err := b.store.Assignments.Get(ctx, exec, matchID, actor.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrJudgeNotAccepted
		}
		return nil, err
	}
	if assignment.Status != models.AssignmentAccepted {
		return nil, ErrJudgeNotAccepted
	}
	return assignment, nil
}

// openMatch loads a match that can still take officiating writes. The share
// lock orders the write against SubmitResults, which locks the row FOR UPDATE.
func (b base) openMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.Match, error) {
	match, err := b.store.Matches.GetByIDForShare(ctx, exec, matchID)
	if err != nil {
		return nil, err
	}
	if match.IsFinalized() {
		return nil, ErrMatchCompleted
	}
	return match, nil
}

func validateScores(names []string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || v < models.MinCriterionScore || v > models.MaxCriterionScore {
			return &ValidationError{
				Field:  names[i],
				Reason: fmt.Sprintf("must be between %d and %d, got %v", int(models.MinCriterionScore), int(models.MaxCriterionScore), v),
			}
		}
	}
	return nil
}

// timerError maps state machine rejections onto the taxonomy.
func timerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, officiating.ErrTimerNotFound):
		return ErrTimerNotFound
	case errors.Is(err, officiating.ErrInvalidDuration):
		return &ValidationError{Field: "duration", Reason: err.Error()}
	default:
		return fmt.Errorf("%w: %w", ErrPreconditionFailed, err)
	}
}
