package services

import (
	"context"

	"github.com/Dosada05/coding-league/live"
	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/repositories"
)

type JudgingService interface {
	Respond(ctx context.Context, actor models.Actor, matchID int, accept bool) (*models.JudgeAssignment, error)
	ListAssignments(ctx context.Context, matchID int) ([]*models.JudgeAssignment, error)
}

type judgingService struct {
	base
}

func NewJudgingService(deps Dependencies) JudgingService {
	return &judgingService{base: newBase(deps, "judging")}
}

// Respond accepts or declines the caller's assignment. Accepting twice is a
// no-op. A declined assignment is final, and an accepted one can only be
// declined before play starts.
func (s *judgingService) Respond(ctx context.Context, actor models.Actor, matchID int, accept bool) (*models.JudgeAssignment, error) {
	if err := requireActor(actor); err != nil {
		return nil, s.finish(ctx, "judge.respond", err)
	}

	target := models.AssignmentDeclined
	if accept {
		target = models.AssignmentAccepted
	}

	var assignment *models.JudgeAssignment
	changed := false
	err := s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.openMatch(ctx, exec, matchID)
		if err != nil {
			return err
		}

		assignment, err = s.store.Assignments.Get(ctx, exec, matchID, actor.UserID)
		if err != nil {
			return err
		}
		switch {
		case assignment.Status == target:
			return nil
		case assignment.Status == models.AssignmentDeclined:
			return ErrAssignmentResponded
		case assignment.Status == models.AssignmentAccepted && match.Status != models.StatusScheduled:
			return ErrAssignmentResponded
		}

		now := s.now()
		if err := s.store.Assignments.UpdateStatus(ctx, exec, matchID, actor.UserID, target, now); err != nil {
			return err
		}
		assignment.Status = target
		assignment.RespondedAt = &now
		changed = true
		return nil
	})
	if err = s.finish(ctx, "judge.respond", err); err != nil {
		return nil, err
	}

	if changed {
		s.notify(ctx, live.MatchChannel(matchID), "judge.responded", assignment)
	}
	return assignment, nil
}

func (s *judgingService) ListAssignments(ctx context.Context, matchID int) ([]*models.JudgeAssignment, error) {
	if _, err := s.store.Matches.GetByID(ctx, nil, matchID); err != nil {
		return nil, s.finish(ctx, "judge.list", err)
	}
	assignments, err := s.store.Assignments.ListByMatch(ctx, nil, matchID)
	if err != nil {
		return nil, s.finish(ctx, "judge.list", err)
	}
	return assignments, nil
}
