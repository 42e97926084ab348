package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Dosada05/coding-league/live"
	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/officiating"
	"github.com/Dosada05/coding-league/repositories"
)

type TimerService interface {
	// Start creates or restarts the match clock. A zero duration uses the
	// configured default.
	Start(ctx context.Context, actor models.Actor, matchID int, duration time.Duration) (*models.TimerSnapshot, error)
	Pause(ctx context.Context, actor models.Actor, matchID int) (*models.TimerSnapshot, error)
	Resume(ctx context.Context, actor models.Actor, matchID int) (*models.TimerSnapshot, error)
	End(ctx context.Context, actor models.Actor, matchID int, closingComments string) (*models.TimerSnapshot, error)
	Get(ctx context.Context, matchID int) (*models.TimerSnapshot, error)
}

type timerService struct {
	base
	defaultDuration time.Duration
}

func NewTimerService(deps Dependencies, defaultDuration time.Duration) TimerService {
	return &timerService{
		base:            newBase(deps, "timer"),
		defaultDuration: defaultDuration,
	}
}

type matchStatusPayload struct {
	MatchID int                  `json:"match_id"`
	Status  models.MatchStatus   `json:"status"`
	Timer   models.TimerSnapshot `json:"timer"`
}

func (s *timerService) Start(ctx context.Context, actor models.Actor, matchID int, duration time.Duration) (*models.TimerSnapshot, error) {
	if duration == 0 {
		duration = s.defaultDuration
	}

	var snapshot models.TimerSnapshot
	err := s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.store.Matches.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if match.IsCompleted() {
			return ErrMatchCompleted
		}
		if _, err := s.requireAcceptedJudge(ctx, exec, matchID, actor); err != nil {
			return err
		}

		current, err := s.lockTimer(ctx, exec, matchID)
		if err != nil {
			return err
		}
		now := s.now()
		next, err := officiating.ApplyTimerEvent(current, officiating.Start(duration), now)
		if err != nil {
			return timerError(err)
		}
		next.MatchID = matchID
		if err := s.store.Timers.Save(ctx, exec, &next); err != nil {
			return err
		}
		if match.Status != models.StatusInProgress {
			if err := s.store.Matches.UpdateStatus(ctx, exec, matchID, models.StatusInProgress); err != nil {
				return err
			}
		}
		snapshot = next.Snapshot(now)
		return nil
	})
	if err = s.finish(ctx, "timer.start", err); err != nil {
		return nil, err
	}

	channel := live.MatchChannel(matchID)
	s.notify(ctx, channel, "timer.started", snapshot)
	s.notify(ctx, channel, "match.updated", matchStatusPayload{MatchID: matchID, Status: models.StatusInProgress, Timer: snapshot})
	return &snapshot, nil
}

func (s *timerService) Pause(ctx context.Context, actor models.Actor, matchID int) (*models.TimerSnapshot, error) {
	snapshot, err := s.transition(ctx, actor, matchID, officiating.Pause())
	if err = s.finish(ctx, "timer.pause", err); err != nil {
		return nil, err
	}

	channel := live.MatchChannel(matchID)
	s.notify(ctx, channel, "timer.paused", snapshot)
	s.notify(ctx, channel, "match.updated", matchStatusPayload{MatchID: matchID, Status: models.StatusInProgress, Timer: *snapshot})
	return snapshot, nil
}

func (s *timerService) Resume(ctx context.Context, actor models.Actor, matchID int) (*models.TimerSnapshot, error) {
	snapshot, err := s.transition(ctx, actor, matchID, officiating.Resume())
	if err = s.finish(ctx, "timer.resume", err); err != nil {
		return nil, err
	}

	channel := live.MatchChannel(matchID)
	s.notify(ctx, channel, "timer.resumed", snapshot)
	s.notify(ctx, channel, "match.updated", matchStatusPayload{MatchID: matchID, Status: models.StatusInProgress, Timer: *snapshot})
	return snapshot, nil
}

// transition applies a pause or resume under the timer row lock, so two
// concurrent calls serialize and the second one sees the first one's state.
func (s *timerService) transition(ctx context.Context, actor models.Actor, matchID int, ev officiating.TimerEvent) (*models.TimerSnapshot, error) {
	var snapshot models.TimerSnapshot
	err := s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.store.Matches.GetByID(ctx, exec, matchID); err != nil {
			return err
		}
		if _, err := s.requireAcceptedJudge(ctx, exec, matchID, actor); err != nil {
			return err
		}

		current, err := s.lockTimer(ctx, exec, matchID)
		if err != nil {
			return err
		}
		now := s.now()
		next, err := officiating.ApplyTimerEvent(current, ev, now)
		if err != nil {
			return timerError(err)
		}
		if err := s.store.Timers.Save(ctx, exec, &next); err != nil {
			return err
		}
		snapshot = next.Snapshot(now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (s *timerService) End(ctx context.Context, actor models.Actor, matchID int, closingComments string) (*models.TimerSnapshot, error) {
	var snapshot models.TimerSnapshot
	err := s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		match, err := s.store.Matches.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			return err
		}
		if _, err := s.requireAcceptedJudge(ctx, exec, matchID, actor); err != nil {
			return err
		}

		current, err := s.lockTimer(ctx, exec, matchID)
		if err != nil {
			return err
		}
		now := s.now()
		next, err := officiating.ApplyTimerEvent(current, officiating.End(), now)
		if err != nil {
			return timerError(err)
		}
		if err := s.store.Timers.Save(ctx, exec, &next); err != nil {
			return err
		}
		if !match.IsCompleted() {
			if err := s.store.Matches.UpdateStatus(ctx, exec, matchID, models.MatchStatusCompleted); err != nil {
				return err
			}
		}
		if comments := strings.TrimSpace(closingComments); comments != "" {
			feedback := &models.MatchFeedback{MatchID: matchID, JudgeID: actor.UserID, Message: comments}
			if err := s.store.Feedback.Create(ctx, exec, feedback); err != nil {
				return err
			}
		}
		snapshot = next.Snapshot(now)
		return nil
	})
	if err = s.finish(ctx, "timer.end", err); err != nil {
		return nil, err
	}

	channel := live.MatchChannel(matchID)
	s.notify(ctx, channel, "timer.ended", snapshot)
	s.notify(ctx, channel, "match.updated", matchStatusPayload{MatchID: matchID, Status: models.MatchStatusCompleted, Timer: snapshot})
	return &snapshot, nil
}

func (s *timerService) Get(ctx context.Context, matchID int) (*models.TimerSnapshot, error) {
	timer, err := s.store.Timers.Get(ctx, nil, matchID)
	if err != nil {
		return nil, s.finish(ctx, "timer.get", err)
	}
	snapshot := timer.Snapshot(s.now())
	return &snapshot, nil
}

// lockTimer returns nil without error when the match has no timer yet.
func (s *timerService) lockTimer(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.MatchTimer, error) {
	timer, err := s.store.Timers.GetForUpdate(ctx, exec, matchID)
	if errors.Is(err, repositories.ErrTimerNotFound) {
		return nil, nil
	}
	return timer, err
}
