// Package officiating holds the pure rules of match officiating: the timer
// state machine, score aggregation and tier qualification. Nothing in here
// touches the database or the network.
package officiating

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/coding-league/models"
)

var (
	ErrTimerNotFound     = errors.New("match timer not found")
	ErrTimerNotRunning   = errors.New("match timer is not running")
	ErrTimerRunning      = errors.New("match timer is already running")
	ErrTimerCompleted    = errors.New("match timer is completed")
	ErrInvalidDuration   = errors.New("match duration must be positive")
	ErrUnknownTimerEvent = errors.New("unknown timer event")
)

type TimerEventKind string

const (
	TimerStart  TimerEventKind = "start"
	TimerPause  TimerEventKind = "pause"
	TimerResume TimerEventKind = "resume"
	TimerEnd    TimerEventKind = "end"
)

// TimerEvent is an input to ApplyTimerEvent. Duration is only read by Start.
type TimerEvent struct {
	Kind     TimerEventKind
	Duration time.Duration
}

func Start(duration time.Duration) TimerEvent {
	return TimerEvent{Kind: TimerStart, Duration: duration}
}

func Pause() TimerEvent  { return TimerEvent{Kind: TimerPause} }
func Resume() TimerEvent { return TimerEvent{Kind: TimerResume} }
func End() TimerEvent    { return TimerEvent{Kind: TimerEnd} }

// ApplyTimerEvent is the single authority for timer transitions.
// current is nil when the match has no timer yet. The input is never
// mutated; the returned value is the state to persist.
func ApplyTimerEvent(current *models.MatchTimer, ev TimerEvent, now time.Time) (models.MatchTimer, error) {
	if ev.Kind == TimerStart {
		return applyStart(current, ev.Duration, now)
	}
	if current == nil {
		return models.MatchTimer{}, ErrTimerNotFound
	}

	next := *current
	next.UpdatedAt = now

	switch ev.Kind {
	case TimerPause:
		if next.HalftimeStatus == models.PhaseCompleted {
			return models.MatchTimer{}, ErrTimerCompleted
		}
		if !next.Running {
			return models.MatchTimer{}, ErrTimerNotRunning
		}
		captureElapsed(&next, now)
		if next.CurrentHalf == 1 && next.AccumulatedElapsed >= next.HalfDuration {
			next.HalftimeStatus = models.PhaseHalftime
		}
		return next, nil

	case TimerResume:
		if next.HalftimeStatus == models.PhaseCompleted {
			return models.MatchTimer{}, ErrTimerCompleted
		}
		if next.Running {
			return models.MatchTimer{}, ErrTimerRunning
		}
		if next.HalftimeStatus == models.PhaseHalftime {
			next.CurrentHalf = 2
			next.HalftimeStatus = models.PhaseSecondHalf
		}
		next.Running = true
		next.StartedAt = timePtr(now)
		next.PausedAt = nil
		return next, nil

	case TimerEnd:
		if next.HalftimeStatus == models.PhaseCompleted {
			return models.MatchTimer{}, ErrTimerCompleted
		}
		if next.Running {
			captureElapsed(&next, now)
		}
		next.HalftimeStatus = models.PhaseCompleted
		next.Running = false
		return next, nil
	}

	return models.MatchTimer{}, fmt.Errorf("%w: %q", ErrUnknownTimerEvent, ev.Kind)
}

func applyStart(current *models.MatchTimer, duration time.Duration, now time.Time) (models.MatchTimer, error) {
	if duration <= 0 {
		return models.MatchTimer{}, ErrInvalidDuration
	}
	total := duration.Seconds()

	next := models.MatchTimer{
		CurrentHalf:    1,
		HalftimeStatus: models.PhaseFirstHalf,
	}
	if current != nil {
		if current.HalftimeStatus == models.PhaseCompleted {
			return models.MatchTimer{}, ErrTimerCompleted
		}
		// Restart keeps the half the match was in.
		next.MatchID = current.MatchID
		if current.CurrentHalf == 2 {
			next.CurrentHalf = 2
			next.HalftimeStatus = models.PhaseSecondHalf
		}
	}

	next.AccumulatedElapsed = 0
	next.TotalDuration = total
	next.HalfDuration = total / 2
	next.Running = true
	next.StartedAt = timePtr(now)
	next.PausedAt = nil
	next.UpdatedAt = now
	return next, nil
}

// captureElapsed folds the running segment into AccumulatedElapsed and stops the clock.
func captureElapsed(t *models.MatchTimer, now time.Time) {
	t.AccumulatedElapsed = t.Elapsed(now)
	t.StartedAt = nil
	t.PausedAt = timePtr(now)
	t.Running = false
}

func timePtr(t time.Time) *time.Time {
	return &t
}
