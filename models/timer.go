package models

import "time"

type HalftimeStatus string

const (
	PhaseFirstHalf  HalftimeStatus = "first_half"
	PhaseHalftime   HalftimeStatus = "halftime"
	PhaseSecondHalf HalftimeStatus = "second_half"
	PhaseCompleted  HalftimeStatus = "completed"
)

// MatchTimer хранит состояние часов матча. Время в секундах.
// Invariant: Running implies StartedAt != nil and PausedAt == nil.
type MatchTimer struct {
	MatchID            int            `json:"match_id" db:"match_id"`
	StartedAt          *time.Time     `json:"started_at,omitempty" db:"started_at"`
	AccumulatedElapsed float64        `json:"accumulated_elapsed" db:"accumulated_elapsed"`
	PausedAt           *time.Time     `json:"paused_at,omitempty" db:"paused_at"`
	TotalDuration      float64        `json:"total_duration" db:"total_duration"`
	HalfDuration       float64        `json:"half_duration" db:"half_duration"`
	CurrentHalf        int            `json:"current_half" db:"current_half"`
	HalftimeStatus     HalftimeStatus `json:"halftime_status" db:"halftime_status"`
	Running            bool           `json:"running" db:"running"`
	UpdatedAt          time.Time      `json:"updated_at" db:"updated_at"`
}

// Elapsed returns the elapsed seconds as seen at now.
func (t *MatchTimer) Elapsed(now time.Time) float64 {
	if t.Running && t.StartedAt != nil {
		return t.AccumulatedElapsed + now.Sub(*t.StartedAt).Seconds()
	}
	return t.AccumulatedElapsed
}

// TimerSnapshot is what callers and observers see.
type TimerSnapshot struct {
	MatchTimer
	Elapsed   float64 `json:"elapsed"`
	Remaining float64 `json:"remaining"`
}

func (t *MatchTimer) Snapshot(now time.Time) TimerSnapshot {
	elapsed := t.Elapsed(now)
	remaining := t.TotalDuration - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return TimerSnapshot{MatchTimer: *t, Elapsed: elapsed, Remaining: remaining}
}
