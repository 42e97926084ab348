package repositories

import (
	"context"
	"fmt"

	"github.com/Dosada05/coding-league/models"
	"github.com/jmoiron/sqlx"
)

var ErrTimerNotFound = fmt.Errorf("%w: match timer", ErrNotFound)

type TimerRepository interface {
	Get(ctx context.Context, exec SQLExecutor, matchID int) (*models.MatchTimer, error)
	GetForUpdate(ctx context.Context, exec SQLExecutor, matchID int) (*models.MatchTimer, error)
	// Save writes the whole timer row, inserting it if absent.
	Save(ctx context.Context, exec SQLExecutor, timer *models.MatchTimer) error
}

const selectTimerSQL = `
	SELECT match_id, started_at, accumulated_elapsed, paused_at, total_duration, half_duration,
	       current_half, halftime_status, running, updated_at
	FROM match_timers
	WHERE match_id = $1`

type postgresTimerRepository struct {
	baseRepository
}

func NewPostgresTimerRepository(db *sqlx.DB) TimerRepository {
	return &postgresTimerRepository{baseRepository{db: db}}
}

func (r *postgresTimerRepository) Get(ctx context.Context, exec SQLExecutor, matchID int) (*models.MatchTimer, error) {
	var timer models.MatchTimer
	if err := getOne(ctx, r.getExecutor(exec), &timer, ErrTimerNotFound, selectTimerSQL, matchID); err != nil {
		return nil, err
	}
	return &timer, nil
}

func (r *postgresTimerRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, matchID int) (*models.MatchTimer, error) {
	var timer models.MatchTimer
	if err := getOne(ctx, r.getExecutor(exec), &timer, ErrTimerNotFound, selectTimerSQL+` FOR UPDATE`, matchID); err != nil {
		return nil, err
	}
	return &timer, nil
}

func (r *postgresTimerRepository) Save(ctx context.Context, exec SQLExecutor, timer *models.MatchTimer) error {
	query := `
		INSERT INTO match_timers
			(match_id, started_at, accumulated_elapsed, paused_at, total_duration, half_duration,
			 current_half, halftime_status, running, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (match_id) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			accumulated_elapsed = EXCLUDED.accumulated_elapsed,
			paused_at = EXCLUDED.paused_at,
			total_duration = EXCLUDED.total_duration,
			half_duration = EXCLUDED.half_duration,
			current_half = EXCLUDED.current_half,
			halftime_status = EXCLUDED.halftime_status,
			running = EXCLUDED.running,
			updated_at = EXCLUDED.updated_at`

	_, err := r.getExecutor(exec).ExecContext(ctx, query,
		timer.MatchID,
		timer.StartedAt,
		timer.AccumulatedElapsed,
		timer.PausedAt,
		timer.TotalDuration,
		timer.HalfDuration,
		timer.CurrentHalf,
		timer.HalftimeStatus,
		timer.Running,
		timer.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save timer for match %d: %w", timer.MatchID, handlePQError(err))
	}
	return nil
}
