package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/coding-league/models"
	"github.com/jmoiron/sqlx"
)

var (
	ErrMatchNotFound      = fmt.Errorf("%w: match", ErrNotFound)
	ErrAssignmentNotFound = fmt.Errorf("%w: judge assignment", ErrNotFound)
)

type MatchRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// GetByIDForUpdate locks the match row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// GetByIDForShare blocks while another transaction holds the row FOR UPDATE
	// and keeps it from being finalized until the surrounding transaction ends.
	GetByIDForShare(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error
	SaveResult(ctx context.Context, exec SQLExecutor, result *models.MatchResult) error
}

type JudgeAssignmentRepository interface {
	Get(ctx context.Context, exec SQLExecutor, matchID, judgeID int) (*models.JudgeAssignment, error)
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.JudgeAssignment, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, matchID, judgeID int, status models.AssignmentStatus, respondedAt time.Time) error
}

const selectMatchSQL = `
	SELECT id, scheduled_at, status, home_team_id, away_team_id, winner_id,
	       home_final_score, away_final_score, draw, created_at, updated_at
	FROM matches
	WHERE id = $1`

type postgresMatchRepository struct {
	baseRepository
}

func NewPostgresMatchRepository(db *sqlx.DB) MatchRepository {
	return &postgresMatchRepository{baseRepository{db: db}}
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	var match models.Match
	if err := getOne(ctx, r.getExecutor(exec), &match, ErrMatchNotFound, selectMatchSQL, id); err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	var match models.Match
	if err := getOne(ctx, r.getExecutor(exec), &match, ErrMatchNotFound, selectMatchSQL+` FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *postgresMatchRepository) GetByIDForShare(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	var match models.Match
	if err := getOne(ctx, r.getExecutor(exec), &match, ErrMatchNotFound, selectMatchSQL+` FOR SHARE`, id); err != nil {
		return nil, err
	}
	return &match, nil
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error {
	query := `UPDATE matches SET status = $1, updated_at = now() WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update match %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SaveResult(ctx context.Context, exec SQLExecutor, result *models.MatchResult) error {
	query := `
		UPDATE matches
		SET status = $1, winner_id = $2, home_final_score = $3, away_final_score = $4, draw = $5, updated_at = now()
		WHERE id = $6`
	res, err := r.getExecutor(exec).ExecContext(ctx, query, models.MatchStatusCompleted,
		result.WinnerID, result.HomeFinalScore, result.AwayFinalScore, result.Draw, result.MatchID)
	if err != nil {
		return fmt.Errorf("failed to save result for match %d: %w", result.MatchID, handlePQError(err))
	}
	return checkAffectedRows(res, ErrMatchNotFound)
}

type postgresJudgeAssignmentRepository struct {
	baseRepository
}

func NewPostgresJudgeAssignmentRepository(db *sqlx.DB) JudgeAssignmentRepository {
	return &postgresJudgeAssignmentRepository{baseRepository{db: db}}
}

func (r *postgresJudgeAssignmentRepository) Get(ctx context.Context, exec SQLExecutor, matchID, judgeID int) (*models.JudgeAssignment, error) {
	query := `
		SELECT id, match_id, judge_id, status, is_main_judge, responded_at, created_at
		FROM judge_assignments
		WHERE match_id = $1 AND judge_id = $2`
	var a models.JudgeAssignment
	if err := getOne(ctx, r.getExecutor(exec), &a, ErrAssignmentNotFound, query, matchID, judgeID); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *postgresJudgeAssignmentRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.JudgeAssignment, error) {
	query := `
		SELECT id, match_id, judge_id, status, is_main_judge, responded_at, created_at
		FROM judge_assignments
		WHERE match_id = $1
		ORDER BY id ASC`
	assignments := make([]*models.JudgeAssignment, 0)
	if err := sqlx.SelectContext(ctx, r.getExecutor(exec), &assignments, query, matchID); err != nil {
		return nil, fmt.Errorf("failed to list judge assignments for match %d: %w", matchID, err)
	}
	return assignments, nil
}

func (r *postgresJudgeAssignmentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, matchID, judgeID int, status models.AssignmentStatus, respondedAt time.Time) error {
	query := `UPDATE judge_assignments SET status = $1, responded_at = $2 WHERE match_id = $3 AND judge_id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, status, respondedAt, matchID, judgeID)
	if err != nil {
		return fmt.Errorf("failed to update judge assignment: %w", err)
	}
	return checkAffectedRows(result, ErrAssignmentNotFound)
}

// IsNotFound reports whether err is any repository not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
