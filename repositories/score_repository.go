package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/coding-league/models"
	"github.com/jmoiron/sqlx"
)

var (
	ErrScoreNotFound = fmt.Errorf("%w: judge score", ErrNotFound)
	ErrScoreLocked   = errors.New("judge score is locked")
)

type ScoreRepository interface {
	// UpsertJudgeScore inserts or updates the score in one statement. It
	// returns ErrScoreLocked without writing when the stored row is locked.
	UpsertJudgeScore(ctx context.Context, exec SQLExecutor, score *models.JudgeScore) error
	LockJudgeScore(ctx context.Context, exec SQLExecutor, matchID, judgeID, teamID int, at time.Time) (*models.JudgeScore, error)
	GetJudgeScore(ctx context.Context, exec SQLExecutor, matchID, judgeID, teamID int) (*models.JudgeScore, error)
	ListJudgeScores(ctx context.Context, exec SQLExecutor, matchID int, lockedOnly bool) ([]models.JudgeScore, error)

	UpsertPlayerScore(ctx context.Context, exec SQLExecutor, score *models.PlayerScore) error
	ListPlayerScores(ctx context.Context, exec SQLExecutor, matchID int) ([]models.PlayerScore, error)

	UpsertAutoScore(ctx context.Context, exec SQLExecutor, score *models.AutoScore) error
	ListAutoScores(ctx context.Context, exec SQLExecutor, matchID int) ([]models.AutoScore, error)
}

type FeedbackRepository interface {
	Create(ctx context.Context, exec SQLExecutor, feedback *models.MatchFeedback) error
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int, publicOnly bool) ([]*models.MatchFeedback, error)
}

const judgeScoreColumns = `id, match_id, judge_id, team_id, code_functionality, innovation, presentation,
	problem_relevance, feasibility, collaboration, comments, is_locked, submitted_at, updated_at`

type postgresScoreRepository struct {
	baseRepository
}

func NewPostgresScoreRepository(db *sqlx.DB) ScoreRepository {
	return &postgresScoreRepository{baseRepository{db: db}}
}

func (r *postgresScoreRepository) UpsertJudgeScore(ctx context.Context, exec SQLExecutor, score *models.JudgeScore) error {
	query := `
		INSERT INTO judge_scores
			(match_id, judge_id, team_id, code_functionality, innovation, presentation,
			 problem_relevance, feasibility, collaboration, comments, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (match_id, judge_id, team_id) DO UPDATE SET
			code_functionality = EXCLUDED.code_functionality,
			innovation = EXCLUDED.innovation,
			presentation = EXCLUDED.presentation,
			problem_relevance = EXCLUDED.problem_relevance,
			feasibility = EXCLUDED.feasibility,
			collaboration = EXCLUDED.collaboration,
			comments = EXCLUDED.comments,
			updated_at = now()
		WHERE judge_scores.is_locked = FALSE
		RETURNING ` + judgeScoreColumns

	err := sqlx.GetContext(ctx, r.getExecutor(exec), score, query,
		score.MatchID,
		score.JudgeID,
		score.TeamID,
		score.CodeFunctionality,
		score.Innovation,
		score.Presentation,
		score.ProblemRelevance,
		score.Feasibility,
		score.Collaboration,
		score.Comments,
	)
	if err != nil {
		// The conflict branch filtered by is_locked returns no row.
		if errors.Is(err, sql.ErrNoRows) {
			return ErrScoreLocked
		}
		return fmt.Errorf("failed to upsert judge score: %w", handlePQError(err))
	}
	return nil
}

func (r *postgresScoreRepository) LockJudgeScore(ctx context.Context, exec SQLExecutor, matchID, judgeID, teamID int, at time.Time) (*models.JudgeScore, error) {
	query := `
		UPDATE judge_scores
		SET is_locked = TRUE,
		    submitted_at = COALESCE(submitted_at, $1),
		    updated_at = now()
		WHERE match_id = $2 AND judge_id = $3 AND team_id = $4
		RETURNING ` + judgeScoreColumns
	var score models.JudgeScore
	if err := getOne(ctx, r.getExecutor(exec), &score, ErrScoreNotFound, query, at, matchID, judgeID, teamID); err != nil {
		return nil, err
	}
	return &score, nil
}

func (r *postgresScoreRepository) GetJudgeScore(ctx context.Context, exec SQLExecutor, matchID, judgeID, teamID int) (*models.JudgeScore, error) {
	query := `SELECT ` + judgeScoreColumns + ` FROM judge_scores WHERE match_id = $1 AND judge_id = $2 AND team_id = $3`
	var score models.JudgeScore
	if err := getOne(ctx, r.getExecutor(exec), &score, ErrScoreNotFound, query, matchID, judgeID, teamID); err != nil {
		return nil, err
	}
	return &score, nil
}

func (r *postgresScoreRepository) ListJudgeScores(ctx context.Context, exec SQLExecutor, matchID int, lockedOnly bool) ([]models.JudgeScore, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + judgeScoreColumns + ` FROM judge_scores WHERE match_id = $1`)
	if lockedOnly {
		queryBuilder.WriteString(` AND is_locked = TRUE`)
	}
	queryBuilder.WriteString(` ORDER BY team_id ASC, judge_id ASC`)

	scores := make([]models.JudgeScore, 0)
	if err := sqlx.SelectContext(ctx, r.getExecutor(exec), &scores, queryBuilder.String(), matchID); err != nil {
		return nil, fmt.Errorf("failed to list judge scores for match %d: %w", matchID, err)
	}
	return scores, nil
}

func (r *postgresScoreRepository) UpsertPlayerScore(ctx context.Context, exec SQLExecutor, score *models.PlayerScore) error {
	query := `
		INSERT INTO player_scores
			(match_id, judge_id, player_id, role_performance, initiative, technical_mastery,
			 creativity, collaboration, notes, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (match_id, judge_id, player_id) DO UPDATE SET
			role_performance = EXCLUDED.role_performance,
			initiative = EXCLUDED.initiative,
			technical_mastery = EXCLUDED.technical_mastery,
			creativity = EXCLUDED.creativity,
			collaboration = EXCLUDED.collaboration,
			notes = EXCLUDED.notes,
			updated_at = now()
		RETURNING id, updated_at`

	err := r.getExecutor(exec).QueryRowxContext(ctx, query,
		score.MatchID,
		score.JudgeID,
		score.PlayerID,
		score.RolePerformance,
		score.Initiative,
		score.TechnicalMastery,
		score.Creativity,
		score.Collaboration,
		score.Notes,
	).Scan(&score.ID, &score.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert player score: %w", handlePQError(err))
	}
	return nil
}

func (r *postgresScoreRepository) ListPlayerScores(ctx context.Context, exec SQLExecutor, matchID int) ([]models.PlayerScore, error) {
	query := `
		SELECT id, match_id, judge_id, player_id, role_performance, initiative, technical_mastery,
		       creativity, collaboration, notes, updated_at
		FROM player_scores
		WHERE match_id = $1
		ORDER BY player_id ASC, judge_id ASC`
	scores := make([]models.PlayerScore, 0)
	if err := sqlx.SelectContext(ctx, r.getExecutor(exec), &scores, query, matchID); err != nil {
		return nil, fmt.Errorf("failed to list player scores for match %d: %w", matchID, err)
	}
	return scores, nil
}

func (r *postgresScoreRepository) UpsertAutoScore(ctx context.Context, exec SQLExecutor, score *models.AutoScore) error {
	query := `
		INSERT INTO auto_scores
			(match_id, team_id, functionality_score, innovation_score, plagiarism_flag,
			 ai_generated_flag, suggestions, evaluated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (match_id, team_id) DO UPDATE SET
			functionality_score = EXCLUDED.functionality_score,
			innovation_score = EXCLUDED.innovation_score,
			plagiarism_flag = EXCLUDED.plagiarism_flag,
			ai_generated_flag = EXCLUDED.ai_generated_flag,
			suggestions = EXCLUDED.suggestions,
			evaluated_at = EXCLUDED.evaluated_at
		RETURNING id`

	err := r.getExecutor(exec).QueryRowxContext(ctx, query,
		score.MatchID,
		score.TeamID,
		score.FunctionalityScore,
		score.InnovationScore,
		score.PlagiarismFlag,
		score.AIGeneratedFlag,
		score.Suggestions,
		score.EvaluatedAt,
	).Scan(&score.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert auto score: %w", handlePQError(err))
	}
	return nil
}

func (r *postgresScoreRepository) ListAutoScores(ctx context.Context, exec SQLExecutor, matchID int) ([]models.AutoScore, error) {
	query := `
		SELECT id, match_id, team_id, functionality_score, innovation_score, plagiarism_flag,
		       ai_generated_flag, suggestions, evaluated_at
		FROM auto_scores
		WHERE match_id = $1
		ORDER BY team_id ASC`
	scores := make([]models.AutoScore, 0)
	if err := sqlx.SelectContext(ctx, r.getExecutor(exec), &scores, query, matchID); err != nil {
		return nil, fmt.Errorf("failed to list auto scores for match %d: %w", matchID, err)
	}
	return scores, nil
}

type postgresFeedbackRepository struct {
	baseRepository
}

func NewPostgresFeedbackRepository(db *sqlx.DB) FeedbackRepository {
	return &postgresFeedbackRepository{baseRepository{db: db}}
}

func (r *postgresFeedbackRepository) Create(ctx context.Context, exec SQLExecutor, feedback *models.MatchFeedback) error {
	query := `
		INSERT INTO match_feedback (match_id, judge_id, team_id, player_id, message, is_public)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`
	err := r.getExecutor(exec).QueryRowxContext(ctx, query,
		feedback.MatchID,
		feedback.JudgeID,
		feedback.TeamID,
		feedback.PlayerID,
		feedback.Message,
		feedback.IsPublic,
	).Scan(&feedback.ID, &feedback.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match feedback: %w", handlePQError(err))
	}
	return nil
}

func (r *postgresFeedbackRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int, publicOnly bool) ([]*models.MatchFeedback, error) {
	query := `
		SELECT id, match_id, judge_id, team_id, player_id, message, is_public, created_at
		FROM match_feedback
		WHERE match_id = $1 AND (is_public OR NOT $2)
		ORDER BY created_at ASC, id ASC`
	feedback := make([]*models.MatchFeedback, 0)
	if err := sqlx.SelectContext(ctx, r.getExecutor(exec), &feedback, query, matchID, publicOnly); err != nil {
		return nil, fmt.Errorf("failed to list feedback for match %d: %w", matchID, err)
	}
	return feedback, nil
}
