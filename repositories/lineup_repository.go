package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/coding-league/models"
	"github.com/jmoiron/sqlx"
)

type LineupRepository interface {
	// Replace deletes every entry for (match, team) and inserts entries.
	// Callers must run it inside a transaction for the swap to be atomic.
	Replace(ctx context.Context, exec SQLExecutor, matchID, teamID int, entries []*models.LineupEntry) error
	Approve(ctx context.Context, exec SQLExecutor, matchID, teamID int, approvedAt time.Time) (int64, error)
	ListByTeam(ctx context.Context, exec SQLExecutor, matchID, teamID int) ([]*models.LineupEntry, error)
	IsPlayerApproved(ctx context.Context, exec SQLExecutor, matchID, playerID int) (bool, error)
}

type postgresLineupRepository struct {
	baseRepository
}

func NewPostgresLineupRepository(db *sqlx.DB) LineupRepository {
	return &postgresLineupRepository{baseRepository{db: db}}
}

func (r *postgresLineupRepository) Replace(ctx context.Context, exec SQLExecutor, matchID, teamID int, entries []*models.LineupEntry) error {
	executor := r.getExecutor(exec)

	if _, err := executor.ExecContext(ctx, `DELETE FROM match_lineups WHERE match_id = $1 AND team_id = $2`, matchID, teamID); err != nil {
		return fmt.Errorf("failed to clear lineup for match %d team %d: %w", matchID, teamID, err)
	}

	query := `
		INSERT INTO match_lineups
			(match_id, team_id, player_id, position, role, is_captain, is_substitute, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	for _, entry := range entries {
		err := executor.QueryRowxContext(ctx, query,
			matchID,
			teamID,
			entry.PlayerID,
			entry.Position,
			entry.Role,
			entry.IsCaptain,
			entry.IsSubstitute,
			entry.Status,
			entry.SubmittedAt,
		).Scan(&entry.ID)
		if err != nil {
			return fmt.Errorf("failed to insert lineup entry for player %d: %w", entry.PlayerID, handlePQError(err))
		}
	}
	return nil
}

func (r *postgresLineupRepository) Approve(ctx context.Context, exec SQLExecutor, matchID, teamID int, approvedAt time.Time) (int64, error) {
	query := `UPDATE match_lineups SET status = $1, approved_at = $2 WHERE match_id = $3 AND team_id = $4`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, models.LineupApproved, approvedAt, matchID, teamID)
	if err != nil {
		return 0, fmt.Errorf("failed to approve lineup for match %d team %d: %w", matchID, teamID, err)
	}
	return rowsAffected(result)
}

func (r *postgresLineupRepository) ListByTeam(ctx context.Context, exec SQLExecutor, matchID, teamID int) ([]*models.LineupEntry, error) {
	query := `
		SELECT id, match_id, team_id, player_id, position, role, is_captain, is_substitute,
		       status, submitted_at, approved_at
		FROM match_lineups
		WHERE match_id = $1 AND team_id = $2
		ORDER BY position ASC, id ASC`
	entries := make([]*models.LineupEntry, 0)
	if err := sqlx.SelectContext(ctx, r.getExecutor(exec), &entries, query, matchID, teamID); err != nil {
		return nil, fmt.Errorf("failed to list lineup for match %d team %d: %w", matchID, teamID, err)
	}
	return entries, nil
}

func (r *postgresLineupRepository) IsPlayerApproved(ctx context.Context, exec SQLExecutor, matchID, playerID int) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM match_lineups WHERE match_id = $1 AND player_id = $2 AND status = $3)`
	var approved bool
	if err := sqlx.GetContext(ctx, r.getExecutor(exec), &approved, query, matchID, playerID, models.LineupApproved); err != nil {
		return false, fmt.Errorf("failed to check lineup approval for player %d: %w", playerID, err)
	}
	return approved, nil
}
