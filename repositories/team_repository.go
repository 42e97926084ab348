package repositories

import (
	"context"
	"fmt"

	"github.com/Dosada05/coding-league/models"
	"github.com/jmoiron/sqlx"
)

var (
	ErrTeamNotFound   = fmt.Errorf("%w: team", ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("%w: team member", ErrNotFound)
)

type TeamRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error)
	// GetByIDForUpdate locks the team row. Roster mutations take this lock
	// before counting members so concurrent adds serialize per team.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error)
	SetCaptain(ctx context.Context, exec SQLExecutor, teamID int, captainID *int) error
}

type TeamMemberRepository interface {
	CountActive(ctx context.Context, exec SQLExecutor, teamID int) (int, error)
	Get(ctx context.Context, exec SQLExecutor, teamID, playerID int) (*models.TeamMember, error)
	ListByTeam(ctx context.Context, exec SQLExecutor, teamID int) ([]*models.TeamMember, error)
	ListByPlayer(ctx context.Context, exec SQLExecutor, playerID int) ([]*models.TeamMember, error)
	// Upsert inserts the membership or updates role and activity in place.
	Upsert(ctx context.Context, exec SQLExecutor, member *models.TeamMember) error
	Delete(ctx context.Context, exec SQLExecutor, teamID, playerID int) error
}

const selectTeamSQL = `
	SELECT id, name, school_id, tier, captain_id, created_at
	FROM teams
	WHERE id = $1`

type postgresTeamRepository struct {
	baseRepository
}

func NewPostgresTeamRepository(db *sqlx.DB) TeamRepository {
	return &postgresTeamRepository{baseRepository{db: db}}
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	var team models.Team
	if err := getOne(ctx, r.getExecutor(exec), &team, ErrTeamNotFound, selectTeamSQL, id); err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *postgresTeamRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Team, error) {
	var team models.Team
	if err := getOne(ctx, r.getExecutor(exec), &team, ErrTeamNotFound, selectTeamSQL+` FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *postgresTeamRepository) SetCaptain(ctx context.Context, exec SQLExecutor, teamID int, captainID *int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE teams SET captain_id = $1 WHERE id = $2`, captainID, teamID)
	if err != nil {
		return fmt.Errorf("failed to set captain for team %d: %w", teamID, handlePQError(err))
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

const teamMemberColumns = `id, team_id, player_id, role, is_active, joined_at, updated_at`

type postgresTeamMemberRepository struct {
	baseRepository
}

func NewPostgresTeamMemberRepository(db *sqlx.DB) TeamMemberRepository {
	return &postgresTeamMemberRepository{baseRepository{db: db}}
}

func (r *postgresTeamMemberRepository) CountActive(ctx context.Context, exec SQLExecutor, teamID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM team_members WHERE team_id = $1 AND is_active = TRUE`
	if err := sqlx.GetContext(ctx, r.getExecutor(exec), &count, query, teamID); err != nil {
		return 0, fmt.Errorf("failed to count active members of team %d: %w", teamID, err)
	}
	return count, nil
}

func (r *postgresTeamMemberRepository) Get(ctx context.Context, exec SQLExecutor, teamID, playerID int) (*models.TeamMember, error) {
	query := `SELECT ` + teamMemberColumns + ` FROM team_members WHERE team_id = $1 AND player_id = $2`
	var member models.TeamMember
	if err := getOne(ctx, r.getExecutor(exec), &member, ErrMemberNotFound, query, teamID, playerID); err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *postgresTeamMemberRepository) ListByTeam(ctx context.Context, exec SQLExecutor, teamID int) ([]*models.TeamMember, error) {
	query := `SELECT ` + teamMemberColumns + ` FROM team_members WHERE team_id = $1 ORDER BY is_active DESC, joined_at ASC, id ASC`
	members := make([]*models.TeamMember, 0)
	if err := sqlx.SelectContext(ctx, r.getExecutor(exec), &members, query, teamID); err != nil {
		return nil, fmt.Errorf("failed to list members of team %d: %w", teamID, err)
	}
	return members, nil
}

func (r *postgresTeamMemberRepository) ListByPlayer(ctx context.Context, exec SQLExecutor, playerID int) ([]*models.TeamMember, error) {
	query := `SELECT ` + teamMemberColumns + ` FROM team_members WHERE player_id = $1 ORDER BY id ASC`
	members := make([]*models.TeamMember, 0)
	if err := sqlx.SelectContext(ctx, r.getExecutor(exec), &members, query, playerID); err != nil {
		return nil, fmt.Errorf("failed to list memberships of player %d: %w", playerID, err)
	}
	return members, nil
}

func (r *postgresTeamMemberRepository) Upsert(ctx context.Context, exec SQLExecutor, member *models.TeamMember) error {
	query := `
		INSERT INTO team_members (team_id, player_id, role, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT ON CONSTRAINT team_members_team_id_player_id_key DO UPDATE SET
			role = EXCLUDED.role,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING ` + teamMemberColumns

	err := sqlx.GetContext(ctx, r.getExecutor(exec), member, query,
		member.TeamID,
		member.PlayerID,
		member.Role,
		member.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert member %d of team %d: %w", member.PlayerID, member.TeamID, handlePQError(err))
	}
	return nil
}

func (r *postgresTeamMemberRepository) Delete(ctx context.Context, exec SQLExecutor, teamID, playerID int) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `DELETE FROM team_members WHERE team_id = $1 AND player_id = $2`, teamID, playerID)
	if err != nil {
		return fmt.Errorf("failed to delete member %d of team %d: %w", playerID, teamID, err)
	}
	return checkAffectedRows(result, ErrMemberNotFound)
}
