package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dosada05/coding-league/live"
	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/officiating"
	"github.com/Dosada05/coding-league/repositories"
)

const DefaultMaxActiveMembers = 4

type AddMemberInput struct {
	PlayerID int    `json:"player_id"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

// SwapInput describes a one-for-one exchange on TeamID. Without SourceTeamID
// the incoming player comes from the school's reserve and must have no team.
// With it, the two teams trade RemovePlayerID and AddPlayerID.
type SwapInput struct {
	TeamID         int  `json:"team_id"`
	RemovePlayerID int  `json:"remove_player_id"`
	AddPlayerID    int  `json:"add_player_id"`
	SourceTeamID   *int `json:"source_team_id,omitempty"`
}

type SwapResult struct {
	Incoming *models.TeamMember `json:"incoming"`
	// Outgoing is the removed player's new membership in the source team.
	// It is nil for a reserve swap.
	Outgoing        *models.TeamMember `json:"outgoing,omitempty"`
	CaptainsCleared []int              `json:"captains_cleared,omitempty"`
}

type RosterOptions struct {
	MaxActiveMembers int
	Tiers            officiating.TierThresholds
}

type RosterService interface {
	AddMember(ctx context.Context, actor models.Actor, teamID int, in AddMemberInput) (*models.TeamMember, error)
	RemoveMember(ctx context.Context, actor models.Actor, teamID, playerID int) error
	SetCaptain(ctx context.Context, actor models.Actor, teamID, playerID int) (*models.Team, error)
	Swap(ctx context.Context, actor models.Actor, in SwapInput) (*SwapResult, error)
	ListMembers(ctx context.Context, teamID int) ([]*models.TeamMember, error)
}

type rosterService struct {
	base
	maxActive int
	tiers     officiating.TierThresholds
}

func NewRosterService(deps Dependencies, opts RosterOptions) RosterService {
	if opts.MaxActiveMembers <= 0 {
		opts.MaxActiveMembers = DefaultMaxActiveMembers
	}
	if opts.Tiers == (officiating.TierThresholds{}) {
		opts.Tiers = officiating.DefaultTierThresholds()
	}
	return &rosterService{
		base:      newBase(deps, "roster"),
		maxActive: opts.MaxActiveMembers,
		tiers:     opts.Tiers,
	}
}

type rosterPayload struct {
	Action  string `json:"action"`
	TeamIDs []int  `json:"team_ids"`
}

// authorize allows admins, the team's captain and coaches of the team's school.
func (s *rosterService) authorize(ctx context.Context, exec repositories.SQLExecutor, actor models.Actor, team *models.Team) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.IsAdmin() || team.IsCaptain(actor.UserID) {
		return nil
	}
	user, err := s.store.Users.GetByID(ctx, exec, actor.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrForbiddenOperation
		}
		return err
	}
	if user.Role != models.RoleCoach || !user.BelongsToSchool(team.SchoolID) {
		return ErrTeamNotInSchool
	}
	return nil
}

// loadPlayer fetches a player who may join team.
func (s *rosterService) loadPlayer(ctx context.Context, exec repositories.SQLExecutor, playerID int, team *models.Team) (*models.User, error) {
	player, err := s.store.Users.GetByID(ctx, exec, playerID)
	if err != nil {
		return nil, err
	}
	if !player.BelongsToSchool(team.SchoolID) {
		return nil, fmt.Errorf("%w: player %d, team %d", ErrPlayerNotInSchool, playerID, team.ID)
	}
	if err := s.checkQualification(player, team); err != nil {
		return nil, err
	}
	return player, nil
}

func (s *rosterService) checkQualification(player *models.User, team *models.Team) error {
	qualified := s.tiers.QualifiedTier(player.ExperiencePoints)
	if officiating.CanJoin(qualified, team.Tier) {
		return nil
	}
	return &QualificationMismatchError{
		PlayerID:   player.ID,
		PlayerTier: qualified,
		TeamID:     team.ID,
		TeamTier:   team.Tier,
	}
}

// rejected records roster rule violations before the error is returned.
func (s *rosterService) rejected(err error) {
	switch {
	case errors.Is(err, ErrCapacityExceeded):
		s.metrics.RosterRejected("capacity")
	case errors.Is(err, ErrQualificationMismatch):
		s.metrics.RosterRejected("qualification")
	}
}

func (s *rosterService) AddMember(ctx context.Context, actor models.Actor, teamID int, in AddMemberInput) (*models.TeamMember, error) {
	var member *models.TeamMember
	err := s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// Блокируем строку команды: параллельные добавления выстраиваются в очередь.
		team, err := s.store.Teams.GetByIDForUpdate(ctx, exec, teamID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, exec, actor, team); err != nil {
			return err
		}
		if _, err := s.loadPlayer(ctx, exec, in.PlayerID, team); err != nil {
			return err
		}

		existing, err := s.store.Members.Get(ctx, exec, teamID, in.PlayerID)
		if err != nil && !errors.Is(err, repositories.ErrMemberNotFound) {
			return err
		}
		alreadyActive := existing != nil && existing.IsActive
		if in.IsActive && !alreadyActive {
			count, err := s.store.Members.CountActive(ctx, exec, teamID)
			if err != nil {
				return err
			}
			if count >= s.maxActive {
				return &CapacityExceededError{TeamID: teamID, Current: count, Limit: s.maxActive}
			}
		}

		member = &models.TeamMember{TeamID: teamID, PlayerID: in.PlayerID, Role: in.Role, IsActive: in.IsActive}
		if err := s.store.Members.Upsert(ctx, exec, member); err != nil {
			return err
		}
		if !member.IsActive && team.IsCaptain(member.PlayerID) {
			return s.store.Teams.SetCaptain(ctx, exec, teamID, nil)
		}
		return nil
	})
	s.rejected(err)
	if err = s.finish(ctx, "roster.add", err); err != nil {
		return nil, err
	}

	s.notify(ctx, live.LeaderboardChannel, "roster.updated", rosterPayload{Action: "add", TeamIDs: []int{teamID}})
	return member, nil
}

func (s *rosterService) RemoveMember(ctx context.Context, actor models.Actor, teamID, playerID int) error {
	err := s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		team, err := s.store.Teams.GetByIDForUpdate(ctx, exec, teamID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, exec, actor, team); err != nil {
			return err
		}
		if err := s.store.Members.Delete(ctx, exec, teamID, playerID); err != nil {
			return err
		}
		if team.IsCaptain(playerID) {
			return s.store.Teams.SetCaptain(ctx, exec, teamID, nil)
		}
		return nil
	})
	if err = s.finish(ctx, "roster.remove", err); err != nil {
		return err
	}

	s.notify(ctx, live.LeaderboardChannel, "roster.updated", rosterPayload{Action: "remove", TeamIDs: []int{teamID}})
	return nil
}

func (s *rosterService) SetCaptain(ctx context.Context, actor models.Actor, teamID, playerID int) (*models.Team, error) {
	var team *models.Team
	err := s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		team, err = s.store.Teams.GetByIDForUpdate(ctx, exec, teamID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, exec, actor, team); err != nil {
			return err
		}
		member, err := s.store.Members.Get(ctx, exec, teamID, playerID)
		if errors.Is(err, repositories.ErrMemberNotFound) || (err == nil && !member.IsActive) {
			return fmt.Errorf("%w: player %d", ErrPlayerNotActive, playerID)
		}
		if err != nil {
			return err
		}
		if err := s.store.Teams.SetCaptain(ctx, exec, teamID, &playerID); err != nil {
			return err
		}
		team.CaptainID = &playerID
		return nil
	})
	if err = s.finish(ctx, "roster.captain", err); err != nil {
		return nil, err
	}

	s.notify(ctx, live.LeaderboardChannel, "roster.updated", rosterPayload{Action: "captain", TeamIDs: []int{teamID}})
	return team, nil
}

func (s *rosterService) Swap(ctx context.Context, actor models.Actor, in SwapInput) (*SwapResult, error) {
	if in.RemovePlayerID == in.AddPlayerID {
		return nil, s.finish(ctx, "roster.swap", &ValidationError{Field: "add_player_id", Reason: "must differ from remove_player_id"})
	}
	if in.SourceTeamID != nil && *in.SourceTeamID == in.TeamID {
		return nil, s.finish(ctx, "roster.swap", &ValidationError{Field: "source_team_id", Reason: "must differ from team_id"})
	}

	var result *SwapResult
	err := s.store.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		if in.SourceTeamID == nil {
			result, err = s.reserveSwap(ctx, exec, actor, in)
		} else {
			result, err = s.interTeamSwap(ctx, exec, actor, in)
		}
		return err
	})
	s.rejected(err)
	if err = s.finish(ctx, "roster.swap", err); err != nil {
		return nil, err
	}

	teams := []int{in.TeamID}
	if in.SourceTeamID != nil {
		teams = append(teams, *in.SourceTeamID)
	}
	s.notify(ctx, live.LeaderboardChannel, "roster.updated", rosterPayload{Action: "swap", TeamIDs: teams})
	return result, nil
}

func (s *rosterService) reserveSwap(ctx context.Context, exec repositories.SQLExecutor, actor models.Actor, in SwapInput) (*SwapResult, error) {
	team, err := s.store.Teams.GetByIDForUpdate(ctx, exec, in.TeamID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, exec, actor, team); err != nil {
		return nil, err
	}
	outgoing, err := s.store.Members.Get(ctx, exec, in.TeamID, in.RemovePlayerID)
	if err != nil {
		return nil, err
	}
	// Блокируем строку игрока: обмены одного запасного в разные команды
	// держат разные командные блокировки и иначе оба увидят его свободным.
	if _, err := s.store.Users.GetByIDForUpdate(ctx, exec, in.AddPlayerID); err != nil {
		return nil, err
	}
	if _, err := s.loadPlayer(ctx, exec, in.AddPlayerID, team); err != nil {
		return nil, err
	}
	memberships, err := s.store.Members.ListByPlayer(ctx, exec, in.AddPlayerID)
	if err != nil {
		return nil, err
	}
	for _, m := range memberships {
		if m.TeamID == in.TeamID {
			return nil, fmt.Errorf("%w: player %d, team %d", ErrPlayerAlreadyMember, in.AddPlayerID, in.TeamID)
		}
	}
	if len(memberships) > 0 {
		return nil, fmt.Errorf("%w: player %d", ErrPlayerHasTeam, in.AddPlayerID)
	}

	incoming, cleared, err := s.replace(ctx, exec, team, outgoing, in.AddPlayerID)
	if err != nil {
		return nil, err
	}
	result := &SwapResult{Incoming: incoming}
	if cleared {
		result.CaptainsCleared = []int{team.ID}
	}
	return result, nil
}

func (s *rosterService) interTeamSwap(ctx context.Context, exec repositories.SQLExecutor, actor models.Actor, in SwapInput) (*SwapResult, error) {
	sourceID := *in.SourceTeamID

	// Команды блокируются по возрастанию id, чтобы встречные обмены не взаимоблокировались.
	first, second := in.TeamID, sourceID
	if second < first {
		first, second = second, first
	}
	locked := make(map[int]*models.Team, 2)
	for _, id := range []int{first, second} {
		team, err := s.store.Teams.GetByIDForUpdate(ctx, exec, id)
		if err != nil {
			return nil, err
		}
		locked[id] = team
	}
	dest, source := locked[in.TeamID], locked[sourceID]

	for _, team := range []*models.Team{dest, source} {
		if err := s.authorize(ctx, exec, actor, team); err != nil {
			return nil, err
		}
	}

	outgoing, err := s.store.Members.Get(ctx, exec, dest.ID, in.RemovePlayerID)
	if err != nil {
		return nil, err
	}
	incoming, err := s.store.Members.Get(ctx, exec, source.ID, in.AddPlayerID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotMember(ctx, exec, dest.ID, in.AddPlayerID); err != nil {
		return nil, err
	}
	if err := s.ensureNotMember(ctx, exec, source.ID, in.RemovePlayerID); err != nil {
		return nil, err
	}
	if _, err := s.loadPlayer(ctx, exec, in.AddPlayerID, dest); err != nil {
		return nil, err
	}
	if _, err := s.loadPlayer(ctx, exec, in.RemovePlayerID, source); err != nil {
		return nil, err
	}

	result := &SwapResult{}
	joined, clearedDest, err := s.replace(ctx, exec, dest, outgoing, in.AddPlayerID)
	if err != nil {
		return nil, err
	}
	left, clearedSource, err := s.replace(ctx, exec, source, incoming, in.RemovePlayerID)
	if err != nil {
		return nil, err
	}
	result.Incoming, result.Outgoing = joined, left
	if clearedDest {
		result.CaptainsCleared = append(result.CaptainsCleared, dest.ID)
	}
	if clearedSource {
		result.CaptainsCleared = append(result.CaptainsCleared, source.ID)
	}
	return result, nil
}

func (s *rosterService) ensureNotMember(ctx context.Context, exec repositories.SQLExecutor, teamID, playerID int) error {
	_, err := s.store.Members.Get(ctx, exec, teamID, playerID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: player %d, team %d", ErrPlayerAlreadyMember, playerID, teamID)
	case errors.Is(err, repositories.ErrMemberNotFound):
		return nil
	default:
		return err
	}
}

// replace removes outgoing from team and seats playerID with the same role and
// activity, so the active count is unchanged. A departing captain is cleared.
func (s *rosterService) replace(ctx context.Context, exec repositories.SQLExecutor, team *models.Team, outgoing *models.TeamMember, playerID int) (*models.TeamMember, bool, error) {
	if err := s.store.Members.Delete(ctx, exec, team.ID, outgoing.PlayerID); err != nil {
		return nil, false, err
	}
	member := &models.TeamMember{
		TeamID:   team.ID,
		PlayerID: playerID,
		Role:     outgoing.Role,
		IsActive: outgoing.IsActive,
	}
	if err := s.store.Members.Upsert(ctx, exec, member); err != nil {
		return nil, false, err
	}
	if !team.IsCaptain(outgoing.PlayerID) {
		return member, false, nil
	}
	if err := s.store.Teams.SetCaptain(ctx, exec, team.ID, nil); err != nil {
		return nil, false, err
	}
	team.CaptainID = nil
	return member, true, nil
}

func (s *rosterService) ListMembers(ctx context.Context, teamID int) ([]*models.TeamMember, error) {
	if _, err := s.store.Teams.GetByID(ctx, nil, teamID); err != nil {
		return nil, s.finish(ctx, "roster.list", err)
	}
	members, err := s.store.Members.ListByTeam(ctx, nil, teamID)
	if err != nil {
		return nil, s.finish(ctx, "roster.list", err)
	}
	return members, nil
}
