package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Dosada05/coding-league/live"
	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/officiating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	schoolA = 1
	schoolB = 2
	coachA  = 900
	coachB  = 901
	teamA   = 100
	teamB   = 200
)

var admin = models.Actor{UserID: 1, Role: models.RoleAdmin}

func newRosterFixture() (*fixture, RosterService) {
	f := newFixture()
	f.addSchool(schoolA, coachA)
	f.addSchool(schoolB, coachB)
	f.addTeam(teamA, schoolA, models.TierBeginner)
	svc := NewRosterService(f.deps, RosterOptions{})
	return f, svc
}

func TestAddMember_CapsActiveMembers(t *testing.T) {
	f, svc := newRosterFixture()
	ctx := context.Background()
	coach := models.Actor{UserID: coachA, Role: models.RoleCoach}

	for id := 11; id <= 15; id++ {
		f.addPlayer(id, schoolA, 0)
	}
	for id := 11; id <= 14; id++ {
		_, err := svc.AddMember(ctx, coach, teamA, AddMemberInput{PlayerID: id, IsActive: true})
		require.NoError(t, err)
	}

	_, err := svc.AddMember(ctx, coach, teamA, AddMemberInput{PlayerID: 15, IsActive: true})
	require.ErrorIs(t, err, ErrCapacityExceeded)
	var capErr *CapacityExceededError
	require.True(t, errors.As(err, &capErr))
	assert.Equal(t, 4, capErr.Current)
	assert.Equal(t, 4, capErr.Limit)

	members, err := svc.ListMembers(ctx, teamA)
	require.NoError(t, err)
	require.Len(t, members, 4)
	for _, m := range members {
		assert.True(t, m.IsActive)
		assert.NotEqual(t, 15, m.PlayerID)
	}
}

func TestAddMember_InactiveFifthMember(t *testing.T) {
	f, svc := newRosterFixture()
	ctx := context.Background()

	for id := 11; id <= 14; id++ {
		f.addPlayer(id, schoolA, 0)
		f.addMember(teamA, id, true)
	}
	f.addPlayer(15, schoolA, 0)

	member, err := svc.AddMember(ctx, admin, teamA, AddMemberInput{PlayerID: 15, Role: "reserve", IsActive: false})
	require.NoError(t, err)
	assert.False(t, member.IsActive)

	count, err := f.deps.Store.Members.CountActive(ctx, nil, teamA)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestAddMember_ReactivatingActiveMemberAtCap(t *testing.T) {
	f, svc := newRosterFixture()
	ctx := context.Background()

	for id := 11; id <= 14; id++ {
		f.addPlayer(id, schoolA, 0)
		f.addMember(teamA, id, true)
	}

	member, err := svc.AddMember(ctx, admin, teamA, AddMemberInput{PlayerID: 12, Role: "backend", IsActive: true})
	require.NoError(t, err)
	assert.Equal(t, "backend", member.Role)

	members, err := svc.ListMembers(ctx, teamA)
	require.NoError(t, err)
	assert.Len(t, members, 4)
}

func TestAddMember_ConcurrentAddsNeverExceedCap(t *testing.T) {
	f, svc := newRosterFixture()
	ctx := context.Background()

	const candidates = 12
	for i := 0; i < candidates; i++ {
		f.addPlayer(20+i, schoolA, 0)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < candidates; i++ {
		wg.Add(1)
		go func(playerID int) {
			defer wg.Done()
			_, err := svc.AddMember(ctx, admin, teamA, AddMemberInput{PlayerID: playerID, IsActive: true})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(20 + i)
	}
	wg.Wait()

	assert.Equal(t, DefaultMaxActiveMembers, accepted)
	assert.Equal(t, candidates-DefaultMaxActiveMembers, rejected)
	count, err := f.deps.Store.Members.CountActive(ctx, nil, teamA)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxActiveMembers, count)
}

func TestAddMember_Authorization(t *testing.T) {
	f, svc := newRosterFixture()
	ctx := context.Background()
	f.addPlayer(11, schoolA, 0)

	_, err := svc.AddMember(ctx, models.Actor{UserID: coachB, Role: models.RoleCoach}, teamA, AddMemberInput{PlayerID: 11, IsActive: true})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, ErrTeamNotInSchool)

	_, err = svc.AddMember(ctx, models.Actor{}, teamA, AddMemberInput{PlayerID: 11, IsActive: true})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.AddMember(ctx, admin, 404, AddMemberInput{PlayerID: 11, IsActive: true})
	assert.ErrorIs(t, err, ErrTeamNotFound)
}

func TestAddMember_PlayerFromAnotherSchool(t *testing.T) {
	f, svc := newRosterFixture()
	f.addPlayer(31, schoolB, 0)

	_, err := svc.AddMember(context.Background(), admin, teamA, AddMemberInput{PlayerID: 31, IsActive: true})
	assert.ErrorIs(t, err, ErrPlayerNotInSchool)
	assert.ErrorIs(t, err, ErrPreconditionFailed)
}

func TestAddMember_AppliesTierRule(t *testing.T) {
	f, svc := newRosterFixture()
	f.addTeam(teamB, schoolA, models.TierProfessional)
	f.addPlayer(11, schoolA, 600)
	ctx := context.Background()

	_, err := svc.AddMember(ctx, admin, teamB, AddMemberInput{PlayerID: 11, IsActive: false})
	require.ErrorIs(t, err, ErrQualificationMismatch)
	var qErr *QualificationMismatchError
	require.True(t, errors.As(err, &qErr))
	assert.Equal(t, models.TierAmateur, qErr.PlayerTier)

	_, err = svc.AddMember(ctx, admin, teamA, AddMemberInput{PlayerID: 11, IsActive: true})
	assert.NoError(t, err, "beginner teams take any player")
}

func TestSwap_TierQualification(t *testing.T) {
	tests := []struct {
		name     string
		teamTier models.Tier
		wantErr  error
	}{
		{name: "amateur into professional", teamTier: models.TierProfessional, wantErr: ErrQualificationMismatch},
		{name: "amateur into beginner", teamTier: models.TierBeginner},
		{name: "amateur into amateur", teamTier: models.TierAmateur},
		{name: "amateur into regular", teamTier: models.TierRegular, wantErr: ErrQualificationMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.addTeam(teamA, schoolA, tt.teamTier)
			f.addPlayer(11, schoolA, 5000)
			f.addMember(teamA, 11, true)
			f.addPlayer(12, schoolA, 600)
			svc := NewRosterService(f.deps, RosterOptions{Tiers: officiating.DefaultTierThresholds()})

			res, err := svc.Swap(context.Background(), admin, SwapInput{TeamID: teamA, RemovePlayerID: 11, AddPlayerID: 12})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var qErr *QualificationMismatchError
				require.True(t, errors.As(err, &qErr))
				assert.Equal(t, models.TierAmateur, qErr.PlayerTier)
				assert.Equal(t, tt.teamTier, qErr.TeamTier)

				// nothing changed
				_, getErr := f.deps.Store.Members.Get(context.Background(), nil, teamA, 11)
				assert.NoError(t, getErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 12, res.Incoming.PlayerID)
			assert.Nil(t, res.Outgoing)
		})
	}
}

func TestSwap_ReserveClearsCaptainAndKeepsRole(t *testing.T) {
	f, svc := newRosterFixture()
	ctx := context.Background()

	f.addPlayer(11, schoolA, 0)
	f.addPlayer(12, schoolA, 0)
	f.db.state.members[pairKey{teamA, 11}] = models.TeamMember{ID: 1, TeamID: teamA, PlayerID: 11, Role: "frontend", IsActive: true}
	captain := 11
	team := f.db.state.teams[teamA]
	team.CaptainID = &captain
	f.db.state.teams[teamA] = team

	res, err := svc.Swap(ctx, models.Actor{UserID: coachA, Role: models.RoleCoach}, SwapInput{TeamID: teamA, RemovePlayerID: 11, AddPlayerID: 12})
	require.NoError(t, err)
	assert.Equal(t, []int{teamA}, res.CaptainsCleared)
	assert.Equal(t, "frontend", res.Incoming.Role)
	assert.True(t, res.Incoming.IsActive)

	got, err := f.deps.Store.Teams.GetByID(ctx, nil, teamA)
	require.NoError(t, err)
	assert.Nil(t, got.CaptainID)

	_, err = f.deps.Store.Members.Get(ctx, nil, teamA, 11)
	assert.Error(t, err)

	assert.Equal(t, []string{"roster.updated"}, f.publisher.Events(live.LeaderboardChannel))
}

func TestSwap_ReservePlayerMustBeTeamless(t *testing.T) {
	f, svc := newRosterFixture()
	f.addTeam(teamB, schoolA, models.TierBeginner)
	f.addPlayer(11, schoolA, 0)
	f.addPlayer(12, schoolA, 0)
	f.addMember(teamA, 11, true)
	f.addMember(teamB, 12, true)

	_, err := svc.Swap(context.Background(), admin, SwapInput{TeamID: teamA, RemovePlayerID: 11, AddPlayerID: 12})
	assert.ErrorIs(t, err, ErrPlayerHasTeam)

	f.addMember(teamA, 12, false)
	_, err = svc.Swap(context.Background(), admin, SwapInput{TeamID: teamA, RemovePlayerID: 11, AddPlayerID: 12})
	assert.ErrorIs(t, err, ErrPlayerAlreadyMember)
}

func TestSwap_ReserveLocksIncomingPlayer(t *testing.T) {
	f, svc := newRosterFixture()
	f.addPlayer(11, schoolA, 0)
	f.addPlayer(12, schoolA, 0)
	f.addMember(teamA, 11, true)

	_, err := svc.Swap(context.Background(), admin, SwapInput{TeamID: teamA, RemovePlayerID: 11, AddPlayerID: 12})
	require.NoError(t, err)
	assert.Equal(t, []int{12}, f.db.lockedUsers)
}

func TestSwap_InterTeamExchangesPlayers(t *testing.T) {
	f, svc := newRosterFixture()
	ctx := context.Background()
	f.addTeam(teamB, schoolA, models.TierBeginner)
	f.addPlayer(11, schoolA, 0)
	f.addPlayer(21, schoolA, 0)
	f.db.state.members[pairKey{teamA, 11}] = models.TeamMember{ID: 1, TeamID: teamA, PlayerID: 11, Role: "lead", IsActive: true}
	f.db.state.members[pairKey{teamB, 21}] = models.TeamMember{ID: 2, TeamID: teamB, PlayerID: 21, Role: "ops", IsActive: false}
	captain := 21
	tb := f.db.state.teams[teamB]
	tb.CaptainID = &captain
	f.db.state.teams[teamB] = tb

	source := teamB
	res, err := svc.Swap(ctx, admin, SwapInput{TeamID: teamA, RemovePlayerID: 11, AddPlayerID: 21, SourceTeamID: &source})
	require.NoError(t, err)

	assert.Equal(t, teamA, res.Incoming.TeamID)
	assert.Equal(t, 21, res.Incoming.PlayerID)
	assert.Equal(t, "lead", res.Incoming.Role)
	assert.True(t, res.Incoming.IsActive)

	require.NotNil(t, res.Outgoing)
	assert.Equal(t, teamB, res.Outgoing.TeamID)
	assert.Equal(t, 11, res.Outgoing.PlayerID)
	assert.Equal(t, "ops", res.Outgoing.Role)
	assert.False(t, res.Outgoing.IsActive)
	assert.Equal(t, []int{teamB}, res.CaptainsCleared)

	got, err := f.deps.Store.Teams.GetByID(ctx, nil, teamB)
	require.NoError(t, err)
	assert.Nil(t, got.CaptainID)
}

func TestSwap_InterTeamChecksBothDirections(t *testing.T) {
	f, svc := newRosterFixture()
	ctx := context.Background()
	f.addTeam(teamB, schoolA, models.TierProfessional)
	f.addPlayer(11, schoolA, 0)
	f.addPlayer(21, schoolA, 3000)
	f.addMember(teamA, 11, true)
	f.addMember(teamB, 21, true)

	source := teamB
	_, err := svc.Swap(ctx, admin, SwapInput{TeamID: teamA, RemovePlayerID: 11, AddPlayerID: 21, SourceTeamID: &source})
	require.ErrorIs(t, err, ErrQualificationMismatch)
	var qErr *QualificationMismatchError
	require.True(t, errors.As(err, &qErr))
	assert.Equal(t, 11, qErr.PlayerID)
	assert.Equal(t, teamB, qErr.TeamID)

	_, err = f.deps.Store.Members.Get(ctx, nil, teamA, 11)
	assert.NoError(t, err, "failed swap must not remove members")
	_, err = f.deps.Store.Members.Get(ctx, nil, teamB, 21)
	assert.NoError(t, err)
}

func TestSwap_RejectsSameTeamAndSamePlayer(t *testing.T) {
	_, svc := newRosterFixture()
	ctx := context.Background()

	_, err := svc.Swap(ctx, admin, SwapInput{TeamID: teamA, RemovePlayerID: 11, AddPlayerID: 11})
	assert.ErrorIs(t, err, ErrValidationFailed)

	same := teamA
	_, err = svc.Swap(ctx, admin, SwapInput{TeamID: teamA, RemovePlayerID: 11, AddPlayerID: 12, SourceTeamID: &same})
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestRemoveMemberAndSetCaptain(t *testing.T) {
	f, svc := newRosterFixture()
	ctx := context.Background()
	f.addPlayer(11, schoolA, 0)
	f.addPlayer(12, schoolA, 0)
	f.addMember(teamA, 11, true)
	f.addMember(teamA, 12, false)

	_, err := svc.SetCaptain(ctx, admin, teamA, 12)
	assert.ErrorIs(t, err, ErrPlayerNotActive)

	team, err := svc.SetCaptain(ctx, admin, teamA, 11)
	require.NoError(t, err)
	require.NotNil(t, team.CaptainID)
	assert.Equal(t, 11, *team.CaptainID)

	require.NoError(t, svc.RemoveMember(ctx, admin, teamA, 11))
	got, err := f.deps.Store.Teams.GetByID(ctx, nil, teamA)
	require.NoError(t, err)
	assert.Nil(t, got.CaptainID)

	assert.ErrorIs(t, svc.RemoveMember(ctx, admin, teamA, 11), ErrMemberNotFound)
}
