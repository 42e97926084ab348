//go:build integration

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/coding-league/db"
	"github.com/Dosada05/coding-league/models"
	"github.com/Dosada05/coding-league/repositories"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("league"),
		postgres.WithUsername("league"),
		postgres.WithPassword("league"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := db.Connect(ctx, dsn, db.PoolOptions{PingTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.MigrateUp(ctx, conn.DB))
	return conn
}

// seedTeam creates a school with a coach, a beginner team and n players.
func seedTeam(t *testing.T, conn *sqlx.DB, faker *gofakeit.Faker, players int) (coachID, teamID int, playerIDs []int) {
	t.Helper()
	ctx := context.Background()

	var schoolID int
	require.NoError(t, conn.GetContext(ctx, &schoolID,
		`INSERT INTO schools (name) VALUES ($1) RETURNING id`, faker.Numerify("School ####")))
	require.NoError(t, conn.GetContext(ctx, &coachID,
		`INSERT INTO users (first_name, last_name, role, school_id) VALUES ($1, $2, 'coach', $3) RETURNING id`,
		faker.FirstName(), faker.LastName(), schoolID))
	require.NoError(t, conn.GetContext(ctx, &teamID,
		`INSERT INTO teams (name, school_id, tier) VALUES ($1, $2, 'beginner') RETURNING id`,
		faker.Numerify("Team ###"), schoolID))

	for i := 0; i < players; i++ {
		var id int
		require.NoError(t, conn.GetContext(ctx, &id,
			`INSERT INTO users (first_name, last_name, role, school_id, experience_points) VALUES ($1, $2, 'player', $3, $4) RETURNING id`,
			faker.FirstName(), faker.LastName(), schoolID, faker.Number(0, 400)))
		playerIDs = append(playerIDs, id)
	}
	return coachID, teamID, playerIDs
}

func TestRosterIntegration_ConcurrentAddsRespectCap(t *testing.T) {
	conn := startPostgres(t)
	faker := gofakeit.New(42)
	coachID, teamID, players := seedTeam(t, conn, faker, 10)

	svc := NewRosterService(Dependencies{Store: repositories.NewPostgresStore(conn)}, RosterOptions{})
	coach := models.Actor{UserID: coachID, Role: models.RoleCoach}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for _, playerID := range players {
		wg.Add(1)
		go func(playerID int) {
			defer wg.Done()
			_, err := svc.AddMember(context.Background(), coach, teamID, AddMemberInput{PlayerID: playerID, IsActive: true})
			if err != nil && !errors.Is(err, ErrCapacityExceeded) {
				t.Errorf("unexpected error for player %d: %v", playerID, err)
				return
			}
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(playerID)
	}
	wg.Wait()

	assert.Equal(t, DefaultMaxActiveMembers, accepted)

	var active int
	require.NoError(t, conn.Get(&active, `SELECT COUNT(*) FROM team_members WHERE team_id = $1 AND is_active`, teamID))
	assert.Equal(t, DefaultMaxActiveMembers, active)
}

func TestRosterIntegration_SwapClearsCaptain(t *testing.T) {
	conn := startPostgres(t)
	faker := gofakeit.New(7)
	coachID, teamID, players := seedTeam(t, conn, faker, 2)
	ctx := context.Background()

	svc := NewRosterService(Dependencies{Store: repositories.NewPostgresStore(conn)}, RosterOptions{})
	coach := models.Actor{UserID: coachID, Role: models.RoleCoach}

	_, err := svc.AddMember(ctx, coach, teamID, AddMemberInput{PlayerID: players[0], Role: "lead", IsActive: true})
	require.NoError(t, err)
	_, err = svc.SetCaptain(ctx, coach, teamID, players[0])
	require.NoError(t, err)

	res, err := svc.Swap(ctx, coach, SwapInput{TeamID: teamID, RemovePlayerID: players[0], AddPlayerID: players[1]})
	require.NoError(t, err)
	assert.Equal(t, "lead", res.Incoming.Role)
	assert.Equal(t, []int{teamID}, res.CaptainsCleared)

	var captain *int
	require.NoError(t, conn.Get(&captain, `SELECT captain_id FROM teams WHERE id = $1`, teamID))
	assert.Nil(t, captain)
}

func TestRosterIntegration_ConcurrentReserveSwapsOfOnePlayer(t *testing.T) {
	conn := startPostgres(t)
	faker := gofakeit.New(21)
	coachID, teamA, players := seedTeam(t, conn, faker, 3)
	ctx := context.Background()

	var teamB int
	require.NoError(t, conn.Get(&teamB,
		`INSERT INTO teams (name, school_id, tier)
		 SELECT $1, school_id, 'beginner' FROM teams WHERE id = $2 RETURNING id`,
		faker.Numerify("Reserve ###"), teamA))

	svc := NewRosterService(Dependencies{Store: repositories.NewPostgresStore(conn)}, RosterOptions{})
	coach := models.Actor{UserID: coachID, Role: models.RoleCoach}
	_, err := svc.AddMember(ctx, coach, teamA, AddMemberInput{PlayerID: players[0], IsActive: true})
	require.NoError(t, err)
	_, err = svc.AddMember(ctx, coach, teamB, AddMemberInput{PlayerID: players[1], IsActive: true})
	require.NoError(t, err)
	reserve := players[2]

	swaps := []SwapInput{
		{TeamID: teamA, RemovePlayerID: players[0], AddPlayerID: reserve},
		{TeamID: teamB, RemovePlayerID: players[1], AddPlayerID: reserve},
	}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		swapped int
		hasTeam int
	)
	for _, in := range swaps {
		wg.Add(1)
		go func(in SwapInput) {
			defer wg.Done()
			_, err := svc.Swap(ctx, coach, in)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				swapped++
			case errors.Is(err, ErrPlayerHasTeam):
				hasTeam++
			default:
				t.Errorf("unexpected swap error for team %d: %v", in.TeamID, err)
			}
		}(in)
	}
	wg.Wait()

	assert.Equal(t, 1, swapped)
	assert.Equal(t, 1, hasTeam)

	var memberships int
	require.NoError(t, conn.Get(&memberships, `SELECT COUNT(*) FROM team_members WHERE player_id = $1`, reserve))
	assert.Equal(t, 1, memberships)
}
