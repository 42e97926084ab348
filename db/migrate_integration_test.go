//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMigrationsReleaseTheirConnection(t *testing.T) {
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
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	conn, err := Connect(ctx, dsn, PoolOptions{MaxOpenConns: 2, PingTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, MigrateUp(ctx, conn.DB))
	assert.Zero(t, conn.Stats().InUse, "migrator must hand its connection back")

	// Второй прогон ничего не меняет и не закрывает пул.
	require.NoError(t, MigrateUp(ctx, conn.DB))
	require.NoError(t, conn.PingContext(ctx))

	version, dirty, err := MigrationVersion(ctx, conn.DB)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, MigrateDown(ctx, conn.DB, 1))
	version, _, err = MigrationVersion(ctx, conn.DB)
	require.NoError(t, err)
	assert.Zero(t, version)
	assert.Zero(t, conn.Stats().InUse)
}
