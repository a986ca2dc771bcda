// Package testdb spins up a disposable PostgreSQL container for integration
// tests across the storage packages (commandlog, statestore, eventstore),
// sharing one migrated schema instead of every package reimplementing
// container setup.
package testdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/broadcastqueue/eventsubd/pkg/database"
)

// NewTestClient starts a postgres:16-alpine container, applies the embedded
// migrations, and returns a connected *database.Client. The container is
// torn down automatically via t.Cleanup.
func NewTestClient(t *testing.T) *database.Client {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host:            host,
		Port:            port.Int(),
		User:            "test",
		Password:        "test",
		Database:        "test",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

// SeedTenant inserts a minimal tenant row and its version_index entry,
// satisfying the foreign keys every storage test depends on.
func SeedTenant(t *testing.T, client *database.Client, tenant string) {
	t.Helper()
	ctx := context.Background()
	_, err := client.DB().ExecContext(ctx, `INSERT INTO tenants (id, timezone) VALUES ($1, 'UTC')`, tenant)
	require.NoError(t, err)
	_, err = client.DB().ExecContext(ctx, `INSERT INTO version_index (tenant_id, current_version) VALUES ($1, 0)`, tenant)
	require.NoError(t, err)
}
