package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Requires Docker; enable with F1BOT_PG_TESTS=1.
func TestPostgres_Registry(t *testing.T) {
	if os.Getenv("F1BOT_PG_TESTS") == "" {
		t.Skip("set F1BOT_PG_TESTS=1 to run postgres tests")
	}
	ctx := context.Background()

	pg, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("f1"),
		postgres.WithUsername("f1"),
		postgres.WithPassword("f1"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := Open(ctx, DriverPostgres, "", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	testRegistry(t, repo)
}
