package repository

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/sb-works/collab-backend/internal/storage/postgres"
)

// Runs only against a disposable database: TEST_DATABASE_DSN must be set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	ctx := context.Background()

	sqlDB, err := postgres.Open(dsn)
	require.NoError(t, err)
	_, _, err = postgres.Migrate(ctx, sqlDB)
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	runStoreContract(t, func(*testing.T) Store { return NewPostgresStore(pool) })
}
