package postgres

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sb-works/collab-backend/config"
)

func TestMigrations_EmbeddedSource(t *testing.T) {
	src, err := iofs.New(migrationFS, "migrations")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	r, ident, err := src.ReadUp(first)
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	_ = r.Close()
	assert.Equal(t, "init", ident)
	assert.Contains(t, string(body), "create table if not exists messages")
	assert.Contains(t, string(body), "applications_one_accepted")

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)
	r, ident, err = src.ReadUp(next)
	require.NoError(t, err)
	body, err = io.ReadAll(r)
	require.NoError(t, err)
	_ = r.Close()
	assert.Equal(t, "status_version", ident)
	assert.Contains(t, string(body), "status_version")

	// every up migration can be reverted
	for _, v := range []uint{first, next} {
		r, _, err := src.ReadDown(v)
		require.NoError(t, err, "version %d", v)
		_ = r.Close()
	}
}

func TestMigrate_DriverFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("CURRENT_DATABASE").WillReturnError(errors.New("connection reset"))

	_, _, err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create migrate driver")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://x", DSN(&config.DatabaseConfig{DSN: "postgres://x"}))
	assert.Equal(t,
		"host=db port=5432 user=u password=p dbname=n sslmode=disable",
		DSN(&config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "n"}),
	)
}
