package database

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitj-alumni/alumni-erp-api/pkg/config"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(migrationFiles, down)
		assert.NoError(t, err, "missing down migration for %s", up)
	}
}

func TestEmbeddedMigrationsLoad(t *testing.T) {
	source, err := iofs.New(migrationFiles, "migrations")
	require.NoError(t, err)
	defer source.Close() //nolint:errcheck

	first, err := source.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := source.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)
}

func TestRequestsMigrationEnforcesSinglePending(t *testing.T) {
	content, err := fs.ReadFile(migrationFiles, "migrations/000002_create_requests.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(content), "ON requests (user_id) WHERE status = 'pending'")
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "alumni",
		Password: "p@ss word",
		Name:     "alumni_erp",
		SSLMode:  "disable",
	})
	assert.Equal(t, "postgres://alumni:p%40ss%20word@db:5432/alumni_erp?sslmode=disable", dsn)
}
