package database

import (
	"io/fs"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskboard/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		DBHost:     "db.internal",
		DBPort:     "5432",
		DBUser:     "board",
		DBPassword: "p@ss word",
		DBName:     "taskboard",
		DBSSLMode:  "disable",
	}
}

func TestDSN(t *testing.T) {
	assert.Equal(t,
		"host=db.internal port=5432 user=board password=p@ss word dbname=taskboard sslmode=disable",
		DSN(testConfig()),
	)
}

func TestMigrationURL_EscapesCredentials(t *testing.T) {
	raw := MigrationURL(testConfig())

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "pgx5", u.Scheme)
	assert.Equal(t, "db.internal:5432", u.Host)
	assert.Equal(t, "/taskboard", u.Path)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	password, _ := u.User.Password()
	assert.Equal(t, "p@ss word", password)
}

func TestMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationFiles, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationFiles, "migrations/*.down.sql")
	require.NoError(t, err)

	assert.NotEmpty(t, ups)
	assert.Len(t, downs, len(ups))

	schema, err := fs.ReadFile(migrationFiles, "migrations/000001_create_boards_tasks.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(schema), "DEFERRABLE INITIALLY DEFERRED")
}
