package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsSortedByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/000010_b.up.sql":   {Data: []byte("SELECT 1;")},
		"m/000002_a.up.sql":   {Data: []byte("SELECT 1;")},
		"m/000002_a.down.sql": {Data: []byte("SELECT 1;")},
		"m/README":            {Data: []byte("x")},
	}
	files, err := embeddedMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, uint64(2), files[0].version)
	assert.Equal(t, "000010_b.up.sql", files[1].name)

	assert.Equal(t, []string{"000010_b.up.sql"}, appliedBetween(files, 2, 10))
	assert.Empty(t, appliedBetween(files, 10, 10))

	_, err = embeddedMigrations(fstest.MapFS{"m/x_bad.up.sql": {}}, "m")
	assert.Error(t, err)
}

func TestShippedMigrationsParse(t *testing.T) {
	files, err := embeddedMigrations(migrationsFS, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, uint64(1), files[0].version)
}

func TestRunMigrationsOnSQLiteIsIdempotent(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "state", "kv.db")}

	require.NoError(t, RunMigrations(cfg))
	require.NoError(t, RunMigrations(cfg))

	db, err := Connect(cfg)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM kv_documents"))
	assert.Zero(t, n)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestConfigURLs(t *testing.T) {
	pg := Config{Host: "db", Port: "5432", User: "u", Password: "p", Name: "vitals", SSLMode: "disable"}
	assert.Equal(t, DriverPostgres, pg.DriverName())
	assert.Equal(t, "postgres://u:p@db:5432/vitals?sslmode=disable", pg.MigrateURL())
	assert.Equal(t, "db:5432/vitals", pg.Target())

	dsn := Config{DSN: "postgres://ro@remote/vitals"}
	assert.Equal(t, dsn.DSN, dsn.ConnString())
	assert.Equal(t, dsn.DSN, dsn.MigrateURL())
	assert.Equal(t, "dsn", dsn.Target())

	lite := Config{Driver: "SQLite", Path: "data/kv.db"}
	assert.Equal(t, DriverSQLite, lite.DriverName())
	assert.Equal(t, "sqlite://data/kv.db", lite.MigrateURL())
	assert.Equal(t, "data/kv.db", lite.ConnString())
}
