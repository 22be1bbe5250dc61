package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medlemine/ashport/internal/models"
)

func TestOpenSQLiteInMemory(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrateAndSeed(db))

	var count int64
	require.NoError(t, db.Model(&models.Plan{}).Count(&count).Error)
	require.EqualValues(t, 3, count)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "mongodb"})
	require.Error(t, err)
}

func TestSeedDataIsIdempotent(t *testing.T) {
	db, err := Open(Config{Driver: "sqlite", DSN: "file:seedtest?mode=memory&cache=shared&_foreign_keys=1"})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	require.NoError(t, SeedData(db))
	require.NoError(t, SeedData(db))

	var count int64
	require.NoError(t, db.Model(&models.Plan{}).Count(&count).Error)
	require.EqualValues(t, 3, count)
}

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		Driver:   "postgres",
		Host:     "db.internal",
		Port:     5433,
		Name:     "ashport",
		User:     "ash",
		Password: "pw",
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "host=db.internal")
	require.Contains(t, dsn, "port=5433")
	require.Contains(t, dsn, "sslmode=disable")
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		Driver:   "mysql",
		Name:     "ashport",
		User:     "ash",
		Password: "pw",
	})
	require.NoError(t, err)
	require.Contains(t, dsn, "ash:pw@tcp(127.0.0.1:3306)/ashport")
	require.Contains(t, dsn, "parseTime=True")
}

func TestBuildDSNRequiresCredentials(t *testing.T) {
	_, err := buildPostgresDSN(Config{Driver: "postgres"})
	require.Error(t, err)

	_, err = buildMySQLDSN(Config{Driver: "mysql"})
	require.Error(t, err)
}
