package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_Error(t *testing.T) {
	cfg := Config{
		Driver:             "invalid",
		ConnectionString:   "invalid",
		MaxOpenConnections: 10,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    time.Hour,
	}

	db, err := Connect(cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "sql: unknown driver")
}

func TestConnect_SQLiteInMemory(t *testing.T) {
	db, err := Connect(Config{
		Driver:             DriverSQLite,
		ConnectionString:   ":memory:",
		MaxOpenConnections: 1,
		MaxIdleConnections: 1,
		ConnMaxLifetime:    time.Minute,
	})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var one int
	require.NoError(t, db.QueryRow("SELECT 1").Scan(&one))
	assert.Equal(t, 1, one)
}

func TestMigrationsDir(t *testing.T) {
	assert.Equal(t, "postgresql", MigrationsDir(DriverPostgres))
	assert.Equal(t, "mysql", MigrationsDir(DriverMySQL))
	assert.Equal(t, "sqlite", MigrationsDir(DriverSQLite))
}

func TestNewMigrate_UnsupportedDriver(t *testing.T) {
	m, err := NewMigrate(nil, "oracle", "file://migrations/oracle")
	assert.Nil(t, m)
	assert.EqualError(t, err, "unsupported database driver: oracle")
}
