package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMigrationsPath(t *testing.T) {
	path, err := getMigrationsPath("sqlite")
	require.NoError(t, err)
	assert.DirExists(t, path)

	_, err = getMigrationsPath("does-not-exist")
	assert.Error(t, err)
}

func TestSetupSQLiteDB(t *testing.T) {
	db := SetupSQLiteDB(t)
	defer TeardownDB(t, db)

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM operations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
