package storage

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateCreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gatewayd.sqlite")

	version, dirty, err := Migrate("sqlite://" + dbPath)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"clusters", "workers"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "gatewayd.sqlite")
	dbURL := "sqlite://" + dbPath

	_, _, err := Migrate(dbURL)
	require.NoError(t, err)

	version, dirty, err := Migrate(dbURL)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}
