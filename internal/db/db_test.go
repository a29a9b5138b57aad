package db_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hermes/internal/db"
)

func TestOpenCreatesWorkspace(t *testing.T) {
	ws := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: ws})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Ping())
	assert.FileExists(t, db.Path(ws))
	assert.Equal(t, filepath.Join(ws, ".hermes", "hermes.db"), db.Path(ws))

	var fk int
	require.NoError(t, conn.QueryRow(`PRAGMA foreign_keys`).Scan(&fk))
	assert.Equal(t, 1, fk)
	var mode string
	require.NoError(t, conn.QueryRow(`PRAGMA journal_mode`).Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpenCustomPath(t *testing.T) {
	ws := t.TempDir()
	path := filepath.Join(ws, "data", "kb.db")
	conn, err := db.Open(db.Config{Workspace: ws, Path: path})
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Ping())
	assert.FileExists(t, path)
}
