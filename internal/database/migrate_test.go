package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		dialect string
		dsn     string
	}{
		{"postgres://u:p@localhost:5432/db?sslmode=disable", "postgres", "postgres://u:p@localhost:5432/db?sslmode=disable"},
		{"postgresql://localhost/db", "postgres", "postgresql://localhost/db"},
		{"sqlite://./codesherpa.db", "sqlite", "./codesherpa.db"},
		{"sqlite::memory:", "sqlite", ":memory:"},
		{"mysql://localhost/db", "mysql", ""},
		{"garbage", "unknown", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			dialect, dsn := ParseURL(tt.url)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.dsn, dsn)
		})
	}
}

func TestNewMigrationRunner_Errors(t *testing.T) {
	_, err := NewMigrationRunner(nil)
	assert.Error(t, err)

	_, err = NewMigrationRunner(&MigrationConfig{DatabaseURL: "mysql://localhost/db"})
	assert.ErrorContains(t, err, "unsupported")
}

func tableExists(t *testing.T, r *MigrationRunner, name string) bool {
	t.Helper()
	var count int
	err := r.DB().QueryRow("SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&count)
	require.NoError(t, err)
	return count == 1
}

func TestMigrationRunner_SQLite(t *testing.T) {
	r, err := NewMigrationRunner(&MigrationConfig{DatabaseURL: "sqlite://:memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	assert.Equal(t, "sqlite", r.Dialect())

	status, err := r.Version()
	require.NoError(t, err)
	assert.False(t, status.Applied)

	require.NoError(t, r.Up())
	status, err = r.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(3), status.Version)
	assert.False(t, status.Dirty)
	for _, table := range []string{"users", "agents", "projects", "chats"} {
		assert.True(t, tableExists(t, r, table), table)
	}

	// Re-running is a no-op
	require.NoError(t, r.Up())

	require.NoError(t, r.Steps(-1))
	assert.False(t, tableExists(t, r, "chats"))
	assert.True(t, tableExists(t, r, "users"))

	require.NoError(t, r.To(3))
	assert.True(t, tableExists(t, r, "chats"))

	require.NoError(t, r.Down())
	assert.False(t, tableExists(t, r, "users"))
}

func TestRunMigrations(t *testing.T) {
	assert.NoError(t, RunMigrations("sqlite://:memory:"))
	assert.Error(t, RunMigrations(""))
}
