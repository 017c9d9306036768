package migrate

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	files, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.Equal(t, "00001_init.sql", files[0])
}

func TestInitMigrationCoversAllTables(t *testing.T) {
	raw, err := fs.ReadFile(migrations, Dir+"/00001_init.sql")
	require.NoError(t, err)
	sql := string(raw)

	assert.Contains(t, sql, "-- +goose Up")
	assert.Contains(t, sql, "-- +goose Down")
	for _, table := range []string{
		"users", "roles", "user_roles", "sessions",
		"licenses", "subscriptions", "support_chats", "support_messages",
	} {
		assert.True(t, strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" "), "missing create for %s", table)
		assert.True(t, strings.Contains(sql, "DROP TABLE IF EXISTS "+table+";"), "missing drop for %s", table)
	}
}
