package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestMigrationVersion(t *testing.T) {
	version, err := LatestMigrationVersion()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, version, uint(1))
}

func TestMigrationsChecksum_Deterministic(t *testing.T) {
	first, err := MigrationsChecksum()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := MigrationsChecksum()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseMigrationVersion(t *testing.T) {
	version, ok := parseMigrationVersion("000001_init.up.sql")
	assert.True(t, ok)
	assert.Equal(t, uint(1), version)

	_, ok = parseMigrationVersion("init.up.sql")
	assert.False(t, ok)
}
