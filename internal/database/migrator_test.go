package database

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNames_SortedAndWellFormed(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	assert.True(t, sort.StringsAreSorted(names), "migrations must apply in lexical order")

	for _, name := range names {
		assert.True(t, strings.HasSuffix(name, ".sql"), "unexpected file %s", name)

		data, err := migrationsFS.ReadFile("migrations/" + name)
		require.NoError(t, err)
		assert.NotEmpty(t, data, "migration %s is empty", name)
	}
}
