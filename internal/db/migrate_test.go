package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSource(t *testing.T) {
	for _, schema := range Schemas {
		t.Run(schema, func(t *testing.T) {
			files, err := Source(schema)
			require.NoError(t, err)

			entries, err := fs.ReadDir(files, ".")
			require.NoError(t, err)

			var ups, downs int
			for _, e := range entries {
				switch {
				case strings.HasSuffix(e.Name(), ".up.sql"):
					ups++
				case strings.HasSuffix(e.Name(), ".down.sql"):
					downs++
				}
			}
			assert.Positive(t, ups)
			assert.Equal(t, ups, downs)
		})
	}
}

func TestSource_Unknown(t *testing.T) {
	_, err := Source("cart")
	assert.Error(t, err)
}

func TestMigrationsTable(t *testing.T) {
	assert.Equal(t, "schema_migrations_inventory", MigrationsTable("inventory"))
}

func TestMigrations_CreateIfNotExists(t *testing.T) {
	for _, schema := range Schemas {
		files, err := Source(schema)
		require.NoError(t, err)

		matches, err := fs.Glob(files, "*.up.sql")
		require.NoError(t, err)
		for _, name := range matches {
			body, err := fs.ReadFile(files, name)
			require.NoError(t, err)
			for _, stmt := range strings.Split(string(body), ";") {
				if strings.Contains(stmt, "CREATE TABLE") {
					assert.Contains(t, stmt, "IF NOT EXISTS", "%s/%s", schema, name)
				}
			}
		}
	}
}
