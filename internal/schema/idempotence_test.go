package schema

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"pgregory.net/rapid"

	"github.com/stretchr/testify/require"
)

// TestCreateSchemaIsIdempotent is the §8 idempotence property:
// createSchema applied N times against a live database leaves the same
// table set as applying it once, for any N >= 1.
func TestCreateSchemaIsIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		db, err := sql.Open("sqlite", ":memory:")
		require.NoError(t, err)
		defer db.Close()

		ctx := context.Background()
		d := SQLiteDialect{}

		calls := rapid.IntRange(1, 4).Draw(t, "calls")
		var lastTables map[string]bool
		for i := 0; i < calls; i++ {
			existing, err := LoadSchema(ctx, db, d)
			require.NoError(t, err)
			require.NoError(t, CreateSchema(ctx, db, d, existing))

			tables, err := LoadSchema(ctx, db, d)
			require.NoError(t, err)
			if lastTables != nil {
				require.Equal(t, lastTables, tables, "table set changed between repeated CreateSchema calls")
			}
			lastTables = tables
		}
		for _, name := range Tables {
			require.True(t, lastTables[name], "table %s missing after CreateSchema", name)
		}
	})
}
