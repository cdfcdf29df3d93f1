package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEveryCatalogTableResolvesAgainstSQLiteDialect(t *testing.T) {
	d := SQLiteDialect{}
	for _, name := range Tables {
		tbl := Catalog[name]
		sql := CreateTableSQL(tbl, d)
		require.Contains(t, sql, "CREATE TABLE IF NOT EXISTS "+name)
		require.NotContains(t, sql, KeywordPrimaryKey, "portable keyword must be resolved, not left literal")
		require.NotContains(t, sql, "BINARY(")
		require.NotContains(t, sql, KeywordPathType)
	}
}

func TestForeignKeysReferenceTablesCreatedEarlier(t *testing.T) {
	position := map[string]int{}
	for i, name := range Tables {
		position[name] = i
	}
	for i, name := range Tables {
		for _, fk := range Catalog[name].ForeignKeys {
			refTable := fk.References[:strings.IndexByte(fk.References, '(')]
			require.Lessf(t, position[refTable], i, "%s.%s references %s, which is created later", name, fk.Column, refTable)
		}
	}
}

func TestCreateIndexSQLUniqueness(t *testing.T) {
	sql := CreateIndexSQL(TableItems, Index{Name: "ItemsItemIdx", Columns: []string{"item"}, Unique: true})
	require.Contains(t, sql, "CREATE UNIQUE INDEX")

	sql = CreateIndexSQL(TableNodes, Index{Name: "NodesItemBranchIdx", Columns: []string{"itemId", "branchId"}})
	require.NotContains(t, sql, "UNIQUE")
}

func TestBinaryKeywordResolution(t *testing.T) {
	c := Column{Type: "BINARY(16)"}
	require.Equal(t, "BLOB(16)", c.resolveType(SQLiteDialect{}))
}
