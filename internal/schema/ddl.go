package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/CourtJesterG/conary/internal/errs"
)

// CreateTableSQL renders t's CREATE TABLE statement for the given
// dialect, including its foreign-key clauses. Indexes and triggers are
// emitted as separate statements by CreateSchema.
func CreateTableSQL(t Table, d DialectProfile) string {
	var cols []string
	for _, c := range t.Columns {
		col := c.Name + " " + c.resolveType(d)
		if c.NotNull && c.Type != KeywordPrimaryKey {
			col += " NOT NULL"
		}
		if c.Default != "" {
			col += " DEFAULT " + c.Default
		}
		cols = append(cols, col)
	}
	for _, fk := range t.ForeignKeys {
		clause := fmt.Sprintf("FOREIGN KEY(%s) REFERENCES %s", fk.Column, fk.References)
		if fk.OnDelete != "" {
			clause += " ON DELETE " + fk.OnDelete
		}
		cols = append(cols, clause)
	}
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.Name, strings.Join(cols, ",\n\t"))
	if opts := d.TableOpts(); opts != "" {
		stmt += " " + opts
	}
	return stmt + ";"
}

// CreateIndexSQL renders one index's CREATE INDEX statement.
func CreateIndexSQL(tableName string, idx Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s);", unique, idx.Name, tableName, strings.Join(idx.Columns, ", "))
}

// execer is the subset of *sql.DB / *sql.Tx that DDL emission needs.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CreateSchema idempotently creates every table, index, and trigger in
// the catalog that loadSchema did not already find present. Per §4.5,
// createSchema is expected to be safe to call against an already
// up-to-date database.
func CreateSchema(ctx context.Context, db execer, d DialectProfile, existing map[string]bool) error {
	for _, name := range Tables {
		t := Catalog[name]
		if existing[t.Name] {
			continue
		}
		if _, err := db.ExecContext(ctx, CreateTableSQL(t, d)); err != nil {
			return errs.Wrapf(errs.KindSchemaVersion, err, "create table %s", t.Name)
		}
		for _, idx := range t.Indexes {
			if _, err := db.ExecContext(ctx, CreateIndexSQL(t.Name, idx)); err != nil {
				return errs.Wrapf(errs.KindSchemaVersion, err, "create index %s", idx.Name)
			}
		}
		for _, tr := range t.Triggers {
			if _, err := db.ExecContext(ctx, tr.SQL); err != nil {
				return errs.Wrapf(errs.KindSchemaVersion, err, "create trigger %s", tr.Name)
			}
		}
	}
	return nil
}

// querier is the subset of *sql.DB / *sql.Tx that LoadSchema needs.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// LoadSchema reflects the live database's table list via d's
// information-schema query, returning the set CreateSchema should skip.
func LoadSchema(ctx context.Context, db querier, d DialectProfile) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, tableListQuery(d))
	if err != nil {
		return nil, errs.Wrap(errs.KindSchemaVersion, err, "load schema")
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errs.Wrap(errs.KindSchemaVersion, err, "scan table name")
		}
		present[name] = true
	}
	return present, rows.Err()
}

func tableListQuery(d DialectProfile) string {
	switch d.Name() {
	case "sqlite":
		return "SELECT name FROM sqlite_master WHERE type = 'table';"
	default:
		return "SELECT table_name FROM information_schema.tables;"
	}
}
