// Package schema declares the relational catalog — tables, indexes,
// triggers, and foreign keys — as data, parameterized over a
// DialectProfile trait rather than hand-written per-database DDL.
package schema


// DialectProfile maps the catalog's portable column/table keywords onto
// a concrete database's SQL dialect. A new backing database needs only
// a new DialectProfile implementation, not a rewrite of the catalog.
type DialectProfile interface {
	// Name identifies the dialect, e.g. "sqlite".
	Name() string
	// PrimaryKey renders an auto-incrementing integer primary key column.
	PrimaryKey() string
	// Blob renders an arbitrary-length binary column.
	Blob() string
	// Binary renders a fixed-length binary column of n bytes.
	Binary(n int) string
	// PathType renders the column type used for manifest path strings.
	PathType() string
	// Changed renders a column that auto-updates to the current
	// timestamp on row modification, or "" if the dialect has no such
	// trigger-free facility (the caller then falls back to a trigger).
	Changed() string
	// TableOpts renders trailing per-table options (e.g. storage engine).
	TableOpts() string
	// AdvisoryLock acquires a cross-process advisory lock keyed by name.
	AdvisoryLock(name string) string
	// AdvisoryUnlock releases a lock acquired by AdvisoryLock.
	AdvisoryUnlock(name string) string
}

// Column is one column of a Table definition. Type is a portable
// keyword (PRIMARYKEY, BLOB, BINARY(n), PATHTYPE, CHANGED, or a literal
// SQL type like "TEXT"/"INTEGER") resolved against a DialectProfile at
// DDL-emission time.
type Column struct {
	Name     string
	Type     string // literal SQL type, or one of the portable keyword names below
	NotNull  bool
	Default  string // raw SQL default expression, if any
}

// Portable column-type keywords resolved through a DialectProfile.
const (
	KeywordPrimaryKey = "PRIMARYKEY"
	KeywordBlob       = "BLOB"
	KeywordPathType   = "PATHTYPE"
	KeywordChanged    = "CHANGED"
)

func (c Column) resolveType(d DialectProfile) string {
	switch {
	case c.Type == KeywordPrimaryKey:
		return d.PrimaryKey()
	case c.Type == KeywordBlob:
		return d.Blob()
	case c.Type == KeywordPathType:
		return d.PathType()
	case c.Type == KeywordChanged:
		if v := d.Changed(); v != "" {
			return v
		}
		return "TIMESTAMP"
	case isBinaryKeyword(c.Type):
		n := parseBinaryLen(c.Type)
		return d.Binary(n)
	default:
		return c.Type
	}
}

func isBinaryKeyword(t string) bool {
	return len(t) > len("BINARY()") && t[:7] == "BINARY("
}

func parseBinaryLen(t string) int {
	n := 0
	for i := 7; i < len(t) && t[i] != ')'; i++ {
		if t[i] < '0' || t[i] > '9' {
			return n
		}
		n = n*10 + int(t[i]-'0')
	}
	return n
}

// ForeignKey declares a column-level reference to another table's
// primary key.
type ForeignKey struct {
	Column     string
	References string // "table(column)"
	OnDelete   string // "CASCADE", "RESTRICT", "" (dialect default)
}

// Index declares a (non-)unique index over one or more columns.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// Trigger declares a named trigger body, already dialect-specific SQL
// (trigger syntax diverges enough across engines that a portable
// keyword dictionary isn't worth it for the one trigger this catalog
// needs — the CHANGED-column fallback).
type Trigger struct {
	Name string
	SQL  string
}

// Table is one declarative table definition.
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
	Indexes     []Index
	Triggers    []Trigger
}
