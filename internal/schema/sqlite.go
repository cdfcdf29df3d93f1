package schema

import "fmt"

// SQLiteDialect is the one concrete DialectProfile this module ships,
// targeting modernc.org/sqlite (the pure-Go driver the store package
// registers under the "sqlite" database/sql driver name).
type SQLiteDialect struct{}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) PrimaryKey() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (SQLiteDialect) Blob() string { return "BLOB" }

func (SQLiteDialect) Binary(n int) string { return fmt.Sprintf("BLOB(%d)", n) }

func (SQLiteDialect) PathType() string { return "TEXT" }

// Changed returns "" because SQLite has no declarative auto-update
// column; the caller falls back to a trigger-based CHANGED column.
func (SQLiteDialect) Changed() string { return "" }

func (SQLiteDialect) TableOpts() string { return "" }

// AdvisoryLock has no native SQLite equivalent; it returns an UPDATE of
// the CommitLock row, which the store issues as the first statement of
// each commit transaction so that SQLite's own write lock serializes
// writers.
func (SQLiteDialect) AdvisoryLock(name string) string {
	return fmt.Sprintf("UPDATE %s SET held = 1 WHERE lockId = 1 AND held = 0;", TableCommitLock)
}

func (SQLiteDialect) AdvisoryUnlock(name string) string {
	return fmt.Sprintf("UPDATE %s SET held = 0 WHERE lockId = 1;", TableCommitLock)
}
