// Package migration implements the versioned schema migration engine
// (spec.md §4.9): an ordered sequence of MigrateTo_<major> steps, each a
// monotonically numbered migrateN, run from the database's current
// (major, minor) forward to the major the running code supports.
package migration

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/schema"
	"github.com/CourtJesterG/conary/internal/trove"
)

// MinSupportedMajor is the oldest database major this engine will
// migrate from; older databases are rejected with KindSchemaVersion.
const MinSupportedMajor = 13

// presenceNormal mirrors store.PresenceNormal's encoding. Migration runs
// below the store's object-relational layer (directly against the
// schema catalog, like the teacher's own migration code runs against
// bare cursors) so it cannot import internal/store without creating an
// import cycle; the value is re-declared here rather than shared.
const presenceNormal = 1

// latestAny/latestPresent/latestNormal mirror store.LatestTier's encoding
// (same import-cycle reason as presenceNormal above): LATEST_ANY holds the
// newest instance regardless of troveType, LATEST_PRESENT excludes only
// Removed, LATEST_NORMAL excludes both Removed and Redirect.
const (
	latestAny     = 0
	latestPresent = 1
	latestNormal  = 2
)

// SchemaVersion is a database's (major, minor) schema version.
type SchemaVersion struct {
	Major int
	Minor int
}

// ContentSource is the narrow slice of the content store a migration
// step needs — just enough to re-derive a file stream's digest from its
// backing blob, without depending on internal/store.
type ContentSource interface {
	GetFileContents(ctx context.Context, id trove.FileID) ([]byte, error)
	HasFileContents(id trove.FileID) bool
}

// Env carries the collaborators a migration step may need beyond its
// transaction: where to read file content from, and where to report
// progress.
type Env struct {
	Content ContentSource
	Log     *zap.SugaredLogger
}

// Step is a single migrateN: a minor version target, a human
// description for logs, and the function that performs it. A Step must
// be safe to retry in isolation — on crash mid-step the transaction
// rolls back and the database is left at the previous minor.
type Step struct {
	Minor       int
	Description string
	Run         func(ctx context.Context, tx *sql.Tx, env *Env) error
}

// registry holds each major version's ordered minor steps, starting at
// minor 1. A major with no entry (but >= MinSupportedMajor) requires no
// data transformation of its own.
var registry = map[int][]Step{
	14: majorTo14,
	15: majorTo15,
	16: majorTo16,
	17: majorTo17,
}

// currentVersion is the schema version this build of the code supports:
// the highest major in registry, at its last defined minor.
func currentVersion() SchemaVersion {
	major := MinSupportedMajor
	for m := range registry {
		if m > major {
			major = m
		}
	}
	return SchemaVersion{Major: major, Minor: len(registry[major])}
}

// Migrate runs getVersion/assert/run-to-current exactly as spec.md
// §4.9's top-level algorithm describes, committing each step as it
// completes so a crash mid-run leaves the database at the last
// successfully applied minor. A freshly created (version-absent)
// database is stamped at the current version directly: schema.
// CreateSchema always creates the final-form catalog, so there is
// nothing for the data-transforming steps below to do.
func Migrate(ctx context.Context, db *sql.DB, content ContentSource, log *zap.SugaredLogger) (SchemaVersion, error) {
	v, err := getVersion(ctx, db)
	if err != nil {
		return SchemaVersion{}, err
	}
	current := currentVersion()

	if v == (SchemaVersion{}) {
		if err := setVersion(ctx, db, current); err != nil {
			return SchemaVersion{}, err
		}
		return current, nil
	}
	if v.Major < MinSupportedMajor {
		return v, errs.Newf(errs.KindSchemaVersion,
			"database schema major %d is older than the minimum supported major %d", v.Major, MinSupportedMajor)
	}
	if v.Major > current.Major {
		return v, nil // noop: database is newer than this build of the code
	}

	env := &Env{Content: content, Log: log}

	v, err = runMajor(ctx, db, env, v.Major, v.Minor+1)
	if err != nil {
		return v, err
	}
	for v.Major < current.Major {
		next := v.Major + 1
		nv, err := runMajor(ctx, db, env, next, 1)
		if err != nil {
			return v, err
		}
		if nv.Major != next {
			return v, errs.Newf(errs.KindMigration, "migration to major %d did not advance the database version", next)
		}
		v = nv
	}
	return v, nil
}

// runMajor runs major's steps starting at fromMinor, committing and
// advancing DatabaseVersion after each one. If major defines no steps
// at all, it stamps (major, 0) directly so the major-advancing loop in
// Migrate still makes progress.
func runMajor(ctx context.Context, db *sql.DB, env *Env, major, fromMinor int) (SchemaVersion, error) {
	steps := registry[major]
	if fromMinor < 1 {
		fromMinor = 1
	}
	start := fromMinor - 1
	if start > len(steps) {
		start = len(steps)
	}

	v := SchemaVersion{Major: major, Minor: fromMinor - 1}
	for _, step := range steps[start:] {
		if err := ctx.Err(); err != nil {
			return v, err
		}
		if err := runStep(ctx, db, env, major, step); err != nil {
			return v, err
		}
		v = SchemaVersion{Major: major, Minor: step.Minor}
	}
	if len(steps) == 0 {
		if err := setVersion(ctx, db, v); err != nil {
			return v, err
		}
	}
	return v, nil
}

// runStep executes one migrateN inside its own transaction, stamping
// DatabaseVersion as part of the same commit so a step's effect and its
// version bump are never observed apart.
func runStep(ctx context.Context, db *sql.DB, env *Env, major int, step Step) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindMigration, err, "begin migration step")
	}
	if env.Log != nil {
		env.Log.Infow("running migration step",
			"major", major, "minor", step.Minor, "description", step.Description)
	}
	if err := step.Run(ctx, tx, env); err != nil {
		tx.Rollback()
		return errs.Wrapf(errs.KindMigration, err, "migrate to %d.%d (%s)", major, step.Minor, step.Description)
	}
	if err := setVersionTx(ctx, tx, SchemaVersion{Major: major, Minor: step.Minor}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindMigration, err, "commit migration step")
	}
	return nil
}

func getVersion(ctx context.Context, db *sql.DB) (SchemaVersion, error) {
	var v SchemaVersion
	err := db.QueryRowContext(ctx, "SELECT major, minor FROM "+schema.TableDatabaseVersion).Scan(&v.Major, &v.Minor)
	if err == sql.ErrNoRows {
		return SchemaVersion{}, nil
	}
	if err != nil {
		return SchemaVersion{}, errs.Wrap(errs.KindUnknown, err, "read database version")
	}
	return v, nil
}

func setVersion(ctx context.Context, db *sql.DB, v SchemaVersion) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.KindMigration, err, "begin version stamp")
	}
	if err := setVersionTx(ctx, tx, v); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindMigration, err, "commit version stamp")
	}
	return nil
}

func setVersionTx(ctx context.Context, tx *sql.Tx, v SchemaVersion) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+schema.TableDatabaseVersion); err != nil {
		return errs.Wrap(errs.KindMigration, err, "clear database version")
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+schema.TableDatabaseVersion+" (major, minor) VALUES (?, ?)", v.Major, v.Minor); err != nil {
		return errs.Wrap(errs.KindMigration, err, "stamp database version")
	}
	return nil
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, "PRAGMA table_info("+table+")")
	if err != nil {
		return false, errs.Wrap(errs.KindMigration, err, "inspect table columns")
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notNull, pk int
		var name, ctype string
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return false, errs.Wrap(errs.KindMigration, err, "scan column info")
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
