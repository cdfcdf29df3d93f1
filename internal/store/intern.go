package store

import (
	"context"
	"database/sql"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/schema"
)

// internRow looks up id for value in an append-only interning table
// (Items, Labels, Branches, Versions, Flavors, Dependencies), inserting
// it if absent. Items/Versions/Labels/Flavors are never deleted while
// referenced (§3 lifecycle rule), so a plain "insert if missing, then
// select" is race-free within the single-writer transaction model.
func internRow(ctx context.Context, tx *sql.Tx, table, idColumn, valueColumn, value string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, "SELECT "+idColumn+" FROM "+table+" WHERE "+valueColumn+" = ?", value).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, errs.Wrapf(errs.KindUnknown, err, "lookup %s", table)
	}
	res, err := tx.ExecContext(ctx, "INSERT INTO "+table+" ("+valueColumn+") VALUES (?)", value)
	if err != nil {
		return 0, errs.Wrapf(errs.KindConflict, err, "insert %s", table)
	}
	return res.LastInsertId()
}

func internItem(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	return internRow(ctx, tx, schema.TableItems, "itemId", "item", name)
}

func internLabel(ctx context.Context, tx *sql.Tx, label string) (int64, error) {
	return internRow(ctx, tx, schema.TableLabels, "labelId", "label", label)
}

func internBranch(ctx context.Context, tx *sql.Tx, branch string) (int64, error) {
	return internRow(ctx, tx, schema.TableBranches, "branchId", "branch", branch)
}

func internVersion(ctx context.Context, tx *sql.Tx, version string) (int64, error) {
	return internRow(ctx, tx, schema.TableVersions, "versionId", "version", version)
}

func internFlavor(ctx context.Context, tx *sql.Tx, flavor string) (int64, error) {
	return internRow(ctx, tx, schema.TableFlavors, "flavorId", "flavor", flavor)
}

// internDependency interns a single frozen (class, name, flags) row and
// returns its depId.
func internDependency(ctx context.Context, tx *sql.Tx, class, name, flags string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT depId FROM "+schema.TableDependencies+" WHERE class = ? AND name = ? AND flags = ?",
		class, name, flags).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, errs.Wrap(errs.KindUnknown, err, "lookup dependency")
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO "+schema.TableDependencies+" (class, name, flags) VALUES (?, ?, ?)", class, name, flags)
	if err != nil {
		return 0, errs.Wrap(errs.KindConflict, err, "insert dependency")
	}
	return res.LastInsertId()
}
