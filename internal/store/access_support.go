package store

import (
	"context"
	"database/sql"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/schema"
)

// PermissionRow is a single (role, labelPattern, itemPattern,
// canWrite, canRemove) permission grant.
type PermissionRow struct {
	Role         string
	LabelPattern string
	ItemPattern  string
	CanWrite     bool
	CanRemove    bool
}

// ListItemNames returns every interned item name, the set
// CheckTroveCache's rebuild matches every permission pattern against.
func (s *Store) ListItemNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT item FROM "+schema.TableItems)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "list items")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return nil, errs.Wrap(errs.KindUnknown, err, "scan item")
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListPermissions returns every permission grant across every role.
func (s *Store) ListPermissions(ctx context.Context) ([]PermissionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.role, p.labelPattern, p.itemPattern, p.canWrite, p.canRemove
		FROM `+schema.TablePermissions+` p
		JOIN `+schema.TableRoles+` r ON r.roleId = p.roleId`)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "list permissions")
	}
	defer rows.Close()

	var out []PermissionRow
	for rows.Next() {
		var p PermissionRow
		if err := rows.Scan(&p.Role, &p.LabelPattern, &p.ItemPattern, &p.CanWrite, &p.CanRemove); err != nil {
			return nil, errs.Wrap(errs.KindUnknown, err, "scan permission")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// IsAdmin reports whether role carries the (non-derived) admin attribute.
func (s *Store) IsAdmin(ctx context.Context, role string) (bool, error) {
	var admin bool
	err := s.db.QueryRowContext(ctx, "SELECT admin FROM "+schema.TableRoles+" WHERE role = ?", role).Scan(&admin)
	if err == sql.ErrNoRows {
		return false, errs.Newf(errs.KindNotFound, "role %q not found", role)
	}
	if err != nil {
		return false, errs.Wrap(errs.KindUnknown, err, "read role admin flag")
	}
	return admin, nil
}

// ReplaceCheckTroveCache atomically replaces CheckTroveCache with pairs,
// each (patternItem, item) interned against Items. Full rebuilds are the
// only writer, per spec.md §4.8.
func (s *Store) ReplaceCheckTroveCache(ctx context.Context, pairs [][2]string) error {
	tx, release, err := s.beginCommit(ctx)
	if err != nil {
		return err
	}
	writeErr := func() error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+schema.TableCheckTroveCache); err != nil {
			return errs.Wrap(errs.KindConflict, err, "clear check trove cache")
		}
		for _, pair := range pairs {
			patternID, err := internItem(ctx, tx, pair[0])
			if err != nil {
				return err
			}
			itemID, err := internItem(ctx, tx, pair[1])
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO "+schema.TableCheckTroveCache+" (patternItemId, itemId) VALUES (?, ?)",
				patternID, itemID); err != nil {
				return errs.Wrap(errs.KindConflict, err, "insert check trove cache row")
			}
		}
		return nil
	}()
	return s.endCommit(ctx, tx, release, writeErr)
}

// InstanceIdentity is a (name, version, flavor, label) tuple for every
// present instance, the input RoleInstanceCache's rebuild matches
// permission label patterns against.
type InstanceIdentity struct {
	Name    string
	Version string
	Flavor  string
	Label   string
}

// ListInstanceIdentities returns every present instance's identity
// tuple, used by the access layer to recompute RoleInstanceCache.
func (s *Store) ListInstanceIdentities(ctx context.Context) ([]InstanceIdentity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT it.item, vv.version, fl.flavor, br.branch
		FROM `+schema.TableInstances+` i
		JOIN `+schema.TableItems+` it ON it.itemId = i.itemId
		JOIN `+schema.TableVersions+` vv ON vv.versionId = i.versionId
		JOIN `+schema.TableFlavors+` fl ON fl.flavorId = i.flavorId
		JOIN `+schema.TableNodes+` n ON n.itemId = i.itemId AND n.versionId = i.versionId
		JOIN `+schema.TableBranches+` br ON br.branchId = n.branchId
		WHERE i.isPresent = ?`, int(PresenceNormal))
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "list instance identities")
	}
	defer rows.Close()

	var out []InstanceIdentity
	for rows.Next() {
		var id InstanceIdentity
		var branch string
		if err := rows.Scan(&id.Name, &id.Version, &id.Flavor, &branch); err != nil {
			return nil, errs.Wrap(errs.KindUnknown, err, "scan instance identity")
		}
		id.Label = branch
		out = append(out, id)
	}
	return out, rows.Err()
}

// RoleVisibility is one RoleInstanceCache row in role-name form.
type RoleVisibility struct {
	Role      string
	Name      string
	Version   string
	Flavor    string
	CanWrite  bool
	CanRemove bool
}

// ReplaceRoleInstanceCache atomically replaces RoleInstanceCache.
func (s *Store) ReplaceRoleInstanceCache(ctx context.Context, entries []RoleVisibility) error {
	tx, release, err := s.beginCommit(ctx)
	if err != nil {
		return err
	}
	writeErr := func() error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+schema.TableRoleInstanceCache); err != nil {
			return errs.Wrap(errs.KindConflict, err, "clear role instance cache")
		}
		for _, e := range entries {
			var roleID int64
			if err := tx.QueryRowContext(ctx, "SELECT roleId FROM "+schema.TableRoles+" WHERE role = ?", e.Role).Scan(&roleID); err != nil {
				return errs.Wrapf(errs.KindNotFound, err, "role %q", e.Role)
			}
			var instanceID int64
			err := tx.QueryRowContext(ctx, `
				SELECT i.instanceId FROM `+schema.TableInstances+` i
				JOIN `+schema.TableItems+` it ON it.itemId = i.itemId
				JOIN `+schema.TableVersions+` vv ON vv.versionId = i.versionId
				JOIN `+schema.TableFlavors+` fl ON fl.flavorId = i.flavorId
				WHERE it.item = ? AND vv.version = ? AND fl.flavor = ?`,
				e.Name, e.Version, e.Flavor).Scan(&instanceID)
			if err != nil {
				return errs.Wrapf(errs.KindNotFound, err, "instance %s=%s[%s]", e.Name, e.Version, e.Flavor)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO "+schema.TableRoleInstanceCache+" (roleId, instanceId, canWrite, canRemove) VALUES (?, ?, ?, ?)",
				roleID, instanceID, e.CanWrite, e.CanRemove); err != nil {
				return errs.Wrap(errs.KindConflict, err, "insert role instance cache row")
			}
		}
		return nil
	}()
	return s.endCommit(ctx, tx, release, writeErr)
}

// RoleInstanceCacheRow is one materialized RoleInstanceCache row keyed
// by role name and raw instanceId, the shape internal/access loads to
// build its in-memory per-role visibility bitmaps.
type RoleInstanceCacheRow struct {
	Role       string
	InstanceID int64
	CanWrite   bool
	CanRemove  bool
}

// LoadRoleInstanceCache returns every RoleInstanceCache row in role-name
// form, for rebuilding the in-memory bitmap index after a rebuild.
func (s *Store) LoadRoleInstanceCache(ctx context.Context) ([]RoleInstanceCacheRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.role, ric.instanceId, ric.canWrite, ric.canRemove
		FROM `+schema.TableRoleInstanceCache+` ric
		JOIN `+schema.TableRoles+` r ON r.roleId = ric.roleId`)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "load role instance cache")
	}
	defer rows.Close()

	var out []RoleInstanceCacheRow
	for rows.Next() {
		var r RoleInstanceCacheRow
		if err := rows.Scan(&r.Role, &r.InstanceID, &r.CanWrite, &r.CanRemove); err != nil {
			return nil, errs.Wrap(errs.KindUnknown, err, "scan role instance cache row")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InstanceID resolves (name, version, flavor) to its raw instanceId, for
// query-time bitmap lookups.
func (s *Store) InstanceID(ctx context.Context, name, v, f string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT i.instanceId
		FROM `+schema.TableInstances+` i
		JOIN `+schema.TableItems+` it ON it.itemId = i.itemId
		JOIN `+schema.TableVersions+` vv ON vv.versionId = i.versionId
		JOIN `+schema.TableFlavors+` fl ON fl.flavorId = i.flavorId
		WHERE it.item = ? AND vv.version = ? AND fl.flavor = ?`, name, v, f).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, errs.Newf(errs.KindNotFound, "instance %s=%s[%s] not found", name, v, f)
	}
	if err != nil {
		return 0, errs.Wrap(errs.KindUnknown, err, "resolve instance id")
	}
	return id, nil
}

// Visibility reports a role's write/remove rights over a specific
// instance, per RoleInstanceCache; ok is false if no row grants any
// access (ordinary query-time authorization should treat that as deny).
func (s *Store) Visibility(ctx context.Context, role, name, v, f string) (canWrite, canRemove, ok bool, err error) {
	rows, qerr := s.db.QueryContext(ctx, `
		SELECT ric.canWrite, ric.canRemove
		FROM `+schema.TableRoleInstanceCache+` ric
		JOIN `+schema.TableRoles+` r ON r.roleId = ric.roleId
		JOIN `+schema.TableInstances+` i ON i.instanceId = ric.instanceId
		JOIN `+schema.TableItems+` it ON it.itemId = i.itemId
		JOIN `+schema.TableVersions+` vv ON vv.versionId = i.versionId
		JOIN `+schema.TableFlavors+` fl ON fl.flavorId = i.flavorId
		WHERE r.role = ? AND it.item = ? AND vv.version = ? AND fl.flavor = ?`,
		role, name, v, f)
	if qerr != nil {
		return false, false, false, errs.Wrap(errs.KindUnknown, qerr, "query role visibility")
	}
	defer rows.Close()

	for rows.Next() {
		var w, r bool
		if err := rows.Scan(&w, &r); err != nil {
			return false, false, false, errs.Wrap(errs.KindUnknown, err, "scan role visibility row")
		}
		ok = true
		canWrite = canWrite || w
		canRemove = canRemove || r
	}
	return canWrite, canRemove, ok, rows.Err()
}
