package store

import (
	"context"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/schema"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

// TroveFilter narrows IterTroves to a single item name and, optionally,
// a branch label; an empty Label matches every branch.
type TroveFilter struct {
	Name  string
	Label string
}

// IterTroves streams every present instance matching filter to visit,
// in (version, flavor) order. Returning an error from visit stops
// iteration and propagates the error.
func (s *Store) IterTroves(ctx context.Context, filter TroveFilter, visit func(trove.TroveRef) error) error {
	query := `
		SELECT it.item, vv.version, fl.flavor
		FROM ` + schema.TableInstances + ` i
		JOIN ` + schema.TableItems + ` it ON it.itemId = i.itemId
		JOIN ` + schema.TableVersions + ` vv ON vv.versionId = i.versionId
		JOIN ` + schema.TableFlavors + ` fl ON fl.flavorId = i.flavorId
		WHERE it.item = ? AND i.isPresent = ?
		ORDER BY vv.version, fl.flavor`

	rows, err := s.db.QueryContext(ctx, query, filter.Name, int(PresenceNormal))
	if err != nil {
		return errs.Wrap(errs.KindUnknown, err, "iterate troves")
	}
	defer rows.Close()

	for rows.Next() {
		var name, versionStr, flavorStr string
		if err := rows.Scan(&name, &versionStr, &flavorStr); err != nil {
			return errs.Wrap(errs.KindUnknown, err, "scan trove row")
		}
		v, err := version.Parse(versionStr)
		if err != nil {
			return errs.Wrap(errs.KindParse, err, "iterate: trove version")
		}
		if filter.Label != "" && !onLabel(v, filter.Label) {
			continue
		}
		fl, err := version.ParseFlavor(flavorStr)
		if err != nil {
			return errs.Wrap(errs.KindParse, err, "iterate: trove flavor")
		}
		if err := visit(trove.TroveRef{Name: name, Version: v, Flavor: fl}); err != nil {
			return err
		}
	}
	return rows.Err()
}

func onLabel(v version.Version, label string) bool {
	return v.Branch().TrailingLabel().String() == label
}

// authorizeExisting checks authRole's canWrite/canRemove grant over the
// already-committed instance (name, v, f), per §4.8: MarkRemoved requires
// canRemove, HideTrove/UnhideTrove require canWrite. A nil auth (no
// access control wired up) allows everything.
func (s *Store) authorizeExisting(ctx context.Context, name string, v version.Version, f version.Flavor, authRole string, removeRequired bool) error {
	if s.auth == nil {
		return nil
	}
	instanceID, err := s.InstanceID(ctx, name, v.String(), f.String())
	if err != nil {
		return err
	}
	return s.auth.Authorize(ctx, authRole, instanceID, !removeRequired, removeRequired)
}

// setPresence transitions the named instance's isPresent column. Used
// by HideTrove and UnhideTrove; both require canWrite since toggling
// visibility is not a REMOVE operation (that is MarkRemoved's troveType
// flip).
func (s *Store) setPresence(ctx context.Context, name string, v version.Version, f version.Flavor, presence Presence, authRole string) error {
	if err := s.authorizeExisting(ctx, name, v, f, authRole, false); err != nil {
		return err
	}
	tx, release, err := s.beginCommit(ctx)
	if err != nil {
		return err
	}
	updateErr := func() error {
		res, err := tx.ExecContext(ctx, `
			UPDATE `+schema.TableInstances+` SET isPresent = ?
			WHERE itemId = (SELECT itemId FROM `+schema.TableItems+` WHERE item = ?)
			  AND versionId = (SELECT versionId FROM `+schema.TableVersions+` WHERE version = ?)
			  AND flavorId = (SELECT flavorId FROM `+schema.TableFlavors+` WHERE flavor = ?)`,
			int(presence), name, v.String(), f.String())
		if err != nil {
			return errs.Wrap(errs.KindConflict, err, "update instance presence")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errs.Wrap(errs.KindUnknown, err, "read rows affected")
		}
		if n == 0 {
			return errs.Newf(errs.KindNotFound, "trove %s=%s[%s] not found", name, v.String(), f.String())
		}
		return nil
	}()
	return s.endCommit(ctx, tx, release, updateErr)
}

// MarkRemoved flips an instance's troveType to Removed: a soft delete
// that leaves content and isPresent untouched, and is excluded by the
// query engine's default troveTypes=PRESENT filter but still resolvable
// by an exact getTrove lookup or troveTypes=ALL. authRole must carry
// canRemove over the instance, per §4.8.
func (s *Store) MarkRemoved(ctx context.Context, name string, v version.Version, f version.Flavor, authRole string) error {
	if err := s.authorizeExisting(ctx, name, v, f, authRole, true); err != nil {
		return err
	}
	tx, release, err := s.beginCommit(ctx)
	if err != nil {
		return err
	}
	updateErr := func() error {
		res, err := tx.ExecContext(ctx, `
			UPDATE `+schema.TableInstances+` SET troveType = ?
			WHERE itemId = (SELECT itemId FROM `+schema.TableItems+` WHERE item = ?)
			  AND versionId = (SELECT versionId FROM `+schema.TableVersions+` WHERE version = ?)
			  AND flavorId = (SELECT flavorId FROM `+schema.TableFlavors+` WHERE flavor = ?)`,
			int(trove.TypeRemoved), name, v.String(), f.String())
		if err != nil {
			return errs.Wrap(errs.KindConflict, err, "mark instance removed")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errs.Wrap(errs.KindUnknown, err, "read rows affected")
		}
		if n == 0 {
			return errs.Newf(errs.KindNotFound, "trove %s=%s[%s] not found", name, v.String(), f.String())
		}
		return nil
	}()
	return s.endCommit(ctx, tx, release, updateErr)
}

// HideTrove sets isPresent to Hidden: still resolvable by exact
// (name, version, flavor) lookup but excluded from findTroves and
// LatestCache-driven browsing. authRole must carry canWrite over the
// instance, per §4.8.
func (s *Store) HideTrove(ctx context.Context, name string, v version.Version, f version.Flavor, authRole string) error {
	return s.setPresence(ctx, name, v, f, PresenceHidden, authRole)
}

// UnhideTrove restores a previously hidden instance to Normal presence.
// authRole must carry canWrite over the instance, per §4.8.
func (s *Store) UnhideTrove(ctx context.Context, name string, v version.Version, f version.Flavor, authRole string) error {
	return s.setPresence(ctx, name, v, f, PresenceNormal, authRole)
}
