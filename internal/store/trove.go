package store

import (
	"context"
	"database/sql"

	"github.com/CourtJesterG/conary/internal/depset"
	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/schema"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

// insertTrove persists t as a brand-new Instance row (plus its Node,
// files, sub-trove refs, and dependency edges) and returns the new
// instanceId. Callers hold the commit transaction open across this call
// and whatever cache refresh follows it, per §5 ordering guarantee 2.
func insertTrove(ctx context.Context, tx *sql.Tx, t *trove.Trove, presence Presence) (int64, error) {
	itemID, err := internItem(ctx, tx, t.Name)
	if err != nil {
		return 0, err
	}
	versionID, err := internVersion(ctx, tx, t.Version.String())
	if err != nil {
		return 0, err
	}
	flavorID, err := internFlavor(ctx, tx, t.Flavor.String())
	if err != nil {
		return 0, err
	}
	branchID, err := internBranch(ctx, tx, t.Version.Branch().String())
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+schema.TableNodes+" (itemId, branchId, versionId, finalTimestamp) VALUES (?, ?, ?, ?)",
		itemID, branchID, versionID, t.Version.FinalTimestamp()); err != nil {
		return 0, errs.Wrap(errs.KindConflict, err, "insert node")
	}

	var clonedFromID sql.NullInt64
	if t.ClonedFromID != nil {
		id, err := internVersion(ctx, tx, t.ClonedFromID.String())
		if err != nil {
			return 0, err
		}
		clonedFromID = sql.NullInt64{Int64: id, Valid: true}
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO "+schema.TableInstances+" (itemId, versionId, flavorId, isPresent, troveType, clonedFromId) VALUES (?, ?, ?, ?, ?, ?)",
		itemID, versionID, flavorID, int(presence), int(t.Type), clonedFromID)
	if err != nil {
		return 0, errs.Wrap(errs.KindConflict, err, "insert instance")
	}
	instanceID, err := res.LastInsertId()
	if err != nil {
		return 0, errs.Wrap(errs.KindUnknown, err, "read instance id")
	}

	for _, e := range t.SortedManifest() {
		if err := insertTroveFile(ctx, tx, instanceID, e); err != nil {
			return 0, err
		}
	}
	for _, ref := range t.SortedSubTroves() {
		if err := insertTroveRef(ctx, tx, instanceID, ref); err != nil {
			return 0, err
		}
	}
	if t.Type != trove.TypeRedirect {
		if err := insertDeps(ctx, tx, schema.TableProvides, instanceID, t.Provides); err != nil {
			return 0, err
		}
	}
	if err := insertDeps(ctx, tx, schema.TableRequires, instanceID, t.Requires); err != nil {
		return 0, err
	}
	return instanceID, nil
}

func insertTroveFile(ctx context.Context, tx *sql.Tx, instanceID int64, e trove.ManifestEntry) error {
	var filePathID int64
	err := tx.QueryRowContext(ctx,
		"SELECT filePathId FROM "+schema.TableFilePaths+" WHERE pathId = ? AND path = ?", e.PathID[:], e.Path).Scan(&filePathID)
	if err == sql.ErrNoRows {
		res, ierr := tx.ExecContext(ctx, "INSERT INTO "+schema.TableFilePaths+" (pathId, path) VALUES (?, ?)", e.PathID[:], e.Path)
		if ierr != nil {
			return errs.Wrap(errs.KindConflict, ierr, "insert file path")
		}
		filePathID, err = res.LastInsertId()
	}
	if err != nil {
		return errs.Wrap(errs.KindUnknown, err, "lookup file path")
	}

	var streamID int64
	err = tx.QueryRowContext(ctx, "SELECT streamId FROM "+schema.TableFileStreams+" WHERE fileId = ?", e.FileID[:]).Scan(&streamID)
	if err == sql.ErrNoRows {
		res, ierr := tx.ExecContext(ctx, "INSERT INTO "+schema.TableFileStreams+" (fileId) VALUES (?)", e.FileID[:])
		if ierr != nil {
			return errs.Wrap(errs.KindConflict, ierr, "insert file stream")
		}
		streamID, err = res.LastInsertId()
	}
	if err != nil {
		return errs.Wrap(errs.KindUnknown, err, "lookup file stream")
	}

	versionID, err := internVersion(ctx, tx, e.Version.String())
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO "+schema.TableTroveFiles+" (instanceId, streamId, versionId, filePathId) VALUES (?, ?, ?, ?)",
		instanceID, streamID, versionID, filePathID); err != nil {
		return errs.Wrap(errs.KindConflict, err, "insert trove file")
	}
	return nil
}

func insertTroveRef(ctx context.Context, tx *sql.Tx, parentID int64, ref trove.TroveRef) error {
	childItemID, err := internItem(ctx, tx, ref.Name)
	if err != nil {
		return err
	}
	childVersionID, err := internVersion(ctx, tx, ref.Version.String())
	if err != nil {
		return err
	}
	childFlavorID, err := internFlavor(ctx, tx, ref.Flavor.String())
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO "+schema.TableTroveRefs+" (parentInstanceId, childItemId, childVersionId, childFlavorId, byDefault, strongRef) VALUES (?, ?, ?, ?, ?, ?)",
		parentID, childItemID, childVersionID, childFlavorID, ref.ByDefault, ref.IsStrongRef)
	if err != nil {
		return errs.Wrap(errs.KindConflict, err, "insert trove ref")
	}
	return nil
}

func insertDeps(ctx context.Context, tx *sql.Tx, table string, instanceID int64, set depset.Set) error {
	for _, d := range set.Deps() {
		flags := ""
		for i, f := range d.Flags {
			if i > 0 {
				flags += ","
			}
			flags += f
		}
		depID, err := internDependency(ctx, tx, string(d.Class), d.Name, flags)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO "+table+" (instanceId, depId) VALUES (?, ?)", instanceID, depID); err != nil {
			return errs.Wrap(errs.KindConflict, err, "insert "+table+" edge")
		}
	}
	return nil
}

// GetTrove loads a trove by exact (name, version, flavor). withFiles
// controls whether the manifest, sub-troves, and dependency sets are
// populated or left empty for a lighter-weight existence check.
func (s *Store) GetTrove(ctx context.Context, name string, v version.Version, f version.Flavor, withFiles bool) (*trove.Trove, error) {
	var instanceID int64
	var troveType int
	err := s.db.QueryRowContext(ctx, `
		SELECT i.instanceId, i.troveType
		FROM `+schema.TableInstances+` i
		JOIN `+schema.TableItems+` it ON it.itemId = i.itemId
		JOIN `+schema.TableVersions+` vv ON vv.versionId = i.versionId
		JOIN `+schema.TableFlavors+` fl ON fl.flavorId = i.flavorId
		WHERE it.item = ? AND vv.version = ? AND fl.flavor = ? AND i.isPresent != ?`,
		name, v.String(), f.String(), int(PresenceMissing)).Scan(&instanceID, &troveType)
	if err == sql.ErrNoRows {
		return nil, errs.Newf(errs.KindNotFound, "trove %s=%s[%s] not found", name, v.String(), f.String())
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "get trove")
	}

	t := trove.New(name, v, f)
	t.Type = trove.TroveType(troveType)
	if !withFiles {
		return t, nil
	}

	if err := loadManifest(ctx, s.db, instanceID, t); err != nil {
		return nil, err
	}
	if err := loadSubTroves(ctx, s.db, instanceID, t); err != nil {
		return nil, err
	}
	provides, err := loadDeps(ctx, s.db, schema.TableProvides, instanceID)
	if err != nil {
		return nil, err
	}
	t.Provides = provides
	requires, err := loadDeps(ctx, s.db, schema.TableRequires, instanceID)
	if err != nil {
		return nil, err
	}
	t.Requires = requires
	return t, nil
}

func loadManifest(ctx context.Context, db *sql.DB, instanceID int64, t *trove.Trove) error {
	rows, err := db.QueryContext(ctx, `
		SELECT fp.pathId, fp.path, fs.fileId, vv.version
		FROM `+schema.TableTroveFiles+` tf
		JOIN `+schema.TableFilePaths+` fp ON fp.filePathId = tf.filePathId
		JOIN `+schema.TableFileStreams+` fs ON fs.streamId = tf.streamId
		JOIN `+schema.TableVersions+` vv ON vv.versionId = tf.versionId
		WHERE tf.instanceId = ?`, instanceID)
	if err != nil {
		return errs.Wrap(errs.KindUnknown, err, "load manifest")
	}
	defer rows.Close()

	for rows.Next() {
		var pathIDBytes, fileIDBytes []byte
		var path, versionStr string
		if err := rows.Scan(&pathIDBytes, &path, &fileIDBytes, &versionStr); err != nil {
			return errs.Wrap(errs.KindUnknown, err, "scan manifest row")
		}
		entryVersion, err := version.Parse(versionStr)
		if err != nil {
			return errs.Wrap(errs.KindParse, err, "manifest entry version")
		}
		var e trove.ManifestEntry
		copy(e.PathID[:], pathIDBytes)
		copy(e.FileID[:], fileIDBytes)
		e.Path = path
		e.Version = entryVersion
		if err := t.AddFile(e); err != nil {
			return err
		}
	}
	return rows.Err()
}

func loadSubTroves(ctx context.Context, db *sql.DB, parentID int64, t *trove.Trove) error {
	rows, err := db.QueryContext(ctx, `
		SELECT it.item, vv.version, fl.flavor, tr.byDefault, tr.strongRef
		FROM `+schema.TableTroveRefs+` tr
		JOIN `+schema.TableItems+` it ON it.itemId = tr.childItemId
		JOIN `+schema.TableVersions+` vv ON vv.versionId = tr.childVersionId
		JOIN `+schema.TableFlavors+` fl ON fl.flavorId = tr.childFlavorId
		WHERE tr.parentInstanceId = ?`, parentID)
	if err != nil {
		return errs.Wrap(errs.KindUnknown, err, "load sub-troves")
	}
	defer rows.Close()

	for rows.Next() {
		var name, versionStr, flavorStr string
		var byDefault, strongRef bool
		if err := rows.Scan(&name, &versionStr, &flavorStr, &byDefault, &strongRef); err != nil {
			return errs.Wrap(errs.KindUnknown, err, "scan sub-trove row")
		}
		v, err := version.Parse(versionStr)
		if err != nil {
			return errs.Wrap(errs.KindParse, err, "sub-trove version")
		}
		fl, err := version.ParseFlavor(flavorStr)
		if err != nil {
			return errs.Wrap(errs.KindParse, err, "sub-trove flavor")
		}
		t.SubTroves = append(t.SubTroves, trove.TroveRef{Name: name, Version: v, Flavor: fl, ByDefault: byDefault, IsStrongRef: strongRef})
	}
	return rows.Err()
}

func loadDeps(ctx context.Context, db *sql.DB, table string, instanceID int64) (depset.Set, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT d.class, d.name, d.flags
		FROM `+table+` p
		JOIN `+schema.TableDependencies+` d ON d.depId = p.depId
		WHERE p.instanceId = ?`, instanceID)
	if err != nil {
		return depset.Set{}, errs.Wrap(errs.KindUnknown, err, "load dependencies")
	}
	defer rows.Close()

	var deps []depset.Dependency
	for rows.Next() {
		var class, name, flags string
		if err := rows.Scan(&class, &name, &flags); err != nil {
			return depset.Set{}, errs.Wrap(errs.KindUnknown, err, "scan dependency row")
		}
		var flagList []string
		if flags != "" {
			flagList = splitComma(flags)
		}
		deps = append(deps, depset.NewDependency(depset.Class(class), name, flagList...))
	}
	return depset.NewSet(deps...), rows.Err()
}

func splitComma(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return out
}
