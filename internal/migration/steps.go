package migration

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"strconv"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/schema"
	"github.com/CourtJesterG/conary/internal/trove"
)

// sha1BackfillBatch bounds how many FileStreams rows a single iteration
// of migrate1-to-15 rewrites before re-checking for cancellation, per
// §5's "long-running migration steps must check for cancellation between
// batches" requirement.
const sha1BackfillBatch = 500

var majorTo14 = []Step{
	{
		Minor:       1,
		Description: "strip Provides rows from redirect instances",
		Run:         stripRedirectProvides,
	},
}

var majorTo15 = []Step{
	{
		Minor:       1,
		Description: "backfill FileStreams.sha1 from stored content",
		Run:         backfillFileStreamSHA1,
	},
}

var majorTo16 = []Step{
	{
		Minor:       1,
		Description: "de-duplicate TroveFiles rows on (instance, filePathId)",
		Run:         dedupeTroveFiles,
	},
	{
		Minor:       2,
		Description: "move admin from Permissions to Roles",
		Run:         foldPermissionsAdminIntoRoles,
	},
}

var majorTo17 = []Step{
	{
		Minor:       1,
		Description: "rebuild LatestCache",
		Run:         rebuildLatestCache,
	},
}

// stripRedirectProvides removes Provides rows left behind by instances
// that predate the rule that redirect troves carry no Provides set.
func stripRedirectProvides(ctx context.Context, tx *sql.Tx, env *Env) error {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM `+schema.TableProvides+`
		WHERE instanceId IN (
			SELECT instanceId FROM `+schema.TableInstances+` WHERE troveType = ?
		)`, int(trove.TypeRedirect))
	if err != nil {
		return errs.Wrap(errs.KindMigration, err, "strip redirect provides")
	}
	n, _ := res.RowsAffected()
	sink := env.progress("strip redirect provides")
	sink.Start(int(n))
	sink.Finish()
	return nil
}

// backfillFileStreamSHA1 re-derives the digest of every FileStreams row
// whose sha1 column is still unset, in batches of sha1BackfillBatch rows
// with a cancellation check between batches. All batches run inside the
// step's single transaction, so a crash or cancellation mid-run rolls the
// whole step back and leaves the database at the previous minor.
func backfillFileStreamSHA1(ctx context.Context, tx *sql.Tx, env *Env) error {
	var total int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM "+schema.TableFileStreams+" WHERE sha1 IS NULL").Scan(&total); err != nil {
		return errs.Wrap(errs.KindMigration, err, "count streams needing sha1")
	}
	if total == 0 {
		return nil
	}

	sink := env.progress("backfill FileStreams.sha1")
	sink.Start(total)

	done := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		type pending struct {
			streamID int64
			fileID   trove.FileID
		}
		var batch []pending

		rows, err := tx.QueryContext(ctx,
			"SELECT streamId, fileId FROM "+schema.TableFileStreams+" WHERE sha1 IS NULL LIMIT ?", sha1BackfillBatch)
		if err != nil {
			return errs.Wrap(errs.KindMigration, err, "select sha1 backfill batch")
		}
		for rows.Next() {
			var p pending
			var fileIDBytes []byte
			if err := rows.Scan(&p.streamID, &fileIDBytes); err != nil {
				rows.Close()
				return errs.Wrap(errs.KindMigration, err, "scan sha1 backfill row")
			}
			copy(p.fileID[:], fileIDBytes)
			batch = append(batch, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return errs.Wrap(errs.KindMigration, err, "iterate sha1 backfill batch")
		}
		rows.Close()
		if len(batch) == 0 {
			break
		}

		for _, p := range batch {
			sum, err := streamDigest(ctx, env, p.fileID)
			if err != nil {
				return errs.Wrapf(errs.KindMigration, err, "digest content for stream %d", p.streamID)
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE "+schema.TableFileStreams+" SET sha1 = ? WHERE streamId = ?", sum[:], p.streamID); err != nil {
				return errs.Wrapf(errs.KindMigration, err, "update sha1 for stream %d", p.streamID)
			}
		}

		done += len(batch)
		sink.Advance(done, "")
	}
	sink.Finish()
	return nil
}

// streamDigest derives a stream's content digest from its stored blob;
// streams with no backing content (directories, symlinks, devices) are
// digested over their fileId instead, matching how such streams carry
// no independent content identity.
func streamDigest(ctx context.Context, env *Env, id trove.FileID) ([20]byte, error) {
	if env.Content != nil && env.Content.HasFileContents(id) {
		content, err := env.Content.GetFileContents(ctx, id)
		if err != nil {
			return [20]byte{}, err
		}
		return sha1.Sum(content), nil
	}
	return sha1.Sum(id[:]), nil
}

// dedupeTroveFiles collapses TroveFiles rows that share an
// (instanceId, filePathId) pair — possible only in data written before
// that pair became a unique index — keeping the lexicographically
// smallest (streamId, versionId). Rows for the same path under different
// pathIds have different filePathIds and are not collapsed. Instances
// touched this way need
// re-signing, which requires a private key this engine does not hold,
// so it only logs a warning naming the affected instances.
func dedupeTroveFiles(ctx context.Context, tx *sql.Tx, env *Env) error {
	groups, err := tx.QueryContext(ctx, `
		SELECT instanceId, filePathId
		FROM `+schema.TableTroveFiles+`
		GROUP BY instanceId, filePathId
		HAVING COUNT(*) > 1`)
	if err != nil {
		return errs.Wrap(errs.KindMigration, err, "find duplicate trove files")
	}
	type dupe struct{ instanceID, filePathID int64 }
	var dupes []dupe
	for groups.Next() {
		var d dupe
		if err := groups.Scan(&d.instanceID, &d.filePathID); err != nil {
			groups.Close()
			return errs.Wrap(errs.KindMigration, err, "scan duplicate group")
		}
		dupes = append(dupes, d)
	}
	if err := groups.Err(); err != nil {
		groups.Close()
		return errs.Wrap(errs.KindMigration, err, "iterate duplicate groups")
	}
	groups.Close()

	affected := map[int64]bool{}
	for _, d := range dupes {
		var streamID, versionID int64
		err := tx.QueryRowContext(ctx, `
			SELECT streamId, versionId FROM `+schema.TableTroveFiles+`
			WHERE instanceId = ? AND filePathId = ?
			ORDER BY streamId ASC, versionId ASC LIMIT 1`,
			d.instanceID, d.filePathID).Scan(&streamID, &versionID)
		if err != nil {
			return errs.Wrap(errs.KindMigration, err, "select duplicate group's surviving row")
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM `+schema.TableTroveFiles+`
			WHERE instanceId = ? AND filePathId = ? AND NOT (streamId = ? AND versionId = ?)`,
			d.instanceID, d.filePathID, streamID, versionID); err != nil {
			return errs.Wrap(errs.KindMigration, err, "delete duplicate trove files")
		}
		affected[d.instanceID] = true
	}

	if env.Log != nil && len(affected) > 0 {
		env.Log.Warnw("de-duplicated TroveFiles rows; affected instances need re-signing", "instances", len(affected))
	}
	return nil
}

// foldPermissionsAdminIntoRoles moves the legacy per-permission admin
// flag onto Roles, where it now lives as a single per-role attribute
// (§3). The current catalog never creates Permissions.admin, so this is
// a no-op on every database this codebase itself created; it only acts
// on a database carrying the column from an older deployment.
func foldPermissionsAdminIntoRoles(ctx context.Context, tx *sql.Tx, env *Env) error {
	has, err := columnExists(ctx, tx, schema.TablePermissions, "admin")
	if err != nil {
		return err
	}
	if !has {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE `+schema.TableRoles+`
		SET admin = (
			SELECT MAX(p.admin) FROM `+schema.TablePermissions+` p WHERE p.roleId = `+schema.TableRoles+`.roleId
		)
		WHERE EXISTS (SELECT 1 FROM `+schema.TablePermissions+` p WHERE p.roleId = `+schema.TableRoles+`.roleId)`); err != nil {
		return errs.Wrap(errs.KindMigration, err, "fold permissions admin into roles")
	}
	if _, err := tx.ExecContext(ctx, "ALTER TABLE "+schema.TablePermissions+" DROP COLUMN admin"); err != nil {
		return errs.Wrap(errs.KindMigration, err, "drop legacy permissions admin column")
	}
	return nil
}

// rebuildLatestCache recomputes LatestCache from scratch: up to three
// rows per (item, branch, flavor), one per gated tier (LATEST_ANY over
// every present instance, LATEST_PRESENT over the non-Removed ones,
// LATEST_NORMAL over the Normal ones), each picked via ROW_NUMBER so ties
// resolve deterministically instead of risking the unique index. This
// subsumes the historical LabelMap/FlavorMap rebuild bullet too — this
// catalog never denormalized labels/flavors into separate map tables, so
// there is nothing else to rebuild alongside it.
func rebuildLatestCache(ctx context.Context, tx *sql.Tx, env *Env) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+schema.TableLatestCache); err != nil {
		return errs.Wrap(errs.KindMigration, err, "clear latest cache")
	}
	tiers := []struct {
		latestType  int
		troveFilter string
	}{
		{latestAny, ""},
		{latestPresent, "AND i.troveType != " + strconv.Itoa(int(trove.TypeRemoved))},
		{latestNormal, "AND i.troveType = " + strconv.Itoa(int(trove.TypeNormal))},
	}
	for _, tier := range tiers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO `+schema.TableLatestCache+` (itemId, branchId, flavorId, versionId, latestType)
			SELECT itemId, branchId, flavorId, versionId, ?
			FROM (
				SELECT n.itemId AS itemId, n.branchId AS branchId, i.flavorId AS flavorId, n.versionId AS versionId,
					ROW_NUMBER() OVER (
						PARTITION BY n.itemId, n.branchId, i.flavorId
						ORDER BY n.finalTimestamp DESC, n.versionId DESC
					) AS rn
				FROM `+schema.TableNodes+` n
				JOIN `+schema.TableInstances+` i ON i.itemId = n.itemId AND i.versionId = n.versionId
				WHERE i.isPresent = ? `+tier.troveFilter+`
			) ranked
			WHERE rn = 1`, tier.latestType, presenceNormal)
		if err != nil {
			return errs.Wrap(errs.KindMigration, err, "rebuild latest cache")
		}
	}
	return nil
}
