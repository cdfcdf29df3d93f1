package store

import (
	"context"
	"database/sql"

	"github.com/CourtJesterG/conary/internal/changeset"
	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/schema"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

// LatestTier is one of the three gated LatestCache rows §4.7 requires
// per (item, branch, flavor): LATEST_ANY holds the newest instance
// regardless of troveType, LATEST_PRESENT excludes only Removed, and
// LATEST_NORMAL excludes both Removed and Redirect. LATEST_ANY ⊇
// LATEST_PRESENT ⊇ LATEST_NORMAL.
type LatestTier int

const (
	LatestAny LatestTier = iota
	LatestPresent
	LatestNormal
)

// tiersFor reports which LatestCache tiers a trove of type t is gated
// into, per §4.7's formula.
func tiersFor(t trove.TroveType) []LatestTier {
	tiers := []LatestTier{LatestAny}
	if t != trove.TypeRemoved {
		tiers = append(tiers, LatestPresent)
	}
	if t == trove.TypeNormal {
		tiers = append(tiers, LatestNormal)
	}
	return tiers
}

// CommitResult summarizes what a CommitChangeset call actually wrote,
// for the caller to log or report back to a client.
type CommitResult struct {
	Committed []trove.TroveRef
}

// CommitChangeset applies every TroveChangeSet in cs against the current
// repository state inside a single commit transaction: absolute
// changesets construct a new trove from scratch, relative ones are
// applied against the existing instance they name as their basis. All
// writes land or none do (§5 atomicity guarantee). authRole must carry
// canWrite over every trove named in cs, per §4.8 and §4.6's
// `commitChangeset(cs, authRole) → commitResult` signature.
func (s *Store) CommitChangeset(ctx context.Context, cs *changeset.ChangeSet, authRole string) (CommitResult, error) {
	tx, release, err := s.beginCommit(ctx)
	if err != nil {
		return CommitResult{}, err
	}

	var result CommitResult
	commitErr := func() error {
		for _, tcs := range cs.Troves {
			newTrove, err := s.resolveNewTrove(ctx, tcs)
			if err != nil {
				return err
			}
			if s.auth != nil {
				label := newTrove.Version.Branch().TrailingLabel().String()
				if err := s.auth.AuthorizeCommit(ctx, authRole, newTrove.Name, label); err != nil {
					return err
				}
			}
			if _, err := insertTrove(ctx, tx, newTrove, PresenceNormal); err != nil {
				return err
			}
			if err := refreshLatestCache(ctx, tx, newTrove); err != nil {
				return err
			}
			result.Committed = append(result.Committed, trove.TroveRef{
				Name:    newTrove.Name,
				Version: newTrove.Version,
				Flavor:  newTrove.Flavor,
			})
		}
		return nil
	}()

	if err := s.endCommit(ctx, tx, release, commitErr); err != nil {
		return CommitResult{}, err
	}

	if err := s.materializeContent(ctx, cs); err != nil {
		return result, err
	}
	return result, nil
}

// materializeContent writes every blob in the changeset's content
// archive into the content store, keyed by fileId, per §4.6's "resolves
// referenced entities, materializes new file-streams". It runs after
// the metadata transaction commits: the content store is a separate
// key→bytes collaborator (§6), not part of the relational transaction,
// and writes are idempotent (same fileId, same bytes), so replaying
// them on a retried commit is harmless.
func (s *Store) materializeContent(ctx context.Context, cs *changeset.ChangeSet) error {
	if s.contentRoot == "" {
		return nil
	}
	for key := range cs.Archive {
		blob, ok, err := cs.GetContent(key)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.PutFileContents(ctx, key.FileID, blob); err != nil {
			return err
		}
	}
	return nil
}

// resolveNewTrove reconstructs the post-commit trove that a single
// TroveChangeSet describes: diff-and-patch against its basis instance
// for a relative changeset, or a bare constructed trove for an absolute
// one (changeset.Apply handles both, given a nil basis).
func (s *Store) resolveNewTrove(ctx context.Context, tcs changeset.TroveChangeSet) (*trove.Trove, error) {
	var basis *trove.Trove
	if tcs.OldVersion != nil {
		var err error
		basis, err = s.GetTrove(ctx, tcs.Name, *tcs.OldVersion, *tcs.OldFlavor, true)
		if err != nil {
			return nil, errs.Wrapf(errs.KindNotFound, err, "load basis trove for %s", tcs.Name)
		}
	}
	return changeset.Apply(basis, tcs)
}

// refreshLatestCache recomputes every LatestCache tier (item, branch,
// flavor, tier) that newTrove's troveType is gated into, per §5 ordering
// guarantee 2: the cache update happens inside the same transaction as
// the instance insert it reflects, so a reader never observes one
// without the other.
func refreshLatestCache(ctx context.Context, tx *sql.Tx, t *trove.Trove) error {
	itemID, err := internItem(ctx, tx, t.Name)
	if err != nil {
		return err
	}
	branchID, err := internBranch(ctx, tx, t.Version.Branch().String())
	if err != nil {
		return err
	}
	flavorID, err := internFlavor(ctx, tx, t.Flavor.String())
	if err != nil {
		return err
	}
	versionID, err := internVersion(ctx, tx, t.Version.String())
	if err != nil {
		return err
	}

	for _, tier := range tiersFor(t.Type) {
		if err := upsertLatestCacheRow(ctx, tx, itemID, branchID, flavorID, versionID, t.Version, tier); err != nil {
			return err
		}
	}
	return nil
}

// upsertLatestCacheRow inserts or bumps the single LatestCache row for
// (itemID, branchID, flavorID, tier), keeping whichever of the existing
// and candidate version compares highest.
func upsertLatestCacheRow(ctx context.Context, tx *sql.Tx, itemID, branchID, flavorID, versionID int64, v version.Version, tier LatestTier) error {
	var cachedVersionStr string
	err := tx.QueryRowContext(ctx, `
		SELECT vv.version FROM `+schema.TableLatestCache+` lc
		JOIN `+schema.TableVersions+` vv ON vv.versionId = lc.versionId
		WHERE lc.itemId = ? AND lc.branchId = ? AND lc.flavorId = ? AND lc.latestType = ?`,
		itemID, branchID, flavorID, int(tier)).Scan(&cachedVersionStr)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO "+schema.TableLatestCache+" (itemId, branchId, flavorId, versionId, latestType) VALUES (?, ?, ?, ?, ?)",
			itemID, branchID, flavorID, versionID, int(tier)); err != nil {
			return errs.Wrap(errs.KindConflict, err, "insert latest cache")
		}
		return nil
	case err != nil:
		return errs.Wrap(errs.KindUnknown, err, "read latest cache")
	}

	cachedVersion, err := version.Parse(cachedVersionStr)
	if err != nil {
		return errs.Wrap(errs.KindParse, err, "parse cached latest version")
	}
	if v.Compare(cachedVersion) <= 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE "+schema.TableLatestCache+" SET versionId = ? WHERE itemId = ? AND branchId = ? AND flavorId = ? AND latestType = ?",
		versionID, itemID, branchID, flavorID, int(tier)); err != nil {
		return errs.Wrap(errs.KindConflict, err, "update latest cache")
	}
	return nil
}
