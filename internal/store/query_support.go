package store

import (
	"context"

	"github.com/google/btree"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/schema"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

// InstanceRow is the row shape internal/query's findTroves needs: enough
// to filter/sort candidates without loading a full Trove per row.
type InstanceRow struct {
	Name           string
	Version        version.Version
	Flavor         version.Flavor
	TroveType      trove.TroveType
	FinalTimestamp float64
}

// CandidatesByName returns every normally-visible instance of name,
// across every branch and flavor. The query layer (internal/query)
// applies version/flavor-filter policy on top of this set; hidden and
// missing instances are never candidates, matching IterTroves.
func (s *Store) CandidatesByName(ctx context.Context, name string) ([]InstanceRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vv.version, fl.flavor, i.troveType, n.finalTimestamp
		FROM `+schema.TableInstances+` i
		JOIN `+schema.TableItems+` it ON it.itemId = i.itemId
		JOIN `+schema.TableVersions+` vv ON vv.versionId = i.versionId
		JOIN `+schema.TableFlavors+` fl ON fl.flavorId = i.flavorId
		JOIN `+schema.TableNodes+` n ON n.itemId = i.itemId AND n.versionId = i.versionId
		WHERE it.item = ? AND i.isPresent = ?`, name, int(PresenceNormal))
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "query candidates")
	}
	defer rows.Close()

	var out []InstanceRow
	for rows.Next() {
		var versionStr, flavorStr string
		var troveType int
		var finalTimestamp float64
		if err := rows.Scan(&versionStr, &flavorStr, &troveType, &finalTimestamp); err != nil {
			return nil, errs.Wrap(errs.KindUnknown, err, "scan candidate row")
		}
		v, err := version.Parse(versionStr)
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, err, "candidate version")
		}
		fl, err := version.ParseFlavor(flavorStr)
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, err, "candidate flavor")
		}
		out = append(out, InstanceRow{
			Name: name, Version: v, Flavor: fl,
			TroveType: trove.TroveType(troveType), FinalTimestamp: finalTimestamp,
		})
	}
	return out, rows.Err()
}

// LatestCandidatesByName returns the reduced "latest per (branch,
// flavor)" candidate set for name at the given LatestCache tier, read
// directly from the persisted cache instead of rescanning
// Instances/Nodes, per §4.7: the query engine's LATEST/LEAVES paths
// consult LatestCache rather than recomputing it on every call. As in
// CandidatesByName, hidden and missing instances are never returned.
func (s *Store) LatestCandidatesByName(ctx context.Context, name string, tier LatestTier) ([]InstanceRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT vv.version, fl.flavor, i.troveType, n.finalTimestamp
		FROM `+schema.TableLatestCache+` lc
		JOIN `+schema.TableItems+` it ON it.itemId = lc.itemId
		JOIN `+schema.TableInstances+` i ON i.itemId = lc.itemId AND i.versionId = lc.versionId AND i.flavorId = lc.flavorId
		JOIN `+schema.TableVersions+` vv ON vv.versionId = lc.versionId
		JOIN `+schema.TableFlavors+` fl ON fl.flavorId = lc.flavorId
		JOIN `+schema.TableNodes+` n ON n.itemId = lc.itemId AND n.versionId = lc.versionId
		WHERE it.item = ? AND lc.latestType = ? AND i.isPresent = ?`, name, int(tier), int(PresenceNormal))
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "query latest candidates")
	}
	defer rows.Close()

	var out []InstanceRow
	for rows.Next() {
		var versionStr, flavorStr string
		var troveType int
		var finalTimestamp float64
		if err := rows.Scan(&versionStr, &flavorStr, &troveType, &finalTimestamp); err != nil {
			return nil, errs.Wrap(errs.KindUnknown, err, "scan latest candidate row")
		}
		v, err := version.Parse(versionStr)
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, err, "latest candidate version")
		}
		fl, err := version.ParseFlavor(flavorStr)
		if err != nil {
			return nil, errs.Wrap(errs.KindParse, err, "latest candidate flavor")
		}
		out = append(out, InstanceRow{
			Name: name, Version: v, Flavor: fl,
			TroveType: trove.TroveType(troveType), FinalTimestamp: finalTimestamp,
		})
	}
	return out, rows.Err()
}

// latestCacheItem is a btree.Item keyed on (itemId, branchId, flavorId);
// Less ignores versionId/finalTimestamp so ReplaceOrInsert-by-key
// semantics let rebuildLatestBuckets keep only the newest row per bucket.
type latestCacheItem struct {
	itemID, branchID, flavorID, versionID int64
	troveType                             trove.TroveType
	finalTimestamp                        float64
}

func (a latestCacheItem) Less(other btree.Item) bool {
	b := other.(latestCacheItem)
	if a.itemID != b.itemID {
		return a.itemID < b.itemID
	}
	if a.branchID != b.branchID {
		return a.branchID < b.branchID
	}
	return a.flavorID < b.flavorID
}

// rebuildLatestBuckets folds rows into an ordered btree index keyed by
// (itemId, branchId, flavorId), keeping only the row with the greatest
// finalTimestamp per bucket — the in-memory shape behind LATEST_ANY in
// spec.md §4.7, mirroring the teacher's AscendGreaterOrEqual scan-and-
// replace idiom for picking a single winning entry per key.
func rebuildLatestBuckets(rows []latestCacheItem) []latestCacheItem {
	tr := btree.New(32)
	for _, r := range rows {
		if existing := tr.Get(r); existing == nil || r.finalTimestamp > existing.(latestCacheItem).finalTimestamp {
			tr.ReplaceOrInsert(r)
		}
	}
	out := make([]latestCacheItem, 0, tr.Len())
	tr.Ascend(func(i btree.Item) bool {
		out = append(out, i.(latestCacheItem))
		return true
	})
	return out
}

// filterByTier keeps only the items whose troveType is gated into tier,
// per §4.7's LATEST_ANY ⊇ LATEST_PRESENT ⊇ LATEST_NORMAL formula.
func filterByTier(items []latestCacheItem, tier LatestTier) []latestCacheItem {
	if tier == LatestAny {
		return items
	}
	out := make([]latestCacheItem, 0, len(items))
	for _, it := range items {
		switch tier {
		case LatestPresent:
			if it.troveType != trove.TypeRemoved {
				out = append(out, it)
			}
		case LatestNormal:
			if it.troveType == trove.TypeNormal {
				out = append(out, it)
			}
		}
	}
	return out
}

// RebuildLatestCache recomputes LatestCache from scratch from the
// Instances/Nodes tables, per spec.md §4.7: deterministic, idempotent,
// and the only writer to LatestCache besides the per-commit incremental
// update in refreshLatestCache. Every present instance is re-bucketed
// into up to three gated tiers (LATEST_ANY always, LATEST_PRESENT unless
// Removed, LATEST_NORMAL only if Normal).
func (s *Store) RebuildLatestCache(ctx context.Context) error {
	tx, release, err := s.beginCommit(ctx)
	if err != nil {
		return err
	}
	rebuildErr := func() error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+schema.TableLatestCache); err != nil {
			return errs.Wrap(errs.KindConflict, err, "clear latest cache")
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT i.itemId, n.branchId, i.flavorId, i.versionId, i.troveType, n.finalTimestamp
			FROM `+schema.TableInstances+` i
			JOIN `+schema.TableNodes+` n ON n.itemId = i.itemId AND n.versionId = i.versionId
			WHERE i.isPresent = ?`, int(PresenceNormal))
		if err != nil {
			return errs.Wrap(errs.KindUnknown, err, "scan instances for rebuild")
		}

		var items []latestCacheItem
		for rows.Next() {
			var it latestCacheItem
			var troveType int
			if err := rows.Scan(&it.itemID, &it.branchID, &it.flavorID, &it.versionID, &troveType, &it.finalTimestamp); err != nil {
				rows.Close()
				return errs.Wrap(errs.KindUnknown, err, "scan rebuild row")
			}
			it.troveType = trove.TroveType(troveType)
			items = append(items, it)
		}
		rerr := rows.Err()
		rows.Close()
		if rerr != nil {
			return rerr
		}

		for _, tier := range []LatestTier{LatestAny, LatestPresent, LatestNormal} {
			for _, it := range rebuildLatestBuckets(filterByTier(items, tier)) {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO "+schema.TableLatestCache+" (itemId, branchId, flavorId, versionId, latestType) VALUES (?, ?, ?, ?, ?)",
					it.itemID, it.branchID, it.flavorID, it.versionID, int(tier)); err != nil {
					return errs.Wrap(errs.KindConflict, err, "insert rebuilt latest cache row")
				}
			}
		}
		return nil
	}()
	return s.endCommit(ctx, tx, release, rebuildErr)
}
