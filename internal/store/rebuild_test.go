package store

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CourtJesterG/conary/internal/changeset"
	"github.com/CourtJesterG/conary/internal/schema"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

// dumpLatestCache reads every LatestCache row back as a sorted,
// comparable snapshot, independent of row insertion order.
func dumpLatestCache(t *testing.T, s *Store) []string {
	t.Helper()
	rows, err := s.db.QueryContext(context.Background(), `
		SELECT itemId, branchId, flavorId, versionId, latestType
		FROM `+schema.TableLatestCache+` ORDER BY itemId, branchId, flavorId, latestType`)
	require.NoError(t, err)
	defer rows.Close()

	var out []string
	for rows.Next() {
		var itemID, branchID, flavorID, versionID, latestType int64
		require.NoError(t, rows.Scan(&itemID, &branchID, &flavorID, &versionID, &latestType))
		out = append(out, fmt.Sprintf("%d/%d/%d/%d/%d", itemID, branchID, flavorID, versionID, latestType))
	}
	require.NoError(t, rows.Err())
	sort.Strings(out)
	return out
}

// TestRebuildLatestCacheMatchesIncrementalMaintenance is the §8 rebuild-
// equivalence property for LatestCache: dropping and rebuilding it from
// Instances/Nodes yields the same contents the per-commit incremental
// update (refreshLatestCache) already produced.
func TestRebuildLatestCacheMatchesIncrementalMaintenance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	versions := []string{
		"/example.com@ns:1/1.0-1-1",
		"/example.com@ns:1/1.0-1-2",
		"/example.com@ns:1/1.1-1-1",
	}
	for _, vs := range versions {
		v := mustVersion(t, vs)
		tr := trove.New("foo:runtime", v, version.Flavor{})
		cs := changeset.New()
		cs.Troves = append(cs.Troves, changeset.Diff(nil, tr, nil))
		_, err := s.CommitChangeset(ctx, cs, "")
		require.NoError(t, err)
	}

	barV := mustVersion(t, "/example.com@ns:1/1.0-1-1")
	bar := trove.New("bar:runtime", barV, version.Flavor{})
	cs := changeset.New()
	cs.Troves = append(cs.Troves, changeset.Diff(nil, bar, nil))
	_, err := s.CommitChangeset(ctx, cs, "")
	require.NoError(t, err)

	incremental := dumpLatestCache(t, s)
	require.NotEmpty(t, incremental)

	require.NoError(t, s.RebuildLatestCache(ctx))
	rebuilt := dumpLatestCache(t, s)

	require.Equal(t, incremental, rebuilt)
}
