package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CourtJesterG/conary/internal/changeset"
	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

// denyAll is an Authorizer that never grants anything, for exercising
// the §4.8 deny path through CommitChangeset/MarkRemoved/HideTrove
// without pulling in internal/access (which itself depends on store).
type denyAll struct{}

func (denyAll) Authorize(ctx context.Context, role string, instanceID int64, writeRequired, removeRequired bool) error {
	return errs.Newf(errs.KindPermissionDenied, "role %q denied", role)
}

func (denyAll) AuthorizeCommit(ctx context.Context, role, name, label string) error {
	return errs.Newf(errs.KindPermissionDenied, "role %q denied", role)
}

func TestCommitChangesetDeniesWithoutWriteGrant(t *testing.T) {
	s := openTestStore(t)
	s.SetAuthorizer(denyAll{})
	ctx := context.Background()

	v1 := mustVersion(t, "/example.com@ns:1/1.0-1-1")
	tr := trove.New("foo:runtime", v1, version.Flavor{})
	cs := changeset.New()
	cs.Troves = append(cs.Troves, changeset.Diff(nil, tr, nil))

	_, err := s.CommitChangeset(ctx, cs, "outsiders")
	require.Error(t, err)
	require.Equal(t, errs.KindPermissionDenied, errs.KindOf(err))

	_, err = s.GetTrove(ctx, "foo:runtime", v1, version.Flavor{}, false)
	require.Error(t, err)
}

func TestMarkRemovedDeniesWithoutRemoveGrant(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v1 := mustVersion(t, "/example.com@ns:1/1.0-1-1")
	tr := trove.New("foo:runtime", v1, version.Flavor{})
	cs := changeset.New()
	cs.Troves = append(cs.Troves, changeset.Diff(nil, tr, nil))
	_, err := s.CommitChangeset(ctx, cs, "")
	require.NoError(t, err)

	s.SetAuthorizer(denyAll{})
	err = s.MarkRemoved(ctx, "foo:runtime", v1, version.Flavor{}, "outsiders")
	require.Error(t, err)
	require.Equal(t, errs.KindPermissionDenied, errs.KindOf(err))
}
