package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CourtJesterG/conary/internal/changeset"
	"github.com/CourtJesterG/conary/internal/depset"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	require.NoError(t, err)
	return v
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:", t.TempDir(), zap.NewNop().Sugar())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCommitAndGetTroveRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v1 := mustVersion(t, "/example.com@ns:1/1.0-1-1")
	tr := trove.New("foo:runtime", v1, version.Flavor{})
	require.NoError(t, tr.AddFile(trove.ManifestEntry{
		PathID: trove.PathID{1}, Path: "/bin/foo", FileID: trove.FileID{1}, Version: v1,
	}))
	tr.Requires = depset.NewSet(depset.NewDependency(depset.ClassSoname, "libc.so.6"))

	cs := changeset.New()
	cs.Troves = append(cs.Troves, changeset.Diff(nil, tr, nil))

	result, err := s.CommitChangeset(ctx, cs, "")
	require.NoError(t, err)
	require.Len(t, result.Committed, 1)

	got, err := s.GetTrove(ctx, "foo:runtime", v1, version.Flavor{}, true)
	require.NoError(t, err)
	require.Equal(t, tr.Name, got.Name)
	require.Len(t, got.Manifest, 1)
	require.True(t, got.Requires.Equal(tr.Requires))
}

func TestCommitChangesetMaterializesContentArchive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v1 := mustVersion(t, "/example.com@ns:1/1.0-1-1")
	stream := changeset.FileStream{ContentsInfo: []byte("#!/bin/sh\necho hi\n")}
	fileID := stream.ID()

	tr := trove.New("foo:runtime", v1, version.Flavor{})
	require.NoError(t, tr.AddFile(trove.ManifestEntry{
		PathID: trove.PathID{1}, Path: "/bin/foo", FileID: fileID, Version: v1,
	}))

	cs := changeset.New()
	cs.Troves = append(cs.Troves, changeset.Diff(nil, tr, nil))
	require.NoError(t, cs.PutContent(changeset.ContentKey{FileID: fileID}, stream.ContentsInfo))

	_, err := s.CommitChangeset(ctx, cs, "")
	require.NoError(t, err)

	got, err := s.GetFileContents(ctx, fileID)
	require.NoError(t, err)
	require.Equal(t, stream.ContentsInfo, got)
}

func TestGetTroveMissingReturnsNotFound(t *testing.T) {
	s := openTestStore(t)
	v1 := mustVersion(t, "/example.com@ns:1/1.0-1-1")
	_, err := s.GetTrove(context.Background(), "nope", v1, version.Flavor{}, false)
	require.Error(t, err)
}

func TestMarkRemovedIsSoftAndStillGettable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v1 := mustVersion(t, "/example.com@ns:1/1.0-1-1")
	tr := trove.New("foo:runtime", v1, version.Flavor{})

	cs := changeset.New()
	cs.Troves = append(cs.Troves, changeset.Diff(nil, tr, nil))
	_, err := s.CommitChangeset(ctx, cs, "")
	require.NoError(t, err)

	require.NoError(t, s.MarkRemoved(ctx, "foo:runtime", v1, version.Flavor{}, ""))

	got, err := s.GetTrove(ctx, "foo:runtime", v1, version.Flavor{}, false)
	require.NoError(t, err)
	require.Equal(t, trove.TypeRemoved, got.Type)
}

func TestHideThenUnhideRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v1 := mustVersion(t, "/example.com@ns:1/1.0-1-1")
	tr := trove.New("foo:runtime", v1, version.Flavor{})
	cs := changeset.New()
	cs.Troves = append(cs.Troves, changeset.Diff(nil, tr, nil))
	_, err := s.CommitChangeset(ctx, cs, "")
	require.NoError(t, err)

	require.NoError(t, s.HideTrove(ctx, "foo:runtime", v1, version.Flavor{}, ""))

	var seen []trove.TroveRef
	require.NoError(t, s.IterTroves(ctx, TroveFilter{Name: "foo:runtime"}, func(ref trove.TroveRef) error {
		seen = append(seen, ref)
		return nil
	}))
	require.Empty(t, seen)

	require.NoError(t, s.UnhideTrove(ctx, "foo:runtime", v1, version.Flavor{}, ""))
	seen = nil
	require.NoError(t, s.IterTroves(ctx, TroveFilter{Name: "foo:runtime"}, func(ref trove.TroveRef) error {
		seen = append(seen, ref)
		return nil
	}))
	require.Len(t, seen, 1)
}

func TestFileContentsRoundTripSmallAndLarge(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	small := []byte("hello world")
	require.NoError(t, s.PutFileContents(ctx, trove.FileID{1}, small))
	got, err := s.GetFileContents(ctx, trove.FileID{1})
	require.NoError(t, err)
	require.Equal(t, small, got)

	large := make([]byte, 4096)
	for i := range large {
		large[i] = byte(i % 251)
	}
	require.NoError(t, s.PutFileContents(ctx, trove.FileID{2}, large))
	got, err = s.GetFileContents(ctx, trove.FileID{2})
	require.NoError(t, err)
	require.Equal(t, large, got)

	require.True(t, s.HasFileContents(trove.FileID{1}))
	require.False(t, s.HasFileContents(trove.FileID{9}))
}
