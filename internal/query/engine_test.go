package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CourtJesterG/conary/internal/store"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

type fakeCandidates struct {
	rows       map[string][]store.InstanceRow
	admins     map[string]bool
	visibility map[string]bool // "role\x00name\x00version\x00flavor" -> canWrite
}

func (f *fakeCandidates) CandidatesByName(ctx context.Context, name string) ([]store.InstanceRow, error) {
	return f.rows[name], nil
}

func (f *fakeCandidates) LatestCandidatesByName(ctx context.Context, name string, tier store.LatestTier) ([]store.InstanceRow, error) {
	return f.rows[name], nil
}

func (f *fakeCandidates) IsAdmin(ctx context.Context, role string) (bool, error) {
	return f.admins[role], nil
}

func (f *fakeCandidates) Visibility(ctx context.Context, role, name, v, fl string) (canWrite, canRemove, ok bool, err error) {
	if f.visibility == nil {
		return false, false, false, nil
	}
	key := role + "\x00" + name + "\x00" + v + "\x00" + fl
	canWrite, ok = f.visibility[key]
	return canWrite, canWrite, ok, nil
}

func mustV(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	require.NoError(t, err)
	return v
}

func mustLabel(t *testing.T, s string) version.Label {
	t.Helper()
	l, err := version.ParseLabel(s)
	require.NoError(t, err)
	return l
}

func TestFindTrovesLatestVersionFilter(t *testing.T) {
	v1 := mustV(t, "/example.com@ns:1/1.0-1-1")
	v2 := mustV(t, "/example.com@ns:1/2.0-1-1")
	fc := &fakeCandidates{rows: map[string][]store.InstanceRow{
		"foo:runtime": {
			{Name: "foo:runtime", Version: v1, Flavor: version.Flavor{}, TroveType: trove.TypeNormal},
			{Name: "foo:runtime", Version: v2, Flavor: version.Flavor{}, TroveType: trove.TypeNormal},
		},
	}}
	e := New(fc, nil)

	label := mustLabel(t, "example.com@ns:1")
	results, err := e.FindTroves(context.Background(), []version.Label{label}, []Spec{{Name: "foo:runtime"}}, version.Flavor{}, DefaultOptions(), "")
	require.NoError(t, err)

	matches := results[Spec{Name: "foo:runtime"}]
	require.Len(t, matches, 1)
	require.True(t, matches[0].Version.Equal(v2))
}

func TestFindTrovesAllowMissingFalseFailsOnNoMatch(t *testing.T) {
	fc := &fakeCandidates{rows: map[string][]store.InstanceRow{}}
	e := New(fc, nil)
	label := mustLabel(t, "example.com@ns:1")

	opts := DefaultOptions()
	opts.AllowMissing = false
	_, err := e.FindTroves(context.Background(), []version.Label{label}, []Spec{{Name: "missing:runtime"}}, version.Flavor{}, opts, "")
	require.Error(t, err)
}

func TestFindTrovesAllowMissingTrueReturnsEmpty(t *testing.T) {
	fc := &fakeCandidates{rows: map[string][]store.InstanceRow{}}
	e := New(fc, nil)
	label := mustLabel(t, "example.com@ns:1")

	opts := DefaultOptions()
	opts.AllowMissing = true
	spec := Spec{Name: "missing:runtime"}
	results, err := e.FindTroves(context.Background(), []version.Label{label}, []Spec{spec}, version.Flavor{}, opts, "")
	require.NoError(t, err)
	require.Empty(t, results[spec])
}

func TestFindTrovesExactFlavorFilter(t *testing.T) {
	v1 := mustV(t, "/example.com@ns:1/1.0-1-1")
	x86, err := version.ParseFlavor("is: x86")
	require.NoError(t, err)
	x8664, err := version.ParseFlavor("is: x86_64")
	require.NoError(t, err)

	fc := &fakeCandidates{rows: map[string][]store.InstanceRow{
		"foo:runtime": {
			{Name: "foo:runtime", Version: v1, Flavor: x86, TroveType: trove.TypeNormal},
			{Name: "foo:runtime", Version: v1, Flavor: x8664, TroveType: trove.TypeNormal},
		},
	}}
	e := New(fc, nil)
	label := mustLabel(t, "example.com@ns:1")

	opts := DefaultOptions()
	opts.FlavorFilter = FlavorExact
	spec := Spec{Name: "foo:runtime", Flavor: &x8664}
	results, err := e.FindTroves(context.Background(), []version.Label{label}, []Spec{spec}, version.Flavor{}, opts, "")
	require.NoError(t, err)
	require.Len(t, results[spec], 1)
	require.True(t, results[spec][0].Flavor.Equal(x8664))
}

func TestFindTrovesFiltersByRoleVisibility(t *testing.T) {
	v1 := mustV(t, "/example.com@ns:1/1.0-1-1")
	fc := &fakeCandidates{
		rows: map[string][]store.InstanceRow{
			"foo:runtime": {{Name: "foo:runtime", Version: v1, Flavor: version.Flavor{}, TroveType: trove.TypeNormal}},
		},
		admins: map[string]bool{},
		visibility: map[string]bool{
			"packagers\x00foo:runtime\x00" + v1.String() + "\x00": true,
		},
	}
	e := New(fc, nil)
	label := mustLabel(t, "example.com@ns:1")
	spec := Spec{Name: "foo:runtime"}

	opts := DefaultOptions()
	results, err := e.FindTroves(context.Background(), []version.Label{label}, []Spec{spec}, version.Flavor{}, opts, "packagers")
	require.NoError(t, err)
	require.Len(t, results[spec], 1)
}

func TestFindTrovesRoleWithoutGrantSeesNothing(t *testing.T) {
	v1 := mustV(t, "/example.com@ns:1/1.0-1-1")
	fc := &fakeCandidates{
		rows: map[string][]store.InstanceRow{
			"foo:runtime": {{Name: "foo:runtime", Version: v1, Flavor: version.Flavor{}, TroveType: trove.TypeNormal}},
		},
		admins: map[string]bool{},
	}
	e := New(fc, nil)
	label := mustLabel(t, "example.com@ns:1")
	spec := Spec{Name: "foo:runtime"}

	opts := DefaultOptions()
	opts.AllowMissing = true
	results, err := e.FindTroves(context.Background(), []version.Label{label}, []Spec{spec}, version.Flavor{}, opts, "outsiders")
	require.NoError(t, err)
	require.Empty(t, results[spec])
}

func TestFindTrovesExcludesRemovedByDefault(t *testing.T) {
	v1 := mustV(t, "/example.com@ns:1/1.0-1-1")
	fc := &fakeCandidates{rows: map[string][]store.InstanceRow{
		"foo:runtime": {
			{Name: "foo:runtime", Version: v1, Flavor: version.Flavor{}, TroveType: trove.TypeRemoved},
		},
	}}
	e := New(fc, nil)
	label := mustLabel(t, "example.com@ns:1")
	spec := Spec{Name: "foo:runtime"}

	opts := DefaultOptions()
	opts.AllowMissing = true
	results, err := e.FindTroves(context.Background(), []version.Label{label}, []Spec{spec}, version.Flavor{}, opts, "")
	require.NoError(t, err)
	require.Empty(t, results[spec])
}
