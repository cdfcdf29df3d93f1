package clone

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CourtJesterG/conary/internal/changeset"
	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/store"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

func mustVersion(t *testing.T, s string) version.Version {
	t.Helper()
	v, err := version.Parse(s)
	require.NoError(t, err)
	return v
}

func mustBranch(t *testing.T, s string) version.Branch {
	t.Helper()
	b, err := version.ParseBranch(s)
	require.NoError(t, err)
	return b
}

type fakeBackend struct {
	troves      map[string]*trove.Trove
	candidates  map[string][]store.InstanceRow
	committed   []*changeset.ChangeSet
	commitError error
}

func troveKey(name string, v version.Version, f version.Flavor) string {
	return name + " " + v.String() + " " + f.String()
}

func (b *fakeBackend) put(t *trove.Trove) {
	if b.troves == nil {
		b.troves = map[string]*trove.Trove{}
	}
	b.troves[troveKey(t.Name, t.Version, t.Flavor)] = t
}

func (b *fakeBackend) GetTrove(ctx context.Context, name string, v version.Version, f version.Flavor, withFiles bool) (*trove.Trove, error) {
	t, ok := b.troves[troveKey(name, v, f)]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "trove %s not found", name)
	}
	return t, nil
}

func (b *fakeBackend) CandidatesByName(ctx context.Context, name string) ([]store.InstanceRow, error) {
	return b.candidates[name], nil
}

func (b *fakeBackend) CommitChangeset(ctx context.Context, cs *changeset.ChangeSet, authRole string) (store.CommitResult, error) {
	if b.commitError != nil {
		return store.CommitResult{}, b.commitError
	}
	b.committed = append(b.committed, cs)
	var result store.CommitResult
	for _, tcs := range cs.Troves {
		result.Committed = append(result.Committed, trove.TroveRef{Name: tcs.Name, Version: tcs.NewVersion, Flavor: tcs.NewFlavor})
	}
	return result, nil
}

type fakeSigner struct{ calls int }

func (f *fakeSigner) Sign(ctx context.Context, fingerprint string, digest []byte) ([]byte, error) {
	f.calls++
	return []byte("sig:" + fingerprint), nil
}

type fakeKeys struct{ fingerprint string }

func (k fakeKeys) SelectSigningKey(branch version.Branch) (string, bool) {
	if k.fingerprint == "" {
		return "", false
	}
	return k.fingerprint, true
}

func TestCloneRewritesVersionOntoTargetBranchWithNoExistingTip(t *testing.T) {
	ctx := context.Background()
	srcVersion := mustVersion(t, "/example.com@ns:devel/1.0-1-1")
	src := trove.New("foo", srcVersion, version.Flavor{})
	require.NoError(t, src.AddFile(trove.ManifestEntry{PathID: trove.PathID{1}, Path: "/bin/foo", FileID: trove.FileID{1}, Version: srcVersion}))

	backend := &fakeBackend{}
	backend.put(src)

	target := mustBranch(t, "example.com@ns:release")
	signer := &fakeSigner{}
	req := Request{TargetBranch: target, Troves: []trove.TroveRef{{Name: "foo", Version: srcVersion, Flavor: version.Flavor{}}}}

	plan, result, err := Clone(ctx, backend, fakeKeys{fingerprint: "KEY1"}, signer, req, false, "")
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Empty(t, plan.Conflicts)
	require.Equal(t, 1, signer.calls)
	require.Len(t, backend.committed, 1)

	tcs := backend.committed[0].Troves[0]
	require.Equal(t, "foo", tcs.Name)
	require.Equal(t, "/example.com@ns:release/1.0-1-1", tcs.NewVersion.String())
	require.NotNil(t, tcs.ClonedFromID)
	require.True(t, tcs.ClonedFromID.Equal(srcVersion))
}

func TestCloneRejectsComponentInput(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	target := mustBranch(t, "example.com@ns:release")
	req := Request{TargetBranch: target, Troves: []trove.TroveRef{{Name: "foo:runtime", Version: mustVersion(t, "/example.com@ns:devel/1.0-1-1")}}}

	_, _, err := Clone(ctx, backend, fakeKeys{fingerprint: "KEY1"}, &fakeSigner{}, req, false, "")
	require.Error(t, err)
}

func TestCloneAllowsSourceComponentWithCloneSources(t *testing.T) {
	ctx := context.Background()
	srcVersion := mustVersion(t, "/example.com@ns:devel/1.0-1-1")
	src := trove.New("foo:source", srcVersion, version.Flavor{})
	backend := &fakeBackend{}
	backend.put(src)

	target := mustBranch(t, "example.com@ns:release")
	req := Request{
		TargetBranch: target,
		Troves:       []trove.TroveRef{{Name: "foo:source", Version: srcVersion}},
		Options:      Options{CloneSources: true},
	}

	_, result, err := Clone(ctx, backend, fakeKeys{fingerprint: "KEY1"}, &fakeSigner{}, req, false, "")
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestCloneBumpsRevisionPastExistingTargetTip(t *testing.T) {
	ctx := context.Background()
	srcVersion := mustVersion(t, "/example.com@ns:devel/1.0-1-1")
	src := trove.New("foo", srcVersion, version.Flavor{})

	backend := &fakeBackend{}
	backend.put(src)
	tipVersion := mustVersion(t, "/example.com@ns:release/1.0-1-1")
	backend.candidates = map[string][]store.InstanceRow{
		"foo": {{Name: "foo", Version: tipVersion, Flavor: version.Flavor{}, TroveType: trove.TypeNormal}},
	}

	target := mustBranch(t, "example.com@ns:release")
	req := Request{TargetBranch: target, Troves: []trove.TroveRef{{Name: "foo", Version: srcVersion}}}

	_, _, err := Clone(ctx, backend, fakeKeys{fingerprint: "KEY1"}, &fakeSigner{}, req, false, "")
	require.NoError(t, err)
	tcs := backend.committed[0].Troves[0]
	require.Equal(t, "/example.com@ns:release/1.0-2-1", tcs.NewVersion.String())
}

func TestCloneFailsNonInteractiveOnLabelConflict(t *testing.T) {
	ctx := context.Background()
	srcVersion := mustVersion(t, "/example.com@ns:devel/1.0-1-1")
	src := trove.New("foo", srcVersion, version.Flavor{})

	backend := &fakeBackend{}
	backend.put(src)
	otherBranchVersion := mustVersion(t, "/example.com@ns:devel//example.com@ns:release/2.0-1-1")
	backend.candidates = map[string][]store.InstanceRow{
		"foo": {{Name: "foo", Version: otherBranchVersion, Flavor: version.Flavor{}, TroveType: trove.TypeNormal}},
	}

	// target branch shares the trailing label example.com@ns:release with
	// the existing instance's branch, but is not the same branch.
	target := mustBranch(t, "example.com@ns:release")
	req := Request{TargetBranch: target, Troves: []trove.TroveRef{{Name: "foo", Version: srcVersion}}}

	_, _, err := Clone(ctx, backend, fakeKeys{fingerprint: "KEY1"}, &fakeSigner{}, req, false, "")
	require.Error(t, err)

	// info=true still reports the conflict without failing or committing.
	req.Options.InfoOnly = true
	plan, result, err := Clone(ctx, backend, fakeKeys{fingerprint: "KEY1"}, &fakeSigner{}, req, false, "")
	require.NoError(t, err)
	require.Nil(t, result)
	require.Len(t, plan.Conflicts, 1)
}

func TestCloneInteractiveProceedsPastLabelConflict(t *testing.T) {
	ctx := context.Background()
	srcVersion := mustVersion(t, "/example.com@ns:devel/1.0-1-1")
	src := trove.New("foo", srcVersion, version.Flavor{})

	backend := &fakeBackend{}
	backend.put(src)
	otherBranchVersion := mustVersion(t, "/example.com@ns:devel//example.com@ns:release/2.0-1-1")
	backend.candidates = map[string][]store.InstanceRow{
		"foo": {{Name: "foo", Version: otherBranchVersion, Flavor: version.Flavor{}, TroveType: trove.TypeNormal}},
	}

	target := mustBranch(t, "example.com@ns:release")
	req := Request{TargetBranch: target, Troves: []trove.TroveRef{{Name: "foo", Version: srcVersion}}}

	_, result, err := Clone(ctx, backend, fakeKeys{fingerprint: "KEY1"}, &fakeSigner{}, req, true, "")
	require.NoError(t, err)
	require.NotNil(t, result)
}

func TestCloneRemapsBuildRequirementsAmongClonedSet(t *testing.T) {
	ctx := context.Background()
	libVersion := mustVersion(t, "/example.com@ns:devel/1.0-1-1")
	appVersion := mustVersion(t, "/example.com@ns:devel/2.0-1-1")

	lib := trove.New("lib", libVersion, version.Flavor{})
	app := trove.New("app", appVersion, version.Flavor{})
	app.BuildRequires = []trove.BuildRequirement{{Name: "lib", Version: libVersion, Flavor: version.Flavor{}}}

	backend := &fakeBackend{}
	backend.put(lib)
	backend.put(app)

	target := mustBranch(t, "example.com@ns:release")
	req := Request{
		TargetBranch: target,
		Troves: []trove.TroveRef{
			{Name: "lib", Version: libVersion},
			{Name: "app", Version: appVersion},
		},
		Options: Options{UpdateBuildInfo: true},
	}

	_, _, err := Clone(ctx, backend, fakeKeys{fingerprint: "KEY1"}, &fakeSigner{}, req, false, "")
	require.NoError(t, err)

	var appTCS *changeset.TroveChangeSet
	for i := range backend.committed[0].Troves {
		if backend.committed[0].Troves[i].Name == "app" {
			appTCS = &backend.committed[0].Troves[i]
		}
	}
	require.NotNil(t, appTCS)
	require.Len(t, appTCS.NewBuildRequires, 1)
	require.Equal(t, "/example.com@ns:release/1.0-1-1", appTCS.NewBuildRequires[0].Version.String())
}

func TestCloneFailsWithoutConfiguredSigningKey(t *testing.T) {
	ctx := context.Background()
	srcVersion := mustVersion(t, "/example.com@ns:devel/1.0-1-1")
	src := trove.New("foo", srcVersion, version.Flavor{})
	backend := &fakeBackend{}
	backend.put(src)

	target := mustBranch(t, "example.com@ns:release")
	req := Request{TargetBranch: target, Troves: []trove.TroveRef{{Name: "foo", Version: srcVersion}}}

	_, _, err := Clone(ctx, backend, fakeKeys{}, &fakeSigner{}, req, false, "")
	require.Error(t, err)
}
