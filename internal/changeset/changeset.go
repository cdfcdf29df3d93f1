package changeset

import (
	"context"
	"sort"

	"github.com/CourtJesterG/conary/internal/depset"
	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/external"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

// fileEdit is one entry of a TroveChangeSet's manifest diff: "+" a newly
// added path, "~" a changed path, or "-" a removed path.
type fileEditKind byte

const (
	editAdd fileEditKind = '+'
	editChange fileEditKind = '~'
	editRemove fileEditKind = '-'
)

type fileEdit struct {
	Kind    fileEditKind
	PathID  trove.PathID
	Path    string // new path, or "" if unchanged / not applicable
	Version *version.Version
	Change  *FileChange
}

// depEdit is an added or removed dependency within a single class.
type depEdit struct {
	Added   bool
	Class   depset.Class
	Dep     depset.Dependency
}

// TroveChangeSet is the diff (or, when OldVersion is nil, the absolute
// snapshot) of a single named trove between two versions.
type TroveChangeSet struct {
	Name       string
	OldVersion *version.Version
	NewVersion version.Version
	OldFlavor  *version.Flavor
	NewFlavor  version.Flavor

	FileEdits  []fileEdit
	SubTroveEdits []subTroveEdit
	ProvidesEdits []depEdit
	RequiresEdits []depEdit
	RedirectEdits []subTroveEdit

	// ClonedFromID carries the source version a clone was reissued from
	// (nil for an ordinary build). It rides alongside the diff rather
	// than inside FileEdits/SubTroveEdits because it is a property of
	// the trove's identity, not of its content.
	ClonedFromID *version.Version

	// The following carry the new side's whole value rather than an
	// edit list, the same way NewVersion/NewFlavor do: these fields
	// don't have a meaningful per-entry diff representation worth the
	// complexity (a build-requirement list is replaced wholesale on
	// every build, not incrementally edited).
	NewType          trove.TroveType
	NewBuildRequires []trove.BuildRequirement
	NewMetadata      []trove.MetadataItem
	NewDigestVersion int

	// Absolute is true when this changeset carries the trove's full
	// contents rather than a diff against OldVersion.
	Absolute bool
}

type subTroveEdit struct {
	Added bool
	Ref   trove.TroveRef
}

// ContentKey addresses one blob in a changeset's content archive.
type ContentKey struct {
	PathID trove.PathID
	FileID trove.FileID
}

// ChangeSet is the full unit of wire transfer and commit: one or more
// TroveChangeSets plus the content archive their new/changed files need.
type ChangeSet struct {
	Troves  []TroveChangeSet
	Archive map[ContentKey][]byte
	// Signatures is an absolute-scope signature over the whole manifest,
	// attached by Sign.
	Signatures []trove.Signature
}

// New returns an empty ChangeSet ready to accumulate troves via Diff.
func New() *ChangeSet {
	return &ChangeSet{Archive: map[ContentKey][]byte{}}
}

// Diff computes the TroveChangeSet turning oldTrove into newTrove. If
// oldTrove is nil, the result is absolute: a full snapshot of newTrove.
// fileStreams supplies the FileStream for any fileId referenced by
// either trove, keyed by FileID; when a needed stream is missing (or
// fileStreams is nil), the edit's FileChange carries only the old and
// new fileIds, with no stream payload.
func Diff(oldTrove, newTrove *trove.Trove, fileStreams map[trove.FileID]FileStream) TroveChangeSet {
	cs := TroveChangeSet{
		Name:             newTrove.Name,
		NewVersion:       newTrove.Version,
		NewFlavor:        newTrove.Flavor,
		ClonedFromID:     newTrove.ClonedFromID,
		NewType:          newTrove.Type,
		NewBuildRequires: append([]trove.BuildRequirement(nil), newTrove.BuildRequires...),
		NewMetadata:      append([]trove.MetadataItem(nil), newTrove.Metadata...),
		NewDigestVersion: newTrove.DigestVersion,
	}

	var oldManifest map[trove.PathID]trove.ManifestEntry
	if oldTrove != nil {
		ov := oldTrove.Version
		of := oldTrove.Flavor
		cs.OldVersion = &ov
		cs.OldFlavor = &of
		oldManifest = oldTrove.Manifest
	} else {
		cs.Absolute = true
		oldManifest = map[trove.PathID]trove.ManifestEntry{}
	}

	diffManifests(&cs, oldManifest, newTrove.Manifest, fileStreams)
	diffSubTroves(&cs, oldTroveRefs(oldTrove), newTrove.SubTroves, false)
	if newTrove.Type == trove.TypeRedirect || (oldTrove != nil && oldTrove.Type == trove.TypeRedirect) {
		var oldRedirects []trove.TroveRef
		if oldTrove != nil {
			oldRedirects = oldTrove.Redirects
		}
		diffSubTroves(&cs, oldRedirects, newTrove.Redirects, true)
	}
	diffDeps(&cs.ProvidesEdits, oldDepSet(oldTrove, func(t *trove.Trove) depset.Set { return t.Provides }), newTrove.Provides)
	diffDeps(&cs.RequiresEdits, oldDepSet(oldTrove, func(t *trove.Trove) depset.Set { return t.Requires }), newTrove.Requires)
	return cs
}

func oldTroveRefs(t *trove.Trove) []trove.TroveRef {
	if t == nil {
		return nil
	}
	return t.SubTroves
}

func oldDepSet(t *trove.Trove, pick func(*trove.Trove) depset.Set) depset.Set {
	if t == nil {
		return depset.NewSet()
	}
	return pick(t)
}

// diffManifests emits +/~/- fileEdits. Per §4.4 tie-break policy: a path
// rename under the same pathId is a single "~" edit carrying the new
// path; identical-fileId entries on both sides are omitted entirely.
func diffManifests(cs *TroveChangeSet, oldM, newM map[trove.PathID]trove.ManifestEntry, streams map[trove.FileID]FileStream) {
	var pids []trove.PathID
	seen := map[trove.PathID]bool{}
	for pid := range oldM {
		pids = append(pids, pid)
		seen[pid] = true
	}
	for pid := range newM {
		if !seen[pid] {
			pids = append(pids, pid)
		}
	}
	sort.Slice(pids, func(i, j int) bool { return pathIDLess(pids[i], pids[j]) })

	for _, pid := range pids {
		oldE, inOld := oldM[pid]
		newE, inNew := newM[pid]
		switch {
		case inNew && !inOld:
			v := newE.Version
			fc := &FileChange{NewFileID: newE.FileID}
			if s, ok := streams[newE.FileID]; ok {
				c := diffFileStream(nil, newE.FileID, FileStream{}, s)
				fc = &c
			}
			cs.FileEdits = append(cs.FileEdits, fileEdit{Kind: editAdd, PathID: pid, Path: newE.Path, Version: &v, Change: fc})
		case inOld && !inNew:
			cs.FileEdits = append(cs.FileEdits, fileEdit{Kind: editRemove, PathID: pid})
		default:
			if oldE.FileID == newE.FileID && oldE.Path == newE.Path {
				continue // identical content and path: omitted from the diff
			}
			edit := fileEdit{Kind: editChange, PathID: pid}
			if oldE.Path != newE.Path {
				edit.Path = newE.Path
			}
			if oldE.FileID != newE.FileID {
				v := newE.Version
				edit.Version = &v
				old := oldE.FileID
				edit.Change = &FileChange{OldFileID: &old, NewFileID: newE.FileID}
				if oldS, ok := streams[oldE.FileID]; ok {
					if newS, ok2 := streams[newE.FileID]; ok2 {
						c := diffFileStream(&old, newE.FileID, oldS, newS)
						edit.Change = &c
					}
				}
			}
			cs.FileEdits = append(cs.FileEdits, edit)
		}
	}
}

func pathIDLess(a, b trove.PathID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func diffSubTroves(cs *TroveChangeSet, oldRefs, newRefs []trove.TroveRef, redirect bool) {
	key := func(r trove.TroveRef) string { return r.Name + " " + r.Version.String() + " " + r.Flavor.String() }
	oldSet := map[string]trove.TroveRef{}
	for _, r := range oldRefs {
		oldSet[key(r)] = r
	}
	newSet := map[string]trove.TroveRef{}
	for _, r := range newRefs {
		newSet[key(r)] = r
	}
	var removed, added []subTroveEdit
	for k, r := range oldSet {
		if _, ok := newSet[k]; !ok {
			removed = append(removed, subTroveEdit{Added: false, Ref: r})
		}
	}
	for k, r := range newSet {
		if _, ok := oldSet[k]; !ok {
			added = append(added, subTroveEdit{Added: true, Ref: r})
		}
	}
	sort.Slice(removed, func(i, j int) bool { return key(removed[i].Ref) < key(removed[j].Ref) })
	sort.Slice(added, func(i, j int) bool { return key(added[i].Ref) < key(added[j].Ref) })
	edits := append(removed, added...)
	if redirect {
		cs.RedirectEdits = edits
	} else {
		cs.SubTroveEdits = edits
	}
}

func diffDeps(out *[]depEdit, oldSet, newSet depset.Set) {
	for _, d := range depset.Difference(oldSet, newSet).Deps() {
		*out = append(*out, depEdit{Added: false, Class: d.Class, Dep: d})
	}
	for _, d := range depset.Difference(newSet, oldSet).Deps() {
		*out = append(*out, depEdit{Added: true, Class: d.Class, Dep: d})
	}
}

// Apply validates that oldTrove matches cs's declared basis and returns
// the patched trove. Returns a PatchError-kind error (errs.KindIntegrity)
// if the basis does not match or a diff does not apply cleanly.
func Apply(oldTrove *trove.Trove, cs TroveChangeSet) (*trove.Trove, error) {
	if cs.Absolute {
		if oldTrove != nil {
			return nil, errs.New(errs.KindIntegrity, "absolute changeset applied against an existing trove")
		}
	} else {
		if oldTrove == nil {
			return nil, errs.New(errs.KindIntegrity, "relative changeset applied with no basis trove")
		}
		if cs.OldVersion == nil || !oldTrove.Version.Equal(*cs.OldVersion) {
			return nil, errs.New(errs.KindIntegrity, "basis trove version does not match changeset oldVersion")
		}
		if cs.OldFlavor == nil || !oldTrove.Flavor.Equal(*cs.OldFlavor) {
			return nil, errs.New(errs.KindIntegrity, "basis trove flavor does not match changeset oldFlavor")
		}
	}

	var nt *trove.Trove
	if oldTrove != nil {
		nt = cloneTrove(oldTrove)
	} else {
		nt = trove.New(cs.Name, cs.NewVersion, cs.NewFlavor)
	}
	nt.Version = cs.NewVersion
	nt.Flavor = cs.NewFlavor
	nt.ClonedFromID = cs.ClonedFromID
	nt.Type = cs.NewType
	nt.BuildRequires = append([]trove.BuildRequirement(nil), cs.NewBuildRequires...)
	nt.Metadata = append([]trove.MetadataItem(nil), cs.NewMetadata...)
	nt.DigestVersion = cs.NewDigestVersion

	for _, e := range cs.FileEdits {
		switch e.Kind {
		case editRemove:
			nt.RemoveFile(e.PathID)
		case editAdd, editChange:
			existing, had := nt.Manifest[e.PathID]
			if e.Kind == editChange && !had {
				return nil, errs.Newf(errs.KindIntegrity, "changed-file edit for unknown pathId on %s", cs.Name)
			}
			entry := existing
			if e.Path != "" {
				entry.Path = e.Path
			}
			entry.PathID = e.PathID
			if e.Version != nil {
				entry.Version = *e.Version
			}
			if e.Change != nil {
				entry.FileID = e.Change.NewFileID
			}
			if err := nt.AddFile(entry); err != nil {
				return nil, err
			}
		}
	}

	applySubTroveEdits(&nt.SubTroves, cs.SubTroveEdits)
	applySubTroveEdits(&nt.Redirects, cs.RedirectEdits)

	applyDepEdits(&nt.Provides, cs.ProvidesEdits)
	applyDepEdits(&nt.Requires, cs.RequiresEdits)

	return nt, nil
}

func cloneTrove(t *trove.Trove) *trove.Trove {
	nt := trove.New(t.Name, t.Version, t.Flavor)
	for pid, e := range t.Manifest {
		nt.Manifest[pid] = e
	}
	nt.SubTroves = append([]trove.TroveRef(nil), t.SubTroves...)
	nt.Redirects = append([]trove.TroveRef(nil), t.Redirects...)
	nt.Provides = t.Provides
	nt.Requires = t.Requires
	nt.BuildRequires = append([]trove.BuildRequirement(nil), t.BuildRequires...)
	nt.Metadata = append([]trove.MetadataItem(nil), t.Metadata...)
	nt.Type = t.Type
	nt.DigestVersion = t.DigestVersion
	return nt
}

func applySubTroveEdits(refs *[]trove.TroveRef, edits []subTroveEdit) {
	key := func(r trove.TroveRef) string { return r.Name + " " + r.Version.String() + " " + r.Flavor.String() }
	set := map[string]trove.TroveRef{}
	for _, r := range *refs {
		set[key(r)] = r
	}
	for _, e := range edits {
		if e.Added {
			set[key(e.Ref)] = e.Ref
		} else {
			delete(set, key(e.Ref))
		}
	}
	out := make([]trove.TroveRef, 0, len(set))
	for _, r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	*refs = out
}

func applyDepEdits(set *depset.Set, edits []depEdit) {
	cur := *set
	for _, e := range edits {
		one := depset.NewSet(e.Dep)
		if e.Added {
			cur = depset.Union(cur, one)
		} else {
			cur = depset.Difference(cur, one)
		}
	}
	*set = cur
}

// Invert produces the reverse relative changeset, used for rollback:
// applying the result to the new trove reproduces the old one.
func Invert(cs TroveChangeSet, oldTrove *trove.Trove) (TroveChangeSet, error) {
	if cs.Absolute || oldTrove == nil {
		return TroveChangeSet{}, errs.New(errs.KindIntegrity, "cannot invert an absolute changeset")
	}
	newTrove, err := Apply(oldTrove, cs)
	if err != nil {
		return TroveChangeSet{}, err
	}
	return Diff(newTrove, oldTrove, nil), nil
}

// Merge combines two ChangeSets that share no overlapping new-trove
// destination (name, newVersion, newFlavor); fails with a conflict error
// on overlap.
func Merge(a, b *ChangeSet) (*ChangeSet, error) {
	dest := func(cs TroveChangeSet) string { return cs.Name + " " + cs.NewVersion.String() + " " + cs.NewFlavor.String() }
	seen := map[string]bool{}
	out := New()
	for _, cs := range a.Troves {
		seen[dest(cs)] = true
		out.Troves = append(out.Troves, cs)
	}
	for _, cs := range b.Troves {
		d := dest(cs)
		if seen[d] {
			return nil, errs.Newf(errs.KindConflict, "merge: overlapping destination %s", d)
		}
		seen[d] = true
		out.Troves = append(out.Troves, cs)
	}
	for k, v := range a.Archive {
		out.Archive[k] = v
	}
	for k, v := range b.Archive {
		out.Archive[k] = v
	}
	return out, nil
}

// Sign attaches an absolute-scope signature over the whole manifest: the
// concatenation of every TroveChangeSet's canonical identity in a fixed
// order, so tampering with any entry invalidates the signature.
func Sign(ctx context.Context, cs *ChangeSet, signer external.Signer, fingerprint string) error {
	digest := cs.manifestDigest()
	sig, err := signer.Sign(ctx, fingerprint, digest)
	if err != nil {
		return err
	}
	cs.Signatures = append(cs.Signatures, trove.Signature{KeyFingerprint: fingerprint, SigData: sig})
	return nil
}

func (cs *ChangeSet) manifestDigest() []byte {
	var all []byte
	troves := append([]TroveChangeSet(nil), cs.Troves...)
	sort.Slice(troves, func(i, j int) bool {
		return troves[i].Name+troves[i].NewVersion.String() < troves[j].Name+troves[j].NewVersion.String()
	})
	for _, t := range troves {
		all = append(all, []byte(t.Name)...)
		all = append(all, []byte(t.NewVersion.String())...)
		all = append(all, []byte(t.NewFlavor.String())...)
	}
	return all
}
