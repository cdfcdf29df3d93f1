package clone

import (
	"sort"

	"github.com/CourtJesterG/conary/internal/changeset"
	"github.com/CourtJesterG/conary/internal/depset"
	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

// FlavorChange reports whether a trove's flavor changed between the two
// versions being diffed.
type FlavorChange struct {
	Old, New version.Flavor
	Changed  bool
}

// SubTroveChange is a sub-trove reference added or removed.
type SubTroveChange struct {
	Added bool
	Ref   trove.TroveRef
}

// DependencyChange is a provided or required dependency added or
// removed, tagged with which set it belongs to.
type DependencyChange struct {
	Added    bool
	Requires bool // false = Provides, true = Requires
	Class    depset.Class
	Dep      depset.Dependency
}

// BuildRequirementChange is a build-time reference added, removed, or
// pointed at a different version/flavor of the same-named trove.
type BuildRequirementChange struct {
	Name       string
	Added      bool
	Removed    bool
	OldVersion *version.Version
	NewVersion *version.Version
	OldFlavor  *version.Flavor
	NewFlavor  *version.Flavor
}

// FileDelta is the per-file report for one manifest path: the fileId
// change plus, when both sides' streams are available, the decoded
// inode/tag/dependency deltas.
type FileDelta struct {
	PathID trove.PathID
	Path   string

	Added   bool
	Removed bool
	Changed bool

	OldFileID *trove.FileID
	NewFileID *trove.FileID

	PermChanged  bool
	OwnerChanged bool
	GroupChanged bool
	MTimeChanged bool
	SizeChanged  bool
	TypeChanged  bool
	TagsChanged  bool

	ProvidesChanged bool
	RequiresChanged bool

	OldInode *changeset.Inode
	NewInode *changeset.Inode
}

// TroveDiff is the structured difference between two versions of the
// same named trove, per spec.md §4.10's Diff operation.
type TroveDiff struct {
	Name                    string
	Flavor                  FlavorChange
	SubTroveChanges         []SubTroveChange
	DependencyChanges       []DependencyChange
	BuildRequirementChanges []BuildRequirementChange
	FileDeltas              []FileDelta
}

// Diff computes the structured difference between oldTrove and newTrove.
// fileStreams must supply the FileStream for every fileId either trove's
// manifest references; a referenced fileId missing from it is a fatal
// integrity error, per spec's "missing-file detection raises a fatal
// Exception" — unlike changeset.Diff, which tolerates a partial map by
// falling back to an unreported absolute edit, this report has nowhere
// to fall back to since its whole point is the per-file delta.
func Diff(oldTrove, newTrove *trove.Trove, fileStreams map[trove.FileID]changeset.FileStream) (TroveDiff, error) {
	if oldTrove == nil || newTrove == nil {
		return TroveDiff{}, errs.New(errs.KindIntegrity, "diff requires both an old and a new trove version")
	}

	td := TroveDiff{Name: newTrove.Name}
	td.Flavor = FlavorChange{
		Old: oldTrove.Flavor, New: newTrove.Flavor,
		Changed: !oldTrove.Flavor.Equal(newTrove.Flavor),
	}

	diffSubTroveRefs(&td, oldTrove.SubTroves, newTrove.SubTroves)
	diffDependencySet(&td, oldTrove.Provides, newTrove.Provides, false)
	diffDependencySet(&td, oldTrove.Requires, newTrove.Requires, true)
	diffBuildRequirements(&td, oldTrove.BuildRequires, newTrove.BuildRequires)

	if err := diffFiles(&td, oldTrove.Manifest, newTrove.Manifest, fileStreams); err != nil {
		return TroveDiff{}, err
	}
	return td, nil
}

func diffSubTroveRefs(td *TroveDiff, oldRefs, newRefs []trove.TroveRef) {
	key := func(r trove.TroveRef) string { return r.Name + " " + r.Version.String() + " " + r.Flavor.String() }
	oldSet := map[string]trove.TroveRef{}
	for _, r := range oldRefs {
		oldSet[key(r)] = r
	}
	newSet := map[string]trove.TroveRef{}
	for _, r := range newRefs {
		newSet[key(r)] = r
	}
	var removed, added []SubTroveChange
	for k, r := range oldSet {
		if _, ok := newSet[k]; !ok {
			removed = append(removed, SubTroveChange{Added: false, Ref: r})
		}
	}
	for k, r := range newSet {
		if _, ok := oldSet[k]; !ok {
			added = append(added, SubTroveChange{Added: true, Ref: r})
		}
	}
	sort.Slice(removed, func(i, j int) bool { return key(removed[i].Ref) < key(removed[j].Ref) })
	sort.Slice(added, func(i, j int) bool { return key(added[i].Ref) < key(added[j].Ref) })
	td.SubTroveChanges = append(td.SubTroveChanges, removed...)
	td.SubTroveChanges = append(td.SubTroveChanges, added...)
}

func diffDependencySet(td *TroveDiff, oldSet, newSet depset.Set, requires bool) {
	for _, d := range depset.Difference(oldSet, newSet).Deps() {
		td.DependencyChanges = append(td.DependencyChanges, DependencyChange{Added: false, Requires: requires, Class: d.Class, Dep: d})
	}
	for _, d := range depset.Difference(newSet, oldSet).Deps() {
		td.DependencyChanges = append(td.DependencyChanges, DependencyChange{Added: true, Requires: requires, Class: d.Class, Dep: d})
	}
}

func diffBuildRequirements(td *TroveDiff, oldReqs, newReqs []trove.BuildRequirement) {
	oldByName := map[string]trove.BuildRequirement{}
	for _, r := range oldReqs {
		oldByName[r.Name] = r
	}
	newByName := map[string]trove.BuildRequirement{}
	for _, r := range newReqs {
		newByName[r.Name] = r
	}

	var names []string
	seen := map[string]bool{}
	for _, r := range oldReqs {
		if !seen[r.Name] {
			names = append(names, r.Name)
			seen[r.Name] = true
		}
	}
	for _, r := range newReqs {
		if !seen[r.Name] {
			names = append(names, r.Name)
			seen[r.Name] = true
		}
	}
	sort.Strings(names)

	for _, name := range names {
		oldR, inOld := oldByName[name]
		newR, inNew := newByName[name]
		switch {
		case inNew && !inOld:
			v, f := newR.Version, newR.Flavor
			td.BuildRequirementChanges = append(td.BuildRequirementChanges, BuildRequirementChange{
				Name: name, Added: true, NewVersion: &v, NewFlavor: &f,
			})
		case inOld && !inNew:
			v, f := oldR.Version, oldR.Flavor
			td.BuildRequirementChanges = append(td.BuildRequirementChanges, BuildRequirementChange{
				Name: name, Removed: true, OldVersion: &v, OldFlavor: &f,
			})
		default:
			if oldR.Version.Equal(newR.Version) && oldR.Flavor.Equal(newR.Flavor) {
				continue
			}
			ov, of := oldR.Version, oldR.Flavor
			nv, nf := newR.Version, newR.Flavor
			td.BuildRequirementChanges = append(td.BuildRequirementChanges, BuildRequirementChange{
				Name: name, OldVersion: &ov, OldFlavor: &of, NewVersion: &nv, NewFlavor: &nf,
			})
		}
	}
}

func diffFiles(td *TroveDiff, oldM, newM map[trove.PathID]trove.ManifestEntry, streams map[trove.FileID]changeset.FileStream) error {
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
			s, err := requireStream(streams, newE.FileID)
			if err != nil {
				return err
			}
			fd := FileDelta{PathID: pid, Path: newE.Path, Added: true, NewFileID: &newE.FileID}
			inode, _ := changeset.ParseInode(s.Inode)
			fd.NewInode = &inode
			td.FileDeltas = append(td.FileDeltas, fd)

		case inOld && !inNew:
			if _, err := requireStream(streams, oldE.FileID); err != nil {
				return err
			}
			fid := oldE.FileID
			td.FileDeltas = append(td.FileDeltas, FileDelta{PathID: pid, Path: oldE.Path, Removed: true, OldFileID: &fid})

		default:
			if oldE.FileID == newE.FileID && oldE.Path == newE.Path {
				continue // identical content and path: nothing to report
			}
			oldS, err := requireStream(streams, oldE.FileID)
			if err != nil {
				return err
			}
			newS, err := requireStream(streams, newE.FileID)
			if err != nil {
				return err
			}
			oid, nid := oldE.FileID, newE.FileID
			fd := FileDelta{PathID: pid, Path: newE.Path, Changed: true, OldFileID: &oid, NewFileID: &nid}
			fillInodeDelta(&fd, oldS, newS)
			td.FileDeltas = append(td.FileDeltas, fd)
		}
	}
	return nil
}

func requireStream(streams map[trove.FileID]changeset.FileStream, id trove.FileID) (changeset.FileStream, error) {
	s, ok := streams[id]
	if !ok {
		return changeset.FileStream{}, errs.Newf(errs.KindIntegrity, "missing file stream for fileId %x", id)
	}
	return s, nil
}

func fillInodeDelta(fd *FileDelta, oldS, newS changeset.FileStream) {
	oldInode, oldErr := changeset.ParseInode(oldS.Inode)
	newInode, newErr := changeset.ParseInode(newS.Inode)
	if oldErr == nil {
		fd.OldInode = &oldInode
	}
	if newErr == nil {
		fd.NewInode = &newInode
	}
	if oldErr == nil && newErr == nil {
		fd.PermChanged = oldInode.Perm != newInode.Perm
		fd.OwnerChanged = oldInode.Owner != newInode.Owner
		fd.GroupChanged = oldInode.Group != newInode.Group
		fd.MTimeChanged = oldInode.MTime != newInode.MTime
		fd.SizeChanged = oldInode.Size != newInode.Size
		fd.TypeChanged = oldInode.Type != newInode.Type
	}

	fd.TagsChanged = !equalStrings(oldS.Tags, newS.Tags)
	fd.ProvidesChanged = string(oldS.Provides) != string(newS.Provides)
	fd.RequiresChanged = string(oldS.Requires) != string(newS.Requires)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pathIDLess(a, b trove.PathID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
