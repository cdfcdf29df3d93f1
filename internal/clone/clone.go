// Package clone implements spec.md §4.10's clone operation: reissuing a
// set of troves onto a different target branch as a fresh absolute
// changeset, with label-conflict detection and branch-keyed signing.
package clone

import (
	"context"
	"strconv"
	"strings"

	"github.com/CourtJesterG/conary/internal/changeset"
	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/external"
	"github.com/CourtJesterG/conary/internal/store"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
	"github.com/CourtJesterG/conary/internal/xmath"
)

// Backend is the narrow slice of *store.Store clone needs: read a
// trove's current state, see its siblings for tip/conflict detection,
// and commit the resulting changeset.
type Backend interface {
	GetTrove(ctx context.Context, name string, v version.Version, f version.Flavor, withFiles bool) (*trove.Trove, error)
	CandidatesByName(ctx context.Context, name string) ([]store.InstanceRow, error)
	CommitChangeset(ctx context.Context, cs *changeset.ChangeSet, authRole string) (store.CommitResult, error)
}

// KeySelector picks the signing key fingerprint for a destination
// branch, per "commit only after signing with the key selected by
// branch label".
type KeySelector interface {
	SelectSigningKey(branch version.Branch) (fingerprint string, ok bool)
}

// Options are the clone flags named in spec.md §4.10.
type Options struct {
	UpdateBuildInfo bool
	CloneSources    bool
	FullRecurse     bool
	InfoOnly        bool
}

// Request names what to clone and where.
type Request struct {
	TargetBranch version.Branch
	Troves       []trove.TroveRef
	Options      Options
}

// LabelConflict is a destination (name, version, flavor) that collides
// with an existing instance visible under a different branch's label.
type LabelConflict struct {
	Name          string
	Version       version.Version
	Flavor        version.Flavor
	ConflictsWith version.Version
}

// Plan is a computed clone: the absolute changeset it would commit, and
// any label conflicts that changeset would create.
type Plan struct {
	ChangeSet *changeset.ChangeSet
	Conflicts []LabelConflict
}

// Clone builds and, unless info-only or blocked by unresolved label
// conflicts, commits a clone of req.Troves onto req.TargetBranch.
// interactive mirrors the caller's ability to confirm past a label
// conflict; a non-interactive caller fails instead, per spec. authRole
// is passed through to the final commit, which requires canWrite over
// every destination instance per §4.8.
func Clone(ctx context.Context, backend Backend, keys KeySelector, signer external.Signer, req Request, interactive bool, authRole string) (*Plan, *store.CommitResult, error) {
	troves := req.Troves
	if req.Options.FullRecurse {
		expanded, err := recurse(ctx, backend, troves)
		if err != nil {
			return nil, nil, err
		}
		troves = expanded
	}

	for _, ref := range troves {
		if trove.IsComponent(ref.Name) && !trove.IsSourceComponent(ref.Name) {
			return nil, nil, errs.Newf(errs.KindConflict, "cannot clone component %q", ref.Name)
		}
		if trove.IsSourceComponent(ref.Name) && !req.Options.CloneSources {
			return nil, nil, errs.Newf(errs.KindConflict, "cloning source component %q requires cloneSources", ref.Name)
		}
	}

	plan, err := buildPlan(ctx, backend, troves, req)
	if err != nil {
		return nil, nil, err
	}

	if len(plan.Conflicts) > 0 && !interactive && !req.Options.InfoOnly {
		return plan, nil, errs.Newf(errs.KindConflict, "clone would create %d label conflict(s)", len(plan.Conflicts))
	}
	if req.Options.InfoOnly {
		return plan, nil, nil
	}

	fingerprint, ok := keys.SelectSigningKey(req.TargetBranch)
	if !ok {
		return plan, nil, errs.Newf(errs.KindNotFound, "no signing key configured for branch %s", req.TargetBranch.String())
	}
	if err := changeset.Sign(ctx, plan.ChangeSet, signer, fingerprint); err != nil {
		return plan, nil, err
	}

	result, err := backend.CommitChangeset(ctx, plan.ChangeSet, authRole)
	if err != nil {
		return plan, nil, err
	}
	return plan, &result, nil
}

// recurse expands refs with their strong sub-trove references,
// transitively, for fullRecurse clones. A ref already present (by
// name/version/flavor) is not fetched twice.
func recurse(ctx context.Context, backend Backend, refs []trove.TroveRef) ([]trove.TroveRef, error) {
	seen := map[string]bool{}
	key := func(r trove.TroveRef) string { return r.Name + " " + r.Version.String() + " " + r.Flavor.String() }
	var out []trove.TroveRef
	queue := append([]trove.TroveRef(nil), refs...)
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		k := key(ref)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, ref)

		t, err := backend.GetTrove(ctx, ref.Name, ref.Version, ref.Flavor, false)
		if err != nil {
			return nil, errs.Wrapf(errs.KindNotFound, err, "fetch %s for recursive clone", ref.Name)
		}
		for _, sub := range t.SubTroves {
			if sub.IsStrongRef {
				queue = append(queue, sub)
			}
		}
	}
	return out, nil
}

// buildPlan fetches every trove to clone, rewrites it onto the target
// branch, remaps build-info references among the cloned set, and emits
// the absolute changeset plus any label conflicts discovered.
func buildPlan(ctx context.Context, backend Backend, troves []trove.TroveRef, req Request) (*Plan, error) {
	cs := changeset.New()
	plan := &Plan{ChangeSet: cs}

	// remap tracks, per source (name, version, flavor), the destination
	// version chosen for it — used to redirect build-requirement
	// references when updateBuildInfo is set.
	type srcKey struct {
		name, version, flavor string
	}
	remap := map[srcKey]version.Version{}
	cloned := make([]*trove.Trove, 0, len(troves))

	for _, ref := range troves {
		src, err := backend.GetTrove(ctx, ref.Name, ref.Version, ref.Flavor, true)
		if err != nil {
			return nil, errs.Wrapf(errs.KindNotFound, err, "fetch %s for clone", ref.Name)
		}

		candidates, err := backend.CandidatesByName(ctx, ref.Name)
		if err != nil {
			return nil, err
		}
		tip := branchTip(candidates, req.TargetBranch)
		destRev := nextCloneRevision(tip, src.Version.TrailingRevision())
		destVersion := version.New(req.TargetBranch.Labels, destRev)

		dst := cloneForTarget(src, destVersion)
		cloned = append(cloned, dst)
		remap[srcKey{ref.Name, ref.Version.String(), ref.Flavor.String()}] = destVersion

		destLabel := req.TargetBranch.TrailingLabel()
		for _, other := range candidates {
			if other.Version.Branch().Equal(req.TargetBranch) {
				continue // same branch: not a cross-label collision
			}
			if other.Flavor.Equal(dst.Flavor) && other.Version.TrailingLabel().Equal(destLabel) {
				plan.Conflicts = append(plan.Conflicts, LabelConflict{
					Name: ref.Name, Version: destVersion, Flavor: dst.Flavor, ConflictsWith: other.Version,
				})
			}
		}
	}

	if req.Options.UpdateBuildInfo {
		for _, dst := range cloned {
			for i, br := range dst.BuildRequires {
				k := srcKey{br.Name, br.Version.String(), br.Flavor.String()}
				if nv, ok := remap[k]; ok {
					dst.BuildRequires[i].Version = nv
				}
			}
		}
	}

	for _, dst := range cloned {
		tcs := changeset.Diff(nil, dst, nil)
		cs.Troves = append(cs.Troves, tcs)
	}
	return plan, nil
}

// cloneForTarget produces the in-memory trove that results from
// reissuing src at destVersion: same content, new identity, clonedFromId
// pointing back at the source version.
func cloneForTarget(src *trove.Trove, destVersion version.Version) *trove.Trove {
	dst := trove.New(src.Name, destVersion, src.Flavor)
	for pid, e := range src.Manifest {
		dst.Manifest[pid] = e
	}
	dst.SubTroves = append([]trove.TroveRef(nil), src.SubTroves...)
	dst.Redirects = append([]trove.TroveRef(nil), src.Redirects...)
	dst.Provides = src.Provides
	dst.Requires = src.Requires
	dst.BuildRequires = append([]trove.BuildRequirement(nil), src.BuildRequires...)
	dst.Metadata = append([]trove.MetadataItem(nil), src.Metadata...)
	dst.Type = src.Type
	dst.DigestVersion = src.DigestVersion
	sv := src.Version
	dst.ClonedFromID = &sv
	return dst
}

// branchTip returns the highest version among candidates that lies
// directly on branch, or nil if none does.
func branchTip(candidates []store.InstanceRow, branch version.Branch) *version.Version {
	var best *version.Version
	for _, c := range candidates {
		if !c.Version.Branch().Equal(branch) {
			continue
		}
		if best == nil || c.Version.Compare(*best) > 0 {
			v := c.Version
			best = &v
		}
	}
	return best
}

// nextCloneRevision picks a revision for the clone's destination that is
// guaranteed newer than the target branch's current tip (monotonic, per
// spec): the source's own revision, unless that would not sort after the
// tip already there, in which case the tip's source count is bumped by
// one past itself so the clone is both newer and visibly derived from a
// repeat clone of the same upstream.
func nextCloneRevision(tip *version.Version, source version.Revision) version.Revision {
	if tip == nil {
		return source
	}
	tipRev := tip.TrailingRevision()
	if source.Compare(tipRev) > 0 {
		return source
	}
	bumped := tipRev
	bumped.Upstream = source.Upstream
	bumped.SourceCount = bumpDotted(tipRev.SourceCount)
	return bumped
}

// bumpDotted increments the last numeric component of a dotted-decimal
// string ("1" -> "2", "1.3" -> "1.4"), or appends ".1" when the last
// component is not numeric.
func bumpDotted(s string) string {
	idx := strings.LastIndexByte(s, '.')
	head, last := "", s
	if idx >= 0 {
		head, last = s[:idx+1], s[idx+1:]
	}
	if n, ok := xmath.ParseUint64(last); ok {
		return head + strconv.FormatUint(n+1, 10)
	}
	return s + ".1"
}
