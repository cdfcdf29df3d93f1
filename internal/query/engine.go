package query

import (
	"context"
	"sort"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/external"
	"github.com/CourtJesterG/conary/internal/store"
	"github.com/CourtJesterG/conary/internal/trove"
	"github.com/CourtJesterG/conary/internal/version"
)

// Candidates is the subset of *store.Store the query engine needs: a
// narrow collaborator interface so the engine can be exercised against a
// fake in tests without a real database.
type Candidates interface {
	CandidatesByName(ctx context.Context, name string) ([]store.InstanceRow, error)
	LatestCandidatesByName(ctx context.Context, name string, tier store.LatestTier) ([]store.InstanceRow, error)
	Visibility(ctx context.Context, role, name, v, f string) (canWrite, canRemove, ok bool, err error)
	IsAdmin(ctx context.Context, role string) (bool, error)
}

// tierFor maps a TroveTypeFilter onto the LatestCache tier that carries
// the same troveType gating, per §4.7: TroveTypesNormal's "exclude
// Removed and Redirect" matches LATEST_NORMAL, TroveTypesAll matches
// LATEST_ANY, and TroveTypesPresent (the default) matches LATEST_PRESENT.
func tierFor(f TroveTypeFilter) store.LatestTier {
	switch f {
	case TroveTypesAll:
		return store.LatestAny
	case TroveTypesNormal:
		return store.LatestNormal
	default:
		return store.LatestPresent
	}
}

// Engine runs findTroves-family queries over a store and, optionally, an
// affinity-providing local client database.
type Engine struct {
	store   Candidates
	localDb external.LocalDb
}

// New builds an Engine. localDb may be nil if affinity is never requested.
func New(s Candidates, localDb external.LocalDb) *Engine {
	return &Engine{store: s, localDb: localDb}
}

// FindTroves resolves each spec in specs against labelPath, honoring
// opts, and returns every match per spec. allowMissing=false makes a
// spec with zero matches fail the whole call. role gates the result per
// §4.8: a non-admin role only ever sees rows RoleInstanceCache marks
// visible to it; role == "" skips the check (no access control
// configured for this call, e.g. an internal/trusted caller).
func (e *Engine) FindTroves(ctx context.Context, labelPath []version.Label, specs []Spec, searchFlavor version.Flavor, opts Options, role string) (map[Spec][]trove.TroveRef, error) {
	results := make(map[Spec][]trove.TroveRef, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	resultsBySpec := make([][]trove.TroveRef, len(specs))

	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			matches, err := e.findOne(gctx, labelPath, spec, searchFlavor, opts)
			if err != nil {
				return err
			}
			matches, err = e.filterByRole(gctx, role, matches)
			if err != nil {
				return err
			}
			resultsBySpec[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, spec := range specs {
		if len(resultsBySpec[i]) == 0 && !opts.AllowMissing {
			return nil, errs.Newf(errs.KindNotFound, "no match for %s", spec.Name)
		}
		results[spec] = resultsBySpec[i]
	}
	return results, nil
}

// filterByRole narrows matches to the rows role may see, per §4.8 ("every
// returned row must be visible in RoleInstanceCache"). An admin role, or
// an empty role, passes every row through unfiltered.
func (e *Engine) filterByRole(ctx context.Context, role string, matches []trove.TroveRef) ([]trove.TroveRef, error) {
	if role == "" {
		return matches, nil
	}
	isAdmin, err := e.store.IsAdmin(ctx, role)
	if err != nil {
		return nil, err
	}
	if isAdmin {
		return matches, nil
	}

	out := make([]trove.TroveRef, 0, len(matches))
	for _, ref := range matches {
		_, _, ok, err := e.store.Visibility(ctx, role, ref.Name, ref.Version.String(), ref.Flavor.String())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, ref)
		}
	}
	return out, nil
}

// findOne resolves a single spec, collecting candidates from every label
// in labelPath when acrossLabels is set, and stopping at the first label
// to produce a match otherwise.
func (e *Engine) findOne(ctx context.Context, labelPath []version.Label, spec Spec, searchFlavor version.Flavor, opts Options) ([]trove.TroveRef, error) {
	effectiveFlavor := searchFlavor
	if spec.Flavor != nil {
		effectiveFlavor = *spec.Flavor
	}
	if opts.Affinity && e.localDb != nil {
		affined, err := e.affinityFlavor(ctx, spec.Name, effectiveFlavor)
		if err != nil {
			return nil, err
		}
		effectiveFlavor = affined
	}

	rows, err := e.candidatesWithRetry(ctx, spec.Name, spec.Version == nil, opts.VersionFilter, opts.TroveTypes)
	if err != nil {
		return nil, err
	}

	byLabel := map[version.Label][]store.InstanceRow{}
	for _, row := range rows {
		if !opts.TroveTypes.accepts(row.TroveType) {
			continue
		}
		if spec.Version != nil && !row.Version.Equal(*spec.Version) {
			continue
		}
		label := row.Version.Branch().TrailingLabel()
		byLabel[label] = append(byLabel[label], row)
	}

	searchPath := labelPath
	if spec.Label != nil {
		searchPath = []version.Label{*spec.Label}
	}

	var selected []store.InstanceRow
	if opts.AcrossLabels {
		for _, label := range searchPath {
			selected = append(selected, byLabel[label]...)
		}
	} else {
		for _, label := range searchPath {
			if rows, ok := byLabel[label]; ok && len(rows) > 0 {
				selected = rows
				break
			}
		}
	}

	selected = applyVersionFilter(selected, opts.VersionFilter, opts.AcrossFlavors)
	return applyFlavorFilter(selected, spec.Flavor, effectiveFlavor, opts.FlavorFilter, opts.BestFlavor)
}

// candidatesWithRetry wraps the store lookup in exponential backoff:
// only a *external.TransportError (a remote-repository hop behind the
// store) is retried, any other error (parse/schema failures) fails fast.
// When useLatestCache is set (no exact version named, so a version
// filter will reduce the set anyway) it reads the pre-reduced
// LatestCache tier matching vf/troveTypes instead of rescanning every
// instance, per §4.7: LATEST/LEAVES consult the cache rather than
// recomputing it on every call.
func (e *Engine) candidatesWithRetry(ctx context.Context, name string, useLatestCache bool, vf VersionFilter, troveTypes TroveTypeFilter) ([]store.InstanceRow, error) {
	var rows []store.InstanceRow
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	op := func() error {
		var r []store.InstanceRow
		var err error
		if useLatestCache && vf != VersionAll {
			r, err = e.store.LatestCandidatesByName(ctx, name, tierFor(troveTypes))
		} else {
			r, err = e.store.CandidatesByName(ctx, name)
		}
		if err == nil {
			rows = r
			return nil
		}
		if _, ok := err.(*external.TransportError); ok {
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return rows, nil
}

// affinityFlavor overrides searchFlavor with the flavor of a locally
// installed trove of the same name, per §4.7's affinity rule.
func (e *Engine) affinityFlavor(ctx context.Context, name string, searchFlavor version.Flavor) (version.Flavor, error) {
	locals, err := e.localDb.TrovesByName(ctx, name)
	if err != nil {
		return searchFlavor, errs.Wrap(errs.KindTransport, err, "affinity lookup")
	}
	if len(locals) == 0 {
		return searchFlavor, nil
	}
	localFlavor, err := version.ThawFlavor([]byte(locals[0].Flavor))
	if err != nil {
		return searchFlavor, errs.Wrap(errs.KindParse, err, "thaw local affinity flavor")
	}
	return version.Override(searchFlavor, localFlavor), nil
}

// applyVersionFilter implements the post-filter ordering: LATEST keeps
// every row whose version equals its branch maximum, LEAVES keeps every
// row equal to the maximum of its (branch,flavor) — unless acrossFlavors
// is false, in which case flavors collapse first and LEAVES behaves like
// LATEST.
func applyVersionFilter(rows []store.InstanceRow, vf VersionFilter, acrossFlavors bool) []store.InstanceRow {
	if vf == VersionAll {
		return rows
	}

	type bucketKey struct {
		branch string
		flavor string
	}
	keyOf := func(r store.InstanceRow) bucketKey {
		k := bucketKey{branch: r.Version.Branch().String()}
		if vf == VersionLeaves && acrossFlavors {
			k.flavor = r.Flavor.String()
		}
		return k
	}

	best := map[bucketKey]store.InstanceRow{}
	for _, r := range rows {
		k := keyOf(r)
		if cur, ok := best[k]; !ok || r.Version.Compare(cur.Version) > 0 {
			best[k] = r
		}
	}

	out := make([]store.InstanceRow, 0, len(best))
	for _, r := range rows {
		if r.Version.Compare(best[keyOf(r)].Version) == 0 {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Version.Compare(out[j].Version) > 0
	})
	return out
}

// applyFlavorFilter applies the spec's own flavor constraint (origSpec)
// per the four flavorFilter policies.
func applyFlavorFilter(rows []store.InstanceRow, specFlavor *version.Flavor, effective version.Flavor, ff FlavorFilter, bestFlavor bool) ([]trove.TroveRef, error) {
	if ff == FlavorAll && specFlavor == nil {
		return toRefs(rows), nil
	}

	constraint := effective
	if specFlavor != nil {
		constraint = *specFlavor
	}

	switch ff {
	case FlavorExact:
		var out []store.InstanceRow
		for _, r := range rows {
			if r.Flavor.Equal(constraint) {
				out = append(out, r)
			}
		}
		return toRefs(out), nil

	case FlavorBest:
		bestIdx, bestScore := -1, version.NoMatch
		for i, r := range rows {
			if s := version.Score(constraint, r.Flavor); s > bestScore {
				bestScore, bestIdx = s, i
			}
		}
		if bestIdx < 0 {
			return nil, nil
		}
		return toRefs([]store.InstanceRow{rows[bestIdx]}), nil

	case FlavorAvail, FlavorAll:
		var out []store.InstanceRow
		for _, r := range rows {
			if version.Satisfies(constraint, r.Flavor) {
				out = append(out, r)
			}
		}
		if bestFlavor && len(out) > 1 {
			sort.SliceStable(out, func(i, j int) bool {
				return version.Score(constraint, out[i].Flavor) > version.Score(constraint, out[j].Flavor)
			})
			out = out[:1]
		}
		return toRefs(out), nil

	default:
		return toRefs(rows), nil
	}
}

func toRefs(rows []store.InstanceRow) []trove.TroveRef {
	out := make([]trove.TroveRef, 0, len(rows))
	for _, r := range rows {
		out = append(out, trove.TroveRef{Name: r.Name, Version: r.Version, Flavor: r.Flavor})
	}
	return out
}
