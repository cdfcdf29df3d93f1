// Package access implements permission evaluation: role/permission glob
// matching, the CheckTroveCache/RoleInstanceCache materializations, and
// a compact in-memory per-role visibility index for query-time checks.
package access

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/store"
	"github.com/CourtJesterG/conary/internal/version"
)

// storeSupport is the narrow slice of *store.Store the access layer
// needs, so it can be exercised against a fake in tests.
type storeSupport interface {
	ListItemNames(ctx context.Context) ([]string, error)
	ListPermissions(ctx context.Context) ([]store.PermissionRow, error)
	ListInstanceIdentities(ctx context.Context) ([]store.InstanceIdentity, error)
	ReplaceCheckTroveCache(ctx context.Context, pairs [][2]string) error
	ReplaceRoleInstanceCache(ctx context.Context, entries []store.RoleVisibility) error
	LoadRoleInstanceCache(ctx context.Context) ([]store.RoleInstanceCacheRow, error)
	IsAdmin(ctx context.Context, role string) (bool, error)
}

// Access evaluates per-role permissions. Rebuild recomputes both the
// persisted CheckTroveCache/RoleInstanceCache tables and this process's
// in-memory bitmap index; Can* calls only ever touch the bitmap index.
type Access struct {
	s storeSupport

	mu            sync.RWMutex
	instanceIndex map[string]uint32 // "name\x00version\x00flavor" -> bit position
	writeBitmaps  map[string]*roaring.Bitmap
	removeBitmaps map[string]*roaring.Bitmap
}

// New builds an Access evaluator over s. Call Rebuild at least once
// before any Can* call returns a meaningful answer.
func New(s storeSupport) *Access {
	return &Access{
		s:             s,
		instanceIndex: map[string]uint32{},
		writeBitmaps:  map[string]*roaring.Bitmap{},
		removeBitmaps: map[string]*roaring.Bitmap{},
	}
}

func instanceKey(name, v, f string) string { return name + "\x00" + v + "\x00" + f }

// Rebuild recomputes CheckTroveCache (pattern × item glob matches) and
// RoleInstanceCache (permission × instance identity matches, OR-ed
// across a role's grants) from scratch, persists both, and reloads this
// process's bitmap index from the freshly persisted RoleInstanceCache —
// per spec.md §4.8's "fully rebuildable" requirement for both caches.
func (a *Access) Rebuild(ctx context.Context) error {
	items, err := a.s.ListItemNames(ctx)
	if err != nil {
		return err
	}
	perms, err := a.s.ListPermissions(ctx)
	if err != nil {
		return err
	}

	distinctPatterns := map[string]bool{}
	for _, p := range perms {
		distinctPatterns[p.ItemPattern] = true
	}

	var checkPairs [][2]string
	for pattern := range distinctPatterns {
		for _, item := range items {
			if matchGlob(pattern, item) {
				checkPairs = append(checkPairs, [2]string{pattern, item})
			}
		}
	}
	if err := a.s.ReplaceCheckTroveCache(ctx, checkPairs); err != nil {
		return err
	}

	identities, err := a.s.ListInstanceIdentities(ctx)
	if err != nil {
		return err
	}

	type grant struct{ write, remove bool }
	byRoleInstance := map[string]map[string]grant{} // role -> instanceKey -> grant
	for _, p := range perms {
		for _, id := range identities {
			if !matchGlob(p.ItemPattern, id.Name) {
				continue
			}
			label := trailingLabel(id.Label)
			if !matchGlob(p.LabelPattern, label) {
				continue
			}
			byInstance, ok := byRoleInstance[p.Role]
			if !ok {
				byInstance = map[string]grant{}
				byRoleInstance[p.Role] = byInstance
			}
			key := instanceKey(id.Name, id.Version, id.Flavor)
			g := byInstance[key]
			g.write = g.write || p.CanWrite
			g.remove = g.remove || p.CanRemove
			byInstance[key] = g
		}
	}

	var entries []store.RoleVisibility
	for role, byInstance := range byRoleInstance {
		for key, g := range byInstance {
			name, v, f := splitInstanceKey(key)
			entries = append(entries, store.RoleVisibility{
				Role: role, Name: name, Version: v, Flavor: f,
				CanWrite: g.write, CanRemove: g.remove,
			})
		}
	}
	if err := a.s.ReplaceRoleInstanceCache(ctx, entries); err != nil {
		return err
	}

	return a.reloadBitmaps(ctx)
}

func (a *Access) reloadBitmaps(ctx context.Context) error {
	rows, err := a.s.LoadRoleInstanceCache(ctx)
	if err != nil {
		return err
	}

	writeBitmaps := map[string]*roaring.Bitmap{}
	removeBitmaps := map[string]*roaring.Bitmap{}
	for _, r := range rows {
		bit := uint32(r.InstanceID)
		if r.CanWrite {
			bm, ok := writeBitmaps[r.Role]
			if !ok {
				bm = roaring.New()
				writeBitmaps[r.Role] = bm
			}
			bm.Add(bit)
		}
		if r.CanRemove {
			bm, ok := removeBitmaps[r.Role]
			if !ok {
				bm = roaring.New()
				removeBitmaps[r.Role] = bm
			}
			bm.Add(bit)
		}
	}

	a.mu.Lock()
	a.writeBitmaps = writeBitmaps
	a.removeBitmaps = removeBitmaps
	a.mu.Unlock()
	return nil
}

// CanWrite reports whether role may write instanceID, per its bitmap.
func (a *Access) CanWrite(role string, instanceID int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	bm, ok := a.writeBitmaps[role]
	return ok && bm.Contains(uint32(instanceID))
}

// CanRemove reports whether role may remove instanceID, per its bitmap.
func (a *Access) CanRemove(role string, instanceID int64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	bm, ok := a.removeBitmaps[role]
	return ok && bm.Contains(uint32(instanceID))
}

// Authorize enforces query-time visibility (spec.md §4.8): an admin role
// sees and writes everything; any other role must carry an explicit
// write (or, for removeRequired, remove) grant over instanceID.
func (a *Access) Authorize(ctx context.Context, role string, instanceID int64, writeRequired, removeRequired bool) error {
	isAdmin, err := a.s.IsAdmin(ctx, role)
	if err != nil {
		return err
	}
	if isAdmin {
		return nil
	}
	if removeRequired && !a.CanRemove(role, instanceID) {
		return errs.Newf(errs.KindPermissionDenied, "role %q lacks remove permission", role)
	}
	if writeRequired && !a.CanWrite(role, instanceID) {
		return errs.Newf(errs.KindPermissionDenied, "role %q lacks write permission", role)
	}
	return nil
}

// AuthorizeCommit enforces canWrite for a trove being committed that may
// not exist yet (a new version of name on label): the per-instance
// RoleInstanceCache bitmap cannot cover an instance with no instanceId,
// so this matches role's Permissions rows directly against (item, label)
// glob patterns instead, the same matchGlob Rebuild uses to populate
// RoleInstanceCache in the first place.
func (a *Access) AuthorizeCommit(ctx context.Context, role, name, label string) error {
	isAdmin, err := a.s.IsAdmin(ctx, role)
	if err != nil {
		return err
	}
	if isAdmin {
		return nil
	}
	perms, err := a.s.ListPermissions(ctx)
	if err != nil {
		return err
	}
	for _, p := range perms {
		if p.Role != role || !p.CanWrite {
			continue
		}
		if matchGlob(p.ItemPattern, name) && matchGlob(p.LabelPattern, label) {
			return nil
		}
	}
	return errs.Newf(errs.KindPermissionDenied, "role %q lacks write permission for %s", role, name)
}

func splitInstanceKey(key string) (name, v, f string) {
	parts := make([]string, 0, 3)
	start := 0
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			parts = append(parts, key[start:i])
			start = i + 1
		}
	}
	parts = append(parts, key[start:])
	return parts[0], parts[1], parts[2]
}

func trailingLabel(branch string) string {
	b, err := version.ParseBranch(branch)
	if err != nil {
		return branch
	}
	return b.TrailingLabel().String()
}
