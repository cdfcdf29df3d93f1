package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CourtJesterG/conary/internal/store"
)

type fakeStore struct {
	items         []string
	perms         []store.PermissionRow
	identities    []store.InstanceIdentity
	checkPairs    [][2]string
	roleInstances []store.RoleVisibility
	admins        map[string]bool
}

func (f *fakeStore) ListItemNames(ctx context.Context) ([]string, error) { return f.items, nil }
func (f *fakeStore) ListPermissions(ctx context.Context) ([]store.PermissionRow, error) {
	return f.perms, nil
}
func (f *fakeStore) ListInstanceIdentities(ctx context.Context) ([]store.InstanceIdentity, error) {
	return f.identities, nil
}
func (f *fakeStore) ReplaceCheckTroveCache(ctx context.Context, pairs [][2]string) error {
	f.checkPairs = pairs
	return nil
}
func (f *fakeStore) ReplaceRoleInstanceCache(ctx context.Context, entries []store.RoleVisibility) error {
	f.roleInstances = entries
	return nil
}
func (f *fakeStore) LoadRoleInstanceCache(ctx context.Context) ([]store.RoleInstanceCacheRow, error) {
	var out []store.RoleInstanceCacheRow
	for i, e := range f.roleInstances {
		out = append(out, store.RoleInstanceCacheRow{
			Role: e.Role, InstanceID: int64(i + 1), CanWrite: e.CanWrite, CanRemove: e.CanRemove,
		})
	}
	return out, nil
}
func (f *fakeStore) IsAdmin(ctx context.Context, role string) (bool, error) {
	return f.admins[role], nil
}

func TestRebuildGrantsWriteForMatchingPattern(t *testing.T) {
	fs := &fakeStore{
		items: []string{"foo:runtime", "bar:runtime"},
		perms: []store.PermissionRow{
			{Role: "packagers", LabelPattern: "*", ItemPattern: "foo:*", CanWrite: true},
		},
		identities: []store.InstanceIdentity{
			{Name: "foo:runtime", Version: "/example.com@ns:1/1.0-1-1", Flavor: "", Label: "/example.com@ns:1"},
			{Name: "bar:runtime", Version: "/example.com@ns:1/1.0-1-1", Flavor: "", Label: "/example.com@ns:1"},
		},
		admins: map[string]bool{},
	}
	a := New(fs)
	require.NoError(t, a.Rebuild(context.Background()))

	require.Len(t, fs.roleInstances, 1)
	require.Equal(t, "foo:runtime", fs.roleInstances[0].Name)
	require.True(t, a.CanWrite("packagers", 1))
	require.False(t, a.CanRemove("packagers", 1))
}

func TestAuthorizeAdminBypassesGrants(t *testing.T) {
	fs := &fakeStore{admins: map[string]bool{"root": true}}
	a := New(fs)
	require.NoError(t, a.Authorize(context.Background(), "root", 42, true, true))
}

func TestAuthorizeDeniesWithoutGrant(t *testing.T) {
	fs := &fakeStore{admins: map[string]bool{}}
	a := New(fs)
	err := a.Authorize(context.Background(), "nobody", 1, true, false)
	require.Error(t, err)
}

func TestAuthorizeCommitGrantsOnMatchingPattern(t *testing.T) {
	fs := &fakeStore{
		perms: []store.PermissionRow{
			{Role: "packagers", LabelPattern: "*", ItemPattern: "foo:*", CanWrite: true},
		},
		admins: map[string]bool{},
	}
	a := New(fs)
	require.NoError(t, a.AuthorizeCommit(context.Background(), "packagers", "foo:runtime", "/example.com@ns:1"))
}

func TestAuthorizeCommitDeniesWithoutMatchingWriteGrant(t *testing.T) {
	fs := &fakeStore{
		perms: []store.PermissionRow{
			{Role: "packagers", LabelPattern: "*", ItemPattern: "bar:*", CanWrite: true},
		},
		admins: map[string]bool{},
	}
	a := New(fs)
	err := a.AuthorizeCommit(context.Background(), "packagers", "foo:runtime", "/example.com@ns:1")
	require.Error(t, err)
}

func TestMatchGlobStarAndQuestionMark(t *testing.T) {
	require.True(t, matchGlob("foo:*", "foo:runtime"))
	require.False(t, matchGlob("foo:*", "bar:runtime"))
	require.True(t, matchGlob("fo?:runtime", "foo:runtime"))
	require.True(t, matchGlob("*", "anything@at-all:here"))
}
