package changeset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInodeFreezeParseRoundTrip(t *testing.T) {
	n := Inode{Perm: 0644, Owner: "root", Group: "root", MTime: 1700000000, Size: 4096, Type: TypeRegular}
	got, err := ParseInode(n.Freeze())
	require.NoError(t, err)
	require.Equal(t, n, got)
}

func TestInodeFreezeParseEmptyOwnerGroup(t *testing.T) {
	n := Inode{Perm: 0755, Type: TypeDirectory}
	got, err := ParseInode(n.Freeze())
	require.NoError(t, err)
	require.Equal(t, n, got)
}

func TestParseInodeRejectsTooShort(t *testing.T) {
	_, err := ParseInode([]byte{1, 2, 3})
	require.Error(t, err)
}
