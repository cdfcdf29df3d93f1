package depset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDependency(t *testing.T) {
	d, err := ParseDependency("soname: libc.so.6(GLIBC_2.4)")
	require.NoError(t, err)
	require.Equal(t, ClassSoname, d.Class)
	require.Equal(t, "libc.so.6", d.Name)
	require.Equal(t, []string{"GLIBC_2.4"}, d.Flags)

	_, err = ParseDependency("nocolon")
	require.Error(t, err)
}

func TestSetFreezeThawRoundTrip(t *testing.T) {
	s := NewSet(
		NewDependency(ClassSoname, "libc.so.6", "GLIBC_2.4"),
		NewDependency(ClassTrove, "foo:runtime"),
		NewDependency(ClassUse, "readline"),
	)
	thawed, err := Thaw(s.Freeze())
	require.NoError(t, err)
	require.True(t, s.Equal(thawed))
}

func TestSatisfiesTroveByNameOnly(t *testing.T) {
	required := NewSet(NewDependency(ClassTrove, "foo:runtime"))
	provided := NewSet(NewDependency(ClassTrove, "foo:runtime"))
	require.True(t, Satisfies(required, provided))
}

func TestSatisfiesUseFlagSubsumption(t *testing.T) {
	required := NewSet(NewDependency(ClassUse, "python", "threads"))
	provided := NewSet(NewDependency(ClassUse, "python", "threads", "ssl"))
	require.True(t, Satisfies(required, provided), "provided superset of flags satisfies")

	provided2 := NewSet(NewDependency(ClassUse, "python", "ssl"))
	require.False(t, Satisfies(required, provided2), "missing required flag fails")
}

func TestSatisfiesSonameExact(t *testing.T) {
	required := NewSet(NewDependency(ClassSoname, "libc.so.6", "GLIBC_2.4"))
	provided := NewSet(NewDependency(ClassSoname, "libc.so.6", "GLIBC_2.3"))
	require.False(t, Satisfies(required, provided), "soname requires exact flag match")
}

func TestDifference(t *testing.T) {
	a := NewSet(
		NewDependency(ClassTrove, "foo:runtime"),
		NewDependency(ClassTrove, "bar:runtime"),
	)
	b := NewSet(NewDependency(ClassTrove, "foo:runtime"))
	diff := Difference(a, b)
	require.Equal(t, 1, diff.Len())
	require.Equal(t, "bar:runtime", diff.Deps()[0].Name)
}

func TestUnionLayersRight(t *testing.T) {
	a := NewSet(NewDependency(ClassUse, "python", "threads"))
	b := NewSet(NewDependency(ClassUse, "python", "ssl"))
	u := Union(a, b)
	require.Equal(t, 1, u.Len())
	require.Equal(t, []string{"ssl"}, u.Deps()[0].Flags)
}
