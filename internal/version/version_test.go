package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) Version {
	t.Helper()
	v, err := Parse(s)
	require.NoError(t, err)
	return v
}

func TestParseRoundTrip(t *testing.T) {
	for _, s := range []string{
		"/example.com@ns:1/1.0-1-1",
		"/example.com@ns:1/2:1.0.3-1-1",
		"/example.com@ns:1//example.com@ns:2/1.0-1-2",
	} {
		v := mustParse(t, s)
		require.Equal(t, s, v.String())
		thawed, err := Thaw(v.Freeze())
		require.NoError(t, err)
		require.True(t, v.Equal(thawed))
	}
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{"", "nolabel-1-1", "/host@ns:1", "/host@ns:1/badrev"} {
		_, err := Parse(s)
		require.Error(t, err)
	}
}

func TestCompareSameBranch(t *testing.T) {
	v1 := mustParse(t, "/example.com@ns:1/1.0-1-1")
	v2 := mustParse(t, "/example.com@ns:1/1.0-1-2")
	v3 := mustParse(t, "/example.com@ns:1/1.1-1-1")

	require.True(t, v1.Compare(v2) < 0)
	require.True(t, v2.Compare(v3) < 0)
	require.True(t, v3.Compare(v1) > 0)
}

func TestCompareDottedNumeric(t *testing.T) {
	v1 := mustParse(t, "/example.com@ns:1/1.9-1-1")
	v2 := mustParse(t, "/example.com@ns:1/1.10-1-1")
	require.True(t, v1.Compare(v2) < 0, "1.10 should sort after 1.9 numerically")
}

func TestFinalTimestampTiesBreak(t *testing.T) {
	v1 := mustParse(t, "/example.com@ns:1/1.0-1-1").WithFinalTimestamp(100)
	v2 := mustParse(t, "/example.com@ns:1/1.0-1-1").WithFinalTimestamp(200)
	require.True(t, v1.Equal(v2), "finalTimestamp is not part of identity")
	require.True(t, v1.Compare(v2) < 0, "finalTimestamp breaks ties in ordering")
}

func TestBranchAndLabels(t *testing.T) {
	v := mustParse(t, "/example.com@ns:1/1.0-1-1")
	require.Equal(t, "example.com@ns:1", v.TrailingLabel().String())
	b := v.Branch()
	require.Len(t, b.Labels, 1)
}

func TestParent(t *testing.T) {
	v := mustParse(t, "/example.com@ns:1//example.com@ns:2/1.0-1-1")
	p, ok := v.Parent()
	require.True(t, ok)
	require.Equal(t, "/example.com@ns:1/1.0-1-1", p.String())

	_, ok = mustParse(t, "/example.com@ns:1/1.0-1-1").Parent()
	require.False(t, ok)
}

func TestFlavorSatisfiesAndScore(t *testing.T) {
	spec, err := ParseFlavor("is: x86")
	require.NoError(t, err)

	x86, err := ParseFlavor("is: x86")
	require.NoError(t, err)
	x8664, err := ParseFlavor("is: x86_64")
	require.NoError(t, err)

	require.True(t, Satisfies(spec, x86))
	require.False(t, Satisfies(spec, x8664))
	require.Equal(t, NoMatch, Score(spec, x8664))
	require.Equal(t, 2, Score(spec, x86))
}

func TestEmptyFlavorSatisfiesAndScoresZero(t *testing.T) {
	concrete, err := ParseFlavor("is: x86_64")
	require.NoError(t, err)
	empty := Flavor{}
	require.True(t, Satisfies(empty, concrete), "the empty spec has no requirements to fail")
	require.Equal(t, 0, Score(empty, concrete))
}

func TestFlavorOverride(t *testing.T) {
	base, _ := ParseFlavor("is: x86_64,use: readline")
	layer, _ := ParseFlavor("use: ~readline")
	merged := Override(base, layer)
	for _, a := range merged.Assertions() {
		if a.Class == "use" && a.Flag == "readline" {
			require.Equal(t, Prefer, a.Orientation)
		}
	}
}

func TestFlavorFreezeThaw(t *testing.T) {
	f, err := ParseFlavor("is: x86_64,~use: readline")
	require.NoError(t, err)
	thawed, err := ThawFlavor(f.Freeze())
	require.NoError(t, err)
	require.True(t, f.Equal(thawed))
}
