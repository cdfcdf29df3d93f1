package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCfgBool(t *testing.T) {
	for _, s := range []string{"true", "True", "1"} {
		v, err := CfgBool{}.ParseString(s)
		require.NoError(t, err)
		require.Equal(t, true, v)
	}
	for _, s := range []string{"false", "FALSE", "0"} {
		v, err := CfgBool{}.ParseString(s)
		require.NoError(t, err)
		require.Equal(t, false, v)
	}
	_, err := CfgBool{}.ParseString("maybe")
	require.Error(t, err)
}

func TestCfgInt(t *testing.T) {
	v, err := CfgInt{}.ParseString(" 42 ")
	require.NoError(t, err)
	require.Equal(t, 42, v)
	require.Equal(t, "42", CfgInt{}.Format(42))

	_, err = CfgInt{}.ParseString("nope")
	require.Error(t, err)
}

func TestCfgPathExpandsVar(t *testing.T) {
	t.Setenv("CONARY_TEST_DIR", "/srv/conary")
	v, err := CfgPath{}.ParseString("$CONARY_TEST_DIR/repo")
	require.NoError(t, err)
	pv := v.(PathValue)
	require.Equal(t, "/srv/conary/repo", pv.Expanded)
	require.Equal(t, "$CONARY_TEST_DIR/repo", pv.Raw)
}

func TestCfgEnum(t *testing.T) {
	e := CfgEnum{ValidValues: []string{"ALL", "LATEST", "LEAVES"}}
	v, err := e.ParseString("latest")
	require.NoError(t, err)
	require.Equal(t, "LATEST", v)

	_, err = e.ParseString("nonsense")
	require.Error(t, err)
}

func TestCfgRegExpList(t *testing.T) {
	l := NewCfgRegExpList()
	v, err := l.ParseString(`^foo.* ^bar$`)
	require.NoError(t, err)
	require.True(t, Match(v, "foobar"))
	require.True(t, Match(v, "bar"))
	require.False(t, Match(v, "baz"))
}

func TestCfgLineListRoundTrip(t *testing.T) {
	l := CfgLineList{Elem: CfgInt{}, Separator: ":"}
	v, err := l.ParseString("1:2:3")
	require.NoError(t, err)
	require.Equal(t, "1:2:3", l.Format(v))
}

func TestCfgDict(t *testing.T) {
	d := CfgDict{Elem: CfgBool{}}
	v, err := d.ParseString("enableFeature true")
	require.NoError(t, err)
	m := v.(map[string]any)
	require.Equal(t, true, m["enableFeature"])
}

func TestCfgEnumDictValidatesKeyAndValue(t *testing.T) {
	d := CfgEnumDict{
		Elem:        CfgString{},
		ValidValues: map[string][]string{"level": {"low", "high"}},
	}
	v, err := d.ParseString("level high")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"level": "high"}, v)

	_, err = d.ParseString("level medium")
	require.Error(t, err)
	_, err = d.ParseString("unknownkey x")
	require.Error(t, err)
}
