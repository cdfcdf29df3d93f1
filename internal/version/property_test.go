package version

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// genIdent draws a short alphanumeric identifier safe for embedding in a
// label or revision component without colliding with a grammar
// separator (@, :, /, -).
func genIdent(t *rapid.T, label string) string {
	return rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9]{0,7}`).Draw(t, label)
}

func genLabel(t *rapid.T) Label {
	return Label{
		Host:      genIdent(t, "host") + ".example.com",
		Namespace: genIdent(t, "ns"),
		Tag:       genIdent(t, "tag"),
	}
}

func genRevision(t *rapid.T) Revision {
	return Revision{
		Epoch:       rapid.Uint64Range(0, 5).Draw(t, "epoch"),
		Upstream:    rapid.StringMatching(`[0-9]\.[0-9]{1,3}`).Draw(t, "upstream"),
		SourceCount: rapid.StringMatching(`[0-9]{1,2}`).Draw(t, "source"),
		BuildCount:  rapid.StringMatching(`[0-9]{1,2}`).Draw(t, "build"),
	}
}

// TestVersionParseFreezeRoundTrip is the §8 testable-property-4
// round-trip check for Version: parse(freeze(v)) == v for every
// generated version.
func TestVersionParseFreezeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 3).Draw(t, "numLabels")
		labels := make([]Label, n)
		for i := range labels {
			labels[i] = genLabel(t)
		}
		rev := genRevision(t)
		v := New(labels, rev)

		frozen := v.Freeze()
		thawed, err := Thaw(frozen)
		if err != nil {
			t.Fatalf("thaw(freeze(v)) failed: %v", err)
		}
		if thawed.String() != v.String() {
			t.Fatalf("round-trip mismatch: %q != %q", thawed.String(), v.String())
		}
	})
}

func genFlavorAssertionText(t *rapid.T) (class, flag, marker string) {
	marker = rapid.SampledFrom([]string{"", "~", "!"}).Draw(t, "marker")
	class = rapid.SampledFrom([]string{"is", "use", "abi"}).Draw(t, "class")
	flag = genIdent(t, "flag")
	return
}

// TestFlavorParseFreezeThawRoundTrip is the §8 round-trip property for
// Flavor: parseFlavor(freeze(f)) == f, built from a randomly generated
// comma-separated assertion string so it only exercises the package's
// public ParseFlavor/Freeze/ThawFlavor surface.
func TestFlavorParseFreezeThawRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 4).Draw(t, "numAssertions")
		seen := map[string]bool{}
		var parts []string
		for i := 0; i < n; i++ {
			class, flag, marker := genFlavorAssertionText(t)
			k := class + "\x00" + flag
			if seen[k] {
				continue
			}
			seen[k] = true
			parts = append(parts, marker+class+": "+flag)
		}

		f, err := ParseFlavor(strings.Join(parts, ","))
		if err != nil {
			t.Fatalf("ParseFlavor(%q) failed: %v", strings.Join(parts, ","), err)
		}

		thawed, err := ThawFlavor(f.Freeze())
		if err != nil {
			t.Fatalf("ThawFlavor(freeze(f)) failed: %v", err)
		}
		if !thawed.Equal(f) {
			t.Fatalf("round-trip mismatch: %q != %q", thawed.String(), f.String())
		}
	})
}
