package changeset

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/version"
)

// frameKind is the second field of a wire frame header, selecting which
// of the three header shapes follows.
type frameKind string

const (
	frameAbstract  frameKind = "ABSTRACT"
	frameChangeset frameKind = "CHANGESET"
	frameNew       frameKind = "NEW"
)

// WriteFrame writes cs as one framed "SRS PKG ..." record: a header line
// naming the frame kind, trove name, version(s), and line counts,
// followed by mainLines manifest-edit lines and diffLines unified-diff
// lines for the group-file diff.
func WriteFrame(w io.Writer, cs TroveChangeSet) error {
	mainLines := renderMainLines(cs)
	diffLines := renderDiffLines(cs)

	kind := frameChangeset
	switch {
	case cs.Absolute && cs.OldVersion == nil:
		kind = frameAbstract
	case !cs.Absolute && len(mainLines)+len(diffLines) == 0:
		kind = frameNew
	}

	var header string
	switch kind {
	case frameAbstract, frameNew:
		header = fmt.Sprintf("SRS PKG %s %s %s %d %d\n", kind, cs.Name, cs.NewVersion.String(), len(mainLines), len(diffLines))
	default:
		header = fmt.Sprintf("SRS PKG %s %s %s %s %d %d\n", kind, cs.Name, cs.OldVersion.String(), cs.NewVersion.String(), len(mainLines), len(diffLines))
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	for _, l := range mainLines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			return err
		}
	}
	for _, l := range diffLines {
		if _, err := io.WriteString(w, l+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func renderMainLines(cs TroveChangeSet) []string {
	var out []string
	for _, e := range cs.FileEdits {
		switch e.Kind {
		case editAdd:
			out = append(out, fmt.Sprintf("+ %x %s", e.PathID, e.Path))
		case editChange:
			out = append(out, fmt.Sprintf("~ %x %s", e.PathID, e.Path))
		case editRemove:
			out = append(out, fmt.Sprintf("- %x", e.PathID))
		}
	}
	for _, e := range cs.SubTroveEdits {
		sign := "+"
		if !e.Added {
			sign = "-"
		}
		out = append(out, fmt.Sprintf("p %s%s %s %s", sign, e.Ref.Name, e.Ref.Version.String(), e.Ref.Flavor.String()))
	}
	return out
}

// renderDiffLines carries only the FileChange entries that ship as a
// line-level diff (IsDiff); absolute file streams travel through the
// content archive instead, per §4.4.
func renderDiffLines(cs TroveChangeSet) []string {
	var out []string
	for _, e := range cs.FileEdits {
		if e.Change != nil && e.Change.IsDiff {
			out = append(out, strings.Split(string(e.Change.Diff), "\n")...)
		}
	}
	return out
}

// ReadFrame reads one framed record from r. Returns the parsed header
// fields and the raw mainLines/diffLines; the caller reconstructs the
// TroveChangeSet's semantic fields (manifest contents require a
// separately-transferred content archive for anything beyond path
// add/remove/rename).
func ReadFrame(r *bufio.Reader) (name string, oldVersion, newVersion *version.Version, mainLines, diffLines []string, err error) {
	header, err := r.ReadString('\n')
	if err != nil {
		return "", nil, nil, nil, nil, err
	}
	fields := strings.Fields(header)
	if len(fields) < 3 || fields[0] != "SRS" || fields[1] != "PKG" {
		return "", nil, nil, nil, nil, errs.Newf(errs.KindParse, "malformed changeset frame header %q", header)
	}
	kind := frameKind(fields[2])

	var mainCountIdx, diffCountIdx int
	switch kind {
	case frameAbstract, frameNew:
		// SRS PKG ABSTRACT|NEW name newVersion mainLines diffLines
		if len(fields) != 7 {
			return "", nil, nil, nil, nil, errs.Newf(errs.KindParse, "malformed %s frame header %q", kind, header)
		}
		name = fields[3]
		nv, perr := version.Thaw([]byte(fields[4]))
		if perr != nil {
			return "", nil, nil, nil, nil, errs.Wrap(errs.KindParse, perr, "new version")
		}
		newVersion = &nv
		mainCountIdx, diffCountIdx = 5, 6
	case frameChangeset:
		// SRS PKG CHANGESET name oldVersion newVersion mainLines diffLines
		if len(fields) != 8 {
			return "", nil, nil, nil, nil, errs.Newf(errs.KindParse, "malformed CHANGESET frame header %q", header)
		}
		name = fields[3]
		ov, perr := version.Thaw([]byte(fields[4]))
		if perr != nil {
			return "", nil, nil, nil, nil, errs.Wrap(errs.KindParse, perr, "old version")
		}
		oldVersion = &ov
		nv, perr := version.Thaw([]byte(fields[5]))
		if perr != nil {
			return "", nil, nil, nil, nil, errs.Wrap(errs.KindParse, perr, "new version")
		}
		newVersion = &nv
		mainCountIdx, diffCountIdx = 6, 7
	default:
		return "", nil, nil, nil, nil, errs.Newf(errs.KindParse, "unknown changeset frame kind %q", kind)
	}

	mainCount, cerr := strconv.Atoi(fields[mainCountIdx])
	if cerr != nil {
		return "", nil, nil, nil, nil, errs.Wrap(errs.KindParse, cerr, "main line count")
	}
	diffCount, cerr := strconv.Atoi(fields[diffCountIdx])
	if cerr != nil {
		return "", nil, nil, nil, nil, errs.Wrap(errs.KindParse, cerr, "diff line count")
	}

	mainLines, err = readN(r, mainCount)
	if err != nil {
		return "", nil, nil, nil, nil, err
	}
	diffLines, err = readN(r, diffCount)
	if err != nil {
		return "", nil, nil, nil, nil, err
	}
	return name, oldVersion, newVersion, mainLines, diffLines, nil
}

func readN(r *bufio.Reader, n int) ([]string, error) {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		out = append(out, strings.TrimSuffix(line, "\n"))
	}
	return out, nil
}
