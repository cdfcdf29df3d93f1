package changeset

import (
	"fmt"
	"strings"

	"github.com/CourtJesterG/conary/internal/trove"
)

// FileChange is the per-file entry of a TroveChangeSet: either an
// absolute file-stream snapshot, or a byte-level diff against a basis
// stream identified by OldFileID.
type FileChange struct {
	OldFileID *trove.FileID // nil for a newly added file
	NewFileID trove.FileID
	Diff      []byte // either the absolute frozen stream, or a diff payload
	IsDiff    bool
}

// diffFileStream computes a FileChange between an old and new
// FileStream sharing the same path. When the two streams are textually
// similar (their Tags/ContentsInfo lines overlap), the diff carries
// unified-diff lines over those lines rather than the full new stream;
// otherwise it falls back to an absolute snapshot of the new stream.
func diffFileStream(oldID *trove.FileID, newID trove.FileID, oldStream, newStream FileStream) FileChange {
	oldLines := streamLines(oldStream)
	newLines := streamLines(newStream)
	unified := unifiedDiff(oldLines, newLines)

	// A diff is only worth carrying when it is materially smaller than
	// shipping the new stream outright.
	absolute := newStream.Freeze()
	if len(unified) > 0 {
		joined := strings.Join(unified, "\n")
		if len(joined) < len(absolute) {
			return FileChange{OldFileID: oldID, NewFileID: newID, Diff: []byte(joined), IsDiff: true}
		}
	}
	return FileChange{OldFileID: oldID, NewFileID: newID, Diff: absolute, IsDiff: false}
}

func streamLines(s FileStream) []string {
	var lines []string
	for _, t := range s.Tags {
		lines = append(lines, "tag:"+t)
	}
	if len(s.ContentsInfo) > 0 {
		lines = append(lines, strings.Split(string(s.ContentsInfo), "\n")...)
	}
	return lines
}

// unifiedDiff produces minimal "+"/"-"/" " prefixed lines turning a into
// b, via a classic longest-common-subsequence table. Good enough for the
// small metadata line-sets file-streams produce; not intended for large
// binary content (that ships as an absolute stream instead).
func unifiedDiff(a, b []string) []string {
	n, m := len(a), len(b)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var out []string
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			out = append(out, fmt.Sprintf(" %s", a[i]))
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			out = append(out, fmt.Sprintf("-%s", a[i]))
			i++
		default:
			out = append(out, fmt.Sprintf("+%s", b[j]))
			j++
		}
	}
	for ; i < n; i++ {
		out = append(out, fmt.Sprintf("-%s", a[i]))
	}
	for ; j < m; j++ {
		out = append(out, fmt.Sprintf("+%s", b[j]))
	}
	return out
}

// applyUnifiedDiff reconstructs the new line set from a base line set
// and a diff produced by unifiedDiff.
func applyUnifiedDiff(base []string, diff []string) []string {
	var out []string
	bi := 0
	for _, d := range diff {
		if len(d) == 0 {
			continue
		}
		switch d[0] {
		case '-':
			bi++
		case '+':
			out = append(out, d[1:])
		default:
			if bi < len(base) {
				out = append(out, base[bi])
				bi++
			}
		}
	}
	for ; bi < len(base); bi++ {
		out = append(out, base[bi])
	}
	return out
}
