package trove

import "github.com/CourtJesterG/conary/internal/errs"

func duplicatePathError(path string) error {
	return errs.Newf(errs.KindConflict, "path %q already present under a different pathId", path)
}
