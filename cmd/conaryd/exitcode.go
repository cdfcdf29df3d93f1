package main

import "github.com/CourtJesterG/conary/internal/errs"

// exitCodeFor maps an error's kind to one of the §6 CLI exit codes.
func exitCodeFor(err error) int {
	switch errs.KindOf(err) {
	case errs.KindParse:
		return exitUserInputError
	case errs.KindPermissionDenied:
		return exitAuthorizationDenied
	case errs.KindNotFound:
		return exitNotFound
	case errs.KindConflict:
		return exitLabelConflict
	default:
		return exitGenericFailure
	}
}
