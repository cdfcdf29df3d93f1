// Package errs defines the error taxonomy shared by every component of the
// trove/changeset store: a small set of kinds that callers dispatch on
// (retry, surface, abort) rather than free-form error strings.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one of the error taxonomy entries from the store's error handling
// design: callers switch on Kind, not on error string content.
type Kind int

const (
	// KindUnknown is the zero value; never returned deliberately.
	KindUnknown Kind = iota
	// KindParse marks malformed version, flavor, dependency, config, or
	// trove-spec input. Never retried.
	KindParse
	// KindNotFound marks a missing trove, file, key, or path.
	KindNotFound
	// KindConflict marks a schema FK violation, duplicate unique key, or
	// label collision at clone time.
	KindConflict
	// KindPermissionDenied marks a role lacking canWrite/canRemove/admin.
	KindPermissionDenied
	// KindIntegrity marks a digest mismatch, failed signature, or a
	// changeset diff that does not apply. Always fatal to the transaction.
	KindIntegrity
	// KindTransport marks a failed remote call; retried by the query layer.
	KindTransport
	// KindSchemaVersion marks a database older than the minimum supported
	// major, or newer than the running code supports.
	KindSchemaVersion
	// KindMigration marks a failed migration step.
	KindMigration
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPermissionDenied:
		return "permission_denied"
	case KindIntegrity:
		return "integrity"
	case KindTransport:
		return "transport"
	case KindSchemaVersion:
		return "schema_version"
	case KindMigration:
		return "migration"
	default:
		return "unknown"
	}
}

// kindError carries a Kind alongside the wrapped error so errors.Cause and
// errors.Is both keep working through pkg/errors wrapping.
type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return fmt.Sprintf("%s: %s", e.kind, e.err) }
func (e *kindError) Unwrap() error { return e.err }
func (e *kindError) Cause() error  { return e.err }

// New creates an error of the given kind from a message.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// Newf creates an error of the given kind from a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to an existing error, preserving its chain.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(err, msg)}
}

// Wrapf attaches a kind to an existing error with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrapf(err, format, args...)}
}

// Is reports whether err (or anything in its chain) carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf extracts the Kind from err, walking the wrap chain. Returns
// KindUnknown if err carries no kind.
func KindOf(err error) Kind {
	for err != nil {
		if ke, ok := err.(*kindError); ok {
			return ke.kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return KindUnknown
		}
		err = u.Unwrap()
	}
	return KindUnknown
}
