// Package store implements the low-level persistence layer: CRUD over
// the schema catalog behind database/sql, the content store, the
// process-wide key cache, and the single-writer commit transaction.
package store

import (
	"context"
	"database/sql"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
	"go.uber.org/zap"

	"github.com/CourtJesterG/conary/internal/errs"
	"github.com/CourtJesterG/conary/internal/external"
	"github.com/CourtJesterG/conary/internal/migration"
	"github.com/CourtJesterG/conary/internal/schema"
)

// Authorizer is the narrow access-control collaborator CommitChangeset,
// MarkRemoved, and HideTrove/UnhideTrove check before mutating.
// *access.Access satisfies it; Store depends only on this interface
// rather than importing internal/access directly, since internal/access
// itself imports internal/store for row/identity types and a direct
// import back would cycle.
type Authorizer interface {
	// Authorize enforces canWrite/canRemove over an existing instance,
	// per RoleInstanceCache.
	Authorize(ctx context.Context, role string, instanceID int64, writeRequired, removeRequired bool) error
	// AuthorizeCommit enforces canWrite for a trove that does not exist
	// yet (a new version being committed), matched by name/label against
	// Permissions directly rather than the instance-keyed bitmap.
	AuthorizeCommit(ctx context.Context, role, name, label string) error
}

// Store is the repository's persistence engine: a single *sql.DB plus
// the dialect profile it was opened against, a process-wide key cache,
// and the in-process commit lock that serializes writers.
type Store struct {
	db      *sql.DB
	dialect schema.DialectProfile
	log     *zap.SugaredLogger

	keyCache *lru.Cache[string, external.PublicKey]

	commitMu sync.Mutex

	// contentRoot is the filesystem root of the sharded content store
	// (§4's "filesystem with sharded directories is the reference
	// layout" contract). Empty disables content I/O for metadata-only
	// uses of the Store (e.g. query-layer tests).
	contentRoot string

	// auth is consulted by write/remove operations before they mutate,
	// per §4.8. Nil means access control is not wired up (embedded or
	// test use of the Store outside repoctx): every operation is
	// allowed, matching how repoctx is the only production caller of
	// SetAuthorizer.
	auth Authorizer
}

// SetAuthorizer wires a's canWrite/canRemove checks into every
// subsequent CommitChangeset/MarkRemoved/HideTrove/UnhideTrove call.
func (s *Store) SetAuthorizer(a Authorizer) {
	s.auth = a
}

// Open opens (and, if empty, initializes) a SQLite-backed repository at
// dataSourceName, with file content blobs rooted at contentRoot. Schema
// creation is idempotent: an existing database only gains missing
// tables. Open then runs migration.Migrate, which brings an older schema
// version up to the current one.
func Open(ctx context.Context, dataSourceName, contentRoot string, log *zap.SugaredLogger) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, errs.Wrap(errs.KindSchemaVersion, err, "open database")
	}
	db.SetMaxOpenConns(1) // single-writer, many-reader model (§5); SQLite serializes writers anyway

	cache, err := lru.New[string, external.PublicKey](1024)
	if err != nil {
		return nil, errs.Wrap(errs.KindUnknown, err, "create key cache")
	}

	s := &Store{db: db, dialect: schema.SQLiteDialect{}, log: log, keyCache: cache, contentRoot: contentRoot}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := migration.Migrate(ctx, db, s, log); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	existing, err := schema.LoadSchema(ctx, s.db, s.dialect)
	if err != nil {
		return err
	}
	return schema.CreateSchema(ctx, s.db, s.dialect, existing)
}

// Close releases the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// InvalidateKeyCache drops fingerprint from the process-wide key cache,
// per §5's "invalidation is explicit on key addition/removal."
func (s *Store) InvalidateKeyCache(fingerprint string) {
	s.keyCache.Remove(fingerprint)
}
