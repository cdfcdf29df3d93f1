// Package repoctx carries the per-repository collaborators that §9's
// redesign notes replace module-level singletons with: the open store,
// the key store, the loaded config, and a logger, bundled into one value
// passed down instead of reached for through package globals.
package repoctx

import (
	"context"

	"go.uber.org/zap"

	"github.com/CourtJesterG/conary/internal/access"
	"github.com/CourtJesterG/conary/internal/config"
	"github.com/CourtJesterG/conary/internal/external"
	"github.com/CourtJesterG/conary/internal/query"
	"github.com/CourtJesterG/conary/internal/store"
)

// Context bundles the collaborators every top-level operation needs.
// Nothing in internal/ reaches for a package-level global; everything
// takes a *Context (or a narrower interface over one of its fields)
// explicitly.
type Context struct {
	Store    *store.Store
	KeyStore external.KeyStore
	LocalDb  external.LocalDb
	Config   *config.Repository
	Log      *zap.SugaredLogger

	Query  *query.Engine
	Access *access.Access
}

// Open wires a fresh Context from a loaded config: opens the store,
// builds the query engine and access evaluator over it, and rebuilds the
// access caches once so Authorize is meaningful from the first call.
func Open(ctx context.Context, cfg *config.Repository, keys external.KeyStore, localDb external.LocalDb, log *zap.SugaredLogger) (*Context, error) {
	st, err := store.Open(ctx, cfg.DataSourceName, cfg.ContentRoot.Expanded, log)
	if err != nil {
		return nil, err
	}

	qe := query.New(st, localDb)
	acc := access.New(st)
	if err := acc.Rebuild(ctx); err != nil {
		st.Close()
		return nil, err
	}
	st.SetAuthorizer(acc)

	return &Context{
		Store:    st,
		KeyStore: keys,
		LocalDb:  localDb,
		Config:   cfg,
		Log:      log,
		Query:    qe,
		Access:   acc,
	}, nil
}

// Close releases the underlying store connection.
func (c *Context) Close() error { return c.Store.Close() }
