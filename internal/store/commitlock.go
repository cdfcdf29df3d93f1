package store

import (
	"context"
	"database/sql"

	"github.com/CourtJesterG/conary/internal/errs"
)

// beginCommit acquires the in-process commit mutex (serializing
// concurrent commits within this process, per §5) and opens the backing
// transaction with a plain BeginTx. Its first statement is the dialect's
// AdvisoryLock, which for SQLite is an UPDATE of the CommitLock row; that
// first write is where SQLite takes its write lock on the database file
// for the rest of the transaction. A client/server dialect would issue a
// real cross-process advisory lock there instead.
func (s *Store) beginCommit(ctx context.Context) (*sql.Tx, func(), error) {
	s.commitMu.Lock()
	release := func() { s.commitMu.Unlock() }

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		release()
		return nil, nil, errs.Wrap(errs.KindUnknown, err, "begin commit transaction")
	}
	if _, err := tx.ExecContext(ctx, s.dialect.AdvisoryLock("commit")); err != nil {
		tx.Rollback()
		release()
		return nil, nil, errs.Wrap(errs.KindConflict, err, "acquire commit lock")
	}
	return tx, release, nil
}

func (s *Store) endCommit(ctx context.Context, tx *sql.Tx, release func(), commitErr error) error {
	defer release()
	if commitErr != nil {
		tx.Rollback()
		return commitErr
	}
	if _, err := tx.ExecContext(ctx, s.dialect.AdvisoryUnlock("commit")); err != nil {
		tx.Rollback()
		return errs.Wrap(errs.KindConflict, err, "release commit lock")
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(errs.KindUnknown, err, "commit transaction")
	}
	return nil
}
