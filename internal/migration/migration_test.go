package migration

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/CourtJesterG/conary/internal/schema"
	"github.com/CourtJesterG/conary/internal/trove"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	existing, err := schema.LoadSchema(context.Background(), db, schema.SQLiteDialect{})
	require.NoError(t, err)
	require.NoError(t, schema.CreateSchema(context.Background(), db, schema.SQLiteDialect{}, existing))
	return db
}

type fakeContent struct {
	blobs map[trove.FileID][]byte
}

func (f *fakeContent) HasFileContents(id trove.FileID) bool { _, ok := f.blobs[id]; return ok }
func (f *fakeContent) GetFileContents(ctx context.Context, id trove.FileID) ([]byte, error) {
	return f.blobs[id], nil
}

func TestMigrateFreshDatabaseStampsCurrentVersion(t *testing.T) {
	db := openTestDB(t)
	v, err := Migrate(context.Background(), db, nil, nil)
	require.NoError(t, err)
	require.Equal(t, currentVersion(), v)

	stored, err := getVersion(context.Background(), db)
	require.NoError(t, err)
	require.Equal(t, v, stored)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	v1, err := Migrate(ctx, db, nil, nil)
	require.NoError(t, err)

	v2, err := Migrate(ctx, db, nil, nil)
	require.NoError(t, err)
	require.Equal(t, v1, v2)
}

func TestMigrateRejectsOlderThanMinSupportedMajor(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, setVersion(ctx, db, SchemaVersion{Major: MinSupportedMajor - 1, Minor: 0}))

	_, err := Migrate(ctx, db, nil, nil)
	require.Error(t, err)
}

func TestMigrateNoopWhenDatabaseNewerThanCode(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	newer := SchemaVersion{Major: currentVersion().Major + 1, Minor: 0}
	require.NoError(t, setVersion(ctx, db, newer))

	v, err := Migrate(ctx, db, nil, nil)
	require.NoError(t, err)
	require.Equal(t, newer, v)

	stored, err := getVersion(ctx, db)
	require.NoError(t, err)
	require.Equal(t, newer, stored)
}

func TestMigrateRunsFromMinSupportedToCurrent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, setVersion(ctx, db, SchemaVersion{Major: MinSupportedMajor, Minor: 0}))

	v, err := Migrate(ctx, db, nil, nil)
	require.NoError(t, err)
	require.Equal(t, currentVersion(), v)
}

func TestMigrateStripsRedirectProvides(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, setVersion(ctx, db, SchemaVersion{Major: MinSupportedMajor, Minor: 0}))

	_, err := db.ExecContext(ctx, "INSERT INTO "+schema.TableItems+" (item) VALUES ('redirect:runtime')")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO "+schema.TableVersions+" (version) VALUES ('/example.com@ns:1/1-1-1')")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO "+schema.TableFlavors+" (flavor) VALUES ('')")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `
		INSERT INTO `+schema.TableInstances+` (itemId, versionId, flavorId, isPresent, troveType)
		VALUES (1, 1, 1, 1, ?)`, int(trove.TypeRedirect))
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO "+schema.TableDependencies+" (class, name, flags) VALUES ('trove', 'x', '')")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO "+schema.TableProvides+" (instanceId, depId) VALUES (1, 1)")
	require.NoError(t, err)

	_, err = Migrate(ctx, db, nil, nil)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+schema.TableProvides).Scan(&count))
	require.Equal(t, 0, count)
}

func TestBackfillFileStreamSHA1UsesStoredContent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, setVersion(ctx, db, SchemaVersion{Major: MinSupportedMajor, Minor: 0}))

	var fileID trove.FileID
	fileID[0] = 0xAB
	blob := []byte("hello world")
	content := &fakeContent{blobs: map[trove.FileID][]byte{fileID: blob}}

	_, err := db.ExecContext(ctx, "INSERT INTO "+schema.TableFileStreams+" (fileId) VALUES (?)", fileID[:])
	require.NoError(t, err)

	_, err = Migrate(ctx, db, content, nil)
	require.NoError(t, err)

	want := sha1.Sum(blob)
	var got []byte
	require.NoError(t, db.QueryRowContext(ctx, "SELECT sha1 FROM "+schema.TableFileStreams+" WHERE fileId = ?", fileID[:]).Scan(&got))
	require.Equal(t, want[:], got)
}
