package persistence_test

import (
	"ArtistExchange/internal/core"
	"ArtistExchange/internal/ledger"
	"ArtistExchange/internal/persistence"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

// ============================================================================
// Test: Tier-2 idempotency lookup
// ============================================================================

func TestPostgresIdempotencyChecker(t *testing.T) {
	db, mock := newMock(t)
	checker := persistence.NewPostgresIdempotencyChecker(db)
	query := regexp.QuoteMeta("FROM event_log.events")

	mock.ExpectQuery(query).WithArgs("TokensPurchased", "buy-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	dup, err := checker.IsDuplicate("TokensPurchased", "buy-1")
	require.NoError(t, err)
	assert.True(t, dup)

	mock.ExpectQuery(query).WithArgs("TokensPurchased", "buy-2").
		WillReturnError(sql.ErrNoRows)
	dup, err = checker.IsDuplicate("TokensPurchased", "buy-2")
	require.NoError(t, err)
	assert.False(t, dup)

	mock.ExpectQuery(query).WithArgs("TokensPurchased", "buy-3").
		WillReturnError(errors.New("connection reset"))
	_, err = checker.IsDuplicate("TokensPurchased", "buy-3")
	assert.Error(t, err)
}

// ============================================================================
// Test: Snapshot manager
// ============================================================================

func TestSnapshotManager_SaveAndLoad(t *testing.T) {
	db, mock := newMock(t)
	sm := persistence.NewSnapshotManager(db)

	snap := &core.SnapshotState{
		Sequence:        41,
		StateHash:       [32]byte{1, 2, 3},
		CreatedAt:       time.Unix(1_700_000_000, 0).UTC(),
		IdempotencyKeys: []string{"Transfer:k1"},
	}
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_log.snapshots")).
		WithArgs(sqlmock.AnyArg(), int64(41), data, snap.StateHash[:], 1, len(data), snap.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	size, err := sm.SaveSnapshot(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, len(data), size)

	mock.ExpectQuery(regexp.QuoteMeta("FROM event_log.snapshots")).
		WillReturnRows(sqlmock.NewRows([]string{"data", "format_version"}).AddRow(data, 1))
	loaded, err := sm.LoadLatestSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, int64(41), loaded.Sequence)
	assert.Equal(t, snap.StateHash, loaded.StateHash)
	assert.Equal(t, snap.IdempotencyKeys, loaded.IdempotencyKeys)
}

func TestSnapshotManager_ColdStart(t *testing.T) {
	db, mock := newMock(t)
	sm := persistence.NewSnapshotManager(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM event_log.snapshots")).
		WillReturnRows(sqlmock.NewRows([]string{"data", "format_version"}))
	snap, err := sm.LoadLatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(sequence) FROM event_log.events")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	seq, err := sm.GetLatestSequence(context.Background())
	require.NoError(t, err)
	assert.Zero(t, seq)
}

func TestSnapshotManager_RejectsUnknownFormat(t *testing.T) {
	db, mock := newMock(t)
	sm := persistence.NewSnapshotManager(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM event_log.snapshots")).
		WillReturnRows(sqlmock.NewRows([]string{"data", "format_version"}).AddRow([]byte("{}"), 7))
	_, err := sm.LoadLatestSnapshot(context.Background())
	assert.ErrorContains(t, err, "format version 7")
}

func TestSnapshotManager_LoadEventsFrom(t *testing.T) {
	db, mock := newMock(t)
	sm := persistence.NewSnapshotManager(db)
	ts := time.UnixMicro(1_700_000_000_000_000).UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM event_log.events")).WithArgs(int64(5), 100).
		WillReturnRows(sqlmock.NewRows([]string{
			"sequence", "event_type", "idempotency_key", "subject", "payload", "state_hash", "prev_hash", "timestamp",
		}).
			AddRow(int64(5), "Transfer", "k5", "asset.1", []byte(`{}`), []byte{5}, []byte{4}, ts).
			AddRow(int64(6), "Approval", "k6", "asset.1", []byte(`{}`), []byte{6}, []byte{5}, ts))

	rows, err := sm.LoadEventsFrom(context.Background(), 5, 100)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Approval", rows[1].EventType)
	assert.Equal(t, []byte{5}, rows[1].PrevHash)
}

// ============================================================================
// Test: Migrator
// ============================================================================

var testMigrations = fstest.MapFS{
	"000001_init.up.sql":   {Data: []byte("CREATE TABLE a (id INT)")},
	"000001_init.down.sql": {Data: []byte("DROP TABLE a")},
	"000002_more.up.sql":   {Data: []byte("CREATE TABLE b (id INT)")},
	"000002_more.down.sql": {Data: []byte("DROP TABLE b")},
	"README.md":            {Data: []byte("not a migration")},
}

func TestMigrator_UpAppliesPending(t *testing.T) {
	db, mock := newMock(t)
	m := persistence.NewMigrator(db, testMigrations)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS public.schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM public.schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("000001"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO public.schema_migrations")).
		WithArgs("000002", "000002_more.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMigrator_UpRollsBackFailedMigration(t *testing.T) {
	db, mock := newMock(t)
	m := persistence.NewMigrator(db, testMigrations)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS public.schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM public.schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id INT)")).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	n, err := m.Up(context.Background())
	assert.ErrorContains(t, err, "000001_init.up.sql")
	assert.Zero(t, n)
}

func TestMigrator_Down(t *testing.T) {
	db, mock := newMock(t)
	m := persistence.NewMigrator(db, testMigrations)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS public.schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, filename FROM public.schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "filename"}).AddRow("000002", "000002_more.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE b")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM public.schema_migrations")).
		WithArgs("000002").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rolledBack, err := m.Down(context.Background())
	require.NoError(t, err)
	assert.True(t, rolledBack)
}

func TestEmbeddedMigrationsArePending(t *testing.T) {
	db, mock := newMock(t)
	m := persistence.NewMigrator(db, persistence.EmbeddedMigrations())

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS public.schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM public.schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	pending, err := m.Pending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"000001_event_log.up.sql",
		"000002_snapshots.up.sql",
		"000003_artist_metadata.up.sql",
	}, pending)
}

// ============================================================================
// Test: Artist metadata
// ============================================================================

func TestMetadataStore_Get(t *testing.T) {
	db, mock := newMock(t)
	store := persistence.NewMetadataStore(db, "postgres")
	created := time.Unix(1_700_000_000, 0).UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM public.artist_metadata")).WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"asset_id", "name", "description", "image_url", "created_at"}).
			AddRow(int64(1), "Drake", "Toronto", "https://img/drake.png", created))

	m, err := store.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Drake", m.Name)
	assert.Equal(t, created, m.CreatedAt)

	mock.ExpectQuery(regexp.QuoteMeta("FROM public.artist_metadata")).WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"asset_id", "name", "description", "image_url", "created_at"}))
	_, err = store.Get(context.Background(), 2)
	assert.ErrorIs(t, err, persistence.ErrMetadataNotFound)
}

func TestMetadataStore_List(t *testing.T) {
	db, mock := newMock(t)
	store := persistence.NewMetadataStore(db, "postgres")
	created := time.Unix(1_700_000_000, 0).UTC()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE asset_id IN ($1, $2)")).WithArgs(int64(1), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"asset_id", "name", "description", "image_url", "created_at"}).
			AddRow(int64(3), "Adele", "", "", created))

	got, err := store.List(context.Background(), []ledger.AssetID{1, 3})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Adele", got[3].Name)

	empty, err := store.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
