package main

import (
	"bytes"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	prev := openDB
	openDB = func(string) (*sql.DB, error) { return db, nil }
	t.Cleanup(func() { openDB = prev })
	return mock
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatus_ListsPending(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS public.schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM public.schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("000001"))
	mock.ExpectClose()

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "2 pending migration(s)")
	assert.Contains(t, out, "000002_snapshots.up.sql")
	assert.Contains(t, out, "000003_artist_metadata.up.sql")
	assert.NotContains(t, out, "000001_event_log.up.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDown_NothingToRollBack(t *testing.T) {
	mock := withMockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS public.schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version, filename FROM public.schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version", "filename"}))
	mock.ExpectClose()

	out, err := execute(t, "down")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to roll back")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUnknownCommand(t *testing.T) {
	_, err := execute(t, "sideways")
	assert.Error(t, err)
}
