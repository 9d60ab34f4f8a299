package main

import (
	"ArtistExchange/internal/core"
	"ArtistExchange/internal/persistence"
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSnapshotFixture(t *testing.T) (*snapshotter, sqlmock.Sqlmock, func()) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	owner := uuid.New()
	nop := zerolog.Nop()
	x := core.NewExchange(core.Config{Owner: owner, Logger: &nop})

	s := newSnapshotter(x, persistence.NewSnapshotManager(db), 1, nil)
	s.poll = time.Millisecond
	s.wait = time.Second

	deposit := func() {
		ctx := core.WithCaller(context.Background(), owner)
		require.NoError(t, x.Deposit(ctx, owner, uint256.NewInt(5)))
	}
	return s, mock, deposit
}

func TestSnapshotter_VerifiesAfterLogCatchesUp(t *testing.T) {
	s, mock, deposit := newSnapshotFixture(t)
	deposit()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_log.snapshots")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(sequence) FROM event_log.events")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(sequence) FROM event_log.events")).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(int64(1)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE event_log.snapshots SET verified = TRUE")).
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Take(context.Background()))
	assert.Equal(t, int64(1), s.lastSeq)

	// nothing committed since: no writes
	require.NoError(t, s.Take(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotter_LeavesUnverifiedWhenLogUnreadable(t *testing.T) {
	s, mock, deposit := newSnapshotFixture(t)
	deposit()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO event_log.snapshots")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT MAX(sequence) FROM event_log.events")).
		WillReturnError(errors.New("connection reset"))

	err := s.Take(context.Background())
	require.Error(t, err)
	assert.Equal(t, int64(0), s.lastSeq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotter_SkipsEmptyState(t *testing.T) {
	s, mock, _ := newSnapshotFixture(t)

	require.NoError(t, s.Take(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
