package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-admin-console/internal/models"
)

var journalColumns = []string{"id", "page", "action", "record_id", "actor_id", "outcome", "message", "duration_ms", "created_at"}

func newJournalRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

type fakeQueryObserver struct{ labels []string }

func (f *fakeQueryObserver) ObserveJournalQuery(label string, _ time.Duration) {
	f.labels = append(f.labels, label)
}

func TestDispatchJournalRecordAssignsIDs(t *testing.T) {
	db, mock, cleanup := newJournalRepoMock(t)
	defer cleanup()

	obs := &fakeQueryObserver{}
	repo := NewDispatchJournalRepository(db, obs)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dispatch_journal")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.DispatchEntry{Page: "payments", Action: "approve", RecordID: "p1", ActorID: "u1", Outcome: models.DispatchOutcomeSucceeded}
	require.NoError(t, repo.Record(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())
	require.Equal(t, []string{"record"}, obs.labels)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchJournalListFilters(t *testing.T) {
	db, mock, cleanup := newJournalRepoMock(t)
	defer cleanup()

	repo := NewDispatchJournalRepository(db, nil)
	rows := sqlmock.NewRows(journalColumns).
		AddRow("j1", "users", "delete", "u9", "admin", "CONFLICT", "User is referenced in: payments", 12, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, page, action, record_id") + ".*WHERE page = \\$1 AND outcome = \\$2 ORDER BY created_at DESC LIMIT 50 OFFSET 0").
		WithArgs("users", "CONFLICT").
		WillReturnRows(rows)

	list, err := repo.List(context.Background(), models.DispatchFilter{Page: "users", Outcome: models.DispatchOutcomeConflict})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "j1", list[0].ID)
	require.NotNil(t, list[0].Message)
	require.Equal(t, "User is referenced in: payments", *list[0].Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchJournalCountByOutcome(t *testing.T) {
	db, mock, cleanup := newJournalRepoMock(t)
	defer cleanup()

	repo := NewDispatchJournalRepository(db, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT outcome, COUNT(*) AS count FROM dispatch_journal")).
		WithArgs("payments").
		WillReturnRows(sqlmock.NewRows([]string{"outcome", "count"}).AddRow("FAILED", 2).AddRow("SUCCEEDED", 7))

	counts, err := repo.CountByOutcome(context.Background(), "payments")
	require.NoError(t, err)
	require.Equal(t, []OutcomeCount{{Outcome: models.DispatchOutcomeFailed, Count: 2}, {Outcome: models.DispatchOutcomeSucceeded, Count: 7}}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatchJournalPurge(t *testing.T) {
	db, mock, cleanup := newJournalRepoMock(t)
	defer cleanup()

	repo := NewDispatchJournalRepository(db, nil)
	cutoff := time.Now().Add(-24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM dispatch_journal WHERE created_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.PurgeOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
