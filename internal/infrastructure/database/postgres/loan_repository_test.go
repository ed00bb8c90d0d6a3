package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"circulation-engine/internal/domain/book"
	"circulation-engine/internal/domain/loan"
	"circulation-engine/internal/pkg/apperrors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var loanColumnNames = []string{
	"id", "book_id", "member_id", "kind", "status", "issue_date", "due_date", "return_date",
	"renewal_count", "fine_amount", "fine_reason", "fine_paid", "fine_paid_date",
	"notes", "processed_by", "created_at", "updated_at",
}

func loanRow(id int64, status loan.Status, dueDate time.Time) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows(loanColumnNames).AddRow(
		id, int64(101), int64(202), loan.KindIssue, status, now.AddDate(0, 0, -14), dueDate, (*time.Time)(nil),
		0, decimal.Zero, loan.FineReasonNone, false, (*time.Time)(nil),
		"", "librarian-1", now, now,
	)
}

func TestLoanRepositoryGetLoanByID(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewLoanRepository(mockPool, testLogger)
	ctx := context.Background()
	due := time.Now().AddDate(0, 0, 7)

	mockPool.ExpectQuery(`FROM loans\s+WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(loanRow(1, loan.StatusActive, due))

	l, err := repo.GetLoanByID(ctx, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(1), l.ID)
	assert.Equal(t, loan.StatusActive, l.Status)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLoanRepositoryGetLoanByIDNotFound(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewLoanRepository(mockPool, testLogger)

	mockPool.ExpectQuery(`FROM loans\s+WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnRows(pgxmock.NewRows(loanColumnNames))

	_, err = repo.GetLoanByID(context.Background(), 99)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLoanRepositoryGetLoanForUpdate(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewLoanRepository(mockPool, testLogger)
	ctx := context.Background()
	due := time.Now().AddDate(0, 0, -2)

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`WHERE id = \$1\s+FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(loanRow(1, loan.StatusActive, due))
	mockPool.ExpectRollback()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	l, err := repo.GetLoanForUpdate(ctx, tx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(101), l.BookID)

	require.NoError(t, repo.RollbackTx(ctx, tx))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLoanRepositoryHasOpenLoanForPair(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewLoanRepository(mockPool, testLogger)
	ctx := context.Background()

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(101), int64(202)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mockPool.ExpectRollback()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	open, err := repo.HasOpenLoanForPair(ctx, tx, 101, 202)
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, repo.RollbackTx(ctx, tx))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLoanRepositoryInsertLoanInTx(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewLoanRepository(mockPool, testLogger)
	ctx := context.Background()
	now := time.Now()
	l := loan.NewLoan(101, 202, "", "librarian-1", now)

	mockPool.ExpectBegin()
	mockPool.ExpectQuery(`INSERT INTO loans`).
		WithArgs(l.BookID, l.MemberID, l.Kind, l.Status, l.IssueDate, l.DueDate, l.RenewalCount,
			l.Fine.Amount, l.Fine.Reason, l.Fine.Paid, l.Notes, l.ProcessedBy).
		WillReturnRows(loanRow(7, loan.StatusActive, l.DueDate))
	mockPool.ExpectCommit()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	created, err := repo.InsertLoanInTx(ctx, tx, l)
	require.NoError(t, err)
	assert.Equal(t, int64(7), created.ID)

	require.NoError(t, repo.CommitTx(ctx, tx))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLoanRepositoryUpdateBookCountersRejectsInvariantViolation(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewLoanRepository(mockPool, testLogger)
	ctx := context.Background()

	mockPool.ExpectBegin()
	mockPool.ExpectExec(`UPDATE books`).
		WithArgs(3, 4, int64(101)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectRollback()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)

	b := &book.Book{BookID: 101, TotalCopies: 3, AvailableCopies: 4}

	updateErr := repo.UpdateBookCountersInTx(ctx, tx, b)

	assert.ErrorIs(t, updateErr, apperrors.ErrConsistency)
	require.NoError(t, repo.RollbackTx(ctx, tx))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLoanRepositoryFindLoanIDsDueBefore(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewLoanRepository(mockPool, testLogger)
	ctx := context.Background()
	cutoff := time.Now()

	mockPool.ExpectQuery(`WHERE status = \$1 AND due_date < \$2`).
		WithArgs(loan.StatusActive, cutoff).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(3)))

	ids, err := repo.FindLoanIDsDueBefore(ctx, cutoff)

	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestTranslateDBError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{
			name: "unique violation on the open pair index",
			in:   &pgconn.PgError{Code: "23505", ConstraintName: openLoanPairConstraint},
			want: apperrors.ErrDuplicateActiveLoan,
		},
		{
			name: "other unique violation",
			in:   &pgconn.PgError{Code: "23505", ConstraintName: "books_isbn_key"},
			want: apperrors.ErrAlreadyExists,
		},
		{
			name: "serialization failure",
			in:   &pgconn.PgError{Code: "40001"},
			want: apperrors.ErrConflict,
		},
		{
			name: "deadlock detected",
			in:   &pgconn.PgError{Code: "40P01"},
			want: apperrors.ErrConflict,
		},
		{
			name: "other pg error",
			in:   &pgconn.PgError{Code: "53300"},
			want: apperrors.ErrDatabase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translateDBError(tt.in, testLogger), tt.want)
		})
	}
}
