package postgres

import (
	"context"
	"testing"
	"time"

	"circulation-engine/internal/domain/member"
	"circulation-engine/internal/pkg/apperrors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var memberColumnNames = []string{
	"id", "student_id", "name", "email", "max_books_allowed", "current_books_issued", "active", "created_at", "updated_at",
}

func TestMemberRepositorySaveInsertDuplicateStudentID(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewMemberRepository(mockPool, testLogger)
	m := &member.Member{StudentID: "S-1001", Name: "Ada Lovelace", MaxBooksAllowed: 5, Active: true}

	mockPool.ExpectQuery(`INSERT INTO members`).
		WithArgs(m.StudentID, m.Name, m.Email, m.MaxBooksAllowed, m.CurrentBooksIssued, m.Active).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "members_student_id_key"})

	err = repo.Save(context.Background(), m)

	assert.ErrorIs(t, err, member.ErrDuplicateStudentID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMemberRepositoryFindByID(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewMemberRepository(mockPool, testLogger)
	now := time.Now()

	mockPool.ExpectQuery(`FROM members\s+WHERE id = \$1`).
		WithArgs(int64(202)).
		WillReturnRows(pgxmock.NewRows(memberColumnNames).
			AddRow(int64(202), "S-1001", "Ada Lovelace", "ada@school.example", 5, 2, true, now, now))

	m, err := repo.FindByID(context.Background(), 202)

	require.NoError(t, err)
	assert.Equal(t, "S-1001", m.StudentID)
	assert.Equal(t, 2, m.CurrentBooksIssued)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMemberRepositoryCountOpenLoans(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewMemberRepository(mockPool, testLogger)

	mockPool.ExpectQuery(`SELECT COUNT\(\*\)\s+FROM loans`).
		WithArgs(int64(202)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountOpenLoans(context.Background(), 202)

	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestMemberRepositoryFindByStudentIDNotFound(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	repo := NewMemberRepository(mockPool, testLogger)

	mockPool.ExpectQuery(`FROM members\s+WHERE student_id = \$1`).
		WithArgs("S-9999").
		WillReturnRows(pgxmock.NewRows(memberColumnNames))

	_, err = repo.FindByStudentID(context.Background(), "S-9999")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
