package loan

import (
	"context"
	"time"

	"circulation-engine/internal/domain/book"
	"circulation-engine/internal/domain/member"
	"github.com/jackc/pgx/v5"
)

// Repository persists loans and provides the row-locked reads the
// coordinator needs to run each circulation event as one serialized
// read-check-write sequence.
type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error

	GetBookForUpdate(ctx context.Context, tx pgx.Tx, bookID int64) (*book.Book, error)

	GetMemberForUpdate(ctx context.Context, tx pgx.Tx, memberID int64) (*member.Member, error)

	HasOpenLoanForPair(ctx context.Context, tx pgx.Tx, bookID, memberID int64) (bool, error)

	UpdateBookCountersInTx(ctx context.Context, tx pgx.Tx, b *book.Book) error

	UpdateMemberCountersInTx(ctx context.Context, tx pgx.Tx, m *member.Member) error

	InsertLoanInTx(ctx context.Context, tx pgx.Tx, l *Loan) (*Loan, error)

	GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error)

	UpdateLoanInTx(ctx context.Context, tx pgx.Tx, l *Loan) error

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	FindLoansByMember(ctx context.Context, memberID int64) ([]*Loan, error)

	FindLoansByStatus(ctx context.Context, status Status) ([]*Loan, error)

	// FindLoanIDsDueBefore lists active loans whose due date has passed;
	// input to the overdue sweep.
	FindLoanIDsDueBefore(ctx context.Context, cutoff time.Time) ([]int64, error)
}
