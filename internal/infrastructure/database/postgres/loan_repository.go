package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"circulation-engine/internal/domain/book"
	"circulation-engine/internal/domain/loan"
	"circulation-engine/internal/domain/member"
	"circulation-engine/internal/infrastructure/monitoring"
	"circulation-engine/internal/pkg/apperrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

// DBPool is the slice of the pgx pool API the repositories use. Both the
// production pool and the pgxmock pool satisfy it.
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

// openLoanPairConstraint is the partial unique index guarding one open loan
// per (book, member) pair.
const openLoanPairConstraint = "uniq_open_loan_per_pair"

const loanColumns = `id, book_id, member_id, kind, status, issue_date, due_date, return_date,
       renewal_count, fine_amount, fine_reason, fine_paid, fine_paid_date,
       notes, processed_by, created_at, updated_at`

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return translateDBError(err, r.logger)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) GetBookForUpdate(ctx context.Context, tx pgx.Tx, bookID int64) (*book.Book, error) {
	query := `
        SELECT id, isbn, title, author, total_copies, available_copies, active, created_at, updated_at
        FROM books
        WHERE id = $1
        FOR UPDATE`

	var b book.Book
	err := tx.QueryRow(ctx, query, bookID).Scan(
		&b.BookID, &b.ISBN, &b.Title, &b.Author,
		&b.TotalCopies, &b.AvailableCopies, &b.Active, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Book not found for circulation", "book_id", bookID)
			return nil, fmt.Errorf("%w: book %d", apperrors.ErrNotFound, bookID)
		}
		r.logger.ErrorContext(ctx, "Failed to lock book row", "book_id", bookID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return &b, nil
}

func (r *LoanRepository) GetMemberForUpdate(ctx context.Context, tx pgx.Tx, memberID int64) (*member.Member, error) {
	query := `
        SELECT id, student_id, name, email, max_books_allowed, current_books_issued, active, created_at, updated_at
        FROM members
        WHERE id = $1
        FOR UPDATE`

	var m member.Member
	err := tx.QueryRow(ctx, query, memberID).Scan(
		&m.MemberID, &m.StudentID, &m.Name, &m.Email,
		&m.MaxBooksAllowed, &m.CurrentBooksIssued, &m.Active, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Member not found for circulation", "member_id", memberID)
			return nil, fmt.Errorf("%w: member %d", apperrors.ErrNotFound, memberID)
		}
		r.logger.ErrorContext(ctx, "Failed to lock member row", "member_id", memberID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return &m, nil
}

func (r *LoanRepository) HasOpenLoanForPair(ctx context.Context, tx pgx.Tx, bookID, memberID int64) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM loans
            WHERE book_id = $1 AND member_id = $2 AND status IN ('ACTIVE', 'OVERDUE')
        )`

	var exists bool
	if err := tx.QueryRow(ctx, query, bookID, memberID).Scan(&exists); err != nil {
		r.logger.ErrorContext(ctx, "Failed to check open loan for pair", "book_id", bookID, "member_id", memberID, "error", err)
		return false, translateDBError(err, r.logger)
	}
	return exists, nil
}

func (r *LoanRepository) UpdateBookCountersInTx(ctx context.Context, tx pgx.Tx, b *book.Book) error {
	sql := `
        UPDATE books
        SET total_copies = $1, available_copies = $2, updated_at = NOW()
        WHERE id = $3
          AND $2 >= 0 AND $2 <= $1`

	cmdTag, err := tx.Exec(ctx, sql, b.TotalCopies, b.AvailableCopies, b.BookID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update book counters", "book_id", b.BookID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.ErrorContext(ctx, "Book counter update rejected by stock invariant",
			"book_id", b.BookID, "total", b.TotalCopies, "available", b.AvailableCopies)
		return fmt.Errorf("%w: book %d counters would violate stock invariant", apperrors.ErrConsistency, b.BookID)
	}
	return nil
}

func (r *LoanRepository) UpdateMemberCountersInTx(ctx context.Context, tx pgx.Tx, m *member.Member) error {
	sql := `
        UPDATE members
        SET current_books_issued = $1, updated_at = NOW()
        WHERE id = $2
          AND $1 >= 0 AND $1 <= max_books_allowed`

	cmdTag, err := tx.Exec(ctx, sql, m.CurrentBooksIssued, m.MemberID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update member counters", "member_id", m.MemberID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.ErrorContext(ctx, "Member counter update rejected by quota invariant",
			"member_id", m.MemberID, "current", m.CurrentBooksIssued)
		return fmt.Errorf("%w: member %d counters would violate quota invariant", apperrors.ErrConsistency, m.MemberID)
	}
	return nil
}

func (r *LoanRepository) InsertLoanInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) (*loan.Loan, error) {
	sql := `
        INSERT INTO loans (book_id, member_id, kind, status, issue_date, due_date, renewal_count,
                           fine_amount, fine_reason, fine_paid, notes, processed_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
        RETURNING ` + loanColumns

	created, err := scanLoan(tx.QueryRow(ctx, sql,
		l.BookID, l.MemberID, l.Kind, l.Status, l.IssueDate, l.DueDate, l.RenewalCount,
		l.Fine.Amount, l.Fine.Reason, l.Fine.Paid, l.Notes, l.ProcessedBy,
	))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "book_id", l.BookID, "member_id", l.MemberID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", created.ID)
	return created, nil
}

func (r *LoanRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE id = $1
        FOR UPDATE`

	l, err := scanLoan(tx.QueryRow(ctx, query, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found for update", "loan_id", loanID)
			return nil, fmt.Errorf("%w: loan %d", apperrors.ErrNotFound, loanID)
		}
		r.logger.ErrorContext(ctx, "Failed to lock loan row", "loan_id", loanID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return l, nil
}

func (r *LoanRepository) UpdateLoanInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) error {
	sql := `
        UPDATE loans
        SET kind = $1, status = $2, due_date = $3, return_date = $4, renewal_count = $5,
            fine_amount = $6, fine_reason = $7, fine_paid = $8, fine_paid_date = $9,
            notes = $10, processed_by = $11, updated_at = NOW()
        WHERE id = $12`

	cmdTag, err := tx.Exec(ctx, sql,
		l.Kind, l.Status, l.DueDate, l.ReturnDate, l.RenewalCount,
		l.Fine.Amount, l.Fine.Reason, l.Fine.Paid, l.Fine.PaidDate,
		l.Notes, l.ProcessedBy, l.ID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan", "loan_id", l.ID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: loan %d", apperrors.ErrNotFound, l.ID)
	}
	return nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE id = $1`

	status := "success"
	startTime := time.Now()

	l, err := scanLoan(r.db.QueryRow(ctx, query, loanID))

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return l, nil
}

func (r *LoanRepository) FindLoansByMember(ctx context.Context, memberID int64) ([]*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE member_id = $1
        ORDER BY issue_date DESC, id DESC`

	rows, err := r.db.Query(ctx, query, memberID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans by member", "member_id", memberID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	defer rows.Close()

	return collectLoans(rows, r.logger)
}

func (r *LoanRepository) FindLoansByStatus(ctx context.Context, status loan.Status) ([]*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE status = $1
        ORDER BY due_date ASC, id ASC`

	rows, err := r.db.Query(ctx, query, status)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans by status", "status", status, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	defer rows.Close()

	return collectLoans(rows, r.logger)
}

func (r *LoanRepository) FindLoanIDsDueBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	query := `
        SELECT id
        FROM loans
        WHERE status = $1 AND due_date < $2
        ORDER BY id`

	rows, err := r.db.Query(ctx, query, loan.StatusActive, cutoff)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans past due", "error", err)
		return nil, translateDBError(err, r.logger)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan ID", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan ID rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return ids, nil
}

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var l loan.Loan
	err := row.Scan(
		&l.ID, &l.BookID, &l.MemberID, &l.Kind, &l.Status, &l.IssueDate, &l.DueDate, &l.ReturnDate,
		&l.RenewalCount, &l.Fine.Amount, &l.Fine.Reason, &l.Fine.Paid, &l.Fine.PaidDate,
		&l.Notes, &l.ProcessedBy, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func collectLoans(rows pgx.Rows, logger *slog.Logger) ([]*loan.Loan, error) {
	loans := make([]*loan.Loan, 0)
	for rows.Next() {
		var l loan.Loan
		err := rows.Scan(
			&l.ID, &l.BookID, &l.MemberID, &l.Kind, &l.Status, &l.IssueDate, &l.DueDate, &l.ReturnDate,
			&l.RenewalCount, &l.Fine.Amount, &l.Fine.Reason, &l.Fine.Paid, &l.Fine.PaidDate,
			&l.Notes, &l.ProcessedBy, &l.CreatedAt, &l.UpdatedAt,
		)
		if err != nil {
			logger.Error("Failed to scan loan row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		loans = append(loans, &l)
	}
	if err := rows.Err(); err != nil {
		logger.Error("Error iterating loan rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return loans, nil
}

func translateDBError(err error, contextLogger *slog.Logger) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			contextLogger.Warn("Database unique constraint violation", "detail", pgErr.Detail, "constraint", pgErr.ConstraintName)
			if strings.Contains(pgErr.ConstraintName, openLoanPairConstraint) {
				return fmt.Errorf("%w: %s", apperrors.ErrDuplicateActiveLoan, pgErr.ConstraintName)
			}
			return fmt.Errorf("%w: %s", apperrors.ErrAlreadyExists, pgErr.ConstraintName)
		case "40001", "40P01":
			// Serialization failure or deadlock; the coordinator retries.
			contextLogger.Warn("Transaction conflict", "code", pgErr.Code, "message", pgErr.Message)
			return fmt.Errorf("%w: db error code %s", apperrors.ErrConflict, pgErr.Code)
		}
		contextLogger.Error("PostgreSQL specific error", "code", pgErr.Code, "message", pgErr.Message, "detail", pgErr.Detail)
		return fmt.Errorf("%w: db error code %s", apperrors.ErrDatabase, pgErr.Code)
	}

	contextLogger.Error("Generic database error", "error", err)
	return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
}
