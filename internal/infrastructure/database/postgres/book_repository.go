package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"circulation-engine/internal/domain/book"
	"circulation-engine/internal/infrastructure/monitoring"
	"circulation-engine/internal/pkg/apperrors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const bookColumns = `id, isbn, title, author, total_copies, available_copies, active, created_at, updated_at`

type BookRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ book.Repository = (*BookRepository)(nil)

func NewBookRepository(db DBPool, logger *slog.Logger) *BookRepository {
	return &BookRepository{db: db, logger: logger.With("component", "BookRepository")}
}

// Save inserts the book when it has no ID yet and updates the catalog fields
// otherwise. Circulation counters are written through the loan repository
// inside circulation transactions, not here.
func (r *BookRepository) Save(ctx context.Context, b *book.Book) error {
	if b.BookID == 0 {
		return r.insert(ctx, b)
	}
	return r.update(ctx, b)
}

func (r *BookRepository) insert(ctx context.Context, b *book.Book) error {
	sql := `
        INSERT INTO books (isbn, title, author, total_copies, available_copies, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	startTime := time.Now()
	err := r.db.QueryRow(ctx, sql,
		b.ISBN, b.Title, b.Author, b.TotalCopies, b.AvailableCopies, b.Active,
	).Scan(&b.BookID, &b.CreatedAt, &b.UpdatedAt)
	monitoring.RecordDBQuery("InsertBook", queryStatus(err), time.Since(startTime))

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			r.logger.WarnContext(ctx, "Duplicate ISBN", "isbn", b.ISBN, "constraint", pgErr.ConstraintName)
			return fmt.Errorf("%w: %s", book.ErrDuplicateISBN, b.ISBN)
		}
		r.logger.ErrorContext(ctx, "Failed to insert book", "isbn", b.ISBN, "error", err)
		return translateDBError(err, r.logger)
	}
	r.logger.InfoContext(ctx, "Book created in DB", "book_id", b.BookID, "isbn", b.ISBN)
	return nil
}

func (r *BookRepository) update(ctx context.Context, b *book.Book) error {
	sql := `
        UPDATE books
        SET isbn = $1, title = $2, author = $3, total_copies = $4, available_copies = $5, active = $6, updated_at = NOW()
        WHERE id = $7`

	startTime := time.Now()
	cmdTag, err := r.db.Exec(ctx, sql,
		b.ISBN, b.Title, b.Author, b.TotalCopies, b.AvailableCopies, b.Active, b.BookID,
	)
	monitoring.RecordDBQuery("UpdateBook", queryStatus(err), time.Since(startTime))

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", book.ErrDuplicateISBN, b.ISBN)
		}
		r.logger.ErrorContext(ctx, "Failed to update book", "book_id", b.BookID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: book %d", apperrors.ErrNotFound, b.BookID)
	}
	return nil
}

func (r *BookRepository) FindByID(ctx context.Context, bookID int64) (*book.Book, error) {
	query := `
        SELECT ` + bookColumns + `
        FROM books
        WHERE id = $1`

	startTime := time.Now()
	b, err := r.scanBook(r.db.QueryRow(ctx, query, bookID))
	monitoring.RecordDBQuery("GetBookByID", queryStatus(err), time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Book not found", "book_id", bookID)
			return nil, fmt.Errorf("%w: book %d", apperrors.ErrNotFound, bookID)
		}
		r.logger.ErrorContext(ctx, "Failed to get book by ID", "book_id", bookID, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return b, nil
}

func (r *BookRepository) FindByISBN(ctx context.Context, isbn string) (*book.Book, error) {
	query := `
        SELECT ` + bookColumns + `
        FROM books
        WHERE isbn = $1`

	b, err := r.scanBook(r.db.QueryRow(ctx, query, isbn))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: ISBN %s", apperrors.ErrNotFound, isbn)
		}
		r.logger.ErrorContext(ctx, "Failed to get book by ISBN", "isbn", isbn, "error", err)
		return nil, translateDBError(err, r.logger)
	}
	return b, nil
}

func (r *BookRepository) FindAll(ctx context.Context, activeOnly bool) ([]*book.Book, error) {
	query := `
        SELECT ` + bookColumns + `
        FROM books
        WHERE ($1 = false OR active = true)
        ORDER BY title ASC, id ASC`

	rows, err := r.db.Query(ctx, query, activeOnly)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query books", "error", err)
		return nil, translateDBError(err, r.logger)
	}
	defer rows.Close()

	books := make([]*book.Book, 0)
	for rows.Next() {
		var b book.Book
		err := rows.Scan(
			&b.BookID, &b.ISBN, &b.Title, &b.Author,
			&b.TotalCopies, &b.AvailableCopies, &b.Active, &b.CreatedAt, &b.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan book row", "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		books = append(books, &b)
	}
	if err := rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating book rows", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return books, nil
}

func (r *BookRepository) SetActiveStatus(ctx context.Context, bookID int64, active bool) error {
	sql := `
        UPDATE books
        SET active = $1, updated_at = NOW()
        WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, sql, active, bookID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to set book active status", "book_id", bookID, "error", err)
		return translateDBError(err, r.logger)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: book %d", apperrors.ErrNotFound, bookID)
	}
	r.logger.InfoContext(ctx, "Book active status updated", "book_id", bookID, "active", active)
	return nil
}

func (r *BookRepository) scanBook(row pgx.Row) (*book.Book, error) {
	var b book.Book
	err := row.Scan(
		&b.BookID, &b.ISBN, &b.Title, &b.Author,
		&b.TotalCopies, &b.AvailableCopies, &b.Active, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func queryStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
