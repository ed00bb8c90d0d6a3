package book

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("book not found")

	ErrDuplicateISBN = errors.New("a book with this ISBN already exists")
)

type Repository interface {
	Save(ctx context.Context, b *Book) error

	FindByID(ctx context.Context, bookID int64) (*Book, error)

	FindByISBN(ctx context.Context, isbn string) (*Book, error)

	FindAll(ctx context.Context, activeOnly bool) ([]*Book, error)

	SetActiveStatus(ctx context.Context, bookID int64, active bool) error
}
