package book

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"circulation-engine/internal/pkg/apperrors"
)

type Service interface {
	AddBook(ctx context.Context, isbn, title, author string, totalCopies int) (*Book, error)
	GetBook(ctx context.Context, bookID int64) (*Book, error)
	ListBooks(ctx context.Context, activeOnly bool) ([]*Book, error)
	UpdateStock(ctx context.Context, bookID int64, totalCopies int) (*Book, error)
	DeactivateBook(ctx context.Context, bookID int64) error
	ReactivateBook(ctx context.Context, bookID int64) error
}

var _ Service = (*service)(nil)

type service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) Service {
	if repo == nil {
		panic("book repository cannot be nil")
	}
	return &service{
		repo:   repo,
		logger: logger.With(slog.String("component", "bookService")),
	}
}

func (s *service) AddBook(ctx context.Context, isbn, title, author string, totalCopies int) (*Book, error) {
	s.logger.InfoContext(ctx, "Adding book to catalog", "isbn", isbn)

	isbn = strings.TrimSpace(isbn)
	title = strings.TrimSpace(title)
	if isbn == "" {
		return nil, apperrors.NewValidationError("isbn", "cannot be empty")
	}
	if title == "" {
		return nil, apperrors.NewValidationError("title", "cannot be empty")
	}

	b, err := NewBook(isbn, title, strings.TrimSpace(author), totalCopies)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, b); err != nil {
		if errors.Is(err, ErrDuplicateISBN) || errors.Is(err, apperrors.ErrAlreadyExists) {
			s.logger.WarnContext(ctx, "Duplicate ISBN rejected", "isbn", isbn)
			return nil, fmt.Errorf("%w: ISBN %s", ErrDuplicateISBN, isbn)
		}
		s.logger.ErrorContext(ctx, "Repository failed to save new book", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new book: %w", err)
	}

	s.logger.InfoContext(ctx, "Book added", "bookID", b.BookID)
	return b, nil
}

func (s *service) GetBook(ctx context.Context, bookID int64) (*Book, error) {
	b, err := s.repo.FindByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: book %d", apperrors.ErrNotFound, bookID)
		}
		s.logger.ErrorContext(ctx, "Repository error finding book", "bookID", bookID, slog.Any("error", err))
		return nil, fmt.Errorf("failed to get book %d: %w", bookID, err)
	}
	return b, nil
}

func (s *service) ListBooks(ctx context.Context, activeOnly bool) ([]*Book, error) {
	books, err := s.repo.FindAll(ctx, activeOnly)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error listing books", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list books: %w", err)
	}
	return books, nil
}

func (s *service) UpdateStock(ctx context.Context, bookID int64, totalCopies int) (*Book, error) {
	s.logger.InfoContext(ctx, "Updating book stock", "bookID", bookID, "totalCopies", totalCopies)

	b, err := s.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}

	if err := b.SetTotalCopies(totalCopies); err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, b); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save stock update", "bookID", bookID, slog.Any("error", err))
		return nil, fmt.Errorf("failed to update stock for book %d: %w", bookID, err)
	}
	return b, nil
}

func (s *service) DeactivateBook(ctx context.Context, bookID int64) error {
	s.logger.InfoContext(ctx, "Deactivating book", "bookID", bookID)
	if err := s.repo.SetActiveStatus(ctx, bookID, false); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: book %d", apperrors.ErrNotFound, bookID)
		}
		return fmt.Errorf("failed to deactivate book %d: %w", bookID, err)
	}
	return nil
}

func (s *service) ReactivateBook(ctx context.Context, bookID int64) error {
	s.logger.InfoContext(ctx, "Reactivating book", "bookID", bookID)
	if err := s.repo.SetActiveStatus(ctx, bookID, true); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: book %d", apperrors.ErrNotFound, bookID)
		}
		return fmt.Errorf("failed to reactivate book %d: %w", bookID, err)
	}
	return nil
}
