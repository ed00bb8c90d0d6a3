package book

import (
	"fmt"
	"time"

	"circulation-engine/internal/pkg/apperrors"
)

// Book is a catalog title, not a physical copy. TotalCopies and
// AvailableCopies form the inventory ledger for the title; only the
// circulation coordinator mutates AvailableCopies.
type Book struct {
	BookID          int64     `json:"bookId"`
	ISBN            string    `json:"isbn"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	TotalCopies     int       `json:"totalCopies"`
	AvailableCopies int       `json:"availableCopies"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func NewBook(isbn, title, author string, totalCopies int) (*Book, error) {
	if totalCopies < 0 {
		return nil, fmt.Errorf("%w: total copies cannot be negative", apperrors.ErrInvalidArgument)
	}
	now := time.Now()
	return &Book{
		ISBN:            isbn,
		Title:           title,
		Author:          author,
		TotalCopies:     totalCopies,
		AvailableCopies: totalCopies,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ReserveCopy takes one copy off the shelf. Fails when nothing is available;
// the caller must not create a loan in that case.
func (b *Book) ReserveCopy() error {
	if b.AvailableCopies <= 0 {
		return fmt.Errorf("%w: book %d has no available copies", apperrors.ErrOutOfStock, b.BookID)
	}
	b.AvailableCopies--
	b.UpdatedAt = time.Now()
	return nil
}

// ReleaseCopy puts a copy back. A release without a matching reserve would
// push available past total; that is a consistency bug, not a retryable
// condition.
func (b *Book) ReleaseCopy() error {
	if b.AvailableCopies >= b.TotalCopies {
		return fmt.Errorf("%w: releasing a copy of book %d would exceed total stock (%d)",
			apperrors.ErrConsistency, b.BookID, b.TotalCopies)
	}
	b.AvailableCopies++
	b.UpdatedAt = time.Now()
	return nil
}

// WriteOffCopy removes a lost copy from the inventory entirely. The copy was
// out on loan, so only the total shrinks.
func (b *Book) WriteOffCopy() error {
	if b.TotalCopies <= 0 {
		return fmt.Errorf("%w: book %d has no copies to write off", apperrors.ErrConsistency, b.BookID)
	}
	b.TotalCopies--
	b.UpdatedAt = time.Now()
	return nil
}

// SetTotalCopies adjusts stock levels, keeping available in step with the
// delta and inside [0, total].
func (b *Book) SetTotalCopies(total int) error {
	if total < 0 {
		return fmt.Errorf("%w: total copies cannot be negative", apperrors.ErrInvalidArgument)
	}
	onLoan := b.TotalCopies - b.AvailableCopies
	if total < onLoan {
		return fmt.Errorf("%w: %d copies are on loan, total cannot drop below that", apperrors.ErrValidation, onLoan)
	}
	b.TotalCopies = total
	b.AvailableCopies = total - onLoan
	b.UpdatedAt = time.Now()
	return nil
}

func (b *Book) Deactivate() {
	if b.Active {
		b.Active = false
		b.UpdatedAt = time.Now()
	}
}

func (b *Book) Reactivate() {
	if !b.Active {
		b.Active = true
		b.UpdatedAt = time.Now()
	}
}
