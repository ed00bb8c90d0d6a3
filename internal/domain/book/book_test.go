package book

import (
	"testing"

	"circulation-engine/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
)

func TestReserveAndReleaseCopy(t *testing.T) {
	b, err := NewBook("978-0134190440", "The Go Programming Language", "Donovan & Kernighan", 2)
	assert.NoError(t, err)
	assert.Equal(t, 2, b.AvailableCopies)

	assert.NoError(t, b.ReserveCopy())
	assert.NoError(t, b.ReserveCopy())
	assert.Equal(t, 0, b.AvailableCopies)

	err = b.ReserveCopy()
	assert.ErrorIs(t, err, apperrors.ErrOutOfStock)
	assert.Equal(t, 0, b.AvailableCopies)

	assert.NoError(t, b.ReleaseCopy())
	assert.NoError(t, b.ReleaseCopy())
	assert.Equal(t, 2, b.AvailableCopies)
}

func TestReleaseCopyPastTotalIsConsistencyViolation(t *testing.T) {
	b, _ := NewBook("978-0134190440", "The Go Programming Language", "Donovan & Kernighan", 1)

	err := b.ReleaseCopy()
	assert.ErrorIs(t, err, apperrors.ErrConsistency)
	assert.Equal(t, 1, b.AvailableCopies)
}

func TestWriteOffCopy(t *testing.T) {
	b, _ := NewBook("978-0134190440", "The Go Programming Language", "Donovan & Kernighan", 2)
	assert.NoError(t, b.ReserveCopy())

	assert.NoError(t, b.WriteOffCopy())
	assert.Equal(t, 1, b.TotalCopies)
	assert.Equal(t, 1, b.AvailableCopies)
}

func TestSetTotalCopiesKeepsLoanedCount(t *testing.T) {
	b, _ := NewBook("978-0134190440", "The Go Programming Language", "Donovan & Kernighan", 3)
	assert.NoError(t, b.ReserveCopy())
	assert.NoError(t, b.ReserveCopy())

	assert.NoError(t, b.SetTotalCopies(5))
	assert.Equal(t, 5, b.TotalCopies)
	assert.Equal(t, 3, b.AvailableCopies)

	err := b.SetTotalCopies(1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestNewBookRejectsNegativeCopies(t *testing.T) {
	_, err := NewBook("978-0134190440", "The Go Programming Language", "Donovan & Kernighan", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}
