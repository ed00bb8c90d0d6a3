package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("resource not found")

	ErrInvalidArgument = errors.New("invalid argument")

	ErrValidation = errors.New("validation failed")

	ErrAlreadyExists = errors.New("resource already exists")

	ErrDatabase = errors.New("database error")

	ErrInternalServer = errors.New("internal server error")

	// Precondition failures. The circulation coordinator returns these when a
	// business rule rejects the request; no partial mutation has occurred.
	ErrOutOfStock = errors.New("no copies available")

	ErrQuotaExceeded = errors.New("member loan quota exceeded")

	ErrDuplicateActiveLoan = errors.New("member already has an open loan for this book")

	ErrRenewalLimitReached = errors.New("loan renewal limit reached")

	ErrLoanNotActive = errors.New("loan is not active")

	ErrFineAlreadyPaid = errors.New("fine already settled")

	// ErrConsistency marks an internal invariant violation (counters out of
	// sync with loan state). Never retried, always logged.
	ErrConsistency = errors.New("consistency violation")

	// ErrConflict is a transient serialization failure. The coordinator
	// retries these a bounded number of times before surfacing.
	ErrConflict = errors.New("resource conflict")

	ErrUnauthorized = errors.New("unauthorized")

	ErrForbidden = errors.New("forbidden")
)

type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

func NewValidationError(field, message string) error {
	return fmt.Errorf("%w: %w", ErrValidation, &ValidationError{Field: field, Message: message})
}

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func WrapDatabaseError(cause error, message string) error {
	return &AppError{
		Code:    "DB_ERROR",
		Message: message,
		Cause:   fmt.Errorf("%w: %w", ErrDatabase, cause),
	}
}
