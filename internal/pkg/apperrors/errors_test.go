package apperrors

import (
	"errors"
	"testing"
)

func TestAppErrorError(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name: "With Code",
			appError: &AppError{
				Code:    "TEST_CODE",
				Message: "This is a test error",
			},
			expected: "[TEST_CODE] This is a test error",
		},
		{
			name: "Without Code",
			appError: &AppError{
				Message: "This is a test error without code",
			},
			expected: "This is a test error without code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.appError.Error()
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestValidationErrorError(t *testing.T) {
	withField := &ValidationError{Field: "quota", Message: "must be positive"}
	if got := withField.Error(); got != "validation failed for field 'quota': must be positive" {
		t.Errorf("unexpected message: %q", got)
	}

	withoutField := &ValidationError{Message: "bad payload"}
	if got := withoutField.Error(); got != "validation failed: bad payload" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestNewValidationErrorWrapsSentinel(t *testing.T) {
	err := NewValidationError("memberId", "required")
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected error to wrap ErrValidation, got %v", err)
	}
}

func TestWrapDatabaseErrorWrapsSentinel(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapDatabaseError(cause, "query failed")
	if !errors.Is(err, ErrDatabase) {
		t.Errorf("expected error to wrap ErrDatabase, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected error to wrap the cause, got %v", err)
	}
}
