package member

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("member not found")

	ErrDuplicateStudentID = errors.New("a member with this student ID already exists")

	ErrHasOpenLoans = errors.New("member has open loans")
)

type Repository interface {
	Save(ctx context.Context, m *Member) error

	FindByID(ctx context.Context, memberID int64) (*Member, error)

	FindByStudentID(ctx context.Context, studentID string) (*Member, error)

	FindAll(ctx context.Context, activeOnly bool) ([]*Member, error)

	SetActiveStatus(ctx context.Context, memberID int64, active bool) error

	// CountOpenLoans reports loans in active or overdue status for the
	// member; deactivation is blocked while any remain.
	CountOpenLoans(ctx context.Context, memberID int64) (int, error)
}
