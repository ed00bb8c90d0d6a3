package member

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"circulation-engine/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) Save(ctx context.Context, mem *Member) error {
	args := m.Called(ctx, mem)
	return args.Error(0)
}

func (m *MockMemberRepository) FindByID(ctx context.Context, memberID int64) (*Member, error) {
	args := m.Called(ctx, memberID)
	mem, _ := args.Get(0).(*Member)
	return mem, args.Error(1)
}

func (m *MockMemberRepository) FindByStudentID(ctx context.Context, studentID string) (*Member, error) {
	args := m.Called(ctx, studentID)
	mem, _ := args.Get(0).(*Member)
	return mem, args.Error(1)
}

func (m *MockMemberRepository) FindAll(ctx context.Context, activeOnly bool) ([]*Member, error) {
	args := m.Called(ctx, activeOnly)
	members, _ := args.Get(0).([]*Member)
	return members, args.Error(1)
}

func (m *MockMemberRepository) SetActiveStatus(ctx context.Context, memberID int64, active bool) error {
	args := m.Called(ctx, memberID, active)
	return args.Error(0)
}

func (m *MockMemberRepository) CountOpenLoans(ctx context.Context, memberID int64) (int, error) {
	args := m.Called(ctx, memberID)
	return args.Int(0), args.Error(1)
}

func newTestMemberService(repo Repository) Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, logger)
}

func TestRegisterMemberSuccess(t *testing.T) {
	repo := new(MockMemberRepository)
	svc := newTestMemberService(repo)

	repo.On("Save", mock.Anything, mock.MatchedBy(func(mem *Member) bool {
		return mem.StudentID == "S-1001" && mem.MaxBooksAllowed == 5 && mem.Active
	})).Return(nil)

	mem, err := svc.RegisterMember(context.Background(), " S-1001 ", "Robin Okello", "robin@school.example", 5)

	require.NoError(t, err)
	assert.Equal(t, "S-1001", mem.StudentID)
	assert.Equal(t, 0, mem.CurrentBooksIssued)
	repo.AssertExpectations(t)
}

func TestRegisterMemberValidation(t *testing.T) {
	repo := new(MockMemberRepository)
	svc := newTestMemberService(repo)

	_, err := svc.RegisterMember(context.Background(), "", "Robin Okello", "", 5)
	var vErr *apperrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "studentId", vErr.Field)

	_, err = svc.RegisterMember(context.Background(), "S-1001", "  ", "", 5)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "name", vErr.Field)

	repo.AssertNotCalled(t, "Save")
}

func TestRegisterMemberDuplicateStudentID(t *testing.T) {
	repo := new(MockMemberRepository)
	svc := newTestMemberService(repo)

	repo.On("Save", mock.Anything, mock.Anything).Return(apperrors.ErrAlreadyExists)

	_, err := svc.RegisterMember(context.Background(), "S-1001", "Robin Okello", "", 5)

	assert.ErrorIs(t, err, ErrDuplicateStudentID)
	repo.AssertExpectations(t)
}

func TestGetMemberNotFound(t *testing.T) {
	repo := new(MockMemberRepository)
	svc := newTestMemberService(repo)

	repo.On("FindByID", mock.Anything, int64(42)).Return(nil, ErrNotFound)

	_, err := svc.GetMember(context.Background(), 42)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeactivateMemberBlockedByOpenLoans(t *testing.T) {
	repo := new(MockMemberRepository)
	svc := newTestMemberService(repo)

	repo.On("CountOpenLoans", mock.Anything, int64(7)).Return(2, nil)

	err := svc.DeactivateMember(context.Background(), 7)

	assert.ErrorIs(t, err, ErrHasOpenLoans)
	repo.AssertNotCalled(t, "SetActiveStatus")
}

func TestDeactivateMemberSuccess(t *testing.T) {
	repo := new(MockMemberRepository)
	svc := newTestMemberService(repo)

	repo.On("CountOpenLoans", mock.Anything, int64(7)).Return(0, nil)
	repo.On("SetActiveStatus", mock.Anything, int64(7), false).Return(nil)

	require.NoError(t, svc.DeactivateMember(context.Background(), 7))
	repo.AssertExpectations(t)
}

func TestReactivateMemberNotFound(t *testing.T) {
	repo := new(MockMemberRepository)
	svc := newTestMemberService(repo)

	repo.On("SetActiveStatus", mock.Anything, int64(99), true).Return(apperrors.ErrNotFound)

	err := svc.ReactivateMember(context.Background(), 99)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
