package member

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"circulation-engine/internal/pkg/apperrors"
)

type Service interface {
	RegisterMember(ctx context.Context, studentID, name, email string, maxBooks int) (*Member, error)
	GetMember(ctx context.Context, memberID int64) (*Member, error)
	ListMembers(ctx context.Context, activeOnly bool) ([]*Member, error)
	DeactivateMember(ctx context.Context, memberID int64) error
	ReactivateMember(ctx context.Context, memberID int64) error
}

var _ Service = (*service)(nil)

type service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) Service {
	if repo == nil {
		panic("member repository cannot be nil")
	}
	return &service{
		repo:   repo,
		logger: logger.With(slog.String("component", "memberService")),
	}
}

func (s *service) RegisterMember(ctx context.Context, studentID, name, email string, maxBooks int) (*Member, error) {
	s.logger.InfoContext(ctx, "Registering member", "studentID", studentID)

	studentID = strings.TrimSpace(studentID)
	name = strings.TrimSpace(name)
	if studentID == "" {
		return nil, apperrors.NewValidationError("studentId", "cannot be empty")
	}
	if name == "" {
		return nil, apperrors.NewValidationError("name", "cannot be empty")
	}

	m, err := NewMember(studentID, name, strings.TrimSpace(email), maxBooks)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, m); err != nil {
		if errors.Is(err, ErrDuplicateStudentID) || errors.Is(err, apperrors.ErrAlreadyExists) {
			s.logger.WarnContext(ctx, "Duplicate student ID rejected", "studentID", studentID)
			return nil, fmt.Errorf("%w: student ID %s", ErrDuplicateStudentID, studentID)
		}
		s.logger.ErrorContext(ctx, "Repository failed to save new member", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new member: %w", err)
	}

	s.logger.InfoContext(ctx, "Member registered", "memberID", m.MemberID)
	return m, nil
}

func (s *service) GetMember(ctx context.Context, memberID int64) (*Member, error) {
	m, err := s.repo.FindByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: member %d", apperrors.ErrNotFound, memberID)
		}
		s.logger.ErrorContext(ctx, "Repository error finding member", "memberID", memberID, slog.Any("error", err))
		return nil, fmt.Errorf("failed to get member %d: %w", memberID, err)
	}
	return m, nil
}

func (s *service) ListMembers(ctx context.Context, activeOnly bool) ([]*Member, error) {
	members, err := s.repo.FindAll(ctx, activeOnly)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error listing members", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

func (s *service) DeactivateMember(ctx context.Context, memberID int64) error {
	s.logger.InfoContext(ctx, "Deactivating member", "memberID", memberID)

	open, err := s.repo.CountOpenLoans(ctx, memberID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to count open loans for member", "memberID", memberID, slog.Any("error", err))
		return fmt.Errorf("failed to check open loans for member %d: %w", memberID, err)
	}
	if open > 0 {
		s.logger.WarnContext(ctx, "Deactivation blocked by open loans", "memberID", memberID, "openLoans", open)
		return fmt.Errorf("%w: member %d has %d open loans", ErrHasOpenLoans, memberID, open)
	}

	if err := s.repo.SetActiveStatus(ctx, memberID, false); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: member %d", apperrors.ErrNotFound, memberID)
		}
		return fmt.Errorf("failed to deactivate member %d: %w", memberID, err)
	}
	return nil
}

func (s *service) ReactivateMember(ctx context.Context, memberID int64) error {
	s.logger.InfoContext(ctx, "Reactivating member", "memberID", memberID)
	if err := s.repo.SetActiveStatus(ctx, memberID, true); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: member %d", apperrors.ErrNotFound, memberID)
		}
		return fmt.Errorf("failed to reactivate member %d: %w", memberID, err)
	}
	return nil
}
