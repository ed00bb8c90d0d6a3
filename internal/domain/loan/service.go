package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"circulation-engine/internal/event"
	"circulation-engine/internal/infrastructure/monitoring"
	"circulation-engine/internal/pkg/apperrors"
	"github.com/jackc/pgx/v5"
)

// maxConflictRetries bounds internal retries on serialization conflicts
// before the failure is surfaced to the caller.
const maxConflictRetries = 3

// CirculationService coordinates a circulation event across the book
// inventory, the member quota, and the loan record. Each operation runs as
// one database transaction: either all three ledgers advance or none do.
type CirculationService interface {
	Issue(ctx context.Context, bookID, memberID int64, notes, processedBy string) (*Loan, error)

	Return(ctx context.Context, loanID int64, notes, processedBy string) (*Loan, error)

	Renew(ctx context.Context, loanID int64) (*Loan, error)

	// SweepOverdue transitions every active loan past due to overdue,
	// recomputing fines, and returns the transitioned set.
	SweepOverdue(ctx context.Context) ([]*Loan, error)

	MarkLost(ctx context.Context, loanID int64, notes, processedBy string) (*Loan, error)

	PayFine(ctx context.Context, loanID int64) (*Loan, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	ListLoansForMember(ctx context.Context, memberID int64) ([]*Loan, error)

	ListOverdueLoans(ctx context.Context) ([]*Loan, error)
}

var _ CirculationService = (*circulationService)(nil)

type circulationService struct {
	repo      Repository
	publisher event.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewCirculationService(repo Repository, publisher event.Publisher, logger *slog.Logger) CirculationService {
	if repo == nil {
		panic("loan repository cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &circulationService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With(slog.String("component", "circulationService")),
		now:       time.Now,
	}
}

func (s *circulationService) Issue(ctx context.Context, bookID, memberID int64, notes, processedBy string) (*Loan, error) {
	logCtx := s.logger.With(slog.Int64("bookID", bookID), slog.Int64("memberID", memberID))
	logCtx.InfoContext(ctx, "Issuing book")

	var created *Loan
	err := s.withConflictRetry(ctx, "issue", func() error {
		var txErr error
		created, txErr = s.issueOnce(ctx, bookID, memberID, notes, processedBy)
		return txErr
	})
	if err != nil {
		monitoring.RecordCirculation("issue", "failure")
		return nil, err
	}

	monitoring.RecordCirculation("issue", "success")
	logCtx.InfoContext(ctx, "Book issued", "loanID", created.ID, "dueDate", created.DueDate)
	s.publishLoanEvent(ctx, event.RoutingKeyLoanIssued, created)
	return created, nil
}

func (s *circulationService) issueOnce(ctx context.Context, bookID, memberID int64, notes, processedBy string) (*Loan, error) {
	now := s.now()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer s.repo.RollbackTx(ctx, tx)

	b, err := s.repo.GetBookForUpdate(ctx, tx, bookID)
	if err != nil {
		return nil, err
	}
	if !b.Active {
		return nil, fmt.Errorf("%w: book %d is not in circulation", apperrors.ErrValidation, bookID)
	}

	m, err := s.repo.GetMemberForUpdate(ctx, tx, memberID)
	if err != nil {
		return nil, err
	}
	if !m.Active {
		return nil, fmt.Errorf("%w: member %d is not active", apperrors.ErrValidation, memberID)
	}

	open, err := s.repo.HasOpenLoanForPair(ctx, tx, bookID, memberID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("%w: book %d, member %d", apperrors.ErrDuplicateActiveLoan, bookID, memberID)
	}

	if err := b.ReserveCopy(); err != nil {
		return nil, err
	}
	if err := m.AdmitLoan(); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateBookCountersInTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateMemberCountersInTx(ctx, tx, m); err != nil {
		return nil, err
	}

	created, err := s.repo.InsertLoanInTx(ctx, tx, NewLoan(bookID, memberID, notes, processedBy, now))
	if err != nil {
		return nil, err
	}

	if err := s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *circulationService) Return(ctx context.Context, loanID int64, notes, processedBy string) (*Loan, error) {
	logCtx := s.logger.With(slog.Int64("loanID", loanID))
	logCtx.InfoContext(ctx, "Returning book")

	var returned *Loan
	err := s.withConflictRetry(ctx, "return", func() error {
		var txErr error
		returned, txErr = s.returnOnce(ctx, loanID, notes, processedBy)
		return txErr
	})
	if err != nil {
		monitoring.RecordCirculation("return", "failure")
		return nil, err
	}

	monitoring.RecordCirculation("return", "success")
	logCtx.InfoContext(ctx, "Book returned", "fineAmount", returned.Fine.Amount)
	s.publishLoanEvent(ctx, event.RoutingKeyLoanReturned, returned)
	return returned, nil
}

func (s *circulationService) returnOnce(ctx context.Context, loanID int64, notes, processedBy string) (*Loan, error) {
	now := s.now()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer s.repo.RollbackTx(ctx, tx)

	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}

	b, err := s.repo.GetBookForUpdate(ctx, tx, l.BookID)
	if err != nil {
		return nil, err
	}
	m, err := s.repo.GetMemberForUpdate(ctx, tx, l.MemberID)
	if err != nil {
		return nil, err
	}

	if err := l.MarkReturned(now); err != nil {
		return nil, err
	}
	if notes != "" {
		l.Notes = notes
	}
	if processedBy != "" {
		l.ProcessedBy = processedBy
	}

	if err := b.ReleaseCopy(); err != nil {
		s.logger.ErrorContext(ctx, "Inventory release violated stock invariant", slog.Int64("bookID", b.BookID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: inventory release failed for book %d", apperrors.ErrInternalServer, b.BookID)
	}
	if clamped := m.ReleaseLoan(); clamped {
		s.logger.WarnContext(ctx, "Member loan counter was already zero on return; clamped", slog.Int64("memberID", m.MemberID))
	}

	if err := s.repo.UpdateBookCountersInTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateMemberCountersInTx(ctx, tx, m); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLoanInTx(ctx, tx, l); err != nil {
		return nil, err
	}

	if err := s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *circulationService) Renew(ctx context.Context, loanID int64) (*Loan, error) {
	logCtx := s.logger.With(slog.Int64("loanID", loanID))
	logCtx.InfoContext(ctx, "Renewing loan")

	var renewed *Loan
	err := s.withConflictRetry(ctx, "renew", func() error {
		var txErr error
		renewed, txErr = s.renewOnce(ctx, loanID)
		return txErr
	})
	if err != nil {
		monitoring.RecordCirculation("renew", "failure")
		return nil, err
	}

	monitoring.RecordCirculation("renew", "success")
	logCtx.InfoContext(ctx, "Loan renewed", "renewalCount", renewed.RenewalCount, "dueDate", renewed.DueDate)
	s.publishLoanEvent(ctx, event.RoutingKeyLoanRenewed, renewed)
	return renewed, nil
}

// renewOnce touches only the loan record; inventory and membership counters
// are untouched by a renewal.
func (s *circulationService) renewOnce(ctx context.Context, loanID int64) (*Loan, error) {
	now := s.now()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer s.repo.RollbackTx(ctx, tx)

	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}

	if err := l.Renew(now); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLoanInTx(ctx, tx, l); err != nil {
		return nil, err
	}

	if err := s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *circulationService) SweepOverdue(ctx context.Context) ([]*Loan, error) {
	now := s.now()
	s.logger.InfoContext(ctx, "Starting overdue sweep", "cutoff", now)

	loanIDs, err := s.repo.FindLoanIDsDueBefore(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("cannot run overdue sweep, failed to list loans past due: %w", err)
	}

	transitioned := make([]*Loan, 0, len(loanIDs))
	var errCount int
	for _, loanID := range loanIDs {
		l, err := s.sweepOne(ctx, loanID, now)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to transition loan to overdue", slog.Int64("loanID", loanID), slog.Any("error", err))
			errCount++
			continue
		}
		if l == nil {
			// Returned or renewed between the scan and the lock.
			continue
		}
		transitioned = append(transitioned, l)
		s.publishLoanEvent(ctx, event.RoutingKeyLoanOverdue, l)
	}

	monitoring.RecordSweep(len(transitioned))
	s.logger.InfoContext(ctx, "Overdue sweep finished",
		"candidates", len(loanIDs), "transitioned", len(transitioned), "errors", errCount)

	if errCount > 0 {
		return transitioned, fmt.Errorf("overdue sweep completed with %d errors", errCount)
	}
	return transitioned, nil
}

func (s *circulationService) sweepOne(ctx context.Context, loanID int64, now time.Time) (*Loan, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer s.repo.RollbackTx(ctx, tx)

	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}
	if l.Status != StatusActive || !now.After(l.DueDate) {
		return nil, nil
	}

	if err := l.MarkOverdue(now); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLoanInTx(ctx, tx, l); err != nil {
		return nil, err
	}
	if err := s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *circulationService) MarkLost(ctx context.Context, loanID int64, notes, processedBy string) (*Loan, error) {
	logCtx := s.logger.With(slog.Int64("loanID", loanID))
	logCtx.InfoContext(ctx, "Marking loan as lost")

	var lost *Loan
	err := s.withConflictRetry(ctx, "markLost", func() error {
		var txErr error
		lost, txErr = s.markLostOnce(ctx, loanID, notes, processedBy)
		return txErr
	})
	if err != nil {
		monitoring.RecordCirculation("lost", "failure")
		return nil, err
	}

	monitoring.RecordCirculation("lost", "success")
	s.publishLoanEvent(ctx, event.RoutingKeyLoanLost, lost)
	return lost, nil
}

// markLostOnce writes the copy off the inventory (the book never comes back)
// and frees the member's quota slot.
func (s *circulationService) markLostOnce(ctx context.Context, loanID int64, notes, processedBy string) (*Loan, error) {
	now := s.now()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer s.repo.RollbackTx(ctx, tx)

	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}

	b, err := s.repo.GetBookForUpdate(ctx, tx, l.BookID)
	if err != nil {
		return nil, err
	}
	m, err := s.repo.GetMemberForUpdate(ctx, tx, l.MemberID)
	if err != nil {
		return nil, err
	}

	if err := l.MarkLost(now); err != nil {
		return nil, err
	}
	if notes != "" {
		l.Notes = notes
	}
	if processedBy != "" {
		l.ProcessedBy = processedBy
	}

	if err := b.WriteOffCopy(); err != nil {
		s.logger.ErrorContext(ctx, "Inventory write-off violated stock invariant", slog.Int64("bookID", b.BookID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: inventory write-off failed for book %d", apperrors.ErrInternalServer, b.BookID)
	}
	if clamped := m.ReleaseLoan(); clamped {
		s.logger.WarnContext(ctx, "Member loan counter was already zero on loss; clamped", slog.Int64("memberID", m.MemberID))
	}

	if err := s.repo.UpdateBookCountersInTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateMemberCountersInTx(ctx, tx, m); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateLoanInTx(ctx, tx, l); err != nil {
		return nil, err
	}

	if err := s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *circulationService) PayFine(ctx context.Context, loanID int64) (*Loan, error) {
	s.logger.InfoContext(ctx, "Settling fine", "loanID", loanID)
	now := s.now()

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer s.repo.RollbackTx(ctx, tx)

	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}

	if err := l.PayFine(now); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateLoanInTx(ctx, tx, l); err != nil {
		return nil, err
	}
	if err := s.repo.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *circulationService) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: loan %d", apperrors.ErrNotFound, loanID)
		}
		s.logger.ErrorContext(ctx, "Failed to get loan", "loanID", loanID, slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	return l, nil
}

func (s *circulationService) ListLoansForMember(ctx context.Context, memberID int64) ([]*Loan, error) {
	loans, err := s.repo.FindLoansByMember(ctx, memberID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list loans for member", "memberID", memberID, slog.Any("error", err))
		return nil, fmt.Errorf("failed to list loans for member %d: %w", memberID, err)
	}
	return loans, nil
}

// ListOverdueLoans sweeps first so the listing reflects the clock, not the
// last scheduled batch run.
func (s *circulationService) ListOverdueLoans(ctx context.Context) ([]*Loan, error) {
	if _, err := s.SweepOverdue(ctx); err != nil {
		s.logger.WarnContext(ctx, "Overdue sweep before listing finished with errors", slog.Any("error", err))
	}
	loans, err := s.repo.FindLoansByStatus(ctx, StatusOverdue)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}
	return loans, nil
}

func (s *circulationService) withConflictRetry(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxConflictRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, apperrors.ErrConflict) {
			return err
		}
		s.logger.WarnContext(ctx, "Serialization conflict, retrying",
			"operation", operation, "attempt", attempt, "maxAttempts", maxConflictRetries)
	}
	return fmt.Errorf("%w: %s did not succeed after %d attempts", apperrors.ErrConflict, operation, maxConflictRetries)
}

func (s *circulationService) publishLoanEvent(ctx context.Context, routingKey string, l *Loan) {
	if s.publisher == nil {
		return
	}
	payload := event.LoanEventPayload{
		LoanID:       l.ID,
		BookID:       l.BookID,
		MemberID:     l.MemberID,
		Status:       string(l.Status),
		DueDate:      l.DueDate,
		ReturnDate:   l.ReturnDate,
		RenewalCount: l.RenewalCount,
		FineAmount:   l.Fine.Amount.StringFixed(2),
		Timestamp:    s.now(),
	}
	if err := s.publisher.PublishLoanEvent(ctx, routingKey, payload); err != nil {
		// Event delivery is best effort; circulation state is already
		// committed.
		s.logger.ErrorContext(ctx, "Failed to publish circulation event",
			slog.String("routingKey", routingKey), slog.Int64("loanID", l.ID), slog.Any("error", err))
	}
}
