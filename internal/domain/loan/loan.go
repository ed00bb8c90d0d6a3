package loan

import (
	"fmt"
	"math"
	"time"

	"circulation-engine/internal/pkg/apperrors"
	"github.com/shopspring/decimal"
)

// Fixed circulation policy.
const (
	LoanPeriodDays = 14
	MaxRenewals    = 3
)

// FineRatePerDay is charged per full or partial day a loan is overdue.
var FineRatePerDay = decimal.NewFromInt(2)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusReturned Status = "RETURNED"
	StatusOverdue  Status = "OVERDUE"
	StatusLost     Status = "LOST"
)

// Kind tags the last circulation action applied to the record.
type Kind string

const (
	KindIssue  Kind = "ISSUE"
	KindReturn Kind = "RETURN"
	KindRenew  Kind = "RENEW"
)

type FineReason string

const (
	FineReasonNone    FineReason = "NONE"
	FineReasonOverdue FineReason = "OVERDUE"
	FineReasonDamage  FineReason = "DAMAGE"
	FineReasonLost    FineReason = "LOST"
)

type Fine struct {
	Amount   decimal.Decimal `json:"amount"`
	Reason   FineReason      `json:"reason"`
	Paid     bool            `json:"paid"`
	PaidDate *time.Time      `json:"paidDate,omitempty"`
}

/// Loan is one circulation transaction: a single copy's issue-to-return cycle.
// Records are never deleted; they are the audit trail of circulation
// activity. All state transitions take the current time explicitly so the
// lifecycle is deterministic under test.
type Loan struct {
	ID           int64      `json:"id"`
	BookID       int64      `json:"bookId"`
	MemberID     int64      `json:"memberId"`
	Kind         Kind       `json:"kind"`
	Status       Status     `json:"status"`
	IssueDate    time.Time  `json:"issueDate"`
	DueDate      time.Time  `json:"dueDate"`
	ReturnDate   *time.Time `json:"returnDate,omitempty"`
	RenewalCount int        `json:"renewalCount"`
	Fine         Fine       `json:"fine"`
	Notes        string     `json:"notes"`
	ProcessedBy  string     `json:"processedBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func NewLoan(bookID, memberID int64, notes, processedBy string, now time.Time) *Loan {
	return &Loan{
		BookID:       bookID,
		MemberID:     memberID,
		Kind:         KindIssue,
		Status:       StatusActive,
		IssueDate:    now,
		DueDate:      now.AddDate(0, 0, LoanPeriodDays),
		RenewalCount: 0,
		Fine:         Fine{Amount: decimal.Zero, Reason: FineReasonNone},
		Notes:        notes,
		ProcessedBy:  processedBy,
	}
}

// Open reports whether the loan still holds a copy and a quota slot.
func (l *Loan) Open() bool {
	return l.Status == StatusActive || l.Status == StatusOverdue
}

// AccruedFine computes the overdue fine as of the given settlement instant.
// Partial days count as full days. The computation is from scratch, never
// cumulative, so repeated evaluation against the same inputs is idempotent.
func (l *Loan) AccruedFine(settlement time.Time) decimal.Decimal {
	if !settlement.After(l.DueDate) {
		return decimal.Zero
	}
	daysLate := int64(math.Ceil(settlement.Sub(l.DueDate).Hours() / 24))
	return FineRatePerDay.Mul(decimal.NewFromInt(daysLate))
}

// Renew extends the due date by the loan period from the renewal moment.
// Only an active loan may be renewed; an overdue loan has to come back to the
// desk, and renewal never clears an accrued fine.
func (l *Loan) Renew(now time.Time) error {
	if l.Status != StatusActive {
		return fmt.Errorf("%w: loan %d is %s", apperrors.ErrLoanNotActive, l.ID, l.Status)
	}
	if l.RenewalCount >= MaxRenewals {
		return fmt.Errorf("%w: loan %d already renewed %d times", apperrors.ErrRenewalLimitReached, l.ID, l.RenewalCount)
	}
	l.RenewalCount++
	l.DueDate = now.AddDate(0, 0, LoanPeriodDays)
	l.Kind = KindRenew
	l.UpdatedAt = now
	return nil
}

// MarkOverdue transitions an active loan past its due date and records the
// fine accrued so far. The overdue sweep re-runs this as time passes; the
// recomputation keeps the amount current without double counting.
func (l *Loan) MarkOverdue(now time.Time) error {
	if l.Status != StatusActive && l.Status != StatusOverdue {
		return fmt.Errorf("%w: loan %d is %s", apperrors.ErrLoanNotActive, l.ID, l.Status)
	}
	if !now.After(l.DueDate) {
		return fmt.Errorf("%w: loan %d is not past due", apperrors.ErrValidation, l.ID)
	}
	l.Status = StatusOverdue
	l.Fine.Amount = l.AccruedFine(now)
	l.Fine.Reason = FineReasonOverdue
	l.UpdatedAt = now
	return nil
}

// MarkReturned settles the loan, fixing the fine against the return date.
func (l *Loan) MarkReturned(now time.Time) error {
	if !l.Open() {
		return fmt.Errorf("%w: loan %d is %s", apperrors.ErrLoanNotActive, l.ID, l.Status)
	}
	returned := now
	l.ReturnDate = &returned
	l.Status = StatusReturned
	l.Kind = KindReturn
	l.Fine.Amount = l.AccruedFine(now)
	if l.Fine.Amount.IsPositive() {
		l.Fine.Reason = FineReasonOverdue
	} else {
		l.Fine.Reason = FineReasonNone
	}
	l.UpdatedAt = now
	return nil
}

// MarkLost is an administrative terminal transition. Any fine accrued while
// the loan was overdue stands, re-tagged as a lost-item fine.
func (l *Loan) MarkLost(now time.Time) error {
	if !l.Open() {
		return fmt.Errorf("%w: loan %d is %s", apperrors.ErrLoanNotActive, l.ID, l.Status)
	}
	l.Status = StatusLost
	l.Fine.Amount = l.AccruedFine(now)
	l.Fine.Reason = FineReasonLost
	l.UpdatedAt = now
	return nil
}

// PayFine flags the fine as settled. Boolean flag only; there is no payment
// workflow behind it.
func (l *Loan) PayFine(now time.Time) error {
	if !l.Fine.Amount.IsPositive() {
		return fmt.Errorf("%w: loan %d has no fine to pay", apperrors.ErrValidation, l.ID)
	}
	if l.Fine.Paid {
		return fmt.Errorf("%w: loan %d", apperrors.ErrFineAlreadyPaid, l.ID)
	}
	paid := now
	l.Fine.Paid = true
	l.Fine.PaidDate = &paid
	l.UpdatedAt = now
	return nil
}
