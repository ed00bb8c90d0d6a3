package member

import (
	"fmt"
	"time"

	"circulation-engine/internal/pkg/apperrors"
)

const DefaultMaxBooksAllowed = 5

// Member is a student membership record. MaxBooksAllowed and
// CurrentBooksIssued form the membership ledger; only the circulation
// coordinator mutates CurrentBooksIssued.
type Member struct {
	MemberID           int64     `json:"memberId"`
	StudentID          string    `json:"studentId"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	MaxBooksAllowed    int       `json:"maxBooksAllowed"`
	CurrentBooksIssued int       `json:"currentBooksIssued"`
	Active             bool      `json:"active"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func NewMember(studentID, name, email string, maxBooks int) (*Member, error) {
	if maxBooks <= 0 {
		maxBooks = DefaultMaxBooksAllowed
	}
	now := time.Now()
	return &Member{
		StudentID:       studentID,
		Name:            name,
		Email:           email,
		MaxBooksAllowed: maxBooks,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// AdmitLoan counts a new loan against the member's quota.
func (m *Member) AdmitLoan() error {
	if m.CurrentBooksIssued >= m.MaxBooksAllowed {
		return fmt.Errorf("%w: member %d already has %d of %d books issued",
			apperrors.ErrQuotaExceeded, m.MemberID, m.CurrentBooksIssued, m.MaxBooksAllowed)
	}
	m.CurrentBooksIssued++
	m.UpdatedAt = time.Now()
	return nil
}

// ReleaseLoan frees a quota slot. A decrement below zero is clamped; the
// caller logs it as a consistency warning instead of failing, so historical
// data corrections cannot wedge returns.
func (m *Member) ReleaseLoan() (clamped bool) {
	if m.CurrentBooksIssued <= 0 {
		m.CurrentBooksIssued = 0
		return true
	}
	m.CurrentBooksIssued--
	m.UpdatedAt = time.Now()
	return false
}

func (m *Member) Deactivate() {
	if m.Active {
		m.Active = false
		m.UpdatedAt = time.Now()
	}
}

func (m *Member) Reactivate() {
	if !m.Active {
		m.Active = true
		m.UpdatedAt = time.Now()
	}
}
