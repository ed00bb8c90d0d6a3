package dto

import (
	"fmt"
	"strconv"
	"time"

	"circulation-engine/internal/domain/loan"
)

type IssueLoanRequest struct {
	BookID      int64  `json:"bookId"`
	MemberID    int64  `json:"memberId"`
	Notes       string `json:"notes"`
	ProcessedBy string `json:"processedBy"`
}

func (r *IssueLoanRequest) Validate() error {
	if r.BookID <= 0 {
		return fmt.Errorf("bookId must be a positive identifier")
	}
	if r.MemberID <= 0 {
		return fmt.Errorf("memberId must be a positive identifier")
	}
	return nil
}

type ReturnLoanRequest struct {
	Notes       string `json:"notes"`
	ProcessedBy string `json:"processedBy"`
}

type MarkLostRequest struct {
	Notes       string `json:"notes"`
	ProcessedBy string `json:"processedBy"`
}

type FineResponse struct {
	Amount   string     `json:"amount"`
	Reason   string     `json:"reason"`
	Paid     bool       `json:"paid"`
	PaidDate *time.Time `json:"paidDate,omitempty"`
}

type LoanResponse struct {
	ID           string       `json:"id"`
	BookID       string       `json:"bookId"`
	MemberID     string       `json:"memberId"`
	Kind         string       `json:"kind"`
	Status       string       `json:"status"`
	IssueDate    string       `json:"issueDate"`
	DueDate      string       `json:"dueDate"`
	ReturnDate   *string      `json:"returnDate,omitempty"`
	RenewalCount int          `json:"renewalCount"`
	Fine         FineResponse `json:"fine"`
	Notes        string       `json:"notes,omitempty"`
	ProcessedBy  string       `json:"processedBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

type LoanListResponse struct {
	Loans []LoanResponse `json:"loans"`
	Count int            `json:"count"`
}

type SweepResponse struct {
	MarkedOverdue int            `json:"markedOverdue"`
	Loans         []LoanResponse `json:"loans"`
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

func NewLoanResponse(l *loan.Loan) LoanResponse {
	resp := LoanResponse{
		ID:           strconv.FormatInt(l.ID, 10),
		BookID:       strconv.FormatInt(l.BookID, 10),
		MemberID:     strconv.FormatInt(l.MemberID, 10),
		Kind:         string(l.Kind),
		Status:       string(l.Status),
		IssueDate:    l.IssueDate.Format(time.RFC3339),
		DueDate:      l.DueDate.Format(time.RFC3339),
		RenewalCount: l.RenewalCount,
		Fine: FineResponse{
			Amount:   l.Fine.Amount.StringFixed(2),
			Reason:   string(l.Fine.Reason),
			Paid:     l.Fine.Paid,
			PaidDate: l.Fine.PaidDate,
		},
		Notes:       l.Notes,
		ProcessedBy: l.ProcessedBy,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if l.ReturnDate != nil {
		returned := l.ReturnDate.Format(time.RFC3339)
		resp.ReturnDate = &returned
	}
	return resp
}

func NewLoanListResponse(loans []*loan.Loan) LoanListResponse {
	resp := LoanListResponse{
		Loans: make([]LoanResponse, 0, len(loans)),
		Count: len(loans),
	}
	for _, l := range loans {
		resp.Loans = append(resp.Loans, NewLoanResponse(l))
	}
	return resp
}
