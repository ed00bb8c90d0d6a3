package dto

import (
	"testing"
	"time"

	"circulation-engine/internal/domain/loan"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueLoanRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     IssueLoanRequest
		wantErr bool
	}{
		{"valid", IssueLoanRequest{BookID: 1, MemberID: 2}, false},
		{"missing book", IssueLoanRequest{MemberID: 2}, true},
		{"missing member", IssueLoanRequest{BookID: 1}, true},
		{"negative ids", IssueLoanRequest{BookID: -1, MemberID: -2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLoanResponseFormatsFine(t *testing.T) {
	issueAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l := loan.NewLoan(101, 202, "", "librarian-1", issueAt)
	l.ID = 7
	require.NoError(t, l.MarkReturned(l.DueDate.AddDate(0, 0, 3)))

	resp := NewLoanResponse(l)

	assert.Equal(t, "7", resp.ID)
	assert.Equal(t, "101", resp.BookID)
	assert.Equal(t, "202", resp.MemberID)
	assert.Equal(t, "RETURNED", resp.Status)
	assert.Equal(t, "6.00", resp.Fine.Amount)
	assert.Equal(t, "OVERDUE", resp.Fine.Reason)
	require.NotNil(t, resp.ReturnDate)
}

func TestNewLoanListResponse(t *testing.T) {
	issueAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	loans := []*loan.Loan{
		loan.NewLoan(101, 202, "", "", issueAt),
		loan.NewLoan(102, 202, "", "", issueAt),
	}

	resp := NewLoanListResponse(loans)

	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Loans, 2)
	assert.Equal(t, decimal.Zero.StringFixed(2), resp.Loans[0].Fine.Amount)
}
