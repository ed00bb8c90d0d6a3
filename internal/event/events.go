package event

import "time"

const (
	RoutingKeyLoanIssued   = "loan.issued"
	RoutingKeyLoanReturned = "loan.returned"
	RoutingKeyLoanRenewed  = "loan.renewed"
	RoutingKeyLoanOverdue  = "loan.overdue"
	RoutingKeyLoanLost     = "loan.lost"
)

// LoanEventPayload is the wire shape for every circulation event. Fine
// amounts travel as fixed-point strings to keep consumers away from float
// rounding.
type LoanEventPayload struct {
	LoanID       int64      `json:"loanId"`
	BookID       int64      `json:"bookId"`
	MemberID     int64      `json:"memberId"`
	Status       string     `json:"status"`
	DueDate      time.Time  `json:"dueDate"`
	ReturnDate   *time.Time `json:"returnDate,omitempty"`
	RenewalCount int        `json:"renewalCount"`
	FineAmount   string     `json:"fineAmount"`
	Timestamp    time.Time  `json:"timestamp"`
}
