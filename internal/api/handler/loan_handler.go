package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"circulation-engine/internal/api/handler/dto"
	"circulation-engine/internal/domain/book"
	"circulation-engine/internal/domain/loan"
	"circulation-engine/internal/domain/member"
	"circulation-engine/internal/pkg/apperrors"
	"github.com/go-chi/chi/v5"
)

type LoanHandler struct {
	service loan.CirculationService
	logger  *slog.Logger
}

func NewLoanHandler(s loan.CirculationService, l *slog.Logger) *LoanHandler {
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
	}
}

var errNoBody = errors.New("no request body")

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errNoBody
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errNoBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field := http.StatusInternalServerError, "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError
	var appErr *apperrors.AppError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, "Resource not found."
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrOutOfStock),
		errors.Is(err, apperrors.ErrQuotaExceeded),
		errors.Is(err, apperrors.ErrDuplicateActiveLoan),
		errors.Is(err, apperrors.ErrRenewalLimitReached),
		errors.Is(err, apperrors.ErrLoanNotActive),
		errors.Is(err, apperrors.ErrFineAlreadyPaid):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, apperrors.ErrAlreadyExists),
		errors.Is(err, book.ErrDuplicateISBN),
		errors.Is(err, member.ErrDuplicateStudentID),
		errors.Is(err, member.ErrHasOpenLoans):
		status, message = http.StatusConflict, err.Error()
	case errors.Is(err, apperrors.ErrConflict):
		status, message = http.StatusConflict, "The operation conflicted with concurrent activity; please retry."
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Message, validationError.Field
	case errors.As(err, &appErr):
		message = appErr.Error()
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	resp := dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Message: message,
			Field:   field,
		},
	}
	respondJSON(w, status, resp)
}

func idFromURL(r *http.Request, param string) (int64, error) {
	idStr := chi.URLParam(r, param)
	if idStr == "" {
		return 0, fmt.Errorf("%s not found in URL path", param)
	}
	return strconv.ParseInt(idStr, 10, 64)
}

func (h *LoanHandler) IssueLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.IssueLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	created, err := h.service.Issue(r.Context(), req.BookID, req.MemberID, req.Notes, req.ProcessedBy)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, dto.NewLoanResponse(created))
}

func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid loan ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	l, err := h.service.GetLoan(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(l))
}

func (h *LoanHandler) ReturnLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid loan ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	// The return body is optional; a bare POST returns the book without
	// desk notes.
	var req dto.ReturnLoanRequest
	if decodeErr := decodeJSON(r, &req); decodeErr != nil && !errors.Is(decodeErr, errNoBody) {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, decodeErr))
		return
	}

	returned, err := h.service.Return(r.Context(), loanID, req.Notes, req.ProcessedBy)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(returned))
}

func (h *LoanHandler) RenewLoan(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid loan ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	renewed, err := h.service.Renew(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(renewed))
}

func (h *LoanHandler) MarkLoanLost(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid loan ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	var req dto.MarkLostRequest
	if decodeErr := decodeJSON(r, &req); decodeErr != nil && !errors.Is(decodeErr, errNoBody) {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, decodeErr))
		return
	}

	lost, err := h.service.MarkLost(r.Context(), loanID, req.Notes, req.ProcessedBy)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(lost))
}

func (h *LoanHandler) PayFine(w http.ResponseWriter, r *http.Request) {
	loanID, err := idFromURL(r, "loanID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid loan ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	paid, err := h.service.PayFine(r.Context(), loanID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanResponse(paid))
}

func (h *LoanHandler) ListOverdueLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListOverdueLoans(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanListResponse(loans))
}

func (h *LoanHandler) SweepOverdue(w http.ResponseWriter, r *http.Request) {
	transitioned, err := h.service.SweepOverdue(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	resp := dto.SweepResponse{
		MarkedOverdue: len(transitioned),
		Loans:         dto.NewLoanListResponse(transitioned).Loans,
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *LoanHandler) ListMemberLoans(w http.ResponseWriter, r *http.Request) {
	memberID, err := idFromURL(r, "memberID")
	if err != nil {
		respondError(w, fmt.Errorf("%w: invalid member ID: %v", apperrors.ErrInvalidArgument, err))
		return
	}

	loans, err := h.service.ListLoansForMember(r.Context(), memberID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.NewLoanListResponse(loans))
}
